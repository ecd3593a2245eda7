package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open creates a store for driver. dsn is the SQLite file or the PostgreSQL URL.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*TreeStore, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(logger), nil
	case DriverSQLite:
		if dsn == "" {
			dsn = "file:chatbot.db?mode=rwc&_busy_timeout=5000&_journal_mode=WAL"
		}
		return NewSQLiteStore(dsn, logger)
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
