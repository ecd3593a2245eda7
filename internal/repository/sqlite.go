package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type sqliteBackend struct {
	db *sql.DB
}

// NewSQLiteStore creates a store persisted in SQLite.
func NewSQLiteStore(dsn string, logger *zap.Logger) (*TreeStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	b := &sqliteBackend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return newTreeStore(b, logger), nil
}

func (b *sqliteBackend) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			path TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, m := range migrations {
		if _, err := b.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (b *sqliteBackend) read(ctx context.Context, path string) (leaves, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if path == "" {
		rows, err = b.db.QueryContext(ctx, `SELECT path, value FROM nodes`)
	} else {
		lo, hi := subtreeBounds(path)
		rows, err = b.db.QueryContext(ctx,
			`SELECT path, value FROM nodes WHERE path = ? OR (path >= ? AND path < ?)`,
			path, lo, hi)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := leaves{}
	for rows.Next() {
		var p, v string
		if err := rows.Scan(&p, &v); err != nil {
			return nil, err
		}
		out[p] = []byte(v)
	}
	return out, rows.Err()
}

func (b *sqliteBackend) write(ctx context.Context, writes []write) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, w := range writes {
		if w.path == "" {
			if _, err := tx.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
				return err
			}
		} else {
			lo, hi := subtreeBounds(w.path)
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM nodes WHERE path = ? OR (path >= ? AND path < ?)`,
				w.path, lo, hi); err != nil {
				return err
			}
			for _, a := range ancestors(w.path) {
				if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE path = ?`, a); err != nil {
					return err
				}
			}
		}
		for p, v := range w.leaves {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO nodes (path, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
				 ON CONFLICT(path) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				p, string(v)); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}
