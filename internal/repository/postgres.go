package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type postgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store persisted in PostgreSQL.
func NewPostgresStore(ctx context.Context, databaseURL string, logger *zap.Logger) (*TreeStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	b := &postgresBackend{pool: pool}
	if err := b.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return newTreeStore(b, logger), nil
}

func (b *postgresBackend) migrate(ctx context.Context) error {
	// Range scans over descendants need byte ordering, hence COLLATE "C".
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			path TEXT COLLATE "C" PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, m := range migrations {
		if _, err := b.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (b *postgresBackend) read(ctx context.Context, path string) (leaves, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if path == "" {
		rows, err = b.pool.Query(ctx, `SELECT path, value FROM nodes`)
	} else {
		lo, hi := subtreeBounds(path)
		rows, err = b.pool.Query(ctx,
			`SELECT path, value FROM nodes WHERE path = $1 OR (path >= $2 AND path < $3)`,
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

func (b *postgresBackend) write(ctx context.Context, writes []write) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		for _, w := range writes {
			if w.path == "" {
				if _, err := tx.Exec(ctx, `DELETE FROM nodes`); err != nil {
					return err
				}
			} else {
				lo, hi := subtreeBounds(w.path)
				if _, err := tx.Exec(ctx,
					`DELETE FROM nodes WHERE path = $1 OR (path >= $2 AND path < $3)`,
					w.path, lo, hi); err != nil {
					return err
				}
				if anc := ancestors(w.path); len(anc) > 0 {
					if _, err := tx.Exec(ctx, `DELETE FROM nodes WHERE path = ANY($1)`, anc); err != nil {
						return err
					}
				}
			}
			batch := &pgx.Batch{}
			for p, v := range w.leaves {
				batch.Queue(
					`INSERT INTO nodes (path, value, updated_at) VALUES ($1, $2, NOW())
					 ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
					p, string(v))
			}
			if batch.Len() > 0 {
				if err := tx.SendBatch(ctx, batch).Close(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (b *postgresBackend) close() error {
	b.pool.Close()
	return nil
}
