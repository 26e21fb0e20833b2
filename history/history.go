// Package history persists one record per directory rebuild to Postgres.
// It is optional: without a configured DSN the service runs entirely
// in-memory, and a history failure never blocks snapshot publication.
package history

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"f0oster/oktaldap/reload"
)

//go:embed schema.sql
var schemaSQL string

// Store records sync runs in a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens the pool and ensures the schema exists.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	s := &Store{
		pool:   pool,
		logger: logger.With(slog.String("component", "history")),
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// RecordRun inserts one rebuild record.
func (s *Store) RecordRun(ctx context.Context, run reload.RunRecord) error {
	_, err := s.pool.Exec(ctx, InsertSyncRun,
		run.ID,
		run.StartedAt,
		run.Duration.Milliseconds(),
		run.Users,
		run.Groups,
		run.Entries,
		run.Collisions,
		run.Status,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert sync run failed: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
