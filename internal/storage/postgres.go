// Package storage provides the shared PostgreSQL connection pool used by
// the Audit Store (C3) and the Prompt Engine's template library (C22).
// Adapted from a PostgresClient bootstrap, generalized from
// database/sql+lib/pq to pgxpool the way internal/audit and
// internal/llm/prompt already consume the database.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgxpool against databaseURL and verifies connectivity
// with a bounded ping, mirroring a connect-then-health-check
// bootstrap sequence.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres health check failed: %w", err)
	}

	return pool, nil
}
