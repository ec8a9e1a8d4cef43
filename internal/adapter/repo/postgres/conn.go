package postgres

import (
	"context"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/dispatchd/internal/domain"
)

// NewPool creates a pgx connection pool from the provided DSN, verifies
// connectivity, and returns it. The initial ping retries with exponential
// backoff so the service tolerates a database that is still starting up.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("op=postgres.NewPool: %w", err)
	}
	cfg.MaxConns = 30
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("op=postgres.NewPool: %w", err)
	}

	expo := backoff.NewExponentialBackOff()
	expo.MaxInterval = 3 * time.Second
	expo.MaxElapsedTime = 30 * time.Second
	bo := backoff.WithContext(expo, ctx)
	ping := func() error { return pool.Ping(ctx) }
	if err := backoff.Retry(ping, bo); err != nil {
		pool.Close()
		return nil, fmt.Errorf("op=postgres.NewPool: ping: %w: %w", domain.ErrTransient, err)
	}
	return pool, nil
}
