package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultConnectAttempts = 5
	pingTimeout            = 3 * time.Second
)

type Config struct {
	DSN      string
	MaxConns int32
	// ConnectAttempts is how many pings are tried before giving up, so the
	// service can start alongside its database.
	ConnectAttempts int
}

func New(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	const op = "postgres.New"

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := ping(ctx, cfg.ConnectAttempts, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return pool, nil
}

// ping retries fn with linear backoff.
func ping(ctx context.Context, attempts int, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = defaultConnectAttempts
	}

	var err error
	for i := 1; i <= attempts; i++ {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = fn(pctx)
		cancel()
		if err == nil {
			return nil
		}

		if i == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i) * 500 * time.Millisecond):
		}
	}

	return fmt.Errorf("no connection after %d attempts: %w", attempts, err)
}
