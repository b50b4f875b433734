package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// postgresDSN builds a DSN from the POSTGRES_* environment.
func postgresDSN(host string) string {
	if host == "" {
		host = os.Getenv("POSTGRES_HOST")
	}
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:5432/%s?sslmode=disable",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		os.Getenv("POSTGRES_DB"),
	)
}

// ConnectPool opens a pgx pool, waits for it to answer and runs initSQL on it.
func ConnectPool(ctx context.Context, dsn string, initSQL string, attempts int, logger *zap.Logger) (*pgxpool.Pool, error) {
	if dsn == "" {
		dsn = postgresDSN("")
	}
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgxpool config: %w", err)
	}

	// A reporting run needs very few connections.
	config.MaxConns = 4
	config.MinConns = 0
	config.MaxConnIdleTime = 5 * time.Minute
	config.MaxConnLifetime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute
	config.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := ping(ctx, pool.Ping, attempts, logger.With(zap.String("driver", "pgxpool"))); err != nil {
		pool.Close()
		return nil, err
	}

	if initSQL != "" {
		initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := pool.Exec(initCtx, initSQL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run init sql: %w", err)
		}
	}
	return pool, nil
}
