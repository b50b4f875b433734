// Package database connects to the analytics warehouse holding the event table and runs
// count aggregations against it.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/rajindersingh041/sidebar-qa/internal/models"
	"github.com/rajindersingh041/sidebar-qa/internal/query"
)

// Config selects and tunes the warehouse connection.
type Config struct {
	Driver string
	// DSN overrides the connection string built from the environment.
	DSN  string
	Host string
	// Table is the event table, optionally database-qualified.
	Table           string
	ConnectAttempts int
	QueryTimeout    time.Duration
}

// Warehouse runs queries against the event table.
type Warehouse struct {
	db           *sql.DB
	dialect      query.Dialect
	table        string
	queryTimeout time.Duration
	logger       *zap.Logger
}

// Result is a query result set with dynamically typed cells.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Open connects to the configured warehouse and pings it. A failing ping is retried
// ConnectAttempts times in total.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Warehouse, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialect, err := query.DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("no event table configured")
	}

	driverName, dsn := "", cfg.DSN
	switch dialect.Name() {
	case query.DriverClickHouse:
		driverName = "clickhouse"
		if dsn == "" {
			dsn = clickhouseDSN(cfg.Host)
		}
	case query.DriverPostgres:
		driverName = "pgx"
		if dsn == "" {
			dsn = postgresDSN(cfg.Host)
		}
	case query.DriverSQLite:
		driverName = "sqlite"
		if dsn == "" {
			dsn = ":memory:"
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s db: %w", dialect.Name(), err)
	}
	if dialect.Name() == query.DriverSQLite {
		// Every new connection to ":memory:" would be a fresh database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(2)
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(time.Hour)
	}

	log := logger.With(zap.String("driver", dialect.Name()))
	if err := ping(ctx, db.PingContext, cfg.ConnectAttempts, log); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("Connected to warehouse", zap.String("table", cfg.Table))

	return &Warehouse{
		db:           db,
		dialect:      dialect,
		table:        cfg.Table,
		queryTimeout: cfg.QueryTimeout,
		logger:       log,
	}, nil
}

func ping(ctx context.Context, fn func(context.Context) error, attempts int, logger *zap.Logger) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		logger.Warn("Failed to ping warehouse", zap.Int("attempt", i+1), zap.Error(err))
		if i+1 < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
		}
	}
	return fmt.Errorf("failed to ping after %d attempt(s): %w", attempts, err)
}

func (w *Warehouse) Close() error { return w.db.Close() }

func (w *Warehouse) Table() string { return w.table }

// Run sends a query and scans every row into a Result.
func (w *Warehouse) Run(ctx context.Context, q string, args ...any) (*Result, error) {
	if w.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.queryTimeout)
		defer cancel()
	}

	rows, err := w.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(res.Rows)+1, err)
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return res, nil
}

// Counts runs the count aggregation of a step and returns its groups keyed in
// step.Dimensions order.
func (w *Warehouse) Counts(ctx context.Context, step query.Step, wikis []string) ([]models.GroupCount, error) {
	q, args, err := query.Build(w.dialect, w.table, step, wikis)
	if err != nil {
		return nil, err
	}
	w.logger.Debug("Running count query", zap.String("step", step.ID), zap.String("sql", q))

	res, err := w.Run(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", step.ID, err)
	}
	counts, err := res.GroupCounts(step.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", step.ID, err)
	}
	return counts, nil
}
