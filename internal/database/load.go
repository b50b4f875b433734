package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/rajindersingh041/sidebar-qa/internal/models"
	"github.com/rajindersingh041/sidebar-qa/internal/query"
)

// EnsureTable creates the event table if it does not exist.
func (w *Warehouse) EnsureTable(ctx context.Context) error {
	if _, err := w.db.ExecContext(ctx, createEventsSQL(w.dialect, w.table)); err != nil {
		return fmt.Errorf("failed to init %s table: %w", w.table, err)
	}
	return nil
}

// Load inserts records into the event table. On Postgres the rows are streamed with
// COPY; other engines insert inside one transaction so a failure stores nothing.
func (w *Warehouse) Load(ctx context.Context, records []models.EventRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	var (
		n   int64
		err error
	)
	if w.dialect.Name() == query.DriverPostgres {
		n, err = w.copyFrom(ctx, records)
	} else {
		n, err = w.insertBatch(ctx, records)
	}
	if err != nil {
		return 0, err
	}
	w.logger.Info("Loaded events", zap.Int64("rows", n), zap.String("table", w.table))
	return n, nil
}

func (w *Warehouse) insertBatch(ctx context.Context, records []models.EventRecord) (int64, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	marks := make([]string, len(query.TableColumns))
	for i := range marks {
		marks[i] = w.dialect.Placeholder(i + 1)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		query.QuoteTable(w.dialect, w.table),
		strings.Join(query.TableColumns, ", "),
		strings.Join(marks, ", "),
	)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, w.rowValues(r)...); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert record %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return int64(len(records)), nil
}

func (w *Warehouse) copyFrom(ctx context.Context, records []models.EventRecord) (int64, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = w.rowValues(r)
	}

	conn, err := w.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	var copied int64
	err = conn.Raw(func(driverConn any) error {
		pc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		n, copyErr := pc.Conn().CopyFrom(ctx,
			pgx.Identifier(strings.Split(w.table, ".")),
			query.TableColumns,
			pgx.CopyFromRows(rows),
		)
		copied = n
		return copyErr
	})
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", w.table, err)
	}
	return copied, nil
}

func (w *Warehouse) rowValues(r models.EventRecord) []any {
	return []any{
		w.dialect.TimeArg(r.Timestamp),
		r.Action,
		r.Wiki,
		r.Name,
		int32(r.SkinVersion),
		r.IsAnon,
	}
}
