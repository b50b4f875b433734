// Package archive stores report runs in Postgres so results can be compared across days.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rajindersingh041/sidebar-qa/internal/crosstab"
	"github.com/rajindersingh041/sidebar-qa/internal/database"
	"github.com/rajindersingh041/sidebar-qa/internal/report"
)

const createRunsSQL = `
CREATE TABLE IF NOT EXISTS report_runs (
	id            UUID PRIMARY KEY,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	report_window TEXT NOT NULL,
	steps         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS report_runs_started_at_idx ON report_runs (started_at DESC);
`

// StepOutcome is the archived form of one step result.
type StepOutcome struct {
	ID         string          `json:"id"`
	Groups     int             `json:"groups"`
	DurationMS int64           `json:"duration_ms"`
	Error      string          `json:"error,omitempty"`
	Table      *crosstab.Table `json:"table,omitempty"`
}

type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Window     string
	Steps      []StepOutcome
}

// Summary is one row of List.
type Summary struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Window     string
	Steps      int
	Failed     int
}

// FromReport converts a finished report. window describes the requested date range.
func FromReport(rep *report.Report, window string) Run {
	run := Run{
		ID:         rep.ID,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
		Window:     window,
		Steps:      make([]StepOutcome, 0, len(rep.Results)),
	}
	for _, res := range rep.Results {
		out := StepOutcome{
			ID:         res.Step.ID,
			Groups:     res.Groups,
			DurationMS: res.Duration.Milliseconds(),
			Table:      res.Table,
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
			out.Table = nil
		}
		run.Steps = append(run.Steps, out)
	}
	return run
}

// Summarize counts the steps and failures of a run.
func (r Run) Summarize() Summary {
	s := Summary{ID: r.ID, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt, Window: r.Window, Steps: len(r.Steps)}
	for _, st := range r.Steps {
		if st.Error != "" {
			s.Failed++
		}
	}
	return s
}

type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect opens the archive database and creates the runs table.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dsn == "" {
		return nil, errors.New("archive: no dsn configured")
	}
	pool, err := database.ConnectPool(ctx, dsn, createRunsSQL, 1, logger)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Insert(ctx context.Context, run Run) error {
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return fmt.Errorf("archive: encode steps: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO report_runs (id, started_at, finished_at, report_window, steps) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Window, json.RawMessage(steps),
	)
	if err != nil {
		return fmt.Errorf("archive: insert run %s: %w", run.ID, err)
	}
	s.logger.Info("Archived report run", zap.String("run", run.ID.String()), zap.Int("steps", len(run.Steps)))
	return nil
}

// List returns the most recent runs first.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, finished_at, report_window, steps FROM report_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: list runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			run   Run
			steps []byte
		)
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Window, &steps); err != nil {
			return nil, fmt.Errorf("archive: scan run: %w", err)
		}
		if err := json.Unmarshal(steps, &run.Steps); err != nil {
			return nil, fmt.Errorf("archive: decode run %s: %w", run.ID, err)
		}
		out = append(out, run.Summarize())
	}
	return out, rows.Err()
}
