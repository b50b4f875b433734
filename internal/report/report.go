// Package report runs report steps against an event source and renders each result.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rajindersingh041/sidebar-qa/internal/crosstab"
	"github.com/rajindersingh041/sidebar-qa/internal/metrics"
	"github.com/rajindersingh041/sidebar-qa/internal/models"
	"github.com/rajindersingh041/sidebar-qa/internal/query"
	"github.com/rajindersingh041/sidebar-qa/internal/render"
)

var ErrStepsFailed = errors.New("report steps failed")

// Counter returns the grouped event counts of one step. The warehouse and MemorySource
// implement it.
type Counter interface {
	Counts(ctx context.Context, step query.Step, wikis []string) ([]models.GroupCount, error)
}

// MemorySource counts a record slice in process.
type MemorySource struct {
	Records []models.EventRecord
}

func (m MemorySource) Counts(ctx context.Context, step query.Step, wikis []string) ([]models.GroupCount, error) {
	if err := step.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return models.Aggregate(m.Records, step.Filter(wikis), step.Dimensions), nil
}

type StepResult struct {
	Step     query.Step
	Table    *crosstab.Table
	Groups   int
	Duration time.Duration
	Err      error
}

type Report struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []StepResult
}

// Failed returns the results of failed steps.
func (r *Report) Failed() []StepResult {
	var out []StepResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Builder runs steps one after another. Renderer, Metrics and Logger are optional.
type Builder struct {
	Source   Counter
	Renderer *render.Renderer
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
	Wikis    []string
	FailFast bool
}

// Run executes steps in order. A failed step is logged, rendered as an error section and
// recorded; the run continues unless FailFast is set. The report is returned even when
// steps failed, together with an error wrapping ErrStepsFailed.
func (b *Builder) Run(ctx context.Context, steps []query.Step) (*Report, error) {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rep := &Report{ID: uuid.New(), StartedAt: time.Now().UTC()}
	logger = logger.With(zap.String("run", rep.ID.String()))
	if b.Metrics != nil {
		b.Metrics.RunStarted()
	}

	err := b.runSteps(ctx, rep, steps, logger)
	// Sections already rendered are written out even when the run stopped early.
	if b.Renderer != nil {
		if ferr := b.Renderer.Flush(); ferr != nil {
			err = errors.Join(err, fmt.Errorf("render: %w", ferr))
		}
	}
	rep.FinishedAt = time.Now().UTC()
	if err != nil {
		return rep, err
	}

	if failed := rep.Failed(); len(failed) > 0 {
		return rep, fmt.Errorf("%w: %d of %d (first: %s)", ErrStepsFailed, len(failed), len(steps), failed[0].Step.ID)
	}
	return rep, nil
}

func (b *Builder) runSteps(ctx context.Context, rep *Report, steps []query.Step, logger *zap.Logger) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("report %s interrupted: %w", rep.ID, err)
		}

		res := b.runStep(ctx, step)
		rep.Results = append(rep.Results, res)
		if res.Err != nil {
			logger.Error("step failed", zap.String("step", step.ID), zap.Duration("duration", res.Duration), zap.Error(res.Err))
		} else {
			logger.Info("step done", zap.String("step", step.ID), zap.Int("groups", res.Groups), zap.Duration("duration", res.Duration))
		}
		if b.Metrics != nil {
			b.Metrics.ObserveStep(step.ID, res.Duration, res.Groups, res.Err)
		}

		if b.Renderer != nil {
			if err := b.Renderer.Section(Section(res)); err != nil {
				return fmt.Errorf("render step %s: %w", step.ID, err)
			}
		}
		if res.Err != nil && b.FailFast {
			break
		}
	}
	return nil
}

func (b *Builder) runStep(ctx context.Context, step query.Step) StepResult {
	start := time.Now()
	res := StepResult{Step: step}

	counts, err := b.Source.Counts(ctx, step, b.Wikis)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}
	table, err := crosstab.Pivot(step.Dimensions, counts, step.Index, step.Column)
	if err != nil {
		res.Err = fmt.Errorf("step %s: %w", step.ID, err)
		res.Duration = time.Since(start)
		return res
	}
	if step.FillZero {
		table.FillZero()
	}
	res.Table = table
	res.Groups = len(counts)
	res.Duration = time.Since(start)
	return res
}

// Section converts a step result into its rendered form.
func Section(res StepResult) render.Section {
	s := render.Section{
		StepID:      res.Step.ID,
		Title:       res.Step.Title,
		Description: res.Step.Description,
		Table:       res.Table,
		Err:         res.Err,
	}
	if !res.Step.Window.IsZero() {
		s.Window = res.Step.Window.String()
	}
	return s
}
