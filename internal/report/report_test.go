package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/rajindersingh041/sidebar-qa/internal/database"
	"github.com/rajindersingh041/sidebar-qa/internal/metrics"
	"github.com/rajindersingh041/sidebar-qa/internal/models"
	"github.com/rajindersingh041/sidebar-qa/internal/query"
	"github.com/rajindersingh041/sidebar-qa/internal/render"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func day(s string, hour int) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t.Add(time.Duration(hour) * time.Hour)
}

func records() []models.EventRecord {
	return []models.EventRecord{
		{Timestamp: day("2020-07-16", 9), Action: "click", Wiki: "frwiki", Name: "n-sitesupport", SkinVersion: 2, IsAnon: true},
		{Timestamp: day("2020-07-16", 10), Action: "click", Wiki: "frwiki", Name: "n-sitesupport", SkinVersion: 2, IsAnon: false},
		{Timestamp: day("2020-07-17", 11), Action: "init", Wiki: "hewiki", Name: "ui.sidebar", SkinVersion: 1, IsAnon: true},
		{Timestamp: day("2020-07-20", 12), Action: "click", Wiki: "hewiki", Name: "ui.toggle", SkinVersion: 1, IsAnon: true},
		{Timestamp: day("2020-07-21", 13), Action: "click", Wiki: "enwiki", Name: "ui.toggle", SkinVersion: 2, IsAnon: true},
	}
}

// failingSource fails the listed steps and counts everything else in memory.
type failingSource struct {
	MemorySource
	fail map[string]bool
}

func (f failingSource) Counts(ctx context.Context, step query.Step, wikis []string) ([]models.GroupCount, error) {
	if f.fail[step.ID] {
		return nil, errors.New("step " + step.ID + ": connection reset")
	}
	return f.MemorySource.Counts(ctx, step, wikis)
}

func TestRunDefaultSteps(t *testing.T) {
	var out bytes.Buffer
	b := &Builder{
		Source:   MemorySource{Records: records()},
		Renderer: render.New(&out, render.FormatRemarkup, false),
		Logger:   zap.NewNop(),
	}

	rep, err := b.Run(context.Background(), query.DefaultSteps())
	require.NoError(t, err)
	require.Len(t, rep.Results, len(query.DefaultSteps()))
	assert.Empty(t, rep.Failed())
	assert.NotEqual(t, [16]byte{}, [16]byte(rep.ID))
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))

	bySkin := rep.Results[2]
	require.Equal(t, "actions-by-wiki-skin", bySkin.Step.ID)
	require.Len(t, bySkin.Table.Rows, 6, "enwiki, frwiki and hewiki crossed with skin versions 1 and 2")
	assert.Equal(t, []string{"enwiki", "1"}, bySkin.Table.Rows[0].Key)
	n, ok := bySkin.Table.Cell(0, "click")
	assert.True(t, ok)
	assert.Zero(t, n)

	assert.Contains(t, out.String(), "==== Count events by wiki [actions-by-wiki] (2020-07-16..2020-07-31) ====")
	assert.Contains(t, out.String(), "| enwiki |")
}

func sumTotals(t *testing.T, res StepResult) int64 {
	t.Helper()
	require.NoError(t, res.Err)
	var total int64
	for _, n := range res.Table.Totals() {
		total += n
	}
	return total
}

// Without a wiki list every wiki is counted, so totals equal the records in the window.
func TestRunCountsEveryWikiByDefault(t *testing.T) {
	step, err := query.Select(query.DefaultSteps(), []string{"actions-by-skin"})
	require.NoError(t, err)

	rep, err := (&Builder{Source: MemorySource{Records: records()}}).Run(context.Background(), step)
	require.NoError(t, err)

	var inWindow int64
	for _, r := range records() {
		if step[0].Window.Contains(r.Timestamp) {
			inWindow++
		}
	}
	assert.Equal(t, int64(5), inWindow)
	assert.Equal(t, inWindow, sumTotals(t, rep.Results[0]))
}

func TestRunNarrowsToListedWikis(t *testing.T) {
	step, err := query.Select(query.DefaultSteps(), []string{"actions-by-skin"})
	require.NoError(t, err)

	b := &Builder{Source: MemorySource{Records: records()}, Wikis: query.TestWikis}
	rep, err := b.Run(context.Background(), step)
	require.NoError(t, err)
	assert.Equal(t, int64(4), sumTotals(t, rep.Results[0]), "the enwiki event is left out")
}

func TestRunContinuesAfterFailure(t *testing.T) {
	var out bytes.Buffer
	rec := metrics.NewRecorder()
	b := &Builder{
		Source: failingSource{
			MemorySource: MemorySource{Records: records()},
			fail:         map[string]bool{"actions-by-skin": true},
		},
		Renderer: render.New(&out, render.FormatTable, false),
		Metrics:  rec,
	}

	steps := query.DefaultSteps()[:3]
	rep, err := b.Run(context.Background(), steps)
	require.ErrorIs(t, err, ErrStepsFailed)
	assert.Contains(t, err.Error(), "1 of 3")
	require.Len(t, rep.Results, 3)

	failed := rep.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "actions-by-skin", failed[0].Step.ID)
	assert.Nil(t, failed[0].Table, "a failed step has no partial table")
	assert.NotNil(t, rep.Results[2].Table)

	assert.Contains(t, out.String(), "ERROR: step actions-by-skin: connection reset")
	assert.Contains(t, out.String(), "Count events by skin version on test wikis")

	n, err := testutil.GatherAndCount(rec.Registry(), "sidebarqa_step_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunFailFast(t *testing.T) {
	b := &Builder{
		Source: failingSource{
			MemorySource: MemorySource{Records: records()},
			fail:         map[string]bool{"actions-by-wiki": true},
		},
		FailFast: true,
	}

	rep, err := b.Run(context.Background(), query.DefaultSteps())
	require.ErrorIs(t, err, ErrStepsFailed)
	assert.Len(t, rep.Results, 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &Builder{Source: MemorySource{Records: records()}}
	rep, err := b.Run(ctx, query.DefaultSteps())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rep.Results)
}

// cancellingSource counts in memory, then cancels the run.
type cancellingSource struct {
	MemorySource
	cancel context.CancelFunc
}

func (c cancellingSource) Counts(ctx context.Context, step query.Step, wikis []string) ([]models.GroupCount, error) {
	defer c.cancel()
	return c.MemorySource.Counts(ctx, step, wikis)
}

func TestRunFlushesFinishedStepsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	b := &Builder{
		Source:   cancellingSource{MemorySource: MemorySource{Records: records()}, cancel: cancel},
		Renderer: render.New(&out, render.FormatJSON, false),
	}
	rep, err := b.Run(ctx, query.DefaultSteps())
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, rep.Results, 1)

	var sections []struct {
		Step string `json:"step"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &sections))
	require.Len(t, sections, 1)
	assert.Equal(t, "actions-by-wiki", sections[0].Step)
}

func TestRunInvalidStepIsReported(t *testing.T) {
	bad := query.Step{ID: "bad", Window: query.DefaultWindow}
	b := &Builder{Source: MemorySource{Records: records()}}

	rep, err := b.Run(context.Background(), []query.Step{bad})
	require.ErrorIs(t, err, ErrStepsFailed)
	require.Len(t, rep.Results, 1)
	assert.ErrorIs(t, rep.Results[0].Err, query.ErrNoDimensions)
}

// The warehouse and the in-memory source must produce the same tables.
func TestWarehouseMatchesMemorySource(t *testing.T) {
	ctx := context.Background()
	w, err := database.Open(ctx, database.Config{Driver: query.DriverSQLite, Table: "events"}, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.EnsureTable(ctx))
	_, err = w.Load(ctx, records())
	require.NoError(t, err)

	steps := query.DefaultSteps()
	fromWarehouse, err := (&Builder{Source: w}).Run(ctx, steps)
	require.NoError(t, err)
	fromMemory, err := (&Builder{Source: MemorySource{Records: records()}}).Run(ctx, steps)
	require.NoError(t, err)

	for i := range steps {
		if diff := cmp.Diff(fromMemory.Results[i].Table, fromWarehouse.Results[i].Table); diff != "" {
			t.Errorf("step %s mismatch (-memory +warehouse):\n%s", steps[i].ID, diff)
		}
	}
}
