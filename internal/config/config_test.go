package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajindersingh041/sidebar-qa/internal/models"
	"github.com/rajindersingh041/sidebar-qa/internal/query"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sidebar-qa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "clickhouse", c.Warehouse.Driver)
	assert.Equal(t, "desktopwebuiactionstracking", c.Warehouse.Table)
	assert.Equal(t, 1, c.Warehouse.ConnectAttempts)
	assert.Equal(t, "table", c.Report.Format)
	assert.Empty(t, c.Report.Wikis, "every wiki is counted unless report.wikis narrows it")

	steps, err := c.ReportSteps()
	require.NoError(t, err)
	assert.Len(t, steps, len(query.DefaultSteps()))
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
warehouse:
  driver: sqlite
  dsn: file:events.db
  query_timeout: 30s
report:
  format: remarkup
  chart: true
  wikis: [frwiki]
  from: 2020-07-20
  to: 2020-07-22
  only: [donate-by-date, actions-by-wiki]
metrics:
  textfile: /tmp/sidebarqa.prom
`)
	c, err := Load(path)
	require.NoError(t, err)

	wc := c.WarehouseConfig()
	assert.Equal(t, "sqlite", wc.Driver)
	assert.Equal(t, "file:events.db", wc.DSN)
	assert.Equal(t, 30*time.Second, wc.QueryTimeout)
	assert.Equal(t, "desktopwebuiactionstracking", wc.Table)
	assert.Equal(t, []string{"frwiki"}, c.Report.Wikis)
	assert.True(t, c.Report.Chart)
	assert.Equal(t, "/tmp/sidebarqa.prom", c.Metrics.Textfile)

	steps, err := c.ReportSteps()
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "actions-by-wiki", steps[0].ID, "report order, not listed order")
	assert.Equal(t, "donate-by-date", steps[1].ID)
	for _, s := range steps {
		assert.Equal(t, "2020-07-20..2020-07-22", s.Window.String())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SIDEBARQA_DRIVER", "postgres")
	t.Setenv("SIDEBARQA_DSN", "postgres://qa@db/events")
	t.Setenv("SIDEBARQA_ARCHIVE_DSN", "postgres://qa@db/archive")

	c, err := Load(writeConfig(t, "warehouse:\n  driver: sqlite\n"))
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.Warehouse.Driver)
	assert.Equal(t, "postgres://qa@db/events", c.Warehouse.DSN)
	assert.Equal(t, "postgres://qa@db/archive", c.Archive.DSN)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	for name, body := range map[string]string{
		"driver":      "warehouse:\n  driver: mysql\n",
		"format":      "report:\n  format: xlsx\n",
		"half window": "report:\n  from: 2020-07-16\n",
		"yaml":        "report: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCustomSteps(t *testing.T) {
	c, err := Load(writeConfig(t, `
report:
  steps:
    - id: toggles
      title: Sidebar toggles by wiki
      name_prefix: ui.
      dimensions: [wiki, skin_version]
      index: [wiki]
      column: skinversion
      fill_zero: true
    - id: clicks
      from: 2020-07-18
      to: 2020-07-19
      dimensions: [date, action]
`))
	require.NoError(t, err)

	steps, err := c.ReportSteps()
	require.NoError(t, err)
	require.Len(t, steps, 2)

	toggles := steps[0]
	assert.Equal(t, "ui.", toggles.NamePrefix)
	assert.Equal(t, []models.Dimension{models.DimWiki, models.DimSkinVersion}, toggles.Dimensions)
	assert.Equal(t, models.DimSkinVersion, toggles.Column)
	assert.True(t, toggles.FillZero)
	assert.Equal(t, query.DefaultWindow, toggles.Window)

	clicks := steps[1]
	assert.Equal(t, clicks.Dimensions, clicks.Index, "rows keyed by every dimension")
	assert.Equal(t, "2020-07-18..2020-07-19", clicks.Window.String())
}

func TestCustomStepErrors(t *testing.T) {
	_, err := StepConfig{ID: "x", Dimensions: []string{"colour"}}.Step()
	assert.ErrorIs(t, err, models.ErrUnknownDimension)

	_, err = StepConfig{ID: "x", Dimensions: []string{"wiki", "action"}, Index: []string{"wiki"}}.Step()
	assert.ErrorIs(t, err, query.ErrBadLayout)

	_, err = StepConfig{ID: "x", Dimensions: []string{"wiki"}, From: "2020-07-20", To: "2020-07-19"}.Step()
	assert.ErrorIs(t, err, models.ErrEmptyWindow)

	c := Default()
	c.Report.Only = []string{"no-such-step"}
	_, err = c.ReportSteps()
	assert.Error(t, err)
}
