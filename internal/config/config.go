// Package config loads the sidebar-qa YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rajindersingh041/sidebar-qa/internal/database"
	"github.com/rajindersingh041/sidebar-qa/internal/models"
	"github.com/rajindersingh041/sidebar-qa/internal/query"
	"github.com/rajindersingh041/sidebar-qa/internal/render"
)

type WarehouseConfig struct {
	Driver          string        `yaml:"driver"` // clickhouse | postgres | sqlite
	DSN             string        `yaml:"dsn"`    // empty: built from CLICKHOUSE_* / POSTGRES_*
	Host            string        `yaml:"host"`
	Table           string        `yaml:"table"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	QueryTimeout    time.Duration `yaml:"query_timeout"` // 0 disables
}

type ArchiveConfig struct {
	DSN string `yaml:"dsn"` // empty disables archiving
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // node_exporter textfile path
}

type ReportConfig struct {
	Format   string       `yaml:"format"`
	Chart    bool         `yaml:"chart"`
	FailFast bool         `yaml:"fail_fast"`
	Wikis    []string     `yaml:"wikis"` // empty counts every wiki
	From     string       `yaml:"from"`  // overrides every step window when set with To
	To       string       `yaml:"to"`
	Only     []string     `yaml:"only"`  // step ids to run
	Steps    []StepConfig `yaml:"steps"` // replaces the built-in steps
}

type StepConfig struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	From        string   `yaml:"from"`
	To          string   `yaml:"to"`
	NamePrefix  string   `yaml:"name_prefix"`
	Name        string   `yaml:"name"`
	Dimensions  []string `yaml:"dimensions"`
	Index       []string `yaml:"index"`
	Column      string   `yaml:"column"`
	FillZero    bool     `yaml:"fill_zero"`
}

type Config struct {
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Report    ReportConfig    `yaml:"report"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// Load reads path, fills defaults and applies SIDEBARQA_* environment overrides.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Warehouse.Driver == "" {
		c.Warehouse.Driver = query.DriverClickHouse
	}
	if c.Warehouse.Table == "" {
		c.Warehouse.Table = database.DefaultTable
	}
	if c.Warehouse.ConnectAttempts == 0 {
		c.Warehouse.ConnectAttempts = 1
	}
	if c.Report.Format == "" {
		c.Report.Format = string(render.FormatTable)
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SIDEBARQA_DRIVER"); v != "" {
		c.Warehouse.Driver = v
	}
	if v := os.Getenv("SIDEBARQA_DSN"); v != "" {
		c.Warehouse.DSN = v
	}
	if v := os.Getenv("SIDEBARQA_TABLE"); v != "" {
		c.Warehouse.Table = v
	}
	if v := os.Getenv("SIDEBARQA_ARCHIVE_DSN"); v != "" {
		c.Archive.DSN = v
	}
}

func (c Config) Validate() error {
	if _, err := query.DialectFor(c.Warehouse.Driver); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := render.ParseFormat(c.Report.Format); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if (c.Report.From == "") != (c.Report.To == "") {
		return fmt.Errorf("config: report.from and report.to must be set together")
	}
	if c.Warehouse.ConnectAttempts < 0 {
		return fmt.Errorf("config: warehouse.connect_attempts must not be negative")
	}
	return nil
}

func (c Config) WarehouseConfig() database.Config {
	return database.Config{
		Driver:          strings.ToLower(c.Warehouse.Driver),
		DSN:             c.Warehouse.DSN,
		Host:            c.Warehouse.Host,
		Table:           c.Warehouse.Table,
		ConnectAttempts: c.Warehouse.ConnectAttempts,
		QueryTimeout:    c.Warehouse.QueryTimeout,
	}
}

// Window returns the report-wide window, zero when none is configured.
func (c Config) Window() (models.Window, error) {
	if c.Report.From == "" && c.Report.To == "" {
		return models.Window{}, nil
	}
	return models.ParseWindow(c.Report.From, c.Report.To)
}

// ReportSteps returns the steps to run in report order: the configured steps or the
// built-in ones, narrowed to Only, with the report window applied to each.
func (c Config) ReportSteps() ([]query.Step, error) {
	steps := query.DefaultSteps()
	if len(c.Report.Steps) > 0 {
		steps = make([]query.Step, 0, len(c.Report.Steps))
		for _, sc := range c.Report.Steps {
			s, err := sc.Step()
			if err != nil {
				return nil, err
			}
			steps = append(steps, s)
		}
	}

	steps, err := query.Select(steps, c.Report.Only)
	if err != nil {
		return nil, err
	}
	w, err := c.Window()
	if err != nil {
		return nil, fmt.Errorf("report window: %w", err)
	}
	out := make([]query.Step, len(steps))
	for i, s := range steps {
		if !w.IsZero() {
			s = s.WithWindow(w)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// Step converts a configured step. A step without dates covers the default window.
func (sc StepConfig) Step() (query.Step, error) {
	dims, err := models.ParseDimensions(sc.Dimensions)
	if err != nil {
		return query.Step{}, fmt.Errorf("step %s: %w", sc.ID, err)
	}
	index, err := models.ParseDimensions(sc.Index)
	if err != nil {
		return query.Step{}, fmt.Errorf("step %s: index: %w", sc.ID, err)
	}
	var column models.Dimension
	if sc.Column != "" {
		if column, err = models.ParseDimension(sc.Column); err != nil {
			return query.Step{}, fmt.Errorf("step %s: column: %w", sc.ID, err)
		}
	}
	// Without an explicit layout, rows are keyed by every dimension.
	if len(index) == 0 && column == "" {
		index = dims
	}

	window := query.DefaultWindow
	if sc.From != "" || sc.To != "" {
		if window, err = models.ParseWindow(sc.From, sc.To); err != nil {
			return query.Step{}, fmt.Errorf("step %s: %w", sc.ID, err)
		}
	}

	s := query.Step{
		ID:          sc.ID,
		Title:       sc.Title,
		Description: sc.Description,
		Window:      window,
		NamePrefix:  sc.NamePrefix,
		Name:        sc.Name,
		Dimensions:  dims,
		Index:       index,
		Column:      column,
		FillZero:    sc.FillZero,
	}
	return s, s.Validate()
}
