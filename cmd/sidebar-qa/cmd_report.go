package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rajindersingh041/sidebar-qa/internal/archive"
	"github.com/rajindersingh041/sidebar-qa/internal/database"
	"github.com/rajindersingh041/sidebar-qa/internal/metrics"
	"github.com/rajindersingh041/sidebar-qa/internal/models"
	"github.com/rajindersingh041/sidebar-qa/internal/query"
	"github.com/rajindersingh041/sidebar-qa/internal/render"
	"github.com/rajindersingh041/sidebar-qa/internal/report"
)

type reportFlags struct {
	format   string
	chart    bool
	steps    []string
	from, to string
	failFast bool
	records  string
	textfile string
}

func newReportCmd(a *app) *cobra.Command {
	var f reportFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run the report steps and print one table per step",
		Example: `  sidebar-qa report --format remarkup > report.txt
  sidebar-qa report --step donate-by-wiki --step donate-by-skin --chart
  sidebar-qa report --records events.jsonl --from 2020-07-16 --to 2020-07-20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReport(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "output format: table, remarkup, csv or json")
	cmd.Flags().BoolVar(&f.chart, "chart", false, "draw a bar chart of row totals under each table")
	cmd.Flags().StringSliceVarP(&f.steps, "step", "s", nil, "run only these step ids")
	cmd.Flags().StringVar(&f.from, "from", "", "first day of the window for every step (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last day of the window for every step (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&f.failFast, "fail-fast", false, "stop at the first failing step")
	cmd.Flags().StringVar(&f.records, "records", "", "count a JSON-lines event file instead of the warehouse")
	cmd.Flags().StringVar(&f.textfile, "metrics-textfile", "", "write run metrics in node_exporter textfile format")
	return cmd
}

func (a *app) runReport(cmd *cobra.Command, f reportFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	if f.format != "" {
		cfg.Report.Format = f.format
	}
	if f.chart {
		cfg.Report.Chart = true
	}
	if f.failFast {
		cfg.Report.FailFast = true
	}
	if len(f.steps) > 0 {
		cfg.Report.Only = f.steps
	}
	if f.from != "" || f.to != "" {
		cfg.Report.From, cfg.Report.To = f.from, f.to
	}
	if f.textfile != "" {
		cfg.Metrics.Textfile = f.textfile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, err := render.ParseFormat(cfg.Report.Format)
	if err != nil {
		return err
	}
	steps, err := cfg.ReportSteps()
	if err != nil {
		return err
	}

	source, closeSource, err := a.openSource(ctx, cfg.WarehouseConfig(), f.records)
	if err != nil {
		return err
	}
	defer closeSource()

	recorder := metrics.NewRecorder()
	b := &report.Builder{
		Source:   source,
		Renderer: render.New(cmd.OutOrStdout(), format, cfg.Report.Chart),
		Metrics:  recorder,
		Logger:   a.logger,
		Wikis:    cfg.Report.Wikis,
		FailFast: cfg.Report.FailFast,
	}
	rep, runErr := b.Run(ctx, steps)
	if rep == nil {
		return runErr
	}

	if cfg.Metrics.Textfile != "" {
		if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			a.logger.Error("Failed to write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}
	if cfg.Archive.DSN != "" {
		if err := a.archiveRun(ctx, cfg.Archive.DSN, rep, cfg.Report.From, cfg.Report.To); err != nil {
			a.logger.Error("Failed to archive report run", zap.Error(err))
			runErr = errors.Join(runErr, err)
		}
	}
	return runErr
}

// openSource returns the warehouse, or an in-memory source when records names a file.
func (a *app) openSource(ctx context.Context, wc database.Config, records string) (report.Counter, func(), error) {
	if records != "" {
		file, err := os.Open(records)
		if err != nil {
			return nil, nil, fmt.Errorf("open records: %w", err)
		}
		defer file.Close()
		recs, err := models.ReadJSONLines(file)
		if err != nil {
			return nil, nil, fmt.Errorf("read records %s: %w", records, err)
		}
		a.logger.Info("Counting records in memory", zap.String("file", records), zap.Int("records", len(recs)))
		return report.MemorySource{Records: recs}, func() {}, nil
	}

	w, err := database.Open(ctx, wc, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return w, func() { w.Close() }, nil
}

func (a *app) archiveRun(ctx context.Context, dsn string, rep *report.Report, from, to string) error {
	window := query.DefaultWindow.String()
	if from != "" {
		window = from + ".." + to
	}
	store, err := archive.Connect(ctx, dsn, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Insert(ctx, archive.FromReport(rep, window))
}
