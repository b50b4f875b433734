package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rajindersingh041/sidebar-qa/internal/archive"
	"github.com/rajindersingh041/sidebar-qa/internal/database"
	"github.com/rajindersingh041/sidebar-qa/internal/models"
)

func newStepsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the report steps in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := a.cfg.ReportSteps()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWINDOW\tFILTER\tTITLE")
			for _, s := range steps {
				filter := "-"
				switch {
				case s.Name != "":
					filter = "name=" + s.Name
				case s.NamePrefix != "":
					filter = "prefix=" + s.NamePrefix
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Window, filter, s.Title)
			}
			return tw.Flush()
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	var inputs []string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the event table and load JSON-lines records into it",
		Long: `seed creates the event table if needed and inserts every record of the input files.
Use "-" to read standard input. Intended for local sqlite or postgres warehouses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []models.EventRecord
			for _, in := range inputs {
				recs, err := readRecords(in, cmd.InOrStdin())
				if err != nil {
					return err
				}
				records = append(records, recs...)
			}

			ctx := cmd.Context()
			w, err := database.Open(ctx, a.cfg.WarehouseConfig(), a.logger)
			if err != nil {
				return err
			}
			defer w.Close()
			if err := w.EnsureTable(ctx); err != nil {
				return err
			}
			n, err := w.Load(ctx, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %s events into %s\n", humanize.Comma(n), w.Table())
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&inputs, "input", "i", []string{"-"}, "JSON-lines event files")
	return cmd
}

func readRecords(path string, stdin io.Reader) ([]models.EventRecord, error) {
	if path == "-" {
		return models.ReadJSONLines(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	recs, err := models.ReadJSONLines(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

func newRunsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived report runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Archive.DSN == "" {
				return fmt.Errorf("no archive configured (archive.dsn or SIDEBARQA_ARCHIVE_DSN)")
			}
			store, err := archive.Connect(cmd.Context(), a.cfg.Archive.DSN, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			a.logger.Debug("Listed archived runs", zap.Int("runs", len(runs)))
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tWINDOW\tSTEPS\tFAILED\tTOOK")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Window,
					r.Steps, r.Failed, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}
