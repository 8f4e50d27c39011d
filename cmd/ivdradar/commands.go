package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ivdradar/internal/app"
	"ivdradar/internal/config"
	"ivdradar/internal/logging"
	"ivdradar/internal/render"
)

type runFlags struct {
	input  string
	rules  string
	dsn    string
	output string
	topN   int
	dryRun bool
}

func (f *runFlags) apply(cfg *config.Config) {
	if f.input != "" {
		cfg.Input.BatchPath = f.input
	}
	if f.rules != "" {
		cfg.Rules.ScoringPath = f.rules
	}
	if f.dsn != "" {
		cfg.Database.DSN = f.dsn
	}
	if f.topN > 0 {
		cfg.Digest.TopN = f.topN
	}
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one curation pass and render the digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			flags.apply(&cfg)
			logger := logging.New(cfg.Logging.Level)

			ctx := cmd.Context()
			application, err := app.New(ctx, cfg, logger, app.Options{DryRun: flags.dryRun})
			if err != nil {
				return err
			}
			defer application.Close()

			now := time.Now().UTC()
			report, err := application.Pipeline().Run(ctx, now)
			if err != nil {
				return err
			}

			digest := render.Digest(cfg.Digest.Title, report.Selection, report.Dedupe, now)
			if flags.output == "" {
				fmt.Fprint(cmd.OutOrStdout(), digest)
				return nil
			}
			if err := os.WriteFile(flags.output, []byte(digest), 0o644); err != nil {
				return fmt.Errorf("write digest: %w", err)
			}
			logger.Info("digest written", "path", flags.output,
				"selected", report.Selection.Summary.SelectedCount)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "path to the captured item batch (JSON)")
	cmd.Flags().StringVar(&flags.rules, "rules", "", "path to the scoring rules overlay (YAML)")
	cmd.Flags().StringVar(&flags.dsn, "dsn", "", "Postgres DSN for the feed store")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "write the digest to a file instead of stdout")
	cmd.Flags().IntVarP(&flags.topN, "top", "n", 0, "maximum stories in the digest")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "skip persistence and cross-run dedupe")
	return cmd
}

func newScoreCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score and dedupe a batch, printing the full audit report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			flags.apply(&cfg)
			logger := logging.New(cfg.Logging.Level)

			ctx := cmd.Context()
			application, err := app.New(ctx, cfg, logger, app.Options{DryRun: true})
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.Pipeline().Run(ctx, time.Now().UTC())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "path to the captured item batch (JSON)")
	cmd.Flags().StringVar(&flags.rules, "rules", "", "path to the scoring rules overlay (YAML)")
	cmd.Flags().IntVarP(&flags.topN, "top", "n", 0, "maximum stories in the digest")
	return cmd
}
