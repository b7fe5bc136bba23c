package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tordrt/schemadrift"
	"github.com/tordrt/schemadrift/internal/config"
	"github.com/tordrt/schemadrift/internal/definition"
	"github.com/tordrt/schemadrift/internal/formatter"
	"github.com/tordrt/schemadrift/internal/reconcile"
)

func newCheckCmd() *cobra.Command {
	var (
		reportDir   string
		failOnError bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the schema definition with the database",
		Long: `Parse the schema definition, introspect the database and print every
integrity issue. The full report is saved as JSON for a later migrate run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			logger := loggerFrom(ctx)

			res, err := runCheck(ctx, cfg, logger)
			if err != nil {
				return err
			}
			report := res.Report

			if err := printReport(cmd.OutOrStdout(), cfg.Output, report); err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}

			if cfg.Report != "" {
				if err := report.WriteFile(cfg.Report); err != nil {
					return err
				}
				logger.Info("report saved", "path", cfg.Report, "run_id", report.RunID)
			}
			if reportDir != "" {
				if err := formatter.NewMultiFileFormatter(reportDir).Format(report); err != nil {
					return fmt.Errorf("failed to write report directory: %w", err)
				}
				logger.Info("report directory written", "path", reportDir)
			}

			if failOnError && report.HasErrors() {
				return errIssuesFound
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output format: text, json, yaml or markdown (default: text)")
	cmd.Flags().String("report", "", "Where to save the JSON report (default: db-integrity-report.json)")
	cmd.Flags().StringVarP(&reportDir, "report-dir", "d", "", "Also write a markdown report split per table into this directory")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit with status 1 when error-severity issues are found")
	return cmd
}

// runCheck parses the definition and reconciles it with the catalog. Parse
// errors are logged and the well-formed part is still checked.
func runCheck(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*schemadrift.Result, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL is required (use --db-url, SCHEMADRIFT_DATABASE_URL or DATABASE_URL)")
	}
	opts := optionsFrom(cfg, logger)

	def, perrs, err := loadDefinition(cfg, opts, logger)
	if err != nil {
		return nil, err
	}

	q, closeFn, err := openCatalog(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	res, err := schemadrift.Check(ctx, def, q, opts)
	if err != nil {
		return nil, err
	}
	res.ParseErrors = perrs
	return res, nil
}

func loadDefinition(cfg *config.Config, opts *schemadrift.Options, logger *slog.Logger) (*definition.Schema, definition.ParseErrors, error) {
	def, err := schemadrift.LoadDefinition(cfg.Definition, opts)
	var perrs definition.ParseErrors
	if err != nil && !errors.As(err, &perrs) {
		return nil, nil, err
	}
	for _, pe := range perrs {
		logger.Warn("skipped malformed definition", "file", cfg.Definition, "line", pe.Line, "block", pe.Block, "error", pe.Msg)
	}
	logger.Debug("definition parsed", "file", cfg.Definition, "models", len(def.Models), "enums", len(def.Enums))
	return def, perrs, nil
}

func printReport(w io.Writer, output string, report *reconcile.Report) error {
	if output == formatter.FormatText || output == "" {
		return formatter.NewTextFormatter(w).WithColor(isTerminal(w)).Format(report)
	}
	f, err := formatter.New(output, w)
	if err != nil {
		return err
	}
	return f.Format(report)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
