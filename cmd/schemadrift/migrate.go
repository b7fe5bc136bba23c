package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tordrt/schemadrift"
	"github.com/tordrt/schemadrift/internal/definition"
	"github.com/tordrt/schemadrift/internal/reconcile"
)

func newMigrateCmd() *cobra.Command {
	var (
		fromReport string
		out        string
		gooseDir   string
		name       string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Generate fix SQL from the integrity issues",
		Long: `Generate a migration script for the issues of a live check, or of a report
saved by an earlier check (--from-report). Destructive statements are always
commented out. The script is written for review and never executed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			logger := loggerFrom(ctx)
			opts := optionsFrom(cfg, logger)

			var (
				issues []reconcile.Issue
				def    *definition.Schema
			)
			if fromReport != "" {
				report, err := reconcile.LoadReport(fromReport)
				if err != nil {
					return err
				}
				issues = report.Issues
				logger.Debug("loaded report", "path", fromReport, "run_id", report.RunID, "issues", len(issues))

				// The definition only adds column lists to CREATE TABLE statements.
				if _, err := os.Stat(cfg.Definition); err == nil {
					def, _, err = loadDefinition(cfg, opts, logger)
					if err != nil {
						return err
					}
				} else if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("failed to stat definition file: %w", err)
				}
			} else {
				res, err := runCheck(ctx, cfg, logger)
				if err != nil {
					return err
				}
				issues = res.Report.Issues
				def = res.Definition
			}

			m := schemadrift.GenerateFixes(issues, def)
			w := cmd.OutOrStdout()
			if m.Empty() {
				_, _ = fmt.Fprintln(w, "No fixes required")
				return nil
			}

			var path string
			switch {
			case gooseDir != "":
				p, err := m.WriteGooseFile(gooseDir, name)
				if err != nil {
					return err
				}
				path = p
			case out == "-":
				_, err := fmt.Fprint(w, m.String())
				return err
			default:
				if out == "" {
					out = fmt.Sprintf("fix-integrity-%d.sql", time.Now().Unix())
				}
				if err := os.WriteFile(out, []byte(m.String()), 0o644); err != nil {
					return fmt.Errorf("failed to write migration: %w", err)
				}
				path = out
			}

			_, _ = fmt.Fprintf(w, "Migration written to %s\n", path)
			if m.AddsEnumValues {
				logger.Warn("migration adds enum values; run those statements outside a transaction", "path", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fromReport, "from-report", "", "Use the issues of a saved JSON report instead of a live check")
	cmd.Flags().StringVar(&out, "out", "", "Output file, or - for stdout (default: fix-integrity-<unix>.sql)")
	cmd.Flags().StringVar(&gooseDir, "goose-dir", "", "Write a goose migration into this directory instead")
	cmd.Flags().StringVar(&name, "name", "fix_integrity", "Goose migration name")
	cmd.MarkFlagsMutuallyExclusive("out", "goose-dir")
	return cmd
}
