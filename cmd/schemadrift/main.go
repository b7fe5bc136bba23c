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
	"github.com/tordrt/schemadrift/internal/db"
)

// errIssuesFound makes check exit non-zero under --fail-on-error without an
// extra error message.
var errIssuesFound = errors.New("integrity issues found")

type (
	configKey struct{}
	loggerKey struct{}
)

// openCatalog connects to the catalog database. Tests replace it.
var openCatalog = func(ctx context.Context, databaseURL string) (db.Querier, func(), error) {
	client, err := schemadrift.Connect(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "schemadrift",
		Short: "Check a Prisma schema against a live PostgreSQL database",
		Long: `schemadrift compares the models and enums of a Prisma schema with the catalog
of a PostgreSQL database, reports every drift it finds and generates migration
SQL for review. It never changes the database.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			if cfg.File != "" {
				logger.Debug("using config file", "path", cfg.File)
			}

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ./schemadrift.yaml)")
	pf.String("db-url", "", "PostgreSQL connection string (default: $DATABASE_URL)")
	pf.String("definition", "", "Path to the Prisma schema (default: prisma/schema.prisma)")
	pf.StringP("schema", "s", "", "Database schema name (default: public)")
	pf.Duration("query-timeout", 0, "Timeout for catalog introspection (default: 10s)")
	pf.StringSlice("exclude-tables", nil, "Tables to leave out of the check (comma-separated)")
	pf.Bool("plural-tables", false, "Derive plural table names for models without @@map")
	pf.BoolP("verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newCheckCmd(), newMigrateCmd(), newInfoCmd())
	return rootCmd
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func configFrom(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{
		Schema:              config.DefaultSchema,
		Definition:          config.DefaultDefinition,
		QueryTimeout:        config.DefaultQueryTimeout,
		InternalTablePrefix: config.DefaultInternalPrefix,
		Report:              config.DefaultReport,
		Output:              config.DefaultOutput,
	}
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

func optionsFrom(cfg *config.Config, logger *slog.Logger) *schemadrift.Options {
	return &schemadrift.Options{
		Schema:              cfg.Schema,
		QueryTimeout:        cfg.QueryTimeout,
		InternalTablePrefix: cfg.InternalTablePrefix,
		ExcludeTables:       cfg.ExcludeTables,
		SystemColumns:       cfg.SystemColumns,
		TableOverrides:      cfg.TableOverrides,
		PluralTables:        cfg.PluralTables,
		Logger:              logger,
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errIssuesFound) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
