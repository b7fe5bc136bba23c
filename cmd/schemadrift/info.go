package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tordrt/schemadrift"
	"github.com/tordrt/schemadrift/internal/schema"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the parsed definition and catalog statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			logger := loggerFrom(ctx)
			opts := optionsFrom(cfg, logger)

			def, _, err := loadDefinition(cfg, opts, logger)
			if err != nil {
				return err
			}

			var snap *schema.Snapshot
			if cfg.DatabaseURL != "" {
				q, closeFn, err := openCatalog(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer closeFn()
				if snap, err = schemadrift.Introspect(ctx, q, opts); err != nil {
					return err
				}
			}

			info := schemadrift.Describe(def, snap)
			w := cmd.OutOrStdout()

			_, _ = fmt.Fprintf(w, "Models (%d):\n", len(info.Models))
			for _, m := range info.Models {
				_, _ = fmt.Fprintf(w, "  %s -> %s (%d fields)\n", m.Name, m.Table, m.Fields)
			}
			_, _ = fmt.Fprintf(w, "Enums (%d):\n", len(info.Enums))
			for _, e := range info.Enums {
				_, _ = fmt.Fprintf(w, "  %s -> %s (%d values)\n", e.Name, e.DBName, e.Values)
			}
			if info.Catalog != nil {
				_, _ = fmt.Fprintf(w, "Catalog (%s): %d tables, %d enums, %d routines\n",
					cfg.Schema, info.Catalog.Tables, info.Catalog.Enums, info.Catalog.Routines)
			}
			return nil
		},
	}
}
