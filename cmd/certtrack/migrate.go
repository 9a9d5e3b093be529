package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bwservicing/certtrack/internal/store"
	"github.com/bwservicing/certtrack/internal/store/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply the embedded schema migrations that have not run yet on the
configured SQL database. Already applied versions are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration(cmd)
		if err != nil {
			return err
		}
		if cfg.Storage.Backend != "sql" {
			return errors.New("migrations apply to the sql backend only")
		}

		dialect, err := store.LookupDialect(cfg.Storage.Dialect)
		if err != nil {
			return err
		}
		db, err := store.NewDB(dialect, cfg.Storage.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.Run(cmd.Context(), db, dialect.Name); err != nil {
			return err
		}
		all, err := migrations.Load(dialect.Name)
		if err != nil {
			return err
		}
		for _, m := range all {
			fmt.Fprintf(cmd.OutOrStdout(), "%03d %s\n", m.Version, m.Name)
		}
		return nil
	},
}
