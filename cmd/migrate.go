// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/erans/pgsqlite-sub001/cmd/flags"
	"github.com/erans/pgsqlite-sub001/internal/engine"
	"github.com/erans/pgsqlite-sub001/internal/migrations"
)

// migrateCmd brings a database file's metadata catalog and
// compatibility views up to date without starting a listener. There
// is no migrations directory to apply here the way pgroll's migrate
// walks one: this gateway's schema changes live as ordinary CREATE
// TABLE/ALTER TABLE statements sent over the wire, so what "migrate"
// means for it is bootstrapping or upgrading the bookkeeping tables
// the Translator and Catalog Emulator depend on.
var migrateCmd = &cobra.Command{
	Use:     "migrate [database-path]",
	Short:   "Apply the metadata catalog and compatibility views to a database file",
	Args:    cobra.MaximumNArgs(1),
	Example: "migrate ./pgsqlite.db",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := flags.Gateway()
		if len(args) > 0 {
			cfg.DatabasePath = args[0]
		}

		rdb, err := engine.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening database %q: %w", cfg.DatabasePath, err)
		}
		defer rdb.Close()

		applied := pterm.DefaultBulletList.WithItems([]pterm.BulletListItem{
			{Level: 0, Text: "metadata catalog (__pgsqlite_* tables)"},
		})

		if err := migrations.NewRegistry(30, migrations.BuiltinMigrations()...).Apply(ctx, rdb.DB); err != nil {
			return fmt.Errorf("applying metadata catalog: %w", err)
		}
		applied.Items = append(applied.Items, pterm.BulletListItem{Level: 0, Text: "pg_catalog/information_schema compatibility views"})

		if err := migrations.RecordVersion(ctx, rdb.DB, Version); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}

		pterm.Success.Printfln("database %q is up to date", cfg.DatabasePath)
		_ = applied.Render()
		return nil
	},
}
