// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erans/pgsqlite-sub001/cmd/flags"
	"github.com/erans/pgsqlite-sub001/internal/engine"
	"github.com/erans/pgsqlite-sub001/internal/migrations"
)

type statusReport struct {
	DatabasePath  string `json:"database_path"`
	BinaryVersion string `json:"binary_version"`
	SchemaVersion int    `json:"schema_version"`
	Compatibility string `json:"compatibility"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the gateway's schema version and compatibility with this binary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg := flags.Gateway()

		rdb, err := engine.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening database %q: %w", cfg.DatabasePath, err)
		}
		defer rdb.Close()

		if err := migrations.NewRegistry(30, migrations.BuiltinMigrations()...).Apply(ctx, rdb.DB); err != nil {
			return fmt.Errorf("applying metadata catalog: %w", err)
		}

		var schemaVersion int
		row := rdb.DB.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM __pgsqlite_migrations WHERE status = 'completed'`)
		if err := row.Scan(&schemaVersion); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}

		compat, err := migrations.CheckCompatibility(ctx, rdb.DB, Version)
		if err != nil {
			return fmt.Errorf("checking schema compatibility: %w", err)
		}

		report := statusReport{
			DatabasePath:  cfg.DatabasePath,
			BinaryVersion: Version,
			SchemaVersion: schemaVersion,
			Compatibility: compatibilityLabel(compat),
		}
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func compatibilityLabel(c migrations.Compatibility) string {
	switch c {
	case migrations.CompatCheckSkipped:
		return "skipped"
	case migrations.CompatNotInitialized:
		return "not_initialized"
	case migrations.CompatSchemaOlder:
		return "schema_older_than_binary"
	case migrations.CompatSchemaEqual:
		return "up_to_date"
	case migrations.CompatSchemaNewer:
		return "schema_newer_than_binary"
	default:
		return "unknown"
	}
}
