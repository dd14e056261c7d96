// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/erans/pgsqlite-sub001/cmd/flags"
)

// Version is the gateway's version, set via -ldflags at release build
// time; "development" (the default) disables the schema/binary
// compatibility check migrations.CheckCompatibility performs.
var Version = "development"

var rootCmd = &cobra.Command{
	Use:          "pgsqlite",
	Short:        "A PostgreSQL wire-protocol gateway backed by an embedded SQLite engine",
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	flags.Register(rootCmd)
}

// Execute runs the root command, dispatching to serve/status/migrate.
func Execute() error {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
	return rootCmd.Execute()
}
