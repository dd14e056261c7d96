// SPDX-License-Identifier: Apache-2.0

// Package flags adapts internal/config's viper-bound Config into the
// small set of per-command accessors cmd wants, the same split
// pgroll's cmd/flags keeps between PersistentFlags wiring and the
// PostgresURL/Schema/StateSchema getters each subcommand calls.
package flags

import (
	"github.com/spf13/cobra"

	"github.com/erans/pgsqlite-sub001/internal/config"
)

var v = config.NewViper()

// Register adds the shared gateway flags to the root command's
// persistent flag set, mirroring PgConnectionFlags' role in the
// teacher's cmd/flags package.
func Register(cmd *cobra.Command) {
	config.BindFlags(cmd.PersistentFlags(), v)
}

// Gateway resolves the Config from whatever combination of flags and
// PGSQLITE_* environment variables is currently set, the same
// bind-then-read shape PostgresURL()/Schema() use for a single viper
// key each.
func Gateway() config.Config {
	return config.Load(v)
}
