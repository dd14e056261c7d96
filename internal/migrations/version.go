// SPDX-License-Identifier: Apache-2.0

package migrations

import (
	"context"
	"database/sql"
	"strings"

	"golang.org/x/mod/semver"
)

// Compatibility mirrors pgroll's VersionCompatibility: the relation
// between the running binary's version and the version recorded in
// the database's metadata when its schema was first created.
type Compatibility int

const (
	CompatCheckSkipped Compatibility = iota
	CompatNotInitialized
	CompatSchemaOlder
	CompatSchemaEqual
	CompatSchemaNewer
)

const sqlVersionInit = `
CREATE TABLE IF NOT EXISTS __pgsqlite_version (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	version TEXT NOT NULL
);
`

// RecordVersion stamps the gateway version that initialized this
// database's schema, if not already recorded.
func RecordVersion(ctx context.Context, db *sql.DB, version string) error {
	if _, err := db.ExecContext(ctx, sqlVersionInit); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO __pgsqlite_version (id, version) VALUES (1, ?)`, version)
	return err
}

// CheckCompatibility compares the running binary's version against
// the version recorded at schema-init time, the way pgroll warns when
// an older binary opens a database a newer one created.
func CheckCompatibility(ctx context.Context, db *sql.DB, binaryVersion string) (Compatibility, error) {
	if binaryVersion == "development" {
		return CompatCheckSkipped, nil
	}

	if _, err := db.ExecContext(ctx, sqlVersionInit); err != nil {
		return 0, err
	}

	row := db.QueryRowContext(ctx, `SELECT version FROM __pgsqlite_version WHERE id = 1`)
	var schemaVersion string
	if err := row.Scan(&schemaVersion); err == sql.ErrNoRows {
		return CompatNotInitialized, nil
	} else if err != nil {
		return 0, err
	}

	if schemaVersion == "development" {
		return CompatCheckSkipped, nil
	}

	sv := ensureVPrefix(schemaVersion)
	bv := ensureVPrefix(binaryVersion)
	if !semver.IsValid(sv) || !semver.IsValid(bv) {
		return CompatCheckSkipped, nil
	}

	switch semver.Compare(bv, sv) {
	case -1:
		return CompatSchemaNewer, nil
	case 1:
		return CompatSchemaOlder, nil
	default:
		return CompatSchemaEqual, nil
	}
}

func ensureVPrefix(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
