// SPDX-License-Identifier: Apache-2.0

// Package migrations is the Migration Registry (M): applies the
// ordered, gap-free set of pending schema versions at process start,
// under a row-based advisory lock, the same way pgroll's pkg/state
// uses a Postgres advisory lock before writing its own schema — SQLite
// has no session-scoped advisory lock primitive, so the lock here is a
// single owner+expiry row in __pgsqlite_migration_locks instead of
// pg_advisory_xact_lock.
package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
)

// sqlInit installs only the Registry's own bookkeeping tables: the
// version ledger and the advisory-lock row. These two tables are the
// one piece of schema that cannot itself be a versioned Migration,
// since Apply needs them to exist before it can even ask what version
// is current. Everything else the Translator and Catalog Emulator
// depend on — the metadata catalog's sidecar tables and the
// pg_catalog/information_schema compatibility views — is installed by
// BuiltinMigrations as ordinary versioned migrations, the same way
// the original implementation's migration registry built up
// pg_catalog support one version at a time (register_v1_initial_schema
// through register_v18_pg_roles_user_support) instead of a single
// unconditional bootstrap script.
const sqlInit = `
CREATE TABLE IF NOT EXISTS __pgsqlite_migrations (
	version     INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	checksum    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	applied_at  INTEGER
);

CREATE TABLE IF NOT EXISTS __pgsqlite_migration_locks (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	owner       TEXT NOT NULL,
	expires_at  INTEGER NOT NULL
);
`

// Migration is one pending schema change: a sequence of SQL
// statements, an imperative callback, or both, per spec §4.1
// "Contract". Down is the optional reverse.
type Migration struct {
	Version  int
	Name     string
	Checksum string
	Up       []string
	UpFunc   func(ctx context.Context, conn *sql.Conn) error
	Down     []string
}

// Registry orders and applies Migrations against a database handle.
type Registry struct {
	migrations []Migration
	ownerID    string
	lockTTL    int64 // seconds
}

// NewRegistry builds a Registry over a set of migrations, kept in the
// order given; Apply validates that they are monotonic and gap-free.
func NewRegistry(lockTTLSeconds int64, migs ...Migration) *Registry {
	return &Registry{
		migrations: migs,
		ownerID:    uuid.NewString(),
		lockTTL:    lockTTLSeconds,
	}
}

// Apply brings the database to the latest schema version, per spec
// §4.1: ensures the metadata tables exist, acquires the advisory lock
// (recovering a stale lock past its expiry), then applies every
// pending version in ascending order inside its own transaction.
// A failed migration leaves the database in its pre-migration state
// and Apply returns the error without attempting further versions.
func (r *Registry) Apply(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqlInit); err != nil {
		return errkind.Wrap(errkind.Storage, "initializing migration metadata", err)
	}

	if err := r.validateOrdering(); err != nil {
		return err
	}

	release, err := r.acquireLock(ctx, db)
	if err != nil {
		return err
	}
	defer release()

	current, err := r.currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range r.migrations {
		if m.Version <= current {
			continue
		}
		if err := r.applyOne(ctx, db, m); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// validateOrdering enforces spec §4.1 "Invariants": versions are
// monotonic and gap-free starting at 1.
func (r *Registry) validateOrdering() error {
	for i, m := range r.migrations {
		expected := i + 1
		if m.Version != expected {
			return errkind.New(errkind.Validation,
				fmt.Sprintf("migration versions must be gap-free starting at 1: got %d at position %d, expected %d", m.Version, i, expected))
		}
	}
	return nil
}

func (r *Registry) currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	row := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM __pgsqlite_migrations WHERE status = 'completed'`)
	var version int
	if err := row.Scan(&version); err != nil {
		return 0, errkind.Wrap(errkind.Storage, "reading schema_version", err)
	}
	return version, nil
}

// applyOne runs all of a migration's work — its Up statements and, if
// present, its UpFunc callback — on a single physical connection, so
// that a SQLite transaction begun via conn.BeginTx stays in scope for
// both: SQLite ties a transaction to the connection that opened it,
// not to the *sql.Tx wrapper, so handing UpFunc a second connection
// acquired from the pool (as a bare db.Conn would) would let it commit
// writes outside the Up statements' transaction, surviving a rollback
// that was supposed to undo the whole migration.
func (r *Registry) applyOne(ctx context.Context, db *sql.DB, m Migration) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return errkind.Wrap(errkind.Storage, "acquiring migration connection", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return errkind.Wrap(errkind.Storage, "beginning migration transaction", err)
	}
	defer tx.Rollback()

	for _, stmt := range m.Up {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errkind.Wrap(errkind.Storage, "executing migration statement", err)
		}
	}

	if m.UpFunc != nil {
		if err := m.UpFunc(ctx, conn); err != nil {
			return errkind.Wrap(errkind.Storage, "running migration callback", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO __pgsqlite_migrations (version, name, checksum, status, applied_at)
		 VALUES (?, ?, ?, 'completed', strftime('%s', 'now'))
		 ON CONFLICT(version) DO UPDATE SET status = 'completed', applied_at = excluded.applied_at`,
		m.Version, m.Name, m.Checksum)
	if err != nil {
		return errkind.Wrap(errkind.Storage, "recording migration completion", err)
	}

	return tx.Commit()
}
