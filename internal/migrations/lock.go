// SPDX-License-Identifier: Apache-2.0

package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
)

const defaultLockTTLSeconds = 30

// acquireLock serializes concurrent startups the way pgroll's
// pg_advisory_xact_lock does, but as a single-row owner+expiry record
// since SQLite has no session-scoped advisory lock. A lock past its
// expiry is considered abandoned and recovered, per spec §4.1.
func (r *Registry) acquireLock(ctx context.Context, db *sql.DB) (release func(), err error) {
	ttl := r.lockTTL
	if ttl <= 0 {
		ttl = defaultLockTTLSeconds
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errkind.Wrap(errkind.Storage, "beginning lock transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	expires := now + ttl

	row := tx.QueryRowContext(ctx, `SELECT owner, expires_at FROM __pgsqlite_migration_locks WHERE id = 1`)
	var owner string
	var expiresAt int64
	scanErr := row.Scan(&owner, &expiresAt)

	switch {
	case scanErr == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO __pgsqlite_migration_locks (id, owner, expires_at) VALUES (1, ?, ?)`,
			r.ownerID, expires)
	case scanErr != nil:
		return nil, errkind.Wrap(errkind.Storage, "reading migration lock", scanErr)
	case expiresAt < now:
		_, err = tx.ExecContext(ctx,
			`UPDATE __pgsqlite_migration_locks SET owner = ?, expires_at = ? WHERE id = 1`,
			r.ownerID, expires)
	default:
		return nil, errkind.New(errkind.Storage, "migration lock held by another process, not yet expired")
	}
	if err != nil {
		return nil, errkind.Wrap(errkind.Storage, "acquiring migration lock", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errkind.Wrap(errkind.Storage, "committing migration lock", err)
	}

	release = func() {
		_, _ = db.ExecContext(context.Background(),
			`DELETE FROM __pgsqlite_migration_locks WHERE id = 1 AND owner = ?`, r.ownerID)
	}
	return release, nil
}
