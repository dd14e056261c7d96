// SPDX-License-Identifier: Apache-2.0

// Package engine is the embedded SQLite storage layer: a retry-
// wrapped *sql.DB plus a single-writer/multi-reader Router, modeled
// on pgroll's pkg/db.RDB retry wrapper, adapted from Postgres
// lock_timeout retries to SQLite's SQLITE_BUSY contention.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/cloudflare/backoff"

	_ "modernc.org/sqlite"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
)

const (
	maxBackoffDuration = 1 * time.Minute
	backoffInterval    = 20 * time.Millisecond
)

// DB is the subset of database/sql operations the rest of the gateway
// needs, retried transparently on SQLITE_BUSY per spec §4.9
// "single-writer file lock".
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	WithRetryableTransaction(ctx context.Context, f func(context.Context, *sql.Tx) error) error
	Conn(ctx context.Context) (*sql.Conn, error)
	Close() error
}

// RDB wraps a *sql.DB opened against the modernc.org/sqlite pure-Go
// driver and retries operations that fail with "database is locked"
// using an exponential backoff with jitter, the same shape pgroll's
// RDB gives Postgres lock_timeout errors.
type RDB struct {
	DB *sql.DB
}

// Open opens the SQLite database file at path. busy_timeout is set to
// 0 so contention surfaces as SQLITE_BUSY immediately and is handled
// by RDB's own retry loop instead of blocking inside the driver.
func Open(path string) (*RDB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(0)")
	if err != nil {
		return nil, errkind.Wrap(errkind.Storage, "opening database", err)
	}
	db.SetMaxOpenConns(1) // single-writer principle, spec §4.9
	return &RDB{DB: db}, nil
}

// OpenReadOnly opens an additional handle against the same file for
// the read-replica side of the Router, with multiple connections
// permitted since readers don't contend on the write lock.
func OpenReadOnly(path string) (*RDB, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&_pragma=busy_timeout(0)")
	if err != nil {
		return nil, errkind.Wrap(errkind.Storage, "opening read-only database", err)
	}
	return &RDB{DB: db}, nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// ExecContext retries on SQLITE_BUSY with exponential backoff.
func (r *RDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		res, err := r.DB.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if isBusy(err) {
			if werr := sleepCtx(ctx, b.Duration()); werr != nil {
				return nil, werr
			}
			continue
		}
		return nil, errkind.Classify(err)
	}
}

// QueryContext retries on SQLITE_BUSY with exponential backoff.
func (r *RDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		rows, err := r.DB.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		if isBusy(err) {
			if werr := sleepCtx(ctx, b.Duration()); werr != nil {
				return nil, werr
			}
			continue
		}
		return nil, errkind.Classify(err)
	}
}

// WithRetryableTransaction runs f in a transaction, retrying the
// whole transaction on SQLITE_BUSY.
func (r *RDB) WithRetryableTransaction(ctx context.Context, f func(context.Context, *sql.Tx) error) error {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		tx, err := r.DB.BeginTx(ctx, nil)
		if err != nil {
			return errkind.Classify(err)
		}

		err = f(ctx, tx)
		if err == nil {
			if cerr := tx.Commit(); cerr != nil {
				return errkind.Classify(cerr)
			}
			return nil
		}

		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			return errkind.Classify(rerr)
		}

		if isBusy(err) {
			if werr := sleepCtx(ctx, b.Duration()); werr != nil {
				return werr
			}
			continue
		}
		return err
	}
}

// Conn acquires a single connection, used by the Session Store to
// give each session its own privately owned handle per spec §3.
func (r *RDB) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return nil, errkind.Wrap(errkind.Storage, "acquiring connection", err)
	}
	return conn, nil
}

// Close closes the underlying *sql.DB.
func (r *RDB) Close() error {
	return r.DB.Close()
}

// ExecOnConn runs an Exec against an already-acquired *sql.Conn (e.g. a
// Session's privately owned handle), retrying on SQLITE_BUSY the same
// way RDB.ExecContext does for a pooled *sql.DB.
func ExecOnConn(ctx context.Context, conn *sql.Conn, query string, args ...any) (sql.Result, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		res, err := conn.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if isBusy(err) {
			if werr := sleepCtx(ctx, b.Duration()); werr != nil {
				return nil, werr
			}
			continue
		}
		return nil, errkind.Classify(err)
	}
}

// QueryOnConn runs a Query against an already-acquired *sql.Conn,
// retrying on SQLITE_BUSY.
func QueryOnConn(ctx context.Context, conn *sql.Conn, query string, args ...any) (*sql.Rows, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		if isBusy(err) {
			if werr := sleepCtx(ctx, b.Duration()); werr != nil {
				return nil, werr
			}
			continue
		}
		return nil, errkind.Classify(err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
