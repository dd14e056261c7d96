// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"database/sql"
	"strings"
)

// Router multiplexes statements between the single write handle and
// optional read-only replicas, per spec §4.9 "single-writer
// principle ... multiplexed by a Router that chooses based on
// statement classification".
type Router struct {
	writer  *RDB
	readers []*RDB
	next    int
}

// NewRouter builds a Router over one write handle and zero or more
// read replicas. With no readers, every statement routes to writer.
func NewRouter(writer *RDB, readers ...*RDB) *Router {
	return &Router{writer: writer, readers: readers}
}

// Writer returns the single write handle, used for DDL, INSERT,
// UPDATE, DELETE, and any statement inside an explicit transaction.
func (r *Router) Writer() *RDB { return r.writer }

// For routes a statement to the writer or, for a read-only SELECT
// outside a transaction with replicas configured, a read replica
// chosen round-robin.
func (r *Router) For(ctx context.Context, sqlText string, inTransaction bool) *RDB {
	if inTransaction || len(r.readers) == 0 || !IsReadOnly(sqlText) {
		return r.writer
	}
	reader := r.readers[r.next%len(r.readers)]
	r.next++
	return reader
}

// IsReadOnly reports whether a statement's leading verb never
// mutates, used by the Router's classification.
func IsReadOnly(sqlText string) bool {
	trimmed := strings.TrimSpace(sqlText)
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "SELECT"):
		return true
	case strings.HasPrefix(upper, "WITH"):
		return !strings.Contains(upper, "INSERT") && !strings.Contains(upper, "UPDATE") && !strings.Contains(upper, "DELETE")
	case strings.HasPrefix(upper, "SHOW"):
		return true
	default:
		return false
	}
}

// Close closes the writer and every reader.
func (r *Router) Close() error {
	var firstErr error
	if err := r.writer.Close(); err != nil {
		firstErr = err
	}
	for _, reader := range r.readers {
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ScanFirstValue scans a single row's single column, a convenience
// used by the Catalog Emulator and Migration Registry for scalar
// lookups, adapted from pgroll's pkg/db.ScanFirstValue.
func ScanFirstValue[T any](rows *sql.Rows, dest *T) error {
	if rows.Next() {
		if err := rows.Scan(dest); err != nil {
			return err
		}
	}
	return rows.Err()
}
