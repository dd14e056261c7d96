// SPDX-License-Identifier: Apache-2.0

// Package testutils is the direct analogue of pgroll's
// pkg/testutils.SharedTestMain harness, replacing its testcontainers
// Postgres bootstrap with the embedded engine: there is no external
// service to containerize, so a fresh on-disk SQLite file plus an
// in-process listener stand in for it.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"path/filepath"
	"testing"

	_ "github.com/lib/pq"

	"github.com/erans/pgsqlite-sub001/internal/conn"
	"github.com/erans/pgsqlite-sub001/internal/engine"
	"github.com/erans/pgsqlite-sub001/internal/migrations"
	"github.com/erans/pgsqlite-sub001/internal/types"
	"github.com/erans/pgsqlite-sub001/internal/wire"
)

// WithGateway starts a full Connection Handler stack — a fresh SQLite
// file, the metadata catalog, the compatibility views, and a listener
// on an ephemeral loopback port — and hands fn a *sql.DB opened against
// it with the real lib/pq driver, the same way
// WithConnectionToContainer hands a test a *sql.DB against a
// just-provisioned database. Driving the gateway through an actual
// PostgreSQL client library, rather than hand-built wire messages,
// exercises the parts of the protocol libpq itself depends on
// (startup parameter negotiation, simple and extended query choice).
func WithGateway(t *testing.T, fn func(db *sql.DB)) {
	t.Helper()
	ctx := context.Background()

	rdb, err := engine.Open(filepath.Join(t.TempDir(), "gateway.db"))
	if err != nil {
		t.Fatalf("opening gateway database: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	if err := migrations.NewRegistry(30, migrations.BuiltinMigrations()...).Apply(ctx, rdb.DB); err != nil {
		t.Fatalf("applying metadata catalog: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening for gateway connections: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	cfg := conn.Config{
		ServerVersion: "15.0",
		Router:        engine.NewRouter(rdb),
		Types:         types.NewRegistry(),
		MaxRowsChunk:  256,
	}
	go acceptLoop(ctx, ln, cfg)

	connStr := fmt.Sprintf("postgres://tester@%s/tester?sslmode=disable", ln.Addr().String())
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("opening lib/pq connection: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	fn(db)
}

// acceptLoop serves connections until the listener is closed by the
// caller's cleanup, the same shutdown shape cmd/serve.go uses for the
// production listener.
func acceptLoop(ctx context.Context, ln net.Listener, cfg conn.Config) {
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		go func() {
			h := conn.New(c, wire.Limits{}, cfg)
			_ = h.Serve(ctx)
		}()
	}
}
