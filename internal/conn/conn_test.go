// SPDX-License-Identifier: Apache-2.0

package conn_test

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/stretchr/testify/require"

	"github.com/erans/pgsqlite-sub001/internal/conn"
	"github.com/erans/pgsqlite-sub001/internal/engine"
	"github.com/erans/pgsqlite-sub001/internal/migrations"
	"github.com/erans/pgsqlite-sub001/internal/types"
	"github.com/erans/pgsqlite-sub001/internal/wire"
)

// newTestGateway wires a Handler against a fresh on-disk SQLite database
// with the metadata catalog installed, serving over an in-memory
// net.Pipe so the test can drive a real pgproto3.Frontend against it.
func newTestGateway(t *testing.T) *pgproto3.Frontend {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	rdb, err := engine.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, migrations.NewRegistry(30, migrations.BuiltinMigrations()...).Apply(context.Background(), rdb.DB))

	router := engine.NewRouter(rdb)
	cfg := conn.Config{
		ServerVersion: "15.0",
		Router:        router,
		Types:         types.NewRegistry(),
		MaxRowsChunk:  256,
	}

	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close() })

	h := conn.New(serverConn, wire.Limits{}, cfg)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Serve(context.Background())
	}()
	t.Cleanup(func() {
		_ = serverConn.Close()
		<-done
	})

	front := pgproto3.NewFrontend(clientConn, clientConn)
	return front
}

// doStartup sends a StartupMessage and drains the handshake reply up to
// and including ReadyForQuery.
func doStartup(t *testing.T, front *pgproto3.Frontend) {
	t.Helper()
	front.Send(&pgproto3.StartupMessage{
		ProtocolVersion: pgproto3.ProtocolVersionNumber,
		Parameters: map[string]string{
			"user":     "tester",
			"database": "tester",
		},
	})
	require.NoError(t, front.Flush())

	for {
		msg, err := front.Receive()
		require.NoError(t, err)
		if _, ok := msg.(*pgproto3.ReadyForQuery); ok {
			return
		}
	}
}

func TestSimpleQueryCreateInsertSelectRoundTrip(t *testing.T) {
	front := newTestGateway(t)
	doStartup(t, front)

	front.Send(&pgproto3.Query{String: "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL)"})
	require.NoError(t, front.Flush())
	drainUntilReady(t, front)

	front.Send(&pgproto3.Query{String: "INSERT INTO widgets (name) VALUES ('sprocket')"})
	require.NoError(t, front.Flush())
	drainUntilReady(t, front)

	front.Send(&pgproto3.Query{String: "SELECT id, name FROM widgets WHERE name = 'sprocket'"})
	require.NoError(t, front.Flush())

	var gotRow bool
	for {
		msg, err := front.Receive()
		require.NoError(t, err)
		switch m := msg.(type) {
		case *pgproto3.DataRow:
			gotRow = true
			require.Len(t, m.Values, 2)
			require.Equal(t, "sprocket", string(m.Values[1]))
		case *pgproto3.ReadyForQuery:
			require.True(t, gotRow, "expected at least one DataRow before ReadyForQuery")
			return
		}
	}
}

func TestExtendedQueryParseBindExecuteRoundTrip(t *testing.T) {
	front := newTestGateway(t)
	doStartup(t, front)

	front.Send(&pgproto3.Query{String: "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL)"})
	require.NoError(t, front.Flush())
	drainUntilReady(t, front)
	front.Send(&pgproto3.Query{String: "INSERT INTO widgets (name) VALUES ('gizmo')"})
	require.NoError(t, front.Flush())
	drainUntilReady(t, front)

	front.Send(&pgproto3.Parse{Name: "", Query: "SELECT id, name FROM widgets WHERE name = $1", ParameterOIDs: []uint32{25}})
	front.Send(&pgproto3.Bind{
		DestinationPortal:    "",
		PreparedStatement:    "",
		ParameterFormatCodes: []int16{0},
		Parameters:           [][]byte{[]byte("gizmo")},
		ResultFormatCodes:    []int16{0},
	})
	front.Send(&pgproto3.Describe{ObjectType: 'P', Name: ""})
	front.Send(&pgproto3.Execute{Portal: "", MaxRows: 0})
	front.Send(&pgproto3.Sync{})
	require.NoError(t, front.Flush())

	var (
		parseComplete bool
		bindComplete  bool
		gotRow        bool
	)
	for {
		msg, err := front.Receive()
		require.NoError(t, err)
		switch m := msg.(type) {
		case *pgproto3.ParseComplete:
			parseComplete = true
		case *pgproto3.BindComplete:
			bindComplete = true
		case *pgproto3.DataRow:
			gotRow = true
			require.Len(t, m.Values, 2)
			require.Equal(t, "gizmo", string(m.Values[1]))
		case *pgproto3.CommandComplete:
			// expected before ReadyForQuery
		case *pgproto3.ReadyForQuery:
			require.True(t, parseComplete)
			require.True(t, bindComplete)
			require.True(t, gotRow)
			return
		case *pgproto3.ErrorResponse:
			t.Fatalf("unexpected ErrorResponse: %+v", m)
		}
	}
}

func TestSimpleQueryScalarFunctionBypassesStorage(t *testing.T) {
	front := newTestGateway(t)
	doStartup(t, front)

	front.Send(&pgproto3.Query{String: "SELECT current_database()"})
	require.NoError(t, front.Flush())

	var gotRow bool
	for {
		msg, err := front.Receive()
		require.NoError(t, err)
		switch m := msg.(type) {
		case *pgproto3.DataRow:
			gotRow = true
			require.Equal(t, "tester", string(m.Values[0]))
		case *pgproto3.ReadyForQuery:
			require.True(t, gotRow)
			return
		}
	}
}

func drainUntilReady(t *testing.T, front *pgproto3.Frontend) {
	t.Helper()
	for {
		msg, err := front.Receive()
		require.NoError(t, err)
		if _, ok := msg.(*pgproto3.ReadyForQuery); ok {
			return
		}
		if e, ok := msg.(*pgproto3.ErrorResponse); ok {
			t.Fatalf("unexpected ErrorResponse: %+v", e)
		}
	}
}
