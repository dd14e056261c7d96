// SPDX-License-Identifier: Apache-2.0

// Package conn is the Connection Handler (CH): the per-connection
// state machine that drives the Protocol Codec, consults the Session
// Store for named objects, and runs the Execution Pipeline for every
// Simple or Extended Query statement, with the Security Envelope
// wrapping it at the connection and per-query boundaries. Grounded on
// the overall control flow in kqlite's pkg/pgwire ClientConn
// (handleQuery/handleParse/handleBind/handleExecute/handleDescribe/
// handleSync/handleClose), generalized to run the full CE+TR+QC
// pipeline instead of kqlite's direct pass-through to SQLite.
package conn

import (
	"context"
	"io"
	"net"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/erans/pgsqlite-sub001/internal/cache"
	"github.com/erans/pgsqlite-sub001/internal/engine"
	"github.com/erans/pgsqlite-sub001/internal/errkind"
	"github.com/erans/pgsqlite-sub001/internal/security"
	"github.com/erans/pgsqlite-sub001/internal/session"
	"github.com/erans/pgsqlite-sub001/internal/types"
	"github.com/erans/pgsqlite-sub001/internal/wire"
)

// backendKeySeq hands out distinct BackendKeyData secret keys per
// connection, avoiding a shared counter visible across packages.
var backendKeySeq atomic.Uint32

// Config bundles the per-connection wiring a Handler needs. The
// shared components (QC, SE, the engine Router, the type Registry)
// are process-global; the Codec is unique to this connection.
type Config struct {
	ServerVersion string
	Router        *engine.Router
	Cache         *cache.Cache
	Limiter       *security.Limiter
	Breaker       *security.Breaker
	Audit         security.AuditLogger
	Analyzer      *security.Analyzer
	Types         *types.Registry
	MaxRowsChunk  int // rows sent between flushes while draining a result set
}

// Handler owns one physical client connection end to end: handshake,
// message dispatch, and teardown, per spec.md §4.9.
type Handler struct {
	codec *wire.Codec
	sess  *session.Session
	cfg   Config
	pid   uint32
	ip    string
}

// New builds a Handler around an accepted connection. The Session is
// created empty; Serve populates it from the StartupMessage.
func New(conn net.Conn, limits wire.Limits, cfg Config) *Handler {
	return &Handler{
		codec: wire.NewCodec(conn, limits),
		sess:  session.New(),
		cfg:   cfg,
		pid:   backendKeySeq.Add(1),
		ip:    clientIP(conn),
	}
}

// Serve drives one connection's entire lifetime: handshake, then the
// Ready dispatch loop until Terminate, EOF, or a protocol-fatal error.
func (h *Handler) Serve(ctx context.Context) error {
	defer h.teardown(ctx)

	if err := h.handshake(ctx); err != nil {
		return err
	}

	for {
		msg, err := h.codec.Receive()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if classified, ok := errkind.As(err); ok {
				_ = h.codec.SendError(classified)
			}
			return err
		}

		if err := h.dispatch(ctx, msg); err != nil {
			if classified, ok := errkind.As(err); ok {
				_ = h.codec.SendError(classified)
				if classified.Kind == errkind.Protocol {
					return err // protocol violations terminate the session, spec §4.9
				}
				continue
			}
			return err
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, msg pgproto3.FrontendMessage) error {
	switch m := msg.(type) {
	case *pgproto3.Query:
		return h.handleSimpleQuery(ctx, m)
	case *pgproto3.Parse:
		return h.handleParse(ctx, m)
	case *pgproto3.Bind:
		return h.handleBind(ctx, m)
	case *pgproto3.Describe:
		return h.handleDescribe(ctx, m)
	case *pgproto3.Execute:
		return h.handleExecute(ctx, m)
	case *pgproto3.Sync:
		return h.handleSync()
	case *pgproto3.Flush:
		return h.codec.Flush()
	case *pgproto3.Close:
		return h.handleClose(m)
	case *pgproto3.Terminate:
		return io.EOF
	default:
		return errkind.New(errkind.Protocol, "unexpected message in Ready state")
	}
}

func (h *Handler) handleSync() error {
	h.codec.Send(wire.ReadyForQuery(byte(h.sess.TransactionStatus())))
	return h.codec.Flush()
}

func (h *Handler) handleClose(m *pgproto3.Close) error {
	switch m.ObjectType {
	case 'S':
		h.sess.CloseStatement(m.Name)
	case 'P':
		h.sess.ClosePortal(m.Name)
	}
	h.codec.Send(&pgproto3.CloseComplete{})
	return nil
}

func (h *Handler) teardown(ctx context.Context) {
	if h.sess.Conn != nil {
		_ = h.sess.Conn.Close()
	}
	_ = h.codec.Close()
}

func clientIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
