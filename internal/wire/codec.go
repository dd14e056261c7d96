// SPDX-License-Identifier: Apache-2.0

// Package wire is the Protocol Codec (PC): framed PostgreSQL v3 wire
// protocol I/O on top of github.com/jackc/pgx/v5/pgproto3, with the
// message-size, parameter-count, and string-length limits spec.md §4.8
// enforces before a message is handed to the Connection Handler.
package wire

import (
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/erans/pgsqlite-sub001/internal/config"
	"github.com/erans/pgsqlite-sub001/internal/errkind"
)

// Codec wraps one client connection's framed reader/writer, the same
// role pgroll's migration runner gives its *sql.Conn: a single place
// that owns the raw stream and exposes typed operations on it.
type Codec struct {
	conn    net.Conn
	backend *pgproto3.Backend
	limits  Limits
}

// Limits are the subset of config.Config the codec enforces on every
// inbound message, independent of what the Connection Handler does
// with the decoded result.
type Limits struct {
	MaxMessageBytes int
	MaxParamCount   int
	MaxStringBytes  int
	ReadDeadline    time.Duration
}

// LimitsFromConfig extracts the codec-relevant knobs from the full
// gateway configuration.
func LimitsFromConfig(cfg config.Config) Limits {
	return Limits{
		MaxMessageBytes: cfg.MaxMessageBytes,
		MaxParamCount:   cfg.MaxParamCount,
		MaxStringBytes:  cfg.MaxStringBytes,
		ReadDeadline:    cfg.ReadDeadline,
	}
}

// NewCodec builds a codec around an accepted client connection. The
// backend is constructed with the connection as both reader and
// writer, matching the pattern pgx/v5/pgproto3 consumers use for a
// plain net.Conn.
func NewCodec(conn net.Conn, limits Limits) *Codec {
	return &Codec{
		conn:    conn,
		backend: pgproto3.NewBackend(conn, conn),
		limits:  limits,
	}
}

// Conn exposes the underlying connection, e.g. for RemoteAddr() in
// audit logging or for wrapping in tls.Server on an SSLRequest.
func (c *Codec) Conn() net.Conn { return c.conn }

// UpgradeTLS replaces the underlying connection and backend with a TLS
// server-side connection, after the codec has already written the 'S'
// SSLRequest reply byte. Mirrors the handshake libpq expects: a single
// byte response to SSLRequest, then a TLS ClientHello on the same
// socket.
func (c *Codec) UpgradeTLS(tlsConfig *tls.Config) error {
	tlsConn := tls.Server(c.conn, tlsConfig)
	if err := tlsConn.Handshake(); err != nil {
		return errkind.Wrap(errkind.Protocol, "tls handshake failed", err)
	}
	c.conn = tlsConn
	c.backend = pgproto3.NewBackend(tlsConn, tlsConn)
	return nil
}

// ReceiveStartupMessage reads the very first message on the wire,
// which per the v3 protocol has no leading type byte and may be a
// StartupMessage, SSLRequest, GSSEncRequest, or CancelRequest.
func (c *Codec) ReceiveStartupMessage() (pgproto3.FrontendMessage, error) {
	c.applyReadDeadline()
	msg, err := c.backend.ReceiveStartupMessage()
	if err != nil {
		return nil, errkind.Wrap(errkind.Protocol, "reading startup message", err)
	}
	return msg, nil
}

// Receive reads the next typed frontend message (Query, Parse, Bind,
// Describe, Execute, Sync, Flush, Close, Terminate, PasswordMessage,
// ...) and enforces the size/count limits spec.md §4.8 names before
// returning it to the caller.
func (c *Codec) Receive() (pgproto3.FrontendMessage, error) {
	c.applyReadDeadline()
	msg, err := c.backend.Receive()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errkind.Wrap(errkind.Protocol, "reading frontend message", err)
	}
	if err := c.checkLimits(msg); err != nil {
		return msg, err
	}
	return msg, nil
}

func (c *Codec) applyReadDeadline() {
	if c.limits.ReadDeadline > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.limits.ReadDeadline))
	}
}

// Send queues a backend message for the client. Backend.Send buffers
// into an internal slice; call Flush to push bytes onto the wire.
func (c *Codec) Send(msg pgproto3.BackendMessage) {
	c.backend.Send(msg)
}

// SendAll queues every message in order, a convenience for the common
// case of a fixed response sequence (e.g. ParseComplete then
// ReadyForQuery).
func (c *Codec) SendAll(msgs ...pgproto3.BackendMessage) {
	for _, msg := range msgs {
		c.backend.Send(msg)
	}
}

// Flush writes every message queued since the last Flush to the
// connection.
func (c *Codec) Flush() error {
	if err := c.backend.Flush(); err != nil {
		return errkind.Wrap(errkind.Io, "flushing response", err)
	}
	return nil
}

// SendError queues an ErrorResponse built from a classified error and
// flushes immediately, matching the protocol's requirement that
// ErrorResponse end the current message group.
func (c *Codec) SendError(err *errkind.Error) error {
	c.Send(ErrorResponseFor(err))
	return c.Flush()
}

// Close closes the underlying connection.
func (c *Codec) Close() error {
	return c.conn.Close()
}
