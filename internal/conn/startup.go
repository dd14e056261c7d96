// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"context"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
	"github.com/erans/pgsqlite-sub001/internal/session"
	"github.com/erans/pgsqlite-sub001/internal/wire"
)

// handshake runs the Initial -> Ready transition spec.md §4.9
// describes: SSLRequest negotiation (declined, since TLS upgrade is an
// outer-surface concern handled before Handler construction when a
// cert is configured), StartupMessage, trust authentication, and the
// fixed ParameterStatus/BackendKeyData/ReadyForQuery reply sequence.
func (h *Handler) handshake(ctx context.Context) error {
	msg, err := h.codec.ReceiveStartupMessage()
	if err != nil {
		return err
	}

	if wire.IsSSLRequest(msg) {
		if err := h.codec.RejectSSL(); err != nil {
			return err
		}
		msg, err = h.codec.ReceiveStartupMessage()
		if err != nil {
			return err
		}
	}

	startup, ok := msg.(*pgproto3.StartupMessage)
	if !ok {
		return errkind.New(errkind.Protocol, "expected StartupMessage")
	}

	h.sess.Database = startup.Parameters["database"]
	if h.sess.Database == "" {
		h.sess.Database = startup.Parameters["user"]
	}
	h.sess.User = startup.Parameters["user"]
	for k, v := range startup.Parameters {
		h.sess.Parameters[k] = v
	}

	sqlConn, err := h.cfg.Router.Writer().Conn(ctx)
	if err != nil {
		return err
	}
	h.sess.Conn = sqlConn

	params := wire.DefaultServerParameters(h.cfg.ServerVersion)
	params["application_name"] = startup.Parameters["application_name"]
	for _, msg := range wire.StartupReplies(params, h.pid, h.pid) {
		h.codec.Send(msg)
	}
	return h.codec.Flush()
}

// sessionParamsSnapshot returns the runtime parameters CE's SHOW
// handling resolves against, always including the negotiated server
// version so `SHOW server_version` works even though it was only ever
// sent as a ParameterStatus, not stored under that exact session key.
func sessionParamsSnapshot(sess *session.Session, serverVersion string) map[string]string {
	snap := make(map[string]string, len(sess.Parameters)+1)
	for k, v := range sess.Parameters {
		snap[k] = v
	}
	snap["server_version"] = serverVersion
	return snap
}
