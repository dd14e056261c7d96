// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"github.com/jackc/pgx/v5/pgproto3"
)

// sslRequestCode is the magic startup code libpq sends in an
// SSLRequest's length+code preamble. pgproto3's ReceiveStartupMessage
// recognizes it itself and returns a *pgproto3.SSLRequest; nothing in
// this package reads the constant.
const sslRequestCode = 80877103

// IsSSLRequest reports whether a message returned from
// ReceiveStartupMessage was an SSLRequest rather than a StartupMessage.
func IsSSLRequest(msg pgproto3.FrontendMessage) bool {
	_, ok := msg.(*pgproto3.SSLRequest)
	return ok
}

// RejectSSL writes the single 'N' byte libpq expects when the server
// declines to negotiate TLS, leaving the plaintext connection open for
// a subsequent StartupMessage.
func (c *Codec) RejectSSL() error {
	_, err := c.conn.Write([]byte{'N'})
	return err
}

// AcceptSSL writes the single 'S' byte that tells the client to begin
// a TLS handshake on the same socket. Callers follow this with
// UpgradeTLS.
func (c *Codec) AcceptSSL() error {
	_, err := c.conn.Write([]byte{'S'})
	return err
}

// ReadyForQuery builds the ReadyForQuery message for the given
// transaction status ('I' idle, 'T' in transaction, 'E' failed
// transaction), spec.md §4.1's end-of-cycle marker.
func ReadyForQuery(txStatus byte) *pgproto3.ReadyForQuery {
	return &pgproto3.ReadyForQuery{TxStatus: txStatus}
}

// StartupReplies builds the fixed sequence of messages the gateway
// sends after accepting a StartupMessage and authenticating the
// client: AuthenticationOk, the negotiated ParameterStatus set,
// BackendKeyData, and a final ReadyForQuery.
func StartupReplies(params map[string]string, pid, secretKey uint32) []pgproto3.BackendMessage {
	msgs := make([]pgproto3.BackendMessage, 0, len(params)+3)
	msgs = append(msgs, &pgproto3.AuthenticationOk{})
	for k, v := range params {
		msgs = append(msgs, &pgproto3.ParameterStatus{Name: k, Value: v})
	}
	msgs = append(msgs, &pgproto3.BackendKeyData{ProcessID: pid, SecretKey: secretKey})
	msgs = append(msgs, ReadyForQuery('I'))
	return msgs
}

// DefaultServerParameters are the ParameterStatus values spec.md §2
// names as part of the Session Store's startup handshake, matching
// what a real PostgreSQL server advertises so clients don't special
// case the gateway.
func DefaultServerParameters(version string) map[string]string {
	return map[string]string{
		"server_version":    version,
		"server_encoding":   "UTF8",
		"client_encoding":   "UTF8",
		"DateStyle":         "ISO, MDY",
		"IntervalStyle":     "postgres",
		"TimeZone":          "UTC",
		"integer_datetimes": "on",
		"standard_conforming_strings": "on",
	}
}
