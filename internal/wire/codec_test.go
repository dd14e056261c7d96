// SPDX-License-Identifier: Apache-2.0

package wire_test

import (
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erans/pgsqlite-sub001/internal/wire"
)

func TestCodecSendReceiveRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	serverCodec := wire.NewCodec(serverConn, wire.Limits{})
	frontend := pgproto3.NewFrontend(clientConn, clientConn)

	done := make(chan error, 1)
	go func() {
		serverCodec.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
		done <- serverCodec.Flush()
	}()

	msg, err := frontend.Receive()
	require.NoError(t, err)
	rfq, ok := msg.(*pgproto3.ReadyForQuery)
	require.True(t, ok)
	assert.Equal(t, byte('I'), rfq.TxStatus)
	require.NoError(t, <-done)
}

func TestCheckLimitsRejectsOversizedQuery(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	codec := wire.NewCodec(serverConn, wire.Limits{MaxStringBytes: 4})
	frontend := pgproto3.NewFrontend(clientConn, clientConn)

	go func() {
		frontend.Send(&pgproto3.Query{String: "SELECT 1"})
		_ = frontend.Flush()
	}()

	_, err := codec.Receive()
	assert.Error(t, err)
}
