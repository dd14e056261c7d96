// SPDX-License-Identifier: Apache-2.0

package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
	"github.com/erans/pgsqlite-sub001/internal/session"
)

func TestLookupUnknownStatementIsProtocolError(t *testing.T) {
	s := session.New()
	_, err := s.LookupStatement("missing")
	require.Error(t, err)
	assert.Equal(t, errkind.Protocol, errkind.Classify(err).Kind)
}

func TestStorePortalRejectsUnknownStatement(t *testing.T) {
	s := session.New()
	err := s.StorePortal(&session.Portal{Name: "p1", StatementName: "nope"})
	assert.Error(t, err)
}

func TestCloseStatementCascadesToPortals(t *testing.T) {
	s := session.New()
	s.StoreStatement(&session.PreparedStatement{Name: "stmt1", RawSQL: "SELECT 1"})
	require.NoError(t, s.StorePortal(&session.Portal{Name: "portal1", StatementName: "stmt1"}))

	_, err := s.LookupPortal("portal1")
	require.NoError(t, err)

	s.CloseStatement("stmt1")

	_, err = s.LookupPortal("portal1")
	assert.Error(t, err)
	_, err = s.LookupStatement("stmt1")
	assert.Error(t, err)
}

func TestUnnamedStatementOverwriteClosesStalePortals(t *testing.T) {
	s := session.New()
	s.StoreStatement(&session.PreparedStatement{Name: "", RawSQL: "SELECT 1"})
	require.NoError(t, s.StorePortal(&session.Portal{Name: "", StatementName: ""}))

	s.StoreStatement(&session.PreparedStatement{Name: "", RawSQL: "SELECT 2"})

	_, err := s.LookupPortal("")
	assert.Error(t, err, "redefining the unnamed statement should cascade-close the unnamed portal bound to it")
}

func TestClosePortalDoesNotAffectStatement(t *testing.T) {
	s := session.New()
	s.StoreStatement(&session.PreparedStatement{Name: "stmt1", RawSQL: "SELECT 1"})
	require.NoError(t, s.StorePortal(&session.Portal{Name: "portal1", StatementName: "stmt1"}))

	s.ClosePortal("portal1")

	_, err := s.LookupStatement("stmt1")
	assert.NoError(t, err)
	_, err = s.LookupPortal("portal1")
	assert.Error(t, err)
}

func TestTransactionStatusDefaultsToIdle(t *testing.T) {
	s := session.New()
	assert.Equal(t, session.TxIdle, s.TransactionStatus())
	s.SetTransactionStatus(session.TxInTx)
	assert.Equal(t, session.TxInTx, s.TransactionStatus())
}
