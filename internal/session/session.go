// SPDX-License-Identifier: Apache-2.0

// Package session is the Session Store (S): per-connection prepared
// statement and portal bookkeeping, transaction status, and the
// session's privately owned engine handle. Mirrors the ownership
// pattern pgroll's pkg/state.State uses for a schema's migration
// state, narrowed to one goroutine per Session so no locking is
// needed beyond what the caller (Connection Handler) already
// serializes.
package session

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
)

// Cursor is a suspended portal's unread result state, opaque to the
// Session Store: the Connection Handler is the only package that
// knows what's behind it (a live *sql.Rows, or a materialized slice
// for statements that had to fully drain before executing, e.g.
// DELETE ... RETURNING). Held here only so PortalSuspended handling
// survives repeated Execute calls on the same portal, per spec §4.9.
type Cursor interface {
	Close() error
}

// TxStatus is the session's current transaction state, reported in
// ReadyForQuery.
type TxStatus byte

const (
	TxIdle   TxStatus = 'I'
	TxInTx   TxStatus = 'T'
	TxFailed TxStatus = 'E'
)

// PreparedStatement is a named (or unnamed, name=="") parsed query
// bound to a session, per spec §3 "PreparedStatement".
type PreparedStatement struct {
	Name            string
	RawSQL          string
	TranslatedSQL   string
	ParamOIDs       []uint32
	ParamFormats    []int16
	FieldsDescribed bool
	Fields          []FieldInfo
}

// FieldInfo is the per-column description a prepared statement's
// Describe reports when FieldsDescribed is set; no code path in this
// repository sets it.
type FieldInfo struct {
	Name       string
	TypeOID    uint32
	TypeHint   string
	NotNull    bool
}

// Portal is a bound, executable instance of a PreparedStatement, per
// spec §3 "Portal".
type Portal struct {
	Name            string
	StatementName   string
	Query           string
	ParamValues     [][]byte
	ParamFormats    []int16
	ResultFormats   []int16
	InferredParams  []uint32

	// Open holds a suspended portal's unread rows across repeated
	// Execute calls when a prior call stopped early at MaxRows, per spec
	// §4.9's PortalSuspended handling. Nil once the portal is exhausted
	// or has never executed.
	Open Cursor
}

// closeOpenRows releases a suspended portal's cursor, used when the
// portal is closed or overwritten before being fully drained.
func (p *Portal) closeOpenRows() {
	if p.Open != nil {
		_ = p.Open.Close()
		p.Open = nil
	}
}

// Session holds every piece of per-connection state the Connection
// Handler needs across the lifetime of one client connection: named
// statements/portals, runtime parameters, transaction status, and the
// session's own engine handle (acquired at session start, released at
// session end per spec §3 "Lifecycles").
type Session struct {
	ID         string
	Database   string
	User       string
	Parameters map[string]string
	Status     TxStatus

	statements map[string]*PreparedStatement
	portals    map[string]*Portal
	// statementPortals tracks, per statement name, the set of portal
	// names bound to it, so CloseStatement can cascade per spec §3
	// "closing a statement implicitly closes portals that reference it".
	statementPortals map[string]map[string]struct{}

	Conn *sql.Conn
}

// New creates an empty Session with a fresh id, ready to receive a
// StartupMessage's parameters.
func New() *Session {
	return &Session{
		ID:               uuid.NewString(),
		Parameters:       make(map[string]string),
		Status:           TxIdle,
		statements:       make(map[string]*PreparedStatement),
		portals:          make(map[string]*Portal),
		statementPortals: make(map[string]map[string]struct{}),
	}
}

// StoreStatement registers a prepared statement under name, per spec
// §4.6 "store_statement": an existing statement under the same name
// (including the unnamed statement, name=="") is overwritten, and any
// portals still bound to the prior statement are cascaded closed
// first since they now reference a stale definition.
func (s *Session) StoreStatement(stmt *PreparedStatement) {
	if _, exists := s.statements[stmt.Name]; exists {
		s.closeStatementPortals(stmt.Name)
	}
	s.statements[stmt.Name] = stmt
	s.statementPortals[stmt.Name] = make(map[string]struct{})
}

// StorePortal registers a portal under name, per spec §4.6
// "store_portal": same overwrite semantics as StoreStatement.
func (s *Session) StorePortal(p *Portal) error {
	if _, ok := s.statements[p.StatementName]; !ok {
		return errkind.New(errkind.Protocol, "portal references unknown statement "+quoteName(p.StatementName))
	}
	if existing, exists := s.portals[p.Name]; exists {
		existing.closeOpenRows()
		s.unbindPortal(existing.StatementName, existing.Name)
	}
	s.portals[p.Name] = p
	s.bindPortal(p.StatementName, p.Name)
	return nil
}

// LookupStatement returns the named prepared statement, or
// Protocol(UnknownName) if absent, per spec §4.6.
func (s *Session) LookupStatement(name string) (*PreparedStatement, error) {
	stmt, ok := s.statements[name]
	if !ok {
		return nil, errkind.New(errkind.Protocol, "unknown prepared statement "+quoteName(name))
	}
	return stmt, nil
}

// LookupPortal returns the named portal, or Protocol(UnknownName) if
// absent, per spec §4.6.
func (s *Session) LookupPortal(name string) (*Portal, error) {
	p, ok := s.portals[name]
	if !ok {
		return nil, errkind.New(errkind.Protocol, "unknown portal "+quoteName(name))
	}
	return p, nil
}

// CloseStatement removes a prepared statement and cascades to every
// portal bound to it, per spec §3's cascade invariant.
func (s *Session) CloseStatement(name string) {
	s.closeStatementPortals(name)
	delete(s.statements, name)
	delete(s.statementPortals, name)
}

// ClosePortal removes a single portal without affecting its
// statement.
func (s *Session) ClosePortal(name string) {
	if p, ok := s.portals[name]; ok {
		p.closeOpenRows()
		s.unbindPortal(p.StatementName, name)
		delete(s.portals, name)
	}
}

// TransactionStatus returns the session's last-observed transaction
// state, per spec §4.6 "transaction_status()".
func (s *Session) TransactionStatus() TxStatus { return s.Status }

// SetTransactionStatus updates the session's transaction state after
// the engine reports a BEGIN/COMMIT/ROLLBACK or a statement failure.
func (s *Session) SetTransactionStatus(status TxStatus) { s.Status = status }

func (s *Session) bindPortal(stmtName, portalName string) {
	set, ok := s.statementPortals[stmtName]
	if !ok {
		set = make(map[string]struct{})
		s.statementPortals[stmtName] = set
	}
	set[portalName] = struct{}{}
}

func (s *Session) unbindPortal(stmtName, portalName string) {
	if set, ok := s.statementPortals[stmtName]; ok {
		delete(set, portalName)
	}
}

func (s *Session) closeStatementPortals(stmtName string) {
	for portalName := range s.statementPortals[stmtName] {
		if p, ok := s.portals[portalName]; ok {
			p.closeOpenRows()
		}
		delete(s.portals, portalName)
	}
	delete(s.statementPortals, stmtName)
}

func quoteName(name string) string {
	if name == "" {
		return "\"\" (unnamed)"
	}
	return "\"" + name + "\""
}
