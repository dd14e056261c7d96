// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/lib/pq"

	"github.com/erans/pgsqlite-sub001/internal/cache"
	"github.com/erans/pgsqlite-sub001/internal/catalog"
	"github.com/erans/pgsqlite-sub001/internal/engine"
	"github.com/erans/pgsqlite-sub001/internal/errkind"
	"github.com/erans/pgsqlite-sub001/internal/security"
	"github.com/erans/pgsqlite-sub001/internal/session"
	"github.com/erans/pgsqlite-sub001/internal/translate"
	"github.com/erans/pgsqlite-sub001/internal/types"
	"github.com/erans/pgsqlite-sub001/internal/wire"
)

// rowCursor is the Connection Handler's private Portal.Cursor
// implementation: either a live *sql.Rows still being drained, or a
// fully materialized slice for statements (DELETE ... RETURNING) that
// had to read their result before running the mutation, per spec
// §4.5's RETURNING emulation note.
type rowCursor struct {
	cols []wire.Column
	verb string

	live *sql.Rows

	materialized [][]any
	idx          int
}

func (c *rowCursor) Close() error {
	if c.live != nil {
		return c.live.Close()
	}
	return nil
}

// next fetches the next row's values into dest (len(dest) ==
// len(c.cols)), reporting ok=false once exhausted.
func (c *rowCursor) next(dest []any) (ok bool, err error) {
	if c.live != nil {
		if !c.live.Next() {
			return false, c.live.Err()
		}
		return true, c.live.Scan(dest...)
	}
	if c.idx >= len(c.materialized) {
		return false, nil
	}
	copy(dest, c.materialized[c.idx])
	c.idx++
	return true, nil
}

// runPipeline is the Execution Pipeline: Security Envelope checks,
// fast-path/cache/translate dispatch, engine execution against the
// session's own connection, and response encoding. Grounded on kqlite's
// ClientConn.handleQuery control flow, generalized to run CE+TR+QC
// instead of passing SQL straight to SQLite.
func (h *Handler) runPipeline(ctx context.Context, stmt *session.PreparedStatement, portal *session.Portal, maxRows int) error {
	if portal.Open != nil {
		return h.resumeCursor(portal, maxRows)
	}

	if h.cfg.Limiter != nil && !h.cfg.Limiter.Allow(h.ip) {
		h.audit(stmt.RawSQL, security.Warning, "rate limit exceeded")
		return errkind.RateLimitExceeded("rate limit exceeded")
	}
	if h.cfg.Breaker != nil && !h.cfg.Breaker.Allow() {
		return errkind.New(errkind.Storage, "circuit breaker open, rejecting query")
	}

	rawSQL := stmt.RawSQL
	fastPath := translate.IsFastPathEligible(rawSQL)

	if !fastPath && h.cfg.Analyzer != nil {
		analysis := h.cfg.Analyzer.Analyze(rawSQL)
		if analysis.Rejected() {
			h.audit(rawSQL, security.High, "query rejected by injection analyzer")
			return errkind.New(errkind.Validation, "query rejected: "+analysis.Findings[0].Detail)
		}
	}

	args, err := decodeParams(h.cfg.Types, stmt.ParamOIDs, portal.ParamFormats, portal.ParamValues)
	if err != nil {
		return err
	}

	class := catalog.Classify(rawSQL)
	switch {
	case class.Scalar != catalog.ScalarNone:
		return h.execScalar(class.Scalar)
	case class.ShowParameter != "":
		return h.execShowParameter(class.ShowParameter)
	}

	if fastPath {
		return h.execDirect(ctx, rawSQL, args, portal, maxRows)
	}
	return h.execTranslated(ctx, stmt, portal, args, maxRows)
}

func (h *Handler) audit(query string, sev security.Severity, message string) {
	if h.cfg.Audit == nil {
		return
	}
	h.cfg.Audit.Log(security.Event{
		Severity:  sev,
		ClientIP:  h.ip,
		SessionID: h.sess.ID,
		Database:  h.sess.Database,
		User:      h.sess.User,
		Query:     query,
		Message:   message,
	})
}

func (h *Handler) recordFailure() {
	if h.cfg.Breaker != nil {
		h.cfg.Breaker.RecordFailure()
	}
}

func (h *Handler) recordSuccess() {
	if h.cfg.Breaker != nil {
		h.cfg.Breaker.RecordSuccess()
	}
}

// execScalar answers a zero-argument introspection function
// recognized by the Catalog Emulator without touching SQLite.
func (h *Handler) execScalar(fn catalog.ScalarFunction) error {
	col, val := catalog.SynthesizeScalar(fn, h.sess.Database, h.sess.User, h.pid, h.cfg.ServerVersion)
	return h.sendSingleRow(col, val, "SELECT")
}

// execShowParameter answers SHOW from session parameters without
// touching SQLite.
func (h *Handler) execShowParameter(name string) error {
	val, ok := catalog.ResolveShowParameter(name, sessionParamsSnapshot(h.sess, h.cfg.ServerVersion))
	if !ok {
		return errkind.New(errkind.InvalidParameter, "unrecognized configuration parameter \""+name+"\"")
	}
	return h.sendSingleRow(name, val, "SHOW")
}

func (h *Handler) sendSingleRow(col string, val any, verb string) error {
	textConv, _ := h.cfg.Types.ByName("text")
	cols := []wire.Column{{Name: col, ColNumber: 1, Converter: textConv}}
	row, err := wire.EncodeRow(cols, []any{fmt.Sprintf("%v", val)})
	if err != nil {
		return err
	}
	h.codec.Send(wire.RowDescription(cols))
	h.codec.Send(row)
	h.codec.Send(wire.CommandComplete(verb, 1))
	return nil
}

// execDirect runs a fast-path-eligible statement's text unmodified,
// per spec §4.5 "Fast-path gate": parameters bind directly, no AST
// walk, no cache lookup.
func (h *Handler) execDirect(ctx context.Context, sqlText string, args []any, portal *session.Portal, maxRows int) error {
	verb := leadingVerb(sqlText)
	if isRowReturning(verb) {
		rows, err := engine.QueryOnConn(ctx, h.sess.Conn, sqlText, args...)
		if err != nil {
			h.recordFailure()
			return err
		}
		h.recordSuccess()
		return h.streamRows(rows, portal, maxRows, verb)
	}

	res, err := engine.ExecOnConn(ctx, h.sess.Conn, sqlText, args...)
	if err != nil {
		h.recordFailure()
		return err
	}
	h.recordSuccess()
	h.updateTxStatus(verb)
	n, _ := res.RowsAffected()
	h.codec.Send(wire.CommandComplete(verb, n))
	return nil
}

// execTranslated runs the AST-walking slow path: Query Cache lookup,
// Translator invocation on a miss, then CREATE TABLE / RETURNING /
// plain-statement dispatch.
func (h *Handler) execTranslated(ctx context.Context, stmt *session.PreparedStatement, portal *session.Portal, args []any, maxRows int) error {
	rawSQL := stmt.RawSQL
	nonDeterministic := cache.IsNonDeterministic(rawSQL)
	fingerprint := cache.Fingerprint(rawSQL, stmt.ParamOIDs)

	var rewrittenSQL string
	var result *translate.Result
	var cachedMeta cache.ExecutionMetadata
	cacheHit := false

	if !nonDeterministic && h.cfg.Cache != nil {
		if meta, ok := h.cfg.Cache.Get(fingerprint); ok {
			rewrittenSQL = meta.RewrittenSQL
			cachedMeta = meta
			cacheHit = true
		}
	}

	if rewrittenSQL == "" {
		var err error
		result, err = translate.Translate(rawSQL)
		if err != nil {
			h.recordFailure()
			return err
		}
		rewrittenSQL = result.SQL
	}

	if result != nil && result.CreateTable != nil {
		return h.execCreateTable(ctx, result.CreateTable)
	}
	if result != nil && result.HasReturning {
		return h.execReturning(ctx, result, args, portal, maxRows)
	}

	cacheable := result != nil && !nonDeterministic && h.cfg.Cache != nil
	verb := leadingVerb(rawSQL)

	if isRowReturning(verb) {
		rows, err := engine.QueryOnConn(ctx, h.sess.Conn, rewrittenSQL, args...)
		if err != nil {
			h.recordFailure()
			return err
		}

		var cols []wire.Column
		if cacheHit && len(cachedMeta.Columns) > 0 {
			cols = columnsFromMetadata(cachedMeta, h.cfg.Types, portal.ResultFormats)
		} else {
			cols, err = columnsForRows(rows, h.cfg.Types, portal.ResultFormats)
			if err != nil {
				rows.Close()
				h.recordFailure()
				return err
			}
		}

		if cacheable {
			h.cfg.Cache.Put(fingerprint, metadataFromColumns(cols, h.cfg.Types, rewrittenSQL, len(args)))
		}
		h.recordSuccess()
		cursor := &rowCursor{cols: cols, verb: verb, live: rows}
		return h.sendFromCursor(cursor, portal, maxRows)
	}

	res, err := engine.ExecOnConn(ctx, h.sess.Conn, rewrittenSQL, args...)
	if err != nil {
		h.recordFailure()
		return err
	}
	if cacheable {
		h.cfg.Cache.Put(fingerprint, cache.ExecutionMetadata{RewrittenSQL: rewrittenSQL, ExpectedParams: len(args)})
	}
	h.recordSuccess()
	h.updateTxStatus(verb)
	n, _ := res.RowsAffected()
	h.codec.Send(wire.CommandComplete(verb, n))
	return nil
}

// execCreateTable runs a translated CREATE TABLE and persists its
// column metadata into the authoritative schema catalog so the Type
// Registry and Catalog Emulator can resolve this table's columns
// later, per spec §4.1 "Metadata Catalog".
func (h *Handler) execCreateTable(ctx context.Context, ct *translate.CreateTableResult) error {
	if _, err := engine.ExecOnConn(ctx, h.sess.Conn, ct.DDL); err != nil {
		h.recordFailure()
		return err
	}
	for _, col := range ct.Columns {
		_, err := engine.ExecOnConn(ctx, h.sess.Conn,
			`INSERT INTO __pgsqlite_schema ("table", "column", pg_type, sqlite_type, type_modifier)
			 VALUES (?, ?, ?, ?, NULL)
			 ON CONFLICT("table", "column") DO UPDATE SET pg_type = excluded.pg_type, sqlite_type = excluded.sqlite_type`,
			col.Table, col.Column, col.PGType, col.SQLiteType)
		if err != nil {
			h.recordFailure()
			return errkind.Wrap(errkind.Storage, "persisting column schema", err)
		}
	}
	_, err := engine.ExecOnConn(ctx, h.sess.Conn,
		`INSERT INTO __pgsqlite_table_oids (table_name, oid) VALUES (?, ?)
		 ON CONFLICT(table_name) DO UPDATE SET oid = excluded.oid`,
		ct.TableName, catalog.TableOID(ct.TableName))
	if err != nil {
		h.recordFailure()
		return errkind.Wrap(errkind.Storage, "registering table oid", err)
	}
	h.recordSuccess()
	h.codec.Send(wire.CommandComplete("CREATE TABLE", 0))
	return nil
}

// execReturning emulates INSERT/UPDATE/DELETE RETURNING, none of
// which SQLite supports, per spec §4.5's documented emulation
// strategy: INSERT re-queries by last_insert_rowid(), UPDATE captures
// matching rowids before mutating and re-queries by rowid after, and
// DELETE captures the full row image before the row disappears.
func (h *Handler) execReturning(ctx context.Context, result *translate.Result, args []any, portal *session.Portal, maxRows int) error {
	switch {
	case result.IsInsert:
		return h.execInsertReturning(ctx, result, args, portal, maxRows)
	case result.IsUpdate:
		return h.execUpdateReturning(ctx, result, args, portal, maxRows)
	case result.IsDelete:
		return h.execDeleteReturning(ctx, result, args, portal, maxRows)
	default:
		return errkind.New(errkind.NotSupported, "RETURNING is only supported on INSERT, UPDATE, and DELETE")
	}
}

func (h *Handler) execInsertReturning(ctx context.Context, result *translate.Result, args []any, portal *session.Portal, maxRows int) error {
	res, err := engine.ExecOnConn(ctx, h.sess.Conn, result.SQL, args...)
	if err != nil {
		h.recordFailure()
		return err
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		h.recordFailure()
		return errkind.Wrap(errkind.Storage, "reading inserted row id", err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE rowid = ?", quoteColumnList(result.ReturningCols), quoteIdentSQL(result.TableName))
	rows, err := engine.QueryOnConn(ctx, h.sess.Conn, query, rowid)
	if err != nil {
		h.recordFailure()
		return err
	}
	h.recordSuccess()
	return h.streamRows(rows, portal, maxRows, "INSERT")
}

func (h *Handler) execUpdateReturning(ctx context.Context, result *translate.Result, args []any, portal *session.Portal, maxRows int) error {
	tbl := quoteIdentSQL(result.TableName)
	captureQuery := "SELECT rowid FROM " + tbl
	if result.WhereSQL != "" {
		captureQuery += " WHERE " + result.WhereSQL
	}

	rowids, err := h.captureRowids(ctx, captureQuery, args)
	if err != nil {
		h.recordFailure()
		return err
	}

	if _, err := engine.ExecOnConn(ctx, h.sess.Conn, result.SQL, args...); err != nil {
		h.recordFailure()
		return err
	}

	if len(rowids) == 0 {
		h.recordSuccess()
		h.codec.Send(wire.CommandComplete("UPDATE", 0))
		return nil
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE rowid IN (%s)",
		quoteColumnList(result.ReturningCols), tbl, placeholders(len(rowids)))
	rowArgs := make([]any, len(rowids))
	for i, id := range rowids {
		rowArgs[i] = id
	}
	rows, err := engine.QueryOnConn(ctx, h.sess.Conn, query, rowArgs...)
	if err != nil {
		h.recordFailure()
		return err
	}
	h.recordSuccess()
	return h.streamRows(rows, portal, maxRows, "UPDATE")
}

func (h *Handler) execDeleteReturning(ctx context.Context, result *translate.Result, args []any, portal *session.Portal, maxRows int) error {
	tbl := quoteIdentSQL(result.TableName)
	captureQuery := fmt.Sprintf("SELECT %s FROM %s", quoteColumnList(result.ReturningCols), tbl)
	if result.WhereSQL != "" {
		captureQuery += " WHERE " + result.WhereSQL
	}

	rows, err := engine.QueryOnConn(ctx, h.sess.Conn, captureQuery, args...)
	if err != nil {
		h.recordFailure()
		return err
	}
	cols, err := columnsForRows(rows, h.cfg.Types, portal.ResultFormats)
	if err != nil {
		rows.Close()
		h.recordFailure()
		return err
	}
	materialized, err := drainRows(rows, len(cols))
	if err != nil {
		h.recordFailure()
		return err
	}

	if _, err := engine.ExecOnConn(ctx, h.sess.Conn, result.SQL, args...); err != nil {
		h.recordFailure()
		return err
	}
	h.recordSuccess()

	cursor := &rowCursor{cols: cols, verb: "DELETE", materialized: materialized}
	return h.sendFromCursor(cursor, portal, maxRows)
}

// captureRowids runs a "SELECT rowid FROM ..." query and collects the
// full result into memory; used ahead of an UPDATE so the affected
// rows can be re-queried by rowid afterward.
func (h *Handler) captureRowids(ctx context.Context, query string, args []any) ([]int64, error) {
	rows, err := engine.QueryOnConn(ctx, h.sess.Conn, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errkind.Wrap(errkind.Storage, "scanning captured rowid", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// drainRows reads every remaining row of rows into memory and closes
// it, used when the cursor must be freed before the connection can
// run a follow-up statement.
func drainRows(rows *sql.Rows, ncols int) ([][]any, error) {
	defer rows.Close()
	var out [][]any
	for rows.Next() {
		vals := make([]any, ncols)
		ptrs := make([]any, ncols)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errkind.Wrap(errkind.Storage, "scanning result row", err)
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// streamRows builds the column descriptions for a live *sql.Rows and
// sends rows to the client, honoring maxRows.
func (h *Handler) streamRows(rows *sql.Rows, portal *session.Portal, maxRows int, verb string) error {
	cols, err := columnsForRows(rows, h.cfg.Types, portal.ResultFormats)
	if err != nil {
		rows.Close()
		return err
	}
	cursor := &rowCursor{cols: cols, verb: verb, live: rows}
	return h.sendFromCursor(cursor, portal, maxRows)
}

// sendFromCursor sends RowDescription then hands off to drainCursor,
// for a portal's first Execute.
func (h *Handler) sendFromCursor(cursor *rowCursor, portal *session.Portal, maxRows int) error {
	h.codec.Send(wire.RowDescription(cursor.cols))
	return h.drainCursor(cursor, portal, maxRows)
}

// resumeCursor continues a portal suspended by a prior Execute's
// MaxRows limit. RowDescription is not resent: the client already
// received it on the portal's first Execute.
func (h *Handler) resumeCursor(portal *session.Portal, maxRows int) error {
	cursor, ok := portal.Open.(*rowCursor)
	if !ok {
		return errkind.New(errkind.Protocol, "portal has no resumable result set")
	}
	return h.drainCursor(cursor, portal, maxRows)
}

// drainCursor sends up to maxRows (0 meaning unlimited) DataRow
// messages from cursor, ending with either CommandComplete (cursor
// exhausted) or PortalSuspended (more data remains, cursor parked on
// the portal for the next Execute), per spec §4.9.
func (h *Handler) drainCursor(cursor *rowCursor, portal *session.Portal, maxRows int) error {
	flushEvery := h.cfg.MaxRowsChunk
	if flushEvery <= 0 {
		flushEvery = 256
	}

	values := make([]any, len(cursor.cols))
	sent := 0
	for {
		if maxRows > 0 && sent >= maxRows {
			portal.Open = cursor
			h.codec.Send(&pgproto3.PortalSuspended{})
			return nil
		}
		ok, err := cursor.next(values)
		if err != nil {
			cursor.Close()
			portal.Open = nil
			return errkind.Wrap(errkind.Storage, "reading result row", err)
		}
		if !ok {
			cursor.Close()
			portal.Open = nil
			h.codec.Send(wire.CommandComplete(cursor.verb, int64(sent)))
			return nil
		}
		row, err := wire.EncodeRow(cursor.cols, values)
		if err != nil {
			cursor.Close()
			portal.Open = nil
			return err
		}
		h.codec.Send(row)
		sent++
		if sent%flushEvery == 0 {
			if err := h.codec.Flush(); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) updateTxStatus(verb string) {
	switch verb {
	case "BEGIN", "START":
		h.sess.SetTransactionStatus(session.TxInTx)
	case "COMMIT", "END", "ROLLBACK":
		h.sess.SetTransactionStatus(session.TxIdle)
	}
}

// columnsForRows derives wire column descriptions from a result set's
// runtime metadata, falling back to the Type Registry's catch-all
// converter for expressions SQLite can't attribute a declared type to
// (computed columns, aggregates), per spec §4.2 "A fallback converter
// exists for unknown OIDs".
func columnsForRows(rows *sql.Rows, reg *types.Registry, resultFormats []int16) ([]wire.Column, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, errkind.Wrap(errkind.Storage, "reading result columns", err)
	}
	ctypes, _ := rows.ColumnTypes()

	cols := make([]wire.Column, len(names))
	for i, name := range names {
		conv := reg.Fallback()
		if ctypes != nil && i < len(ctypes) {
			if c, ok := reg.ByName(strings.ToLower(ctypes[i].DatabaseTypeName())); ok {
				conv = c
			}
		}
		cols[i] = wire.Column{
			Name:      name,
			ColNumber: int16(i + 1),
			Converter: conv,
			Format:    wire.FormatCode(formatForParam(resultFormats, i)),
		}
	}
	return cols, nil
}

// columnsFromMetadata rebuilds wire column descriptions from a cache
// hit's ExecutionMetadata, resolving each converter by its cached
// Registry index instead of inspecting the live result set, per spec
// §4.9 step 4 "without re-deriving column types".
func columnsFromMetadata(meta cache.ExecutionMetadata, reg *types.Registry, resultFormats []int16) []wire.Column {
	cols := make([]wire.Column, len(meta.Columns))
	for i, name := range meta.Columns {
		conv := reg.Fallback()
		if i < len(meta.ConverterIndices) {
			if c, ok := reg.ByIndex(meta.ConverterIndices[i]); ok {
				conv = c
			}
		}
		cols[i] = wire.Column{
			Name:      name,
			ColNumber: int16(i + 1),
			Converter: conv,
			Format:    wire.FormatCode(formatForParam(resultFormats, i)),
		}
	}
	return cols
}

// metadataFromColumns captures a freshly derived column list into the
// cacheable shape, so a later cache hit can skip columnsForRows
// entirely.
func metadataFromColumns(cols []wire.Column, reg *types.Registry, rewrittenSQL string, expectedParams int) cache.ExecutionMetadata {
	names := make([]string, len(cols))
	indices := make([]int, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		if c.Converter != nil {
			indices[i] = reg.IndexOf(c.Converter.OID)
		} else {
			indices[i] = -1
		}
	}
	return cache.ExecutionMetadata{
		Columns:          names,
		ConverterIndices: indices,
		RewrittenSQL:     rewrittenSQL,
		ExpectedParams:   expectedParams,
	}
}

func leadingVerb(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	upper := strings.ToUpper(trimmed)
	for i, r := range upper {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return upper[:i]
		}
	}
	return upper
}

func isRowReturning(verb string) bool {
	switch verb {
	case "SELECT", "WITH", "SHOW", "PRAGMA", "EXPLAIN":
		return true
	default:
		return false
	}
}

func quoteIdentSQL(name string) string {
	return pq.QuoteIdentifier(name)
}

func quoteColumnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdentSQL(c)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}
