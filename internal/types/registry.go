// SPDX-License-Identifier: Apache-2.0

package types

import "fmt"

// SQLiteClass is one of SQLite's five storage classes.
type SQLiteClass int

const (
	ClassNull SQLiteClass = iota
	ClassInteger
	ClassReal
	ClassText
	ClassBlob
)

// Direction distinguishes encode (SQLite value -> wire bytes) from decode
// (wire bytes -> SQLite value), for TypeConversion error reporting.
type Direction int

const (
	DirEncode Direction = iota
	DirDecode
)

// ConversionError is the TypeConversion error spec §4.2 "Errors" mandates:
// it carries the offending value, the type OID, and the direction.
type ConversionError struct {
	OID       OID
	Direction Direction
	Value     any
	Reason    string
}

func (e *ConversionError) Error() string {
	dir := "encoding"
	if e.Direction == DirDecode {
		dir = "decoding"
	}
	return fmt.Sprintf("type conversion error %s oid=%d value=%v: %s", dir, e.OID, e.Value, e.Reason)
}

// Converter holds the text and binary codecs for one PostgreSQL type, plus
// the SQLite storage class values of this type are kept in and its
// catalog category letter.
type Converter struct {
	OID         OID
	Names       []string // canonical name first
	Class       SQLiteClass
	Category    string
	ElemOID     OID // 0 if not an array
	IsArray     bool
	TextEncode  func(v any) (string, error)
	TextDecode  func(s string) (any, error)
	BinaryEncode func(v any) ([]byte, error)
	BinaryDecode func(b []byte) (any, error)
}

// Registry is the process-wide converter table. Access is by a small
// integer "converter index" (the slice position) so that ExecutionMetadata
// can store one byte per column instead of a function pointer, per spec
// §4.2 "Converter tables" and §9 "Dynamic dispatch in T".
type Registry struct {
	byOID   map[OID]int
	byName  map[string]int
	entries []*Converter
	fallback *Converter
}

// NewRegistry builds the converter table for every type spec §4.2
// enumerates. This is called once at process start; the result is normally
// installed as the package-level global (see Global()).
func NewRegistry() *Registry {
	r := &Registry{
		byOID:  make(map[OID]int),
		byName: make(map[string]int),
	}

	for _, c := range builtinConverters() {
		r.Register(c)
	}
	r.fallback = fallbackConverter()

	return r
}

// Register adds (or replaces) a converter, returning its converter index.
func (r *Registry) Register(c *Converter) int {
	if idx, ok := r.byOID[c.OID]; ok {
		r.entries[idx] = c
		return idx
	}
	idx := len(r.entries)
	r.entries = append(r.entries, c)
	r.byOID[c.OID] = idx
	for _, n := range c.Names {
		r.byName[n] = idx
	}
	return idx
}

// ByOID returns the converter for oid, and the fallback converter (with
// ok=false) if oid is unregistered.
func (r *Registry) ByOID(oid OID) (*Converter, bool) {
	if idx, ok := r.byOID[oid]; ok {
		return r.entries[idx], true
	}
	return r.fallback, false
}

// ByIndex returns the converter at converter index idx. Used when decoding
// ExecutionMetadata's per-column converter index byte back into a
// converter without a map lookup.
func (r *Registry) ByIndex(idx int) (*Converter, bool) {
	if idx < 0 || idx >= len(r.entries) {
		return r.fallback, false
	}
	return r.entries[idx], true
}

// IndexOf returns the converter index for oid, or -1 if unregistered (the
// caller should fall back to the fallback converter's own reserved index,
// which is always len(entries) for bookkeeping purposes).
func (r *Registry) IndexOf(oid OID) int {
	if idx, ok := r.byOID[oid]; ok {
		return idx
	}
	return -1
}

// ByName resolves a PostgreSQL textual type name (e.g. "int4", "timestamptz")
// to its converter, used when the Translator encounters an explicit
// `::typename` cast or a CREATE TABLE column type.
func (r *Registry) ByName(name string) (*Converter, bool) {
	if idx, ok := r.byName[name]; ok {
		return r.entries[idx], true
	}
	return nil, false
}

// Fallback returns the catch-all converter used for unregistered OIDs: it
// textualizes INTEGER/REAL/TEXT values and hex-encodes BLOBs, per spec
// §4.2 "A fallback converter exists for unknown OIDs".
func (r *Registry) Fallback() *Converter { return r.fallback }

var global *Registry

// Global returns the process-wide lazily-initialized Registry, per spec §9
// "Global singletons". Tests should construct their own Registry via
// NewRegistry() instead of depending on process-wide state.
func Global() *Registry {
	if global == nil {
		global = NewRegistry()
	}
	return global
}
