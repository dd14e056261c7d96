// SPDX-License-Identifier: Apache-2.0

// Package cache is the Query Cache (QC): a fingerprint-keyed map from
// normalized SQL text to ExecutionMetadata, with TTL, LRU, and
// memory-pressure eviction, per spec.md §4.3.
package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// nonDeterministicMarkers are the lower-cased substrings whose
// presence forces a query to bypass the cache, per spec §4.3
// "Non-deterministic queries".
var nonDeterministicMarkers = []string{
	"now(",
	"current_timestamp",
	"random(",
	"gen_random_uuid(",
}

// IsNonDeterministic reports whether sql contains a call the cache
// must never memoize the result shape of.
func IsNonDeterministic(sql string) bool {
	lower := strings.ToLower(sql)
	for _, marker := range nonDeterministicMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Fingerprint computes the 64-bit cache key for a query: a hash of
// the normalized SQL text suffixed with its parameter type OIDs, per
// spec §4.3. When sql has no placeholders, the literal text is hashed
// as-is (not normalized) so that e.g. "SELECT 42" and "SELECT 9999"
// do not collide.
func Fingerprint(sql string, paramOIDs []uint32) uint64 {
	normalized := sql
	if strings.Contains(sql, "$1") {
		normalized = normalizeWhitespace(sql)
	}

	h := xxhash.New()
	_, _ = h.WriteString(normalized)
	for _, oid := range paramOIDs {
		_, _ = h.WriteString("|")
		_, _ = h.WriteString(strconv.FormatUint(uint64(oid), 10))
	}
	return h.Sum64()
}

// normalizeWhitespace collapses runs of whitespace so that
// functionally identical queries differing only in formatting share a
// fingerprint.
func normalizeWhitespace(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastWasSpace {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
