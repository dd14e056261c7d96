// SPDX-License-Identifier: Apache-2.0

package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erans/pgsqlite-sub001/internal/cache"
)

func TestFingerprintDistinguishesLiteralsWithoutPlaceholders(t *testing.T) {
	a := cache.Fingerprint("SELECT 42", nil)
	b := cache.Fingerprint("SELECT 9999", nil)
	assert.NotEqual(t, a, b)
}

func TestFingerprintIncludesParamOIDs(t *testing.T) {
	a := cache.Fingerprint("SELECT $1", []uint32{23})
	b := cache.Fingerprint("SELECT $1", []uint32{25})
	assert.NotEqual(t, a, b)
}

func TestIsNonDeterministicDetectsMarkers(t *testing.T) {
	assert.True(t, cache.IsNonDeterministic("SELECT now()"))
	assert.True(t, cache.IsNonDeterministic("SELECT gen_random_uuid()"))
	assert.False(t, cache.IsNonDeterministic("SELECT 1"))
}

func TestPutGetRoundTrip(t *testing.T) {
	c := cache.New(cache.Options{TTL: time.Minute, MaxEntries: 10})
	fp := cache.Fingerprint("SELECT 1", nil)
	c.Put(fp, cache.ExecutionMetadata{Columns: []string{"?column?"}})

	meta, ok := c.Get(fp)
	require.True(t, ok)
	assert.Equal(t, []string{"?column?"}, meta.Columns)
}

func TestGetExpiredEntryEvicts(t *testing.T) {
	c := cache.New(cache.Options{TTL: -time.Second, MaxEntries: 10})
	fp := cache.Fingerprint("SELECT 1", nil)
	c.Put(fp, cache.ExecutionMetadata{})

	_, ok := c.Get(fp)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestPutEvictsLRUWhenOverCap(t *testing.T) {
	c := cache.New(cache.Options{TTL: time.Minute, MaxEntries: 2})
	fp1 := cache.Fingerprint("SELECT 1", nil)
	fp2 := cache.Fingerprint("SELECT 2", nil)
	fp3 := cache.Fingerprint("SELECT 3", nil)

	c.Put(fp1, cache.ExecutionMetadata{})
	c.Put(fp2, cache.ExecutionMetadata{})
	// touch fp1 so fp2 becomes the LRU tail
	_, _ = c.Get(fp1)
	c.Put(fp3, cache.ExecutionMetadata{})

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(fp2)
	assert.False(t, ok, "fp2 should have been evicted as least recently used")
	_, ok = c.Get(fp1)
	assert.True(t, ok)
	_, ok = c.Get(fp3)
	assert.True(t, ok)
}

func TestRunCleanupEvictsUnderMemoryPressure(t *testing.T) {
	c := cache.New(cache.Options{
		TTL:                time.Minute,
		MaxEntries:         100,
		MemPressureCritPct: 0.9,
		MemStatsFn:         func() (uint64, uint64) { return 95, 100 },
	})
	for i := 0; i < 10; i++ {
		c.Put(cache.Fingerprint("SELECT", []uint32{uint32(i)}), cache.ExecutionMetadata{})
	}
	require.Equal(t, 10, c.Len())

	c.RunCleanup()
	assert.Less(t, c.Len(), 10, "critical memory pressure should evict a fraction of entries")
}
