// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/erans/pgsqlite-sub001/internal/config"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	assert.Equal(t, 300*time.Second, cfg.CacheTTL)
	assert.Equal(t, 10_000, cfg.CacheMaxEntries)
	assert.Equal(t, uint32(1000), cfg.RateLimitMaxRequests)
	assert.Equal(t, 16<<20, cfg.MaxMessageBytes)
}

func TestLoadOverridesFromViper(t *testing.T) {
	v := config.NewViper()
	t.Setenv("PGSQLITE_DATABASE_PATH", "/tmp/custom.db")
	t.Setenv("PGSQLITE_RATE_LIMIT_MAX_REQUESTS", "3")

	cfg := config.Load(v)
	assert.Equal(t, "/tmp/custom.db", cfg.DatabasePath)
	assert.Equal(t, uint32(3), cfg.RateLimitMaxRequests)
	// Unset knobs keep their defaults.
	assert.Equal(t, 300*time.Second, cfg.CacheTTL)
}
