// SPDX-License-Identifier: Apache-2.0

package security_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/erans/pgsqlite-sub001/internal/security"
)

func TestLimiterAllowsUnderCap(t *testing.T) {
	cfg := security.DefaultRateLimitConfig()
	cfg.PerIPMax = 3
	cfg.GlobalMax = 100
	cfg.Window = time.Minute
	l := security.NewLimiter(cfg)
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestLimiterTracksIPsIndependently(t *testing.T) {
	cfg := security.DefaultRateLimitConfig()
	cfg.PerIPMax = 1
	cfg.GlobalMax = 100
	cfg.Window = time.Minute
	l := security.NewLimiter(cfg)
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestLimiterEnforcesGlobalCapAcrossIPs(t *testing.T) {
	cfg := security.DefaultRateLimitConfig()
	cfg.PerIPMax = 100
	cfg.GlobalMax = 2
	cfg.Window = time.Minute
	l := security.NewLimiter(cfg)
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
	assert.False(t, l.Allow("10.0.0.3"))
}

func TestBreakerTripsAfterThreshold(t *testing.T) {
	cfg := security.DefaultBreakerConfig()
	cfg.FailureThreshold = 2
	b := security.NewBreaker(cfg)

	assert.Equal(t, security.Closed, b.State())
	b.RecordFailure()
	assert.Equal(t, security.Closed, b.State())
	b.RecordFailure()
	assert.Equal(t, security.Open, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerHalfOpenRecoversAfterTimeout(t *testing.T) {
	cfg := security.DefaultBreakerConfig()
	cfg.FailureThreshold = 1
	cfg.SuccessThreshold = 1
	cfg.OpenTimeout = 10 * time.Millisecond
	b := security.NewBreaker(cfg)

	b.RecordFailure()
	assert.Equal(t, security.Open, b.State())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, security.HalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, security.Closed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cfg := security.DefaultBreakerConfig()
	cfg.FailureThreshold = 1
	cfg.OpenTimeout = 10 * time.Millisecond
	b := security.NewBreaker(cfg)

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, security.HalfOpen, b.State())

	b.RecordFailure()
	assert.Equal(t, security.Open, b.State())
}

func TestNoopAuditLoggerDoesNotPanic(t *testing.T) {
	l := security.NewNoopAuditLogger()
	l.Log(security.Event{Severity: security.Critical, Message: "test"})
	l.Close()
}

func TestAnalyzeRejectsTautology(t *testing.T) {
	an := security.NewAnalyzer(security.DefaultInjectionConfig())
	a := an.Analyze("SELECT * FROM widgets WHERE 1=1")
	assert.True(t, a.Rejected())
}

func TestAnalyzeRejectsDangerousFunction(t *testing.T) {
	an := security.NewAnalyzer(security.DefaultInjectionConfig())
	a := an.Analyze("SELECT pg_read_file('/etc/passwd')")
	assert.True(t, a.Rejected())
}

func TestAnalyzeRejectsDDLInCompound(t *testing.T) {
	an := security.NewAnalyzer(security.DefaultInjectionConfig())
	a := an.Analyze("SELECT 1; DROP TABLE widgets")
	assert.True(t, a.Rejected())
}

func TestAnalyzeAllowsOrdinaryQuery(t *testing.T) {
	an := security.NewAnalyzer(security.DefaultInjectionConfig())
	a := an.Analyze("SELECT id, name FROM widgets WHERE id = $1")
	assert.False(t, a.Rejected())
	assert.True(t, a.ParsedOK)
}

func TestAnalyzeFallsBackOnParseFailure(t *testing.T) {
	an := security.NewAnalyzer(security.DefaultInjectionConfig())
	a := an.Analyze("SELECT FROM FROM FROM !!!")
	assert.False(t, a.ParsedOK)
}
