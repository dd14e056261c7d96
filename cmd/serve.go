// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/erans/pgsqlite-sub001/cmd/flags"
	"github.com/erans/pgsqlite-sub001/internal/cache"
	"github.com/erans/pgsqlite-sub001/internal/conn"
	"github.com/erans/pgsqlite-sub001/internal/engine"
	"github.com/erans/pgsqlite-sub001/internal/migrations"
	"github.com/erans/pgsqlite-sub001/internal/security"
	"github.com/erans/pgsqlite-sub001/internal/types"
	"github.com/erans/pgsqlite-sub001/internal/wire"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PostgreSQL wire-protocol gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg := flags.Gateway()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := engine.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database %q: %w", cfg.DatabasePath, err)
	}

	if err := migrations.NewRegistry(30, migrations.BuiltinMigrations()...).Apply(ctx, rdb.DB); err != nil {
		return fmt.Errorf("applying metadata catalog: %w", err)
	}
	if err := migrations.RecordVersion(ctx, rdb.DB, Version); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	if compat, err := migrations.CheckCompatibility(ctx, rdb.DB, Version); err != nil {
		return fmt.Errorf("checking schema compatibility: %w", err)
	} else if compat == migrations.CompatSchemaNewer {
		pterm.Warning.Printfln("database %q was initialized by a newer gateway version than %s", cfg.DatabasePath, Version)
	}

	var readers []*engine.RDB
	if cfg.ReadWritePool {
		rodb, err := engine.OpenReadOnly(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening read-only pool: %w", err)
		}
		defer rodb.Close()
		readers = append(readers, rodb)
	}
	router := engine.NewRouter(rdb, readers...)
	defer router.Close()

	qc := cache.New(cache.Options{
		TTL:                cfg.CacheTTL,
		MaxEntries:         cfg.CacheMaxEntries,
		CleanupInterval:    cfg.CacheCleanupInterval,
		MemPressureWarnPct: cfg.MemPressureWarnPct,
		MemPressureCritPct: cfg.MemPressureCritPct,
	})
	qc.StartCleanupLoop()
	defer qc.Stop()

	limiter := security.NewLimiter(security.RateLimitConfig{
		Window:          cfg.RateLimitWindow,
		PerIPMax:        cfg.RateLimitMaxRequests,
		GlobalMax:       cfg.RateLimitMaxRequests * 10,
		MaxTrackedIPs:   cfg.RateLimitMaxIPs,
		CleanupInterval: cfg.RateLimitCleanupEvery,
	})
	if cfg.RateLimitPerIP {
		limiter.StartCleanup()
	}
	defer limiter.Stop()

	breaker := security.NewBreaker(security.BreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
	})

	analyzer := security.NewAnalyzer(security.DefaultInjectionConfig())

	auditCfg := security.DefaultAuditConfig()
	auditCfg.AlertAt = parseSeverity(cfg.AuditSeverityFilter)
	auditCfg.OnAlert = func(ev security.Event) {
		pterm.Error.Printfln("[%s] %s: %s", ev.Severity, ev.SessionID, ev.Message)
	}
	audit := security.NewAuditLogger(auditCfg)
	defer audit.Close()

	connCfg := conn.Config{
		ServerVersion: "15.0",
		Router:        router,
		Cache:         qc,
		Limiter:       limiter,
		Breaker:       breaker,
		Audit:         audit,
		Analyzer:      analyzer,
		Types:         types.NewRegistry(),
		MaxRowsChunk:  256,
	}
	limits := wire.LimitsFromConfig(cfg)

	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddress, err)
	}
	if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
		if err != nil {
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
	}
	defer ln.Close()

	var activeSessions atomic.Int64

	if cfg.DiagnosticsAddress != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/status", diagnosticsHandler(&activeSessions, qc, breaker))
		diagSrv := &http.Server{Addr: cfg.DiagnosticsAddress, Handler: mux}
		go func() {
			if err := diagSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				pterm.Error.Printfln("diagnostics server stopped: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = diagSrv.Close()
		}()
		pterm.Info.Printfln("diagnostics endpoint listening on %s", cfg.DiagnosticsAddress)
	}

	pterm.Success.Printfln("pgsqlite gateway listening on %s (database %s)", cfg.ListenAddress, cfg.DatabasePath)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		c, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accepting connection: %w", err)
			}
		}
		activeSessions.Add(1)
		go func() {
			defer activeSessions.Add(-1)
			h := conn.New(c, limits, connCfg)
			_ = h.Serve(ctx)
		}()
	}
}

// parseSeverity maps the AUDIT_SEVERITY_FILTER string onto
// security.Severity, defaulting to High the way DefaultAuditConfig
// does when the configured name isn't recognized.
func parseSeverity(s string) security.Severity {
	switch s {
	case "Info":
		return security.Info
	case "Warning":
		return security.Warning
	case "High":
		return security.High
	case "Critical":
		return security.Critical
	default:
		return security.High
	}
}

// diagnosticsHandler reports live session count, cache occupancy, and
// circuit-breaker state, the same shape pgroll's statusHandler reports
// migration status in but scoped to the running process instead of
// the database.
func diagnosticsHandler(sessions *atomic.Int64, qc *cache.Cache, br *security.Breaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"active_sessions": sessions.Load(),
			"cache_size":      qc.Len(),
			"breaker_state":   br.State().String(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}
}
