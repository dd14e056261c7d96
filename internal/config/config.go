// SPDX-License-Identifier: Apache-2.0

// Package config binds the closed set of environment knobs spec.md §6
// recognizes, the same way pgroll's cmd/root.go binds PGROLL_* variables
// through viper.
package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the viper environment variable prefix, mirroring PGROLL_.
const EnvPrefix = "PGSQLITE"

// Config is the full set of tunables the gateway reads from the
// environment. Every field has a default; none are required.
type Config struct {
	// Listener
	ListenAddress       string
	DatabasePath        string
	TLSCertPath         string
	TLSKeyPath          string
	ReadWritePool       bool
	DiagnosticsAddress  string // empty disables the /status diagnostics endpoint

	// Query Cache (QC)
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	MemPressureWarnPct   float64
	MemPressureCritPct   float64

	// Security Envelope (SE)
	RateLimitWindow       time.Duration
	RateLimitMaxRequests  uint32
	RateLimitPerIP        bool
	RateLimitMaxIPs       int
	RateLimitCleanupEvery time.Duration

	BreakerFailureThreshold uint32
	BreakerSuccessThreshold uint32
	BreakerOpenTimeout      time.Duration

	AuditSeverityFilter string // Info|Warning|High|Critical

	// Protocol Codec (PC)
	MaxMessageBytes int
	MaxParamCount   int
	MaxStringBytes  int
	ReadDeadline    time.Duration
}

// Defaults returns the configuration with every spec-mandated default
// value populated, before environment overrides are applied.
func Defaults() Config {
	return Config{
		ListenAddress:      "0.0.0.0:5432",
		DatabasePath:       "pgsqlite.db",
		ReadWritePool:      false,
		DiagnosticsAddress: "127.0.0.1:9090",

		CacheTTL:             300 * time.Second,
		CacheMaxEntries:      10_000,
		CacheCleanupInterval: 30 * time.Second,
		MemPressureWarnPct:   0.75,
		MemPressureCritPct:   0.90,

		RateLimitWindow:       60 * time.Second,
		RateLimitMaxRequests:  1000,
		RateLimitPerIP:        true,
		RateLimitMaxIPs:       10_000,
		RateLimitCleanupEvery: 60 * time.Second,

		BreakerFailureThreshold: 5,
		BreakerSuccessThreshold: 2,
		BreakerOpenTimeout:      30 * time.Second,

		AuditSeverityFilter: "Info",

		MaxMessageBytes: 16 << 20, // 16 MiB
		MaxParamCount:   10_000,
		MaxStringBytes:  1 << 20, // 1 MiB
		ReadDeadline:    0,       // disabled by default
	}
}

// BindFlags registers the persistent flags a cobra root command exposes,
// and binds each to its viper key, following cmd/root.go's
// rootCmd.PersistentFlags()/viper.BindPFlag pairing.
func BindFlags(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("listen-address", "0.0.0.0:5432", "address to listen for PostgreSQL wire connections")
	flags.String("database-path", "pgsqlite.db", "path to the SQLite database file")
	flags.String("tls-cert", "", "path to TLS certificate (optional)")
	flags.String("tls-key", "", "path to TLS private key (optional)")
	flags.Bool("rw-pool", false, "enable a separate read-only connection pool")
	flags.String("diagnostics-address", "127.0.0.1:9090", "address for the /status diagnostics endpoint (empty disables it)")

	v.BindPFlag("LISTEN_ADDRESS", flags.Lookup("listen-address"))
	v.BindPFlag("DATABASE_PATH", flags.Lookup("database-path"))
	v.BindPFlag("TLS_CERT", flags.Lookup("tls-cert"))
	v.BindPFlag("TLS_KEY", flags.Lookup("tls-key"))
	v.BindPFlag("RW_POOL", flags.Lookup("rw-pool"))
	v.BindPFlag("DIAGNOSTICS_ADDRESS", flags.Lookup("diagnostics-address"))
}

// Load reads Defaults(), then overlays any values bound into v (from flags
// or PGSQLITE_* environment variables).
func Load(v *viper.Viper) Config {
	cfg := Defaults()

	if s := v.GetString("LISTEN_ADDRESS"); s != "" {
		cfg.ListenAddress = s
	}
	if s := v.GetString("DATABASE_PATH"); s != "" {
		cfg.DatabasePath = s
	}
	cfg.TLSCertPath = v.GetString("TLS_CERT")
	cfg.TLSKeyPath = v.GetString("TLS_KEY")
	if v.IsSet("RW_POOL") {
		cfg.ReadWritePool = v.GetBool("RW_POOL")
	}
	if v.IsSet("DIAGNOSTICS_ADDRESS") {
		cfg.DiagnosticsAddress = v.GetString("DIAGNOSTICS_ADDRESS")
	}

	if d := v.GetDuration("CACHE_TTL"); d > 0 {
		cfg.CacheTTL = d
	}
	if n := v.GetInt("CACHE_MAX_ENTRIES"); n > 0 {
		cfg.CacheMaxEntries = n
	}
	if d := v.GetDuration("CACHE_CLEANUP_INTERVAL"); d > 0 {
		cfg.CacheCleanupInterval = d
	}
	if f := v.GetFloat64("MEM_PRESSURE_WARN_PCT"); f > 0 {
		cfg.MemPressureWarnPct = f
	}
	if f := v.GetFloat64("MEM_PRESSURE_CRIT_PCT"); f > 0 {
		cfg.MemPressureCritPct = f
	}

	if d := v.GetDuration("RATE_LIMIT_WINDOW"); d > 0 {
		cfg.RateLimitWindow = d
	}
	if n := v.GetUint("RATE_LIMIT_MAX_REQUESTS"); n > 0 {
		cfg.RateLimitMaxRequests = uint32(n)
	}
	if v.IsSet("RATE_LIMIT_PER_IP") {
		cfg.RateLimitPerIP = v.GetBool("RATE_LIMIT_PER_IP")
	}
	if n := v.GetInt("RATE_LIMIT_MAX_IPS"); n > 0 {
		cfg.RateLimitMaxIPs = n
	}

	if n := v.GetUint("BREAKER_FAILURE_THRESHOLD"); n > 0 {
		cfg.BreakerFailureThreshold = uint32(n)
	}
	if n := v.GetUint("BREAKER_SUCCESS_THRESHOLD"); n > 0 {
		cfg.BreakerSuccessThreshold = uint32(n)
	}
	if d := v.GetDuration("BREAKER_OPEN_TIMEOUT"); d > 0 {
		cfg.BreakerOpenTimeout = d
	}

	if s := v.GetString("AUDIT_SEVERITY_FILTER"); s != "" {
		cfg.AuditSeverityFilter = s
	}

	if n := v.GetInt("MAX_MESSAGE_BYTES"); n > 0 {
		cfg.MaxMessageBytes = n
	}
	if n := v.GetInt("MAX_PARAM_COUNT"); n > 0 {
		cfg.MaxParamCount = n
	}
	if n := v.GetInt("MAX_STRING_BYTES"); n > 0 {
		cfg.MaxStringBytes = n
	}
	if d := v.GetDuration("READ_DEADLINE"); d > 0 {
		cfg.ReadDeadline = d
	}

	return cfg
}

// NewViper returns a viper instance pre-configured with the PGSQLITE_
// environment prefix, mirroring cmd/root.go's init().
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}
