// SPDX-License-Identifier: Apache-2.0

package security

import (
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// Severity is one of the four audit-event levels spec §4.7 names.
type Severity int

const (
	Info Severity = iota
	Warning
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

const maxAuditQueryLen = 256

// Event is a single audit record.
type Event struct {
	Severity  Severity
	Timestamp time.Time
	ClientIP  string
	SessionID string
	Database  string
	User      string
	Query     string
	Metadata  map[string]any
	Message   string
}

func truncateQuery(q string) string {
	if len(q) <= maxAuditQueryLen {
		return q
	}
	return q[:maxAuditQueryLen] + "…"
}

// AuditLogger is implemented by both the production logger and a noop
// variant, mirroring the migrations.Logger split in the teacher's
// pattern so tests can run without emitting output.
type AuditLogger interface {
	Log(Event)
	Close()
}

// alertFunc is invoked for events meeting the alert threshold. It must
// not block; callers typically hand it a channel send or metrics
// increment.
type alertFunc func(Event)

// bufferedLogger buffers events and flushes them in batches on a
// background goroutine so audit emission never blocks a request-serving
// thread, per spec §4.7: "The logger must never block request-serving
// threads — emission is best-effort."
type bufferedLogger struct {
	logger pterm.Logger

	mu            sync.Mutex
	buf           []Event
	batchSize     int
	flushInterval time.Duration
	alertAt       Severity
	onAlert       alertFunc

	stop chan struct{}
	done chan struct{}
}

type AuditConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	AlertAt       Severity
	OnAlert       func(Event)
}

func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		BatchSize:     100,
		FlushInterval: 2 * time.Second,
		AlertAt:       High,
	}
}

func NewAuditLogger(cfg AuditConfig) AuditLogger {
	l := &bufferedLogger{
		logger:        pterm.DefaultLogger,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		alertAt:       cfg.AlertAt,
		onAlert:       cfg.OnAlert,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go l.run()
	return l
}

func NewNoopAuditLogger() AuditLogger {
	return &noopAuditLogger{}
}

// Log enqueues ev for asynchronous flushing. Never blocks beyond a mutex
// acquisition — callers on the hot path should treat this as O(1).
func (l *bufferedLogger) Log(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Query = truncateQuery(ev.Query)

	l.mu.Lock()
	l.buf = append(l.buf, ev)
	full := len(l.buf) >= l.batchSize
	l.mu.Unlock()

	if ev.Severity >= l.alertAt && l.onAlert != nil {
		l.onAlert(ev)
	}
	if full {
		l.flush()
	}
}

func (l *bufferedLogger) run() {
	defer close(l.done)
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.flush()
		case <-l.stop:
			l.flush()
			return
		}
	}
}

func (l *bufferedLogger) flush() {
	l.mu.Lock()
	batch := l.buf
	l.buf = nil
	l.mu.Unlock()

	for _, ev := range batch {
		args := []any{
			"severity", ev.Severity.String(),
			"session_id", ev.SessionID,
			"database", ev.Database,
			"user", ev.User,
			"client_ip", ev.ClientIP,
		}
		if ev.Query != "" {
			args = append(args, "query", ev.Query)
		}
		for k, v := range ev.Metadata {
			args = append(args, k, v)
		}
		switch ev.Severity {
		case Critical, High:
			l.logger.Error(ev.Message, l.logger.Args(args...))
		case Warning:
			l.logger.Warn(ev.Message, l.logger.Args(args...))
		default:
			l.logger.Info(ev.Message, l.logger.Args(args...))
		}
	}
}

func (l *bufferedLogger) Close() {
	close(l.stop)
	<-l.done
}

type noopAuditLogger struct{}

func (*noopAuditLogger) Log(Event) {}
func (*noopAuditLogger) Close()    {}
