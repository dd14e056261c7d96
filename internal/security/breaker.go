// SPDX-License-Identifier: Apache-2.0

package security

import (
	"sync/atomic"
	"time"
)

// BreakerState is one of the three circuit-breaker states spec §4.7
// names.
type BreakerState uint8

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// packed word layout: [state:2][failures:20][successes:20][nextAttemptSec:22]
// nextAttemptSec is seconds elapsed since the Breaker's own epoch (set at
// construction), not a Unix timestamp — 22 bits of Unix seconds would
// wrap in days. A relative clock gives this breaker roughly 48 days of
// range before its open-timeout timestamps alias, far beyond any
// realistic OpenTimeout.
const (
	stateBits    = 2
	failureBits  = 20
	successBits  = 20
	nextAttnBits = 22

	stateShift   = 0
	failureShift = stateShift + stateBits
	successShift = failureShift + failureBits
	nextShift    = successShift + successBits

	stateMask   = uint64(1)<<stateBits - 1
	failureMask = uint64(1)<<failureBits - 1
	successMask = uint64(1)<<successBits - 1
	nextMask    = uint64(1)<<nextAttnBits - 1
)

func pack(state BreakerState, failures, successes uint32, nextAttempt int64) uint64 {
	f := uint64(failures) & failureMask
	s := uint64(successes) & successMask
	n := uint64(nextAttempt) & nextMask
	return (uint64(state) & stateMask) |
		(f << failureShift) |
		(s << successShift) |
		(n << nextShift)
}

func unpack(word uint64) (state BreakerState, failures, successes uint32, nextAttempt int64) {
	state = BreakerState((word >> stateShift) & stateMask)
	failures = uint32((word >> failureShift) & failureMask)
	successes = uint32((word >> successShift) & successMask)
	nextAttempt = int64((word >> nextShift) & nextMask)
	return
}

// BreakerConfig tunes the failure/success thresholds and recovery timeout.
type BreakerConfig struct {
	FailureThreshold uint32
	SuccessThreshold uint32 // successes required in HalfOpen to re-close
	OpenTimeout      time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// Breaker is a lock-free circuit breaker packed into a single atomic
// word, per spec §4.7: "A single atomic word packs {state, failure_count,
// success_count}."
type Breaker struct {
	word  atomic.Uint64
	cfg   BreakerConfig
	epoch time.Time
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	b := &Breaker{cfg: cfg, epoch: time.Now()}
	b.word.Store(pack(Closed, 0, 0, 0))
	return b
}

func (b *Breaker) secondsSinceEpoch(t time.Time) int64 {
	return int64(t.Sub(b.epoch) / time.Second)
}

// Allow reports whether a request may proceed, transitioning Open ->
// HalfOpen once the timeout has elapsed.
func (b *Breaker) Allow() bool {
	for {
		word := b.word.Load()
		state, failures, successes, nextAttempt := unpack(word)
		switch state {
		case Closed:
			return true
		case HalfOpen:
			return true
		case Open:
			if b.secondsSinceEpoch(time.Now()) < nextAttempt {
				return false
			}
			next := pack(HalfOpen, failures, 0, 0)
			if b.word.CompareAndSwap(word, next) {
				return true
			}
		}
	}
}

// RecordSuccess reports a successful operation, closing the breaker from
// HalfOpen once SuccessThreshold is reached.
func (b *Breaker) RecordSuccess() {
	for {
		word := b.word.Load()
		state, failures, successes, nextAttempt := unpack(word)
		switch state {
		case Closed:
			if failures == 0 {
				return
			}
			if b.word.CompareAndSwap(word, pack(Closed, 0, successes, 0)) {
				return
			}
		case HalfOpen:
			successes++
			next := state
			if successes >= b.cfg.SuccessThreshold {
				next = Closed
				successes = 0
			}
			if b.word.CompareAndSwap(word, pack(next, 0, successes, nextAttempt)) {
				return
			}
		case Open:
			return // stale success racing with a trip; ignore
		}
	}
}

// RecordFailure reports a failed operation, tripping the breaker to Open
// once FailureThreshold is reached (from Closed) or immediately (from
// HalfOpen, where any failure re-opens it).
func (b *Breaker) RecordFailure() {
	for {
		word := b.word.Load()
		state, failures, successes, _ := unpack(word)
		switch state {
		case Closed:
			failures++
			next := state
			nextAttempt := int64(0)
			if failures >= b.cfg.FailureThreshold {
				next = Open
				nextAttempt = b.secondsSinceEpoch(time.Now().Add(b.cfg.OpenTimeout))
			}
			if b.word.CompareAndSwap(word, pack(next, failures, successes, nextAttempt)) {
				return
			}
		case HalfOpen:
			nextAttempt := b.secondsSinceEpoch(time.Now().Add(b.cfg.OpenTimeout))
			if b.word.CompareAndSwap(word, pack(Open, b.cfg.FailureThreshold, 0, nextAttempt)) {
				return
			}
		case Open:
			return
		}
	}
}

func (b *Breaker) State() BreakerState {
	state, _, _, _ := unpack(b.word.Load())
	return state
}
