// Package ratelimit implements RateGate: the per-account minimum spacing
// enforcement and the adaptive 429 backoff policy described in §4.3.
package ratelimit

import (
	"sync"
	"time"
)

// AccountMinInterval is the global per-account minimum spacing between
// fetches, regardless of how many channels subscribe to that account.
const AccountMinInterval = 30 * time.Second

// MaxBackoffMultiplier caps the exponential backoff multiplier.
const MaxBackoffMultiplier = 16

// Gate owns the process-wide AccountCallLog (account -> last request time)
// and the pure backoff arithmetic. It is safe for concurrent use, though
// the engine's single-threaded tick loop never actually contends on it.
type Gate struct {
	mu       sync.Mutex
	lastCall map[string]time.Time
	now      func() time.Time
}

// New constructs an empty Gate.
func New() *Gate {
	return &Gate{
		lastCall: make(map[string]time.Time),
		now:      time.Now,
	}
}

// CheckSpacing reports whether fetching account right now would violate the
// per-account minimum spacing. When it would, earliest is the first legal
// time to fetch.
func (g *Gate) CheckSpacing(account string, now time.Time) (ok bool, earliest time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, seen := g.lastCall[account]
	if !seen {
		return true, time.Time{}
	}
	boundary := last.Add(AccountMinInterval)
	if boundary.After(now) {
		return false, boundary
	}
	return true, time.Time{}
}

// RecordCall marks account as fetched at t. Must be called before the
// fetch actually happens, so concurrent ticks (were there any) would see
// the slot reserved.
func (g *Gate) RecordCall(account string, t time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastCall[account] = t
}

// Backoff computes the next-run delay and updated multiplier for a 429
// response. retryAfterSeconds is the parsed Retry-After header value, when
// present; hasRetryAfter distinguishes "absent" from "zero".
func Backoff(intervalSeconds int, backoffMultiplier int, retryAfterSeconds int, hasRetryAfter bool) (delay time.Duration, nextMultiplier int) {
	var seconds int
	if hasRetryAfter {
		seconds = retryAfterSeconds
		if intervalSeconds > seconds {
			seconds = intervalSeconds
		}
	} else {
		base := intervalSeconds
		if base < 60 {
			base = 60
		}
		seconds = base * backoffMultiplier
	}

	nextMultiplier = backoffMultiplier * 2
	if nextMultiplier > MaxBackoffMultiplier {
		nextMultiplier = MaxBackoffMultiplier
	}
	return time.Duration(seconds) * time.Second, nextMultiplier
}
