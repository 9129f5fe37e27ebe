// Package ratelimit implements a sliding-window-log limiter. Every admitted
// request appends its timestamp to the subject's window; a request is refused
// once the window holds the ceiling. The backing store is injected so the
// process-local map can be swapped for a shared store in multi-instance
// deployments without touching the algorithm.
package ratelimit

import (
	"errors"
	"math/rand"
	"sort"
	"time"
)

const defaultSweepChance = 0.01

// Store persists per-subject timestamp windows.
type Store interface {
	// Get returns the recorded timestamps for the subject, oldest first.
	Get(key string) []time.Time
	// Put replaces the subject's timestamps. An empty slice removes the
	// subject eagerly.
	Put(key string, stamps []time.Time)
	// Sweep drops subjects whose windows are empty or fully expired.
	Sweep(cutoff time.Time)
}

// Decision is the outcome of a single admission check.
type Decision struct {
	OK         bool
	Remaining  int
	RetryAfter time.Duration
}

// Usage is a non-consuming view of a subject's window, used by the usage
// dashboard.
type Usage struct {
	Limit      int
	Used       int
	Remaining  int
	ResetAfter time.Duration
}

// Limiter evaluates the sliding window log for one subject class.
type Limiter struct {
	store       Store
	limit       int
	window      time.Duration
	sweepChance float64
	randFloat   func() float64
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithSweepChance overrides the probability of a full-store sweep per call.
func WithSweepChance(p float64) Option {
	return func(l *Limiter) {
		if p >= 0 && p <= 1 {
			l.sweepChance = p
		}
	}
}

// WithRandSource overrides the sweep trigger source (useful for tests).
func WithRandSource(fn func() float64) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.randFloat = fn
		}
	}
}

// New constructs a limiter with the given ceiling and window.
func New(store Store, limit int, window time.Duration, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store is required")
	}
	if limit <= 0 {
		return nil, errors.New("ratelimit: limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("ratelimit: window must be positive")
	}
	l := &Limiter{
		store:       store,
		limit:       limit,
		window:      window,
		sweepChance: defaultSweepChance,
		randFloat:   rand.Float64,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Limit returns the ceiling.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow evaluates an admission for the subject at the given instant.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	cutoff := now.Add(-l.window)
	stamps := prune(l.store.Get(key), cutoff)

	defer l.maybeSweep(cutoff)

	if len(stamps) >= l.limit {
		l.store.Put(key, stamps)
		retry := stamps[0].Add(l.window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return Decision{OK: false, RetryAfter: retry}
	}

	stamps = append(stamps, now)
	l.store.Put(key, stamps)
	return Decision{OK: true, Remaining: l.limit - len(stamps)}
}

// Peek reports current usage without consuming quota.
func (l *Limiter) Peek(key string, now time.Time) Usage {
	cutoff := now.Add(-l.window)
	stamps := prune(l.store.Get(key), cutoff)
	usage := Usage{
		Limit:     l.limit,
		Used:      len(stamps),
		Remaining: l.limit - len(stamps),
	}
	if usage.Remaining < 0 {
		usage.Remaining = 0
	}
	if len(stamps) > 0 {
		usage.ResetAfter = stamps[0].Add(l.window).Sub(now)
		if usage.ResetAfter < 0 {
			usage.ResetAfter = 0
		}
	}
	return usage
}

// maybeSweep triggers a full-store sweep with low probability, keeping the
// cost off the hot path while bounding memory from one-shot subjects.
func (l *Limiter) maybeSweep(cutoff time.Time) {
	if l.randFloat() < l.sweepChance {
		l.store.Sweep(cutoff)
	}
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	if len(stamps) == 0 {
		return stamps
	}
	idx := sort.Search(len(stamps), func(i int) bool {
		return !stamps[i].Before(cutoff)
	})
	if idx == 0 {
		return stamps
	}
	kept := make([]time.Time, len(stamps)-idx)
	copy(kept, stamps[idx:])
	return kept
}
