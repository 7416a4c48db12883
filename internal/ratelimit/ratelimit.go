// Package ratelimit admits or rejects ingests per subscriber uuid with a
// token bucket, advisory on subscribe and enforcing on ingest.
//
// Each uuid gets its own golang.org/x/time/rate token bucket with a burst of
// limit that refills at limit tokens per 60 seconds. Up to limit requests
// are admitted back to back; after that one more is admitted every
// 60/limit seconds. This is not a fixed 60-second window counter: requests
// keep being admitted as tokens refill, so any single 60-second span can
// admit up to about twice limit.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per uuid, created lazily and reclaimed
// opportunistically.
type Limiter struct {
	perMinute int

	mu      sync.Mutex
	buckets map[string]*entry
}

type entry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// New creates a Limiter whose per-uuid buckets hold up to perMinute tokens
// and refill at perMinute tokens per 60 seconds. perMinute <= 0 disables
// enforcement entirely.
func New(perMinute int) *Limiter {
	return &Limiter{perMinute: perMinute, buckets: make(map[string]*entry)}
}

// Allow reports whether uuid may be admitted right now, consuming one token
// if so.
func (l *Limiter) Allow(uuid string) bool {
	if l.perMinute <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.buckets[uuid]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute)}
		l.buckets[uuid] = e
	}
	e.lastUsed = time.Now()
	return e.limiter.Allow()
}

// Forget drops uuid's bucket, used when its subscription is deleted so a
// future resubscribe starts with a clean window.
func (l *Limiter) Forget(uuid string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, uuid)
}

// SweepIdle removes buckets untouched since olderThan, bounding memory for
// subscribers that came and went.
func (l *Limiter) SweepIdle(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for uuid, e := range l.buckets {
		if e.lastUsed.Before(cutoff) {
			delete(l.buckets, uuid)
			removed++
		}
	}
	return removed
}
