// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package mqtt

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// streamLimiter holds one token bucket per stream.
type streamLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newStreamLimiter(perSecond float64, burst int) *streamLimiter {
	if burst < 1 {
		burst = 1
	}
	return &streamLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		idle:     time.Hour,
		now:      time.Now,
	}
}

// allow reports whether the stream may submit another batch now.
func (l *streamLimiter) allow(stream string) bool {
	now := l.now()
	l.mu.Lock()
	entry, ok := l.limiters[stream]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[stream] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	l.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// prune drops buckets not used within the idle window.
func (l *streamLimiter) prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	threshold := l.now().Add(-l.idle)
	removed := 0
	for stream, entry := range l.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(l.limiters, stream)
			removed++
		}
	}
	return removed
}

func (l *streamLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
