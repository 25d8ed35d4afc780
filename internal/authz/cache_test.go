// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package authz

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestCache(t *testing.T, ttl time.Duration) (*enforcementCache, *time.Time) {
	t.Helper()
	c := newEnforcementCache(ttl)
	t.Cleanup(c.stop)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestNewEnforcementCache_DefaultTTL(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		c := newEnforcementCache(ttl)
		if c.ttl != 5*time.Minute {
			t.Errorf("ttl for %v = %v, want 5m", ttl, c.ttl)
		}
		c.stop()
	}
}

func TestEnforcementCache_SetGetExpire(t *testing.T) {
	c, now := newTestCache(t, time.Minute)

	if _, ok := c.get("u", "/o", "read"); ok {
		t.Fatal("empty cache returned a hit")
	}

	c.set("u", "/o", "read", true)
	c.set("u", "/o", "write", false)

	if allowed, ok := c.get("u", "/o", "read"); !ok || !allowed {
		t.Errorf("get(read) = %v, %v", allowed, ok)
	}
	if allowed, ok := c.get("u", "/o", "write"); !ok || allowed {
		t.Errorf("get(write) = %v, %v", allowed, ok)
	}

	*now = now.Add(2 * time.Minute)
	if _, ok := c.get("u", "/o", "read"); ok {
		t.Error("expired entry returned a hit")
	}

	c.evictExpired()
	if c.len() != 0 {
		t.Errorf("len after eviction = %d", c.len())
	}
}

func TestEnforcementCache_KeysDoNotCollide(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	// "a:b" + "c" and "a" + "b:c" joined with ':' would collide.
	c.set("a:b", "c", "read", true)
	if _, ok := c.get("a", "b:c", "read"); ok {
		t.Error("distinct keys collided")
	}
}

func TestEnforcementCache_InvalidateSubject(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	c.set("u1", "/a", "read", true)
	c.set("u1", "/b", "read", true)
	c.set("u10", "/a", "read", true)

	c.invalidateSubject("u1")

	if _, ok := c.get("u1", "/a", "read"); ok {
		t.Error("u1 entry survived invalidation")
	}
	if _, ok := c.get("u10", "/a", "read"); !ok {
		t.Error("u10 entry was invalidated")
	}
}

func TestEnforcementCache_StopIdempotent(t *testing.T) {
	c := newEnforcementCache(time.Minute)
	c.stop()
	c.stop()
}

func TestEnforcementCache_ConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sub := fmt.Sprintf("u%d", n)
			for j := 0; j < 100; j++ {
				c.set(sub, "/o", "read", j%2 == 0)
				c.get(sub, "/o", "read")
				if j%25 == 0 {
					c.invalidateSubject(sub)
				}
			}
		}(i)
	}
	wg.Wait()
}

func BenchmarkCache_Get(b *testing.B) {
	c := newEnforcementCache(time.Minute)
	defer c.stop()
	c.set("u", "/api/v1/points/me", "read", true)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.get("u", "/api/v1/points/me", "read")
	}
}
