// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestLRU(capacity int, ttl time.Duration) (*LRU[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRU[string](capacity, ttl)
	c.now = clock.Now
	return c, clock
}

func TestLRU_BasicOperations(t *testing.T) {
	c, _ := newTestLRU(3, time.Minute)

	c.Add("a", "1")
	c.Add("b", "2")
	c.Add("c", "3")

	for key, want := range map[string]string{"a": "1", "b": "2", "c": "3"} {
		got, ok := c.Get(key)
		if !ok {
			t.Fatalf("expected to find %q", key)
		}
		if got != want {
			t.Errorf("Get(%q) = %q, want %q", key, got, want)
		}
	}
	if c.Len() != 3 {
		t.Errorf("expected len 3, got %d", c.Len())
	}
}

func TestLRU_Eviction(t *testing.T) {
	c, _ := newTestLRU(3, time.Minute)

	c.Add("a", "1")
	c.Add("b", "2")
	c.Add("c", "3")
	c.Get("a")
	c.Add("d", "4")

	if _, ok := c.Get("b"); ok {
		t.Error("expected 'b' to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("expected %q to be present", key)
		}
	}
}

func TestLRU_AddReplacesAndRefreshesTTL(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)

	c.Add("a", "old")
	clock.Advance(50 * time.Second)
	c.Add("a", "new")
	clock.Advance(50 * time.Second)

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("expected refreshed entry to survive")
	}
	if got != "new" {
		t.Errorf("expected replaced value, got %q", got)
	}
	if c.Len() != 1 {
		t.Errorf("expected len 1, got %d", c.Len())
	}
}

func TestLRU_TTLExpiration(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)

	c.Add("a", "1")
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected to find 'a' immediately")
	}

	clock.Advance(time.Minute + time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("expected 'a' to expire")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry to be dropped on read, len %d", c.Len())
	}
}

func TestLRU_Remove(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)

	c.Add("a", "1")
	if !c.Remove("a") {
		t.Error("expected Remove to report true")
	}
	if c.Remove("a") {
		t.Error("expected second Remove to report false")
	}
}

func TestLRU_CleanupExpired(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)

	c.Add("a", "1")
	c.Add("b", "2")
	clock.Advance(30 * time.Second)
	c.Add("c", "3")
	clock.Advance(45 * time.Second)

	if removed := c.CleanupExpired(); removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected 'c' to remain")
	}
}

func TestLRU_Stats(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)

	c.Add("a", "1")
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	hits, misses, size := c.Stats()
	if hits != 2 || misses != 1 || size != 1 {
		t.Errorf("Stats() = %d, %d, %d; want 2, 1, 1", hits, misses, size)
	}
}

func TestLRU_Defaults(t *testing.T) {
	c := NewLRU[int](0, 0)
	if c.capacity != defaultCapacity {
		t.Errorf("expected default capacity, got %d", c.capacity)
	}
	if c.ttl != defaultTTL {
		t.Errorf("expected default ttl, got %v", c.ttl)
	}
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int](100, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := strconv.Itoa((g*500 + i) % 250)
				c.Add(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("cache exceeded capacity: %d", c.Len())
	}
}
