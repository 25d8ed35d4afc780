// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package authz

import (
	"sync"
	"time"
)

type cacheKey struct {
	subject string
	object  string
	action  string
}

type cacheItem struct {
	allowed   bool
	expiresAt time.Time
}

// enforcementCache caches authorization decisions for a fixed TTL.
type enforcementCache struct {
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
	items    map[cacheKey]cacheItem
	stopChan chan struct{}
	stopOnce sync.Once
}

func newEnforcementCache(ttl time.Duration) *enforcementCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &enforcementCache{
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[cacheKey]cacheItem),
		stopChan: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *enforcementCache) get(subject, object, action string) (allowed, ok bool) {
	c.mu.RLock()
	item, found := c.items[cacheKey{subject, object, action}]
	c.mu.RUnlock()

	if !found || c.now().After(item.expiresAt) {
		return false, false
	}
	return item.allowed, true
}

func (c *enforcementCache) set(subject, object, action string, allowed bool) {
	c.mu.Lock()
	c.items[cacheKey{subject, object, action}] = cacheItem{
		allowed:   allowed,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// invalidateSubject drops every decision cached for subject.
func (c *enforcementCache) invalidateSubject(subject string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if k.subject == subject {
			delete(c.items, k)
		}
	}
}

func (c *enforcementCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *enforcementCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, k)
		}
	}
}

func (c *enforcementCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

// stop is idempotent.
func (c *enforcementCache) stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}
