// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package authority

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// cacheEntry is one timestamped authority verdict. Owned exclusively by
// the result cache; no entry outlives the process.
type cacheEntry struct {
	authority  Authority
	observedAt time.Time
}

// resultCache maps object identity to a timestamped authority result
// with a configurable TTL. It amortizes fusion calls: the fast path
// consults it before evaluating any probe.
//
// Entries are lazily evicted when read stale, and opportunistically
// swept on writes; sweeps also drop entries whose object no longer
// exists in the live scene. The sweep is rate-limited to avoid
// thrashing under high write volume.
//
// Thread Safety: safe for concurrent use.
type resultCache struct {
	mu      sync.RWMutex
	entries map[ObjectID]cacheEntry
	ttl     time.Duration
	limiter *rate.Limiter
	now     func() time.Time
	live    func(ObjectID) bool

	// Stats
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func newResultCache(ttl, sweepInterval time.Duration, now func() time.Time, live func(ObjectID) bool) *resultCache {
	return &resultCache{
		entries: make(map[ObjectID]cacheEntry),
		ttl:     ttl,
		limiter: rate.NewLimiter(rate.Every(sweepInterval), 1),
		now:     now,
		live:    live,
	}
}

// get returns the cached authority when a live, non-stale entry exists.
func (c *resultCache) get(ctx context.Context, id ObjectID) (Authority, bool) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	ttl := c.ttl
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.observedAt) >= ttl {
		c.misses.Add(1)
		recordCacheMiss(ctx)
		return AuthorityIndeterminate, false
	}
	c.hits.Add(1)
	recordCacheHit(ctx)
	return entry.authority, true
}

// put stores a verdict, overwriting any stale entry, and opportunistically
// sweeps.
func (c *resultCache) put(ctx context.Context, id ObjectID, authority Authority) {
	observedAt := c.now()
	c.mu.Lock()
	c.entries[id] = cacheEntry{authority: authority, observedAt: observedAt}
	c.mu.Unlock()

	c.maybeSweep(ctx)
}

// maybeSweep removes stale and dead entries, at most once per configured
// sweep interval.
func (c *resultCache) maybeSweep(ctx context.Context) {
	now := c.now()
	// AllowN with the injected clock so manual-clock tests control the
	// sweep cadence.
	if !c.limiter.AllowN(now, 1) {
		return
	}
	c.mu.Lock()
	ttl := c.ttl
	var dead []ObjectID
	for id, entry := range c.entries {
		if now.Sub(entry.observedAt) >= ttl {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		delete(c.entries, id)
	}
	// Liveness checks call into the world; collect candidates under the
	// lock, resolve them outside it.
	candidates := make([]ObjectID, 0, len(c.entries))
	for id := range c.entries {
		candidates = append(candidates, id)
	}
	c.mu.Unlock()

	evicted := len(dead)
	for _, id := range candidates {
		if c.live(id) {
			continue
		}
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		evicted++
	}

	c.evictions.Add(int64(evicted))
	recordCacheSweep(ctx, evicted)
}

// clear drops all entries unconditionally.
func (c *resultCache) clear() {
	c.mu.Lock()
	c.entries = make(map[ObjectID]cacheEntry)
	c.mu.Unlock()
}

func (c *resultCache) setTTL(ttl time.Duration) {
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

func (c *resultCache) setSweepInterval(interval time.Duration) {
	c.limiter.SetLimit(rate.Every(interval))
}

// len reports the number of entries, stale included.
func (c *resultCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
