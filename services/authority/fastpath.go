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

	"golang.org/x/sync/errgroup"
)

// ScanOptions filters GetObjectsWithAuthority scans.
type ScanOptions struct {
	// Region, when non-nil, restricts the scan to objects inside it.
	Region *Region

	// SkipAnchored excludes permanently fixed objects.
	SkipAnchored bool

	// MaxScan caps the number of objects examined. The scan stops the
	// instant the cap is reached, not after a full pass. Zero means
	// unlimited.
	MaxScan int
}

// FastCheck returns a cheap authority verdict, trading peak accuracy for
// call volume.
//
// A live, non-stale cache entry is returned immediately. Otherwise cheap
// signals are evaluated in strict priority order, short-circuiting on
// the first decisive one: the permanently-fixed flag (fixed objects are
// never locally authored), the tag probe, the latency probe, and the
// velocity-mutation probe as a last resort. The result is cached.
//
// Concurrent misses on the same object are deduplicated; only one
// evaluation runs.
func (e *Engine) FastCheck(ctx context.Context, id ObjectID) Authority {
	if auth, ok := e.cache.get(ctx, id); ok {
		return auth
	}

	v, _, _ := e.flight.Do(string(id), func() (any, error) {
		// Another caller may have populated the cache while this one
		// waited on the flight group.
		if auth, ok := e.cache.get(ctx, id); ok {
			return auth, nil
		}

		auth, cacheable := e.fastEvaluate(ctx, id)
		if cacheable {
			e.cache.put(ctx, id, auth)
		}
		return auth, nil
	})
	return v.(Authority)
}

// fastEvaluate runs the reduced signal chain. cacheable is false for
// invalid targets: a verdict about a dead handle is not worth an entry.
func (e *Engine) fastEvaluate(ctx context.Context, id ObjectID) (auth Authority, cacheable bool) {
	obj, ok := e.resolve(ctx, id)
	if !ok {
		return AuthorityIndeterminate, false
	}

	if obj.Anchored() {
		return AuthorityRemote, true
	}

	for _, p := range e.fastProbes {
		if vote := evaluateProbe(ctx, p, obj); vote != AuthorityIndeterminate {
			return vote, true
		}
	}
	return AuthorityIndeterminate, true
}

// DetailedCheck bypasses the fast path: it always runs full fusion, and
// still writes the cache, so a caller can pay the accuracy cost while
// warming subsequent fast calls.
func (e *Engine) DetailedCheck(ctx context.Context, id ObjectID) InferenceResult {
	res := e.Infer(ctx, id)
	if _, ok := e.world.Object(id); ok {
		e.cache.put(ctx, id, res.Authority)
	}
	return res
}

// BatchProcess runs FastCheck over the given objects with bounded
// concurrency and returns a verdict for every requested ID, invalid
// handles included (as AuthorityIndeterminate).
func (e *Engine) BatchProcess(ctx context.Context, ids []ObjectID) map[ObjectID]Authority {
	out := make(map[ObjectID]Authority, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.snapshot().BatchConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			auth := e.FastCheck(gctx, id)
			mu.Lock()
			out[id] = auth
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()
	return out
}

// GetObjectsWithAuthority scans the live scene and returns the objects
// whose fast-path verdict matches kind, subject to the scan options.
func (e *Engine) GetObjectsWithAuthority(ctx context.Context, kind Authority, opts ScanOptions) []ObjectID {
	var out []ObjectID
	scanned := 0
	for _, obj := range e.world.Objects() {
		if opts.MaxScan > 0 && scanned >= opts.MaxScan {
			break
		}
		scanned++

		if opts.SkipAnchored && obj.Anchored() {
			continue
		}
		if opts.Region != nil && !opts.Region.Contains(obj.Pose().Position) {
			continue
		}
		if e.FastCheck(ctx, obj.ID()) == kind {
			out = append(out, obj.ID())
		}
	}
	return out
}
