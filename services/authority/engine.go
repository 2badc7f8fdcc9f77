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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianSim/pkg/logging"
)

// Engine is the authority inference engine. Construct with New; the
// zero value is not usable.
//
// Thread Safety: safe for concurrent use.
type Engine struct {
	world World
	log   *logging.Logger
	diag  DiagnosticFunc
	now   func() time.Time

	// Dynamic configuration, swapped atomically by Reconfigure.
	cfgMu sync.RWMutex
	cfg   Config

	probes     []probe
	fastProbes []probe
	cache      *resultCache
	flight     singleflight.Group
	sched      *Scheduler

	closed atomic.Bool
}

// Option customizes Engine construction.
type Option func(*Engine)

// WithLogger sets the engine's logger. Default: logging.Default().
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) { e.log = logger }
}

// WithClock injects the time source used by the cache, the scheduler,
// and the sampling windows. Tests use this to drive time manually.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDiagnosticFunc installs an out-of-band diagnostic receiver.
// Default: diagnostics are logged at Warn.
func WithDiagnosticFunc(fn DiagnosticFunc) Option {
	return func(e *Engine) { e.diag = fn }
}

// New creates an Engine observing the given world as cfg.LocalActor.
func New(world World, cfg Config, opts ...Option) (*Engine, error) {
	if world == nil {
		return nil, fmt.Errorf("%w: world must not be nil", ErrInvalidConfig)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		world: world,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.Default()
	}
	if e.diag == nil {
		log := e.log
		e.diag = func(d Diagnostic) {
			log.Warn("engine diagnostic",
				"code", string(d.Code),
				"object", string(d.Object),
				"message", d.Message)
		}
	}

	e.probes = newProbeSet(e)
	// Fast-path subset, in strict priority order after the anchored
	// short-circuit: tag, latency, velocity as a last resort.
	e.fastProbes = []probe{e.probes[ProbeTag], e.probes[ProbeLatency], e.probes[ProbeVelocity]}
	e.cache = newResultCache(cfg.CacheTTL, cfg.SweepInterval, e.now, func(id ObjectID) bool {
		_, ok := world.Object(id)
		return ok
	})
	e.sched = NewScheduler(e.now)

	e.log.Info("authority engine created",
		"local_actor", string(cfg.LocalActor),
		"cache_ttl", cfg.CacheTTL,
		"tick_interval", cfg.TickInterval)
	return e, nil
}

// Run drives the tick scheduler from a wall-clock ticker until the
// context is cancelled. Blocks; run it in a goroutine. Alternatively,
// embedders with their own frame loop call Step once per frame.
func (e *Engine) Run(ctx context.Context) {
	e.sched.Run(ctx, e.snapshot().TickInterval)
}

// Step runs one scheduler tick synchronously.
func (e *Engine) Step() {
	e.sched.Step()
}

// Close marks the engine closed. Pending windowed tasks are cancelled
// without firing their callbacks.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.cancelAllTasks()
	e.log.Info("authority engine closed")
}

func (e *Engine) cancelAllTasks() {
	e.sched.mu.Lock()
	ids := make([]uint64, 0, len(e.sched.tasks))
	for id := range e.sched.tasks {
		ids = append(ids, id)
	}
	e.sched.mu.Unlock()
	for _, id := range ids {
		e.sched.cancel(id)
	}
}

// Reconfigure swaps the dynamic configuration subset: thresholds,
// latency boundary, cache TTL, and sweep interval. LocalActor and
// TickInterval are ignored; they are fixed at construction.
func (e *Engine) Reconfigure(cfg Config) {
	cfg.applyDefaults()

	e.cfgMu.Lock()
	cfg.LocalActor = e.cfg.LocalActor
	cfg.TickInterval = e.cfg.TickInterval
	e.cfg = cfg
	e.cfgMu.Unlock()

	e.cache.setTTL(cfg.CacheTTL)
	e.cache.setSweepInterval(cfg.SweepInterval)
}

// SetCacheLifetime changes the result cache's TTL.
func (e *Engine) SetCacheLifetime(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	e.cfgMu.Lock()
	e.cfg.CacheTTL = ttl
	e.cfgMu.Unlock()
	e.cache.setTTL(ttl)
}

// ClearCache drops all cached results unconditionally.
func (e *Engine) ClearCache() {
	e.cache.clear()
}

// snapshot returns a consistent copy of the dynamic config.
func (e *Engine) snapshot() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// resolve looks up a live object, surfacing an invalid-target diagnostic
// when the handle is dead.
func (e *Engine) resolve(ctx context.Context, id ObjectID) (Object, bool) {
	obj, ok := e.world.Object(id)
	if !ok {
		e.diagnose(ctx, Diagnostic{
			Object:  id,
			Code:    DiagInvalidTarget,
			Message: "object does not resolve in the live scene",
		})
		return nil, false
	}
	return obj, true
}

func (e *Engine) diagnose(ctx context.Context, d Diagnostic) {
	recordDiagnostic(ctx, d.Code)
	e.diag(d)
}
