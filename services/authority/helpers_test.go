// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package authority_test

import (
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianSim/services/authority"
	"github.com/AleutianAI/AleutianSim/services/authority/memworld"
)

const (
	localActor  = authority.ActorID("player-1")
	remoteActor = authority.ActorID("server")
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// diagRecorder collects engine diagnostics for assertions.
type diagRecorder struct {
	mu    sync.Mutex
	diags []authority.Diagnostic
}

func (r *diagRecorder) record(d authority.Diagnostic) {
	r.mu.Lock()
	r.diags = append(r.diags, d)
	r.mu.Unlock()
}

func (r *diagRecorder) has(code authority.DiagnosticCode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

// newTestEngine builds an engine observing w as localActor, on a manual
// clock, with diagnostics recorded.
func newTestEngine(t *testing.T, w *memworld.World) (*authority.Engine, *fakeClock, *diagRecorder) {
	t.Helper()

	clock := newFakeClock()
	rec := &diagRecorder{}
	cfg := authority.DefaultConfig()
	cfg.LocalActor = localActor

	eng, err := authority.New(w.View(localActor), cfg,
		authority.WithClock(clock.Now),
		authority.WithDiagnosticFunc(rec.record),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(eng.Close)
	return eng, clock, rec
}

// spawnLocal creates a body the local actor owns outright: visible tag,
// no replication-age signal, all writes stick.
func spawnLocal(w *memworld.World, id authority.ObjectID) authority.ObjectID {
	return w.Spawn(memworld.BodySpec{
		ID:         id,
		Owner:      localActor,
		AgeUnknown: true,
		Mass:       1,
	})
}

// spawnRemote creates a body the server owns: visible tag, stale
// replication age, non-owner writes rejected outright.
func spawnRemote(w *memworld.World, id authority.ObjectID) authority.ObjectID {
	return w.Spawn(memworld.BodySpec{
		ID:        id,
		Owner:     remoteActor,
		UpdateAge: 250 * time.Millisecond,
		Mass:      1,
		Policy:    memworld.RejectWrites,
	})
}

// voteFor extracts one probe's vote from a detailed report.
func voteFor(t *testing.T, report authority.DetailedReport, kind authority.ProbeKind) authority.Authority {
	t.Helper()
	for _, v := range report.Votes {
		if v.Probe == kind {
			return v.Vote
		}
	}
	t.Fatalf("no vote recorded for probe %v", kind)
	return authority.AuthorityIndeterminate
}
