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
	"context"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianSim/services/authority"
	"github.com/AleutianAI/AleutianSim/services/authority/memworld"
)

func TestFastCheck_AnchoredIsAlwaysRemote(t *testing.T) {
	w := memworld.New()
	id := w.Spawn(memworld.BodySpec{
		ID:         "pillar",
		Owner:      localActor, // even a locally tagged object
		AgeUnknown: true,
		Anchored:   true,
		Mass:       100,
	})
	eng, _, _ := newTestEngine(t, w)

	if got := eng.FastCheck(context.Background(), id); got != authority.AuthorityRemote {
		t.Errorf("FastCheck(anchored) = %v, want remote", got)
	}
}

func TestFastCheck_ServesCachedVerdictUntilTTL(t *testing.T) {
	w := memworld.New()
	id := w.Spawn(memworld.BodySpec{
		ID:         "crate",
		Owner:      localActor,
		AgeUnknown: true,
		Mass:       1,
		Policy:     memworld.OverwriteWrites,
	})
	eng, clock, _ := newTestEngine(t, w)
	ctx := context.Background()

	if got := eng.FastCheck(ctx, id); got != authority.AuthorityLocal {
		t.Fatalf("FastCheck() = %v, want local", got)
	}

	// Ownership moves to the server; the cached verdict still answers
	// until it goes stale.
	w.SetOwner(id, remoteActor)
	if got := eng.FastCheck(ctx, id); got != authority.AuthorityLocal {
		t.Errorf("FastCheck() within TTL = %v, want cached local", got)
	}

	clock.Advance(2 * time.Second)
	if got := eng.FastCheck(ctx, id); got != authority.AuthorityRemote {
		t.Errorf("FastCheck() after TTL = %v, want remote", got)
	}
}

func TestFastCheck_PriorityOrder(t *testing.T) {
	w := memworld.New()
	eng, _, _ := newTestEngine(t, w)
	ctx := context.Background()

	t.Run("tag beats latency", func(t *testing.T) {
		// Local tag but stale age: the tag is decisive first.
		id := w.Spawn(memworld.BodySpec{
			ID:        "tagged",
			Owner:     localActor,
			UpdateAge: 250 * time.Millisecond,
			Mass:      1,
		})
		if got := eng.FastCheck(ctx, id); got != authority.AuthorityLocal {
			t.Errorf("FastCheck() = %v, want local from the tag", got)
		}
	})

	t.Run("latency beats velocity", func(t *testing.T) {
		// No tag, fresh age, writes silently discarded: latency answers
		// before the velocity probe would say remote.
		id := w.Spawn(memworld.BodySpec{
			ID:        "fresh",
			Owner:     remoteActor,
			TagHidden: true,
			UpdateAge: 20 * time.Millisecond,
			Mass:      1,
			Policy:    memworld.OverwriteWrites,
		})
		if got := eng.FastCheck(ctx, id); got != authority.AuthorityLocal {
			t.Errorf("FastCheck() = %v, want local from latency", got)
		}
	})

	t.Run("velocity as last resort", func(t *testing.T) {
		id := w.Spawn(memworld.BodySpec{
			ID:         "silent",
			Owner:      localActor,
			TagHidden:  true,
			AgeUnknown: true,
			Mass:       1,
		})
		if got := eng.FastCheck(ctx, id); got != authority.AuthorityLocal {
			t.Errorf("FastCheck() = %v, want local from the velocity probe", got)
		}
	})
}

func TestFastCheck_InvalidTarget(t *testing.T) {
	w := memworld.New()
	eng, _, rec := newTestEngine(t, w)

	if got := eng.FastCheck(context.Background(), "ghost"); got != authority.AuthorityIndeterminate {
		t.Errorf("FastCheck(dead) = %v, want indeterminate", got)
	}
	if !rec.has(authority.DiagInvalidTarget) {
		t.Error("expected invalid_target diagnostic")
	}
}

func TestClearCache_DropsVerdicts(t *testing.T) {
	w := memworld.New()
	id := w.Spawn(memworld.BodySpec{
		ID:         "crate",
		Owner:      localActor,
		AgeUnknown: true,
		Mass:       1,
		Policy:     memworld.OverwriteWrites,
	})
	eng, _, _ := newTestEngine(t, w)
	ctx := context.Background()

	if got := eng.FastCheck(ctx, id); got != authority.AuthorityLocal {
		t.Fatalf("FastCheck() = %v, want local", got)
	}
	w.SetOwner(id, remoteActor)
	eng.ClearCache()

	if got := eng.FastCheck(ctx, id); got != authority.AuthorityRemote {
		t.Errorf("FastCheck() after ClearCache = %v, want remote", got)
	}
}

func TestDetailedCheck_WarmsFastPath(t *testing.T) {
	w := memworld.New()
	id := spawnLocal(w, "crate")
	eng, _, _ := newTestEngine(t, w)
	ctx := context.Background()

	res := eng.DetailedCheck(ctx, id)
	if res.Authority != authority.AuthorityLocal {
		t.Fatalf("DetailedCheck() = %+v, want local", res)
	}

	// The fast path now answers from the warmed cache even after
	// ownership changed underneath.
	w.SetOwner(id, remoteActor)
	if got := eng.FastCheck(ctx, id); got != authority.AuthorityLocal {
		t.Errorf("FastCheck() after warm = %v, want cached local", got)
	}
}

func TestBatchProcess_AnswersEveryID(t *testing.T) {
	w := memworld.New()
	local := spawnLocal(w, "crate")
	remote := spawnRemote(w, "npc")
	eng, _, _ := newTestEngine(t, w)

	ids := []authority.ObjectID{local, remote, "never-spawned"}
	got := eng.BatchProcess(context.Background(), ids)

	if len(got) != len(ids) {
		t.Fatalf("BatchProcess returned %d verdicts, want %d", len(got), len(ids))
	}
	if got[local] != authority.AuthorityLocal {
		t.Errorf("verdict[%s] = %v, want local", local, got[local])
	}
	if got[remote] != authority.AuthorityRemote {
		t.Errorf("verdict[%s] = %v, want remote", remote, got[remote])
	}
	if got["never-spawned"] != authority.AuthorityIndeterminate {
		t.Errorf("verdict[never-spawned] = %v, want indeterminate", got["never-spawned"])
	}
}

func TestGetObjectsWithAuthority(t *testing.T) {
	w := memworld.New()
	near := w.Spawn(memworld.BodySpec{
		ID: "near", Owner: localActor, AgeUnknown: true, Mass: 1,
		Pose: authority.Pose{Position: authority.Vec3{X: 1}},
	})
	w.Spawn(memworld.BodySpec{
		ID: "far", Owner: localActor, AgeUnknown: true, Mass: 1,
		Pose: authority.Pose{Position: authority.Vec3{X: 100}},
	})
	w.Spawn(memworld.BodySpec{
		ID: "anchor", Owner: localActor, AgeUnknown: true, Mass: 1, Anchored: true,
	})
	spawnRemote(w, "npc")
	eng, _, _ := newTestEngine(t, w)
	ctx := context.Background()

	t.Run("kind filter", func(t *testing.T) {
		got := eng.GetObjectsWithAuthority(ctx, authority.AuthorityRemote, authority.ScanOptions{})
		// The anchored body and the server-owned body both read remote.
		if len(got) != 2 {
			t.Fatalf("remote scan returned %v, want 2 objects", got)
		}
	})

	t.Run("skip anchored", func(t *testing.T) {
		got := eng.GetObjectsWithAuthority(ctx, authority.AuthorityRemote, authority.ScanOptions{
			SkipAnchored: true,
		})
		if len(got) != 1 || got[0] != "npc" {
			t.Fatalf("remote scan = %v, want [npc]", got)
		}
	})

	t.Run("region filter", func(t *testing.T) {
		// "far" is outside the region; "anchor" is inside but reads
		// remote; only "near" qualifies.
		got := eng.GetObjectsWithAuthority(ctx, authority.AuthorityLocal, authority.ScanOptions{
			Region: &authority.Region{Center: authority.Vec3{}, Radius: 10},
		})
		if len(got) != 1 || got[0] != near {
			t.Fatalf("local scan in region = %v, want [near]", got)
		}
	})

	t.Run("max scan caps examination", func(t *testing.T) {
		got := eng.GetObjectsWithAuthority(ctx, authority.AuthorityLocal, authority.ScanOptions{
			MaxScan: 1,
		})
		if len(got) > 1 {
			t.Fatalf("scan with MaxScan=1 returned %d objects", len(got))
		}
	})
}
