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
)

// Numeric tolerances for the speculative probes.
//
// writeEpsilon decides whether a speculative write stuck; poseEpsilon
// decides whether two observed poses differ. Both are far below any
// physically meaningful motion.
const (
	writeEpsilon = 1e-9
	poseEpsilon  = 1e-6
)

// Speculative deltas. Small enough to be physically invisible, large
// enough to clear writeEpsilon by orders of magnitude.
var (
	velocityNudge   = Vec3{X: 1e-3}
	poseRollPerturb = 1e-3
)

// probe is one independent evidence source. Evaluate returns exactly one
// vote and must leave the object's observable state bit-for-bit
// unchanged, regardless of success or failure.
//
// Probes never abort the caller: an unusable signal votes
// AuthorityIndeterminate.
type probe interface {
	Kind() ProbeKind
	Evaluate(ctx context.Context, obj Object) Authority
}

// newProbeSet assembles the closed probe set, indexed by ProbeKind.
//
// Using one fixed table guarantees the fusion aggregator always runs the
// same known set; using five structurally different properties guards
// against any single property being specially restricted by the store.
func newProbeSet(e *Engine) []probe {
	set := make([]probe, 6)
	set[ProbeTag] = &tagProbe{e: e}
	set[ProbeLatency] = &latencyProbe{e: e}
	set[ProbeVelocity] = &velocityProbe{e: e}
	set[ProbePose] = &poseProbe{e: e}
	set[ProbeAnchor] = &anchorProbe{e: e}
	set[ProbeCollision] = &collisionProbe{e: e}
	return set
}

// evaluateProbe runs one probe with the shared nil guard and metrics.
func evaluateProbe(ctx context.Context, p probe, obj Object) Authority {
	if obj == nil {
		recordProbeVote(ctx, p.Kind(), AuthorityIndeterminate)
		return AuthorityIndeterminate
	}
	vote := p.Evaluate(ctx, obj)
	recordProbeVote(ctx, p.Kind(), vote)
	return vote
}

// -----------------------------------------------------------------------------
// Tag probe
// -----------------------------------------------------------------------------

// tagProbe reads the transport's explicit current-authority tag.
//
// An unset tag votes remote: an unassigned object is usually
// server-default-owned, so absence is treated conservatively.
type tagProbe struct {
	e *Engine
}

func (p *tagProbe) Kind() ProbeKind { return ProbeTag }

func (p *tagProbe) Evaluate(_ context.Context, obj Object) Authority {
	tag, err := obj.AuthorityTag()
	if err != nil {
		// Transport does not expose the signal.
		return AuthorityIndeterminate
	}
	if tag == p.e.snapshot().LocalActor {
		return AuthorityLocal
	}
	return AuthorityRemote
}

// -----------------------------------------------------------------------------
// Latency probe
// -----------------------------------------------------------------------------

// latencyProbe reads the time since the last remote state update. An age
// below the threshold votes local; at or above it, remote.
type latencyProbe struct {
	e *Engine
}

func (p *latencyProbe) Kind() ProbeKind { return ProbeLatency }

func (p *latencyProbe) Evaluate(_ context.Context, obj Object) Authority {
	age, err := obj.UpdateAge()
	if err != nil {
		return AuthorityIndeterminate
	}
	if age < p.e.snapshot().LatencyThreshold {
		return AuthorityLocal
	}
	return AuthorityRemote
}

// -----------------------------------------------------------------------------
// Velocity-mutation probe
// -----------------------------------------------------------------------------

// velocityProbe nudges the velocity by a minute delta and checks whether
// the change stuck. A sticking write implies local authority; a rejected
// or silently discarded write implies remote.
type velocityProbe struct {
	e *Engine
}

func (p *velocityProbe) Kind() ProbeKind { return ProbeVelocity }

func (p *velocityProbe) Evaluate(ctx context.Context, obj Object) Authority {
	// Permanently fixed objects are never locally authored; motion
	// writes against them are meaningless, so skip the speculative
	// write entirely.
	if obj.Anchored() {
		return AuthorityRemote
	}

	orig := obj.Velocity()
	want := orig.Add(velocityNudge)
	if err := obj.SetVelocity(want); err != nil {
		// Rejected outright; nothing was written, nothing to revert.
		return AuthorityRemote
	}

	// The write was accepted (possibly silently discarded); restore on
	// every exit path from here.
	defer p.e.restore(ctx, obj.ID(), "velocity", func() error {
		return obj.SetVelocity(orig)
	})

	if !obj.Velocity().ApproxEqual(want, writeEpsilon) {
		return AuthorityRemote
	}
	return AuthorityLocal
}

// -----------------------------------------------------------------------------
// Pose-mutation probe
// -----------------------------------------------------------------------------

// poseProbe applies the velocity probe's pattern to the full spatial
// transform, via a tiny rotation perturbation.
type poseProbe struct {
	e *Engine
}

func (p *poseProbe) Kind() ProbeKind { return ProbePose }

func (p *poseProbe) Evaluate(ctx context.Context, obj Object) Authority {
	if obj.Anchored() {
		return AuthorityRemote
	}

	orig := obj.Pose()
	want := orig
	want.Rotation.Z += poseRollPerturb
	if err := obj.SetPose(want); err != nil {
		return AuthorityRemote
	}

	defer p.e.restore(ctx, obj.ID(), "pose", func() error {
		return obj.SetPose(orig)
	})

	if !obj.Pose().ApproxEqual(want, writeEpsilon) {
		return AuthorityRemote
	}
	return AuthorityLocal
}

// -----------------------------------------------------------------------------
// Fixed-flag probe
// -----------------------------------------------------------------------------

// anchorProbe toggles the fixed/movable flag. It declines (votes
// indeterminate) without attempting the mutation when the object is
// movable and jointed: toggling the flag on a jointed, unfixed object
// risks destabilizing the live simulation.
type anchorProbe struct {
	e *Engine
}

func (p *anchorProbe) Kind() ProbeKind { return ProbeAnchor }

func (p *anchorProbe) Evaluate(ctx context.Context, obj Object) Authority {
	if obj.Anchored() {
		return AuthorityRemote
	}
	if len(obj.Connections()) > 0 {
		return AuthorityIndeterminate
	}

	if err := obj.SetAnchored(true); err != nil {
		return AuthorityRemote
	}

	defer p.e.restore(ctx, obj.ID(), "anchored", func() error {
		return obj.SetAnchored(false)
	})

	if !obj.Anchored() {
		return AuthorityRemote
	}
	return AuthorityLocal
}

// -----------------------------------------------------------------------------
// Collision-flag probe
// -----------------------------------------------------------------------------

// collisionProbe toggles the collision-enabled flag, mutate-and-revert.
type collisionProbe struct {
	e *Engine
}

func (p *collisionProbe) Kind() ProbeKind { return ProbeCollision }

func (p *collisionProbe) Evaluate(ctx context.Context, obj Object) Authority {
	if obj.Anchored() {
		return AuthorityRemote
	}

	orig := obj.CollisionEnabled()
	if err := obj.SetCollisionEnabled(!orig); err != nil {
		return AuthorityRemote
	}

	defer p.e.restore(ctx, obj.ID(), "collision", func() error {
		return obj.SetCollisionEnabled(orig)
	})

	if obj.CollisionEnabled() == orig {
		return AuthorityRemote
	}
	return AuthorityLocal
}

// -----------------------------------------------------------------------------
// Revert guard
// -----------------------------------------------------------------------------

// restore runs a speculative probe's revert step. The vote already
// reflects the original observation; a failed revert cannot change it,
// but it means the object may now be desynchronized, which is surfaced
// on the diagnostic channel.
func (e *Engine) restore(ctx context.Context, id ObjectID, property string, fn func() error) {
	if err := fn(); err != nil {
		e.diagnose(ctx, Diagnostic{
			Object:  id,
			Code:    DiagRevertFailed,
			Message: fmt.Sprintf("failed to restore %s after speculative write: %v", property, err),
		})
	}
}
