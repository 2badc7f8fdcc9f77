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
	"time"

	"github.com/google/uuid"
)

// shadowMember pairs one assembly member with its shadow clone.
type shadowMember struct {
	originalID ObjectID
	shadow     Object
	startPose  Pose
	lastPose   Pose
	lastVel    Vec3
}

// shadowRun is the transient state of one SimulatePhysics dry run.
type shadowRun struct {
	e        *Engine
	runID    string
	deadline time.Time
	members  []*shadowMember
	assembly AssemblyResult
	cb       func(SimulationReport)
}

// SimulatePhysics dry-runs a force application without touching the live
// scene.
//
// The full assembly is cloned into non-interacting shadow copies, the
// force is applied only to the shadow counterpart of the target, each
// shadow member's pose is sampled every scheduler tick for duration, and
// the completion callback receives per-member displacement and final
// velocity. Every clone is discarded afterwards.
//
// If the assembly is not fully safe the callback fires immediately with
// OK=false, the partial assembly, and the current authority inference —
// no clones are created — and a nil handle is returned.
//
// Cancelling the returned handle discards all clones immediately and
// suppresses the callback.
func (e *Engine) SimulatePhysics(ctx context.Context, id ObjectID, force Vec3, duration time.Duration, cb func(SimulationReport)) (*TaskHandle, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}
	if duration <= 0 {
		return nil, ErrInvalidWindow
	}
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	assembly := e.CollectAssembly(ctx, id, true)
	if !assembly.AllSafe {
		recordShadowRun(ctx, "declined")
		cb(SimulationReport{
			OK:        false,
			Assembly:  assembly,
			Inference: e.Infer(ctx, id),
		})
		return nil, nil
	}

	run := &shadowRun{
		e:        e,
		runID:    uuid.NewString(),
		deadline: e.now().Add(duration),
		assembly: assembly,
		cb:       cb,
	}

	for _, memberID := range assembly.Members {
		shadow, err := e.world.Clone(memberID)
		if err != nil {
			run.discard()
			recordShadowRun(ctx, "clone_failed")
			e.diagnose(ctx, Diagnostic{
				Object:  memberID,
				Code:    DiagMutationError,
				Message: fmt.Sprintf("shadow clone failed: %v", err),
			})
			cb(SimulationReport{
				OK:        false,
				Assembly:  assembly,
				Inference: e.Infer(ctx, id),
			})
			return nil, nil
		}
		pose := shadow.Pose()
		run.members = append(run.members, &shadowMember{
			originalID: memberID,
			shadow:     shadow,
			startPose:  pose,
			lastPose:   pose,
			lastVel:    shadow.Velocity(),
		})
		if memberID == id {
			if err := shadow.ApplyForce(force); err != nil {
				e.diagnose(ctx, Diagnostic{
					Object:  memberID,
					Code:    DiagMutationError,
					Message: fmt.Sprintf("shadow force rejected: %v", err),
				})
			}
		}
	}

	e.log.Debug("shadow run started",
		"run", run.runID,
		"object", string(id),
		"members", len(run.members),
		"duration", duration)
	return e.sched.Register(run.step, run.discard), nil
}

// step samples each shadow member's pose; at the deadline it reports and
// tears down.
func (r *shadowRun) step(now time.Time) bool {
	for _, m := range r.members {
		m.lastPose = m.shadow.Pose()
		m.lastVel = m.shadow.Velocity()
	}
	if now.Before(r.deadline) {
		return false
	}

	report := SimulationReport{
		OK:       true,
		Assembly: r.assembly,
		Members:  make([]MemberOutcome, 0, len(r.members)),
	}
	for _, m := range r.members {
		report.Members = append(report.Members, MemberOutcome{
			ID:            m.originalID,
			Displacement:  m.lastPose.Position.Sub(m.startPose.Position),
			FinalVelocity: m.lastVel,
		})
	}

	r.discard()
	recordShadowRun(context.Background(), "completed")
	r.cb(report)
	return true
}

// discard destroys every shadow clone created so far. Used both for
// normal teardown and for cancellation.
func (r *shadowRun) discard() {
	for _, m := range r.members {
		if m.shadow == nil {
			continue
		}
		if err := r.e.world.Destroy(m.shadow.ID()); err != nil {
			r.e.log.Warn("shadow clone not destroyed",
				"run", r.runID,
				"clone", string(m.shadow.ID()),
				"error", err)
		}
		m.shadow = nil
	}
}
