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
	"time"

	"github.com/google/uuid"
)

// samplingSession accumulates pose-change observations for one
// ObserveOverWindow call. All fields are touched only from scheduler
// ticks, so no locking is needed.
type samplingSession struct {
	e         *Engine
	sessionID string
	object    ObjectID
	deadline  time.Time

	lastPose       Pose
	lastRemotePose Pose
	hasRemotePose  bool

	changes       int
	remoteChanges int

	cb func(InferenceResult)
}

// ObserveOverWindow watches the object's pose for the given window and
// reports, via exactly one callback invocation, whether the observed
// movement is better explained by the remote authority or by local
// simulation.
//
// A pose change counts as remote-attributed when the object's replication
// age at the sample is fresh (below the latency threshold) and the pose
// differs from the last remotely-attributed pose. Remote-attributed
// changes in the strict majority yield AuthorityRemote with confidence
// equal to the attributed fraction; otherwise AuthorityLocal with the
// complement. A window with no pose changes at all yields
// AuthorityIndeterminate with confidence 0.
//
// If the object vanishes mid-window the session ends early and reports
// from the data gathered so far, alongside a diagnostic. An invalid
// target at call time fires the callback immediately with an
// indeterminate result and returns a nil handle.
//
// Cancelling the returned handle suppresses the callback.
func (e *Engine) ObserveOverWindow(ctx context.Context, id ObjectID, window time.Duration, cb func(InferenceResult)) (*TaskHandle, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	obj, ok := e.resolve(ctx, id)
	if !ok {
		cb(InferenceResult{Authority: AuthorityIndeterminate})
		return nil, nil
	}

	s := &samplingSession{
		e:         e,
		sessionID: uuid.NewString(),
		object:    id,
		deadline:  e.now().Add(window),
		lastPose:  obj.Pose(),
		cb:        cb,
	}

	recordSessionDelta(ctx, 1)
	e.log.Debug("sampling window opened",
		"session", s.sessionID,
		"object", string(id),
		"window", window)
	return e.sched.Register(s.step, s.release), nil
}

// step takes one pose sample. Returns true once the session has reported.
func (s *samplingSession) step(now time.Time) bool {
	ctx := context.Background()

	obj, ok := s.e.world.Object(s.object)
	if !ok {
		s.e.diagnose(ctx, Diagnostic{
			Object:  s.object,
			Code:    DiagObjectVanished,
			Message: "object removed mid-window; reporting partial data",
		})
		s.finish(ctx)
		return true
	}

	pose := obj.Pose()
	if !pose.ApproxEqual(s.lastPose, poseEpsilon) {
		s.changes++
		if age, err := obj.UpdateAge(); err == nil && age < s.e.snapshot().LatencyThreshold {
			if !s.hasRemotePose || !pose.ApproxEqual(s.lastRemotePose, poseEpsilon) {
				s.remoteChanges++
				s.lastRemotePose = pose
				s.hasRemotePose = true
			}
		}
		s.lastPose = pose
	}

	if now.Before(s.deadline) {
		return false
	}
	s.finish(ctx)
	return true
}

// finish fuses the accumulated counts and fires the callback.
func (s *samplingSession) finish(ctx context.Context) {
	var res InferenceResult
	switch {
	case s.changes == 0:
		res = InferenceResult{Authority: AuthorityIndeterminate}
	case s.remoteChanges*2 > s.changes:
		res = InferenceResult{
			Authority:  AuthorityRemote,
			Confidence: float64(s.remoteChanges) / float64(s.changes),
		}
	default:
		res = InferenceResult{
			Authority:  AuthorityLocal,
			Confidence: 1 - float64(s.remoteChanges)/float64(s.changes),
		}
	}

	s.release()
	s.e.log.Debug("sampling window closed",
		"session", s.sessionID,
		"object", string(s.object),
		"changes", s.changes,
		"remote_changes", s.remoteChanges,
		"authority", res.Authority.String())
	s.cb(res)
}

// release decrements the active-session gauge. Registered as the task's
// cancel cleanup; finish calls it directly on the normal path, and the
// scheduler guarantees the cleanup never runs after the task reports
// done, so the gauge moves exactly once per session.
func (s *samplingSession) release() {
	recordSessionDelta(context.Background(), -1)
}
