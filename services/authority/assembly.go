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

// IsSafeToMutate reports whether committing a mutation to the object is
// acceptably safe.
//
// Permanently fixed objects are rejected outright. Any one-hop neighbor
// confidently remote (>= the neighbor threshold, default 0.7) rejects.
// Otherwise the object itself must be local at the self threshold
// (default 0.8) — stricter than IsLocal's default, because the mutation
// is about to be committed, not merely reported.
func (e *Engine) IsSafeToMutate(ctx context.Context, id ObjectID) bool {
	obj, ok := e.resolve(ctx, id)
	if !ok {
		return false
	}
	if obj.Anchored() {
		return false
	}

	cfg := e.snapshot()
	for _, neighborID := range obj.Connections() {
		if _, ok := e.world.Object(neighborID); !ok {
			continue
		}
		res := e.Infer(ctx, neighborID)
		if res.Authority == AuthorityRemote && res.Confidence >= cfg.NeighborRemoteThreshold {
			return false
		}
	}

	self := e.Infer(ctx, id)
	return self.Authority == AuthorityLocal && self.Confidence >= cfg.SelfLocalThreshold
}

// CollectAssembly discovers the transitive closure of objects rigidly or
// jointly connected to root and evaluates IsSafeToMutate on every
// member.
//
// Traversal is breadth-first with a visited set; connectivity graphs are
// typically cyclic via multi-point welds, and every member is visited
// exactly once. The closure is built fresh per call — physical
// connectivity can change between calls — and is never cached.
//
// With recursive false, discovery stops at the root's direct neighbors.
//
// Evaluation stops at the first unsafe member: the returned closure
// contains every member discovered by that point, including the unsafe
// member and its direct neighbors, so callers can inspect the partial
// result for diagnostics.
func (e *Engine) CollectAssembly(ctx context.Context, root ObjectID, recursive bool) AssemblyResult {
	type frontier struct {
		id    ObjectID
		depth int
	}

	visited := map[ObjectID]bool{root: true}
	queue := []frontier{{id: root}}
	result := AssemblyResult{AllSafe: true, Members: []ObjectID{root}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		// Expand before judging, so an unsafe member's neighbors still
		// land in the closure.
		if obj, ok := e.world.Object(current.id); ok && (recursive || current.depth < 1) {
			for _, neighborID := range obj.Connections() {
				if !visited[neighborID] {
					visited[neighborID] = true
					result.Members = append(result.Members, neighborID)
					queue = append(queue, frontier{id: neighborID, depth: current.depth + 1})
				}
			}
		}

		if !e.IsSafeToMutate(ctx, current.id) {
			result.AllSafe = false
			break
		}
	}
	return result
}

// SafeApplyForce applies a directional force to the object only when its
// entire assembly qualifies as safely local. Returns false, without
// mutating anything, otherwise.
func (e *Engine) SafeApplyForce(ctx context.Context, id ObjectID, force Vec3) bool {
	return e.safeApply(ctx, id, "force", func(obj Object) error {
		return obj.ApplyForce(force)
	})
}

// SafeApplyImpulse applies a directional impulse to the object only when
// its entire assembly qualifies as safely local.
func (e *Engine) SafeApplyImpulse(ctx context.Context, id ObjectID, impulse Vec3) bool {
	return e.safeApply(ctx, id, "impulse", func(obj Object) error {
		return obj.ApplyImpulse(impulse)
	})
}

func (e *Engine) safeApply(ctx context.Context, id ObjectID, what string, apply func(Object) error) bool {
	assembly := e.CollectAssembly(ctx, id, true)
	if !assembly.AllSafe {
		e.log.Debug("safe apply declined",
			"object", string(id),
			"members", len(assembly.Members))
		return false
	}

	obj, ok := e.resolve(ctx, id)
	if !ok {
		return false
	}
	if err := apply(obj); err != nil {
		e.diagnose(ctx, Diagnostic{
			Object:  id,
			Code:    DiagMutationError,
			Message: fmt.Sprintf("apply %s rejected by object store: %v", what, err),
		})
		return false
	}
	return true
}
