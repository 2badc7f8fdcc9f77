// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package authority infers which party currently controls a replicated
// simulated object, from the observing side, without any explicit
// ownership handshake.
//
// In a replicated simulation, each mutable object is authored by exactly
// one party at a time: the local actor or a remote authority. The
// transport silently rejects or overwrites writes from non-authoritative
// observers, so an observer can infer ownership purely from side effects:
// whether speculative writes stick, how fresh remote updates are, and
// which party's writes are currently winning.
//
// The engine combines six independent evidence probes into a single
// verdict with a confidence score:
//
//	eng, err := authority.New(world, cfg)
//	res := eng.Infer(ctx, objectID)
//	if res.Authority == authority.AuthorityLocal && res.Confidence >= 0.8 {
//	    // safe to mutate locally
//	}
//
// Three access tiers trade accuracy for cost:
//
//   - Infer / DetailedInfo run every probe (accuracy-first, synchronous).
//   - FastCheck consults a TTL result cache, then a reduced probe chain
//     (speed-first; BatchProcess and GetObjectsWithAuthority fan out
//     over it).
//   - ObserveOverWindow watches an object's pose over a time window and
//     reports asynchronously (for ambiguous slow-moving objects).
//
// For risky group mutations, the assembly propagator (IsSafeToMutate,
// CollectAssembly, SafeApplyForce, SafeApplyImpulse, SimulatePhysics)
// extends a single object's verdict to its transitively connected
// assembly before anything is committed.
//
// The engine is observe-only: it never negotiates, transfers, or requests
// authority, and it produces best-effort estimates, not certainty.
// Callers pick their risk tolerance through confidence thresholds.
//
// # Probe discipline
//
// Every speculative probe restores the object's observable state before
// returning; a write the store rejected outright left no state to
// restore. Within one Infer call no probe observes another probe's
// not-yet-reverted mutation.
//
// # Concurrency
//
// All synchronous operations are safe for concurrent use. The windowed
// operations (ObserveOverWindow, SimulatePhysics) are cooperative tasks
// registered against the engine's tick scheduler; drive it with Run for
// wall-clock ticks or Step for manual control.
package authority
