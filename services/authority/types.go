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

import "errors"

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidTarget is returned when an object handle does not resolve
	// to a live object.
	ErrInvalidTarget = errors.New("target is not a live object")

	// ErrNilCallback is returned when a windowed operation is started
	// without a completion callback. Windowed probes cannot be collapsed
	// into an instantaneous check; callers needing an instant answer
	// should use FastCheck.
	ErrNilCallback = errors.New("windowed operation requires a completion callback")

	// ErrInvalidWindow is returned when a windowed operation is started
	// with a non-positive duration.
	ErrInvalidWindow = errors.New("window duration must be positive")

	// ErrEngineClosed is returned when operations are attempted on a
	// closed engine.
	ErrEngineClosed = errors.New("authority engine is closed")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

// ObjectID is a stable, comparable handle to a simulated object.
// Identity, never value: two distinct objects may share physical state.
type ObjectID string

// ActorID identifies a party that can hold write authority.
type ActorID string

// -----------------------------------------------------------------------------
// Authority
// -----------------------------------------------------------------------------

// Authority names the party inferred to hold write authority over an
// object. The zero value is AuthorityIndeterminate.
type Authority int

const (
	// AuthorityIndeterminate means the evidence does not support a verdict.
	// Indeterminate never wins a plurality.
	AuthorityIndeterminate Authority = iota

	// AuthorityLocal means the local actor is inferred to hold authority.
	AuthorityLocal

	// AuthorityRemote means a remote party is inferred to hold authority.
	AuthorityRemote
)

// String returns the string representation of the authority.
func (a Authority) String() string {
	switch a {
	case AuthorityIndeterminate:
		return "indeterminate"
	case AuthorityLocal:
		return "local"
	case AuthorityRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Probes
// -----------------------------------------------------------------------------

// ProbeKind names one of the engine's evidence probes. The set is closed:
// the fusion aggregator always runs the same six probes.
type ProbeKind int

const (
	// ProbeTag reads the transport's explicit authority tag.
	ProbeTag ProbeKind = iota

	// ProbeLatency reads the time since the last remote state update.
	ProbeLatency

	// ProbeVelocity speculatively nudges the velocity vector.
	ProbeVelocity

	// ProbePose speculatively perturbs the spatial transform.
	ProbePose

	// ProbeAnchor speculatively toggles the fixed/movable flag.
	ProbeAnchor

	// ProbeCollision speculatively toggles the collision-enabled flag.
	ProbeCollision
)

// String returns the probe name used in logs and metric labels.
func (k ProbeKind) String() string {
	switch k {
	case ProbeTag:
		return "tag"
	case ProbeLatency:
		return "latency"
	case ProbeVelocity:
		return "velocity"
	case ProbePose:
		return "pose"
	case ProbeAnchor:
		return "anchor"
	case ProbeCollision:
		return "collision"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// InferenceResult is a fused authority verdict.
//
// Confidence is (votes agreeing with the winner) / (votes that were not
// indeterminate), always in [0,1]. Confidence is exactly 0 if and only if
// Authority is AuthorityIndeterminate.
type InferenceResult struct {
	Authority  Authority
	Confidence float64
}

// ProbeReport is one probe's individual vote, for diagnostics.
type ProbeReport struct {
	Probe ProbeKind
	Vote  Authority
}

// DetailedReport carries every probe's vote plus the fused aggregate.
// The per-probe votes never influence the aggregate after fusion; they
// exist for callers that want to explain a verdict.
type DetailedReport struct {
	Votes  []ProbeReport
	Result InferenceResult
}

// AssemblyResult is the outcome of an assembly traversal.
//
// Members is the ordered, deduplicated closure discovered from the root.
// When AllSafe is false, Members contains every object discovered up to
// and including the first unsafe one, so callers can explain the refusal.
type AssemblyResult struct {
	Members []ObjectID
	AllSafe bool
}

// MemberOutcome reports one shadow member's motion during a dry run.
type MemberOutcome struct {
	// ID is the original (non-shadow) object the outcome describes.
	ID ObjectID

	// Displacement is the shadow's position change over the run.
	Displacement Vec3

	// FinalVelocity is the shadow's velocity when the run ended.
	FinalVelocity Vec3
}

// SimulationReport is delivered by SimulatePhysics exactly once.
//
// When OK is false no shadow clones were created; Assembly holds the
// partial closure and Inference the root's verdict at decline time.
type SimulationReport struct {
	OK        bool
	Assembly  AssemblyResult
	Inference InferenceResult
	Members   []MemberOutcome
}

// -----------------------------------------------------------------------------
// Diagnostics
// -----------------------------------------------------------------------------

// DiagnosticCode classifies an out-of-band condition the engine surfaced.
type DiagnosticCode string

const (
	// DiagInvalidTarget means an operation received a handle that does
	// not resolve to a live object.
	DiagInvalidTarget DiagnosticCode = "invalid_target"

	// DiagRevertFailed means a speculative probe could not restore the
	// original value; the object may now be desynchronized.
	DiagRevertFailed DiagnosticCode = "revert_failed"

	// DiagMutationError means a committed (non-speculative) mutation was
	// rejected by the object store.
	DiagMutationError DiagnosticCode = "mutation_error"

	// DiagObjectVanished means an object disappeared mid-window.
	DiagObjectVanished DiagnosticCode = "object_vanished"
)

// Diagnostic is the out-of-band channel for conditions that must not
// influence votes or abort callers: invalid targets, failed reverts,
// rejected committed mutations. Rejected speculative writes are
// evidence, not diagnostics, and are folded into votes instead.
type Diagnostic struct {
	Object  ObjectID
	Code    DiagnosticCode
	Message string
}

// DiagnosticFunc receives diagnostics. Implementations must be safe for
// concurrent use and must not block.
type DiagnosticFunc func(Diagnostic)
