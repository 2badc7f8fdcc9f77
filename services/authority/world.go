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
	"math"
	"time"
)

// -----------------------------------------------------------------------------
// External collaborators
// -----------------------------------------------------------------------------

// Object is the engine's view of one replicated simulated object.
//
// The engine only calls these as effectful probes; it never owns the
// object store. Write methods return an error when the store rejects the
// write outright. A store may instead accept the call and silently
// discard the value ("overwrite" transports); probes detect that by
// reading the value back.
//
// Implementations must be safe for concurrent use; the engine never
// holds a lock across a call into them.
type Object interface {
	// ID returns the object's stable identity.
	ID() ObjectID

	// AuthorityTag reports the transport's explicit current-authority
	// tag. An error means the transport does not expose the signal at
	// all; an empty ActorID means the object is unassigned.
	AuthorityTag() (ActorID, error)

	// UpdateAge reports the time since the last externally-sourced state
	// update. An error means no replication timing signal exists.
	UpdateAge() (time.Duration, error)

	// Velocity reads the physical velocity vector.
	Velocity() Vec3
	// SetVelocity writes the physical velocity vector.
	SetVelocity(Vec3) error

	// Pose reads the full spatial transform.
	Pose() Pose
	// SetPose writes the full spatial transform.
	SetPose(Pose) error

	// Anchored reports whether the object is fixed in place.
	Anchored() bool
	// SetAnchored writes the fixed/movable flag.
	SetAnchored(bool) error

	// CollisionEnabled reports whether the object participates in
	// collision resolution.
	CollisionEnabled() bool
	// SetCollisionEnabled writes the collision-enabled flag.
	SetCollisionEnabled(bool) error

	// Mass reports the object's mass.
	Mass() float64

	// Connections lists objects rigidly or jointly connected to this one.
	Connections() []ObjectID

	// ApplyForce applies a directional force to the object.
	ApplyForce(Vec3) error
	// ApplyImpulse applies a directional impulse to the object.
	ApplyImpulse(Vec3) error
}

// World resolves object handles and manages shadow clones.
//
// The world's connectivity graph and physical state are assumed to carry
// their own consistency guarantees; the engine treats reads as
// instantaneous.
type World interface {
	// Object resolves an identity to a live object. ok is false when the
	// object no longer exists in the scene.
	Object(id ObjectID) (Object, bool)

	// Objects returns the live objects, in a stable order.
	Objects() []Object

	// Clone creates a disposable, non-interacting shadow copy of the
	// object, writable by the local actor.
	Clone(id ObjectID) (Object, error)

	// Destroy removes an object (typically a shadow clone).
	Destroy(id ObjectID) error
}

// -----------------------------------------------------------------------------
// Spatial math
// -----------------------------------------------------------------------------

// Vec3 is a three-component vector.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Length returns the Euclidean norm.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// ApproxEqual reports whether each component of v is within eps of o.
func (v Vec3) ApproxEqual(o Vec3, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps &&
		math.Abs(v.Y-o.Y) <= eps &&
		math.Abs(v.Z-o.Z) <= eps
}

// Pose is a full spatial transform: a position and an Euler rotation in
// radians.
type Pose struct {
	Position Vec3
	Rotation Vec3
}

// ApproxEqual reports whether both position and rotation are within eps.
func (p Pose) ApproxEqual(o Pose, eps float64) bool {
	return p.Position.ApproxEqual(o.Position, eps) &&
		p.Rotation.ApproxEqual(o.Rotation, eps)
}

// Region is a spherical spatial filter.
type Region struct {
	Center Vec3
	Radius float64
}

// Contains reports whether the point lies inside the region.
func (r Region) Contains(p Vec3) bool {
	return p.Sub(r.Center).Length() <= r.Radius
}
