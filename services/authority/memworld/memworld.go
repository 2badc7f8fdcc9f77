// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memworld is an in-memory object store implementing the
// authority engine's World and Object contracts.
//
// It models the replication behaviors the engine's probes are built to
// detect: per-body ownership, writes that are rejected outright versus
// writes that are accepted and silently discarded, hidden authority
// tags, and missing replication-age signals. It backs the engine's test
// suites and serves as the reference adapter for embedders writing their
// own.
package memworld

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSim/services/authority"
)

// WritePolicy governs how a body treats writes from a non-owner actor.
type WritePolicy int

const (
	// RejectWrites refuses non-owner writes with an error.
	RejectWrites WritePolicy = iota

	// OverwriteWrites accepts non-owner writes without error and
	// silently discards them; the replicated value wins.
	OverwriteWrites
)

// BodySpec describes a body to spawn.
type BodySpec struct {
	// ID is the body's identity; empty generates a fresh UUID.
	ID authority.ObjectID

	// Owner is the actor with write authority over the body. Empty
	// means unassigned.
	Owner authority.ActorID

	// TagHidden hides the authority tag: AuthorityTag errors instead of
	// reporting Owner.
	TagHidden bool

	// AgeUnknown removes the replication-age signal: UpdateAge errors.
	AgeUnknown bool

	// UpdateAge is the initial replication age, meaningful only when
	// the signal exists.
	UpdateAge time.Duration

	Anchored  bool
	Collision bool
	Pose      authority.Pose
	Velocity  authority.Vec3
	Mass      float64
	Policy    WritePolicy
}

type body struct {
	id         authority.ObjectID
	owner      authority.ActorID
	tagHidden  bool
	ageUnknown bool
	updateAge  time.Duration
	anchored   bool
	collision  bool
	pose       authority.Pose
	velocity   authority.Vec3
	mass       float64
	joints     map[authority.ObjectID]bool
	policy     WritePolicy
}

// World is an in-memory body store. Construct with New.
//
// Thread Safety: safe for concurrent use.
type World struct {
	mu     sync.RWMutex
	bodies map[authority.ObjectID]*body
}

// New creates an empty world.
func New() *World {
	return &World{bodies: make(map[authority.ObjectID]*body)}
}

// Spawn adds a body and returns its identity.
func (w *World) Spawn(spec BodySpec) authority.ObjectID {
	id := spec.ID
	if id == "" {
		id = authority.ObjectID(uuid.NewString())
	}
	b := &body{
		id:         id,
		owner:      spec.Owner,
		tagHidden:  spec.TagHidden,
		ageUnknown: spec.AgeUnknown,
		updateAge:  spec.UpdateAge,
		anchored:   spec.Anchored,
		collision:  spec.Collision,
		pose:       spec.Pose,
		velocity:   spec.Velocity,
		mass:       spec.Mass,
		joints:     make(map[authority.ObjectID]bool),
		policy:     spec.Policy,
	}
	w.mu.Lock()
	w.bodies[id] = b
	w.mu.Unlock()
	return id
}

// Connect joins two bodies bidirectionally.
func (w *World) Connect(a, b authority.ObjectID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ba, ok := w.bodies[a]
	if !ok {
		return fmt.Errorf("memworld: no body %q", a)
	}
	bb, ok := w.bodies[b]
	if !ok {
		return fmt.Errorf("memworld: no body %q", b)
	}
	ba.joints[b] = true
	bb.joints[a] = true
	return nil
}

// SetOwner reassigns a body's write authority.
func (w *World) SetOwner(id authority.ObjectID, owner authority.ActorID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.bodies[id]; ok {
		b.owner = owner
	}
}

// SetUpdateAge sets a body's replication age directly, bypassing policy.
func (w *World) SetUpdateAge(id authority.ObjectID, age time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.bodies[id]; ok {
		b.updateAge = age
		b.ageUnknown = false
	}
}

// SetPose moves a body directly, bypassing policy. Tests use it to model
// remotely replicated movement.
func (w *World) SetPose(id authority.ObjectID, pose authority.Pose) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.bodies[id]; ok {
		b.pose = pose
	}
}

// SetVelocity sets a body's velocity directly, bypassing policy.
func (w *World) SetVelocity(id authority.ObjectID, v authority.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.bodies[id]; ok {
		b.velocity = v
	}
}

// StepPhysics advances unanchored bodies by one integration step:
// position += velocity * dt.
func (w *World) StepPhysics(dt time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := dt.Seconds()
	for _, b := range w.bodies {
		if b.anchored {
			continue
		}
		b.pose.Position = b.pose.Position.Add(b.velocity.Scale(s))
	}
}

// Len reports the number of live bodies.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.bodies)
}

// View returns the world as seen by one actor. The returned value
// implements the engine's World contract; all writes through it carry
// the actor's identity.
func (w *World) View(actor authority.ActorID) *View {
	return &View{w: w, actor: actor}
}

// View is one actor's perspective on the world.
type View struct {
	w     *World
	actor authority.ActorID
}

// Object resolves an identity to a live object handle.
func (v *View) Object(id authority.ObjectID) (authority.Object, bool) {
	v.w.mu.RLock()
	_, ok := v.w.bodies[id]
	v.w.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &handle{w: v.w, id: id, actor: v.actor}, true
}

// Objects returns handles to every live body, ordered by identity.
func (v *View) Objects() []authority.Object {
	v.w.mu.RLock()
	ids := make([]authority.ObjectID, 0, len(v.w.bodies))
	for id := range v.w.bodies {
		ids = append(ids, id)
	}
	v.w.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]authority.Object, 0, len(ids))
	for _, id := range ids {
		out = append(out, &handle{w: v.w, id: id, actor: v.actor})
	}
	return out
}

// Clone creates a disposable shadow copy of the body: a fresh identity,
// owned by the viewing actor, collision disabled, unconnected. The copy
// carries no replication-age signal.
func (v *View) Clone(id authority.ObjectID) (authority.Object, error) {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	src, ok := v.w.bodies[id]
	if !ok {
		return nil, fmt.Errorf("memworld: no body %q", id)
	}
	cloneID := authority.ObjectID(uuid.NewString())
	v.w.bodies[cloneID] = &body{
		id:         cloneID,
		owner:      v.actor,
		ageUnknown: true,
		anchored:   src.anchored,
		pose:       src.pose,
		velocity:   src.velocity,
		mass:       src.mass,
		joints:     make(map[authority.ObjectID]bool),
	}
	return &handle{w: v.w, id: cloneID, actor: v.actor}, nil
}

// Destroy removes a body and detaches it from all joints.
func (v *View) Destroy(id authority.ObjectID) error {
	v.w.mu.Lock()
	defer v.w.mu.Unlock()
	if _, ok := v.w.bodies[id]; !ok {
		return fmt.Errorf("memworld: no body %q", id)
	}
	delete(v.w.bodies, id)
	for _, b := range v.w.bodies {
		delete(b.joints, id)
	}
	return nil
}

// handle is one actor's reference to one body. The zero value is not
// usable.
type handle struct {
	w     *World
	id    authority.ObjectID
	actor authority.ActorID
}

// resolve re-checks liveness on every call; a handle can outlive its
// body.
func (h *handle) resolve() (*body, error) {
	b, ok := h.w.bodies[h.id]
	if !ok {
		return nil, fmt.Errorf("memworld: body %q destroyed", h.id)
	}
	return b, nil
}

// write applies fn under the owner/policy rules: owners always write,
// non-owners are rejected or silently ignored per the body's policy.
func (h *handle) write(fn func(*body)) error {
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	b, err := h.resolve()
	if err != nil {
		return err
	}
	if b.owner != h.actor {
		if b.policy == RejectWrites {
			return fmt.Errorf("memworld: body %q owned by %q", h.id, b.owner)
		}
		return nil
	}
	fn(b)
	return nil
}

func (h *handle) ID() authority.ObjectID { return h.id }

func (h *handle) AuthorityTag() (authority.ActorID, error) {
	h.w.mu.RLock()
	defer h.w.mu.RUnlock()
	b, err := h.resolve()
	if err != nil {
		return "", err
	}
	if b.tagHidden {
		return "", fmt.Errorf("memworld: body %q exposes no authority tag", h.id)
	}
	return b.owner, nil
}

func (h *handle) UpdateAge() (time.Duration, error) {
	h.w.mu.RLock()
	defer h.w.mu.RUnlock()
	b, err := h.resolve()
	if err != nil {
		return 0, err
	}
	if b.ageUnknown {
		return 0, fmt.Errorf("memworld: body %q carries no replication age", h.id)
	}
	return b.updateAge, nil
}

func (h *handle) Velocity() authority.Vec3 {
	h.w.mu.RLock()
	defer h.w.mu.RUnlock()
	if b, err := h.resolve(); err == nil {
		return b.velocity
	}
	return authority.Vec3{}
}

func (h *handle) SetVelocity(v authority.Vec3) error {
	return h.write(func(b *body) { b.velocity = v })
}

func (h *handle) Pose() authority.Pose {
	h.w.mu.RLock()
	defer h.w.mu.RUnlock()
	if b, err := h.resolve(); err == nil {
		return b.pose
	}
	return authority.Pose{}
}

func (h *handle) SetPose(p authority.Pose) error {
	return h.write(func(b *body) { b.pose = p })
}

func (h *handle) Anchored() bool {
	h.w.mu.RLock()
	defer h.w.mu.RUnlock()
	if b, err := h.resolve(); err == nil {
		return b.anchored
	}
	return false
}

func (h *handle) SetAnchored(anchored bool) error {
	return h.write(func(b *body) { b.anchored = anchored })
}

func (h *handle) CollisionEnabled() bool {
	h.w.mu.RLock()
	defer h.w.mu.RUnlock()
	if b, err := h.resolve(); err == nil {
		return b.collision
	}
	return false
}

func (h *handle) SetCollisionEnabled(enabled bool) error {
	return h.write(func(b *body) { b.collision = enabled })
}

func (h *handle) Mass() float64 {
	h.w.mu.RLock()
	defer h.w.mu.RUnlock()
	if b, err := h.resolve(); err == nil {
		return b.mass
	}
	return 0
}

func (h *handle) Connections() []authority.ObjectID {
	h.w.mu.RLock()
	defer h.w.mu.RUnlock()
	b, err := h.resolve()
	if err != nil {
		return nil
	}
	out := make([]authority.ObjectID, 0, len(b.joints))
	for id := range b.joints {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ApplyForce integrates F/m over one nominal tick into velocity.
func (h *handle) ApplyForce(force authority.Vec3) error {
	return h.write(func(b *body) {
		m := b.mass
		if m <= 0 {
			m = 1
		}
		b.velocity = b.velocity.Add(force.Scale(nominalTick / m))
	})
}

// ApplyImpulse adds impulse/m to velocity instantaneously.
func (h *handle) ApplyImpulse(impulse authority.Vec3) error {
	return h.write(func(b *body) {
		m := b.mass
		if m <= 0 {
			m = 1
		}
		b.velocity = b.velocity.Add(impulse.Scale(1 / m))
	})
}

// nominalTick is the integration step ApplyForce assumes, in seconds.
const nominalTick = 1.0 / 30.0
