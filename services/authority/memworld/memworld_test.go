// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memworld_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSim/services/authority"
	"github.com/AleutianAI/AleutianSim/services/authority/memworld"
)

const (
	player = authority.ActorID("player-1")
	server = authority.ActorID("server")
)

func TestSpawnAndResolve(t *testing.T) {
	w := memworld.New()
	id := w.Spawn(memworld.BodySpec{ID: "crate", Owner: player, Mass: 2})

	view := w.View(player)
	obj, ok := view.Object(id)
	require.True(t, ok)
	require.Equal(t, id, obj.ID())
	require.Equal(t, 2.0, obj.Mass())

	_, ok = view.Object("absent")
	require.False(t, ok)
}

func TestSpawn_GeneratesIDWhenEmpty(t *testing.T) {
	w := memworld.New()
	a := w.Spawn(memworld.BodySpec{Owner: player})
	b := w.Spawn(memworld.BodySpec{Owner: player})
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}

func TestOwnerWritesStick(t *testing.T) {
	w := memworld.New()
	id := w.Spawn(memworld.BodySpec{ID: "crate", Owner: player})

	obj, _ := w.View(player).Object(id)
	require.NoError(t, obj.SetVelocity(authority.Vec3{X: 5}))
	require.Equal(t, authority.Vec3{X: 5}, obj.Velocity())

	require.NoError(t, obj.SetAnchored(true))
	require.True(t, obj.Anchored())
}

func TestNonOwnerWrites(t *testing.T) {
	t.Run("reject policy errors", func(t *testing.T) {
		w := memworld.New()
		id := w.Spawn(memworld.BodySpec{ID: "npc", Owner: server, Policy: memworld.RejectWrites})

		obj, _ := w.View(player).Object(id)
		require.Error(t, obj.SetVelocity(authority.Vec3{X: 5}))
		require.Equal(t, authority.Vec3{}, obj.Velocity())
	})

	t.Run("overwrite policy silently discards", func(t *testing.T) {
		w := memworld.New()
		id := w.Spawn(memworld.BodySpec{ID: "npc", Owner: server, Policy: memworld.OverwriteWrites})

		obj, _ := w.View(player).Object(id)
		require.NoError(t, obj.SetVelocity(authority.Vec3{X: 5}))
		require.Equal(t, authority.Vec3{}, obj.Velocity())
	})
}

func TestSignalAvailability(t *testing.T) {
	w := memworld.New()

	t.Run("visible tag reports owner", func(t *testing.T) {
		id := w.Spawn(memworld.BodySpec{ID: "tagged", Owner: server})
		obj, _ := w.View(player).Object(id)
		tag, err := obj.AuthorityTag()
		require.NoError(t, err)
		require.Equal(t, server, tag)
	})

	t.Run("hidden tag errors", func(t *testing.T) {
		id := w.Spawn(memworld.BodySpec{ID: "hidden", Owner: server, TagHidden: true})
		obj, _ := w.View(player).Object(id)
		_, err := obj.AuthorityTag()
		require.Error(t, err)
	})

	t.Run("replication age", func(t *testing.T) {
		id := w.Spawn(memworld.BodySpec{ID: "aged", Owner: server, UpdateAge: 75 * time.Millisecond})
		obj, _ := w.View(player).Object(id)
		age, err := obj.UpdateAge()
		require.NoError(t, err)
		require.Equal(t, 75*time.Millisecond, age)
	})

	t.Run("missing age signal errors", func(t *testing.T) {
		id := w.Spawn(memworld.BodySpec{ID: "ageless", Owner: server, AgeUnknown: true})
		obj, _ := w.View(player).Object(id)
		_, err := obj.UpdateAge()
		require.Error(t, err)
	})
}

func TestClone(t *testing.T) {
	w := memworld.New()
	orig := w.Spawn(memworld.BodySpec{
		ID:        "door",
		Owner:     server,
		UpdateAge: 50 * time.Millisecond,
		Collision: true,
		Mass:      4,
		Velocity:  authority.Vec3{X: 1},
		Pose:      authority.Pose{Position: authority.Vec3{Y: 7}},
		Policy:    memworld.RejectWrites,
	})
	other := w.Spawn(memworld.BodySpec{ID: "frame", Owner: server})
	require.NoError(t, w.Connect(orig, other))

	view := w.View(player)
	clone, err := view.Clone(orig)
	require.NoError(t, err)

	require.NotEqual(t, orig, clone.ID())
	require.Equal(t, 4.0, clone.Mass())
	require.Equal(t, authority.Vec3{X: 1}, clone.Velocity())
	require.Equal(t, authority.Vec3{Y: 7}, clone.Pose().Position)

	// Owned by the cloning actor: writes stick.
	require.NoError(t, clone.SetVelocity(authority.Vec3{X: 9}))
	require.Equal(t, authority.Vec3{X: 9}, clone.Velocity())

	// Non-interacting: collision off, no joints, no replication age.
	require.False(t, clone.CollisionEnabled())
	require.Empty(t, clone.Connections())
	_, err = clone.UpdateAge()
	require.Error(t, err)

	_, err = view.Clone("absent")
	require.Error(t, err)
}

func TestDestroy_DetachesJoints(t *testing.T) {
	w := memworld.New()
	a := w.Spawn(memworld.BodySpec{ID: "a", Owner: player})
	b := w.Spawn(memworld.BodySpec{ID: "b", Owner: player})
	require.NoError(t, w.Connect(a, b))

	view := w.View(player)
	require.NoError(t, view.Destroy(b))
	require.Error(t, view.Destroy(b))

	_, ok := view.Object(b)
	require.False(t, ok)

	objA, _ := view.Object(a)
	require.Empty(t, objA.Connections())
	require.Equal(t, 1, w.Len())
}

func TestConnections_SortedAndBidirectional(t *testing.T) {
	w := memworld.New()
	hub := w.Spawn(memworld.BodySpec{ID: "hub", Owner: player})
	c := w.Spawn(memworld.BodySpec{ID: "c", Owner: player})
	a := w.Spawn(memworld.BodySpec{ID: "a", Owner: player})
	require.NoError(t, w.Connect(hub, c))
	require.NoError(t, w.Connect(hub, a))
	require.Error(t, w.Connect(hub, "absent"))

	view := w.View(player)
	objHub, _ := view.Object(hub)
	require.Equal(t, []authority.ObjectID{a, c}, objHub.Connections())

	objA, _ := view.Object(a)
	require.Equal(t, []authority.ObjectID{hub}, objA.Connections())
}

func TestObjects_StableOrder(t *testing.T) {
	w := memworld.New()
	w.Spawn(memworld.BodySpec{ID: "c", Owner: player})
	w.Spawn(memworld.BodySpec{ID: "a", Owner: player})
	w.Spawn(memworld.BodySpec{ID: "b", Owner: player})

	objs := w.View(player).Objects()
	require.Len(t, objs, 3)
	want := []authority.ObjectID{"a", "b", "c"}
	for i, obj := range objs {
		require.Equal(t, want[i], obj.ID())
	}
}

func TestStepPhysics(t *testing.T) {
	w := memworld.New()
	moving := w.Spawn(memworld.BodySpec{ID: "moving", Owner: player, Velocity: authority.Vec3{X: 2}})
	fixed := w.Spawn(memworld.BodySpec{ID: "fixed", Owner: player, Velocity: authority.Vec3{X: 2}, Anchored: true})

	w.StepPhysics(500 * time.Millisecond)

	view := w.View(player)
	objMoving, _ := view.Object(moving)
	require.InDelta(t, 1.0, objMoving.Pose().Position.X, 1e-9)

	objFixed, _ := view.Object(fixed)
	require.Equal(t, 0.0, objFixed.Pose().Position.X)
}

func TestApplyForceAndImpulse(t *testing.T) {
	w := memworld.New()
	id := w.Spawn(memworld.BodySpec{ID: "puck", Owner: player, Mass: 2})
	obj, _ := w.View(player).Object(id)

	require.NoError(t, obj.ApplyImpulse(authority.Vec3{X: 4}))
	require.InDelta(t, 2.0, obj.Velocity().X, 1e-9)

	require.NoError(t, obj.ApplyForce(authority.Vec3{X: 60}))
	// 60 * (1/30) / 2 = 1 added on top of the impulse.
	require.InDelta(t, 3.0, obj.Velocity().X, 1e-9)

	// Non-owner force on a reject body errors.
	npc := w.Spawn(memworld.BodySpec{ID: "npc", Owner: server, Policy: memworld.RejectWrites})
	objNPC, _ := w.View(player).Object(npc)
	require.Error(t, objNPC.ApplyForce(authority.Vec3{X: 1}))
}
