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
	"slices"
	"sync"
	"time"
)

// TaskFunc is one cooperative tick task. It runs synchronously within a
// tick and returns true when the task is complete and should be
// deregistered.
type TaskFunc func(now time.Time) (done bool)

// TaskHandle cancels a registered task. Cancel is idempotent and safe on
// a nil handle (operations that complete immediately return nil handles).
type TaskHandle struct {
	id uint64
	s  *Scheduler
}

// Cancel deregisters the task without running it again. The task's
// cleanup hook (if any) runs exactly once; completion callbacks do not
// fire after Cancel returns true. Returns false when the task had
// already completed or been cancelled.
func (h *TaskHandle) Cancel() bool {
	if h == nil || h.s == nil {
		return false
	}
	return h.s.cancel(h.id)
}

// Scheduler drives cooperative multi-tick tasks on a single logical
// timeline. Tasks run strictly within one tick's synchronous extent; no
// preemptive parallelism is required for correctness.
//
// Thread Safety: safe for concurrent use.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[uint64]*scheduledTask
	nextID uint64
	now    func() time.Time
}

type scheduledTask struct {
	fn      TaskFunc
	cleanup func()
}

// NewScheduler creates a scheduler. now may be nil, in which case
// time.Now is used; tests inject a fake clock.
func NewScheduler(now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		tasks: make(map[uint64]*scheduledTask),
		now:   now,
	}
}

// Register adds a task and returns its cancellation handle. cleanup, if
// non-nil, runs exactly once when the task is cancelled (not when it
// completes on its own; completing tasks do their own teardown).
func (s *Scheduler) Register(fn TaskFunc, cleanup func()) *TaskHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.tasks[id] = &scheduledTask{fn: fn, cleanup: cleanup}
	return &TaskHandle{id: id, s: s}
}

func (s *Scheduler) cancel(id uint64) bool {
	s.mu.Lock()
	task, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	if task.cleanup != nil {
		task.cleanup()
	}
	return true
}

// Len reports the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Step runs one tick: every registered task executes once against the
// same timestamp. Tasks returning done are deregistered. Tasks may
// register new tasks or cancel others from within Step; tasks registered
// during a tick first run on the next tick.
func (s *Scheduler) Step() {
	now := s.now()

	s.mu.Lock()
	ids := make([]uint64, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	slices.Sort(ids) // registration order

	for _, id := range ids {
		s.mu.Lock()
		task, ok := s.tasks[id]
		s.mu.Unlock()
		if !ok {
			// Cancelled mid-tick by another task or caller.
			continue
		}
		if task.fn(now) {
			s.mu.Lock()
			delete(s.tasks, id)
			s.mu.Unlock()
		}
	}
}

// Run drives Step from a wall-clock ticker until the context is
// cancelled. The initiating call blocks; callers typically run it in a
// goroutine.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}
