// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package queue implements the pending-task queue and the dispatch gate.
//
// Entries are kept sorted by (tier, enqueue time, arrival sequence). An entry
// is either queued, in flight, or gone: SelectNext moves it from the queue to
// the in-flight set in one step, and Complete drops it from the in-flight set.
//
// Queue is not safe for concurrent use; the scheduler serializes access.
package queue

import (
	"slices"
	"time"

	"github.com/gogpu/viewsched/priority"
	"github.com/gogpu/viewsched/task"
)

// Entry is a queued or in-flight task.
type Entry struct {
	Task              *task.Task
	Priority          priority.Tier
	EnqueuedAt        time.Time
	Dependencies      map[string]struct{}
	EstimatedDuration time.Duration

	// StartedAt is set when the entry is selected.
	StartedAt time.Time

	seq uint64
}

// NewEntry wraps a task for queueing.
func NewEntry(t *task.Task, tier priority.Tier, now time.Time, deps []string) *Entry {
	e := &Entry{
		Task:              t,
		Priority:          tier,
		EnqueuedAt:        now,
		EstimatedDuration: t.EstimatedDuration(),
	}
	if len(deps) > 0 {
		e.Dependencies = make(map[string]struct{}, len(deps))
		for _, d := range deps {
			e.Dependencies[d] = struct{}{}
		}
	}
	return e
}

// Retry returns a fresh entry for the same task at tier, enqueued at now.
// Dependencies carry over.
func (e *Entry) Retry(tier priority.Tier, now time.Time) *Entry {
	r := &Entry{
		Task:              e.Task,
		Priority:          tier,
		EnqueuedAt:        now,
		EstimatedDuration: e.EstimatedDuration,
	}
	if len(e.Dependencies) > 0 {
		r.Dependencies = make(map[string]struct{}, len(e.Dependencies))
		for d := range e.Dependencies {
			r.Dependencies[d] = struct{}{}
		}
	}
	return r
}

// Queue holds pending entries and tracks in-flight ones.
type Queue struct {
	maxSize  int
	items    []*Entry
	inflight map[string]*Entry
	seq      uint64
	sorts    uint64
}

// New creates a queue that holds at most maxSize pending entries.
// A maxSize of 0 or less means unbounded.
func New(maxSize int) *Queue {
	return &Queue{
		maxSize:  maxSize,
		items:    make([]*Entry, 0, 64),
		inflight: make(map[string]*Entry),
	}
}

// Push inserts an entry and re-sorts the queue.
// Returns false if the queue is full.
func (q *Queue) Push(e *Entry) bool {
	if q.Full() {
		return false
	}
	q.seq++
	e.seq = q.seq
	q.items = append(q.items, e)
	q.sort()
	return true
}

// Full reports whether the queue is at its maximum size.
func (q *Queue) Full() bool {
	return q.maxSize > 0 && len(q.items) >= q.maxSize
}

// MaxSize returns the configured capacity.
func (q *Queue) MaxSize() int {
	return q.maxSize
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	return len(q.items)
}

// ActiveLen returns the number of in-flight entries.
func (q *Queue) ActiveLen() int {
	return len(q.inflight)
}

// Sorts returns how many times the queue has been re-sorted.
func (q *Queue) Sorts() uint64 {
	return q.sorts
}

// Reprioritize rewrites the priority of every queued and in-flight entry of a
// viewport. The queue is re-sorted only if a queued entry changed.
// Returns the number of entries that changed.
func (q *Queue) Reprioritize(viewportID string, tier priority.Tier) int {
	changed := 0
	queuedChanged := false
	for _, e := range q.items {
		if e.Task.ViewportID == viewportID && e.Priority != tier {
			e.Priority = tier
			changed++
			queuedChanged = true
		}
	}
	for _, e := range q.inflight {
		if e.Task.ViewportID == viewportID && e.Priority != tier {
			e.Priority = tier
			changed++
		}
	}
	if queuedChanged {
		q.sort()
	}
	return changed
}

// Complete removes an entry from the in-flight set.
func (q *Queue) Complete(taskID string) (*Entry, bool) {
	e, ok := q.inflight[taskID]
	if ok {
		delete(q.inflight, taskID)
	}
	return e, ok
}

// Remove drops a queued entry by task id.
func (q *Queue) Remove(taskID string) (*Entry, bool) {
	for i, e := range q.items {
		if e.Task.ID == taskID {
			q.items = slices.Delete(q.items, i, i+1)
			return e, true
		}
	}
	return nil, false
}

// RemoveViewport drops every queued entry of a viewport and returns them.
// In-flight entries are left to finish.
func (q *Queue) RemoveViewport(viewportID string) []*Entry {
	var removed []*Entry
	q.items = slices.DeleteFunc(q.items, func(e *Entry) bool {
		if e.Task.ViewportID == viewportID {
			removed = append(removed, e)
			return true
		}
		return false
	})
	return removed
}

// CountByTier returns the number of queued entries per tier.
func (q *Queue) CountByTier() map[priority.Tier]int {
	counts := make(map[priority.Tier]int, priority.Count)
	for _, e := range q.items {
		counts[e.Priority]++
	}
	return counts
}

// InFlightAt returns the number of in-flight entries at a tier.
func (q *Queue) InFlightAt(tier priority.Tier) int {
	n := 0
	for _, e := range q.inflight {
		if e.Priority == tier {
			n++
		}
	}
	return n
}

// IsInFlight reports whether a task is currently in flight.
func (q *Queue) IsInFlight(taskID string) bool {
	_, ok := q.inflight[taskID]
	return ok
}

// Has reports whether a task is queued or in flight.
func (q *Queue) Has(taskID string) bool {
	if q.IsInFlight(taskID) {
		return true
	}
	for _, e := range q.items {
		if e.Task.ID == taskID {
			return true
		}
	}
	return false
}

// Entries returns the queued entries in dispatch order.
func (q *Queue) Entries() []*Entry {
	return slices.Clone(q.items)
}

// AverageWait returns the mean time queued entries have been waiting.
func (q *Queue) AverageWait(now time.Time) time.Duration {
	if len(q.items) == 0 {
		return 0
	}
	var total time.Duration
	for _, e := range q.items {
		total += now.Sub(e.EnqueuedAt)
	}
	return total / time.Duration(len(q.items))
}

// Backlog returns the summed estimated duration of the queued entries.
func (q *Queue) Backlog() time.Duration {
	var total time.Duration
	for _, e := range q.items {
		total += e.EstimatedDuration
	}
	return total
}

func (q *Queue) sort() {
	slices.SortStableFunc(q.items, compare)
	q.sorts++
}

func compare(a, b *Entry) int {
	if a.Priority != b.Priority {
		if a.Priority < b.Priority {
			return -1
		}
		return 1
	}
	if c := a.EnqueuedAt.Compare(b.EnqueuedAt); c != 0 {
		return c
	}
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	}
	return 0
}
