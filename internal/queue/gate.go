// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package queue

import (
	"slices"

	"github.com/gogpu/viewsched/priority"
)

// CeilingFunc returns the maximum number of in-flight entries allowed at a tier.
type CeilingFunc func(priority.Tier) int

// SelectNext returns the first runnable entry in dispatch order and moves it to
// the in-flight set.
//
// An entry is runnable when none of its dependencies is in flight and fewer
// than ceiling(tier) entries of its tier are in flight. A blocked entry does
// not stop the scan, so runnable lower-priority work can pass it.
// Dependencies that were never queued, or already finished, count as met.
func (q *Queue) SelectNext(ceiling CeilingFunc) *Entry {
	var active [priority.Count]int
	for _, e := range q.inflight {
		if e.Priority.Valid() {
			active[e.Priority]++
		}
	}

	for i, e := range q.items {
		if !e.Priority.Valid() || active[e.Priority] >= ceiling(e.Priority) {
			continue
		}
		if q.blocked(e) {
			continue
		}
		q.items = slices.Delete(q.items, i, i+1)
		q.inflight[e.Task.ID] = e
		return e
	}
	return nil
}

func (q *Queue) blocked(e *Entry) bool {
	for dep := range e.Dependencies {
		if _, ok := q.inflight[dep]; ok {
			return true
		}
	}
	return false
}
