// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package alloc holds the per-tier resource budget consulted by the scheduler.
//
// A Table is plain data: the dispatch gate reads MaxConcurrent, the executor
// reads TimeSlice, and the adaptive controller rewrites the table in place.
// Table is not safe for concurrent use; the scheduler guards it.
package alloc

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/viewsched/priority"
)

// ErrMissingTier is returned by Validate when a tier has no allocation.
var ErrMissingTier = errors.New("alloc: missing allocation for tier")

// ErrNegativeConcurrency is returned by Validate for a negative ceiling.
var ErrNegativeConcurrency = errors.New("alloc: negative max concurrent tasks")

// Allocation is the resource budget for one tier.
type Allocation struct {
	// CPUShare is an advisory percentage of CPU time.
	CPUShare float64 `yaml:"cpu_share" json:"cpuShare"`

	// MemoryShare is an advisory percentage of the memory budget.
	MemoryShare float64 `yaml:"memory_share" json:"memoryShare"`

	// MaxConcurrent is the hard ceiling of in-flight tasks at this tier.
	MaxConcurrent int `yaml:"max_concurrent" json:"maxConcurrent"`

	// TimeSlice is the soft wall-clock budget for one task.
	TimeSlice time.Duration `yaml:"time_slice" json:"timeSlice"`
}

// Table maps tiers to allocations.
type Table struct {
	entries map[priority.Tier]Allocation
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[priority.Tier]Allocation, priority.Count)}
}

// Default returns the stock allocation table.
func Default() *Table {
	t := NewTable()
	t.Set(priority.Critical, Allocation{CPUShare: 40, MemoryShare: 30, MaxConcurrent: 2, TimeSlice: 16 * time.Millisecond})
	t.Set(priority.High, Allocation{CPUShare: 25, MemoryShare: 25, MaxConcurrent: 2, TimeSlice: 33 * time.Millisecond})
	t.Set(priority.Medium, Allocation{CPUShare: 15, MemoryShare: 20, MaxConcurrent: 1, TimeSlice: 50 * time.Millisecond})
	t.Set(priority.Low, Allocation{CPUShare: 10, MemoryShare: 15, MaxConcurrent: 1, TimeSlice: 100 * time.Millisecond})
	t.Set(priority.Suspended, Allocation{})
	t.Set(priority.Background, Allocation{CPUShare: 10, MemoryShare: 10, MaxConcurrent: 1, TimeSlice: 200 * time.Millisecond})
	return t
}

// FromMap builds a table from configuration data.
func FromMap(m map[priority.Tier]Allocation) *Table {
	t := NewTable()
	for tier, a := range m {
		t.Set(tier, a)
	}
	return t
}

// Lookup returns the allocation for a tier.
func (t *Table) Lookup(tier priority.Tier) (Allocation, bool) {
	a, ok := t.entries[tier]
	return a, ok
}

// Set stores the allocation for a tier.
// Suspended is always stored with MaxConcurrent = 0.
func (t *Table) Set(tier priority.Tier, a Allocation) {
	if tier == priority.Suspended {
		a.MaxConcurrent = 0
	}
	t.entries[tier] = a
}

// Update applies fn to the allocation of every tier present in the table.
func (t *Table) Update(fn func(tier priority.Tier, a *Allocation)) {
	for _, tier := range priority.All() {
		a, ok := t.entries[tier]
		if !ok {
			continue
		}
		fn(tier, &a)
		t.Set(tier, a)
	}
}

// MaxConcurrent returns the concurrency ceiling for a tier.
// A tier without an allocation has a ceiling of zero.
func (t *Table) MaxConcurrent(tier priority.Tier) int {
	return t.entries[tier].MaxConcurrent
}

// Len returns the number of tiers with an allocation.
func (t *Table) Len() int {
	return len(t.entries)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := NewTable()
	for tier, a := range t.entries {
		c.entries[tier] = a
	}
	return c
}

// Snapshot returns the allocations as a map.
func (t *Table) Snapshot() map[priority.Tier]Allocation {
	m := make(map[priority.Tier]Allocation, len(t.entries))
	for tier, a := range t.entries {
		m[tier] = a
	}
	return m
}

// Equal reports whether both tables hold the same allocations.
func (t *Table) Equal(o *Table) bool {
	if len(t.entries) != len(o.entries) {
		return false
	}
	for tier, a := range t.entries {
		if b, ok := o.entries[tier]; !ok || a != b {
			return false
		}
	}
	return true
}

// Validate checks that every tier has an allocation with a non-negative
// concurrency ceiling.
func (t *Table) Validate() error {
	for _, tier := range priority.All() {
		a, ok := t.entries[tier]
		if !ok {
			return fmt.Errorf("%w %v", ErrMissingTier, tier)
		}
		if a.MaxConcurrent < 0 {
			return fmt.Errorf("%w: %v has %d", ErrNegativeConcurrency, tier, a.MaxConcurrent)
		}
	}
	return nil
}
