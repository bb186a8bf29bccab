// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package task describes the rendering work that viewports hand to the
// scheduler.
//
// A Task is opaque to the scheduler: it knows the owning viewport, the kind of
// change that triggered it and how to run it, but not what it draws.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"
)

// Kind classifies what triggered a rendering task.
type Kind uint8

// Task kinds.
const (
	KindInitial Kind = iota
	KindUpdate
	KindResize
	KindQualityChange
	KindToolChange
)

// baselines are used when no duration history exists for a kind.
var baselines = [...]time.Duration{
	KindInitial:       100 * time.Millisecond,
	KindUpdate:        16 * time.Millisecond,
	KindResize:        50 * time.Millisecond,
	KindQualityChange: 200 * time.Millisecond,
	KindToolChange:    10 * time.Millisecond,
}

var kindNames = [...]string{
	KindInitial:       "initial",
	KindUpdate:        "update",
	KindResize:        "resize",
	KindQualityChange: "quality-change",
	KindToolChange:    "tool-change",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Baseline returns the fixed duration estimate for the kind.
// Unknown kinds use the update baseline.
func (k Kind) Baseline() time.Duration {
	if int(k) < len(baselines) {
		return baselines[k]
	}
	return baselines[KindUpdate]
}

// Work performs the rendering for a task.
//
// Render must not retain t after returning. The context carries the soft time
// budget for the task's tier (see BudgetFromContext); the scheduler never
// cancels it mid-flight, so Render decides for itself whether to stop early.
type Work interface {
	Render(ctx context.Context, t *Task) (Result, error)
}

// WorkFunc adapts a function to the Work interface.
type WorkFunc func(ctx context.Context, t *Task) (Result, error)

// Render calls f(ctx, t).
func (f WorkFunc) Render(ctx context.Context, t *Task) (Result, error) {
	return f(ctx, t)
}

// Result is what a successful Render hands back to the scheduler.
//
// When Key is non-empty the artifact is stored in the cache. Size is the
// artifact's byte size; if it is zero and Extent is set, the size is estimated
// from Format and Extent.
type Result struct {
	Key    string
	Data   any
	Size   int64
	Format gputypes.TextureFormat
	Extent gputypes.Extent3D
}

// Cacheable reports whether the result should be stored in the cache.
func (r Result) Cacheable() bool {
	return r.Key != ""
}

// Task is a unit of rendering work owned by a viewport.
//
// All fields except RetryCount are fixed once the task has been queued.
type Task struct {
	// ID uniquely identifies the task. New fills it with a UUID.
	ID string

	// ViewportID names the owning viewport.
	ViewportID string

	// Kind is the trigger for the task and selects its baseline estimate.
	Kind Kind

	// Params is opaque to the scheduler.
	Params any

	// Blocking marks work the viewport waits on before presenting.
	Blocking bool

	// Deferrable marks work that may be postponed under load.
	Deferrable bool

	// MaxRetries bounds re-enqueues after failures.
	MaxRetries int

	// RetryCount is the number of failed attempts so far.
	RetryCount int

	// Work runs the task.
	Work Work
}

// New creates a task with a fresh ID.
func New(viewportID string, kind Kind, work Work) *Task {
	return &Task{
		ID:         NewID(),
		ViewportID: viewportID,
		Kind:       kind,
		MaxRetries: DefaultMaxRetries,
		Work:       work,
	}
}

// DefaultMaxRetries is the retry bound used by New.
const DefaultMaxRetries = 3

// NewID returns a random task identifier.
func NewID() string {
	return uuid.NewString()
}

// EstimatedDuration returns the expected run time of the task.
func (t *Task) EstimatedDuration() time.Duration {
	return t.Kind.Baseline()
}

// String implements fmt.Stringer.
func (t *Task) String() string {
	return fmt.Sprintf("task %s (%s, viewport %s)", t.ID, t.Kind, t.ViewportID)
}

type budgetKey struct{}

// WithBudget returns a context carrying the soft time budget for a task.
func WithBudget(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, budgetKey{}, d)
}

// BudgetFromContext returns the soft time budget stored by WithBudget.
func BudgetFromContext(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(budgetKey{}).(time.Duration)
	return d, ok
}
