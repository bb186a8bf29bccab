// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package viewsched

import (
	"errors"
	"fmt"

	"github.com/gogpu/viewsched/priority"
)

// Sentinel errors.
var (
	// ErrNoAllocation is reported when a dispatched task's tier has no
	// allocation in the table.
	ErrNoAllocation = errors.New("viewsched: no allocation for tier")

	// ErrQueueFull is reported when a retry cannot be re-enqueued.
	ErrQueueFull = errors.New("viewsched: queue is full")

	// ErrNoWork is reported for a task without a Work implementation.
	ErrNoWork = errors.New("viewsched: task has no work")

	// ErrViewportRemoved is reported for queued tasks dropped by RemoveViewport.
	ErrViewportRemoved = errors.New("viewsched: viewport removed")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("viewsched: invalid config")

	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("viewsched: already started")

	// ErrClosed is returned by operations on a closed scheduler.
	ErrClosed = errors.New("viewsched: scheduler is closed")
)

// TaskError describes a task that failed permanently.
type TaskError struct {
	TaskID     string
	ViewportID string
	Priority   priority.Tier
	Attempts   int
	Err        error
}

// Error implements error.
func (e *TaskError) Error() string {
	return fmt.Sprintf("viewsched: task %s (viewport %s, %s) failed after %d attempt(s): %v",
		e.TaskID, e.ViewportID, e.Priority, e.Attempts, e.Err)
}

// Unwrap returns the last failure cause.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a panicking task.
type PanicError struct {
	Value any
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("viewsched: task panicked: %v", e.Value)
}
