// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package viewsched

import (
	"time"

	"github.com/gogpu/viewsched/alloc"
	"github.com/gogpu/viewsched/events"
	"github.com/gogpu/viewsched/metrics"
	"github.com/gogpu/viewsched/priority"
	"github.com/gogpu/viewsched/task"
)

// TaskQueued is published after a task enters the queue.
type TaskQueued struct {
	Task        *task.Task
	Priority    priority.Tier
	QueueLength int
}

// TaskStarted is published when a task is dispatched.
type TaskStarted struct {
	Task      *task.Task
	Priority  priority.Tier
	Wait      time.Duration
	TimeSlice time.Duration

	// Estimated is the expected run time at dispatch.
	Estimated time.Duration
}

// TaskCompleted is published after a task's work returns successfully.
type TaskCompleted struct {
	Task     *task.Task
	Priority priority.Tier
	Duration time.Duration

	// Estimated is the expected run time the task was dispatched with.
	Estimated time.Duration

	// Overrun is set when Duration exceeded the tier's time slice.
	Overrun bool

	// CacheKey is the key the result was stored under, if any.
	CacheKey string
}

// TaskRetried is published when a failed task is re-enqueued.
type TaskRetried struct {
	Task    *task.Task
	From    priority.Tier
	To      priority.Tier
	Attempt int
	Err     error
}

// TaskFailed is published when a task is dropped for good.
type TaskFailed struct {
	Task *task.Task
	Err  error
}

// QueueOverflow is published when a submission is rejected by a full queue.
type QueueOverflow struct {
	Task *task.Task
	Size int
}

// PriorityChanged is published when a viewport moves to another tier.
type PriorityChanged struct {
	ViewportID string
	Old        priority.Tier
	New        priority.Tier
	Reason     string

	// Entries is the number of queued or in-flight entries rewritten.
	Entries int
}

// AllocationChanged carries a copy of the rewritten allocation table.
type AllocationChanged struct {
	Table *alloc.Table
}

// Events groups the scheduler's outbound notifications.
//
// Handlers run synchronously on the publishing goroutine, never under the
// scheduler's lock; a handler may call back into the scheduler.
type Events struct {
	TaskQueued          events.Topic[TaskQueued]
	TaskStarted         events.Topic[TaskStarted]
	TaskCompleted       events.Topic[TaskCompleted]
	TaskRetried         events.Topic[TaskRetried]
	TaskFailed          events.Topic[TaskFailed]
	QueueOverflow       events.Topic[QueueOverflow]
	PriorityChanged     events.Topic[PriorityChanged]
	PerformanceDegraded events.Topic[metrics.Sample]
	AllocationChanged   events.Topic[AllocationChanged]
}
