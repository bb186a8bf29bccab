// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package viewsched

import (
	"context"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/viewsched/alloc"
	"github.com/gogpu/viewsched/cache"
	"github.com/gogpu/viewsched/internal/queue"
	"github.com/gogpu/viewsched/priority"
	"github.com/gogpu/viewsched/task"
)

// dispatch is the part of an in-flight entry that work goroutines may read.
// It is captured under the scheduler lock because Reprioritize keeps
// rewriting the entry's priority while the task runs.
type dispatch struct {
	entry     *queue.Entry
	tier      priority.Tier
	alloc     alloc.Allocation
	estimated time.Duration
}

// execute runs a dispatched entry. With a worker pool the work is handed off
// and execute returns at once; otherwise it runs inline.
func (s *Scheduler) execute(e *queue.Entry) {
	s.mu.Lock()
	d := dispatch{entry: e, tier: e.Priority, estimated: e.EstimatedDuration}
	a, ok := s.table.Lookup(d.tier)
	d.alloc = a
	ctx := s.workCtx
	if !ok {
		s.queue.Complete(e.Task.ID)
	}
	s.mu.Unlock()

	if !ok {
		err := &TaskError{
			TaskID:     e.Task.ID,
			ViewportID: e.Task.ViewportID,
			Priority:   d.tier,
			Attempts:   e.Task.RetryCount,
			Err:        fmt.Errorf("%w %s", ErrNoAllocation, d.tier),
		}
		Logger().Error("dropping task", "task", e.Task.ID, "err", err)
		s.collector.RecordFailure(false)
		s.events.TaskFailed.Publish(TaskFailed{Task: e.Task, Err: err})
		return
	}

	job := func() { s.run(ctx, d) }
	if s.pool == nil || !s.pool.Submit(job) {
		job()
	}
}

// run executes the task's work under the tier's soft time budget. The budget
// is advisory: work that overruns is measured, not cancelled.
func (s *Scheduler) run(ctx context.Context, d dispatch) {
	e, t, slice := d.entry, d.entry.Task, d.alloc.TimeSlice
	s.events.TaskStarted.Publish(TaskStarted{
		Task:      t,
		Priority:  d.tier,
		Wait:      e.StartedAt.Sub(e.EnqueuedAt),
		TimeSlice: slice,
		Estimated: d.estimated,
	})

	start := s.clock.Now()
	res, err := render(task.WithBudget(ctx, slice), t)
	took := s.clock.Since(start)
	overrun := slice > 0 && took > slice
	if overrun {
		Logger().Debug("time slice overrun", "task", t.ID, "duration", took, "slice", slice, "estimated", d.estimated)
	}

	if err != nil {
		s.fail(e, err)
		return
	}

	s.mu.Lock()
	tier := e.Priority
	s.mu.Unlock()
	key := s.store(tier, res)

	s.mu.Lock()
	s.queue.Complete(t.ID)
	s.mu.Unlock()

	s.collector.RecordTask(t.Kind, took, overrun)
	Logger().Debug("task completed", "task", t.ID, "viewport", t.ViewportID, "duration", took)
	s.events.TaskCompleted.Publish(TaskCompleted{
		Task:      t,
		Priority:  tier,
		Duration:  took,
		Estimated: d.estimated,
		Overrun:   overrun,
		CacheKey:  key,
	})
}

// render calls the task's work and turns a panic into an error.
func render(ctx context.Context, t *task.Task) (res task.Result, err error) {
	if t.Work == nil {
		return task.Result{}, ErrNoWork
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return t.Work.Render(ctx, t)
}

// store puts a cacheable result into the artifact cache at tier and returns
// its key.
func (s *Scheduler) store(tier priority.Tier, res task.Result) string {
	if !res.Cacheable() {
		return ""
	}
	size := res.Size
	if size <= 0 {
		format := res.Format
		if format == gputypes.TextureFormatUndefined {
			format = s.format
		}
		size = cache.TextureSize(format, res.Extent)
	}
	s.cache.Set(res.Key, res.Data, size, tier)
	return res.Key
}

// fail applies the retry policy: while retries remain the task is demoted one
// tier and re-enqueued with a fresh timestamp; after that it is dropped.
// A task whose viewport was removed while it ran is dropped at once.
func (s *Scheduler) fail(e *queue.Entry, cause error) {
	t := e.Task

	s.mu.Lock()
	s.queue.Complete(t.ID)
	from := e.Priority
	_, known := s.viewports[t.ViewportID]
	retry := known && t.RetryCount < t.MaxRetries
	var (
		next     *queue.Entry
		overflow bool
		size     int
	)
	if retry {
		t.RetryCount++
		next = e.Retry(from.Demote(), s.clock.Now())
		next.EstimatedDuration = s.collector.Estimate(t.Kind)
		if !s.queue.Push(next) {
			overflow = true
			size = s.queue.Len()
		}
	}
	s.mu.Unlock()

	if retry && !overflow {
		s.collector.RecordFailure(true)
		Logger().Debug("task retried", "task", t.ID, "attempt", t.RetryCount,
			"from", from, "to", next.Priority, "err", cause)
		s.events.TaskRetried.Publish(TaskRetried{
			Task:    t,
			From:    from,
			To:      next.Priority,
			Attempt: t.RetryCount,
			Err:     cause,
		})
		return
	}

	switch {
	case overflow:
		Logger().Warn("queue overflow on retry", "task", t.ID, "size", size)
		s.events.QueueOverflow.Publish(QueueOverflow{Task: t, Size: size})
		cause = fmt.Errorf("%w: %w", ErrQueueFull, cause)
	case !known:
		cause = fmt.Errorf("%w: %w", ErrViewportRemoved, cause)
	}
	attempts := t.RetryCount
	if !retry {
		attempts++
	}
	err := &TaskError{
		TaskID:     t.ID,
		ViewportID: t.ViewportID,
		Priority:   from,
		Attempts:   attempts,
		Err:        cause,
	}
	s.collector.RecordFailure(false)
	Logger().Warn("task failed", "task", t.ID, "viewport", t.ViewportID, "err", err)
	s.events.TaskFailed.Publish(TaskFailed{Task: t, Err: err})
}
