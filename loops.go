// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package viewsched

import (
	"context"
	"time"

	"github.com/gogpu/viewsched/adaptive"
	"github.com/gogpu/viewsched/metrics"
)

// Start launches the dispatch, metrics and adapt loops. They stop when ctx
// is cancelled or Stop is called. ctx is also the parent of every task's
// work context.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.Lock()
	s.workCtx = ctx
	s.mu.Unlock()

	s.loop(ctx, s.cfg.DispatchInterval, func() { s.StepDispatch() })
	s.loop(ctx, s.cfg.MetricsInterval, func() { s.StepMetrics(ctx) })
	s.loop(ctx, s.cfg.AdaptInterval, func() { s.StepAdapt() })

	Logger().Info("scheduler started",
		"dispatch", s.cfg.DispatchInterval, "metrics", s.cfg.MetricsInterval, "adapt", s.cfg.AdaptInterval)
	return nil
}

// Stop cancels the loops and waits for them to exit. Work already handed to
// workers keeps running. Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.loopsWG.Wait()
	s.cancel = nil

	s.mu.Lock()
	s.workCtx = context.Background()
	s.mu.Unlock()
	Logger().Info("scheduler stopped")
}

// Close stops the loops and waits for in-flight work on the worker pool.
// After Close the scheduler rejects new tasks.
func (s *Scheduler) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.Stop()
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, step func()) {
	ticker := s.clock.NewTicker(interval)
	s.loopsWG.Add(1)
	go func() {
		defer s.loopsWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				step()
			}
		}
	}()
}

// StepDispatch runs one dispatch pass: it selects at most one runnable task
// and executes it. It returns false if nothing was started or another pass
// is already in progress.
func (s *Scheduler) StepDispatch() bool {
	if !s.dispatching.CompareAndSwap(false, true) {
		return false
	}
	defer s.dispatching.Store(false)

	s.mu.Lock()
	e := s.queue.SelectNext(s.table.MaxConcurrent)
	if e != nil {
		e.StartedAt = s.clock.Now()
	}
	s.mu.Unlock()

	if e == nil {
		return false
	}
	Logger().Debug("dispatching task", "task", e.Task.ID, "viewport", e.Task.ViewportID, "priority", e.Priority)
	s.execute(e)
	return true
}

// StepMetrics takes one performance sample, forwards it to the sink and
// publishes PerformanceDegraded when a threshold is crossed.
func (s *Scheduler) StepMetrics(ctx context.Context) metrics.Sample {
	s.mu.Lock()
	obs := metrics.Observation{
		QueueLength: s.queue.Len(),
		ActiveTasks: s.queue.ActiveLen(),
		AverageWait: s.queue.AverageWait(s.clock.Now()),
	}
	s.mu.Unlock()

	obs.MemoryPressure = s.memory()
	if s.pool != nil {
		obs.Busy = s.pool.TakeBusy()
		obs.Workers = s.pool.Workers()
	}

	sample, degraded := s.collector.Sample(obs)
	if s.sink != nil {
		if err := s.sink.Record(ctx, sample); err != nil {
			Logger().Warn("recording sample failed", "err", err)
		}
	}
	if degraded {
		Logger().Warn("performance degraded",
			"frame_ms", sample.AvgFrameTimeMs, "memory", sample.MemoryPressure, "queue", sample.QueueLength)
		s.events.PerformanceDegraded.Publish(sample)
	}
	return sample
}

// StepAdapt derives the tier of every viewport with a known state, applies
// changed tiers, then rewrites the allocation table from the latest sample.
// A sample is used for at most one table rewrite.
func (s *Scheduler) StepAdapt() {
	var changes []PriorityChanged

	s.mu.Lock()
	for _, id := range sortedViewportIDs(s.viewports) {
		vp := s.viewports[id]
		if vp.state == nil {
			continue
		}
		if c, ok := s.setTierLocked(id, adaptive.Derive(*vp.state), "viewport state"); ok {
			changes = append(changes, c)
		}
	}

	var snapshot AllocationChanged
	tableChanged := false
	if sample, ok := s.collector.Latest(); ok && sample.Time.After(s.lastAdaptive) {
		s.lastAdaptive = sample.Time
		if s.controller.Optimize(s.table, sample) {
			tableChanged = true
			snapshot.Table = s.table.Clone()
		}
	}
	s.mu.Unlock()

	for _, c := range changes {
		s.publishPriorityChange(c)
	}
	if tableChanged {
		Logger().Info("allocations rewritten")
		s.events.AllocationChanged.Publish(snapshot)
	}
}
