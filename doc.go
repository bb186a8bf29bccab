// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package viewsched schedules rendering work for many viewports that share a
// bounded pool of CPU, GPU and memory.
//
// # Overview
//
// Each viewport submits opaque rendering tasks. The scheduler queues them by
// priority tier, dispatches at most one per tick while respecting per-tier
// concurrency ceilings and task dependencies, retries failures at a lower
// tier, and stores finished artifacts in an adaptive cache. A metrics loop
// samples performance; an adapt loop derives viewport tiers from their
// activation state and rewrites the allocation table under load.
//
// # Quick Start
//
//	s, err := viewsched.New(viewsched.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	s.Events().TaskCompleted.Subscribe(func(e viewsched.TaskCompleted) {
//	    log.Printf("%s took %v", e.Task.ID, e.Duration)
//	})
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//
//	t := task.New("main", task.KindUpdate, task.WorkFunc(renderTile))
//	s.QueueTask("main", t)
//
// # Priority Tiers
//
// Critical, High, Medium, Low, Suspended and Background, most urgent first.
// Suspended has a concurrency ceiling of zero: moving a viewport there with
// SetPriority holds its queued work until it is promoted again.
//
// # Loops
//
// Start runs three loops on the configured clock: dispatch (60 Hz by
// default), metrics (1 Hz) and adapt (every 5 s). Tests drive them one step
// at a time with StepDispatch, StepMetrics and StepAdapt.
//
// # Logging
//
// The package is silent by default. See SetLogger.
package viewsched
