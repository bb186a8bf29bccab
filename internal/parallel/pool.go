// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package parallel runs dispatched rendering work off the scheduling goroutine.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPool is a pool of goroutines that execute rendering jobs.
//
// Each worker owns a queue and steals from the others when its own queue is
// empty, so one slow job does not hold up jobs queued behind it on another
// worker.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan func()
	done       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool

	// active counts jobs that are currently executing.
	active atomic.Int64

	// busyNanos accumulates wall time spent inside jobs.
	busyNanos atomic.Int64
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Buffer size: 2-4x workers helps hide latency.
	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]
	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			return
		case work := <-myQueue:
			p.run(work)
		default:
			if stolen := p.steal(id); stolen != nil {
				p.run(stolen)
				continue
			}
			select {
			case <-p.done:
				p.drainQueue(myQueue)
				return
			case work := <-myQueue:
				p.run(work)
			}
		}
	}
}

func (p *WorkerPool) run(work func()) {
	if work == nil {
		return
	}
	p.active.Add(1)
	start := time.Now()
	defer func() {
		p.busyNanos.Add(int64(time.Since(start)))
		p.active.Add(-1)
	}()
	work()
}

func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			p.run(work)
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// Submit queues a job on the worker with the shortest queue.
// Returns false if the pool is closed or fn is nil.
// Submit blocks while every worker queue is full.
func (p *WorkerPool) Submit(fn func()) bool {
	if fn == nil || !p.running.Load() {
		return false
	}

	minLen := len(p.workQueues[0])
	minIdx := 0
	for i := 1; i < p.workers; i++ {
		if qLen := len(p.workQueues[i]); qLen < minLen {
			minLen = qLen
			minIdx = i
		}
	}

	select {
	case p.workQueues[minIdx] <- fn:
		return true
	case <-p.done:
		return false
	}
}

// Close stops accepting jobs, runs what is already queued and waits for the
// workers to exit. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool accepts jobs.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// QueuedWork returns the approximate number of jobs waiting in queues.
func (p *WorkerPool) QueuedWork() int {
	total := 0
	for _, q := range p.workQueues {
		total += len(q)
	}
	return total
}

// Active returns the number of jobs currently executing.
func (p *WorkerPool) Active() int {
	return int(p.active.Load())
}

// TakeBusy returns the wall time spent in jobs since the previous call and
// resets the counter. Jobs still executing are counted when they finish.
func (p *WorkerPool) TakeBusy() time.Duration {
	return time.Duration(p.busyNanos.Swap(0))
}
