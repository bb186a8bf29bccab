// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package metrics samples scheduler performance and keeps a bounded history.
//
// The Collector accumulates task and frame timings between samples. Once per
// interval the scheduler calls Sample with a point-in-time Observation; the
// Collector folds in the accumulated timings, appends the result to its
// History and reports whether any threshold was crossed.
package metrics

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gogpu/viewsched/task"
)

// EstimateWeight is the weight of the newest run in a kind's duration estimate.
const EstimateWeight = 0.2

// Sample is a point-in-time performance snapshot.
type Sample struct {
	Time              time.Time `json:"time"`
	AvgFrameTimeMs    float64   `json:"avgFrameTimeMs"`
	MemoryPressure    float64   `json:"memoryPressure"`
	CPUUsage          float64   `json:"cpuUsage"`
	QueueLength       int       `json:"queueLength"`
	ActiveTasks       int       `json:"activeTasks"`
	AverageWaitTimeMs float64   `json:"averageWaitTimeMs"`
}

// Observation is the instantaneous scheduler state handed to Sample.
type Observation struct {
	QueueLength    int
	ActiveTasks    int
	AverageWait    time.Duration
	MemoryPressure float64

	// Busy is wall time spent executing tasks since the previous sample.
	// When zero, the durations passed to RecordTask are used instead.
	Busy time.Duration

	// Workers is the number of task executors sharing the interval.
	Workers int
}

// Thresholds define when a sample counts as degraded.
type Thresholds struct {
	// FrameBudget is the maximum acceptable average frame time.
	FrameBudget time.Duration `yaml:"frame_budget"`

	// MemoryPressure is the maximum acceptable memory pressure ratio.
	MemoryPressure float64 `yaml:"memory_pressure"`

	// QueueLength is the maximum acceptable queue depth. Zero disables it.
	QueueLength int `yaml:"queue_length"`
}

// DefaultThresholds targets 60 FPS and 80% memory pressure.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FrameBudget:    FrameBudget(60),
		MemoryPressure: 0.8,
		QueueLength:    80,
	}
}

// FrameBudget returns the per-frame time budget for a target frame rate.
func FrameBudget(fps int) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Second / time.Duration(fps)
}

// Degraded reports whether s crosses any threshold.
func (t Thresholds) Degraded(s Sample) bool {
	if t.FrameBudget > 0 && s.AvgFrameTimeMs > durationMs(t.FrameBudget) {
		return true
	}
	if t.MemoryPressure > 0 && s.MemoryPressure > t.MemoryPressure {
		return true
	}
	return t.QueueLength > 0 && s.QueueLength > t.QueueLength
}

// Counters are lifetime totals.
type Counters struct {
	Completed uint64
	Failed    uint64
	Retried   uint64
	Overruns  uint64
	Degraded  uint64
}

// Collector accumulates timings and produces samples.
//
// Collector is safe for concurrent use.
type Collector struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	thresholds Thresholds
	history    *History

	lastSample time.Time
	taskTotal  time.Duration
	taskCount  int
	frameTotal time.Duration
	frameCount int
	counters   Counters

	// estimates is an exponential moving average of successful run time
	// per task kind. Kinds never observed fall back to their baseline.
	estimates map[task.Kind]time.Duration
}

// NewCollector creates a collector retaining historySize samples.
func NewCollector(clock clockwork.Clock, thresholds Thresholds, historySize int) *Collector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{
		clock:      clock,
		thresholds: thresholds,
		history:    NewHistory(historySize),
		lastSample: clock.Now(),
		estimates:  make(map[task.Kind]time.Duration),
	}
}

// RecordTask records a successful run of a task of the given kind.
func (c *Collector) RecordTask(kind task.Kind, d time.Duration, overrun bool) {
	c.mu.Lock()
	if prev, ok := c.estimates[kind]; ok {
		c.estimates[kind] = time.Duration(float64(prev)*(1-EstimateWeight) + float64(d)*EstimateWeight)
	} else {
		c.estimates[kind] = d
	}
	c.taskTotal += d
	c.taskCount++
	c.counters.Completed++
	if overrun {
		c.counters.Overruns++
	}
	c.mu.Unlock()
}

// Estimate returns the expected run time of a task of the given kind: the
// moving average of observed runs, or the kind's baseline before any run.
func (c *Collector) Estimate(kind task.Kind) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.estimates[kind]; ok {
		return d
	}
	return kind.Baseline()
}

// RecordFailure records a failed task attempt. retried reports whether the
// task was re-queued.
func (c *Collector) RecordFailure(retried bool) {
	c.mu.Lock()
	if retried {
		c.counters.Retried++
	} else {
		c.counters.Failed++
	}
	c.mu.Unlock()
}

// RecordFrame records a frame time reported by the host.
func (c *Collector) RecordFrame(d time.Duration) {
	c.mu.Lock()
	c.frameTotal += d
	c.frameCount++
	c.mu.Unlock()
}

// Sample builds a sample from obs and the timings recorded since the previous
// call, appends it to the history and reports whether it is degraded.
//
// The average frame time prefers host-reported frames and falls back to the
// average task duration. With neither, it is zero.
func (c *Collector) Sample(obs Observation) (Sample, bool) {
	now := c.clock.Now()

	c.mu.Lock()
	interval := now.Sub(c.lastSample)
	c.lastSample = now

	var avgFrame time.Duration
	switch {
	case c.frameCount > 0:
		avgFrame = c.frameTotal / time.Duration(c.frameCount)
	case c.taskCount > 0:
		avgFrame = c.taskTotal / time.Duration(c.taskCount)
	}

	busy := obs.Busy
	if busy == 0 {
		busy = c.taskTotal
	}
	workers := obs.Workers
	if workers <= 0 {
		workers = 1
	}
	var cpu float64
	if interval > 0 {
		cpu = min(1, float64(busy)/(float64(interval)*float64(workers)))
	}

	c.taskTotal, c.taskCount = 0, 0
	c.frameTotal, c.frameCount = 0, 0

	s := Sample{
		Time:              now,
		AvgFrameTimeMs:    durationMs(avgFrame),
		MemoryPressure:    obs.MemoryPressure,
		CPUUsage:          cpu,
		QueueLength:       obs.QueueLength,
		ActiveTasks:       obs.ActiveTasks,
		AverageWaitTimeMs: durationMs(obs.AverageWait),
	}
	degraded := c.thresholds.Degraded(s)
	if degraded {
		c.counters.Degraded++
	}
	c.mu.Unlock()

	c.history.Push(s)
	return s, degraded
}

// Latest returns the most recent sample.
func (c *Collector) Latest() (Sample, bool) {
	return c.history.Latest()
}

// History returns the sample history.
func (c *Collector) History() *History {
	return c.history
}

// Thresholds returns the configured thresholds.
func (c *Collector) Thresholds() Thresholds {
	return c.thresholds
}

// Counters returns lifetime totals.
func (c *Collector) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
