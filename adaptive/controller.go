// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package adaptive derives viewport tiers from activation state and rewrites
// the allocation table from observed performance.
//
// The controller is proportional only: each step scales shares by a fixed
// factor when a threshold is crossed. There is no integral or derivative term,
// so sustained load can make the table oscillate slowly between steps.
package adaptive

import (
	"math"
	"time"

	"github.com/gogpu/viewsched/alloc"
	"github.com/gogpu/viewsched/metrics"
	"github.com/gogpu/viewsched/priority"
)

// ViewportState is the activation state of a viewport as seen by its owner.
type ViewportState struct {
	Visible          bool `yaml:"visible"`
	Active           bool `yaml:"active"`
	Focused          bool `yaml:"focused"`
	RenderingEnabled bool `yaml:"rendering_enabled"`
}

// Derive maps a viewport state to a tier. Disabled rendering overrides
// everything; otherwise focus+activity beats activity beats visibility.
func Derive(s ViewportState) priority.Tier {
	switch {
	case !s.RenderingEnabled:
		return priority.Suspended
	case s.Focused && s.Active:
		return priority.Critical
	case s.Active:
		return priority.High
	case s.Visible:
		return priority.Medium
	default:
		return priority.Low
	}
}

// Config tunes the controller.
type Config struct {
	// MemoryPressureThreshold triggers memory shrinking when exceeded.
	MemoryPressureThreshold float64 `yaml:"memory_pressure_threshold"`

	// TargetFPS sets the frame budget that triggers CPU rebalancing.
	TargetFPS int `yaml:"target_fps"`

	// MemoryShrink scales MemoryShare and MaxConcurrent under memory pressure.
	MemoryShrink float64 `yaml:"memory_shrink"`

	// CriticalBoost scales Critical's CPUShare when frames are slow.
	CriticalBoost float64 `yaml:"critical_boost"`

	// CriticalCPUCap bounds Critical's CPUShare.
	CriticalCPUCap float64 `yaml:"critical_cpu_cap"`

	// OtherShrink scales the other tiers' CPUShare when frames are slow.
	OtherShrink float64 `yaml:"other_shrink"`

	// SliceStretch scales the other tiers' TimeSlice when frames are slow.
	SliceStretch float64 `yaml:"slice_stretch"`
}

// DefaultConfig returns the stock controller tuning.
func DefaultConfig() Config {
	return Config{
		MemoryPressureThreshold: 0.8,
		TargetFPS:               60,
		MemoryShrink:            0.7,
		CriticalBoost:           1.2,
		CriticalCPUCap:          80,
		OtherShrink:             0.9,
		SliceStretch:            1.2,
	}
}

// Controller applies the adaptive rules.
type Controller struct {
	cfg Config
}

// New creates a controller. Zero fields in cfg take their defaults.
func New(cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.MemoryPressureThreshold <= 0 {
		cfg.MemoryPressureThreshold = def.MemoryPressureThreshold
	}
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = def.TargetFPS
	}
	if cfg.MemoryShrink <= 0 {
		cfg.MemoryShrink = def.MemoryShrink
	}
	if cfg.CriticalBoost <= 0 {
		cfg.CriticalBoost = def.CriticalBoost
	}
	if cfg.CriticalCPUCap <= 0 {
		cfg.CriticalCPUCap = def.CriticalCPUCap
	}
	if cfg.OtherShrink <= 0 {
		cfg.OtherShrink = def.OtherShrink
	}
	if cfg.SliceStretch <= 0 {
		cfg.SliceStretch = def.SliceStretch
	}
	return &Controller{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// FrameBudget returns the frame time above which CPU is rebalanced.
func (c *Controller) FrameBudget() time.Duration {
	return metrics.FrameBudget(c.cfg.TargetFPS)
}

// Optimize rewrites table in place from the latest sample and reports whether
// any allocation changed.
//
// Under memory pressure every tier's MemoryShare shrinks and its concurrency
// ceiling shrinks with a floor of one; Suspended stays at zero. When frames
// are over budget Critical gains CPU share up to the cap while every other
// tier gives some up and gets a longer time slice.
func (c *Controller) Optimize(table *alloc.Table, s metrics.Sample) bool {
	before := table.Clone()

	if s.MemoryPressure > c.cfg.MemoryPressureThreshold {
		table.Update(func(tier priority.Tier, a *alloc.Allocation) {
			a.MemoryShare *= c.cfg.MemoryShrink
			if tier == priority.Suspended {
				return
			}
			a.MaxConcurrent = max(1, int(math.Floor(float64(a.MaxConcurrent)*c.cfg.MemoryShrink)))
		})
	}

	budgetMs := float64(c.FrameBudget()) / float64(time.Millisecond)
	if s.AvgFrameTimeMs > budgetMs {
		table.Update(func(tier priority.Tier, a *alloc.Allocation) {
			if tier == priority.Critical {
				a.CPUShare = math.Min(c.cfg.CriticalCPUCap, a.CPUShare*c.cfg.CriticalBoost)
				return
			}
			a.CPUShare *= c.cfg.OtherShrink
			a.TimeSlice = time.Duration(math.Round(float64(a.TimeSlice) * c.cfg.SliceStretch))
		})
	}

	return !before.Equal(table)
}
