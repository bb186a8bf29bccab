// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package viewsched

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/viewsched/adaptive"
	"github.com/gogpu/viewsched/alloc"
	"github.com/gogpu/viewsched/cache"
	"github.com/gogpu/viewsched/metrics"
	"github.com/gogpu/viewsched/priority"
)

// Config holds the scheduler settings that can live in a file.
type Config struct {
	// MaxQueueSize bounds pending tasks. Zero means unbounded.
	MaxQueueSize int `yaml:"max_queue_size"`

	// Workers is the number of goroutines running task work.
	// Zero runs work inline on the dispatching goroutine.
	Workers int `yaml:"workers"`

	DispatchInterval time.Duration `yaml:"dispatch_interval"`
	MetricsInterval  time.Duration `yaml:"metrics_interval"`
	AdaptInterval    time.Duration `yaml:"adapt_interval"`

	// HistorySize is the number of performance samples kept in memory.
	HistorySize int `yaml:"history_size"`

	Cache      CacheConfig        `yaml:"cache"`
	Thresholds metrics.Thresholds `yaml:"thresholds"`
	Adaptive   adaptive.Config    `yaml:"adaptive"`

	// Allocations overrides entries of the default allocation table,
	// keyed by tier name ("critical", "high", ...).
	Allocations map[string]alloc.Allocation `yaml:"allocations"`
}

// CacheConfig configures the artifact cache.
type CacheConfig struct {
	Capacity int64          `yaml:"capacity"`
	Strategy cache.Strategy `yaml:"strategy"`
	HalfLife time.Duration  `yaml:"half_life"`
}

// DefaultConfig returns the stock configuration: a 100-entry queue, two
// workers, loops at 60 Hz, 1 Hz and every 5 seconds, and a 256 MiB hybrid cache.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:     100,
		Workers:          2,
		DispatchInterval: time.Second / 60,
		MetricsInterval:  time.Second,
		AdaptInterval:    5 * time.Second,
		HistorySize:      metrics.DefaultHistorySize,
		Cache: CacheConfig{
			Capacity: cache.DefaultCapacity,
			Strategy: cache.Hybrid,
			HalfLife: cache.DefaultHalfLife,
		},
		Thresholds: metrics.DefaultThresholds(),
		Adaptive:   adaptive.DefaultConfig(),
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig and validates it.
// Fields absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("viewsched: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.MaxQueueSize < 0:
		return fmt.Errorf("%w: max_queue_size %d is negative", ErrInvalidConfig, c.MaxQueueSize)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers %d is negative", ErrInvalidConfig, c.Workers)
	case c.DispatchInterval <= 0, c.MetricsInterval <= 0, c.AdaptInterval <= 0:
		return fmt.Errorf("%w: loop intervals must be positive", ErrInvalidConfig)
	case c.HistorySize < 0:
		return fmt.Errorf("%w: history_size %d is negative", ErrInvalidConfig, c.HistorySize)
	case c.Cache.Capacity < 0:
		return fmt.Errorf("%w: cache capacity %d is negative", ErrInvalidConfig, c.Cache.Capacity)
	case c.Thresholds.MemoryPressure < 0 || c.Thresholds.QueueLength < 0:
		return fmt.Errorf("%w: thresholds must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Table(); err != nil {
		return err
	}
	return nil
}

// Table builds the allocation table: the defaults with Allocations applied.
func (c Config) Table() (*alloc.Table, error) {
	t := alloc.Default()
	for name, a := range c.Allocations {
		tier, err := priority.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("%w: allocations: %w", ErrInvalidConfig, err)
		}
		if a.MaxConcurrent < 0 || a.CPUShare < 0 || a.MemoryShare < 0 || a.TimeSlice < 0 {
			return nil, fmt.Errorf("%w: allocation for %s has negative fields", ErrInvalidConfig, tier)
		}
		t.Set(tier, a)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return t, nil
}
