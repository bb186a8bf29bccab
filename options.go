// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package viewsched

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/jonboulle/clockwork"

	"github.com/gogpu/viewsched/alloc"
	"github.com/gogpu/viewsched/cache"
	"github.com/gogpu/viewsched/metrics"
)

// Option configures a Scheduler during creation.
//
// Example:
//
//	s, err := viewsched.New(viewsched.DefaultConfig(),
//	    viewsched.WithSampleSink(sink),
//	    viewsched.WithDeviceProvider(provider),
//	)
type Option func(*options)

type options struct {
	clock       clockwork.Clock
	table       *alloc.Table
	cache       *cache.Cache
	sink        metrics.Sink
	memoryProbe func() float64
	format      gputypes.TextureFormat
}

func defaultOptions() options {
	return options{
		clock:  clockwork.NewRealClock(),
		format: gputypes.TextureFormatRGBA8Unorm,
	}
}

// WithClock sets the time source for the scheduler, its cache and its
// collector. Tests pass clockwork.NewFakeClock().
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithAllocationTable replaces the allocation table built from the config.
// The scheduler takes ownership of t.
func WithAllocationTable(t *alloc.Table) Option {
	return func(o *options) {
		o.table = t
	}
}

// WithCache shares an existing artifact cache instead of creating one.
func WithCache(c *cache.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithSampleSink forwards every performance sample to sink.
func WithSampleSink(sink metrics.Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithMemoryProbe overrides the memory pressure source. By default the
// artifact cache's fill ratio is used.
func WithMemoryProbe(fn func() float64) Option {
	return func(o *options) {
		o.memoryProbe = fn
	}
}

// WithDeviceProvider takes the default artifact texture format from the
// host's GPU surface. Results that report an extent but no format or byte
// size are sized with it.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		if p == nil {
			return
		}
		if f := p.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			o.format = f
		}
	}
}
