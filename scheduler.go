// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package viewsched

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/jonboulle/clockwork"

	"github.com/gogpu/viewsched/adaptive"
	"github.com/gogpu/viewsched/alloc"
	"github.com/gogpu/viewsched/cache"
	"github.com/gogpu/viewsched/internal/parallel"
	"github.com/gogpu/viewsched/internal/queue"
	"github.com/gogpu/viewsched/metrics"
	"github.com/gogpu/viewsched/priority"
	"github.com/gogpu/viewsched/task"
)

// viewport is the scheduler's record of one viewport.
type viewport struct {
	tier priority.Tier

	// state is nil until SetViewportState is called; only viewports with a
	// known state take part in tier derivation.
	state *adaptive.ViewportState
}

// Scheduler decides which viewport's rendering work runs next.
//
// All mutable state sits behind one mutex. The mutex is never held while
// task work runs or while events are published.
type Scheduler struct {
	cfg        Config
	clock      clockwork.Clock
	cache      *cache.Cache
	collector  *metrics.Collector
	controller *adaptive.Controller
	pool       *parallel.WorkerPool
	sink       metrics.Sink
	memory     func() float64
	format     gputypes.TextureFormat
	events     Events

	mu           sync.Mutex
	queue        *queue.Queue
	table        *alloc.Table
	baseline     *alloc.Table
	viewports    map[string]*viewport
	workCtx      context.Context
	lastAdaptive time.Time

	dispatching atomic.Bool
	closed      atomic.Bool

	lifeMu  sync.Mutex
	cancel  context.CancelFunc
	loopsWG sync.WaitGroup
}

// New creates a scheduler from cfg. The loops do not run until Start.
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	table := o.table
	if table == nil {
		var err error
		if table, err = cfg.Table(); err != nil {
			return nil, err
		}
	} else if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	c := o.cache
	if c == nil {
		c = cache.New(cfg.Cache.Capacity, cfg.Cache.Strategy,
			cache.WithClock(o.clock), cache.WithHalfLife(cfg.Cache.HalfLife))
	}

	ctrl := adaptive.New(cfg.Adaptive)
	thresholds := cfg.Thresholds
	if thresholds.FrameBudget <= 0 {
		thresholds.FrameBudget = ctrl.FrameBudget()
	}

	s := &Scheduler{
		cfg:        cfg,
		clock:      o.clock,
		cache:      c,
		collector:  metrics.NewCollector(o.clock, thresholds, cfg.HistorySize),
		controller: ctrl,
		sink:       o.sink,
		memory:     o.memoryProbe,
		format:     o.format,
		queue:      queue.New(cfg.MaxQueueSize),
		table:      table,
		baseline:   table.Clone(),
		viewports:  make(map[string]*viewport),
		workCtx:    context.Background(),
	}
	if s.memory == nil {
		s.memory = c.Pressure
	}
	if cfg.Workers > 0 {
		s.pool = parallel.NewWorkerPool(cfg.Workers)
	}
	return s, nil
}

// Events returns the outbound notification topics.
func (s *Scheduler) Events() *Events {
	return &s.events
}

// Config returns the configuration the scheduler was built with.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// QueueOption adjusts a single submission.
type QueueOption func(*queueOptions)

type queueOptions struct {
	tier     priority.Tier
	explicit bool
	deps     []string
}

// WithPriority queues the task at tier instead of the viewport's tier.
func WithPriority(tier priority.Tier) QueueOption {
	return func(o *queueOptions) {
		o.tier = tier
		o.explicit = true
	}
}

// WithDependencies holds the task back while any of the given tasks is in
// flight.
func WithDependencies(taskIDs ...string) QueueOption {
	return func(o *queueOptions) {
		o.deps = append(o.deps, taskIDs...)
	}
}

// QueueTask submits a task for viewportID.
//
// The task runs at the explicit WithPriority tier if given, else at the
// viewport's current tier (Medium for a viewport seen for the first time).
// Returns false if the queue is full, the task is already known, or the
// scheduler is closed. A full queue also publishes QueueOverflow.
func (s *Scheduler) QueueTask(viewportID string, t *task.Task, opts ...QueueOption) bool {
	if t == nil || s.closed.Load() {
		return false
	}
	var qo queueOptions
	for _, opt := range opts {
		opt(&qo)
	}
	if t.ID == "" {
		t.ID = task.NewID()
	}
	t.ViewportID = viewportID

	s.mu.Lock()
	if s.queue.Has(t.ID) {
		s.mu.Unlock()
		Logger().Debug("duplicate task rejected", "task", t.ID, "viewport", viewportID)
		return false
	}
	vp := s.viewportLocked(viewportID)
	tier := vp.tier
	if qo.explicit {
		tier = qo.tier
	}
	entry := queue.NewEntry(t, tier, s.clock.Now(), qo.deps)
	entry.EstimatedDuration = s.collector.Estimate(t.Kind)
	ok := s.queue.Push(entry)
	size := s.queue.Len()
	s.mu.Unlock()

	if !ok {
		Logger().Warn("queue overflow", "task", t.ID, "viewport", viewportID, "size", size)
		s.events.QueueOverflow.Publish(QueueOverflow{Task: t, Size: size})
		return false
	}
	Logger().Debug("task queued", "task", t.ID, "viewport", viewportID, "priority", tier, "kind", t.Kind)
	s.events.TaskQueued.Publish(TaskQueued{Task: t, Priority: tier, QueueLength: size})
	return true
}

// SetPriority moves a viewport to tier and rewrites the priority of its
// queued and in-flight tasks. Setting the tier a viewport already has is a
// no-op: nothing is re-sorted and no event is published.
// Moving a viewport to Suspended is how its queued work is cancelled.
func (s *Scheduler) SetPriority(viewportID string, tier priority.Tier, reason string) {
	if !tier.Valid() {
		Logger().Warn("ignoring invalid priority", "viewport", viewportID, "priority", tier)
		return
	}
	s.mu.Lock()
	change, ok := s.setTierLocked(viewportID, tier, reason)
	s.mu.Unlock()

	if ok {
		s.publishPriorityChange(change)
	}
}

// SetViewportState records a viewport's activation state. The tier derived
// from it is applied on the next adapt step.
func (s *Scheduler) SetViewportState(viewportID string, state adaptive.ViewportState) {
	s.mu.Lock()
	vp := s.viewportLocked(viewportID)
	st := state
	vp.state = &st
	s.mu.Unlock()
}

// RemoveViewport forgets a viewport and drops its queued tasks. Tasks already
// in flight run to completion. Each dropped task publishes TaskFailed with
// ErrViewportRemoved.
func (s *Scheduler) RemoveViewport(viewportID string) int {
	s.mu.Lock()
	removed := s.queue.RemoveViewport(viewportID)
	delete(s.viewports, viewportID)
	s.mu.Unlock()

	Logger().Debug("viewport removed", "viewport", viewportID, "dropped", len(removed))
	for _, e := range removed {
		s.events.TaskFailed.Publish(TaskFailed{Task: e.Task, Err: ErrViewportRemoved})
	}
	return len(removed)
}

// ViewportPriority returns the current tier of a viewport.
func (s *Scheduler) ViewportPriority(viewportID string) (priority.Tier, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vp, ok := s.viewports[viewportID]
	if !ok {
		return 0, false
	}
	return vp.tier, true
}

// Status is a snapshot of the queue.
type Status struct {
	TotalItems        int                   `json:"totalItems"`
	ItemsByPriority   map[priority.Tier]int `json:"itemsByPriority"`
	ActiveTasks       int                   `json:"activeTasks"`
	AverageWaitTimeMs float64               `json:"averageWaitTimeMs"`

	// EstimatedBacklogMs is the summed expected run time of queued tasks.
	EstimatedBacklogMs float64 `json:"estimatedBacklogMs"`
}

// QueueStatus reports queue depth per tier, in-flight count and mean wait.
func (s *Scheduler) QueueStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		TotalItems:         s.queue.Len(),
		ItemsByPriority:    s.queue.CountByTier(),
		ActiveTasks:        s.queue.ActiveLen(),
		AverageWaitTimeMs:  float64(s.queue.AverageWait(s.clock.Now())) / float64(time.Millisecond),
		EstimatedBacklogMs: float64(s.queue.Backlog()) / float64(time.Millisecond),
	}
}

// PerformanceMetrics returns the latest sample, or false before the first one.
func (s *Scheduler) PerformanceMetrics() (metrics.Sample, bool) {
	return s.collector.Latest()
}

// History returns the retained performance samples, oldest first.
func (s *Scheduler) History() *metrics.History {
	return s.collector.History()
}

// Counters returns cumulative task counters.
func (s *Scheduler) Counters() metrics.Counters {
	return s.collector.Counters()
}

// RecordFrameTime reports the duration of a presented frame. When frames are
// reported, they take precedence over task durations in AvgFrameTimeMs.
func (s *Scheduler) RecordFrameTime(d time.Duration) {
	s.collector.RecordFrame(d)
}

// CacheGet returns a cached artifact.
func (s *Scheduler) CacheGet(key string) (any, bool) {
	return s.cache.Get(key)
}

// CacheSet stores an artifact with the priority of the viewport it serves.
func (s *Scheduler) CacheSet(key string, data any, size int64, tier priority.Tier) {
	s.cache.Set(key, data, size, tier)
}

// CacheStats returns artifact cache statistics.
func (s *Scheduler) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Cache returns the artifact cache.
func (s *Scheduler) Cache() *cache.Cache {
	return s.cache
}

// Allocations returns a copy of the current allocation table.
func (s *Scheduler) Allocations() *alloc.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Clone()
}

// ResetAllocations restores the table the scheduler started with, undoing
// every adaptive rewrite.
func (s *Scheduler) ResetAllocations() {
	s.mu.Lock()
	changed := !s.table.Equal(s.baseline)
	s.table = s.baseline.Clone()
	snapshot := s.table.Clone()
	s.mu.Unlock()

	if changed {
		Logger().Info("allocations reset")
		s.events.AllocationChanged.Publish(AllocationChanged{Table: snapshot})
	}
}

// viewportLocked returns the record for id, creating it at Medium.
func (s *Scheduler) viewportLocked(id string) *viewport {
	vp, ok := s.viewports[id]
	if !ok {
		vp = &viewport{tier: priority.Medium}
		s.viewports[id] = vp
	}
	return vp
}

// setTierLocked applies a tier to a viewport. It reports false when the
// viewport was already at tier.
func (s *Scheduler) setTierLocked(id string, tier priority.Tier, reason string) (PriorityChanged, bool) {
	vp := s.viewportLocked(id)
	if vp.tier == tier {
		// Demoted retries keep their lower tier until the viewport moves.
		return PriorityChanged{}, false
	}
	n := s.queue.Reprioritize(id, tier)
	change := PriorityChanged{ViewportID: id, Old: vp.tier, New: tier, Reason: reason, Entries: n}
	vp.tier = tier
	return change, true
}

func (s *Scheduler) publishPriorityChange(c PriorityChanged) {
	Logger().Debug("viewport priority changed",
		"viewport", c.ViewportID, "old", c.Old, "new", c.New, "reason", c.Reason, "entries", c.Entries)
	s.events.PriorityChanged.Publish(c)
}

// sortedViewportIDs returns viewport ids in a stable order for event output.
func sortedViewportIDs(m map[string]*viewport) []string {
	return slices.Sorted(maps.Keys(m))
}
