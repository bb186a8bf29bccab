// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package metrics

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sugawarayuuta/sonnet"

	"github.com/gogpu/viewsched/task"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestHistory_RingEviction(t *testing.T) {
	h := NewHistory(3)
	if _, ok := h.Latest(); ok {
		t.Error("Latest() on empty history should fail")
	}

	for i := range 5 {
		h.Push(Sample{QueueLength: i})
	}

	if h.Len() != 3 || h.Cap() != 3 {
		t.Errorf("Len/Cap = %d/%d, want 3/3", h.Len(), h.Cap())
	}
	got := h.Samples()
	for i, want := range []int{2, 3, 4} {
		if got[i].QueueLength != want {
			t.Errorf("Samples()[%d].QueueLength = %d, want %d", i, got[i].QueueLength, want)
		}
	}
	if latest, _ := h.Latest(); latest.QueueLength != 4 {
		t.Errorf("Latest().QueueLength = %d, want 4", latest.QueueLength)
	}

	h.Reset()
	if h.Len() != 0 {
		t.Errorf("Len() after Reset = %d", h.Len())
	}
}

func TestHistory_DefaultSize(t *testing.T) {
	if got := NewHistory(0).Cap(); got != DefaultHistorySize {
		t.Errorf("Cap() = %d, want %d", got, DefaultHistorySize)
	}
}

func TestHistory_WriteJSON(t *testing.T) {
	h := NewHistory(4)
	h.Push(Sample{Time: t0, QueueLength: 7, MemoryPressure: 0.25})

	var buf bytes.Buffer
	if err := h.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}

	var decoded []Sample
	if err := sonnet.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v (%s)", err, buf.String())
	}
	if len(decoded) != 1 || decoded[0].QueueLength != 7 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestCollector_FrameTimeSources(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	c := NewCollector(clock, DefaultThresholds(), 10)

	clock.Advance(time.Second)
	s, _ := c.Sample(Observation{})
	if s.AvgFrameTimeMs != 0 {
		t.Errorf("AvgFrameTimeMs with no data = %v, want 0", s.AvgFrameTimeMs)
	}

	c.RecordTask(task.KindUpdate, 10*time.Millisecond, false)
	c.RecordTask(task.KindUpdate, 20*time.Millisecond, true)
	clock.Advance(time.Second)
	s, _ = c.Sample(Observation{})
	if s.AvgFrameTimeMs != 15 {
		t.Errorf("AvgFrameTimeMs from tasks = %v, want 15", s.AvgFrameTimeMs)
	}

	c.RecordTask(task.KindInitial, 100*time.Millisecond, false)
	c.RecordFrame(8 * time.Millisecond)
	clock.Advance(time.Second)
	s, _ = c.Sample(Observation{})
	if s.AvgFrameTimeMs != 8 {
		t.Errorf("AvgFrameTimeMs should prefer frames: got %v, want 8", s.AvgFrameTimeMs)
	}

	counters := c.Counters()
	if counters.Completed != 3 || counters.Overruns != 1 {
		t.Errorf("Counters = %+v", counters)
	}
}

func TestCollector_Estimate(t *testing.T) {
	c := NewCollector(clockwork.NewFakeClockAt(t0), DefaultThresholds(), 10)

	if got := c.Estimate(task.KindResize); got != task.KindResize.Baseline() {
		t.Errorf("Estimate before any run = %v, want baseline %v", got, task.KindResize.Baseline())
	}

	c.RecordTask(task.KindResize, 100*time.Millisecond, false)
	if got := c.Estimate(task.KindResize); got != 100*time.Millisecond {
		t.Errorf("Estimate after first run = %v, want 100ms", got)
	}

	c.RecordTask(task.KindResize, 200*time.Millisecond, false)
	if got := c.Estimate(task.KindResize); got != 120*time.Millisecond {
		t.Errorf("Estimate after second run = %v, want 120ms", got)
	}

	if got := c.Estimate(task.KindUpdate); got != task.KindUpdate.Baseline() {
		t.Errorf("other kinds must keep their baseline, got %v", got)
	}
}

func TestCollector_CPUUsage(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	c := NewCollector(clock, DefaultThresholds(), 10)

	clock.Advance(time.Second)
	s, _ := c.Sample(Observation{Busy: 500 * time.Millisecond, Workers: 2})
	if s.CPUUsage != 0.25 {
		t.Errorf("CPUUsage = %v, want 0.25", s.CPUUsage)
	}

	clock.Advance(time.Second)
	s, _ = c.Sample(Observation{Busy: 5 * time.Second, Workers: 1})
	if s.CPUUsage != 1 {
		t.Errorf("CPUUsage should clamp at 1, got %v", s.CPUUsage)
	}
}

func TestCollector_Degraded(t *testing.T) {
	tests := []struct {
		name  string
		frame time.Duration
		obs   Observation
		want  bool
	}{
		{"healthy", 10 * time.Millisecond, Observation{MemoryPressure: 0.5, QueueLength: 5}, false},
		{"slow frames", 40 * time.Millisecond, Observation{}, true},
		{"memory", 0, Observation{MemoryPressure: 0.9}, true},
		{"queue depth", 0, Observation{QueueLength: 81}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := clockwork.NewFakeClockAt(t0)
			c := NewCollector(clock, DefaultThresholds(), 10)
			if tt.frame > 0 {
				c.RecordFrame(tt.frame)
			}
			clock.Advance(time.Second)
			s, degraded := c.Sample(tt.obs)
			if degraded != tt.want {
				t.Errorf("degraded = %v, want %v (sample %+v)", degraded, tt.want, s)
			}
			if latest, ok := c.Latest(); !ok || latest != s {
				t.Error("sample not appended to history")
			}
		})
	}
}

func TestFrameBudget(t *testing.T) {
	if got := FrameBudget(50); got != 20*time.Millisecond {
		t.Errorf("FrameBudget(50) = %v", got)
	}
	if FrameBudget(0) != FrameBudget(60) {
		t.Error("FrameBudget(0) should default to 60 FPS")
	}
}

func TestJSONLinesSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLinesSink(&buf)
	for i := range 2 {
		if err := sink.Record(context.Background(), Sample{QueueLength: i}); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], `"queueLength":1`) {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
