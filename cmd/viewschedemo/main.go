// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Command viewschedemo drives a scheduler with several simulated viewports.
//
// Each viewport repeatedly requests a re-render at a new zoom level. The work
// scales a procedural source tile with golang.org/x/image/draw, so the CPU
// cost is real and the results land in the artifact cache. Focus moves from
// viewport to viewport every second.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/viewsched"
	"github.com/gogpu/viewsched/adaptive"
	"github.com/gogpu/viewsched/cache"
	"github.com/gogpu/viewsched/metrics/sqlitesink"
	"github.com/gogpu/viewsched/priority"
	"github.com/gogpu/viewsched/task"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (defaults if empty)")
		record     = flag.String("record", "", "SQLite file to record performance samples in")
		duration   = flag.Duration("duration", 5*time.Second, "how long to run")
		viewports  = flag.Int("viewports", 4, "number of simulated viewports")
		tileSize   = flag.Int("tile", 256, "rendered tile edge in pixels")
		history    = flag.String("history", "", "write the sample history as JSON to this file")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	viewsched.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := viewsched.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = viewsched.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	var opts []viewsched.Option
	if *record != "" {
		sink, err := sqlitesink.Open(*record)
		if err != nil {
			log.Fatalf("Failed to open recorder: %v", err)
		}
		defer sink.Close()
		opts = append(opts, viewsched.WithSampleSink(sink))
	}

	s, err := viewsched.New(cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	defer s.Close()

	s.Events().TaskFailed.Subscribe(func(e viewsched.TaskFailed) {
		log.Printf("task %s failed: %v", e.Task.ID, e.Err)
	})
	s.Events().AllocationChanged.Subscribe(func(e viewsched.AllocationChanged) {
		crit, _ := e.Table.Lookup(priority.Critical)
		log.Printf("allocations rewritten: critical cpu=%.1f%% slice=%v", crit.CPUShare, crit.TimeSlice)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	src := sourceTile()
	names := make([]string, *viewports)
	for i := range names {
		names[i] = "viewport-" + strconv.Itoa(i)
	}

	p := message.NewPrinter(language.English)
	submit := time.NewTicker(50 * time.Millisecond)
	defer submit.Stop()
	report := time.NewTicker(time.Second)
	defer report.Stop()

	focus, zoom := 0, 1
	applyFocus(s, names, focus)

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			summarize(p, s)
			if *history != "" {
				if err := writeHistory(s, *history); err != nil {
					log.Fatalf("Failed to write history: %v", err)
				}
			}
			return
		case <-submit.C:
			zoom = zoom%8 + 1
			for _, name := range names {
				t := task.New(name, task.KindQualityChange, renderWork(src, *tileSize, zoom))
				s.QueueTask(name, t)
			}
		case <-report.C:
			focus = (focus + 1) % len(names)
			applyFocus(s, names, focus)
			st := s.QueueStatus()
			cs := s.CacheStats()
			p.Printf("queued=%d active=%d wait=%.1fms cache=%d bytes (%d entries, %.0f%%)\n",
				st.TotalItems, st.ActiveTasks, st.AverageWaitTimeMs, cs.TotalSize, cs.EntryCount, cs.UtilizationPercent)
		}
	}
}

// applyFocus gives one viewport focus, keeps its neighbour visible, and
// disables rendering for the last one.
func applyFocus(s *viewsched.Scheduler, names []string, focus int) {
	for i, name := range names {
		state := adaptive.ViewportState{RenderingEnabled: true}
		switch {
		case i == focus:
			state = adaptive.ViewportState{Visible: true, Active: true, Focused: true, RenderingEnabled: true}
		case i == (focus+1)%len(names):
			state.Visible = true
		case i == len(names)-1:
			state.RenderingEnabled = false
		}
		s.SetViewportState(name, state)
	}
}

// sourceTile builds a small checkerboard that every viewport scales.
func sourceTile() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			c := color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255}
			if (x/8+y/8)%2 == 0 {
				c = color.RGBA{R: 240, G: 240, B: 240, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func renderWork(src *image.RGBA, size, zoom int) task.Work {
	return task.WorkFunc(func(_ context.Context, t *task.Task) (task.Result, error) {
		key := cache.ContentKeyString(t.ViewportID, strconv.Itoa(zoom), strconv.Itoa(size))
		dst := image.NewRGBA(image.Rect(0, 0, size, size))
		// Zooming in crops the source before scaling it to the tile.
		edge := max(1, src.Bounds().Dx()/zoom)
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, image.Rect(0, 0, edge, edge), draw.Src, nil)
		return task.Result{Key: key, Data: dst, Size: int64(len(dst.Pix))}, nil
	})
}

func summarize(p *message.Printer, s *viewsched.Scheduler) {
	c := s.Counters()
	cs := s.CacheStats()
	p.Printf("completed=%d retried=%d failed=%d overruns=%d degraded samples=%d\n",
		c.Completed, c.Retried, c.Failed, c.Overruns, c.Degraded)
	p.Printf("cache hits=%d misses=%d evictions=%d\n", cs.Hits, cs.Misses, cs.Evictions)
	if sample, ok := s.PerformanceMetrics(); ok {
		fmt.Printf("last sample: frame=%.2fms cpu=%.0f%% memory=%.0f%%\n",
			sample.AvgFrameTimeMs, sample.CPUUsage*100, sample.MemoryPressure*100)
	}
}

func writeHistory(s *viewsched.Scheduler, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.History().WriteJSON(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
