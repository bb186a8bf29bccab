// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/jonboulle/clockwork"

	"github.com/gogpu/viewsched/priority"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestCache(capacity int64, s Strategy) (*Cache, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(t0)
	return New(capacity, s, WithClock(clock)), clock
}

func checkInvariant(t *testing.T, c *Cache) {
	t.Helper()
	st := c.Stats()
	if st.TotalSize > st.MaxSize && st.EntryCount > 1 {
		t.Fatalf("capacity exceeded: total=%d max=%d entries=%d", st.TotalSize, st.MaxSize, st.EntryCount)
	}
}

func TestNew(t *testing.T) {
	c := New(0, Hybrid)
	if c.Capacity() != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", c.Capacity(), DefaultCapacity)
	}
	if c.Strategy() != Hybrid {
		t.Errorf("Strategy() = %v, want hybrid", c.Strategy())
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(100, Hybrid)
	data := []byte{1, 2, 3}

	c.Set("k", data, 10, priority.Medium)
	if got := c.Stats().EntryCount; got != 1 {
		t.Fatalf("EntryCount after new key = %d, want 1", got)
	}

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected k to exist")
	}
	if b, _ := got.([]byte); len(b) != 3 || b[0] != 1 || b[2] != 3 {
		t.Errorf("Get() = %v, want %v", got, data)
	}

	c.Set("k", []byte{9}, 20, priority.High)
	st := c.Stats()
	if st.EntryCount != 1 {
		t.Errorf("EntryCount after overwrite = %d, want 1", st.EntryCount)
	}
	if st.TotalSize != 20 {
		t.Errorf("TotalSize after overwrite = %d, want 20 (replace, not add)", st.TotalSize)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected missing key to be absent")
	}
	st = c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("Hits/Misses = %d/%d, want 1/1", st.Hits, st.Misses)
	}
}

func TestCacheCapacityInvariant(t *testing.T) {
	for _, s := range []Strategy{Hybrid, LRU, LFU, Priority} {
		t.Run(s.String(), func(t *testing.T) {
			c, clock := newTestCache(1000, s)
			tiers := priority.All()
			for i := range 200 {
				size := int64(37 + (i*53)%300)
				c.Set("k"+strconv.Itoa(i%40), i, size, tiers[i%len(tiers)])
				checkInvariant(t, c)
				if i%3 == 0 {
					c.Get("k" + strconv.Itoa((i*7)%40))
				}
				clock.Advance(time.Second)
			}
		})
	}
}

func TestCacheMinimalEviction(t *testing.T) {
	c, clock := newTestCache(100, LRU)
	for i := range 4 {
		c.Set(strconv.Itoa(i), i, 25, priority.Medium)
		clock.Advance(time.Minute)
	}

	// Needs 10 more bytes: exactly one 25-byte entry must go.
	c.Set("new", "x", 10, priority.Medium)
	st := c.Stats()
	if st.EntryCount != 4 || st.Evictions != 1 {
		t.Errorf("EntryCount=%d Evictions=%d, want 4 and 1", st.EntryCount, st.Evictions)
	}
	if c.Contains("0") {
		t.Error("oldest entry should have been evicted")
	}
}

func TestCacheOversizedEntry(t *testing.T) {
	c, _ := newTestCache(100, Hybrid)
	c.Set("a", 1, 40, priority.Critical)
	c.Set("b", 2, 40, priority.Critical)

	c.Set("huge", 3, 500, priority.Low)
	st := c.Stats()
	if st.EntryCount != 1 || !c.Contains("huge") {
		t.Fatalf("oversized entry should evict everything and be kept: %+v", st)
	}
	if st.TotalSize != 500 {
		t.Errorf("TotalSize = %d, want 500", st.TotalSize)
	}

	// The next insertion pushes the oversized entry out.
	c.Set("c", 4, 10, priority.Low)
	if c.Contains("huge") || c.Size() != 10 {
		t.Errorf("oversized entry should be evicted on next Set, size=%d", c.Size())
	}
}

func TestCacheLRUPreference(t *testing.T) {
	c, clock := newTestCache(100, LRU)

	c.Set("A", "a", 50, priority.Critical)
	clock.Advance(9 * time.Minute)
	c.Set("B", "b", 50, priority.Background)
	clock.Advance(time.Minute)
	// A was accessed 10 minutes ago, B 1 minute ago.

	c.Set("C", "c", 50, priority.Medium)
	if c.Contains("A") {
		t.Error("LRU should evict A (least recently accessed)")
	}
	if !c.Contains("B") || !c.Contains("C") {
		t.Error("B and C should remain")
	}
}

func TestCacheGetRefreshesRecency(t *testing.T) {
	c, clock := newTestCache(100, LRU)
	c.Set("A", "a", 50, priority.Medium)
	clock.Advance(time.Minute)
	c.Set("B", "b", 50, priority.Medium)
	clock.Advance(time.Minute)

	c.Get("A")
	c.Set("C", "c", 50, priority.Medium)
	if !c.Contains("A") || c.Contains("B") {
		t.Error("Get should protect A; B should be evicted")
	}
}

func TestCacheLFUPreference(t *testing.T) {
	c, clock := newTestCache(100, LFU)
	c.Set("hot", 1, 50, priority.Low)
	c.Set("cold", 2, 50, priority.Low)
	for range 5 {
		clock.Advance(time.Second)
		c.Get("hot")
	}

	c.Set("new", 3, 50, priority.Low)
	if c.Contains("cold") || !c.Contains("hot") {
		t.Error("LFU should evict the rarely used entry")
	}
}

func TestCachePriorityPreference(t *testing.T) {
	c, clock := newTestCache(100, Priority)
	c.Set("bg", 1, 50, priority.Background)
	clock.Advance(time.Second)
	c.Set("crit", 2, 50, priority.Critical)
	// Touch bg so it is the most recent: tier must still dominate.
	clock.Advance(time.Second)
	c.Get("bg")

	c.Set("new", 3, 50, priority.Medium)
	if c.Contains("bg") || !c.Contains("crit") {
		t.Error("priority strategy should evict the least urgent tier")
	}
}

func TestCacheHybridKeepsUrgentTiers(t *testing.T) {
	c, clock := newTestCache(100, Hybrid)
	c.Set("crit", 1, 50, priority.Critical)
	c.Set("low", 2, 50, priority.Low)
	clock.Advance(time.Minute)

	c.Set("new", 3, 50, priority.High)
	if !c.Contains("crit") || c.Contains("low") {
		t.Error("hybrid should evict the low tier entry before the critical one")
	}
}

func TestCacheFrequencyDecay(t *testing.T) {
	c, clock := newTestCache(100, LFU)
	c.Set("k", 1, 10, priority.Medium)

	c.mu.Lock()
	e := c.entries["k"]
	if e.score != 1 {
		t.Errorf("initial score = %v, want 1", e.score)
	}
	c.mu.Unlock()

	clock.Advance(DefaultHalfLife)
	c.Get("k")

	c.mu.Lock()
	defer c.mu.Unlock()
	if got := e.score; got < 1.49 || got > 1.51 {
		t.Errorf("score after one half-life and access = %v, want 1.5", got)
	}
	if e.accessCount != 2 {
		t.Errorf("accessCount = %d, want 2", e.accessCount)
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	var evicted []string
	c := New(100, Hybrid, WithOnEvict(func(key string, _ any) {
		evicted = append(evicted, key)
	}))

	c.Set("a", 1, 10, priority.Low)
	c.Set("b", 2, 10, priority.Low)

	if !c.Delete("a") {
		t.Error("Delete(a) should report true")
	}
	if c.Delete("a") {
		t.Error("Delete(a) twice should report false")
	}
	c.Clear()
	if c.Len() != 0 || c.Size() != 0 {
		t.Errorf("Clear left %d entries, %d bytes", c.Len(), c.Size())
	}
	if len(evicted) != 2 {
		t.Errorf("OnEvict called %d times, want 2", len(evicted))
	}
}

type fakeTexture struct{ destroyed bool }

func (f *fakeTexture) Destroy() { f.destroyed = true }

func TestCacheDestroysEvictedTextures(t *testing.T) {
	c, _ := newTestCache(100, LRU)
	tex := &fakeTexture{}
	c.Set("tex", tex, 80, priority.Low)
	c.Set("other", 1, 80, priority.Low)

	if !tex.destroyed {
		t.Error("evicted texture should be destroyed")
	}
}

func TestCacheStatsUtilization(t *testing.T) {
	c, _ := newTestCache(200, Hybrid)
	c.Set("a", 1, 50, priority.Low)
	st := c.Stats()
	if st.UtilizationPercent != 25 {
		t.Errorf("UtilizationPercent = %v, want 25", st.UtilizationPercent)
	}
	if c.Pressure() != 0.25 {
		t.Errorf("Pressure() = %v, want 0.25", c.Pressure())
	}
	c.Get("a")
	c.ResetStats()
	if st := c.Stats(); st.Hits != 0 {
		t.Errorf("Hits after ResetStats = %d", st.Hits)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(10_000, Hybrid)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				key := strconv.Itoa((g*31 + i) % 100)
				if i%2 == 0 {
					c.Set(key, i, int64(i%200), priority.Tier(i%priority.Count))
				} else {
					c.Get(key)
				}
			}
		}()
	}
	wg.Wait()
	checkInvariant(t, c)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{Hybrid, LRU, LFU, Priority} {
		got, err := ParseStrategy(s.String())
		if err != nil || got != s {
			t.Errorf("ParseStrategy(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseStrategy("random"); err == nil {
		t.Error("ParseStrategy(random) should fail")
	}
}

func TestContentKey(t *testing.T) {
	a := ContentKeyString("ab", "c")
	b := ContentKeyString("a", "bc")
	if a == b {
		t.Error("length prefixing should separate part boundaries")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
	if ContentKeyString("ab", "c") != a {
		t.Error("ContentKey should be deterministic")
	}
}

func TestTextureSize(t *testing.T) {
	tests := []struct {
		name   string
		format gputypes.TextureFormat
		extent gputypes.Extent3D
		want   int64
	}{
		{"rgba", gputypes.TextureFormatRGBA8Unorm, gputypes.Extent3D{Width: 256, Height: 128, DepthOrArrayLayers: 1}, 256 * 128 * 4},
		{"bgra zero depth", gputypes.TextureFormatBGRA8Unorm, gputypes.Extent3D{Width: 10, Height: 10}, 400},
		{"r8 layers", gputypes.TextureFormatR8Unorm, gputypes.Extent3D{Width: 16, Height: 16, DepthOrArrayLayers: 3}, 768},
		{"half float", gputypes.TextureFormatRGBA16Float, gputypes.Extent3D{Width: 8, Height: 8}, 512},
		{"full float", gputypes.TextureFormatRGBA32Float, gputypes.Extent3D{Width: 8, Height: 8}, 1024},
		{"depth stencil", gputypes.TextureFormatDepth24PlusStencil8, gputypes.Extent3D{Width: 2, Height: 2}, 16},
		{"empty", gputypes.TextureFormatRGBA8Unorm, gputypes.Extent3D{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TextureSize(tt.format, tt.extent); got != tt.want {
				t.Errorf("TextureSize() = %d, want %d", got, tt.want)
			}
		})
	}
}

func BenchmarkCacheSetGet(b *testing.B) {
	c := New(1<<20, Hybrid)
	keys := make([]string, 512)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}
	b.ReportAllocs()
	i := 0
	for b.Loop() {
		k := keys[i%len(keys)]
		c.Set(k, i, 4096, priority.Medium)
		c.Get(k)
		i++
	}
}
