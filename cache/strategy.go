// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cache

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gogpu/viewsched/priority"
)

// ErrUnknownStrategy is returned by ParseStrategy for unrecognized names.
var ErrUnknownStrategy = errors.New("cache: unknown eviction strategy")

// Strategy selects how the cache picks an eviction victim.
// It is fixed when the cache is created.
type Strategy uint8

// Eviction strategies.
const (
	// Hybrid blends tier, decayed frequency and recency. It is the default.
	Hybrid Strategy = iota
	// LRU evicts the least recently accessed entry.
	LRU
	// LFU evicts the entry with the lowest decayed frequency score.
	LFU
	// Priority evicts the least urgent tier first, oldest first within a tier.
	Priority
)

var strategyNames = [...]string{
	Hybrid:   "hybrid",
	LRU:      "lru",
	LFU:      "lfu",
	Priority: "priority",
}

// String returns the strategy name.
func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

// ParseStrategy converts a name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// evictor picks the entry to sacrifice next.
type evictor interface {
	victim(c *Cache, now time.Time) (string, bool)
}

func newEvictor(s Strategy) evictor {
	switch s {
	case LRU:
		return lruEvictor{}
	case LFU:
		return scoreEvictor{score: lfuScore}
	case Priority:
		return scoreEvictor{score: priorityScore}
	default:
		return scoreEvictor{score: hybridScore}
	}
}

// lruEvictor takes the tail of the recency list.
type lruEvictor struct{}

func (lruEvictor) victim(c *Cache, _ time.Time) (string, bool) {
	return c.recency.Oldest()
}

// scoreEvictor scans every entry and evicts the lowest value.
// Ties go to the less recently used entry.
type scoreEvictor struct {
	score func(c *Cache, e *entry, now time.Time) float64
}

func (s scoreEvictor) victim(c *Cache, now time.Time) (string, bool) {
	var (
		best      *entry
		bestScore = math.Inf(1)
	)
	for _, e := range c.entries {
		v := s.score(c, e, now)
		if best == nil || v < bestScore || (v == bestScore && e.lastAccess.Before(best.lastAccess)) {
			best, bestScore = e, v
		}
	}
	if best == nil {
		return "", false
	}
	return best.key, true
}

// urgency maps a tier to a retention weight: Critical keeps the most,
// Background the least.
func urgency(t priority.Tier) float64 {
	if !t.Valid() {
		return 0
	}
	return float64(priority.Background - t)
}

func minutesSince(e *entry, now time.Time) float64 {
	return now.Sub(e.lastAccess).Minutes()
}

func lfuScore(c *Cache, e *entry, now time.Time) float64 {
	return c.frequency(e, now)
}

func priorityScore(_ *Cache, e *entry, now time.Time) float64 {
	const tierWeight = 1e6
	return urgency(e.priority)*tierWeight - minutesSince(e, now)
}

func hybridScore(c *Cache, e *entry, now time.Time) float64 {
	return urgency(e.priority)*100 + c.frequency(e, now)/10 - minutesSince(e, now)
}
