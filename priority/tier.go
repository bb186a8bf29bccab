// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package priority defines the urgency tiers shared by the scheduler queue,
// the resource allocation table and the artifact cache.
//
// Tiers are totally ordered. A lower numeric value is more urgent:
//
//	Critical < High < Medium < Low < Suspended < Background
//
// Suspended sorts before Background but never runs: the allocation table pins
// its concurrency ceiling to zero.
package priority

import (
	"errors"
	"fmt"
	"strings"
)

// Tier is an ordered urgency level.
type Tier uint8

// Tier values, most urgent first.
const (
	Critical Tier = iota
	High
	Medium
	Low
	Suspended
	Background
)

// Count is the number of defined tiers.
const Count = int(Background) + 1

// ErrUnknownTier is returned by Parse for unrecognized names.
var ErrUnknownTier = errors.New("priority: unknown tier")

var tierNames = [Count]string{
	Critical:   "critical",
	High:       "high",
	Medium:     "medium",
	Low:        "low",
	Suspended:  "suspended",
	Background: "background",
}

// All returns every tier in ascending numeric order.
func All() []Tier {
	return []Tier{Critical, High, Medium, Low, Suspended, Background}
}

// String returns the lowercase tier name.
func (t Tier) String() string {
	if t.Valid() {
		return tierNames[t]
	}
	return fmt.Sprintf("tier(%d)", uint8(t))
}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	return int(t) < Count
}

// Demote returns the next less urgent tier, capped at Background.
func (t Tier) Demote() Tier {
	if t >= Background {
		return Background
	}
	return t + 1
}

// MoreUrgent reports whether t sorts before other.
func (t Tier) MoreUrgent(other Tier) bool {
	return t < other
}

// Parse converts a tier name (case-insensitive) into a Tier.
func Parse(s string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTier, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
