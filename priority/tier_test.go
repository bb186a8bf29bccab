// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package priority

import (
	"errors"
	"testing"
)

func TestTierOrdering(t *testing.T) {
	all := All()
	if len(all) != Count {
		t.Fatalf("All() returned %d tiers, want %d", len(all), Count)
	}
	for i := 1; i < len(all); i++ {
		if !all[i-1].MoreUrgent(all[i]) {
			t.Errorf("%v should be more urgent than %v", all[i-1], all[i])
		}
	}
}

func TestTierDemote(t *testing.T) {
	tests := []struct {
		in   Tier
		want Tier
	}{
		{Critical, High},
		{High, Medium},
		{Medium, Low},
		{Low, Suspended},
		{Suspended, Background},
		{Background, Background},
	}
	for _, tt := range tests {
		if got := tt.in.Demote(); got != tt.want {
			t.Errorf("%v.Demote() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	for _, tier := range All() {
		got, err := Parse(tier.String())
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tier.String(), err)
		}
		if got != tier {
			t.Errorf("Parse(%q) = %v, want %v", tier.String(), got, tier)
		}
	}

	if got, err := Parse("  HIGH "); err != nil || got != High {
		t.Errorf("Parse(\"  HIGH \") = %v, %v; want high, nil", got, err)
	}

	if _, err := Parse("urgent"); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("Parse(\"urgent\") error = %v, want ErrUnknownTier", err)
	}
}

func TestTierString_Invalid(t *testing.T) {
	if got := Tier(42).String(); got != "tier(42)" {
		t.Errorf("String() = %q, want %q", got, "tier(42)")
	}
	if Tier(42).Valid() {
		t.Error("Tier(42).Valid() = true, want false")
	}
}

func TestTierText(t *testing.T) {
	var tier Tier
	if err := tier.UnmarshalText([]byte("low")); err != nil {
		t.Fatalf("UnmarshalText error: %v", err)
	}
	if tier != Low {
		t.Errorf("UnmarshalText(low) = %v", tier)
	}
	b, err := Suspended.MarshalText()
	if err != nil || string(b) != "suspended" {
		t.Errorf("MarshalText() = %q, %v", b, err)
	}
	if _, err := Tier(9).MarshalText(); err == nil {
		t.Error("MarshalText on invalid tier should fail")
	}
}
