// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKindBaseline(t *testing.T) {
	tests := []struct {
		kind Kind
		want time.Duration
		name string
	}{
		{KindInitial, 100 * time.Millisecond, "initial"},
		{KindUpdate, 16 * time.Millisecond, "update"},
		{KindResize, 50 * time.Millisecond, "resize"},
		{KindQualityChange, 200 * time.Millisecond, "quality-change"},
		{KindToolChange, 10 * time.Millisecond, "tool-change"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.Baseline(); got != tt.want {
				t.Errorf("Baseline() = %v, want %v", got, tt.want)
			}
			if got := tt.kind.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
		})
	}

	if got := Kind(99).Baseline(); got != KindUpdate.Baseline() {
		t.Errorf("unknown kind baseline = %v, want update baseline", got)
	}
}

func TestNew(t *testing.T) {
	a := New("v1", KindResize, nil)
	b := New("v1", KindResize, nil)

	if a.ID == "" || b.ID == "" {
		t.Fatal("New should assign an ID")
	}
	if a.ID == b.ID {
		t.Errorf("IDs should be unique, both %q", a.ID)
	}
	if a.ViewportID != "v1" {
		t.Errorf("ViewportID = %q, want v1", a.ViewportID)
	}
	if a.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", a.MaxRetries, DefaultMaxRetries)
	}
	if a.EstimatedDuration() != 50*time.Millisecond {
		t.Errorf("EstimatedDuration() = %v", a.EstimatedDuration())
	}
}

func TestWorkFunc(t *testing.T) {
	errBoom := errors.New("boom")
	w := WorkFunc(func(ctx context.Context, tk *Task) (Result, error) {
		if tk.Params != "fail" {
			return Result{Key: "k", Size: 4}, nil
		}
		return Result{}, errBoom
	})

	res, err := w.Render(context.Background(), &Task{})
	if err != nil || !res.Cacheable() {
		t.Errorf("Render() = %+v, %v", res, err)
	}
	if _, err := w.Render(context.Background(), &Task{Params: "fail"}); !errors.Is(err, errBoom) {
		t.Errorf("Render() error = %v, want errBoom", err)
	}
}

func TestBudgetContext(t *testing.T) {
	if _, ok := BudgetFromContext(context.Background()); ok {
		t.Error("empty context should carry no budget")
	}
	ctx := WithBudget(context.Background(), 16*time.Millisecond)
	d, ok := BudgetFromContext(ctx)
	if !ok || d != 16*time.Millisecond {
		t.Errorf("BudgetFromContext() = %v, %v", d, ok)
	}
}
