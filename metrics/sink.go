// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package metrics

import (
	"context"
	"io"
	"sync"

	"github.com/sugawarayuuta/sonnet"
)

// Sink receives every sample the scheduler takes, for recording outside the
// process.
type Sink interface {
	Record(ctx context.Context, s Sample) error
}

// JSONLinesSink writes one JSON object per sample.
type JSONLinesSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONLinesSink creates a sink writing to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{w: w}
}

// Record implements Sink.
func (j *JSONLinesSink) Record(_ context.Context, s Sample) error {
	data, err := sonnet.Marshal(s)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.w.Write(data)
	return err
}
