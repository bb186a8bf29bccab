// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package metrics

import (
	"io"
	"sync"

	"github.com/sugawarayuuta/sonnet"
)

// DefaultHistorySize keeps one minute of samples at the default 1 Hz cadence.
const DefaultHistorySize = 60

// History is a fixed-capacity ring of samples. When full, Push overwrites the
// oldest sample.
//
// History is safe for concurrent use.
type History struct {
	mu    sync.RWMutex
	buf   []Sample
	start int
	n     int
}

// NewHistory creates a history holding up to size samples.
// If size <= 0, DefaultHistorySize is used.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]Sample, size)}
}

// Push appends a sample, evicting the oldest when full.
func (h *History) Push(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Latest returns the most recent sample.
func (h *History) Latest() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.n == 0 {
		return Sample{}, false
	}
	return h.buf[(h.start+h.n-1)%len(h.buf)], true
}

// Samples returns the retained samples, oldest first.
func (h *History) Samples() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Sample, h.n)
	for i := range h.n {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Len returns the number of retained samples.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.n
}

// Cap returns the history capacity.
func (h *History) Cap() int {
	return len(h.buf)
}

// Reset drops all samples.
func (h *History) Reset() {
	h.mu.Lock()
	h.start, h.n = 0, 0
	h.mu.Unlock()
}

// WriteJSON writes the retained samples, oldest first, as a JSON array.
func (h *History) WriteJSON(w io.Writer) error {
	data, err := sonnet.Marshal(h.Samples())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
