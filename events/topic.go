// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package events provides typed publish/subscribe topics.
//
// Each notification category is its own Topic[T], so subscribers register for
// exactly one payload shape and the compiler checks it. Handlers run
// synchronously on the publishing goroutine, in subscription order; channel
// subscribers receive with a non-blocking send and drop the event when full.
package events

import (
	"sync"
	"sync/atomic"
)

// Topic fans out values of type T to its subscribers.
//
// The zero value is ready to use. Topic is safe for concurrent use.
type Topic[T any] struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers []subscriber[T]
	published   atomic.Uint64
	dropped     atomic.Uint64
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
	ch chan<- T
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is safe to call more than once.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	return t.add(subscriber[T]{fn: fn})
}

// SubscribeChan registers a channel. Publish never blocks on it: when the
// channel is full the event is dropped and counted.
func (t *Topic[T]) SubscribeChan(ch chan<- T) (unsubscribe func()) {
	if ch == nil {
		return func() {}
	}
	return t.add(subscriber[T]{ch: ch})
}

func (t *Topic[T]) add(s subscriber[T]) func() {
	t.mu.Lock()
	t.nextID++
	s.id = t.nextID
	t.subscribers = append(t.subscribers, s)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(s.id) })
	}
}

func (t *Topic[T]) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, s := range t.subscribers {
		if s.id == id {
			// Copy so in-flight Publish calls keep iterating a stable slice.
			next := make([]subscriber[T], 0, len(t.subscribers)-1)
			next = append(next, t.subscribers[:i]...)
			next = append(next, t.subscribers[i+1:]...)
			t.subscribers = next
			return
		}
	}
}

// Publish delivers v to every subscriber.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	subs := t.subscribers
	t.mu.RUnlock()

	t.published.Add(1)
	for _, s := range subs {
		if s.fn != nil {
			s.fn(v)
			continue
		}
		select {
		case s.ch <- v:
		default:
			t.dropped.Add(1)
		}
	}
}

// Len returns the number of subscribers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subscribers)
}

// Stats returns the number of published events and of channel deliveries
// dropped because a subscriber was full.
func (t *Topic[T]) Stats() (published, dropped uint64) {
	return t.published.Load(), t.dropped.Load()
}
