// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package events

import (
	"sync"
	"testing"
)

func TestTopic_SubscribePublish(t *testing.T) {
	var topic Topic[int]
	var got []int

	unsub := topic.Subscribe(func(v int) { got = append(got, v) })
	topic.Publish(1)
	topic.Publish(2)

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("got %v, want [1 2]", got)
	}

	unsub()
	unsub()
	topic.Publish(3)
	if len(got) != 2 {
		t.Errorf("unsubscribed handler still called: %v", got)
	}
	if topic.Len() != 0 {
		t.Errorf("Len() = %d, want 0", topic.Len())
	}
	if published, _ := topic.Stats(); published != 3 {
		t.Errorf("published = %d, want 3", published)
	}
}

func TestTopic_Order(t *testing.T) {
	var topic Topic[string]
	var order []int
	for i := range 3 {
		topic.Subscribe(func(string) { order = append(order, i) })
	}
	topic.Publish("x")
	for i, v := range order {
		if v != i {
			t.Fatalf("handlers ran in order %v", order)
		}
	}
}

func TestTopic_ChanDropsWhenFull(t *testing.T) {
	var topic Topic[int]
	ch := make(chan int, 1)
	topic.SubscribeChan(ch)

	topic.Publish(1)
	topic.Publish(2)

	if v := <-ch; v != 1 {
		t.Errorf("received %d, want 1", v)
	}
	if _, dropped := topic.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestTopic_NilSubscribers(t *testing.T) {
	var topic Topic[int]
	topic.Subscribe(nil)()
	topic.SubscribeChan(nil)()
	if topic.Len() != 0 {
		t.Errorf("nil subscribers registered: Len() = %d", topic.Len())
	}
	topic.Publish(1)
}

func TestTopic_UnsubscribeDuringPublish(t *testing.T) {
	var topic Topic[int]
	calls := 0
	var unsub func()
	unsub = topic.Subscribe(func(int) {
		calls++
		unsub()
	})
	topic.Subscribe(func(int) { calls++ })

	topic.Publish(1)
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	topic.Publish(2)
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestTopic_Concurrent(t *testing.T) {
	var topic Topic[int]
	var mu sync.Mutex
	sum := 0
	topic.Subscribe(func(v int) {
		mu.Lock()
		sum += v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				topic.Publish(1)
				unsub := topic.Subscribe(func(int) {})
				unsub()
			}
		}()
	}
	wg.Wait()

	if sum != 1000 {
		t.Errorf("sum = %d, want 1000", sum)
	}
}
