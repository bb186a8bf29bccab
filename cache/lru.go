// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package cache

// lruNode is a node in the recency list.
// It stores the key for O(1) removal from the parent map.
type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

// lruList is a doubly-linked recency list. The head is the most recently
// used entry, the tail the least recently used.
// Not thread-safe; the Cache mutex guards it.
type lruList struct {
	head *lruNode
	tail *lruNode
	len  int
}

// Len returns the number of nodes in the list.
func (l *lruList) Len() int {
	return l.len
}

// PushFront adds a key as the most recently used.
func (l *lruList) PushFront(key string) *lruNode {
	node := &lruNode{key: key}
	l.linkFront(node)
	return node
}

// MoveToFront marks an existing node as the most recently used.
func (l *lruList) MoveToFront(node *lruNode) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)
	l.linkFront(node)
}

// Remove unlinks a node.
func (l *lruList) Remove(node *lruNode) {
	if node == nil {
		return
	}
	l.unlink(node)
}

// Oldest returns the least recently used key without removing it.
func (l *lruList) Oldest() (string, bool) {
	if l.tail == nil {
		return "", false
	}
	return l.tail.key, true
}

// Clear drops all nodes.
func (l *lruList) Clear() {
	l.head = nil
	l.tail = nil
	l.len = 0
}

func (l *lruList) linkFront(node *lruNode) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
}

func (l *lruList) unlink(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.len--
}
