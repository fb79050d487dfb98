// Package undo provides the bounded snapshot history backing the
// single-step-back recovery feature. Stacks live in the serving
// process only; they are never persisted and never synchronized across
// devices, so an undo that races a newer write from another device is
// caught by the storage version check like any other stale write.
package undo

import "sync"

// DefaultCapacity bounds how many snapshots a session retains.
const DefaultCapacity = 3

// Stack is a fixed-capacity snapshot stack with oldest-first eviction.
// The top entry mirrors the current authoritative state, so a true
// "previous" state only exists at depth two or more.
type Stack[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
}

func NewStack[T any](capacity int) *Stack[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stack[T]{capacity: capacity}
}

// Push appends a snapshot, evicting the oldest entry once capacity is
// exceeded.
func (s *Stack[T]) Push(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, v)
	if len(s.items) > s.capacity {
		copy(s.items, s.items[1:])
		s.items = s.items[:s.capacity]
	}
}

// Pop removes and returns the top snapshot.
func (s *Stack[T]) Pop() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	top := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return top, true
}

// Peek returns the top snapshot without removing it.
func (s *Stack[T]) Peek() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

// Depth returns the number of retained snapshots.
func (s *Stack[T]) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// CanUndo reports whether a previous state exists beneath the current
// one.
func (s *Stack[T]) CanUndo() bool {
	return s.Depth() > 1
}
