// ABOUTME: Thread-safe, size-bounded seen-set for walk paths.
// ABOUTME: Evicts the oldest key in O(1) once the bound is reached.

package dedupe

import (
	"container/list"
	"sync"
)

// Set remembers keys it has seen, up to maxSize of them. Once full, marking a
// new key forgets the oldest one.
type Set struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // List of keys in insertion order (oldest at front)
	maxSize int
}

// New creates a Set holding at most maxSize keys. A maxSize of zero or less
// means no bound.
func New(maxSize int) *Set {
	return &Set{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Check returns true if the key has been seen.
func (s *Set) Check(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.seen[key]
	return ok
}

// CheckAndMark atomically checks if a key has been seen and marks it if not.
// Returns true if the key was already seen (duplicate), false if it's new and now marked.
func (s *Set) CheckAndMark(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return true
	}
	s.markLocked(key)
	return false
}

// Mark records that a key has been seen.
func (s *Set) Mark(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return
	}
	s.markLocked(key)
}

// Len returns the number of remembered keys.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// markLocked adds a new key. Must be called with mu held.
func (s *Set) markLocked(key string) {
	if s.maxSize > 0 && len(s.seen) >= s.maxSize {
		s.evictOldest()
	}
	s.seen[key] = s.order.PushBack(key)
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (s *Set) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	s.order.Remove(front)
	delete(s.seen, key)
}
