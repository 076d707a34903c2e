// Package store provides the associative container backing the tracking
// registry: a small generic map wrapper exposing insert-or-update, point
// lookup, delete, and whole-table snapshot. It performs no locking of its
// own; the registry serializes all access under its global lock.
package store

import "errors"

// ErrInvalidCapacity is returned by New when the initial capacity is not
// positive.
var ErrInvalidCapacity = errors.New("store capacity must be positive")

// Store maps comparable keys to values. The zero value is not usable;
// create instances with New.
type Store[K comparable, V any] struct {
	m map[K]V
}

// New creates a Store with the given initial capacity.
func New[K comparable, V any](capacity int) (*Store[K, V], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &Store[K, V]{m: make(map[K]V, capacity)}, nil
}

// Set inserts or overwrites the value for key. It reports whether the
// store accepted the write.
func (s *Store[K, V]) Set(key K, value V) bool {
	if s.m == nil {
		return false
	}
	s.m[key] = value
	return true
}

// Get returns the value for key and whether it was present.
func (s *Store[K, V]) Get(key K) (V, bool) {
	v, ok := s.m[key]
	return v, ok
}

// Delete removes the entry for key and reports whether it was present.
func (s *Store[K, V]) Delete(key K) bool {
	if s.m == nil {
		return false
	}
	_, ok := s.m[key]
	delete(s.m, key)
	return ok
}

// Len returns the number of entries currently stored.
func (s *Store[K, V]) Len() int { return len(s.m) }

// Snapshot returns all current values as a freshly allocated slice.
// Iteration order is unspecified. The slice is independent of later
// mutations of the store.
func (s *Store[K, V]) Snapshot() []V {
	out := make([]V, 0, len(s.m))
	for _, v := range s.m {
		out = append(out, v)
	}
	return out
}

// Keys returns all current keys as a freshly allocated slice.
func (s *Store[K, V]) Keys() []K {
	out := make([]K, 0, len(s.m))
	for k := range s.m {
		out = append(out, k)
	}
	return out
}

// Destroy releases the backing table. Further operations fail or return
// empty results; the store cannot be revived.
func (s *Store[K, V]) Destroy() {
	s.m = nil
}
