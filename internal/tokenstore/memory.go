package tokenstore

import (
	"context"
	"sync"
	"time"

	"dfp-neo/backend/internal/autherr"
)

type memEntry[T Record] struct {
	val       T
	expiresAt time.Time
}

// MemoryStore is an in-process Store guarded by a single RWMutex. Records are held
// by value, so callers never share mutable state with the store.
type MemoryStore[T Record] struct {
	mu   sync.RWMutex
	m    map[string]memEntry[T]
	nowF func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore[T Record]() *MemoryStore[T] {
	return &MemoryStore[T]{
		m:    make(map[string]memEntry[T]),
		nowF: time.Now,
	}
}

// WithClock replaces the store's clock. Tests only.
func (s *MemoryStore[T]) WithClock(now func() time.Time) *MemoryStore[T] {
	s.nowF = now
	return s
}

// Put stores rec under key until now+ttl.
func (s *MemoryStore[T]) Put(ctx context.Context, key string, rec T, ttl time.Duration) (time.Time, error) {
	if err := checkPut(key, rec, ttl); err != nil {
		return time.Time{}, err
	}
	expiresAt := s.nowF().UTC().Add(ttl)
	s.mu.Lock()
	s.m[key] = memEntry[T]{val: rec, expiresAt: expiresAt}
	s.mu.Unlock()
	return expiresAt, nil
}

// Get returns the entry for key, evicting it when expired.
func (s *MemoryStore[T]) Get(ctx context.Context, key string) (Entry[T], error) {
	if err := checkKey(key); err != nil {
		return Entry[T]{}, err
	}
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return Entry[T]{}, autherr.ErrNotFound
	}
	if s.nowF().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check: a concurrent Put may have replaced the entry since the read lock was dropped.
		if cur, ok := s.m[key]; ok && s.nowF().After(cur.expiresAt) {
			delete(s.m, key)
		}
		s.mu.Unlock()
		return Entry[T]{}, autherr.ErrExpired
	}
	return Entry[T]{Value: e.val, ExpiresAt: e.expiresAt}, nil
}

// Delete removes key.
func (s *MemoryStore[T]) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

// Update runs fn under the write lock. fn must not call back into the store.
func (s *MemoryStore[T]) Update(ctx context.Context, key string, fn UpdateFunc[T]) (Entry[T], error) {
	if err := checkKey(key); err != nil {
		return Entry[T]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return Entry[T]{}, autherr.ErrNotFound
	}
	if s.nowF().After(e.expiresAt) {
		delete(s.m, key)
		return Entry[T]{}, autherr.ErrExpired
	}
	next, err := fn(e.val)
	if err != nil {
		return Entry[T]{}, err
	}
	if err := checkRecord(next); err != nil {
		return Entry[T]{}, err
	}
	e.val = next
	s.m[key] = e
	return Entry[T]{Value: next, ExpiresAt: e.expiresAt}, nil
}

// DeleteMatching removes every entry for which match returns true.
func (s *MemoryStore[T]) DeleteMatching(ctx context.Context, match func(key string, rec T) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.m {
		if match(k, e.val) {
			delete(s.m, k)
			n++
		}
	}
	return n, nil
}

// Sweep removes expired entries.
func (s *MemoryStore[T]) Sweep(ctx context.Context) (int, error) {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.m {
		if now.After(e.expiresAt) {
			delete(s.m, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
