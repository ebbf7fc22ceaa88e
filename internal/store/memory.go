// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package store

import (
	"context"
	"sync"
	"time"
)

// MemoryEntryStore is an in-memory EntryStore for tests and single-process
// deployments without durability requirements.
type MemoryEntryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryEntryStore creates an empty in-memory entry store.
func NewMemoryEntryStore() *MemoryEntryStore {
	return &MemoryEntryStore{entries: make(map[string]*Entry)}
}

// Get fetches a record by canonical path.
func (s *MemoryEntryStore) Get(ctx context.Context, path string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[NormalizePath(path)]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

// Put persists the given records.
func (s *MemoryEntryStore) Put(ctx context.Context, entries ...*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, e := range entries {
		cp := *e
		cp.Path = NormalizePath(cp.Path)
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		s.entries[cp.Path] = &cp
	}
	return nil
}

// Delete removes the record at path.
func (s *MemoryEntryStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, NormalizePath(path))
	return nil
}

// AncestorChain returns stored entries from path up to root, nearest first.
func (s *MemoryEntryStore) AncestorChain(ctx context.Context, path string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chain []*Entry
	for _, p := range AncestorPaths(path) {
		if e, ok := s.entries[p]; ok {
			cp := *e
			chain = append(chain, &cp)
		}
	}
	return chain, nil
}

type memoryCounter struct {
	value     int64
	expiresAt time.Time // zero means no expiry
}

func (c *memoryCounter) expired(now time.Time) bool {
	return !c.expiresAt.IsZero() && now.After(c.expiresAt)
}

// MemoryCounterStore is an in-memory CounterStore for tests and
// single-process deployments.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]*memoryCounter)}
}

// Get returns the current value for key, or 0 when absent or expired.
func (s *MemoryCounterStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || c.expired(time.Now()) {
		return 0, nil
	}
	return c.value, nil
}

// Increment atomically increments the counter and resets its expiry.
func (s *MemoryCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, ok := s.counters[key]
	if !ok || c.expired(now) {
		c = &memoryCounter{}
		s.counters[key] = c
	}
	c.value++
	if ttl > 0 {
		c.expiresAt = now.Add(ttl)
	} else {
		c.expiresAt = time.Time{}
	}
	return c.value, nil
}

// SetExpiry resets the counter's expiry.
func (s *MemoryCounterStore) SetExpiry(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.counters[key]; ok && !c.expired(time.Now()) {
		if ttl > 0 {
			c.expiresAt = time.Now().Add(ttl)
		} else {
			c.expiresAt = time.Time{}
		}
	}
	return nil
}

// Delete removes the counter.
func (s *MemoryCounterStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counters, key)
	return nil
}
