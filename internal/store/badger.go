// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefixes for BadgerDB storage.
const (
	entryKeyPrefix   = "entry:"
	counterKeyPrefix = "counter:"
)

// badgerMaxRetries bounds the optimistic-transaction retry loop on
// conflicting counter increments.
const badgerMaxRetries = 16

// BadgerEntryStore implements EntryStore using BadgerDB for durable storage.
// Suitable for production use with persistence across restarts.
type BadgerEntryStore struct {
	db *badger.DB
}

// NewBadgerEntryStore creates a new BadgerDB-backed entry store.
func NewBadgerEntryStore(db *badger.DB) *BadgerEntryStore {
	return &BadgerEntryStore{db: db}
}

// Get fetches a record by canonical path.
func (s *BadgerEntryStore) Get(ctx context.Context, path string) (*Entry, error) {
	var entry Entry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(entryKeyPrefix + NormalizePath(path)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put persists the given records in one transaction.
func (s *BadgerEntryStore) Put(ctx context.Context, entries ...*Entry) error {
	now := time.Now()
	return s.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			cp := *e
			cp.Path = NormalizePath(cp.Path)
			if cp.CreatedAt.IsZero() {
				cp.CreatedAt = now
			}
			cp.UpdatedAt = now

			data, err := json.Marshal(&cp)
			if err != nil {
				return fmt.Errorf("marshal entry %s: %w", cp.Path, err)
			}
			if err := txn.Set([]byte(entryKeyPrefix+cp.Path), data); err != nil {
				return fmt.Errorf("set entry %s: %w", cp.Path, err)
			}
		}
		return nil
	})
}

// Delete removes the record at path.
func (s *BadgerEntryStore) Delete(ctx context.Context, path string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(entryKeyPrefix + NormalizePath(path)))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// AncestorChain returns stored entries from path up to root, nearest first.
func (s *BadgerEntryStore) AncestorChain(ctx context.Context, path string) ([]*Entry, error) {
	var chain []*Entry

	err := s.db.View(func(txn *badger.Txn) error {
		for _, p := range AncestorPaths(path) {
			item, err := txn.Get([]byte(entryKeyPrefix + p))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get ancestor %s: %w", p, err)
			}

			var entry Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return fmt.Errorf("decode ancestor %s: %w", p, err)
			}
			chain = append(chain, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// BadgerCounterStore implements CounterStore using BadgerDB. Counter expiry
// is delegated to Badger's native key TTL, and increments run inside
// serializable transactions with bounded conflict retries, so concurrent
// failed-login bursts never lose an increment.
type BadgerCounterStore struct {
	db *badger.DB
}

// NewBadgerCounterStore creates a new BadgerDB-backed counter store.
func NewBadgerCounterStore(db *badger.DB) *BadgerCounterStore {
	return &BadgerCounterStore{db: db}
}

// counterValue decodes the stored counter value from a badger item.
func counterValue(item *badger.Item) (int64, error) {
	var value int64
	err := item.Value(func(val []byte) error {
		v, perr := strconv.ParseInt(string(val), 10, 64)
		if perr != nil {
			return fmt.Errorf("decode counter: %w", perr)
		}
		value = v
		return nil
	})
	return value, err
}

// Get returns the current value for key, or 0 when absent or expired.
func (s *BadgerCounterStore) Get(ctx context.Context, key string) (int64, error) {
	var value int64

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(counterKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get counter: %w", err)
		}
		value, err = counterValue(item)
		return err
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Increment atomically increments the counter and resets its expiry.
func (s *BadgerCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	bkey := []byte(counterKeyPrefix + key)

	var value int64
	for attempt := 0; ; attempt++ {
		err := s.db.Update(func(txn *badger.Txn) error {
			value = 0
			item, err := txn.Get(bkey)
			switch {
			case err == nil:
				value, err = counterValue(item)
				if err != nil {
					return err
				}
			case !errors.Is(err, badger.ErrKeyNotFound):
				return fmt.Errorf("get counter: %w", err)
			}

			value++
			e := badger.NewEntry(bkey, []byte(strconv.FormatInt(value, 10)))
			if ttl > 0 {
				e = e.WithTTL(ttl)
			}
			return txn.SetEntry(e)
		})
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, badger.ErrConflict) || attempt >= badgerMaxRetries {
			return 0, err
		}
	}
}

// SetExpiry resets the counter's expiry, preserving its value.
func (s *BadgerCounterStore) SetExpiry(ctx context.Context, key string, ttl time.Duration) error {
	bkey := []byte(counterKeyPrefix + key)

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(bkey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get counter: %w", err)
		}

		var val []byte
		if err := item.Value(func(v []byte) error {
			val = append([]byte(nil), v...)
			return nil
		}); err != nil {
			return err
		}

		e := badger.NewEntry(bkey, val)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	return err
}

// Delete removes the counter.
func (s *BadgerCounterStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(counterKeyPrefix + key))
	})
}
