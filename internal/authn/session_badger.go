// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// sessionKeyPrefix namespaces session records in BadgerDB.
const sessionKeyPrefix = "session:"

// BadgerSessionStore implements SessionStore on BadgerDB. Sessions survive
// process restarts; Badger's key TTL acts as a backstop behind the explicit
// sweep.
type BadgerSessionStore struct {
	db *badger.DB
}

// NewBadgerSessionStore creates a BadgerDB-backed session store.
func NewBadgerSessionStore(db *badger.DB) *BadgerSessionStore {
	return &BadgerSessionStore{db: db}
}

// Create stores a new session.
func (s *BadgerSessionStore) Create(ctx context.Context, sess *Session) error {
	return s.write(sess)
}

// Get retrieves a session by id.
func (s *BadgerSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if err != nil {
		return nil, err
	}
	if sess.IsExpired() {
		return nil, ErrSessionExpired
	}
	return &sess, nil
}

// Update persists a refreshed session.
func (s *BadgerSessionStore) Update(ctx context.Context, sess *Session) error {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(sessionKeyPrefix + sess.ID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		return err
	})
	if err != nil {
		return err
	}
	return s.write(sess)
}

// Delete removes a session.
func (s *BadgerSessionStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionKeyPrefix + id))
	})
}

// SweepExpired removes expired sessions.
func (s *BadgerSessionStore) SweepExpired(ctx context.Context) (int, error) {
	var expired []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var sess Session
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &sess)
			}); err != nil {
				continue
			}
			if sess.IsExpired() {
				expired = append(expired, sess.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range expired {
		if err := s.Delete(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}

// write persists the session with a TTL slightly past its expiry.
func (s *BadgerSessionStore) write(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(sessionKeyPrefix+sess.ID), data)
		if ttl := time.Until(sess.ExpiresAt) + time.Hour; ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}
