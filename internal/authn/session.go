// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authn

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

// Session-related errors.
var (
	// ErrSessionNotFound is returned when a session is not in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a session exists but has expired.
	ErrSessionExpired = errors.New("session expired")
)

// Session tracks an authenticated identity across requests. Sessions are
// only ever materialized by a successful digest login; token schemes never
// create one.
type Session struct {
	// ID is the opaque session identifier handed to the client.
	ID string `json:"id"`

	// UserID and Account identify the session's owner.
	UserID  string `json:"user_id"`
	Account string `json:"account"`

	// Tenant is the tenant the session belongs to.
	Tenant string `json:"tenant"`

	// Groups are the owner's group memberships at login time.
	Groups []string `json:"groups,omitempty"`

	// External marks sessions of principals outside the tenant's
	// organization.
	External bool `json:"external,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// IsExpired reports whether the session has passed its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// ToPrincipal builds a Principal from the session's stored identity.
func (s *Session) ToPrincipal() *Principal {
	return &Principal{
		ID:        s.UserID,
		Account:   s.Account,
		SessionID: s.ID,
		Scheme:    SchemeSession,
		Groups:    append([]string(nil), s.Groups...),
		Tenant:    s.Tenant,
		External:  s.External,
	}
}

// NewSession creates a session for the given identity with the given TTL.
func NewSession(p *Principal, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:             newSessionID(),
		UserID:         p.ID,
		Account:        p.Account,
		Tenant:         p.Tenant,
		Groups:         append([]string(nil), p.Groups...),
		External:       p.External,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}
}

// newSessionID generates a cryptographically random session id.
func newSessionID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; a zero id would
		// collide, so panic rather than issue a guessable session.
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// SessionStore is the session persistence contract.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by id. Returns ErrSessionNotFound when
	// absent and ErrSessionExpired when present but expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Update persists a refreshed session.
	Update(ctx context.Context, s *Session) error

	// Delete removes a session. Absent sessions are not an error.
	Delete(ctx context.Context, id string) error

	// SweepExpired removes expired sessions and returns how many.
	SweepExpired(ctx context.Context) (int, error)
}

// MemorySessionStore is an in-memory SessionStore for tests and
// single-process deployments.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

// Create stores a new session.
func (s *MemorySessionStore) Create(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

// Get retrieves a session by id.
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.IsExpired() {
		return nil, ErrSessionExpired
	}
	cp := *sess
	return &cp, nil
}

// Update persists a refreshed session.
func (s *MemorySessionStore) Update(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return ErrSessionNotFound
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

// Delete removes a session.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// SweepExpired removes expired sessions.
func (s *MemorySessionStore) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.IsExpired() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}
