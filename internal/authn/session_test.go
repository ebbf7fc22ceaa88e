// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewSession(t *testing.T) {
	p := &Principal{
		ID:      "u1",
		Account: "alice",
		Tenant:  "acme",
		Groups:  []string{"/staff"},
	}
	s := NewSession(p, time.Hour)

	if s.ID == "" {
		t.Fatal("empty session id")
	}
	if s.UserID != "u1" || s.Account != "alice" || s.Tenant != "acme" {
		t.Errorf("identity not carried: %+v", s)
	}
	if !s.ExpiresAt.After(time.Now().Add(50 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want ~1h out", s.ExpiresAt)
	}
	if s.IsExpired() {
		t.Error("fresh session is expired")
	}

	other := NewSession(p, time.Hour)
	if other.ID == s.ID {
		t.Error("session ids collide")
	}
}

func TestSessionToPrincipal(t *testing.T) {
	s := &Session{
		ID:      "sess-1",
		UserID:  "u1",
		Account: "alice",
		Tenant:  "acme",
		Groups:  []string{"/staff"},
	}
	p := s.ToPrincipal()

	if p.ID != "u1" || p.Account != "alice" || p.Tenant != "acme" {
		t.Errorf("principal = %+v", p)
	}
	if p.Scheme != SchemeSession {
		t.Errorf("Scheme = %q, want %q", p.Scheme, SchemeSession)
	}
	if p.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", p.SessionID)
	}

	// The principal's groups are a copy, not the session's slice.
	p.Groups[0] = "/mutated"
	if s.Groups[0] != "/staff" {
		t.Error("ToPrincipal aliases the session's groups slice")
	}
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	p := &Principal{ID: "u1", Account: "alice", Tenant: "acme"}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrSessionNotFound", err)
	}

	s := NewSession(p, time.Hour)
	if err := store.Create(ctx, s); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.UserID != "u1" {
		t.Errorf("UserID = %q", got.UserID)
	}

	// Stored sessions are copied both ways.
	got.Account = "mutated"
	again, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Account != "alice" {
		t.Error("Get returned an aliased session")
	}

	got.Account = "alice"
	got.ExpiresAt = got.ExpiresAt.Add(time.Hour)
	if err := store.Update(ctx, got); err != nil {
		t.Fatal(err)
	}
	refreshed, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !refreshed.ExpiresAt.Equal(got.ExpiresAt) {
		t.Error("Update did not persist the new expiry")
	}

	if err := store.Update(ctx, &Session{ID: "missing"}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Update(missing) = %v, want ErrSessionNotFound", err)
	}

	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after delete = %v, want ErrSessionNotFound", err)
	}
	// Deleting again is fine.
	if err := store.Delete(ctx, s.ID); err != nil {
		t.Errorf("second Delete = %v", err)
	}
}

func TestMemorySessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	p := &Principal{ID: "u1", Account: "alice", Tenant: "acme"}

	expired := NewSession(p, -time.Minute)
	live := NewSession(p, time.Hour)
	if err := store.Create(ctx, expired); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(ctx, live); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(ctx, expired.ID); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Get(expired) = %v, want ErrSessionExpired", err)
	}

	removed, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("SweepExpired removed %d, want 1", removed)
	}
	if _, err := store.Get(ctx, expired.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after sweep = %v, want ErrSessionNotFound", err)
	}
	if _, err := store.Get(ctx, live.ID); err != nil {
		t.Errorf("live session swept: %v", err)
	}
}
