// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryEntryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEntryStore()

	if _, err := s.Get(ctx, "/missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrEntryNotFound", err)
	}

	if err := s.Put(ctx, &Entry{Path: "/docs/1", Owner: "u1"}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := s.Get(ctx, "/docs/1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Owner != "u1" {
		t.Errorf("Owner = %q, want %q", got.Owner, "u1")
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set by Put")
	}

	// Trailing-slash spelling resolves to the same record.
	if _, err := s.Get(ctx, "/docs/1/"); err != nil {
		t.Errorf("Get with trailing slash error: %v", err)
	}

	if err := s.Delete(ctx, "/docs/1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := s.Get(ctx, "/docs/1"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Get after delete error = %v, want ErrEntryNotFound", err)
	}

	// Deleting an absent record is not an error.
	if err := s.Delete(ctx, "/docs/1"); err != nil {
		t.Errorf("repeat Delete() error: %v", err)
	}
}

func TestMemoryEntryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEntryStore()

	e := &Entry{Path: "/a", Attributes: map[string]string{"k": "v"}}
	if err := s.Put(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Owner = "mutated-after-put"

	got, err := s.Get(ctx, "/a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Owner == "mutated-after-put" {
		t.Error("store returned caller-mutable reference")
	}
}

func TestMemoryEntryStoreAncestorChain(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryEntryStore()

	// "/a/b" deliberately has no record: absent layers are omitted.
	for _, path := range []string{"/", "/a", "/a/b/c"} {
		if err := s.Put(ctx, &Entry{Path: path}); err != nil {
			t.Fatal(err)
		}
	}

	chain, err := s.AncestorChain(ctx, "/a/b/c")
	if err != nil {
		t.Fatalf("AncestorChain() error: %v", err)
	}

	want := []string{"/a/b/c", "/a", "/"}
	if len(chain) != len(want) {
		t.Fatalf("chain length = %d, want %d", len(chain), len(want))
	}
	for i, p := range want {
		if chain[i].Path != p {
			t.Errorf("chain[%d].Path = %q, want %q", i, chain[i].Path, p)
		}
	}
}

func TestMemoryCounterStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCounterStore()

	if n, err := s.Get(ctx, "k"); err != nil || n != 0 {
		t.Fatalf("Get(absent) = %d, %v; want 0, nil", n, err)
	}

	for want := int64(1); want <= 3; want++ {
		n, err := s.Increment(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("Increment() error: %v", err)
		}
		if n != want {
			t.Errorf("Increment() = %d, want %d", n, want)
		}
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Get(ctx, "k"); n != 0 {
		t.Errorf("Get after delete = %d, want 0", n)
	}
}

func TestMemoryCounterStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCounterStore()

	if _, err := s.Increment(ctx, "k", 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	if n, _ := s.Get(ctx, "k"); n != 0 {
		t.Errorf("Get after expiry = %d, want 0", n)
	}
	// An expired counter restarts from zero.
	if n, _ := s.Increment(ctx, "k", time.Minute); n != 1 {
		t.Errorf("Increment after expiry = %d, want 1", n)
	}
}
