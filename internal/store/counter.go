// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package store

import (
	"context"
	"time"
)

// CounterStore is the expiring counter collaborator used for failure and
// one-time-use bookkeeping. Increment must be atomic at the store level; the
// callers never read-modify-write.
type CounterStore interface {
	// Get returns the current value for key, or 0 when the counter is
	// absent or expired.
	Get(ctx context.Context, key string) (int64, error)

	// Increment atomically increments the counter, (re)sets its expiry to
	// ttl from now, and returns the post-increment value. A zero ttl means
	// no expiry.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// SetExpiry resets the counter's expiry to ttl from now. Absent
	// counters are not an error.
	SetExpiry(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes the counter. Absent counters are not an error.
	Delete(ctx context.Context, key string) error
}
