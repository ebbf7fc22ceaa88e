// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package services

import (
	"context"
	"errors"
	"time"

	"github.com/arkivo-dms/arkivo/internal/logging"
)

// JanitorFunc is one maintenance sweep. Returning an error logs it and
// keeps the ticker running; sweeps are expected to be individually
// fallible.
type JanitorFunc func(ctx context.Context) error

// JanitorService runs a named maintenance function on a fixed interval
// under a supervisor. Used for session expiry sweeps and badger value-log
// garbage collection.
type JanitorService struct {
	name     string
	interval time.Duration
	run      JanitorFunc
}

// NewJanitorService creates a janitor. Non-positive intervals default to
// five minutes.
func NewJanitorService(name string, interval time.Duration, run JanitorFunc) *JanitorService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &JanitorService{name: name, interval: interval, run: run}
}

// Serve implements suture.Service.
func (j *JanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := j.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Warn().Err(err).Str("janitor", j.name).Msg("Maintenance sweep failed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (j *JanitorService) String() string { return j.name }
