// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authz

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arkivo-dms/arkivo/internal/logging"
)

// AuditEvent is one recorded authorization decision.
type AuditEvent struct {
	ID           string        `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	ActorID      string        `json:"actor_id,omitempty"`
	ActorAccount string        `json:"actor_account,omitempty"`
	Tenant       string        `json:"tenant,omitempty"`
	Scheme       string        `json:"scheme,omitempty"`
	Resource     string        `json:"resource"`
	Action       string        `json:"action"`
	Decision     bool          `json:"decision"`
	Reason       string        `json:"reason,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// AuditLogger writes authorization decisions to the structured log. Denials
// carry their private reason here and nowhere user-visible.
type AuditLogger struct {
	logDenialsOnly bool
}

// NewAuditLogger creates an audit logger. With denialsOnly set, allowed
// decisions are skipped to keep the log volume proportional to trouble.
func NewAuditLogger(denialsOnly bool) *AuditLogger {
	return &AuditLogger{logDenialsOnly: denialsOnly}
}

// LogDecision records one decision.
func (a *AuditLogger) LogDecision(ctx context.Context, event *AuditEvent) {
	if a == nil {
		return
	}
	if event.Decision && a.logDenialsOnly {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var evt *zerolog.Event
	if event.Decision {
		evt = logging.Ctx(ctx).Debug()
	} else {
		evt = logging.Ctx(ctx).Warn()
	}
	evt.Str("audit_id", event.ID).
		Str("actor_id", event.ActorID).
		Str("actor_account", event.ActorAccount).
		Str("tenant", event.Tenant).
		Str("scheme", event.Scheme).
		Str("resource", event.Resource).
		Str("action", event.Action).
		Bool("allowed", event.Decision).
		Dur("duration", event.Duration)
	if event.Reason != "" {
		evt = evt.Str("reason", event.Reason)
	}
	evt.Msg("Authorization decision")
}
