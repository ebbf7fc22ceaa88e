// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package store

import (
	"context"

	"github.com/arkivo-dms/arkivo/internal/logging"
)

// MailDispatch is the outbound notification collaborator. The security
// control plane only uses it for best-effort notifications (for example when
// a pending registration is finalized); delivery failures never fail the
// request that triggered them.
type MailDispatch interface {
	Send(ctx context.Context, tenant, recipient, subject, body string) error
}

// LogMailDispatch is a MailDispatch that records the notification in the
// log stream instead of delivering it. Default for deployments without an
// outbound mail relay.
type LogMailDispatch struct{}

// Send logs the notification.
func (LogMailDispatch) Send(ctx context.Context, tenant, recipient, subject, body string) error {
	logging.Ctx(ctx).Info().
		Str("tenant", tenant).
		Str("recipient", recipient).
		Str("subject", subject).
		Msg("mail dispatch (log only)")
	return nil
}
