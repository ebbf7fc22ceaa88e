// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent represents a security-relevant event for audit logging.
// The private reason for an authentication failure is only ever surfaced
// through this channel, never in the response body.
type SecurityEvent struct {
	// Event is the type of event (e.g. "auth_success", "auth_failure",
	// "lockout_escalation", "replay_detected").
	Event string
	// UserID is the resolved user id, if any.
	UserID string
	// Account is the account name presented with the credential.
	Account string
	// Tenant is the tenant the request targeted.
	Tenant string
	// Scheme is the authentication scheme involved.
	Scheme string
	// SessionID is the session identifier (sanitized before output).
	SessionID string
	// IPAddress is the client's IP address.
	IPAddress string
	// Success indicates whether the operation succeeded.
	Success bool
	// Reason is the private, machine-readable failure reason.
	Reason string
}

// SecurityLogger writes authentication and authorization audit events.
// Sensitive fields are sanitized before they reach the log stream.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on top of the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: With().Str("component", "security").Logger()}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom backend.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "security").Logger()}
}

// LogEvent logs a security event with automatic sanitization.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info().Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if event.UserID != "" {
		e = e.Str("user_id", sanitizeField(event.UserID))
	}
	if event.Account != "" {
		e = e.Str("account", sanitizeField(event.Account))
	}
	if event.Tenant != "" {
		e = e.Str("tenant", event.Tenant)
	}
	if event.Scheme != "" {
		e = e.Str("scheme", event.Scheme)
	}
	if event.SessionID != "" {
		e = e.Str("session_id", SanitizeSessionID(event.SessionID))
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.Reason != "" {
		e = e.Str("reason", event.Reason)
	}

	e.Msg("security event")
}

// SanitizeSessionID truncates a session id so the log stream never holds a
// replayable credential.
func SanitizeSessionID(id string) string {
	if len(id) <= 8 {
		return "***"
	}
	return id[:8] + "..."
}

// sanitizeField strips control characters that would allow log injection.
func sanitizeField(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
