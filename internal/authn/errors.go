// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authn

import (
	"errors"
)

// Authentication error sentinels. ErrTimingRejected and ErrReplayDetected
// are subtypes of the generic failure: an *AuthError wrapping them still
// matches ErrAuthenticationFailed via errors.Is.
var (
	// ErrAuthenticationFailed is the only condition callers may surface to
	// users. The specific sub-check that failed stays in the audit log.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrTimingRejected marks a credential whose embedded creation time is
	// outside the freshness window.
	ErrTimingRejected = errors.New("credential timestamp outside freshness window")

	// ErrReplayDetected marks a one-time-use credential seen more often
	// than its limit allows.
	ErrReplayDetected = errors.New("credential use count exceeded")
)

// AuthError is the typed failure every chain branch produces. Error() is
// deliberately generic; Reason carries the machine-readable sub-message for
// the audit side-channel and must never reach a response body.
type AuthError struct {
	// Scheme is the branch that failed.
	Scheme Scheme

	// Reason is the private sub-message, e.g. "digest_mismatch".
	Reason string

	// Identity is the identity resolved before the failure (user id, or
	// account name when no id was resolved yet).
	Identity string

	cause error
}

// Error returns the generic user-facing message.
func (e *AuthError) Error() string {
	return ErrAuthenticationFailed.Error()
}

// Unwrap exposes the cause chain so errors.Is sees both the subtype
// sentinel and ErrAuthenticationFailed.
func (e *AuthError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return ErrAuthenticationFailed
}

// Is makes every AuthError match ErrAuthenticationFailed.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

// failed builds an AuthError with a private reason.
func failed(scheme Scheme, identity, reason string) *AuthError {
	return &AuthError{Scheme: scheme, Identity: identity, Reason: reason}
}

// failedWith builds an AuthError wrapping a subtype sentinel or store error.
func failedWith(scheme Scheme, identity, reason string, cause error) *AuthError {
	return &AuthError{Scheme: scheme, Identity: identity, Reason: reason, cause: cause}
}
