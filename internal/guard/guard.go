// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

// Package guard implements brute-force lockout and replay protection on top
// of the expiring counter store.
//
// Two counter families are maintained:
//
//   - failure counters, keyed by identity and client IP, drive the
//     escalating verification requirement for password-scheme logins;
//   - one-time-use counters, keyed by credential and tenant, bound how often
//     a nonce-less digest credential may be replayed inside its freshness
//     window.
//
// The guard itself holds no state; every mutation is an atomic expiring
// operation on the injected CounterStore, so concurrent failed attempts for
// the same identity never lose an increment.
package guard

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arkivo-dms/arkivo/internal/config"
	"github.com/arkivo-dms/arkivo/internal/store"
)

// Counter key namespaces. Keys are slash-joined path segments so they remain
// readable in store dumps.
const (
	failureKeyNS = "sec"
	useKeyNS     = "use"
)

var (
	// FailuresRecorded counts failure-counter increments by tenant.
	FailuresRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_failures_recorded_total",
			Help: "Total number of authentication failures recorded against identities",
		},
		[]string{"tenant"},
	)

	// CaptchaEscalations counts logins that crossed the captcha threshold.
	CaptchaEscalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_captcha_escalations_total",
			Help: "Total number of logins that required the extra verification step",
		},
	)

	// ReplaysDetected counts credentials rejected for exceeding their use limit.
	ReplaysDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_replays_detected_total",
			Help: "Total number of one-time-use credentials seen more often than allowed",
		},
	)
)

// Guard provides failure-count lockout escalation and one-time-use
// accounting for the authentication chain.
type Guard struct {
	counters store.CounterStore
	cfg      *config.Config
}

// New creates a Guard over the given counter store and configuration.
func New(counters store.CounterStore, cfg *config.Config) *Guard {
	return &Guard{counters: counters, cfg: cfg}
}

// FailureCount returns the current failure count for identity from clientIP,
// or 0 when no counter exists.
func (g *Guard) FailureCount(ctx context.Context, identity, clientIP string) (int64, error) {
	return g.counters.Get(ctx, failureKey(identity, clientIP))
}

// RecordFailure atomically increments the failure counter and resets its
// expiry to the configured failure window. Returns the new count.
func (g *Guard) RecordFailure(ctx context.Context, tenant, identity, clientIP string) (int64, error) {
	n, err := g.counters.Increment(ctx, failureKey(identity, clientIP), g.cfg.Security.FailureWindow)
	if err != nil {
		return 0, err
	}
	FailuresRecorded.WithLabelValues(tenant).Inc()
	return n, nil
}

// ClearFailure deletes the failure counter after a successful login.
func (g *Guard) ClearFailure(ctx context.Context, identity, clientIP string) error {
	return g.counters.Delete(ctx, failureKey(identity, clientIP))
}

// CaptchaThreshold returns the failure count at which the tenant requires
// the extra verification step, or 0 when escalation is disabled.
func (g *Guard) CaptchaThreshold(tenant string) int {
	if t, ok := g.cfg.Tenant(tenant); ok {
		return t.CaptchaThreshold
	}
	return 0
}

// UseCount atomically increments the one-time-use counter for a credential
// within a tenant and returns the post-increment count. The counter expires
// a configured margin after the credential's validity window, so it always
// outlives the credential it tracks.
func (g *Guard) UseCount(ctx context.Context, credentialID, tenant string, validity time.Duration) (int64, error) {
	ttl := validity + g.cfg.Security.UseCountMargin
	return g.counters.Increment(ctx, useKey(credentialID, tenant), ttl)
}

// MaxAllowedUses returns how often a one-time-use credential may be seen for
// the given request path. Default 1; tenants may raise the limit for
// matching path patterns.
func (g *Guard) MaxAllowedUses(requestPath, tenant string) int {
	t, ok := g.cfg.Tenant(tenant)
	if !ok {
		return 1
	}
	requestPath = store.NormalizePath(requestPath)
	for _, o := range t.MaxUseOverrides {
		if matchPathPattern(o.PathPattern, requestPath) {
			return o.MaxUses
		}
	}
	return 1
}

// matchPathPattern matches a request path against a tenant override
// pattern. A trailing "*" makes the pattern a prefix match, otherwise the
// paths must be equal.
func matchPathPattern(pattern, requestPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(requestPath, prefix)
	}
	return store.NormalizePath(pattern) == requestPath
}

// IsFresh reports whether ts lies inside the configured window around now.
// This is the primary replay defense for nonce-less digest credentials.
func (g *Guard) IsFresh(ts time.Time) bool {
	return IsFreshWithin(ts, g.cfg.Security.FreshnessBefore, g.cfg.Security.FreshnessAfter)
}

// FreshnessWindow returns the total accepted credential lifetime, used to
// size one-time-use counter TTLs.
func (g *Guard) FreshnessWindow() time.Duration {
	return g.cfg.Security.FreshnessBefore + g.cfg.Security.FreshnessAfter
}

// IsFreshWithin reports whether ts lies inside [now-before, now+after].
func IsFreshWithin(ts time.Time, before, after time.Duration) bool {
	if ts.IsZero() {
		return false
	}
	now := time.Now()
	return !ts.Before(now.Add(-before)) && !ts.After(now.Add(after))
}

// failureKey builds the counter key for an identity/IP pair.
func failureKey(identity, clientIP string) string {
	return failureKeyNS + "/" + identity + "/" + ipKey(clientIP)
}

// useKey builds the counter key for a credential/tenant pair.
func useKey(credentialID, tenant string) string {
	return useKeyNS + "/" + ipKey(credentialID) + "/" + tenant
}

// ipKey makes an address safe as a key path segment. IPv6 colons become
// underscores.
func ipKey(addr string) string {
	return strings.ReplaceAll(addr, ":", "_")
}
