// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

// Package authn implements the ordered multi-scheme authentication chain.
//
// Every inbound request is resolved to exactly one Principal. Five schemes
// are attempted in fixed priority order, the first credential present
// winning: access token, link token, browser digest, service digest,
// session cookie. A request carrying no credential at all resolves to an
// anonymous Principal; rejecting anonymous access is the ACL evaluator's
// decision, never this package's.
package authn

import (
	"context"
)

// Scheme identifies how a Principal was authenticated.
type Scheme string

const (
	// SchemeAccessToken is a header-borne bearer token scoped to the root path.
	SchemeAccessToken Scheme = "access_token"

	// SchemeLinkToken is a query-borne bearer token scoped to specific paths.
	SchemeLinkToken Scheme = "link_token"

	// SchemeBrowserDigest is the browser-originated digest credential.
	SchemeBrowserDigest Scheme = "browser_digest"

	// SchemeServiceDigest is the service-scoped digest credential with
	// one-time-use accounting.
	SchemeServiceDigest Scheme = "service_digest"

	// SchemeSession is an established session cookie.
	SchemeSession Scheme = "session"

	// SchemeAnonymous marks a request that carried no credential.
	SchemeAnonymous Scheme = "anonymous"

	// SchemeSystem marks an internally minted system principal.
	SchemeSystem Scheme = "system"
)

// Principal is the resolved identity of one request. It is created once per
// request by the chain and treated as immutable afterwards, except for group
// population which happens before the Principal is handed to callers.
type Principal struct {
	// ID is the opaque user id; empty for anonymous principals.
	ID string `json:"id,omitempty"`

	// Account is the human-facing account name.
	Account string `json:"account,omitempty"`

	// SessionID is set when the request was (or became) session-backed.
	SessionID string `json:"session_id,omitempty"`

	// LinkTokenPath is the single path a link token authorized. Empty for
	// every other scheme.
	LinkTokenPath string `json:"link_token_path,omitempty"`

	// Scheme records which authentication scheme produced this Principal.
	Scheme Scheme `json:"scheme"`

	// Groups are the resolved group memberships.
	Groups []string `json:"groups,omitempty"`

	// Tenant is the tenant the request targeted.
	Tenant string `json:"tenant"`

	// External marks principals from outside the tenant's own organization.
	External bool `json:"external,omitempty"`

	// System principals bypass every ACL check and lockout counter.
	System bool `json:"system,omitempty"`
}

// IsAnonymous reports whether no identity was resolved.
func (p *Principal) IsAnonymous() bool {
	return p.ID == "" && p.Account == ""
}

// IsLoggedIn reports whether the principal carries both an account and an id.
func (p *Principal) IsLoggedIn() bool {
	return p.ID != "" && p.Account != ""
}

// InGroup reports whether the principal is a member of the given group path.
func (p *Principal) InGroup(group string) bool {
	if group == "" {
		return false
	}
	for _, g := range p.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// AnonymousPrincipal returns the principal for a request without credentials.
func AnonymousPrincipal(tenant string) *Principal {
	return &Principal{Scheme: SchemeAnonymous, Tenant: tenant}
}

// SystemPrincipal returns a principal for internal maintenance flows. It is
// never produced from request credentials.
func SystemPrincipal(tenant string) *Principal {
	return &Principal{Scheme: SchemeSystem, Tenant: tenant, System: true}
}

type contextKey string

const principalContextKey contextKey = "principal"

// ContextWithPrincipal stores the principal in the request context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the principal, or nil when absent.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalContextKey).(*Principal); ok {
		return p
	}
	return nil
}
