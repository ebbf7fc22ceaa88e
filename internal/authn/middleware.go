// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authn

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/arkivo-dms/arkivo/internal/logging"
)

// TenantResolver maps a request to its tenant. The reference server reads
// the first path segment; other hosts may use the Host header or a fixed
// tenant.
type TenantResolver func(r *http.Request) string

// StaticTenant returns a resolver that always yields the given tenant.
func StaticTenant(tenant string) TenantResolver {
	return func(*http.Request) string { return tenant }
}

// Middleware runs the chain on every request and stores the resolved
// Principal in the request context. Per the control-plane contract it only
// ever surfaces two user-visible outcomes: 401 "authentication failed" when
// a presented credential was rejected, and 503 when the stores were
// unreachable. Requests without credentials pass through as anonymous.
func Middleware(chain *Chain, resolveTenant TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if logging.RequestIDFromContext(ctx) == "" {
				ctx = logging.ContextWithRequestID(ctx, logging.GenerateRequestID())
			}

			p, err := chain.Authenticate(ctx, r, resolveTenant(r))
			if err != nil {
				if errors.Is(err, ErrAuthenticationFailed) {
					writeJSONError(w, http.StatusUnauthorized, "authentication failed")
					return
				}
				logging.Ctx(ctx).Error().Err(err).Msg("authentication chain error")
				writeJSONError(w, http.StatusServiceUnavailable, "temporarily unavailable")
				return
			}

			// A digest login materialized a session; hand the cookie out.
			if p.SessionID != "" && p.Scheme != SchemeSession {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    p.SessionID,
					Path:     "/",
					HttpOnly: true,
					Secure:   r.TLS != nil,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(ctx, p)))
		})
	}
}

// writeJSONError writes the generic error body. Internal reasons never
// appear here; they live in the audit log only.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing to do about a failed error write
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
