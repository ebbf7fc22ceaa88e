// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package api

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/arkivo-dms/arkivo/internal/logging"
)

// TenantHeader selects the tenant for a request. Single-tenant deployments
// omit it and fall back to DefaultTenant.
const TenantHeader = "X-Arkivo-Tenant"

// DefaultTenant is the tenant assumed when no header is present.
const DefaultTenant = "default"

// TenantFromHeader resolves the tenant from the request header, falling
// back to the given default.
func TenantFromHeader(fallback string) func(r *http.Request) string {
	if fallback == "" {
		fallback = DefaultTenant
	}
	return func(r *http.Request) string {
		if t := r.Header.Get(TenantHeader); t != "" {
			return t
		}
		return fallback
	}
}

// MiddlewareConfig holds the CORS and rate-limit settings for the router.
type MiddlewareConfig struct {
	CORSOrigins     []string
	RateLimit       int
	RateLimitWindow time.Duration
}

// Middleware provides the router's cross-cutting handler wrappers, built on
// the chi ecosystem.
type Middleware struct {
	cors func(http.Handler) http.Handler
	cfg  MiddlewareConfig
}

// NewMiddleware builds the middleware set. An empty origin list disables
// cross-origin access entirely.
func NewMiddleware(cfg MiddlewareConfig) *Middleware {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 120
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Arkivo-Token", "X-Arkivo-Auth", "X-Arkivo-Tenant", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return &Middleware{cors: corsHandler, cfg: cfg}
}

// CORS handles cross-origin requests, including OPTIONS preflight, so it
// must sit above the authentication layer.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the per-IP limiter for data endpoints.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(
		m.cfg.RateLimit,
		m.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
	)
}

// RateLimitHealth returns the permissive limiter for monitoring endpoints.
func (m *Middleware) RateLimitHealth() func(http.Handler) http.Handler {
	return httprate.Limit(1000, time.Minute, httprate.WithKeyFuncs(httprate.KeyByRealIP))
}

// RequestID attaches a request id to the response header and the logging
// context so every log line of a request correlates.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := chimiddleware.RequestID(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
				r.Header.Set("X-Request-ID", requestID)
			}
			w.Header().Set("X-Request-ID", requestID)
			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			wrapped.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
