// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

// Package api provides the reference server's HTTP surface on the chi
// router. Every data route runs behind the authentication chain; entry
// routes additionally pass the ACL evaluator.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arkivo-dms/arkivo/internal/authn"
)

// Router assembles the handler set and middleware into one http.Handler.
type Router struct {
	handler *Handler
	mw      *Middleware
	chain   *authn.Chain
	tenant  authn.TenantResolver
}

// NewRouter wires the routing table.
func NewRouter(handler *Handler, mw *Middleware, chain *authn.Chain, tenant authn.TenantResolver) *Router {
	if tenant == nil {
		tenant = TenantFromHeader(DefaultTenant)
	}
	return &Router{handler: handler, mw: mw, chain: chain, tenant: tenant}
}

// Setup builds the route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.mw.CORS())

	// Monitoring endpoints skip authentication; they expose no tenant data.
	r.Group(func(r chi.Router) {
		r.Use(rt.mw.RateLimitHealth())
		r.Get("/healthz", rt.handler.HealthLive)
		r.Get("/readyz", rt.handler.HealthReady)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.mw.RateLimit())
		r.Use(authn.Middleware(rt.chain, rt.tenant))

		r.Get("/whoami", rt.handler.Whoami)
		r.Post("/logout", rt.handler.Logout)

		// Login is the same digest POST the chain accepts anywhere; this
		// route just gives clients a stable target that returns identity.
		r.Post("/login", rt.handler.Whoami)

		r.Route("/entries", func(r chi.Router) {
			r.Get("/*", rt.handler.GetEntry)
			r.Put("/*", rt.handler.PutEntry)
			r.Delete("/*", rt.handler.DeleteEntry)
		})

		r.Route("/admin/users", func(r chi.Router) {
			r.Post("/", rt.handler.CreateUser)
			r.Post("/{id}/rotate-key", rt.handler.RotateKey)
			r.Put("/{id}/password", rt.handler.SetPassword)
			r.Put("/{id}/groups", rt.handler.SetGroups)
		})
	})

	return r
}
