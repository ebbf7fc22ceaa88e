// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authn

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts counts authentication outcomes per scheme.
	// Labels:
	//   - scheme: access_token, link_token, browser_digest, service_digest,
	//     session, anonymous
	//   - outcome: "success", "failure", "error"
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authn_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"scheme", "outcome"},
	)

	// AuthDuration measures chain latency per scheme. Buckets sized for
	// store round trips plus digest computation.
	AuthDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authn_duration_seconds",
			Help:    "Duration of authentication chain evaluation in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"scheme"},
	)

	// ActiveSessions tracks sessions created minus sessions swept.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authn_active_sessions",
			Help: "Approximate number of live sessions",
		},
	)
)
