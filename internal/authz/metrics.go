// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ACLDecisions counts authorization decisions by action and outcome.
	ACLDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arkivo_acl_decisions_total",
			Help: "Authorization decisions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	// ACLRuleParseErrors counts malformed permission records encountered
	// during evaluation.
	ACLRuleParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arkivo_acl_rule_parse_errors_total",
			Help: "Malformed ACL rules encountered during evaluation.",
		},
	)
)
