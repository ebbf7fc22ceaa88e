// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arkivo-dms/arkivo/internal/authn"
	"github.com/arkivo-dms/arkivo/internal/store"
)

// ErrPermissionDenied is the only condition callers may surface to users
// for an authorization denial. The specific reason stays in the audit log.
var ErrPermissionDenied = errors.New("not permitted")

// DenyError carries the private denial reason for the audit side-channel.
type DenyError struct {
	// Reason is machine-readable, e.g. "authoritative_layer_no_match".
	Reason string
}

// Error returns the generic user-facing message.
func (e *DenyError) Error() string { return ErrPermissionDenied.Error() }

// Is makes every DenyError match ErrPermissionDenied.
func (e *DenyError) Is(target error) bool { return target == ErrPermissionDenied }

func deny(reason string) *DenyError { return &DenyError{Reason: reason} }

// Evaluator decides whether a principal may perform an action on a
// resource. It is read-only: permission records are written by
// administrative flows elsewhere and only consumed here, per evaluation,
// without caching.
type Evaluator struct {
	entries    store.EntryStore
	adminGroup string
	audit      *AuditLogger
}

// NewEvaluator creates an evaluator. A nil audit logger disables decision
// auditing.
func NewEvaluator(entries store.EntryStore, adminGroup string, audit *AuditLogger) *Evaluator {
	return &Evaluator{entries: entries, adminGroup: adminGroup, audit: audit}
}

// CheckAccess decides allow (nil) or deny (*DenyError) for one request.
// Any other error is an infrastructure fault and must be retried, never
// treated as a decision.
//
// The walk is strictly ordered nearest-to-root and the first layer carrying
// any rule is authoritative: if none of its rules grant, the evaluation
// denies without climbing further. A chain with no rules anywhere is open
// access.
func (e *Evaluator) CheckAccess(ctx context.Context, p *authn.Principal, resourcePath string, action Action) error {
	start := time.Now()
	err := e.checkAccess(ctx, p, resourcePath, action)
	e.record(ctx, p, resourcePath, action, err, time.Since(start))
	return err
}

func (e *Evaluator) checkAccess(ctx context.Context, p *authn.Principal, resourcePath string, action Action) error {
	if p == nil {
		return deny("nil_principal")
	}
	if p.System {
		return nil
	}

	admin := p.InGroup(e.adminGroup)
	if action == ActionDelete && admin {
		return nil
	}

	path := store.NormalizePath(resourcePath)
	chain, err := e.entries.AncestorChain(ctx, path)
	if err != nil {
		return fmt.Errorf("fetch ancestor chain for %s: %w", path, err)
	}

	// Root bootstrap: an administrator may always create under the root,
	// and may read it while no ACL has ever been written anywhere on the
	// chain. Without this, the very first ACL could never be provisioned.
	if path == "/" && admin {
		if action == ActionCreate {
			return nil
		}
		if action == ActionRead {
			hasRules, err := anyLayerHasRules(chain)
			if err != nil {
				return err
			}
			if !hasRules {
				return nil
			}
		}
	}

	resourceOwner := ownerOf(chain, path)

	for _, layer := range chain {
		isOwn := isOwnLayer(layer, path)
		rules, err := layerRules(layer)
		if err != nil {
			return err
		}
		if len(rules) == 0 {
			continue
		}

		// This layer defines rules, so it is authoritative: grant or deny
		// here, never climb past it.
		for _, rule := range rules {
			if rule.Matches(p, action, isOwn, resourceOwner) {
				return nil
			}
		}
		return deny("authoritative_layer_no_match")
	}

	// No rule anywhere on the chain: open access.
	return nil
}

// HasAuthoritySelf is the narrow entry point for batch and listing
// contexts: only the entry's own layer is consulted, with the same per-rule
// matching procedure. No rules on the entry means visible; rules present
// require at least one Read grant at the own layer.
func (e *Evaluator) HasAuthoritySelf(p *authn.Principal, entry *store.Entry) (bool, error) {
	if p == nil {
		p = authn.AnonymousPrincipal("")
	}
	if p.System {
		return true, nil
	}

	rules, err := layerRules(entry)
	if err != nil {
		return false, err
	}
	if len(rules) == 0 {
		return true, nil
	}
	for _, rule := range rules {
		if rule.Matches(p, ActionRead, true, entry.Owner) {
			return true, nil
		}
	}
	return false, nil
}

// FilterReadable prunes a result set to the entries the principal may see,
// using only each entry's own layer. Used to pre-filter search results.
func (e *Evaluator) FilterReadable(p *authn.Principal, entries []*store.Entry) ([]*store.Entry, error) {
	out := make([]*store.Entry, 0, len(entries))
	for _, entry := range entries {
		ok, err := e.HasAuthoritySelf(p, entry)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

// record feeds the decision to metrics and the audit logger.
func (e *Evaluator) record(ctx context.Context, p *authn.Principal, path string, action Action, err error, elapsed time.Duration) {
	outcome := "allow"
	reason := ""
	var denial *DenyError
	switch {
	case errors.As(err, &denial):
		outcome = "deny"
		reason = denial.Reason
	case err != nil:
		outcome = "error"
	}
	ACLDecisions.WithLabelValues(action.String(), outcome).Inc()

	if e.audit == nil || outcome == "error" {
		return
	}
	event := &AuditEvent{
		Resource: path,
		Action:   action.String(),
		Decision: outcome == "allow",
		Reason:   reason,
		Duration: elapsed,
	}
	if p != nil {
		event.ActorID = p.ID
		event.ActorAccount = p.Account
		event.Tenant = p.Tenant
		event.Scheme = string(p.Scheme)
	}
	e.audit.LogDecision(ctx, event)
}

// isOwnLayer reports whether this chain element is the resource itself,
// either by canonical path or one of its registered aliases.
func isOwnLayer(layer *store.Entry, path string) bool {
	if layer.Path == path {
		return true
	}
	for _, alias := range layer.Aliases {
		if store.NormalizePath(alias) == path {
			return true
		}
	}
	return false
}

// ownerOf returns the id owning the resource's own layer, or "".
func ownerOf(chain []*store.Entry, path string) string {
	for _, layer := range chain {
		if isOwnLayer(layer, path) {
			return layer.Owner
		}
	}
	return ""
}

// anyLayerHasRules reports whether any chain element carries a parseable
// rule.
func anyLayerHasRules(chain []*store.Entry) (bool, error) {
	for _, layer := range chain {
		rules, err := layerRules(layer)
		if err != nil {
			return false, err
		}
		if len(rules) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// layerRules parses a layer's permission records, counting parse failures.
// A malformed record poisons the whole evaluation: it is a configuration
// fault, not a deny.
func layerRules(layer *store.Entry) ([]Rule, error) {
	rules, err := RulesFromEntry(layer)
	if err != nil {
		ACLRuleParseErrors.Inc()
		return nil, err
	}
	return rules, nil
}
