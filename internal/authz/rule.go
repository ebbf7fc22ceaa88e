// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

// Package authz implements the hierarchical ACL evaluator.
//
// Permission records are stored as delimited strings on resource entries
// and parsed exactly once, at the store boundary, into typed Rules. The
// evaluator walks the resource's ancestor chain nearest-to-root; the first
// layer that defines any rule is authoritative for the whole decision.
package authz

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/arkivo-dms/arkivo/internal/authn"
	"github.com/arkivo-dms/arkivo/internal/config"
	"github.com/arkivo-dms/arkivo/internal/store"
)

// Action is one of the four operations a rule may grant.
type Action int

const (
	ActionCreate Action = iota
	ActionRead
	ActionUpdate
	ActionDelete
)

// String returns the action name for logs and metrics.
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionRead:
		return "read"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ActionSet is the subset of actions a rule grants.
type ActionSet uint8

// Has reports whether the set contains the action.
func (s ActionSet) Has(a Action) bool {
	return s&(1<<uint(a)) != 0
}

func (s ActionSet) with(a Action) ActionSet {
	return s | 1<<uint(a)
}

// actionLetters maps the encoded letters to actions.
var actionLetters = map[byte]Action{
	'C': ActionCreate,
	'R': ActionRead,
	'U': ActionUpdate,
	'D': ActionDelete,
}

// TargetKind classifies whom a rule applies to.
type TargetKind int

const (
	// TargetAnonymous matches every principal.
	TargetAnonymous TargetKind = iota

	// TargetLoggedIn matches principals with both an account and an id.
	TargetLoggedIn

	// TargetSelf matches the owner of the resource under evaluation.
	TargetSelf

	// TargetUser matches a literal user id.
	TargetUser

	// TargetAccount matches an account name, optionally glob-patterned.
	TargetAccount

	// TargetGroup matches a group path, optionally with one wildcard
	// segment.
	TargetGroup
)

// Rule is one parsed permission record.
//
// Encoded form: "<target>|<actions>|<modifiers>" where target is one of
// "anonymous", "loggedin", "self", "user:<id>", "account:<pattern>",
// "group:<path>"; actions is a subset of the letters CRUD; modifiers is a
// comma-separated subset of "own", "descendant", "external".
type Rule struct {
	Kind    TargetKind
	Target  string
	Actions ActionSet

	// OwnOnly restricts the rule to the resource's own layer;
	// DescendantOnly to ancestors of it. Neither or both means any layer.
	OwnOnly        bool
	DescendantOnly bool

	// ExternalOnly restricts the rule to external principals.
	ExternalOnly bool

	// groupPattern is the compiled wildcard group matcher, when Target
	// contains exactly one wildcard segment.
	groupPattern *regexp.Regexp
}

// ParseRule decodes one permission record. Malformed records are a
// configuration fault, never a silent deny.
func ParseRule(raw string) (Rule, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 3 {
		return Rule{}, fmt.Errorf("%w: acl rule %q: want 3 fields, got %d", config.ErrInvalid, raw, len(parts))
	}

	rule := Rule{}
	if err := rule.parseTarget(parts[0]); err != nil {
		return Rule{}, err
	}

	if parts[1] == "" {
		return Rule{}, fmt.Errorf("%w: acl rule %q: empty action set", config.ErrInvalid, raw)
	}
	for i := 0; i < len(parts[1]); i++ {
		a, ok := actionLetters[parts[1][i]]
		if !ok {
			return Rule{}, fmt.Errorf("%w: acl rule %q: unknown action %q", config.ErrInvalid, raw, parts[1][i])
		}
		rule.Actions = rule.Actions.with(a)
	}

	if parts[2] != "" {
		for _, mod := range strings.Split(parts[2], ",") {
			switch strings.TrimSpace(mod) {
			case "own":
				rule.OwnOnly = true
			case "descendant":
				rule.DescendantOnly = true
			case "external":
				rule.ExternalOnly = true
			case "":
			default:
				return Rule{}, fmt.Errorf("%w: acl rule %q: unknown modifier %q", config.ErrInvalid, raw, mod)
			}
		}
	}
	return rule, nil
}

// parseTarget decodes the target field and precompiles group wildcards.
func (r *Rule) parseTarget(target string) error {
	switch {
	case target == "anonymous":
		r.Kind = TargetAnonymous
	case target == "loggedin":
		r.Kind = TargetLoggedIn
	case target == "self":
		r.Kind = TargetSelf
	case strings.HasPrefix(target, "user:"):
		r.Kind = TargetUser
		r.Target = strings.TrimPrefix(target, "user:")
		if r.Target == "" {
			return fmt.Errorf("%w: acl rule: empty user id", config.ErrInvalid)
		}
	case strings.HasPrefix(target, "account:"):
		r.Kind = TargetAccount
		r.Target = authn.NormalizeAccount(strings.TrimPrefix(target, "account:"))
		if r.Target == "" {
			return fmt.Errorf("%w: acl rule: empty account pattern", config.ErrInvalid)
		}
	case strings.HasPrefix(target, "group:"):
		r.Kind = TargetGroup
		r.Target = strings.TrimPrefix(target, "group:")
		if !strings.HasPrefix(r.Target, "/") {
			return fmt.Errorf("%w: acl rule: group path %q must start with /", config.ErrInvalid, r.Target)
		}
		if strings.Count(r.Target, "*") == 1 {
			pre, post, _ := strings.Cut(r.Target, "*")
			pattern, err := regexp.Compile("^" + regexp.QuoteMeta(pre) + ".*" + regexp.QuoteMeta(post) + "$")
			if err != nil {
				return fmt.Errorf("%w: acl rule: group pattern %q: %v", config.ErrInvalid, r.Target, err)
			}
			r.groupPattern = pattern
		}
	default:
		return fmt.Errorf("%w: acl rule: unknown target %q", config.ErrInvalid, target)
	}
	return nil
}

// RulesFromEntry parses every permission record attached to an entry.
func RulesFromEntry(e *store.Entry) ([]Rule, error) {
	if e == nil || len(e.Contributors) == 0 {
		return nil, nil
	}
	rules := make([]Rule, 0, len(e.Contributors))
	for _, raw := range e.Contributors {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		rule, err := ParseRule(raw)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Path, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Encode renders the rule back to its stored form.
func (r Rule) Encode() string {
	var target string
	switch r.Kind {
	case TargetAnonymous:
		target = "anonymous"
	case TargetLoggedIn:
		target = "loggedin"
	case TargetSelf:
		target = "self"
	case TargetUser:
		target = "user:" + r.Target
	case TargetAccount:
		target = "account:" + r.Target
	case TargetGroup:
		target = "group:" + r.Target
	}

	actions := ""
	for _, letter := range []struct {
		b byte
		a Action
	}{{'C', ActionCreate}, {'R', ActionRead}, {'U', ActionUpdate}, {'D', ActionDelete}} {
		if r.Actions.Has(letter.a) {
			actions += string(letter.b)
		}
	}

	var mods []string
	if r.OwnOnly {
		mods = append(mods, "own")
	}
	if r.DescendantOnly {
		mods = append(mods, "descendant")
	}
	if r.ExternalOnly {
		mods = append(mods, "external")
	}
	return target + "|" + actions + "|" + strings.Join(mods, ",")
}

// Matches runs the full per-rule matching procedure: scope filter, target
// match, then action filter. resourceOwner is the id owning the resource
// under evaluation (for the self target).
func (r Rule) Matches(p *authn.Principal, action Action, isOwnLayer bool, resourceOwner string) bool {
	// Scope filter: neither or both flags means any layer.
	if r.OwnOnly && !r.DescendantOnly && !isOwnLayer {
		return false
	}
	if r.DescendantOnly && !r.OwnOnly && isOwnLayer {
		return false
	}

	if !r.matchesTarget(p, resourceOwner) {
		return false
	}

	if !r.Actions.Has(action) {
		return false
	}
	if r.ExternalOnly && !p.External {
		return false
	}
	return true
}

// matchesTarget checks the principal against the rule's target.
func (r Rule) matchesTarget(p *authn.Principal, resourceOwner string) bool {
	switch r.Kind {
	case TargetAnonymous:
		return true
	case TargetLoggedIn:
		return p.IsLoggedIn()
	case TargetSelf:
		return p.ID != "" && p.ID == resourceOwner
	case TargetUser:
		return p.ID == r.Target
	case TargetAccount:
		return matchAccount(r.Target, authn.NormalizeAccount(p.Account))
	case TargetGroup:
		for _, g := range p.Groups {
			if g == r.Target {
				return true
			}
			if r.groupPattern != nil && r.groupPattern.MatchString(g) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// matchAccount applies the three-way wildcard interpretation: a leading and
// trailing marker means substring, trailing-only means prefix, leading-only
// means suffix. No marker means exact match.
func matchAccount(pattern, account string) bool {
	if account == "" {
		return false
	}

	leading := strings.HasPrefix(pattern, "*")
	trailing := strings.HasSuffix(pattern, "*") && pattern != "*"
	core := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")

	switch {
	case pattern == "*":
		return true
	case leading && trailing:
		return strings.Contains(account, core)
	case trailing:
		return strings.HasPrefix(account, core)
	case leading:
		return strings.HasSuffix(account, core)
	default:
		return account == pattern
	}
}
