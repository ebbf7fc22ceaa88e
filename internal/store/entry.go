// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

// Package store defines the narrow collaborator contracts the security
// control plane consumes: a keyed entry store for secrets, sessions, and
// ACL-bearing resource records, and an expiring counter store for lockout
// and replay bookkeeping.
//
// The control plane only reads entries and only mutates counters; all
// administrative writes (secret rotation, ACL edits, provisioning) happen
// elsewhere through the same stores.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Entry-related errors.
var (
	// ErrEntryNotFound is returned when no record exists at the given path.
	ErrEntryNotFound = errors.New("entry not found")
)

// Entry is a generic keyed record. Secrets, sessions, and resource records
// are all entries; the security control plane interprets the fields it needs
// and ignores the rest.
type Entry struct {
	// Path is the canonical hierarchical key, e.g. "/docs/1".
	Path string `json:"path"`

	// Owner is the user id that owns this entry, if any.
	Owner string `json:"owner,omitempty"`

	// Aliases are alternate paths resolving to this same entry. A resource
	// reachable by more than one alias still belongs to one owner.
	Aliases []string `json:"aliases,omitempty"`

	// Contributors holds the delimited permission records attached to the
	// entry. Each element is one encoded ACL rule; parsing happens once at
	// the store boundary (see internal/authz).
	Contributors []string `json:"contributors,omitempty"`

	// Attributes holds auxiliary string data (stored digests, access keys,
	// group memberships) keyed by well-known attribute names.
	Attributes map[string]string `json:"attributes,omitempty"`

	// CreatedAt and UpdatedAt are maintained by the storage layer.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attr returns the named attribute, or "" when absent.
func (e *Entry) Attr(name string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[name]
}

// EntryStore is the keyed record collaborator. Implementations must be safe
// for concurrent use.
type EntryStore interface {
	// Get fetches a single record by canonical path.
	// Returns ErrEntryNotFound when absent.
	Get(ctx context.Context, path string) (*Entry, error)

	// Put persists the given records transactionally.
	Put(ctx context.Context, entries ...*Entry) error

	// Delete removes the record at path. Absent records are not an error.
	Delete(ctx context.Context, path string) error

	// AncestorChain returns the stored entries on the path from the given
	// resource up to the root, nearest first. Layers without a stored
	// record are omitted; the resource's own entry, when present, is the
	// first element.
	AncestorChain(ctx context.Context, path string) ([]*Entry, error)
}

// AncestorPaths expands a resource path into itself plus every ancestor up
// to the root, nearest first: "/a/b/c" -> ["/a/b/c", "/a/b", "/a", "/"].
func AncestorPaths(path string) []string {
	path = NormalizePath(path)
	if path == "/" {
		return []string{"/"}
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	chain := make([]string, 0, len(parts)+1)
	for i := len(parts); i > 0; i-- {
		chain = append(chain, "/"+strings.Join(parts[:i], "/"))
	}
	chain = append(chain, "/")
	return chain
}

// NormalizePath ensures a leading separator and strips any trailing one.
// The root path stays "/".
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
