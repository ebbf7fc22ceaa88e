// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

// Package token implements the stateless bearer-token codec.
//
// Token format: <userID>:<hash>[-<hash>...] where each hash is the unpadded
// standard-alphabet base64 of SHA-256(secret + normalizedPath). The standard
// alphabet is deliberate: it excludes '-', which keeps the hash joiner
// unambiguous.
//
// A token scoped to the root path is an "access token"; a token scoped to
// one or more specific resource paths is a "link token". Either kind only
// proves identity for its listed paths; authorization is always decided
// separately by the ACL evaluator.
//
// Tokens are not individually revocable. Rotating the per-user secret
// invalidates every token previously minted for that user.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/arkivo-dms/arkivo/internal/store"
)

const (
	// Delimiter separates the user id from the hash segment.
	Delimiter = ":"

	// hashJoiner separates individual path hashes.
	hashJoiner = "-"

	// RootPath is the path an access token is scoped to.
	RootPath = "/"

	// accessKeyBytes is the entropy of a freshly generated access key.
	accessKeyBytes = 32
)

// Mint builds a token for userID over the given paths. Paths that fail to
// hash are skipped; when no path produces a hash the result is "".
func Mint(userID, secret string, paths []string) string {
	hashes := make([]string, 0, len(paths))
	for _, p := range paths {
		if h := pathHash(secret, p); h != "" {
			hashes = append(hashes, h)
		}
	}
	if len(hashes) == 0 {
		return ""
	}
	return userID + Delimiter + strings.Join(hashes, hashJoiner)
}

// PrincipalID extracts the user id from a token: the substring before the
// first delimiter. Returns "" when the delimiter is absent or leading.
func PrincipalID(tok string) string {
	i := strings.Index(tok, Delimiter)
	if i <= 0 {
		return ""
	}
	return tok[:i]
}

// Verify reports whether tok authenticates the given path under secret.
// Malformed tokens verify as false; Verify never panics or errors.
func Verify(secret, path, tok string) bool {
	i := strings.Index(tok, Delimiter)
	if i <= 0 || i == len(tok)-1 {
		return false
	}

	want := pathHash(secret, path)
	if want == "" {
		return false
	}

	for _, h := range strings.Split(tok[i+1:], hashJoiner) {
		if h != "" && h == want {
			return true
		}
	}
	return false
}

// VerifyRoot reports whether tok is a valid access token (root scope).
func VerifyRoot(secret, tok string) bool {
	return Verify(secret, RootPath, tok)
}

// pathHash computes the per-path hash segment, or "" when no secret is set.
func pathHash(secret, path string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret + store.NormalizePath(path)))
	return base64.RawStdEncoding.EncodeToString(sum[:])
}

// NewAccessKey generates a fresh per-user secret. Storing it over the old
// value invalidates every outstanding token for the user.
func NewAccessKey() (string, error) {
	buf := make([]byte, accessKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
