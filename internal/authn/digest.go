// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authn

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// Stored-digest derivation parameters. Clients computing wire digests must
// use the same derivation, so changing these invalidates every stored
// credential.
const (
	digestIterations = 4096
	digestKeyLength  = 32
)

// DerivePasswordDigest computes the stored password digest for an account.
// The account name salts the derivation so equal passwords on different
// accounts store differently.
func DerivePasswordDigest(account, password string) string {
	key := pbkdf2.Key([]byte(password), []byte("arkivo/"+account), digestIterations, digestKeyLength, sha256.New)
	return hex.EncodeToString(key)
}

// WireDigest computes the digest expected on the wire for a credential:
// unpadded base64 of SHA-256 over nonce, the creation timestamp exactly as
// presented, the stored digest, and the tenant's shared secret. Exported so
// service clients and tests can mint valid credentials.
func WireDigest(nonce, createdRaw, storedDigest, tenantSecret string) string {
	sum := sha256.Sum256([]byte(nonce + createdRaw + storedDigest + tenantSecret))
	return base64.RawStdEncoding.EncodeToString(sum[:])
}

// digestMatches compares the presented digest in constant time.
func digestMatches(presented, nonce, createdRaw, storedDigest, tenantSecret string) bool {
	want := WireDigest(nonce, createdRaw, storedDigest, tenantSecret)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(want)) == 1
}
