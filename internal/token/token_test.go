// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package token

import (
	"strings"
	"testing"
)

func TestMintVerifyRoundtrip(t *testing.T) {
	tok := Mint("u1", "secret-key", []string{"/"})
	if tok == "" {
		t.Fatal("Mint() returned empty token")
	}
	if got := PrincipalID(tok); got != "u1" {
		t.Errorf("PrincipalID() = %q, want %q", got, "u1")
	}
	if !VerifyRoot("secret-key", tok) {
		t.Error("VerifyRoot() = false for freshly minted access token")
	}
	if Verify("secret-key", "/docs/1", tok) {
		t.Error("Verify() = true for path outside token scope")
	}
}

func TestMintMultiplePaths(t *testing.T) {
	tok := Mint("u1", "secret-key", []string{"/docs/1", "/docs/2"})

	for _, path := range []string{"/docs/1", "/docs/2"} {
		if !Verify("secret-key", path, tok) {
			t.Errorf("Verify(%q) = false, want true", path)
		}
	}
	if Verify("secret-key", "/docs/3", tok) {
		t.Error("Verify() = true for unlisted path")
	}
	if VerifyRoot("secret-key", tok) {
		t.Error("VerifyRoot() = true for link token")
	}
}

func TestVerifyPathNormalization(t *testing.T) {
	// The hash is computed over the normalized path, so variant spellings
	// of the same resource verify identically.
	tok := Mint("u1", "secret-key", []string{"/docs/1"})
	for _, path := range []string{"/docs/1", "/docs/1/", "docs/1"} {
		if !Verify("secret-key", path, tok) {
			t.Errorf("Verify(%q) = false, want true", path)
		}
	}
}

func TestRotationInvalidatesTokens(t *testing.T) {
	tok := Mint("u1", "old-secret", []string{"/"})
	if !VerifyRoot("old-secret", tok) {
		t.Fatal("token should verify under its minting secret")
	}
	if VerifyRoot("new-secret", tok) {
		t.Error("token still verifies after secret rotation")
	}
}

func TestVerifyMalformed(t *testing.T) {
	valid := Mint("u1", "secret-key", []string{"/"})

	tests := []struct {
		name string
		tok  string
	}{
		{"empty", ""},
		{"no delimiter", "justsometext"},
		{"leading delimiter", ":" + strings.SplitN(valid, ":", 2)[1]},
		{"trailing delimiter", "u1:"},
		{"garbage hashes", "u1:xxxx-yyyy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Verify("secret-key", "/", tt.tok) {
				t.Errorf("Verify(%q) = true, want false", tt.tok)
			}
		})
	}
}

func TestPrincipalID(t *testing.T) {
	tests := []struct {
		tok  string
		want string
	}{
		{"u1:abc", "u1"},
		{"u1:abc-def", "u1"},
		{":abc", ""},
		{"nodelimiter", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := PrincipalID(tt.tok); got != tt.want {
			t.Errorf("PrincipalID(%q) = %q, want %q", tt.tok, got, tt.want)
		}
	}
}

func TestMintEmptySecret(t *testing.T) {
	if tok := Mint("u1", "", []string{"/"}); tok != "" {
		t.Errorf("Mint() with empty secret = %q, want empty", tok)
	}
	if Verify("", "/", "u1:whatever") {
		t.Error("Verify() with empty secret = true, want false")
	}
}

func TestHashAlphabetExcludesJoiner(t *testing.T) {
	// The joiner must never appear inside a hash segment, or multi-path
	// tokens would be ambiguous. RawStdEncoding guarantees this.
	for _, path := range []string{"/", "/a", "/a/b", "/deep/nested/path/x"} {
		h := pathHash("secret", path)
		if strings.Contains(h, hashJoiner) {
			t.Fatalf("pathHash(%q) contains joiner %q: %s", path, hashJoiner, h)
		}
	}
}

func TestNewAccessKey(t *testing.T) {
	k1, err := NewAccessKey()
	if err != nil {
		t.Fatalf("NewAccessKey() error: %v", err)
	}
	k2, err := NewAccessKey()
	if err != nil {
		t.Fatalf("NewAccessKey() error: %v", err)
	}
	if k1 == k2 {
		t.Error("two generated access keys are identical")
	}
	if len(k1) < 40 {
		t.Errorf("access key suspiciously short: %d chars", len(k1))
	}
}
