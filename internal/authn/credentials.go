// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authn

import (
	"net/http"
	"strings"
	"time"
)

// Request surface the chain recognizes credentials on.
const (
	// TokenHeader carries an access token.
	TokenHeader = "X-Arkivo-Token"

	// TokenQueryParam carries a link token.
	TokenQueryParam = "token"

	// DigestHeader carries a service-scoped digest credential, WSSE style:
	//   UsernameToken Account="a", Digest="d", Nonce="n", Created="t"
	DigestHeader = "X-Arkivo-Auth"

	// SessionCookie names the session cookie.
	SessionCookie = "arkivo_session"

	// csrfHeader must accompany browser-originated digest logins.
	csrfHeader = "X-Requested-With"

	// Browser digest login form fields.
	formAccount = "account"
	formDigest  = "digest"
	formNonce   = "nonce"
	formCreated = "created"
)

// credentialKind tags the credential recognized on a request. The chain
// dispatches on this tag instead of re-inspecting the request per branch.
type credentialKind int

const (
	credNone credentialKind = iota
	credAccessToken
	credLinkToken
	credBrowserDigest
	credServiceDigest
	credSession
)

// digestCredential is the username/digest/nonce/created quadruple shared by
// both digest sub-variants.
type digestCredential struct {
	Account string
	Digest  string
	Nonce   string
	Created time.Time

	// CreatedRaw is the timestamp exactly as presented; the wire digest is
	// computed over this string, not a reformatted one.
	CreatedRaw string

	// malformed is set when the quadruple was present but unparseable;
	// the branch fails immediately instead of falling through.
	malformed bool
}

// credential is the tagged union of everything a request may present.
type credential struct {
	kind      credentialKind
	token     string
	digest    digestCredential
	sessionID string
}

// recognizeCredential inspects the request once, in fixed priority order,
// and returns the first credential found. Branches are mutually exclusive:
// a present-but-malformed credential still claims its branch.
func recognizeCredential(r *http.Request) credential {
	if tok := r.Header.Get(TokenHeader); tok != "" {
		return credential{kind: credAccessToken, token: tok}
	}
	if tok := r.URL.Query().Get(TokenQueryParam); tok != "" {
		return credential{kind: credLinkToken, token: tok}
	}
	if raw := r.Header.Get(DigestHeader); raw != "" {
		return credential{kind: credServiceDigest, digest: parseDigestHeader(raw)}
	}
	if d, ok := parseDigestForm(r); ok {
		return credential{kind: credBrowserDigest, digest: d}
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return credential{kind: credSession, sessionID: c.Value}
	}
	return credential{kind: credNone}
}

// parseDigestHeader parses the WSSE-style header value. Any missing field
// marks the credential malformed.
func parseDigestHeader(raw string) digestCredential {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "UsernameToken"))

	fields := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		fields[strings.ToLower(k)] = strings.Trim(v, `"`)
	}

	return buildDigestCredential(
		fields["account"], fields["digest"], fields["nonce"], fields["created"])
}

// parseDigestForm recognizes the browser login form. Returns ok=false when
// no digest fields are present at all.
func parseDigestForm(r *http.Request) (digestCredential, bool) {
	if r.Method != http.MethodPost {
		return digestCredential{}, false
	}
	if err := r.ParseForm(); err != nil {
		return digestCredential{}, false
	}
	account := r.PostFormValue(formAccount)
	digest := r.PostFormValue(formDigest)
	if account == "" && digest == "" {
		return digestCredential{}, false
	}
	return buildDigestCredential(
		account, digest, r.PostFormValue(formNonce), r.PostFormValue(formCreated)), true
}

// buildDigestCredential assembles the quadruple, marking it malformed when
// any field is missing or the timestamp does not parse.
func buildDigestCredential(account, digest, nonce, created string) digestCredential {
	cred := digestCredential{Account: account, Digest: digest, Nonce: nonce, CreatedRaw: created}
	if account == "" || digest == "" || nonce == "" || created == "" {
		cred.malformed = true
		return cred
	}
	ts, err := time.Parse(time.RFC3339, created)
	if err != nil {
		cred.malformed = true
		return cred
	}
	cred.Created = ts
	return cred
}

// replayKey derives the one-time-use counter key material from the
// credential itself: the digest is unique per nonce/created pair.
func (d digestCredential) replayKey() string {
	return d.Account + "/" + d.Digest
}

// hasCSRFHeader reports whether the browser-variant CSRF indicator is set.
func hasCSRFHeader(r *http.Request) bool {
	return r.Header.Get(csrfHeader) != ""
}
