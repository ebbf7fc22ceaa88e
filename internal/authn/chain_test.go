// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/arkivo-dms/arkivo/internal/config"
	"github.com/arkivo-dms/arkivo/internal/guard"
	"github.com/arkivo-dms/arkivo/internal/store"
	"github.com/arkivo-dms/arkivo/internal/token"
)

const (
	testTenant = "acme"
	testSecret = "tenant-secret"
)

type chainFixture struct {
	entries  *store.MemoryEntryStore
	sessions *MemorySessionStore
	guard    *guard.Guard
	cfg      *config.Config
	chain    *Chain
	prov     *Provisioner
}

func newChainFixture(t *testing.T, captcha guard.CaptchaCheck) *chainFixture {
	t.Helper()

	cfg := config.Default()
	cfg.Tenants = map[string]config.TenantConfig{
		testTenant: {
			SharedSecret:     testSecret,
			CaptchaThreshold: 2,
			MaxUseOverrides: []config.MaxUseOverride{
				{PathPattern: "/feeds/*", MaxUses: 3},
			},
		},
		"globex": {SharedSecret: "other-secret"},
	}

	f := &chainFixture{
		entries:  store.NewMemoryEntryStore(),
		sessions: NewMemorySessionStore(),
		cfg:      cfg,
	}
	f.guard = guard.New(store.NewMemoryCounterStore(), cfg)

	chain, err := NewChain(f.entries, f.sessions, f.guard, captcha, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	f.chain = chain
	f.prov = NewProvisioner(f.entries)
	return f
}

// mustUser provisions a user and returns its id and access key.
func (f *chainFixture) mustUser(t *testing.T, params CreateUserParams) (string, string) {
	t.Helper()
	userID, accessKey, err := f.prov.CreateUser(context.Background(), testTenant, params)
	if err != nil {
		t.Fatal(err)
	}
	return userID, accessKey
}

// digestFields computes a valid wire credential for the given account.
func digestFields(account, password, tenantSecret string) (digest, nonce, created string) {
	nonce = "nonce-" + account
	created = time.Now().UTC().Format(time.RFC3339)
	stored := DerivePasswordDigest(NormalizeAccount(account), password)
	return WireDigest(nonce, created, stored, tenantSecret), nonce, created
}

// browserLogin builds a browser-variant login request with the CSRF header.
func browserLogin(account, digest, nonce, created string) *http.Request {
	r := digestForm(account, digest, nonce, created)
	r.Header.Set(csrfHeader, "XMLHttpRequest")
	return r
}

// serviceRequest builds a request carrying the service digest header.
func serviceRequest(target, account, digest, nonce, created string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.Header.Set(DigestHeader,
		`UsernameToken Account="`+account+`", Digest="`+digest+`", Nonce="`+nonce+`", Created="`+created+`"`)
	return r
}

func TestAuthenticateAnonymous(t *testing.T) {
	f := newChainFixture(t, nil)

	p, err := f.chain.Authenticate(context.Background(),
		httptest.NewRequest(http.MethodGet, "/docs/1", nil), testTenant)
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsAnonymous() || p.Scheme != SchemeAnonymous {
		t.Errorf("principal = %+v, want anonymous", p)
	}
	if p.Tenant != testTenant {
		t.Errorf("Tenant = %q", p.Tenant)
	}
}

func TestAuthenticateAccessToken(t *testing.T) {
	f := newChainFixture(t, nil)
	userID, accessKey := f.mustUser(t, CreateUserParams{
		Account: "alice", Password: "pw123456", Groups: []string{"/staff"},
	})

	r := httptest.NewRequest(http.MethodGet, "/docs/1", nil)
	r.Header.Set(TokenHeader, token.Mint(userID, accessKey, []string{token.RootPath}))

	p, err := f.chain.Authenticate(context.Background(), r, testTenant)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != userID || p.Account != "alice" || p.Scheme != SchemeAccessToken {
		t.Errorf("principal = %+v", p)
	}
	if !p.InGroup("/staff") {
		t.Error("groups not resolved from the identity record")
	}
	if p.SessionID != "" {
		t.Error("token scheme materialized a session")
	}
	if p.LinkTokenPath != "" {
		t.Error("access token carries a link scope")
	}
}

func TestAuthenticateAccessTokenRejected(t *testing.T) {
	f := newChainFixture(t, nil)
	userID, _ := f.mustUser(t, CreateUserParams{Account: "alice", Password: "pw123456"})

	r := httptest.NewRequest(http.MethodGet, "/docs/1", nil)
	r.Header.Set(TokenHeader, token.Mint(userID, "wrong-secret", []string{token.RootPath}))

	_, err := f.chain.Authenticate(context.Background(), r, testTenant)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("err = %v, want ErrAuthenticationFailed", err)
	}
	if err.Error() != "authentication failed" {
		t.Errorf("error leaks detail: %q", err.Error())
	}

	// The rejection counted against the token's embedded identity.
	n, cerr := f.guard.FailureCount(context.Background(), userID, "192.0.2.1")
	if cerr != nil {
		t.Fatal(cerr)
	}
	if n != 1 {
		t.Errorf("failure count = %d, want 1", n)
	}
}

func TestAuthenticateLinkToken(t *testing.T) {
	f := newChainFixture(t, nil)
	userID, accessKey := f.mustUser(t, CreateUserParams{Account: "alice", Password: "pw123456"})
	linkToken := token.Mint(userID, accessKey, []string{"/docs/report"})

	r := httptest.NewRequest(http.MethodGet, "/docs/report?token="+url.QueryEscape(linkToken), nil)
	p, err := f.chain.Authenticate(context.Background(), r, testTenant)
	if err != nil {
		t.Fatal(err)
	}
	if p.Scheme != SchemeLinkToken {
		t.Errorf("Scheme = %q", p.Scheme)
	}
	if p.LinkTokenPath != "/docs/report" {
		t.Errorf("LinkTokenPath = %q", p.LinkTokenPath)
	}

	// The same token presented on a different path does not verify.
	other := httptest.NewRequest(http.MethodGet, "/docs/other?token="+url.QueryEscape(linkToken), nil)
	if _, err := f.chain.Authenticate(context.Background(), other, testTenant); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("off-scope link token accepted: %v", err)
	}
}

func TestAuthenticateBrowserDigest(t *testing.T) {
	f := newChainFixture(t, nil)
	userID, _ := f.mustUser(t, CreateUserParams{
		Account: "alice", Password: "hunter22", Groups: []string{"/staff"},
	})

	digest, nonce, created := digestFields("alice", "hunter22", testSecret)
	p, err := f.chain.Authenticate(context.Background(),
		browserLogin("alice", digest, nonce, created), testTenant)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != userID || p.Scheme != SchemeBrowserDigest {
		t.Errorf("principal = %+v", p)
	}
	if p.SessionID == "" {
		t.Fatal("digest success did not establish a session")
	}
	if !p.InGroup("/staff") {
		t.Error("groups not resolved")
	}

	sess, err := f.sessions.Get(context.Background(), p.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if sess.UserID != userID || sess.Tenant != testTenant {
		t.Errorf("session = %+v", sess)
	}

	// A later request carrying only the cookie resolves via the session.
	r := httptest.NewRequest(http.MethodGet, "/docs/1", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: p.SessionID})
	p2, err := f.chain.Authenticate(context.Background(), r, testTenant)
	if err != nil {
		t.Fatal(err)
	}
	if p2.Scheme != SchemeSession || p2.ID != userID {
		t.Errorf("session principal = %+v", p2)
	}
	if !p2.InGroup("/staff") {
		t.Error("session lost the login-time groups")
	}

	// A fresh digest login presenting the existing cookie reuses the session.
	digest, nonce, created = digestFields("alice", "hunter22", testSecret)
	again := browserLogin("alice", digest, nonce, created)
	again.AddCookie(&http.Cookie{Name: SessionCookie, Value: p.SessionID})
	p3, err := f.chain.Authenticate(context.Background(), again, testTenant)
	if err != nil {
		t.Fatal(err)
	}
	if p3.SessionID != p.SessionID {
		t.Errorf("login minted a new session %q alongside %q", p3.SessionID, p.SessionID)
	}
}

func TestBrowserDigestMissingCSRF(t *testing.T) {
	f := newChainFixture(t, nil)
	f.mustUser(t, CreateUserParams{Account: "alice", Password: "hunter22"})

	digest, nonce, created := digestFields("alice", "hunter22", testSecret)
	r := digestForm("alice", digest, nonce, created) // no X-Requested-With

	if _, err := f.chain.Authenticate(context.Background(), r, testTenant); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("err = %v, want ErrAuthenticationFailed", err)
	}
}

func TestDigestTimingRejected(t *testing.T) {
	f := newChainFixture(t, nil)
	f.mustUser(t, CreateUserParams{Account: "alice", Password: "hunter22"})

	// A correctly signed credential with a stale timestamp.
	nonce := "n1"
	created := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	stored := DerivePasswordDigest("alice", "hunter22")
	digest := WireDigest(nonce, created, stored, testSecret)

	_, err := f.chain.Authenticate(context.Background(),
		browserLogin("alice", digest, nonce, created), testTenant)
	if !errors.Is(err, ErrTimingRejected) {
		t.Errorf("err = %v, want ErrTimingRejected", err)
	}
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Error("timing rejection is not an authentication failure")
	}
}

func TestBrowserDigestWrongPassword(t *testing.T) {
	f := newChainFixture(t, nil)
	userID, _ := f.mustUser(t, CreateUserParams{Account: "alice", Password: "hunter22"})
	ctx := context.Background()

	digest, nonce, created := digestFields("alice", "wrong-password", testSecret)
	if _, err := f.chain.Authenticate(ctx, browserLogin("alice", digest, nonce, created), testTenant); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("err = %v, want ErrAuthenticationFailed", err)
	}
	if n, _ := f.guard.FailureCount(ctx, userID, "192.0.2.1"); n != 1 {
		t.Errorf("failure count = %d, want 1", n)
	}

	// A successful login clears the counter.
	digest, nonce, created = digestFields("alice", "hunter22", testSecret)
	if _, err := f.chain.Authenticate(ctx, browserLogin("alice", digest, nonce, created), testTenant); err != nil {
		t.Fatal(err)
	}
	if n, _ := f.guard.FailureCount(ctx, userID, "192.0.2.1"); n != 0 {
		t.Errorf("failure count after success = %d, want 0", n)
	}
}

// staticCaptcha answers every verification the same way.
type staticCaptcha struct {
	ok  bool
	err error
}

func (c staticCaptcha) Verify(ctx context.Context, r *http.Request, action string) (bool, error) {
	return c.ok, c.err
}

func TestCaptchaEscalation(t *testing.T) {
	f := newChainFixture(t, staticCaptcha{ok: false})
	userID, _ := f.mustUser(t, CreateUserParams{Account: "alice", Password: "hunter22"})
	ctx := context.Background()

	// Reach the tenant's threshold of 2 recorded failures.
	for i := 0; i < 2; i++ {
		digest, nonce, created := digestFields("alice", "wrong-password", testSecret)
		if _, err := f.chain.Authenticate(ctx, browserLogin("alice", digest, nonce, created), testTenant); !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if n, _ := f.guard.FailureCount(ctx, userID, "192.0.2.1"); n != 2 {
		t.Fatalf("failure count = %d, want 2", n)
	}

	// Correct password is no longer enough while the captcha rejects.
	digest, nonce, created := digestFields("alice", "hunter22", testSecret)
	if _, err := f.chain.Authenticate(ctx, browserLogin("alice", digest, nonce, created), testTenant); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("escalated login without captcha: err = %v", err)
	}

	// Same state, approving captcha: login succeeds and clears the counter.
	passing, err := NewChain(f.entries, f.sessions, f.guard, staticCaptcha{ok: true}, f.cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	digest, nonce, created = digestFields("alice", "hunter22", testSecret)
	p, err := passing.Authenticate(ctx, browserLogin("alice", digest, nonce, created), testTenant)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != userID {
		t.Errorf("principal = %+v", p)
	}
	if n, _ := f.guard.FailureCount(ctx, userID, "192.0.2.1"); n != 0 {
		t.Errorf("failure count after escalated success = %d, want 0", n)
	}
}

func TestServiceDigestReplay(t *testing.T) {
	f := newChainFixture(t, nil)
	userID, _ := f.mustUser(t, CreateUserParams{Account: "svc", Password: "hunter22"})
	ctx := context.Background()

	digest, nonce, created := digestFields("svc", "hunter22", testSecret)

	p, err := f.chain.Authenticate(ctx,
		serviceRequest("/status", "svc", digest, nonce, created), testTenant)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != userID || p.Scheme != SchemeServiceDigest {
		t.Errorf("principal = %+v", p)
	}

	// The same credential replayed on a default-limit path is rejected.
	_, err = f.chain.Authenticate(ctx,
		serviceRequest("/status", "svc", digest, nonce, created), testTenant)
	if !errors.Is(err, ErrReplayDetected) {
		t.Errorf("replay err = %v, want ErrReplayDetected", err)
	}
}

func TestServiceDigestUseOverride(t *testing.T) {
	f := newChainFixture(t, nil)
	f.mustUser(t, CreateUserParams{Account: "svc", Password: "hunter22"})
	ctx := context.Background()

	// /feeds/* allows three uses of one credential.
	digest, nonce, created := digestFields("svc", "hunter22", testSecret)
	for i := 0; i < 3; i++ {
		if _, err := f.chain.Authenticate(ctx,
			serviceRequest("/feeds/updates", "svc", digest, nonce, created), testTenant); err != nil {
			t.Fatalf("use %d: %v", i+1, err)
		}
	}
	_, err := f.chain.Authenticate(ctx,
		serviceRequest("/feeds/updates", "svc", digest, nonce, created), testTenant)
	if !errors.Is(err, ErrReplayDetected) {
		t.Errorf("fourth use err = %v, want ErrReplayDetected", err)
	}
}

func TestSessionTenantMismatch(t *testing.T) {
	f := newChainFixture(t, nil)
	f.mustUser(t, CreateUserParams{Account: "alice", Password: "hunter22"})
	ctx := context.Background()

	digest, nonce, created := digestFields("alice", "hunter22", testSecret)
	p, err := f.chain.Authenticate(ctx, browserLogin("alice", digest, nonce, created), testTenant)
	if err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodGet, "/docs/1", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: p.SessionID})
	if _, err := f.chain.Authenticate(ctx, r, "globex"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("cross-tenant session err = %v, want ErrAuthenticationFailed", err)
	}
}

func TestSessionRefresh(t *testing.T) {
	f := newChainFixture(t, nil)
	f.mustUser(t, CreateUserParams{Account: "alice", Password: "hunter22"})
	ctx := context.Background()

	digest, nonce, created := digestFields("alice", "hunter22", testSecret)
	p, err := f.chain.Authenticate(ctx, browserLogin("alice", digest, nonce, created), testTenant)
	if err != nil {
		t.Fatal(err)
	}
	before, err := f.sessions.Get(ctx, p.SessionID)
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)

	r := httptest.NewRequest(http.MethodGet, "/docs/1", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: p.SessionID})
	if _, err := f.chain.Authenticate(ctx, r, testTenant); err != nil {
		t.Fatal(err)
	}

	after, err := f.sessions.Get(ctx, p.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ExpiresAt.After(before.ExpiresAt) {
		t.Error("session expiry was not extended")
	}
	if !after.LastAccessedAt.After(before.LastAccessedAt) {
		t.Error("LastAccessedAt was not refreshed")
	}
}

func TestSessionUserRemoved(t *testing.T) {
	f := newChainFixture(t, nil)
	userID, _ := f.mustUser(t, CreateUserParams{Account: "alice", Password: "hunter22"})
	ctx := context.Background()

	digest, nonce, created := digestFields("alice", "hunter22", testSecret)
	p, err := f.chain.Authenticate(ctx, browserLogin("alice", digest, nonce, created), testTenant)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.entries.Delete(ctx, UserPath(testTenant, userID)); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodGet, "/docs/1", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: p.SessionID})
	if _, err := f.chain.Authenticate(ctx, r, testTenant); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("err = %v, want ErrAuthenticationFailed", err)
	}
}

func TestPendingRegistrationFinalized(t *testing.T) {
	f := newChainFixture(t, nil)
	userID, accessKey := f.mustUser(t, CreateUserParams{
		Account: "alice", Password: "hunter22",
		Email: "alice@example.com", Pending: true,
	})
	ctx := context.Background()

	r := httptest.NewRequest(http.MethodGet, "/docs/1", nil)
	r.Header.Set(TokenHeader, token.Mint(userID, accessKey, []string{token.RootPath}))
	if _, err := f.chain.Authenticate(ctx, r, testTenant); err != nil {
		t.Fatal(err)
	}

	user, err := f.entries.Get(ctx, UserPath(testTenant, userID))
	if err != nil {
		t.Fatal(err)
	}
	if user.Attr(AttrPending) != "" {
		t.Error("pending flag survived the first successful login")
	}
	if user.Attr(AttrEmail) != "alice@example.com" {
		t.Error("finalization clobbered other attributes")
	}
}

func TestAdminIPAllowlist(t *testing.T) {
	cfg := config.Default()
	cfg.Tenants = map[string]config.TenantConfig{testTenant: {SharedSecret: testSecret}}
	cfg.Security.AdminIPAllowlist = []string{"10.0.0.0/8"}

	entries := store.NewMemoryEntryStore()
	g := guard.New(store.NewMemoryCounterStore(), cfg)
	chain, err := NewChain(entries, NewMemorySessionStore(), g, nil, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	prov := NewProvisioner(entries)
	ctx := context.Background()

	userID, accessKey, err := prov.CreateUser(ctx, testTenant, CreateUserParams{
		Account: "root", Password: "pw123456", Groups: []string{cfg.Security.AdminGroup},
	})
	if err != nil {
		t.Fatal(err)
	}
	tok := token.Mint(userID, accessKey, []string{token.RootPath})

	// httptest's default peer 192.0.2.1 is outside the allowlist.
	r := httptest.NewRequest(http.MethodGet, "/docs/1", nil)
	r.Header.Set(TokenHeader, tok)
	if _, err := chain.Authenticate(ctx, r, testTenant); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("admin from disallowed IP: err = %v", err)
	}

	r = httptest.NewRequest(http.MethodGet, "/docs/1", nil)
	r.Header.Set(TokenHeader, tok)
	r.RemoteAddr = "10.1.2.3:4711"
	if _, err := chain.Authenticate(ctx, r, testTenant); err != nil {
		t.Errorf("admin from allowed IP: err = %v", err)
	}

	// Non-admin users are unaffected by the allowlist.
	plainID, plainKey, err := prov.CreateUser(ctx, testTenant, CreateUserParams{Account: "bob", Password: "pw123456"})
	if err != nil {
		t.Fatal(err)
	}
	r = httptest.NewRequest(http.MethodGet, "/docs/1", nil)
	r.Header.Set(TokenHeader, token.Mint(plainID, plainKey, []string{token.RootPath}))
	if _, err := chain.Authenticate(ctx, r, testTenant); err != nil {
		t.Errorf("non-admin from disallowed IP: err = %v", err)
	}
}

func TestLogout(t *testing.T) {
	f := newChainFixture(t, nil)
	f.mustUser(t, CreateUserParams{Account: "alice", Password: "hunter22"})
	ctx := context.Background()

	digest, nonce, created := digestFields("alice", "hunter22", testSecret)
	p, err := f.chain.Authenticate(ctx, browserLogin("alice", digest, nonce, created), testTenant)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.chain.Logout(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := f.sessions.Get(ctx, p.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("session survives logout: %v", err)
	}

	// Logging out again, or without a session, is a no-op.
	if err := f.chain.Logout(ctx, p); err != nil {
		t.Errorf("second logout = %v", err)
	}
	if err := f.chain.Logout(ctx, nil); err != nil {
		t.Errorf("nil logout = %v", err)
	}
	if err := f.chain.Logout(ctx, AnonymousPrincipal(testTenant)); err != nil {
		t.Errorf("anonymous logout = %v", err)
	}
}

// failingEntryStore rejects every call, modelling an unreachable backend.
type failingEntryStore struct{}

var errBackendDown = errors.New("backend down")

func (failingEntryStore) Get(ctx context.Context, path string) (*store.Entry, error) {
	return nil, errBackendDown
}

func (failingEntryStore) Put(ctx context.Context, entries ...*store.Entry) error {
	return errBackendDown
}

func (failingEntryStore) Delete(ctx context.Context, path string) error {
	return errBackendDown
}

func (failingEntryStore) AncestorChain(ctx context.Context, path string) ([]*store.Entry, error) {
	return nil, errBackendDown
}

func TestInfraErrorIsNotAuthError(t *testing.T) {
	cfg := config.Default()
	cfg.Tenants = map[string]config.TenantConfig{testTenant: {SharedSecret: testSecret}}
	g := guard.New(store.NewMemoryCounterStore(), cfg)
	chain, err := NewChain(failingEntryStore{}, NewMemorySessionStore(), g, nil, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodGet, "/docs/1", nil)
	r.Header.Set(TokenHeader, token.Mint("u1", "secret", []string{token.RootPath}))

	_, err = chain.Authenticate(context.Background(), r, testTenant)
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrAuthenticationFailed) {
		t.Error("store outage misreported as a credential rejection")
	}
	if !errors.Is(err, errBackendDown) {
		t.Errorf("cause not preserved: %v", err)
	}
	if !strings.Contains(err.Error(), "backend down") {
		t.Errorf("err = %v", err)
	}
}

func TestSweepSessions(t *testing.T) {
	f := newChainFixture(t, nil)
	ctx := context.Background()
	p := &Principal{ID: "u1", Account: "alice", Tenant: testTenant}

	if err := f.sessions.Create(ctx, NewSession(p, -time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := f.sessions.Create(ctx, NewSession(p, time.Hour)); err != nil {
		t.Fatal(err)
	}

	removed, err := f.chain.SweepSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}
