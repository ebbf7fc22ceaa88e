// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/arkivo-dms/arkivo/internal/config"
	"github.com/arkivo-dms/arkivo/internal/guard"
	"github.com/arkivo-dms/arkivo/internal/logging"
	"github.com/arkivo-dms/arkivo/internal/store"
	"github.com/arkivo-dms/arkivo/internal/token"
)

// Well-known attribute names on identity entries.
const (
	// AttrAccessKey is the per-user secret bearer tokens are derived from.
	AttrAccessKey = "access_key"

	// AttrPasswordDigest is the stored digest for the password schemes.
	AttrPasswordDigest = "password_digest"

	// AttrAccount is the user's account name.
	AttrAccount = "account"

	// AttrGroups is the comma-separated list of group paths.
	AttrGroups = "groups"

	// AttrEmail is the user's notification address.
	AttrEmail = "email"

	// AttrUserID points from an account index entry to the user id.
	AttrUserID = "user_id"

	// AttrPending marks a registration awaiting its first successful login.
	AttrPending = "pending_registration"

	// AttrExternal marks users outside the tenant's own organization.
	AttrExternal = "external"
)

// UserPath returns the entry-store path of a user record. Identity records
// live under the /sys prefix, which is never a resource path, so they do
// not appear in ACL ancestor chains.
func UserPath(tenant, userID string) string {
	return "/sys/" + tenant + "/users/" + userID
}

// AccountPath returns the entry-store path of an account index record.
func AccountPath(tenant, account string) string {
	return "/sys/" + tenant + "/accounts/" + NormalizeAccount(account)
}

// NormalizeAccount canonicalizes an account name for lookup and matching.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

// Chain resolves a Principal for each inbound request by trying the five
// authentication schemes in fixed priority order. The chain never rejects a
// request merely for lacking credentials; that decision belongs to the ACL
// evaluator.
type Chain struct {
	entries  store.EntryStore
	sessions SessionStore
	guard    *guard.Guard
	captcha  guard.CaptchaCheck
	cfg      *config.Config
	mail     store.MailDispatch
	security *logging.SecurityLogger

	adminNets []*net.IPNet
}

// NewChain wires the authentication chain. A nil captcha defaults to the
// permissive check; a nil mail dispatch defaults to log-only delivery.
func NewChain(entries store.EntryStore, sessions SessionStore, g *guard.Guard, captcha guard.CaptchaCheck, cfg *config.Config, mail store.MailDispatch) (*Chain, error) {
	if captcha == nil {
		captcha = guard.PermissiveCaptcha{}
	}
	if mail == nil {
		mail = store.LogMailDispatch{}
	}

	nets := make([]*net.IPNet, 0, len(cfg.Security.AdminIPAllowlist))
	for _, cidr := range cfg.Security.AdminIPAllowlist {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("%w: admin allowlist entry %q: %v", config.ErrInvalid, cidr, err)
		}
		nets = append(nets, n)
	}

	return &Chain{
		entries:   entries,
		sessions:  sessions,
		guard:     g,
		captcha:   captcha,
		cfg:       cfg,
		mail:      mail,
		security:  logging.NewSecurityLogger(),
		adminNets: nets,
	}, nil
}

// Authenticate resolves the request's Principal.
//
// Failures split into two kinds: an *AuthError means the presented
// credential was rejected (a failure counter was recorded and the generic
// "authentication failed" is all the caller may show); any other error is an
// infrastructure fault (store unreachable, context canceled) and is
// retryable without counting against the identity.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request, tenant string) (*Principal, error) {
	start := time.Now()
	ip := clientIP(r)

	p, err := c.dispatch(ctx, r, tenant, ip)
	if err == nil && p != nil && !p.IsAnonymous() {
		err = c.afterIdentity(ctx, p, ip)
	}

	scheme := SchemeAnonymous
	if p != nil {
		scheme = p.Scheme
	}

	var aerr *AuthError
	if errors.As(err, &aerr) {
		if aerr.Scheme != "" {
			scheme = aerr.Scheme
		}
		if aerr.Identity != "" {
			if _, rerr := c.guard.RecordFailure(ctx, tenant, aerr.Identity, ip); rerr != nil {
				logging.Ctx(ctx).Error().Err(rerr).Msg("record failure counter")
			}
		}
		c.security.LogEvent(&logging.SecurityEvent{
			Event:     "auth_failure",
			UserID:    aerr.Identity,
			Tenant:    tenant,
			Scheme:    string(scheme),
			IPAddress: ip,
			Reason:    aerr.Reason,
		})
		AuthAttempts.WithLabelValues(string(scheme), "failure").Inc()
		AuthDuration.WithLabelValues(string(scheme)).Observe(time.Since(start).Seconds())
		return nil, aerr
	}
	if err != nil {
		AuthAttempts.WithLabelValues(string(scheme), "error").Inc()
		return nil, err
	}

	if !p.IsAnonymous() {
		if n, cerr := c.guard.FailureCount(ctx, p.ID, ip); cerr == nil && n > 0 {
			if cerr := c.guard.ClearFailure(ctx, p.ID, ip); cerr != nil {
				logging.Ctx(ctx).Error().Err(cerr).Msg("clear failure counter")
			}
		}
		c.security.LogEvent(&logging.SecurityEvent{
			Event:     "auth_success",
			UserID:    p.ID,
			Account:   p.Account,
			Tenant:    tenant,
			Scheme:    string(p.Scheme),
			SessionID: p.SessionID,
			IPAddress: ip,
			Success:   true,
		})
	}
	AuthAttempts.WithLabelValues(string(p.Scheme), "success").Inc()
	AuthDuration.WithLabelValues(string(p.Scheme)).Observe(time.Since(start).Seconds())
	return p, nil
}

// dispatch recognizes the credential and runs exactly one branch. Branches
// are mutually exclusive: the first credential present claims the request.
func (c *Chain) dispatch(ctx context.Context, r *http.Request, tenant, ip string) (*Principal, error) {
	cred := recognizeCredential(r)

	switch cred.kind {
	case credAccessToken:
		return c.authenticateToken(ctx, tenant, cred.token, token.RootPath, SchemeAccessToken)
	case credLinkToken:
		return c.authenticateToken(ctx, tenant, cred.token, r.URL.Path, SchemeLinkToken)
	case credBrowserDigest:
		return c.authenticateDigest(ctx, r, tenant, cred.digest, SchemeBrowserDigest, ip)
	case credServiceDigest:
		return c.authenticateDigest(ctx, r, tenant, cred.digest, SchemeServiceDigest, ip)
	case credSession:
		return c.authenticateSession(ctx, tenant, cred.sessionID)
	default:
		return AnonymousPrincipal(tenant), nil
	}
}

// authenticateToken handles both token schemes; only the verified path
// differs. Token failures are counted against the token's embedded user id,
// not the identity/IP pair, because the token itself names the identity.
func (c *Chain) authenticateToken(ctx context.Context, tenant, tok, path string, scheme Scheme) (*Principal, error) {
	uid := token.PrincipalID(tok)
	if uid == "" {
		return nil, failed(scheme, "", "malformed_token")
	}

	user, err := c.userByID(ctx, tenant, uid)
	if errors.Is(err, store.ErrEntryNotFound) {
		return nil, failed(scheme, uid, "unknown_user")
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", uid, err)
	}

	secret := user.Attr(AttrAccessKey)
	if secret == "" {
		return nil, failed(scheme, uid, "no_access_key")
	}
	if !token.Verify(secret, path, tok) {
		return nil, failed(scheme, uid, "token_verification_failed")
	}

	p := &Principal{
		ID:       uid,
		Account:  user.Attr(AttrAccount),
		Scheme:   scheme,
		Tenant:   tenant,
		External: user.Attr(AttrExternal) == "true",
	}
	if scheme == SchemeLinkToken {
		// A link token authorizes exactly one operation context; record
		// which path it was so later layers can scope it.
		p.LinkTokenPath = store.NormalizePath(path)
	}
	return p, nil
}

// authenticateDigest runs the shared verification routine for both digest
// sub-variants. The browser variant adds the CSRF requirement and captcha
// escalation; the service variant adds one-time-use accounting.
func (c *Chain) authenticateDigest(ctx context.Context, r *http.Request, tenant string, d digestCredential, scheme Scheme, ip string) (*Principal, error) {
	if d.malformed {
		return nil, failed(scheme, d.Account, "malformed_credential")
	}
	if !c.guard.IsFresh(d.Created) {
		return nil, failedWith(scheme, d.Account, "timing_rejected", ErrTimingRejected)
	}

	uid, err := c.resolveAccount(ctx, tenant, d.Account)
	if errors.Is(err, store.ErrEntryNotFound) {
		return nil, failed(scheme, d.Account, "unknown_account")
	}
	if err != nil {
		return nil, fmt.Errorf("resolve account %s: %w", d.Account, err)
	}

	failures, err := c.guard.FailureCount(ctx, uid, ip)
	if err != nil {
		return nil, fmt.Errorf("read failure counter: %w", err)
	}

	if scheme == SchemeBrowserDigest {
		if !hasCSRFHeader(r) {
			return nil, failed(scheme, uid, "missing_csrf_header")
		}
		if threshold := c.guard.CaptchaThreshold(tenant); threshold > 0 && failures >= int64(threshold) {
			guard.CaptchaEscalations.Inc()
			ok, verr := c.captcha.Verify(ctx, r, "login")
			if verr != nil {
				return nil, failedWith(scheme, uid, "captcha_unavailable", verr)
			}
			if !ok {
				return nil, failed(scheme, uid, "captcha_failed")
			}
		}
	}

	user, err := c.userByID(ctx, tenant, uid)
	if errors.Is(err, store.ErrEntryNotFound) {
		return nil, failed(scheme, uid, "unknown_user")
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", uid, err)
	}

	storedDigest := user.Attr(AttrPasswordDigest)
	if storedDigest == "" {
		return nil, failed(scheme, uid, "no_password_digest")
	}

	tcfg, ok := c.cfg.Tenant(tenant)
	if !ok {
		return nil, failed(scheme, uid, "unknown_tenant")
	}
	if !digestMatches(d.Digest, d.Nonce, d.CreatedRaw, storedDigest, tcfg.SharedSecret) {
		return nil, failed(scheme, uid, "digest_mismatch")
	}

	if scheme == SchemeServiceDigest {
		uses, err := c.guard.UseCount(ctx, d.replayKey(), tenant, c.guard.FreshnessWindow())
		if err != nil {
			return nil, fmt.Errorf("use counter: %w", err)
		}
		if uses > int64(c.guard.MaxAllowedUses(r.URL.Path, tenant)) {
			guard.ReplaysDetected.Inc()
			return nil, failedWith(scheme, uid, "replay_detected", ErrReplayDetected)
		}
	}

	p := &Principal{
		ID:       uid,
		Account:  NormalizeAccount(d.Account),
		Scheme:   scheme,
		Tenant:   tenant,
		External: user.Attr(AttrExternal) == "true",
	}

	// Session establishment is a side effect of digest success only; token
	// schemes never create sessions.
	sess, err := c.materializeSession(ctx, r, p)
	if err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}
	p.SessionID = sess.ID
	return p, nil
}

// materializeSession reuses a valid session already bound to this user, or
// creates a fresh one.
func (c *Chain) materializeSession(ctx context.Context, r *http.Request, p *Principal) (*Session, error) {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		if sess, err := c.sessions.Get(ctx, cookie.Value); err == nil &&
			sess.UserID == p.ID && sess.Tenant == p.Tenant {
			return sess, nil
		}
	}

	sess := NewSession(p, c.cfg.Security.SessionTTL)
	if err := c.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	ActiveSessions.Inc()
	return sess, nil
}

// authenticateSession resolves an established session and refreshes its
// expiry.
func (c *Chain) authenticateSession(ctx context.Context, tenant, sessionID string) (*Principal, error) {
	sess, err := c.sessions.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
		return nil, failed(SchemeSession, "", "session_invalid")
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Tenant != tenant {
		return nil, failed(SchemeSession, sess.UserID, "session_tenant_mismatch")
	}

	now := time.Now()
	sess.LastAccessedAt = now
	sess.ExpiresAt = now.Add(c.cfg.Security.SessionTTL)
	if err := c.sessions.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	return sess.ToPrincipal(), nil
}

// afterIdentity applies the cross-cutting steps once an identity is
// resolved: finalize a pending registration, populate groups, and enforce
// the administrative IP allowlist.
func (c *Chain) afterIdentity(ctx context.Context, p *Principal, ip string) error {
	user, err := c.userByID(ctx, p.Tenant, p.ID)
	if errors.Is(err, store.ErrEntryNotFound) {
		// Session-backed principals may outlive a deleted user.
		return failed(p.Scheme, p.ID, "user_removed")
	}
	if err != nil {
		return fmt.Errorf("load user %s: %w", p.ID, err)
	}

	if user.Attr(AttrPending) == "true" {
		if err := c.finalizeRegistration(ctx, p.Tenant, user); err != nil {
			return fmt.Errorf("finalize registration: %w", err)
		}
	}

	// Sessions carry the groups captured at login; every other scheme
	// resolves them from the identity record now.
	if p.Scheme != SchemeSession {
		p.Groups = parseGroups(user.Attr(AttrGroups))
	}

	if len(c.adminNets) > 0 && p.InGroup(c.cfg.Security.AdminGroup) && !c.ipAllowed(ip) {
		return failed(p.Scheme, p.ID, "admin_ip_denied")
	}
	return nil
}

// finalizeRegistration clears the pending flag and sends the best-effort
// welcome notification.
func (c *Chain) finalizeRegistration(ctx context.Context, tenant string, user *store.Entry) error {
	updated := *user
	updated.Attributes = make(map[string]string, len(user.Attributes))
	for k, v := range user.Attributes {
		updated.Attributes[k] = v
	}
	delete(updated.Attributes, AttrPending)

	if err := c.entries.Put(ctx, &updated); err != nil {
		return err
	}

	if email := user.Attr(AttrEmail); email != "" {
		if err := c.mail.Send(ctx, tenant, email, "Welcome to Arkivo", "Your registration is complete."); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("welcome notification failed")
		}
	}
	return nil
}

// Logout destroys the principal's session, if it has one. Principals from
// non-session schemes log out as a no-op.
func (c *Chain) Logout(ctx context.Context, p *Principal) error {
	if p == nil || p.SessionID == "" {
		return nil
	}
	if err := c.sessions.Delete(ctx, p.SessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	ActiveSessions.Dec()
	c.security.LogEvent(&logging.SecurityEvent{
		Event:     "logout",
		UserID:    p.ID,
		Account:   p.Account,
		Tenant:    p.Tenant,
		Scheme:    string(p.Scheme),
		SessionID: p.SessionID,
		Success:   true,
	})
	return nil
}

// SweepSessions removes expired sessions. Run periodically by the
// maintenance janitor.
func (c *Chain) SweepSessions(ctx context.Context) (int, error) {
	n, err := c.sessions.SweepExpired(ctx)
	if n > 0 {
		ActiveSessions.Sub(float64(n))
	}
	return n, err
}

// userByID loads a user identity record.
func (c *Chain) userByID(ctx context.Context, tenant, uid string) (*store.Entry, error) {
	return c.entries.Get(ctx, UserPath(tenant, uid))
}

// resolveAccount maps an account name to a user id via the account index.
func (c *Chain) resolveAccount(ctx context.Context, tenant, account string) (string, error) {
	idx, err := c.entries.Get(ctx, AccountPath(tenant, account))
	if err != nil {
		return "", err
	}
	uid := idx.Attr(AttrUserID)
	if uid == "" {
		return "", store.ErrEntryNotFound
	}
	return uid, nil
}

// ipAllowed reports whether ip falls inside the admin allowlist.
func (c *Chain) ipAllowed(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range c.adminNets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// parseGroups splits the comma-separated group attribute.
func parseGroups(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	groups := make([]string, 0, len(parts))
	for _, g := range parts {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// clientIP extracts the peer address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
