// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/arkivo-dms/arkivo/internal/authn"
	"github.com/arkivo-dms/arkivo/internal/authz"
	"github.com/arkivo-dms/arkivo/internal/config"
	"github.com/arkivo-dms/arkivo/internal/logging"
	"github.com/arkivo-dms/arkivo/internal/store"
)

// Handler implements the reference server's HTTP endpoints over the
// control-plane packages.
type Handler struct {
	entries     store.EntryStore
	eval        *authz.Evaluator
	chain       *authn.Chain
	provisioner *authn.Provisioner
	cfg         *config.Config
	validate    *validator.Validate
	started     time.Time
}

// NewHandler wires the endpoint set.
func NewHandler(entries store.EntryStore, eval *authz.Evaluator, chain *authn.Chain, prov *authn.Provisioner, cfg *config.Config) *Handler {
	return &Handler{
		entries:     entries,
		eval:        eval,
		chain:       chain,
		provisioner: prov,
		cfg:         cfg,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		started:     time.Now(),
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// HealthReady reports store reachability.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.entries.Get(r.Context(), "/"); err != nil && !errors.Is(err, store.ErrEntryNotFound) {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// whoamiResponse is the authenticated identity view.
type whoamiResponse struct {
	UserID    string   `json:"user_id,omitempty"`
	Account   string   `json:"account,omitempty"`
	Tenant    string   `json:"tenant,omitempty"`
	Scheme    string   `json:"scheme"`
	Groups    []string `json:"groups,omitempty"`
	External  bool     `json:"external,omitempty"`
	Anonymous bool     `json:"anonymous"`
}

// Whoami returns the caller's resolved principal.
func (h *Handler) Whoami(w http.ResponseWriter, r *http.Request) {
	p := authn.PrincipalFromContext(r.Context())
	if p == nil {
		p = authn.AnonymousPrincipal("")
	}
	writeJSON(w, http.StatusOK, whoamiResponse{
		UserID:    p.ID,
		Account:   p.Account,
		Tenant:    p.Tenant,
		Scheme:    string(p.Scheme),
		Groups:    p.Groups,
		External:  p.External,
		Anonymous: p.IsAnonymous(),
	})
}

// Logout destroys the caller's session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p := authn.PrincipalFromContext(r.Context())
	if err := h.chain.Logout(r.Context(), p); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("logout failed")
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authn.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// entryPath extracts and normalizes the wildcard entry path from the route.
func entryPath(r *http.Request) string {
	wild := chi.URLParam(r, "*")
	return store.NormalizePath("/" + wild)
}

// entryResponse is the wire form of an entry.
type entryResponse struct {
	Path       string            `json:"path"`
	Owner      string            `json:"owner,omitempty"`
	Aliases    []string          `json:"aliases,omitempty"`
	Rules      []string          `json:"rules,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func toEntryResponse(e *store.Entry) entryResponse {
	return entryResponse{
		Path:       e.Path,
		Owner:      e.Owner,
		Aliases:    e.Aliases,
		Rules:      e.Contributors,
		Attributes: e.Attributes,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// GetEntry reads one entry after a Read authorization check.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := authn.PrincipalFromContext(ctx)
	path := entryPath(r)

	if !h.authorize(w, r, p, path, authz.ActionRead) {
		return
	}

	entry, err := h.entries.Get(ctx, path)
	switch {
	case errors.Is(err, store.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		logging.Ctx(ctx).Error().Err(err).Str("path", path).Msg("entry read failed")
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

// entryRequest is the writable subset of an entry.
type entryRequest struct {
	Owner      string            `json:"owner"`
	Aliases    []string          `json:"aliases"`
	Rules      []string          `json:"rules"`
	Attributes map[string]string `json:"attributes"`
}

// PutEntry creates or updates an entry. A missing entry needs Create, an
// existing one Update.
func (h *Handler) PutEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := authn.PrincipalFromContext(ctx)
	path := entryPath(r)

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	// Reject malformed permission records up front so a bad write can never
	// poison later evaluations on this chain.
	for _, raw := range req.Rules {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, err := authz.ParseRule(raw); err != nil {
			writeError(w, http.StatusBadRequest, "malformed acl rule")
			return
		}
	}

	action := authz.ActionUpdate
	existing, err := h.entries.Get(ctx, path)
	switch {
	case errors.Is(err, store.ErrEntryNotFound):
		action = authz.ActionCreate
		existing = nil
	case err != nil:
		logging.Ctx(ctx).Error().Err(err).Str("path", path).Msg("entry read failed")
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}

	if !h.authorize(w, r, p, path, action) {
		return
	}

	now := time.Now().UTC()
	entry := &store.Entry{
		Path:         path,
		Owner:        req.Owner,
		Aliases:      req.Aliases,
		Contributors: req.Rules,
		Attributes:   req.Attributes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if existing != nil {
		entry.CreatedAt = existing.CreatedAt
	} else if entry.Owner == "" && p != nil {
		entry.Owner = p.ID
	}

	if err := h.entries.Put(ctx, entry); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("path", path).Msg("entry write failed")
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}

	status := http.StatusOK
	if action == authz.ActionCreate {
		status = http.StatusCreated
	}
	writeJSON(w, status, toEntryResponse(entry))
}

// DeleteEntry removes an entry after a Delete authorization check.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := authn.PrincipalFromContext(ctx)
	path := entryPath(r)

	if !h.authorize(w, r, p, path, authz.ActionDelete) {
		return
	}

	if _, err := h.entries.Get(ctx, path); errors.Is(err, store.ErrEntryNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch err := h.entries.Delete(ctx, path); {
	case err != nil:
		logging.Ctx(ctx).Error().Err(err).Str("path", path).Msg("entry delete failed")
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// authorize runs the access check and writes the response on deny or
// error. Returns true when the request may proceed.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, p *authn.Principal, path string, action authz.Action) bool {
	err := h.eval.CheckAccess(r.Context(), p, path, action)
	switch {
	case err == nil:
		return true
	case errors.Is(err, authz.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, authz.ErrPermissionDenied.Error())
	case errors.Is(err, config.ErrInvalid):
		logging.Ctx(r.Context()).Error().Err(err).Str("path", path).Msg("acl configuration invalid")
		writeError(w, http.StatusInternalServerError, "configuration error")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", path).Msg("authorization check failed")
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	}
	return false
}

// createUserRequest is the admin provisioning payload.
type createUserRequest struct {
	Account  string   `json:"account"  validate:"required,min=2,max=128"`
	Password string   `json:"password" validate:"omitempty,min=8"`
	Email    string   `json:"email"    validate:"omitempty,email"`
	Groups   []string `json:"groups"   validate:"dive,startswith=/"`
	External bool     `json:"external"`
	Pending  bool     `json:"pending"`
}

// CreateUser provisions a new identity. Admin only.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := authn.PrincipalFromContext(ctx)
	if !h.requireAdmin(w, p) {
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user parameters")
		return
	}

	userID, accessKey, err := h.provisioner.CreateUser(ctx, p.Tenant, authn.CreateUserParams{
		Account:  req.Account,
		Password: req.Password,
		Email:    req.Email,
		Groups:   req.Groups,
		External: req.External,
		Pending:  req.Pending,
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("account", req.Account).Msg("user provisioning failed")
		writeError(w, http.StatusConflict, "could not create user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"user_id":    userID,
		"access_key": accessKey,
	})
}

// RotateKey replaces a user's access key, invalidating all outstanding
// tokens derived from the old one. Admin only.
func (h *Handler) RotateKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := authn.PrincipalFromContext(ctx)
	if !h.requireAdmin(w, p) {
		return
	}

	userID := chi.URLParam(r, "id")
	key, err := h.provisioner.RotateAccessKey(ctx, p.Tenant, userID)
	switch {
	case errors.Is(err, store.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		logging.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("key rotation failed")
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"access_key": key})
	}
}

// setPasswordRequest carries a password change.
type setPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

// SetPassword replaces a user's password digest. Admin only.
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := authn.PrincipalFromContext(ctx)
	if !h.requireAdmin(w, p) {
		return
	}

	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid password")
		return
	}

	userID := chi.URLParam(r, "id")
	switch err := h.provisioner.SetPassword(ctx, p.Tenant, userID, req.Password); {
	case errors.Is(err, store.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		logging.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("password change failed")
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// setGroupsRequest carries a group membership change.
type setGroupsRequest struct {
	Groups []string `json:"groups" validate:"dive,startswith=/"`
}

// SetGroups replaces a user's group memberships. Admin only.
func (h *Handler) SetGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := authn.PrincipalFromContext(ctx)
	if !h.requireAdmin(w, p) {
		return
	}

	var req setGroupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid groups")
		return
	}

	userID := chi.URLParam(r, "id")
	switch err := h.provisioner.SetGroups(ctx, p.Tenant, userID, req.Groups); {
	case errors.Is(err, store.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		logging.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("group change failed")
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// requireAdmin enforces administrator group membership. The denial message
// matches the evaluator's so callers cannot distinguish policy shapes.
func (h *Handler) requireAdmin(w http.ResponseWriter, p *authn.Principal) bool {
	if p != nil && (p.System || p.InGroup(h.cfg.Security.AdminGroup)) {
		return true
	}
	writeError(w, http.StatusForbidden, authz.ErrPermissionDenied.Error())
	return false
}
