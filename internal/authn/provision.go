// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/arkivo-dms/arkivo/internal/store"
	"github.com/arkivo-dms/arkivo/internal/token"
)

// Provisioner implements the administrative identity flows: creating users,
// setting passwords, and rotating access keys. These are the only writers
// of identity records; the chain itself only reads them (apart from the
// pending-registration finalize step).
type Provisioner struct {
	entries store.EntryStore
}

// NewProvisioner creates a provisioner over the given entry store.
func NewProvisioner(entries store.EntryStore) *Provisioner {
	return &Provisioner{entries: entries}
}

// CreateUserParams describes a new identity.
type CreateUserParams struct {
	Account  string
	Password string
	Email    string
	Groups   []string
	External bool
	Pending  bool
}

// CreateUser writes the user record and its account index, returning the
// generated user id and initial access key.
func (p *Provisioner) CreateUser(ctx context.Context, tenant string, params CreateUserParams) (userID, accessKey string, err error) {
	account := NormalizeAccount(params.Account)
	if account == "" {
		return "", "", fmt.Errorf("account name required")
	}

	switch _, err := p.entries.Get(ctx, AccountPath(tenant, account)); {
	case err == nil:
		return "", "", fmt.Errorf("account %s already exists", account)
	case !errors.Is(err, store.ErrEntryNotFound):
		return "", "", fmt.Errorf("check account: %w", err)
	}

	userID = uuid.New().String()
	accessKey, err = token.NewAccessKey()
	if err != nil {
		return "", "", fmt.Errorf("generate access key: %w", err)
	}

	attrs := map[string]string{
		AttrAccount:        account,
		AttrAccessKey:      accessKey,
		AttrPasswordDigest: DerivePasswordDigest(account, params.Password),
	}
	if params.Email != "" {
		attrs[AttrEmail] = params.Email
	}
	if len(params.Groups) > 0 {
		attrs[AttrGroups] = joinGroups(params.Groups)
	}
	if params.External {
		attrs[AttrExternal] = "true"
	}
	if params.Pending {
		attrs[AttrPending] = "true"
	}

	user := &store.Entry{Path: UserPath(tenant, userID), Owner: userID, Attributes: attrs}
	index := &store.Entry{
		Path:       AccountPath(tenant, account),
		Attributes: map[string]string{AttrUserID: userID},
	}
	if err := p.entries.Put(ctx, user, index); err != nil {
		return "", "", fmt.Errorf("persist user: %w", err)
	}
	return userID, accessKey, nil
}

// RotateAccessKey replaces the user's secret, invalidating every token
// previously minted for them.
func (p *Provisioner) RotateAccessKey(ctx context.Context, tenant, userID string) (string, error) {
	user, err := p.entries.Get(ctx, UserPath(tenant, userID))
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}

	key, err := token.NewAccessKey()
	if err != nil {
		return "", fmt.Errorf("generate access key: %w", err)
	}

	updated := withAttr(user, AttrAccessKey, key)
	if err := p.entries.Put(ctx, updated); err != nil {
		return "", fmt.Errorf("persist user: %w", err)
	}
	return key, nil
}

// SetPassword replaces the user's stored password digest.
func (p *Provisioner) SetPassword(ctx context.Context, tenant, userID, password string) error {
	user, err := p.entries.Get(ctx, UserPath(tenant, userID))
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	updated := withAttr(user, AttrPasswordDigest, DerivePasswordDigest(user.Attr(AttrAccount), password))
	if err := p.entries.Put(ctx, updated); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}

// SetGroups replaces the user's group memberships.
func (p *Provisioner) SetGroups(ctx context.Context, tenant, userID string, groups []string) error {
	user, err := p.entries.Get(ctx, UserPath(tenant, userID))
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	updated := withAttr(user, AttrGroups, joinGroups(groups))
	if err := p.entries.Put(ctx, updated); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}

// withAttr copies an entry with one attribute replaced.
func withAttr(e *store.Entry, name, value string) *store.Entry {
	cp := *e
	cp.Attributes = make(map[string]string, len(e.Attributes)+1)
	for k, v := range e.Attributes {
		cp.Attributes[k] = v
	}
	cp.Attributes[name] = value
	return &cp
}

func joinGroups(groups []string) string {
	return strings.Join(groups, ",")
}
