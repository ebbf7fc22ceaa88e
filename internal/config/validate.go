// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid marks configuration validation failures. Callers test with
// errors.Is; the wrapped message names the offending field.
var ErrInvalid = errors.New("configuration invalid")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the whole configuration document. Tenant-level settings
// are checked individually so the error names the tenant at fault.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describeValidation(err, "")
	}

	for name, tenant := range c.Tenants {
		if name == "" {
			return fmt.Errorf("%w: tenant with empty name", ErrInvalid)
		}
		if err := validate.Struct(tenant); err != nil {
			return describeValidation(err, "tenant "+name+": ")
		}
	}

	if c.Security.FreshnessBefore+c.Security.FreshnessAfter <= 0 {
		return fmt.Errorf("%w: freshness window must be positive", ErrInvalid)
	}
	return nil
}

// describeValidation flattens a validator error into one ErrInvalid-wrapped
// message naming the first offending field.
func describeValidation(err error, prefix string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %sfield %s fails %q", ErrInvalid, prefix, fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("%w: %s%v", ErrInvalid, prefix, err)
}

// Tenant returns the named tenant's configuration and whether it exists.
func (c *Config) Tenant(name string) (TenantConfig, bool) {
	t, ok := c.Tenants[name]
	return t, ok
}
