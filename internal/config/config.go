// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

// Package config loads and validates the security control-plane
// configuration: lockout and replay windows, per-tenant captcha thresholds
// and shared secrets, per-path one-time-use overrides, and the reference
// server settings.
//
// Configuration is merged from three layers, later layers winning:
// built-in defaults, a YAML config file, and ARKIVO_* environment variables.
package config

import (
	"time"
)

// Config is the root configuration document.
type Config struct {
	Logging  LoggingConfig           `koanf:"logging"`
	Server   ServerConfig            `koanf:"server"`
	Security SecurityConfig          `koanf:"security"`
	Tenants  map[string]TenantConfig `koanf:"tenants"`
}

// LoggingConfig mirrors logging.Config for the koanf layer.
type LoggingConfig struct {
	Level  string `koanf:"level"  validate:"omitempty,oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig holds reference-server settings.
type ServerConfig struct {
	// ListenAddr is the HTTP listen address, e.g. ":8480".
	ListenAddr string `koanf:"listen_addr" validate:"required"`

	// DataDir is the BadgerDB directory. Empty selects in-memory stores.
	DataDir string `koanf:"data_dir"`

	// CORSOrigins lists allowed CORS origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimit is the number of requests allowed per IP per RateLimitWindow.
	RateLimit       int           `koanf:"rate_limit"        validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gte=0"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

// SecurityConfig holds tenant-independent security policy.
type SecurityConfig struct {
	// FailureWindow is the TTL of brute-force failure counters.
	FailureWindow time.Duration `koanf:"failure_window" validate:"gt=0"`

	// FreshnessBefore / FreshnessAfter bound the accepted skew of a digest
	// credential's embedded creation time around "now".
	FreshnessBefore time.Duration `koanf:"freshness_before" validate:"gt=0"`
	FreshnessAfter  time.Duration `koanf:"freshness_after"  validate:"gt=0"`

	// UseCountMargin pads the one-time-use counter TTL past the credential
	// validity window so the counter always outlives the credential.
	UseCountMargin time.Duration `koanf:"use_count_margin" validate:"gte=0"`

	// SessionTTL is the idle expiry of authenticated sessions.
	SessionTTL time.Duration `koanf:"session_ttl" validate:"gt=0"`

	// AdminGroup is the group path whose members are administrators.
	AdminGroup string `koanf:"admin_group" validate:"required,startswith=/"`

	// AdminIPAllowlist restricts administrative-group members to the given
	// CIDRs. Empty disables the check.
	AdminIPAllowlist []string `koanf:"admin_ip_allowlist" validate:"dive,cidr"`

	// Captcha configures the escalating verification step.
	Captcha CaptchaConfig `koanf:"captcha"`
}

// CaptchaConfig configures the pluggable extra-verification check. The
// default implementation is a permissive no-op; the threshold bookkeeping
// applies regardless of the provider.
type CaptchaConfig struct {
	// ProviderURL is the external verification endpoint. Empty keeps the
	// permissive no-op provider.
	ProviderURL string `koanf:"provider_url" validate:"omitempty,url"`

	// Secret is the provider's shared secret.
	Secret string `koanf:"secret"`

	// Timeout bounds a single verification call.
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
}

// TenantConfig holds per-tenant security policy.
type TenantConfig struct {
	// SharedSecret is mixed into the digest-credential computation.
	SharedSecret string `koanf:"shared_secret" validate:"required"`

	// CaptchaThreshold is the password-scheme failure count at which the
	// extra verification step becomes mandatory. 0 disables escalation.
	CaptchaThreshold int `koanf:"captcha_threshold" validate:"gte=0"`

	// MaxUseOverrides raises the one-time-use limit for matching request
	// paths (e.g. idempotent GET endpoints polled by integrations).
	MaxUseOverrides []MaxUseOverride `koanf:"max_use_overrides" validate:"dive"`
}

// MaxUseOverride maps a request-path pattern to a per-credential use limit.
// A pattern ending in "*" matches by prefix, otherwise exactly.
type MaxUseOverride struct {
	PathPattern string `koanf:"path_pattern" validate:"required,startswith=/"`
	MaxUses     int    `koanf:"max_uses"     validate:"gte=1"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			ListenAddr:      ":8480",
			RateLimit:       120,
			RateLimitWindow: time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Security: SecurityConfig{
			FailureWindow:   30 * time.Minute,
			FreshnessBefore: 10 * time.Minute,
			FreshnessAfter:  10 * time.Minute,
			UseCountMargin:  time.Minute,
			SessionTTL:      12 * time.Hour,
			AdminGroup:      "/admins",
			Captcha: CaptchaConfig{
				Timeout: 5 * time.Second,
			},
		},
		Tenants: map[string]TenantConfig{},
	}
}
