// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package guard

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/arkivo-dms/arkivo/internal/config"
	"github.com/arkivo-dms/arkivo/internal/logging"
)

// CaptchaCheck is the pluggable extra-verification step required once a
// password-scheme failure count reaches the tenant's threshold. The
// threshold bookkeeping in Guard is authoritative regardless of what the
// check does.
type CaptchaCheck interface {
	// Verify returns whether the verification response attached to the
	// request passes. An error means the provider could not be consulted.
	Verify(ctx context.Context, r *http.Request, action string) (bool, error)
}

// PermissiveCaptcha passes every verification. This is the default
// implementation until a real provider is configured.
type PermissiveCaptcha struct{}

// Verify always passes.
func (PermissiveCaptcha) Verify(ctx context.Context, r *http.Request, action string) (bool, error) {
	return true, nil
}

// captchaResponseHeader carries the client's verification response.
const captchaResponseHeader = "X-Arkivo-Captcha-Response"

// HTTPCaptcha verifies responses against an external provider endpoint. The
// call is wrapped in a circuit breaker so a dead provider degrades to fast
// failures instead of stalling every login.
type HTTPCaptcha struct {
	providerURL string
	secret      string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[bool]
}

// NewHTTPCaptcha creates a provider-backed captcha check from configuration.
func NewHTTPCaptcha(cfg config.CaptchaConfig) *HTTPCaptcha {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:    "captcha-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("captcha provider breaker state change")
		},
	})

	return &HTTPCaptcha{
		providerURL: cfg.ProviderURL,
		secret:      cfg.Secret,
		client:      &http.Client{Timeout: timeout},
		breaker:     breaker,
	}
}

// Verify posts the client's response token to the provider and reports the
// provider's verdict. A missing response token fails without a provider
// round trip.
func (c *HTTPCaptcha) Verify(ctx context.Context, r *http.Request, action string) (bool, error) {
	response := r.Header.Get(captchaResponseHeader)
	if response == "" {
		return false, nil
	}

	return c.breaker.Execute(func() (bool, error) {
		form := url.Values{}
		form.Set("secret", c.secret)
		form.Set("response", response)
		form.Set("action", action)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.providerURL,
			strings.NewReader(form.Encode()))
		if err != nil {
			return false, fmt.Errorf("build captcha request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.client.Do(req)
		if err != nil {
			return false, fmt.Errorf("captcha provider: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return false, fmt.Errorf("captcha provider status %d", resp.StatusCode)
		}

		var verdict struct {
			Success bool `json:"success"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
			return false, fmt.Errorf("decode captcha verdict: %w", err)
		}
		return verdict.Success, nil
	})
}

// CaptchaFromConfig returns the configured check: provider-backed when a
// provider URL is set, permissive otherwise.
func CaptchaFromConfig(cfg config.CaptchaConfig) CaptchaCheck {
	if cfg.ProviderURL == "" {
		return PermissiveCaptcha{}
	}
	return NewHTTPCaptcha(cfg)
}
