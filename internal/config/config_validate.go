// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateUpstream(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateCooldown(); err != nil {
		return err
	}

	if err := c.validateCache(); err != nil {
		return err
	}

	if err := c.validateAlerts(); err != nil {
		return err
	}

	if err := c.validateEvents(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateUpstream validates vehicle-cloud account and client settings
func (c *Config) validateUpstream() error {
	if err := c.validateCredentials(); err != nil {
		return err
	}
	if err := c.validateRegionBrand(); err != nil {
		return err
	}
	if err := c.validateVIN(); err != nil {
		return err
	}
	if err := c.validateBaseURL(); err != nil {
		return err
	}
	return c.validateUpstreamLimits()
}

// validateCredentials validates the account username and password
func (c *Config) validateCredentials() error {
	if c.Upstream.Username == "" {
		return fmt.Errorf("BLUELINK_USERNAME is required")
	}
	if c.Upstream.Password == "" {
		return fmt.Errorf("BLUELINK_PASSWORD is required")
	}
	if containsPlaceholder(c.Upstream.Password) {
		return fmt.Errorf("BLUELINK_PASSWORD contains a placeholder value - set the real account password")
	}
	return nil
}

// validateRegionBrand validates the region and brand identifiers
func (c *Config) validateRegionBrand() error {
	if _, ok := regionNames[c.Upstream.Region]; !ok {
		return fmt.Errorf("BLUELINK_REGION must be one of: 1 (Europe), 2 (Canada), 3 (USA)")
	}
	if _, ok := brandNames[c.Upstream.Brand]; !ok {
		return fmt.Errorf("BLUELINK_BRAND must be one of: 1 (Kia), 2 (Hyundai), 3 (Genesis)")
	}
	return nil
}

// validateVIN validates the optional vehicle identification number.
// VINs are 17 characters and exclude I, O, and Q to avoid digit confusion.
func (c *Config) validateVIN() error {
	vin := c.Upstream.VIN
	if vin == "" {
		return nil // Optional - first account vehicle is used
	}
	if len(vin) != 17 {
		return fmt.Errorf("BLUELINK_VIN must be 17 characters, got %d", len(vin))
	}
	for _, r := range strings.ToUpper(vin) {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z' && r != 'I' && r != 'O' && r != 'Q':
		default:
			return fmt.Errorf("BLUELINK_VIN contains invalid character %q", r)
		}
	}
	return nil
}

// validateBaseURL validates the optional base URL override
func (c *Config) validateBaseURL() error {
	if c.Upstream.BaseURL == "" {
		return nil
	}
	if err := validateHTTPURL(c.Upstream.BaseURL, "BLUELINK_URL"); err != nil {
		return fmt.Errorf("BLUELINK_URL is invalid: %w", err)
	}
	return nil
}

// Upstream client limit constants
const (
	minUpstreamTimeout   = time.Second
	maxUpstreamTimeout   = 5 * time.Minute
	maxUpstreamRetries   = 10
	maxUpstreamRate      = 120 // Per-minute ceiling; vehicle clouds ban beyond this
	minSessionTTL        = time.Minute
	maxSessionTTL        = 24 * time.Hour
	maxSessionExpiryPart = 2 // Expiry margin must stay under SessionTTL/2
)

// validateUpstreamLimits validates timeout, retry, and pacing bounds
func (c *Config) validateUpstreamLimits() error {
	validators := []func() error{
		c.validateUpstreamTimeout,
		c.validateUpstreamRetries,
		c.validateUpstreamRate,
		c.validateSessionTTL,
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

// validateUpstreamTimeout validates the upstream request timeout
func (c *Config) validateUpstreamTimeout() error {
	if c.Upstream.Timeout < minUpstreamTimeout || c.Upstream.Timeout > maxUpstreamTimeout {
		return fmt.Errorf("BLUELINK_TIMEOUT must be between %v and %v", minUpstreamTimeout, maxUpstreamTimeout)
	}
	return nil
}

// validateUpstreamRetries validates the 429 retry budget
func (c *Config) validateUpstreamRetries() error {
	if c.Upstream.MaxRetries < 0 || c.Upstream.MaxRetries > maxUpstreamRetries {
		return fmt.Errorf("BLUELINK_MAX_RETRIES must be between 0 and %d", maxUpstreamRetries)
	}
	return nil
}

// validateUpstreamRate validates client-side pacing settings
func (c *Config) validateUpstreamRate() error {
	if c.Upstream.RatePerMinute < 1 || c.Upstream.RatePerMinute > maxUpstreamRate {
		return fmt.Errorf("BLUELINK_RATE_PER_MINUTE must be between 1 and %d", maxUpstreamRate)
	}
	if c.Upstream.Burst < 1 || c.Upstream.Burst > c.Upstream.RatePerMinute {
		return fmt.Errorf("BLUELINK_RATE_BURST must be between 1 and BLUELINK_RATE_PER_MINUTE")
	}
	return nil
}

// validateSessionTTL validates session lifetime settings
func (c *Config) validateSessionTTL() error {
	if c.Upstream.SessionTTL < minSessionTTL || c.Upstream.SessionTTL > maxSessionTTL {
		return fmt.Errorf("BLUELINK_SESSION_TTL must be between %v and %v", minSessionTTL, maxSessionTTL)
	}
	if c.Upstream.SessionExpiryMargin < 0 || c.Upstream.SessionExpiryMargin > c.Upstream.SessionTTL/maxSessionExpiryPart {
		return fmt.Errorf("BLUELINK_SESSION_EXPIRY_MARGIN must be between 0 and half of BLUELINK_SESSION_TTL")
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	return c.validateRateLimits()
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateRateLimits validates rate limiting configuration bounds.
// Ensures rate limit values are within sensible ranges to prevent
// misconfiguration that could lead to DoS or ineffective protection.
func (c *Config) validateRateLimits() error {
	if c.Server.RateLimitDisabled {
		return nil
	}

	if c.Server.RateLimitReqs < minRateLimitRequests || c.Server.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Server.RateLimitWindow < minRateLimitWindow || c.Server.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// Cooldown window constants
const (
	minCooldownWindow = time.Second
	maxCooldownWindow = time.Hour
)

// validateCooldown validates cooldown window bounds
func (c *Config) validateCooldown() error {
	if c.Cooldown.StatusRefresh < minCooldownWindow || c.Cooldown.StatusRefresh > maxCooldownWindow {
		return fmt.Errorf("GATEWAY_REFRESH_COOLDOWN must be between %v and %v", minCooldownWindow, maxCooldownWindow)
	}
	if c.Cooldown.Command < minCooldownWindow || c.Cooldown.Command > maxCooldownWindow {
		return fmt.Errorf("GATEWAY_COMMAND_COOLDOWN must be between %v and %v", minCooldownWindow, maxCooldownWindow)
	}
	return nil
}

// validateCache validates the staleness threshold and snapshot settings
func (c *Config) validateCache() error {
	if c.Cache.StalenessThreshold < time.Minute || c.Cache.StalenessThreshold > 24*time.Hour {
		return fmt.Errorf("GATEWAY_STALENESS_THRESHOLD must be between 1m and 24h")
	}
	if c.Cache.SnapshotEnabled && c.Cache.SnapshotDir == "" {
		return fmt.Errorf("GATEWAY_SNAPSHOT_DIR is required when GATEWAY_SNAPSHOT_ENABLED=true")
	}
	return nil
}

// validateAlerts validates alerting configuration (only if enabled)
func (c *Config) validateAlerts() error {
	if !c.Alerts.Enabled {
		return nil // Alerting is optional - no validation needed when disabled
	}

	if c.Alerts.WebhookURL == "" {
		return fmt.Errorf("GATEWAY_ALERT_WEBHOOK_URL is required when GATEWAY_ALERTS_ENABLED=true")
	}
	if err := validateWebhookURL(c.Alerts.WebhookURL, "GATEWAY_ALERT_WEBHOOK_URL"); err != nil {
		return fmt.Errorf("GATEWAY_ALERT_WEBHOOK_URL is invalid: %w", err)
	}
	if c.Alerts.DedupWindow < time.Second || c.Alerts.DedupWindow > 24*time.Hour {
		return fmt.Errorf("GATEWAY_ALERT_DEDUP_WINDOW must be between 1s and 24h")
	}
	if c.Alerts.TransientThreshold < 1 || c.Alerts.TransientThreshold > 100 {
		return fmt.Errorf("GATEWAY_ALERT_TRANSIENT_THRESHOLD must be between 1 and 100")
	}
	if c.Alerts.DispatchTimeout < time.Second || c.Alerts.DispatchTimeout > 5*time.Minute {
		return fmt.Errorf("GATEWAY_ALERT_DISPATCH_TIMEOUT must be between 1s and 5m")
	}
	return nil
}

// validateEvents validates the embedded event pipeline (only if enabled)
func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}

	if c.Events.Port < 1 || c.Events.Port > 65535 {
		return fmt.Errorf("GATEWAY_EVENTS_PORT must be between 1 and 65535")
	}
	if c.Events.StoreDir == "" {
		return fmt.Errorf("GATEWAY_EVENTS_STORE_DIR is required when GATEWAY_EVENTS_ENABLED=true")
	}
	if c.Events.Stream == "" {
		return fmt.Errorf("GATEWAY_EVENTS_STREAM is required when GATEWAY_EVENTS_ENABLED=true")
	}
	if c.Events.Subject == "" {
		return fmt.Errorf("GATEWAY_EVENTS_SUBJECT is required when GATEWAY_EVENTS_ENABLED=true")
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the user forgot to set a real value. This prevents accidental deployment
// with insecure default credentials.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_PASSWORD",
	"PLACEHOLDER",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns
// that indicate the user forgot to set a real value.
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}
