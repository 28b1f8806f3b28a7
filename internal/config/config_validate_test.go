// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns a default config with required credentials filled in
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Upstream.Username = "driver@example.com"
	cfg.Upstream.Password = "s3cret-pass"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on defaults with credentials = %v, want nil", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing username",
			mutate:  func(c *Config) { c.Upstream.Username = "" },
			wantErr: "BLUELINK_USERNAME",
		},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Upstream.Password = "" },
			wantErr: "BLUELINK_PASSWORD",
		},
		{
			name:    "placeholder password",
			mutate:  func(c *Config) { c.Upstream.Password = "CHANGEME-please" },
			wantErr: "placeholder",
		},
		{
			name:    "unknown region",
			mutate:  func(c *Config) { c.Upstream.Region = 7 },
			wantErr: "BLUELINK_REGION",
		},
		{
			name:    "unknown brand",
			mutate:  func(c *Config) { c.Upstream.Brand = 0 },
			wantErr: "BLUELINK_BRAND",
		},
		{
			name:    "short VIN",
			mutate:  func(c *Config) { c.Upstream.VIN = "KNDJ23AU4N7" },
			wantErr: "17 characters",
		},
		{
			name:    "VIN with excluded letter",
			mutate:  func(c *Config) { c.Upstream.VIN = "KNDI23AU4N7000001" },
			wantErr: "invalid character",
		},
		{
			name:    "base URL with path",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "https://api.example.com/v2" },
			wantErr: "BLUELINK_URL",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Upstream.Timeout = 0 },
			wantErr: "BLUELINK_TIMEOUT",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Upstream.MaxRetries = -1 },
			wantErr: "BLUELINK_MAX_RETRIES",
		},
		{
			name:    "rate out of range",
			mutate:  func(c *Config) { c.Upstream.RatePerMinute = 500 },
			wantErr: "BLUELINK_RATE_PER_MINUTE",
		},
		{
			name:    "burst exceeds rate",
			mutate:  func(c *Config) { c.Upstream.Burst = 60 },
			wantErr: "BLUELINK_RATE_BURST",
		},
		{
			name:    "session TTL too short",
			mutate:  func(c *Config) { c.Upstream.SessionTTL = 10 * time.Second },
			wantErr: "BLUELINK_SESSION_TTL",
		},
		{
			name: "expiry margin over half the TTL",
			mutate: func(c *Config) {
				c.Upstream.SessionTTL = 10 * time.Minute
				c.Upstream.SessionExpiryMargin = 6 * time.Minute
			},
			wantErr: "BLUELINK_SESSION_EXPIRY_MARGIN",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "PORT",
		},
		{
			name:    "rate limit window too large",
			mutate:  func(c *Config) { c.Server.RateLimitWindow = 2 * time.Hour },
			wantErr: "RATE_LIMIT_WINDOW",
		},
		{
			name:    "refresh cooldown too short",
			mutate:  func(c *Config) { c.Cooldown.StatusRefresh = 100 * time.Millisecond },
			wantErr: "GATEWAY_REFRESH_COOLDOWN",
		},
		{
			name:    "command cooldown too long",
			mutate:  func(c *Config) { c.Cooldown.Command = 2 * time.Hour },
			wantErr: "GATEWAY_COMMAND_COOLDOWN",
		},
		{
			name:    "staleness threshold too short",
			mutate:  func(c *Config) { c.Cache.StalenessThreshold = 5 * time.Second },
			wantErr: "GATEWAY_STALENESS_THRESHOLD",
		},
		{
			name: "snapshot enabled without dir",
			mutate: func(c *Config) {
				c.Cache.SnapshotEnabled = true
				c.Cache.SnapshotDir = ""
			},
			wantErr: "GATEWAY_SNAPSHOT_DIR",
		},
		{
			name:    "alerts enabled without webhook",
			mutate:  func(c *Config) { c.Alerts.Enabled = true },
			wantErr: "GATEWAY_ALERT_WEBHOOK_URL",
		},
		{
			name: "alert webhook bad scheme",
			mutate: func(c *Config) {
				c.Alerts.Enabled = true
				c.Alerts.WebhookURL = "ftp://hooks.example.com/alert"
			},
			wantErr: "scheme",
		},
		{
			name: "transient threshold zero",
			mutate: func(c *Config) {
				c.Alerts.Enabled = true
				c.Alerts.WebhookURL = "https://hooks.example.com/alert"
				c.Alerts.TransientThreshold = 0
			},
			wantErr: "GATEWAY_ALERT_TRANSIENT_THRESHOLD",
		},
		{
			name: "events enabled without stream",
			mutate: func(c *Config) {
				c.Events.Enabled = true
				c.Events.Stream = ""
			},
			wantErr: "GATEWAY_EVENTS_STREAM",
		},
		{
			name: "events port out of range",
			mutate: func(c *Config) {
				c.Events.Enabled = true
				c.Events.Port = 70000
			},
			wantErr: "GATEWAY_EVENTS_PORT",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateAcceptsWellFormedVIN(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.VIN = "KMHL14JA5PA000321"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with valid VIN = %v, want nil", err)
	}

	// Lowercase letters are tolerated (upper-cased before checking)
	cfg.Upstream.VIN = "kmhl14ja5pa000321"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with lowercase VIN = %v, want nil", err)
	}
}

func TestValidateAlertsDisabledSkipsChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Alerts.Enabled = false
	cfg.Alerts.WebhookURL = "" // Would fail if alerts were enabled
	cfg.Alerts.TransientThreshold = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with alerts disabled = %v, want nil", err)
	}
}

func TestWebhookURLAllowsPaths(t *testing.T) {
	if err := validateWebhookURL("https://hooks.example.com/services/T00/B00/XXXX?channel=alerts", "TEST_URL"); err != nil {
		t.Errorf("validateWebhookURL() with path+query = %v, want nil", err)
	}
	if err := validateWebhookURL("notaurl", "TEST_URL"); err == nil {
		t.Error("validateWebhookURL() with bare word should fail")
	}
}
