// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from environment variables and config files.
// Provides centralized configuration management for the upstream vehicle-cloud client,
// HTTP server, cooldown windows, status cache, alerting, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Upstream:
//     - Vehicle-cloud account credentials, region/brand selection, request pacing
//
//  2. Gateway Behavior:
//     - Cooldown: Per-class windows that bound upstream call frequency
//     - Cache: Staleness threshold and snapshot persistence
//     - Alerts: Failure alerting with dedup and escalation
//     - Events: Optional embedded NATS JetStream alert pipeline
//
//  3. Serving:
//     - Server: HTTP server configuration (port, host, timeouts, rate limiting)
//
//  4. Observability:
//     - Logging: Log levels and output formats
//
// Example - Load configuration from environment:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.Upstream.Username, cfg.Cooldown.StatusRefresh, etc. are now populated
//
// Validation:
// The Load() function validates all required fields and returns an error if:
//   - Required environment variables are missing (BLUELINK_USERNAME, BLUELINK_PASSWORD)
//   - Values are malformed (unknown region ID, out-of-range port)
//   - Alerting is enabled but the webhook URL is missing
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from multiple goroutines.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Cooldown CooldownConfig `koanf:"cooldown"`
	Cache    CacheConfig    `koanf:"cache"`
	Alerts   AlertsConfig   `koanf:"alerts"`   // Optional: webhook alerting on repeated upstream failures
	Events   EventsConfig   `koanf:"events"`   // Optional: embedded NATS JetStream alert dispatch (durable)
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port              int           `koanf:"port"`
	Host              string        `koanf:"host"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Region identifiers accepted by the vehicle cloud.
const (
	RegionEurope = 1
	RegionCanada = 2
	RegionUSA    = 3
)

// Brand identifiers accepted by the vehicle cloud.
const (
	BrandKia     = 1
	BrandHyundai = 2
	BrandGenesis = 3
)

// UpstreamConfig holds vehicle-cloud account and client settings.
// The username, password, and PIN may be stored encrypted (enc: prefix)
// when GATEWAY_CREDENTIAL_KEY is set; see encryption.go.
//
// Environment Variables:
//   - BLUELINK_USERNAME: Vehicle-cloud account email (required)
//   - BLUELINK_PASSWORD: Vehicle-cloud account password (required)
//   - BLUELINK_PIN: Account PIN for command authorization (optional; region-dependent)
//   - BLUELINK_VIN: Vehicle to operate on (optional; first account vehicle when empty)
//   - BLUELINK_REGION: Region ID, 1=Europe 2=Canada 3=USA (default: 1)
//   - BLUELINK_BRAND: Brand ID, 1=Kia 2=Hyundai 3=Genesis (default: 2)
//   - BLUELINK_URL: Override the region-derived base URL (optional)
type UpstreamConfig struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	PIN      string `koanf:"pin"`
	VIN      string `koanf:"vin"`
	Region   int    `koanf:"region"`
	Brand    int    `koanf:"brand"`
	BaseURL  string `koanf:"base_url"` // Overrides the region-derived endpoint when set

	Timeout       time.Duration `koanf:"timeout"`
	MaxRetries    int           `koanf:"max_retries"`     // Retries on upstream HTTP 429 before giving up
	RatePerMinute int           `koanf:"rate_per_minute"` // Client-side pacing of upstream calls
	Burst         int           `koanf:"burst"`

	// SessionTTL is the fallback session lifetime used when the login
	// response carries neither a JWT exp claim nor an expires_in field.
	SessionTTL time.Duration `koanf:"session_ttl"`
	// SessionExpiryMargin renews sessions this long before their deadline.
	SessionExpiryMargin time.Duration `koanf:"session_expiry_margin"`
}

// regionSubdomains maps region IDs to the cloud endpoint subdomain.
var regionSubdomains = map[int]string{
	RegionEurope: "prd.eu",
	RegionCanada: "prd.ca",
	RegionUSA:    "prd.us",
}

// brandDomains maps brand IDs to the cloud endpoint domain.
var brandDomains = map[int]string{
	BrandKia:     "kia.com",
	BrandHyundai: "hyundai.com",
	BrandGenesis: "genesis.com",
}

// regionNames maps region IDs to display names.
var regionNames = map[int]string{
	RegionEurope: "Europe",
	RegionCanada: "Canada",
	RegionUSA:    "USA",
}

// brandNames maps brand IDs to display names.
var brandNames = map[int]string{
	BrandKia:     "Kia",
	BrandHyundai: "Hyundai",
	BrandGenesis: "Genesis",
}

// ResolveBaseURL returns the upstream API base URL. An explicit BaseURL
// override wins; otherwise the URL is derived from the region and brand.
func (u UpstreamConfig) ResolveBaseURL() string {
	if u.BaseURL != "" {
		return u.BaseURL
	}
	return fmt.Sprintf("https://%s.ccapi.%s", regionSubdomains[u.Region], brandDomains[u.Brand])
}

// RegionName returns the display name for the configured region, or "unknown".
func (u UpstreamConfig) RegionName() string {
	if name, ok := regionNames[u.Region]; ok {
		return name
	}
	return "unknown"
}

// BrandName returns the display name for the configured brand, or "unknown".
func (u UpstreamConfig) BrandName() string {
	if name, ok := brandNames[u.Brand]; ok {
		return name
	}
	return "unknown"
}

// CooldownConfig holds the per-class minimum spacing between upstream calls.
// Forced status refreshes wake the vehicle over the cellular link and drain
// the 12V battery, so commands (which always wake the vehicle and then force
// a refresh to confirm) carry the wider window.
type CooldownConfig struct {
	StatusRefresh time.Duration `koanf:"status_refresh"` // Window for forced refresh, odometer, location
	Command       time.Duration `koanf:"command"`        // Window for lock/unlock/climate/charge
}

// CacheConfig holds status cache and snapshot persistence settings
type CacheConfig struct {
	StalenessThreshold time.Duration `koanf:"staleness_threshold"` // Age past which a cached status triggers background refresh
	SnapshotEnabled    bool          `koanf:"snapshot_enabled"`
	SnapshotDir        string        `koanf:"snapshot_dir"`
}

// AlertsConfig holds failure alerting settings.
// Alerts fire on authentication failures, persistent rate limiting, and
// repeated transient errors; duplicates within DedupWindow are suppressed.
type AlertsConfig struct {
	Enabled            bool          `koanf:"enabled"`
	WebhookURL         string        `koanf:"webhook_url"`
	DedupWindow        time.Duration `koanf:"dedup_window"`
	TransientThreshold int           `koanf:"transient_threshold"` // Consecutive transient failures before escalation
	DispatchTimeout    time.Duration `koanf:"dispatch_timeout"`
}

// EventsConfig holds the optional embedded NATS JetStream alert pipeline.
// When disabled, alerts dispatch directly on a goroutine; when enabled they
// flow through a durable work-queue stream and survive process restarts.
type EventsConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	StoreDir string `koanf:"store_dir"`
	Stream   string `koanf:"stream"`
	Subject  string `koanf:"subject"`
}

// URL returns the client connection URL for the embedded server.
func (e EventsConfig) URL() string {
	return fmt.Sprintf("nats://%s:%d", e.Host, e.Port)
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from environment variables and optional config file.
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Built-in defaults
//  2. Config file (config.yaml if exists, or path specified in CONFIG_PATH env var)
//  3. Environment variables
//
// Credentials carrying the enc: prefix are decrypted with the key material in
// GATEWAY_CREDENTIAL_KEY before validation.
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
