// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/bluelink-gateway/config.yaml",
	"/etc/bluelink-gateway/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			Host:              "0.0.0.0",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Upstream: UpstreamConfig{
			Username: "",
			Password: "",
			PIN:      "",
			VIN:      "", // First vehicle on the account when empty
			Region:   RegionEurope,
			Brand:    BrandHyundai,
			BaseURL:  "",

			Timeout:       30 * time.Second,
			MaxRetries:    2,
			RatePerMinute: 30, // Vehicle clouds throttle aggressively; stay well under
			Burst:         5,

			SessionTTL:          55 * time.Minute,
			SessionExpiryMargin: 2 * time.Minute,
		},
		Cooldown: CooldownConfig{
			StatusRefresh: 60 * time.Second,
			Command:       90 * time.Second,
		},
		Cache: CacheConfig{
			StalenessThreshold: 10 * time.Minute,
			SnapshotEnabled:    true,
			SnapshotDir:        "./data/snapshot",
		},
		Alerts: AlertsConfig{
			Enabled:            false, // Opt-in: requires a webhook URL
			WebhookURL:         "",
			DedupWindow:        15 * time.Minute,
			TransientThreshold: 3,
			DispatchTimeout:    30 * time.Second,
		},
		Events: EventsConfig{
			Enabled:  false, // Opt-in: direct goroutine dispatch by default
			Host:     "127.0.0.1",
			Port:     4222,
			StoreDir: "./data/events",
			Stream:   "ALERTS",
			Subject:  "alerts.dispatch",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
//   - Compatibility with the established deployment environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// BLUELINK_USERNAME -> upstream.username
	// GATEWAY_COMMAND_COOLDOWN -> cooldown.command
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Decrypt enc:-prefixed credentials before validation so validators
	// see the effective values.
	if err := decryptCredentials(cfg); err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
// It preserves the deployment contract of earlier releases (BLUELINK_*
// for account settings, PORT for the listen port) and adds GATEWAY_*
// names for gateway-specific tuning.
//
// Examples:
//   - BLUELINK_USERNAME -> upstream.username
//   - BLUELINK_REGION -> upstream.region
//   - PORT -> server.port
//   - GATEWAY_COMMAND_COOLDOWN -> cooldown.command
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Vehicle-cloud account mappings
		"bluelink_username": "upstream.username",
		"bluelink_password": "upstream.password",
		"bluelink_pin":      "upstream.pin",
		"bluelink_vin":      "upstream.vin",
		"bluelink_region":   "upstream.region",
		"bluelink_brand":    "upstream.brand",
		"bluelink_url":      "upstream.base_url",

		// Upstream client mappings
		"bluelink_timeout":               "upstream.timeout",
		"bluelink_max_retries":           "upstream.max_retries",
		"bluelink_rate_per_minute":       "upstream.rate_per_minute",
		"bluelink_rate_burst":            "upstream.burst",
		"bluelink_session_ttl":           "upstream.session_ttl",
		"bluelink_session_expiry_margin": "upstream.session_expiry_margin",

		// Server mappings (PORT kept for deployment compatibility)
		"port":                     "server.port",
		"gateway_host":             "server.host",
		"gateway_read_timeout":     "server.read_timeout",
		"gateway_write_timeout":    "server.write_timeout",
		"gateway_shutdown_timeout": "server.shutdown_timeout",
		"rate_limit_requests":      "server.rate_limit_reqs",
		"rate_limit_window":        "server.rate_limit_window",
		"disable_rate_limit":       "server.rate_limit_disabled",
		"cors_origins":             "server.cors_origins",

		// Cooldown mappings
		"gateway_refresh_cooldown": "cooldown.status_refresh",
		"gateway_command_cooldown": "cooldown.command",

		// Cache mappings
		"gateway_staleness_threshold": "cache.staleness_threshold",
		"gateway_snapshot_enabled":    "cache.snapshot_enabled",
		"gateway_snapshot_dir":        "cache.snapshot_dir",

		// Alert mappings
		"gateway_alerts_enabled":            "alerts.enabled",
		"gateway_alert_webhook_url":         "alerts.webhook_url",
		"gateway_alert_dedup_window":        "alerts.dedup_window",
		"gateway_alert_transient_threshold": "alerts.transient_threshold",
		"gateway_alert_dispatch_timeout":    "alerts.dispatch_timeout",

		// Event pipeline mappings
		"gateway_events_enabled":   "events.enabled",
		"gateway_events_host":      "events.host",
		"gateway_events_port":      "events.port",
		"gateway_events_store_dir": "events.store_dir",
		"gateway_events_stream":    "events.stream",
		"gateway_events_subject":   "events.subject",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
