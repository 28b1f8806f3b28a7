// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

// Package config provides layered configuration management for the gateway
// using Koanf v2.
//
// Configuration is assembled from three sources, later sources overriding
// earlier ones:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables
//
// The environment variable names keep the deployment contract of earlier
// releases: BLUELINK_* for the vehicle-cloud account, PORT for the listen
// port, and GATEWAY_* for gateway behavior. The full mapping lives in
// envTransformFunc.
//
// Required settings:
//
//	BLUELINK_USERNAME  vehicle-cloud account email
//	BLUELINK_PASSWORD  vehicle-cloud account password
//
// Commonly tuned settings:
//
//	BLUELINK_REGION             1=Europe (default), 2=Canada, 3=USA
//	BLUELINK_BRAND              1=Kia, 2=Hyundai (default), 3=Genesis
//	BLUELINK_VIN                vehicle selection (first account vehicle when empty)
//	GATEWAY_REFRESH_COOLDOWN    minimum spacing between forced refreshes (60s)
//	GATEWAY_COMMAND_COOLDOWN    minimum spacing between vehicle commands (90s)
//	GATEWAY_STALENESS_THRESHOLD cached-status age that triggers background refresh (10m)
//
// Credentials may be stored encrypted with the enc: prefix; see encryption.go
// and the GATEWAY_CREDENTIAL_KEY environment variable.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//	client := upstream.NewHTTPClient(cfg.Upstream)
//
// Config values are immutable after Load and safe for concurrent reads.
package config
