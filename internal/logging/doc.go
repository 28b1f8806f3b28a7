// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

// Package logging provides centralized zerolog-based structured logging
// for the gateway.
//
// This package implements a unified logging layer using zerolog, providing
// zero-allocation structured JSON logging for production and human-readable
// console output for development.
//
// # Overview
//
// The package provides:
//   - Zero-allocation structured logging via zerolog
//   - JSON output format for machine-parseable logs
//   - Console output format for development and single-host deployments (default)
//   - Context-aware logging with correlation ID propagation
//   - slog adapter for suture v4 integration
//
// # Quick Start
//
//	import "github.com/evhome/bluelink-gateway/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "console",
//	    Caller: false,
//	})
//
//	// Log messages with structured fields
//	logging.Info().Str("vin", maskedVIN).Msg("Session established")
//	logging.Error().Err(err).Str("operation", op).Msg("Upstream call failed")
//
//	// Context-aware logging
//	logging.Ctx(ctx).Info().Msg("Processing request")
//
// # Configuration
//
// Environment variables (mapped by internal/config):
//
//	LOG_LEVEL   - Minimum log level: trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - Output format: json, console (default: console)
//	LOG_CALLER  - Include caller file:line: true, false (default: false)
//
// Programmatic configuration:
//
//	logging.Init(logging.Config{
//	    Level:     "debug",    // trace, debug, info, warn, error, fatal
//	    Format:    "json",     // json or console
//	    Caller:    true,       // Include caller info
//	    Timestamp: true,       // Include timestamps
//	    Output:    os.Stderr,  // Output writer
//	})
//
// # Structured Logging
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// Use structured fields instead of string formatting:
//
//	logging.Info().
//	    Str("operation", "status_forced").
//	    Dur("elapsed", duration).
//	    Msg("Refresh complete")
//
// # Component Loggers
//
// Create component-specific loggers with default fields:
//
//	workerLogger := logging.WithComponent("refresh-worker")
//	workerLogger.Info().Msg("Poll triggered")
//
// # Context-Aware Logging
//
// Request-scoped loggers carry the request and correlation IDs attached by
// the middleware:
//
//	logger := logging.Ctx(ctx)
//	logger.Info().Msg("Processing request")
//
// # slog Adapter
//
// NewSlogLogger bridges to log/slog for libraries that require it; the
// supervisor tree uses it for sutureslog:
//
//	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger is
// protected by sync.RWMutex for configuration changes.
//
// # Testing
//
// Create test loggers that capture output:
//
//	var buf bytes.Buffer
//	logger := logging.NewTestLogger(&buf)
//	logger.Info().Msg("test message")
//	output := buf.String()
package logging
