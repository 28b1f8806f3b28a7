// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogHandlerLevels(t *testing.T) {
	var buf bytes.Buffer

	zl := zerolog.New(&buf)
	logger := slog.New(NewSlogHandlerWithLogger(zl))

	tests := []struct {
		name    string
		logFunc func()
		level   string
	}{
		{"Debug", func() { logger.Debug("debug msg") }, "debug"},
		{"Info", func() { logger.Info("info msg") }, "info"},
		{"Warn", func() { logger.Warn("warn msg") }, "warn"},
		{"Error", func() { logger.Error("error msg") }, "error"},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.logFunc()
		output := buf.String()
		if !strings.Contains(output, `"level":"`+tt.level+`"`) {
			t.Errorf("%s: expected level %s in output: %s", tt.name, tt.level, output)
		}
	}
}

func TestSlogHandlerAttrs(t *testing.T) {
	var buf bytes.Buffer

	zl := zerolog.New(&buf)
	logger := slog.New(NewSlogHandlerWithLogger(zl))

	logger.Info("with attrs",
		slog.String("str", "value"),
		slog.Int("num", 42),
		slog.Bool("flag", true),
	)

	output := buf.String()
	for _, want := range []string{`"str":"value"`, `"num":42`, `"flag":true`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestSlogHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer

	zl := zerolog.New(&buf)
	logger := slog.New(NewSlogHandlerWithLogger(zl)).With("service", "http-server")

	logger.Info("service event")

	output := buf.String()
	if !strings.Contains(output, `"service":"http-server"`) {
		t.Errorf("expected pre-configured attr in output: %s", output)
	}
}

func TestSlogHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer

	zl := zerolog.New(&buf)
	logger := slog.New(NewSlogHandlerWithLogger(zl)).WithGroup("supervisor")

	logger.Info("grouped", slog.String("name", "root"))

	output := buf.String()
	if !strings.Contains(output, `"supervisor.name":"root"`) {
		t.Errorf("expected group-prefixed key in output: %s", output)
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	zl := zerolog.New(nil).Level(zerolog.WarnLevel)
	handler := NewSlogHandlerWithLogger(zl)

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}
