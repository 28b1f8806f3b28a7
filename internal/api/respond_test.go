// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/evhome/bluelink-gateway/internal/gateway"
	"github.com/evhome/bluelink-gateway/internal/models"
	"github.com/evhome/bluelink-gateway/internal/upstream"
)

func TestStatusForClassification(t *testing.T) {
	tests := []struct {
		class gateway.Classification
		want  int
	}{
		{gateway.ClassificationCooldown, http.StatusTooManyRequests},
		{gateway.ClassificationRateLimited, http.StatusTooManyRequests},
		{gateway.ClassificationAuth, http.StatusBadGateway},
		{gateway.ClassificationTransient, http.StatusBadGateway},
		{gateway.ClassificationResultUnknown, http.StatusGatewayTimeout},
		{gateway.ClassificationNoData, http.StatusServiceUnavailable},
		{gateway.ClassificationUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			if got := statusForClassification(tt.class); got != tt.want {
				t.Errorf("Expected status %d for %s, got %d", tt.want, tt.class, got)
			}
		})
	}
}

func TestRespondGatewayError_CooldownCarriesRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	err := &gateway.CooldownActiveError{Class: gateway.ClassCommand, Remaining: 42 * time.Second}

	respondGatewayError(w, "lock", err)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "42" {
		t.Errorf("Expected Retry-After 42, got %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Expected no-store on error responses, got %q", got)
	}

	var response models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode envelope: %v", err)
	}
	if response.Success {
		t.Error("Expected success=false")
	}
	if response.CommandInvoked != "lock" {
		t.Errorf("Expected command_invoked lock, got %q", response.CommandInvoked)
	}
	if response.Message != "Error during lock." {
		t.Errorf("Unexpected message: %q", response.Message)
	}
	if response.Error != string(gateway.ClassificationCooldown) {
		t.Errorf("Expected cooldown_active classification, got %q", response.Error)
	}
	if response.RetryAfterSeconds != 42 {
		t.Errorf("Expected retry_after_seconds 42, got %v", response.RetryAfterSeconds)
	}
}

func TestRespondGatewayError_SubSecondCooldownRoundsUp(t *testing.T) {
	w := httptest.NewRecorder()
	err := &gateway.CooldownActiveError{Class: gateway.ClassRefresh, Remaining: 700 * time.Millisecond}

	respondGatewayError(w, "status_live", err)

	// Retry-After is an integer header; rounding down to 0 would tell
	// clients to retry immediately into the same rejection.
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Expected Retry-After 1, got %q", got)
	}

	var response models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode envelope: %v", err)
	}
	if response.RetryAfterSeconds != 0.7 {
		t.Errorf("Expected retry_after_seconds 0.7, got %v", response.RetryAfterSeconds)
	}
}

func TestRespondGatewayError_TransientMapsToBadGateway(t *testing.T) {
	w := httptest.NewRecorder()
	err := fmt.Errorf("refresh status: %w", upstream.ErrTransient)

	respondGatewayError(w, "status_live", err)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", w.Code)
	}

	var response models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode envelope: %v", err)
	}
	if response.Error != string(gateway.ClassificationTransient) {
		t.Errorf("Expected transient_network, got %q", response.Error)
	}
	if got := w.Header().Get("Retry-After"); got != "" {
		t.Errorf("Expected no Retry-After on transient errors, got %q", got)
	}
}

func TestRespondJSON_Headers(t *testing.T) {
	w := httptest.NewRecorder()
	respondJSON(w, http.StatusOK, models.NewSuccessResponse("status_cached", nil))

	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Expected application/json, got %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Expected no-cache on reads, got %q", got)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("Expected an ETag")
	}
}

func TestRespondCommand_NeverStored(t *testing.T) {
	w := httptest.NewRecorder()
	respondCommand(w, http.StatusOK, models.NewSuccessResponse("lock", nil))

	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Expected no-store on commands, got %q", got)
	}
}

func TestGenerateETag(t *testing.T) {
	a := generateETag([]byte(`{"soc_in_percent":72}`))
	b := generateETag([]byte(`{"soc_in_percent":72}`))
	c := generateETag([]byte(`{"soc_in_percent":71}`))

	if a != b {
		t.Errorf("Expected identical payloads to share an ETag: %q vs %q", a, b)
	}
	if a == c {
		t.Error("Expected different payloads to produce different ETags")
	}
	if _, err := strconv.ParseUint(a, 16, 64); err != nil {
		t.Errorf("Expected a hex ETag, got %q", a)
	}
}
