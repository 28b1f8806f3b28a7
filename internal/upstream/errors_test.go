// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code    int
		wantErr error
	}{
		{http.StatusUnauthorized, ErrAuthenticationFailed},
		{http.StatusForbidden, ErrAuthenticationFailed},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusRequestTimeout, ErrTransient},
		{http.StatusInternalServerError, ErrTransient},
		{http.StatusBadGateway, ErrTransient},
		{http.StatusServiceUnavailable, ErrTransient},
		{http.StatusGatewayTimeout, ErrTransient},
		{http.StatusBadRequest, ErrUnknown},
		{http.StatusNotFound, ErrUnknown},
		{http.StatusConflict, ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("HTTP %d", tt.code), func(t *testing.T) {
			err := classifyStatus("lock", tt.code, []byte(`{"error":"detail"}`))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v for status %d, got %v", tt.wantErr, tt.code, err)
			}
			if !strings.Contains(err.Error(), "lock") {
				t.Errorf("Expected operation name in error, got: %v", err)
			}
			if !strings.Contains(err.Error(), fmt.Sprintf("%d", tt.code)) {
				t.Errorf("Expected status code in error, got: %v", err)
			}
		})
	}
}

func TestOutcomeLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, "success"},
		{"auth failure", fmt.Errorf("%w: detail", ErrAuthenticationFailed), "auth_failed"},
		{"rate limited", fmt.Errorf("%w: detail", ErrRateLimited), "rate_limited"},
		{"transient", fmt.Errorf("%w: detail", ErrTransient), "transient"},
		{"no data", fmt.Errorf("%w: detail", ErrNoData), "no_data"},
		{"unknown sentinel", fmt.Errorf("%w: detail", ErrUnknown), "unknown"},
		{"unclassified error", errors.New("something else"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcomeLabel(tt.err); got != tt.want {
				t.Errorf("outcomeLabel(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
