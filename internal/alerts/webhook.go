// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package alerts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// WebhookChannel delivers alert events as JSON POSTs to a fixed URL.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel creates a webhook delivery channel for the given URL.
func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the channel identifier.
func (c *WebhookChannel) Name() string {
	return "webhook"
}

// Validate checks if the webhook configuration is valid.
func (c *WebhookChannel) Validate() error {
	if err := ValidateWebhookURL(c.url); err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	return nil
}

// Send delivers the event via HTTP POST.
func (c *WebhookChannel) Send(ctx context.Context, event *Event) *DeliveryResult {
	result := &DeliveryResult{}

	jsonPayload, err := json.Marshal(event)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to marshal payload: %v", err)
		result.ErrorCode = ErrorCodeUnknown
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonPayload))
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to create request: %v", err)
		result.ErrorCode = ErrorCodeInvalidConfig
		return result
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Bluelink-Gateway/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to send webhook: %v", err)
		result.ErrorCode = classifyHTTPError(err)
		result.IsTransient = isTransientHTTPError(result.ErrorCode)
		return result
	}
	defer resp.Body.Close()

	result.ResponseCode = resp.StatusCode

	// Read response body for error details
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		body = []byte("(failed to read response)")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		now := time.Now()
		result.Success = true
		result.DeliveredAt = &now
		return result
	}

	result.ErrorMessage = fmt.Sprintf("webhook returned %d: %s", resp.StatusCode, string(body))
	result.ErrorCode = classifyHTTPStatusCode(resp.StatusCode)
	result.IsTransient = isTransientHTTPError(result.ErrorCode)

	if resp.StatusCode == http.StatusTooManyRequests {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				result.RetryAfter = &seconds
			}
		}
	}

	return result
}
