// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

// Package alerts implements best-effort delivery of escalated failure
// notifications. Delivery never affects the operation that triggered the
// alert: failures are logged and counted, not propagated.
package alerts

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// serviceName identifies this gateway in alert payloads.
const serviceName = "bluelink-gateway"

// Event is one escalated failure notification.
type Event struct {
	ID             string    `json:"event_id"`
	Service        string    `json:"service"`
	Classification string    `json:"classification"`
	Operation      string    `json:"operation"`
	Message        string    `json:"message"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewEvent builds an alert event with a fresh ID and timestamp.
func NewEvent(classification, operation, message string) *Event {
	return &Event{
		ID:             uuid.NewString(),
		Service:        serviceName,
		Classification: classification,
		Operation:      operation,
		Message:        message,
		OccurredAt:     time.Now().UTC(),
	}
}

// Channel defines a delivery channel for alert events.
type Channel interface {
	// Name returns the channel identifier.
	Name() string

	// Validate checks if the channel configuration is valid.
	Validate() error

	// Send delivers the event. The result is always non-nil; delivery
	// problems are reported through it, not as an error.
	Send(ctx context.Context, event *Event) *DeliveryResult
}

// DeliveryResult contains the result of a delivery attempt.
type DeliveryResult struct {
	// Success indicates if delivery was successful.
	Success bool

	// DeliveredAt is when delivery succeeded.
	DeliveredAt *time.Time

	// ErrorMessage contains error details if failed.
	ErrorMessage string

	// ErrorCode is a machine-readable error code.
	ErrorCode string

	// IsTransient indicates if the error is transient (can be retried).
	IsTransient bool

	// RetryAfter suggests when to retry (for rate limiting).
	RetryAfter *time.Duration

	// ResponseCode is the HTTP response code.
	ResponseCode int
}

// Error codes for delivery failures.
const (
	ErrorCodeInvalidConfig    = "INVALID_CONFIG"
	ErrorCodeConnectionFailed = "CONNECTION_FAILED"
	ErrorCodeAuthFailed       = "AUTH_FAILED"
	ErrorCodeRateLimited      = "RATE_LIMITED"
	ErrorCodeServerError      = "SERVER_ERROR"
	ErrorCodeTimeout          = "TIMEOUT"
	ErrorCodeUnknown          = "UNKNOWN"
)

// DispatchFunc delivers one event. The notifier treats a nil func as
// alerting disabled.
type DispatchFunc func(ctx context.Context, event *Event) error

// ChannelDispatch adapts a Channel into a DispatchFunc.
func ChannelDispatch(ch Channel) DispatchFunc {
	return func(ctx context.Context, event *Event) error {
		result := ch.Send(ctx, event)
		if result.Success {
			return nil
		}
		return fmt.Errorf("%s delivery failed (%s): %s", ch.Name(), result.ErrorCode, result.ErrorMessage)
	}
}

// ValidateWebhookURL validates a webhook URL.
func ValidateWebhookURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("webhook URL must use http or https scheme")
	}
	if parsed.Host == "" {
		return fmt.Errorf("webhook URL must have a host")
	}
	return nil
}

// classifyHTTPError classifies a transport-level error into an error code.
func classifyHTTPError(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return ErrorCodeTimeout
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "refused") {
		return ErrorCodeConnectionFailed
	}

	return ErrorCodeUnknown
}

// classifyHTTPStatusCode classifies an HTTP status code into an error code.
func classifyHTTPStatusCode(code int) string {
	switch {
	case code == 401 || code == 403:
		return ErrorCodeAuthFailed
	case code == 429:
		return ErrorCodeRateLimited
	case code >= 500:
		return ErrorCodeServerError
	default:
		return ErrorCodeUnknown
	}
}

// isTransientHTTPError returns true if the error is transient and can be retried.
func isTransientHTTPError(code string) bool {
	switch code {
	case ErrorCodeConnectionFailed, ErrorCodeTimeout, ErrorCodeRateLimited, ErrorCodeServerError:
		return true
	default:
		return false
	}
}
