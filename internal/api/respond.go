// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/evhome/bluelink-gateway/internal/gateway"
	"github.com/evhome/bluelink-gateway/internal/logging"
	"github.com/evhome/bluelink-gateway/internal/models"
)

// Classifications minted by the HTTP layer itself. Everything upstream-
// facing comes from the gateway error taxonomy instead.
const (
	classificationValidation = "validation_error"
	classificationNotFound   = "not_found"
	classificationBadMethod  = "method_not_allowed"
)

// respondJSON writes an envelope for read endpoints. The ETag lets
// pollers detect an unchanged vehicle state; no-cache forces
// revalidation so an intermediary never serves a stale charge level.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	writeEnvelope(w, status, response, "no-cache")
}

// respondCommand writes an envelope for command endpoints and error
// responses, which must never be stored by any cache.
func respondCommand(w http.ResponseWriter, status int, response *models.APIResponse) {
	writeEnvelope(w, status, response, "no-store")
}

func writeEnvelope(w http.ResponseWriter, status int, response *models.APIResponse, cacheControl string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", cacheControl)
	w.Header().Set("Vary", "Accept-Encoding")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", generateETag(data))

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag creates a simple ETag from the payload using FNV-1a.
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// statusForClassification maps the gateway error taxonomy onto HTTP
// status codes. Upstream trouble surfaces as 502 (the gateway itself is
// healthy), cooldown and upstream throttling as 429, an undetermined
// command outcome as 504.
func statusForClassification(class gateway.Classification) int {
	switch class {
	case gateway.ClassificationCooldown, gateway.ClassificationRateLimited:
		return http.StatusTooManyRequests
	case gateway.ClassificationAuth, gateway.ClassificationTransient:
		return http.StatusBadGateway
	case gateway.ClassificationResultUnknown:
		return http.StatusGatewayTimeout
	case gateway.ClassificationNoData:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondGatewayError translates a pipeline error into the failure
// envelope. Cooldown rejections additionally carry Retry-After and
// retry_after_seconds so clients can back off precisely.
func respondGatewayError(w http.ResponseWriter, operation string, err error) {
	class := gateway.Classify(err)
	response := models.NewErrorResponse(operation, string(class), err.Error())

	var cooldown *gateway.CooldownActiveError
	if errors.As(err, &cooldown) {
		secs := cooldown.Remaining.Seconds()
		response.RetryAfterSeconds = math.Round(secs*10) / 10
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(secs))))
	}

	status := statusForClassification(class)
	logging.Warn().
		Str("operation", operation).
		Str("classification", string(class)).
		Int("status", status).
		Err(err).
		Msg("Request failed")

	respondCommand(w, status, response)
}

// respondValidationError rejects a request before it reaches the
// gateway pipeline, so nothing is consumed from any cooldown window.
func respondValidationError(w http.ResponseWriter, operation, details string) {
	respondCommand(w, http.StatusBadRequest,
		models.NewErrorResponse(operation, classificationValidation, details))
}
