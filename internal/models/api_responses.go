// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package models

// APIResponse is the envelope returned by every HTTP endpoint, success or
// failure. Home-automation consumers key off `command_invoked` to route
// results uniformly, so the field is always populated, including on 404s
// and validation failures.
//
// Example successful response:
//
//	{
//	  "success": true,
//	  "command_invoked": "lock",
//	  "message": "Lock command sent."
//	}
//
// Example failure:
//
//	{
//	  "success": false,
//	  "command_invoked": "climate_start",
//	  "message": "Error during climate_start.",
//	  "error": "cooldown_active",
//	  "details": "command window active, retry in 4.2s",
//	  "retry_after_seconds": 4.2
//	}
//
// Error holds a stable machine-readable classification (see the gateway
// error taxonomy); Details holds free-form human-readable context.
type APIResponse struct {
	Success           bool        `json:"success"`
	CommandInvoked    string      `json:"command_invoked"`
	Message           string      `json:"message,omitempty"`
	Data              interface{} `json:"data,omitempty"`
	Error             string      `json:"error,omitempty"`
	Details           string      `json:"details,omitempty"`
	RetryAfterSeconds float64     `json:"retry_after_seconds,omitempty"`
}

// NewSuccessResponse builds a success envelope for the given operation.
func NewSuccessResponse(operation string, data interface{}) *APIResponse {
	return &APIResponse{
		Success:        true,
		CommandInvoked: operation,
		Data:           data,
	}
}

// NewErrorResponse builds a failure envelope for the given operation.
// The message follows the long-standing "Error during <operation>." wording
// that downstream automations match on.
func NewErrorResponse(operation, classification, details string) *APIResponse {
	return &APIResponse{
		Success:        false,
		CommandInvoked: operation,
		Message:        "Error during " + operation + ".",
		Error:          classification,
		Details:        details,
	}
}
