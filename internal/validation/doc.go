// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

// Package validation provides struct validation using go-playground/validator v10.
//
// It wraps the library in a thread-safe singleton with human-readable
// error translation. Request handlers validate decoded bodies and map a
// *RequestValidationError to a 400 response:
//
//	var req models.ClimateRequest
//	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
//	    // malformed body
//	}
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    // respond validation_error with verr.Error() as detail
//	}
//
// The singleton caches struct reflection information, so repeated
// validations of the same request type are cheap.
package validation
