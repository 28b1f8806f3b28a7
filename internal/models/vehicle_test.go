// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package models

import "testing"

func boolPtr(b bool) *bool       { return &b }
func floatPtr(f float64) *float64 { return &f }

func TestClimateRequestResolveDefaults(t *testing.T) {
	req := ClimateRequest{Temperature: floatPtr(21.5)}
	spec := req.Resolve()

	if spec.TemperatureC != 21.5 {
		t.Errorf("expected temperature 21.5, got %v", spec.TemperatureC)
	}
	if spec.Defrost {
		t.Error("defrost should default to false")
	}
	if !spec.Climate {
		t.Error("climate should default to true")
	}
	if !spec.Heating {
		t.Error("heating should default to true")
	}
}

func TestClimateRequestResolveExplicit(t *testing.T) {
	req := ClimateRequest{
		Temperature: floatPtr(18),
		Defrost:     boolPtr(true),
		Climate:     boolPtr(false),
		Heating:     boolPtr(false),
	}
	spec := req.Resolve()

	if !spec.Defrost {
		t.Error("explicit defrost=true lost")
	}
	if spec.Climate {
		t.Error("explicit climate=false lost")
	}
	if spec.Heating {
		t.Error("explicit heating=false lost")
	}
}

func TestNewErrorResponseWording(t *testing.T) {
	resp := NewErrorResponse("climate_start", "cooldown_active", "retry in 4s")

	if resp.Success {
		t.Error("error response must not be successful")
	}
	if resp.CommandInvoked != "climate_start" {
		t.Errorf("command_invoked = %q", resp.CommandInvoked)
	}
	if resp.Message != "Error during climate_start." {
		t.Errorf("unexpected message wording: %q", resp.Message)
	}
	if resp.Error != "cooldown_active" {
		t.Errorf("classification = %q", resp.Error)
	}
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse("status", map[string]int{"soc_in_percent": 80})

	if !resp.Success {
		t.Error("expected success")
	}
	if resp.CommandInvoked != "status" {
		t.Errorf("command_invoked = %q", resp.CommandInvoked)
	}
	if resp.Data == nil {
		t.Error("expected data payload")
	}
}
