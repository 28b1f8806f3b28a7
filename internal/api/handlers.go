// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/evhome/bluelink-gateway/internal/gateway"
	"github.com/evhome/bluelink-gateway/internal/models"
	"github.com/evhome/bluelink-gateway/internal/validation"
)

// Operation names echoed in the command_invoked envelope field.
// Consumers route on these, so they are part of the wire contract.
const (
	opRoot         = "root"
	opInfo         = "info"
	opHealth       = "health"
	opStatusCached = "status_cached"
	opStatusLive   = "status_live"
	opStatusSoC    = "status_soc"
	opStatusRange  = "status_range"
	opOdometer     = "odometer"
	opOdometerLive = "odometer_live"
	opLocation     = "location"
	opLock         = "lock"
	opUnlock       = "unlock"
	opClimateStart = "climate_start"
	opClimateStop  = "climate_stop"
	opChargeStart  = "charge_start"
	opChargeStop   = "charge_stop"
	opNotFound     = "route_not_found"
	opBadMethod    = "method_not_allowed"
)

// maxCommandBody bounds command request bodies. The largest legitimate
// body is a climate start request, well under 1 KiB.
const maxCommandBody = 4 << 10

// Handler serves the HTTP endpoints over the gateway façade.
type Handler struct {
	gw      *gateway.Gateway
	version string
}

// NewHandler creates the endpoint handler. version is reported by /info.
func NewHandler(gw *gateway.Gateway, version string) *Handler {
	if version == "" {
		version = "dev"
	}
	return &Handler{gw: gw, version: version}
}

// success builds the success envelope with the standard message wording.
func success(operation string, data interface{}) *models.APIResponse {
	response := models.NewSuccessResponse(operation, data)
	response.Message = operation + " successful."
	return response
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, success(opRoot, map[string]string{
		"message": "Bluelink Gateway is running! See /info for available endpoints.",
	}))
}

// endpointInfo documents one route in the /info directory.
type endpointInfo struct {
	Path        string      `json:"path"`
	Method      string      `json:"method"`
	Description string      `json:"description"`
	BodyExample interface{} `json:"body_example,omitempty"`
	Notes       string      `json:"notes,omitempty"`
}

// apiInfo is the /info payload.
type apiInfo struct {
	Description string             `json:"description"`
	Version     string             `json:"version"`
	Vehicle     models.VehicleInfo `json:"vehicle"`
	Endpoints   []endpointInfo     `json:"endpoints"`
}

// Info handles GET /info: API metadata plus the endpoint directory that
// every error response points callers at.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	info := apiInfo{
		Description: "HTTP facade over the Bluelink vehicle cloud for home-automation use.",
		Version:     h.version,
		Vehicle:     h.gw.Info(),
		Endpoints: []endpointInfo{
			{Path: "/", Method: "GET", Description: "API banner."},
			{Path: "/info", Method: "GET", Description: "This endpoint directory."},
			{Path: "/healthz", Method: "GET", Description: "Gateway health: session, cache age, breaker, in-flight operations."},
			{Path: "/metrics", Method: "GET", Description: "Prometheus metrics."},
			{Path: "/status", Method: "GET", Description: "Vehicle status from the gateway cache. Fast; may be slightly stale."},
			{Path: "/status/refresh", Method: "GET", Description: "Vehicle status read from the car itself. Slow; wakes the vehicle."},
			{Path: "/status/soc", Method: "GET", Description: "Battery state of charge from the gateway cache."},
			{Path: "/status/range", Method: "GET", Description: "Driving range from the gateway cache."},
			{Path: "/odometer", Method: "GET", Description: "Odometer reading from the gateway cache."},
			{Path: "/odometer/refresh", Method: "GET", Description: "Odometer reading fetched live from the vehicle cloud."},
			{Path: "/location", Method: "GET", Description: "Vehicle position, fetched live from the vehicle cloud."},
			{Path: "/lock", Method: "POST", Description: "Lock the doors."},
			{Path: "/unlock", Method: "POST", Description: "Unlock the doors."},
			{
				Path:        "/climate/start",
				Method:      "POST",
				Description: "Start climatisation.",
				BodyExample: models.ClimateSpec{TemperatureC: 21, Defrost: false, Climate: true, Heating: true},
				Notes:       "Temperature in °C, accepted range 16-30. Omitted toggles default to defrost=false, climate=true, heating=true.",
			},
			{Path: "/climate/stop", Method: "POST", Description: "Stop climatisation."},
			{Path: "/charge/start", Method: "POST", Description: "Start charging."},
			{Path: "/charge/stop", Method: "POST", Description: "Stop charging."},
		},
	}

	respondJSON(w, http.StatusOK, success(opInfo, info))
}

// Health handles GET /healthz. Always 200: the payload reports degraded
// internals, the status code only says the process is serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, success(opHealth, h.gw.Health()))
}

// StatusCached handles GET /status.
func (h *Handler) StatusCached(w http.ResponseWriter, r *http.Request) {
	st, _, err := h.gw.ReadStatus(r.Context())
	if err != nil {
		respondGatewayError(w, opStatusCached, err)
		return
	}
	respondJSON(w, http.StatusOK, success(opStatusCached, st))
}

// StatusLive handles GET /status/refresh: a forced refresh that wakes
// the vehicle over the cellular link.
func (h *Handler) StatusLive(w http.ResponseWriter, r *http.Request) {
	st, err := h.gw.RefreshStatus(r.Context())
	if err != nil {
		respondGatewayError(w, opStatusLive, err)
		return
	}
	respondJSON(w, http.StatusOK, success(opStatusLive, st))
}

// StatusSoC handles GET /status/soc.
func (h *Handler) StatusSoC(w http.ResponseWriter, r *http.Request) {
	soc, _, err := h.gw.ReadSoC(r.Context())
	if err != nil {
		respondGatewayError(w, opStatusSoC, err)
		return
	}
	respondJSON(w, http.StatusOK, success(opStatusSoC, soc))
}

// StatusRange handles GET /status/range.
func (h *Handler) StatusRange(w http.ResponseWriter, r *http.Request) {
	rng, _, err := h.gw.ReadRange(r.Context())
	if err != nil {
		respondGatewayError(w, opStatusRange, err)
		return
	}
	respondJSON(w, http.StatusOK, success(opStatusRange, rng))
}

// Odometer handles GET /odometer, sliced from the cached status.
func (h *Handler) Odometer(w http.ResponseWriter, r *http.Request) {
	odo, err := h.gw.ReadOdometer(r.Context(), false)
	if err != nil {
		respondGatewayError(w, opOdometer, err)
		return
	}
	respondJSON(w, http.StatusOK, success(opOdometer, odo))
}

// OdometerLive handles GET /odometer/refresh, read live from upstream.
func (h *Handler) OdometerLive(w http.ResponseWriter, r *http.Request) {
	odo, err := h.gw.ReadOdometer(r.Context(), true)
	if err != nil {
		respondGatewayError(w, opOdometerLive, err)
		return
	}
	respondJSON(w, http.StatusOK, success(opOdometerLive, odo))
}

// Location handles GET /location. Always a live read: positions go
// stale too fast for the cache to be useful.
func (h *Handler) Location(w http.ResponseWriter, r *http.Request) {
	loc, err := h.gw.ReadLocation(r.Context())
	if err != nil {
		respondGatewayError(w, opLocation, err)
		return
	}
	respondJSON(w, http.StatusOK, success(opLocation, loc))
}

// runCommand is the shared command flow: run the gateway call, answer
// with the standard envelope.
func (h *Handler) runCommand(w http.ResponseWriter, r *http.Request, operation string, run func(context.Context) error) {
	if err := run(r.Context()); err != nil {
		respondGatewayError(w, operation, err)
		return
	}
	respondCommand(w, http.StatusOK, success(operation, nil))
}

// Lock handles POST /lock.
func (h *Handler) Lock(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, opLock, h.gw.Lock)
}

// Unlock handles POST /unlock.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, opUnlock, h.gw.Unlock)
}

// ClimateStart handles POST /climate/start. The body is validated
// before anything touches the upstream pipeline, so a bad temperature
// never consumes the command cooldown window.
func (h *Handler) ClimateStart(w http.ResponseWriter, r *http.Request) {
	var req models.ClimateRequest
	body := http.MaxBytesReader(w, r.Body, maxCommandBody)
	// An absent body falls through to struct validation, which reports
	// the missing temperature by name instead of a bare EOF.
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondValidationError(w, opClimateStart, "invalid request body: "+err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, opClimateStart, verr.Error())
		return
	}

	h.runCommand(w, r, opClimateStart, func(ctx context.Context) error {
		return h.gw.StartClimate(ctx, req)
	})
}

// ClimateStop handles POST /climate/stop.
func (h *Handler) ClimateStop(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, opClimateStop, h.gw.StopClimate)
}

// ChargeStart handles POST /charge/start.
func (h *Handler) ChargeStart(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, opChargeStart, h.gw.StartCharge)
}

// ChargeStop handles POST /charge/stop.
func (h *Handler) ChargeStop(w http.ResponseWriter, r *http.Request) {
	h.runCommand(w, r, opChargeStop, h.gw.StopCharge)
}

// NotFound answers unknown routes with the standard envelope so
// consumers that only parse envelopes still get a machine-readable
// answer.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondCommand(w, http.StatusNotFound, models.NewErrorResponse(
		opNotFound, classificationNotFound,
		"The requested endpoint does not exist. See /info.",
	))
}

// MethodNotAllowed answers method mismatches on known routes.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondCommand(w, http.StatusMethodNotAllowed, models.NewErrorResponse(
		opBadMethod, classificationBadMethod,
		"Method "+r.Method+" is not allowed for this endpoint. See /info.",
	))
}
