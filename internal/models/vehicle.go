// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package models

import "time"

// VehicleStatus is a point-in-time snapshot of everything the vehicle cloud
// reports about the car. RetrievedAt is the moment the snapshot was obtained
// from upstream; the status cache uses it as the monotonic ordering key, so
// it must never be zero on a stored snapshot.
//
// Range fields: EVRangeKm covers the traction battery, FuelRangeKm the
// combustion side of hybrids (zero for pure EVs), TotalRangeKm the combined
// figure the dashboard shows.
type VehicleStatus struct {
	EngineOn      bool    `json:"engine_on"`
	DoorsLocked   bool    `json:"doors_locked"`
	TrunkOpen     bool    `json:"trunk_open"`
	ClimateOn     bool    `json:"climate_on"`
	DefrostOn     bool    `json:"defrost_on"`
	ClimateTempC  float64 `json:"climate_temp_c,omitempty"`
	SoCPercent    int     `json:"soc_in_percent"`
	EVRangeKm     float64 `json:"ev_driving_range_in_km"`
	FuelRangeKm   float64 `json:"fuel_driving_range_in_km,omitempty"`
	TotalRangeKm  float64 `json:"total_driving_range_in_km"`
	Charging      bool    `json:"charging"`
	PluggedIn     bool    `json:"plugged_in"`
	Battery12VPct int     `json:"car_battery_in_percent,omitempty"`
	OdometerKm    float64 `json:"odometer_in_km"`

	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Altitude          float64   `json:"altitude,omitempty"`
	LocationUpdatedAt time.Time `json:"location_last_updated_at,omitempty"`

	RetrievedAt time.Time `json:"retrieved_at"`
}

// SoC returns the state-of-charge slice of the snapshot.
func (s *VehicleStatus) SoC() SoC {
	return SoC{
		SoCPercent:  s.SoCPercent,
		Charging:    s.Charging,
		RetrievedAt: s.RetrievedAt,
	}
}

// Range returns the driving-range slice of the snapshot.
func (s *VehicleStatus) Range() Range {
	return Range{
		EVRangeKm:    s.EVRangeKm,
		FuelRangeKm:  s.FuelRangeKm,
		TotalRangeKm: s.TotalRangeKm,
		RetrievedAt:  s.RetrievedAt,
	}
}

// Odometer returns the odometer slice of the snapshot.
func (s *VehicleStatus) Odometer() Odometer {
	return Odometer{
		OdometerKm:  s.OdometerKm,
		RetrievedAt: s.RetrievedAt,
	}
}

// Location is the position slice of a status snapshot, returned by the
// location endpoint.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude,omitempty"`
	UpdatedAt time.Time `json:"last_updated_at,omitempty"`
}

// SoC is the state-of-charge slice of a status snapshot.
type SoC struct {
	SoCPercent  int       `json:"soc_in_percent"`
	Charging    bool      `json:"charging"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Range is the driving-range slice of a status snapshot.
type Range struct {
	EVRangeKm    float64   `json:"ev_driving_range_in_km"`
	FuelRangeKm  float64   `json:"fuel_driving_range_in_km,omitempty"`
	TotalRangeKm float64   `json:"total_driving_range_in_km"`
	RetrievedAt  time.Time `json:"retrieved_at"`
}

// Odometer is the odometer slice of a status snapshot.
type Odometer struct {
	OdometerKm  float64   `json:"odometer_in_km"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// VehicleInfo identifies the configured vehicle without exposing the full
// VIN (masked to the last four characters in responses).
type VehicleInfo struct {
	VIN    string `json:"vin"`
	Region string `json:"region"`
	Brand  string `json:"brand"`
}

// ClimateRequest is the body of POST /climate/start. Temperature is
// mandatory and bounded to what the vehicle accepts; the three toggles
// default to defrost=false, climate=true, heating=true when omitted, which
// matches the behavior remote-start automations have always relied on.
//
// Pointer fields distinguish "omitted" from an explicit false.
type ClimateRequest struct {
	Temperature *float64 `json:"temperature" validate:"required,gte=16,lte=30"`
	Defrost     *bool    `json:"defrost"`
	Climate     *bool    `json:"climate"`
	Heating     *bool    `json:"heating"`
}

// ClimateSpec is the resolved form of a ClimateRequest with defaults
// applied, as handed to the upstream client.
type ClimateSpec struct {
	TemperatureC float64 `json:"temperature"`
	Defrost      bool    `json:"defrost"`
	Climate      bool    `json:"climate"`
	Heating      bool    `json:"heating"`
}

// Resolve applies the documented defaults and returns the spec sent upstream.
func (r *ClimateRequest) Resolve() ClimateSpec {
	spec := ClimateSpec{
		Defrost: false,
		Climate: true,
		Heating: true,
	}
	if r.Temperature != nil {
		spec.TemperatureC = *r.Temperature
	}
	if r.Defrost != nil {
		spec.Defrost = *r.Defrost
	}
	if r.Climate != nil {
		spec.Climate = *r.Climate
	}
	if r.Heating != nil {
		spec.Heating = *r.Heating
	}
	return spec
}
