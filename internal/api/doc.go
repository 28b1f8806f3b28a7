// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

/*
Package api provides the HTTP layer over the gateway façade.

Every endpoint answers with the models.APIResponse envelope, success and
failure alike. Home-automation consumers route on the command_invoked
field, so it is populated on every response including 404s; HTTP status
codes are set faithfully anyway for clients that prefer them.

Endpoint groups:

 1. Service endpoints: banner (/), endpoint directory (/info), health
    (/healthz), and Prometheus metrics (/metrics).

 2. State reads: /status and /odometer serve from the gateway cache,
    /status/refresh and /odometer/refresh force the vehicle to report,
    and /location always queries live. /status/soc and /status/range
    are cached slices for integrations that poll one value.

 3. Commands (POST): /lock, /unlock, /climate/start, /climate/stop,
    /charge/start, /charge/stop.

Routing uses Chi with go-chi/cors for CORS and go-chi/httprate for
per-IP rate limits. The HTTP rate limits only bound abusive clients;
the real guard on upstream call frequency is the gateway's cooldown
tracker, which surfaces here as 429 responses carrying Retry-After.

Usage:

	gw := gateway.New(cfg, deps)
	handler := api.NewHandler(gw, version)
	router := api.NewRouter(cfg.Server, handler)
	http.ListenAndServe(cfg.Server.Addr(), router.Setup())

All handlers are safe for concurrent use; the gateway façade carries
the synchronization.
*/
package api
