// Bluelink Gateway - Vehicle Telematics HTTP Facade
// Copyright 2026 K. Olsen (evhome)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evhome/bluelink-gateway

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evhome/bluelink-gateway/internal/config"
	"github.com/evhome/bluelink-gateway/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so the middleware package works with
// r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router wires the endpoint handlers into a Chi router.
type Router struct {
	handler *Handler
	mw      *ChiMiddleware
}

// NewRouter creates a router for the given handler and server settings.
func NewRouter(cfg config.ServerConfig, handler *Handler) *Router {
	return &Router{
		handler: handler,
		mw:      NewChiMiddlewareFromServer(cfg),
	}
}

// Setup builds the HTTP handler with the full middleware stack and
// route table.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order. CORS sits
	// here so OPTIONS preflight is answered before routing.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.mw.CORS())
	r.Use(APISecurityHeaders())

	// Banner, endpoint directory, and health. Permissive rate limit so
	// monitoring tools can poll freely.
	r.Group(func(r chi.Router) {
		r.Use(router.mw.RateLimitHealth())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.Compression))

		r.Get("/", router.handler.Root)
		r.Get("/info", router.handler.Info)
		r.Get("/healthz", router.handler.Health)
	})

	// Vehicle state reads.
	r.Group(func(r chi.Router) {
		r.Use(router.mw.RateLimit())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.Compression))

		r.Get("/status", router.handler.StatusCached)
		r.Get("/status/refresh", router.handler.StatusLive)
		r.Get("/status/soc", router.handler.StatusSoC)
		r.Get("/status/range", router.handler.StatusRange)
		r.Get("/odometer", router.handler.Odometer)
		r.Get("/odometer/refresh", router.handler.OdometerLive)
		r.Get("/location", router.handler.Location)
	})

	// Vehicle commands.
	r.Group(func(r chi.Router) {
		r.Use(router.mw.RateLimitCommand())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Post("/lock", router.handler.Lock)
		r.Post("/unlock", router.handler.Unlock)
		r.Post("/climate/start", router.handler.ClimateStart)
		r.Post("/climate/stop", router.handler.ClimateStop)
		r.Post("/charge/start", router.handler.ChargeStart)
		r.Post("/charge/stop", router.handler.ChargeStop)
	})

	// Prometheus does its own content negotiation, including gzip, so
	// the compression middleware stays off this route.
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(router.handler.NotFound)
	r.MethodNotAllowed(router.handler.MethodNotAllowed)

	return r
}
