// ReviewLens - Aspect-Based Product Recommendation Service
// Copyright 2026 ReviewLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewlens/reviewlens

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router assembles the HTTP surface.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates the router from its handler set and middleware
// factory.
func NewRouter(handler *Handler, mw *Middleware) *Router {
	if mw == nil {
		mw = NewMiddleware(nil)
	}
	return &Router{handler: handler, middleware: mw}
}

// Setup configures all routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())
	r.Use(RequestLogging)

	// Status endpoints stay reachable even after a failed startup so the
	// failure diagnostic is observable.
	r.Get("/", router.handler.Root)
	r.Get("/healthz", router.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.startupGate)
		r.Use(router.middleware.RateLimit())
		r.Use(router.middleware.Timeout())
		r.Use(PrometheusMetrics)

		r.Get("/search", router.handler.Search)
		r.Post("/feedback", router.handler.SubmitFeedback)
		r.Post("/analyze", router.handler.AnalyzeText)
		r.Get("/analytics", router.handler.Analytics)
		r.Post("/compare", router.handler.Compare)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusNotFound, ErrCodeNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	return r
}

// startupGate rejects data requests while the service is in its failed
// startup state.
func (router *Router) startupGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if router.handler.startupErr != "" {
			WriteError(w, r, http.StatusServiceUnavailable, ErrCodeStartupFailed, "Server failed to start correctly")
			return
		}
		next.ServeHTTP(w, r)
	})
}
