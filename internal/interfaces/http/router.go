// Package http wires the REST surface: router, middleware stack, and server
// lifecycle.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ecocomply/compliance-engine/internal/interfaces/http/handlers"
	"github.com/ecocomply/compliance-engine/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil handlers leave their routes unmounted, so partial deployments (worker
// without the admin surface) reuse the same constructor.
type RouterConfig struct {
	ScheduleHandler *handlers.ScheduleHandler
	DeadlineHandler *handlers.DeadlineHandler
	RiskHandler     *handlers.RiskHandler
	HealthHandler   *handlers.HealthHandler

	TenantMiddleware    *middleware.TenantMiddleware
	LoggingMiddleware   *middleware.LoggingMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware

	MetricsHandler http.Handler
}

// NewRouter constructs the complete route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.LoggingMiddleware != nil {
		r.Use(cfg.LoggingMiddleware.Handler)
	}
	if cfg.RateLimitMiddleware != nil {
		r.Use(cfg.RateLimitMiddleware.Handler)
	}

	// Probes and metrics stay outside the tenant scope.
	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.TenantMiddleware != nil {
			api.Use(cfg.TenantMiddleware.Handler)
		}

		registerScheduleRoutes(api, cfg.ScheduleHandler)
		registerDeadlineRoutes(api, cfg.DeadlineHandler)
		registerRiskRoutes(api, cfg.RiskHandler)
	})

	return r
}

func registerScheduleRoutes(r chi.Router, h *handlers.ScheduleHandler) {
	if h == nil {
		return
	}
	r.Route("/schedules", func(sr chi.Router) {
		sr.Post("/", h.Create)

		sr.Route("/{scheduleID}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Post("/cancel", h.Cancel)
			item.Post("/pause", h.Pause)
			item.Post("/resume", h.Resume)
		})
	})

	r.Post("/events", h.RecordEvent)
}

func registerDeadlineRoutes(r chi.Router, h *handlers.DeadlineHandler) {
	if h == nil {
		return
	}
	r.Route("/deadlines", func(dr chi.Router) {
		dr.Get("/", h.List)

		dr.Route("/{deadlineID}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Post("/complete", h.Complete)
		})
	})

	r.Post("/sweep", h.Sweep)
}

func registerRiskRoutes(r chi.Router, h *handlers.RiskHandler) {
	if h == nil {
		return
	}
	r.Route("/sites/{siteID}/risk", func(site chi.Router) {
		site.Get("/", h.GetSiteRisk)
		site.Get("/history", h.GetHistory)
	})

	r.Route("/risk", func(rr chi.Router) {
		rr.Get("/company", h.GetCompanyRisk)
		rr.Get("/snapshots", h.ListSnapshots)
		rr.Post("/recompute", h.Recompute)
	})
}
