// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ocelotlabs/loghub/internal/auth"
	"github.com/ocelotlabs/loghub/internal/config"
	"github.com/ocelotlabs/loghub/internal/middleware"
)

// Router assembles the HTTP routes around a Handler and a token
// validator.
type Router struct {
	handler   *Handler
	validator *auth.Validator
	security  config.SecurityConfig
}

// NewRouter returns a Router ready to produce the service handler.
func NewRouter(handler *Handler, validator *auth.Validator, security config.SecurityConfig) *Router {
	return &Router{
		handler:   handler,
		validator: validator,
		security:  security,
	}
}

// Setup builds the full route tree. Health and metrics stay public;
// everything under /api/v1 requires a bearer token, with per-route
// role gates on top.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", auth.TenantHeader, "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", router.handler.Healthz)
	r.Get("/readyz", router.handler.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Prometheus)
		r.Use(router.rateLimit())
		r.Use(auth.Middleware(router.validator, WriteDomainError))

		r.Route("/logs", func(r chi.Router) {
			r.With(requireWriter).Post("/", router.handler.ProduceLog)
			r.With(requireWriter).Post("/bulk", router.handler.ProduceLogBulk)

			r.With(requireReader).Get("/", router.handler.QueryLogs)
			r.With(requireReader).Get("/{id}", router.handler.GetLog)

			r.With(requireAdmin).Post("/reindex", router.handler.ReindexLogs)
			r.With(requireWriter).Delete("/retention", router.handler.ApplyRetention)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Use(requireReader)
			r.Get("/summary", router.handler.StatsSummary)
			r.Get("/timeline", router.handler.StatsTimeline)
		})

		r.Route("/tenants", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/", router.handler.ListTenants)
			r.Post("/", router.handler.CreateTenant)
			r.Get("/{tenant_id}", router.handler.GetTenant)
			r.Patch("/{tenant_id}", router.handler.UpdateTenant)
			r.Delete("/{tenant_id}", router.handler.DeleteTenant)
		})

		// Role and tenant checks happen inside the handler, before
		// the websocket upgrade commits the response.
		r.Get("/ws/logs", router.handler.StreamLogs)
	})

	return r
}

func (router *Router) rateLimit() func(http.Handler) http.Handler {
	if router.security.RateLimitReqs <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		router.security.RateLimitReqs,
		router.security.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			NewResponseWriter(w, r).Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, "rate limit exceeded")
		}),
	)
}

var (
	requireReader = auth.RequireRoles(WriteDomainError, auth.RoleReader)
	requireWriter = auth.RequireRoles(WriteDomainError, auth.RoleWriter)
	requireAdmin  = auth.RequireRoles(WriteDomainError, auth.RoleAdmin)
)
