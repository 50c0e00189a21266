package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/songify/reporter/internal/broker"
	"github.com/songify/reporter/internal/config"
	"github.com/songify/reporter/internal/db"
	"github.com/songify/reporter/internal/handlers"
	"github.com/songify/reporter/internal/metrics"
	"github.com/songify/reporter/internal/middleware"
	"github.com/songify/reporter/internal/scrub"
	"github.com/songify/reporter/internal/sentry"
	"github.com/songify/reporter/internal/services"
)

// New builds the HTTP API. ctx bounds background work such as rate limiter
// cleanup. A nil m disables the /metrics endpoint.
func New(ctx context.Context, cfg *config.Config, queries *db.Queries, scrubber *scrub.Scrubber, reporter *sentry.Reporter, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	realIP := middleware.NewRealIPMiddleware(cfg.TrustedProxies)
	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic: true,
		Timeout: 2 * time.Second,
	})

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(realIP.Handler)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(sentryHandler.Handle)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	// Services
	b := broker.New()
	authService := services.NewAuthService(cfg.JWTSecret, cfg.AdminTokenDuration, cfg.ViewerTokenDuration)
	reportService := services.NewReportService(queries, scrubber, reporter, b)
	eventScrubber := sentry.NewEventScrubber(scrubber)

	// Handlers
	adminHandler := handlers.NewAdminHandler(cfg, authService)
	configHandler := handlers.NewConfigHandler(cfg, scrubber)
	reportHandler := handlers.NewReportHandler(reportService, cfg, m)
	sseHandler := handlers.NewSSEHandler(b)
	tunnelHandler := handlers.NewSentryTunnelHandler(cfg, eventScrubber, m)

	// Rate limiter for unauthenticated writes
	rateLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute)

	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Public configuration (frontend Sentry DSN, scrub marker)
		r.Get("/config", configHandler.PublicConfig)

		// Public, rate limited
		r.Group(func(r chi.Router) {
			r.Use(rateLimiter.Middleware)

			r.Post("/admin/token", adminHandler.IssueToken)
			r.Post("/reports", reportHandler.Submit)
			r.Post("/scrub", reportHandler.Scrub)
			r.Post("/sentry/tunnel", tunnelHandler.Tunnel)
		})

		// Dashboard routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(authService))
			r.Use(middleware.RequireRole(services.RoleAdmin, services.RoleViewer))

			r.Get("/projects/{project}/reports", reportHandler.List)
			r.Get("/projects/{project}/reports/stream", sseHandler.Stream)
			r.Get("/reports/{id}", reportHandler.Get)
			r.Get("/reports/ref/{reference}", reportHandler.GetByReference)

			// Admin-only actions
			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminOnlyMiddleware)
				r.Delete("/reports/{id}", reportHandler.Delete)
				r.Post("/admin/viewer-tokens", adminHandler.IssueViewerToken)
			})
		})
	})

	return r
}
