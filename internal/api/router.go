package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/realtime-delivery/internal/api/handler"
	apimw "github.com/notifyhub/realtime-delivery/internal/api/middleware"
	"github.com/notifyhub/realtime-delivery/internal/hub"
	"github.com/notifyhub/realtime-delivery/internal/processor"
	"github.com/notifyhub/realtime-delivery/internal/service"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Service   *service.NotificationService
	Processor *processor.Processor
	Hub       *hub.Hub
	HubOpts   hub.Options
	Registry  prometheus.Gatherer
	JWTSecret string
	Logger    *zap.Logger
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(deps.Logger))

	// --- handler instances ---
	nh := handler.NewNotificationHandler(deps.Service, deps.Logger)
	sh := handler.NewStatsHandler(deps.Processor, deps.Hub)
	wh := handler.NewWSHandler(deps.Hub, deps.HubOpts, deps.Logger)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	// Websocket endpoint: authenticated owners only, never registered
	// without a verified identity.
	r.Group(func(r chi.Router) {
		r.Use(apimw.OwnerAuth(deps.JWTSecret))
		r.Get("/ws", wh.Serve)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/notifications", nh.Create)
		r.Get("/notifications", nh.List)
		r.Get("/notifications/{id}", nh.GetByID)

		r.Get("/stats", sh.GetStats)
	})

	return r
}
