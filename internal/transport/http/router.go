package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"identix/pkg/platform/middleware/request"
)

// Routes is implemented by feature handlers that mount themselves on the
// API router.
type Routes interface {
	Register(r chi.Router, requireIssuer func(http.Handler) http.Handler)
}

// Probes mounts health endpoints outside the API middleware stack.
type Probes interface {
	Register(r chi.Router)
}

// Config carries the pieces the router needs from main.
type Config struct {
	Logger         *slog.Logger
	Metrics        *request.Metrics
	MetricsHandler http.Handler
	RequireIssuer  func(http.Handler) http.Handler
	Timeout        time.Duration
	MaxBodyBytes   int64
}

// NewRouter wires the public endpoints with middleware.
func NewRouter(cfg Config, health Probes, routes ...Routes) http.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.ClientIP)
	r.Use(request.Logger(cfg.Logger))

	if health != nil {
		health.Register(r)
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(api chi.Router) {
		api.Use(request.Timeout(cfg.Timeout))
		api.Use(request.ContentType("application/json", "multipart/form-data"))
		if cfg.MaxBodyBytes > 0 {
			api.Use(request.BodyLimit(cfg.MaxBodyBytes))
		}
		api.Use(request.LatencyMiddleware(cfg.Metrics))
		for _, routes := range routes {
			routes.Register(api, cfg.RequireIssuer)
		}
	})

	return r
}
