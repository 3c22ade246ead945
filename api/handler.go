// Package api provides the HTTP surface of botrelay: the admin API under
// /api, the inbound webhook route, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/inbound"
	"github.com/xraph/botrelay/observability"
	"github.com/xraph/botrelay/ratelimit"
)

// Webhooks is the coordinator surface the API reads.
type Webhooks interface {
	Registered() []string
	Len() int
	URL(username string) string
}

// Broadcaster sends an evict-all notification to every instance.
type Broadcaster interface {
	EvictAll(ctx context.Context) error
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config configures a Handler.
type Config struct {
	// RegisterPath is where inbound updates are mounted. Defaults to
	// "/webhook".
	RegisterPath string

	// SecretKey verifies the per-bot secret token header. Empty accepts
	// every request.
	SecretKey string

	// JWTSecret enables HS256 bearer auth on /api. JWTIssuer, if set, is
	// required to match.
	JWTSecret string
	JWTIssuer string

	InstanceID string

	Inbound  inbound.Handler
	Limiter  *ratelimit.Limiter
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
}

// Handler is the root HTTP handler.
type Handler struct {
	svc         *bot.Service
	webhooks    Webhooks
	broadcaster Broadcaster
	health      Pinger
	cfg         Config
	schemas     *schemas
	logger      *slog.Logger
	router      chi.Router
}

// NewHandler creates a new handler. broadcaster and health may be nil.
func NewHandler(
	svc *bot.Service,
	webhooks Webhooks,
	broadcaster Broadcaster,
	health Pinger,
	cfg Config,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RegisterPath == "" {
		cfg.RegisterPath = "/webhook"
	}
	if cfg.Inbound == nil {
		cfg.Inbound = inbound.NewEcho("", logger)
	}

	h := &Handler{
		svc:         svc,
		webhooks:    webhooks,
		broadcaster: broadcaster,
		health:      health,
		cfg:         cfg,
		schemas:     mustCompileSchemas(),
		logger:      logger,
		router:      chi.NewRouter(),
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	r := h.router
	r.Use(middleware.RequestID, h.panicRecovery, h.logging)

	r.Get("/healthz", h.healthz)
	if h.cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Post(h.cfg.RegisterPath+"/{username}", h.receiveUpdate)

	r.Route("/api", func(r chi.Router) {
		if h.cfg.JWTSecret != "" {
			r.Use(h.requireJWT)
		}

		// Bots
		r.Get("/bots", h.listBots)
		r.Get("/bots/bot", h.getBotByQuery)
		r.Get("/bots/{id}", h.getBot)
		r.Post("/bots", h.createBot)
		r.Put("/bots", h.updateBot)
		r.Put("/bots/enable", h.enableBot)
		r.Put("/bots/disable", h.disableBot)
		r.Delete("/bots", h.deleteBot)

		// Webhooks
		r.Get("/webhooks", h.listWebhooks)

		// Cache
		r.Post("/cache/clear", h.clearCache)
		r.Post("/cache/clear/broadcast", h.broadcastClearCache)

		// Stats
		r.Get("/stats", h.getStats)
	})
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.InfoContext(r.Context(), "api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.ErrorContext(r.Context(), "panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryParam returns a query parameter value, or empty string if not present.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryInt returns a query parameter as a non-negative int or a default value.
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

// queryBool returns a query parameter as *bool, nil when absent or invalid.
func queryBool(r *http.Request, key string) *bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}
