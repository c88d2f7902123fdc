package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/angeloszaimis/service-router/internal/healthcheck"
	"github.com/angeloszaimis/service-router/internal/httpserver"
	"github.com/angeloszaimis/service-router/internal/metrics"
	"github.com/angeloszaimis/service-router/internal/pool"
	"github.com/angeloszaimis/service-router/internal/router"
)

// Router is the part of *router.Router the API serves.
type Router interface {
	Route(ctx context.Context, class pool.Class) (string, error)
	CheckHealth(ctx context.Context, url string) healthcheck.InstanceHealth
	Snapshot() router.Stats
	Policy() string
}

type RouteResponse struct {
	Class    pool.Class `json:"class"`
	Instance string     `json:"instance"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	router    Router
	collector *metrics.Collector
	logger    *slog.Logger
}

// New builds the API. A nil collector leaves /metrics unrouted.
func New(r Router, collector *metrics.Collector, logger *slog.Logger) *Handler {
	return &Handler{
		router:    r,
		collector: collector,
		logger:    logger,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpserver.AccessLog(h.logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	})

	r.Post("/route/{class}", h.route)
	r.Get("/probe", h.probe)
	r.Get("/stats", h.stats)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.collector != nil {
		r.Get("/metrics", h.collector.Handler(h.router.Policy()))
	}

	return r
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request) {
	class, err := pool.ParseClass(chi.URLParam(r, "class"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	instance, err := h.router.Route(r.Context(), class)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, RouteResponse{Class: class, Instance: instance})
}

func (h *Handler) probe(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing url query parameter"})
		return
	}

	writeJSON(w, http.StatusOK, h.router.CheckHealth(r.Context(), url))
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.router.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
