package filetier

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/angeloszaimis/service-router/internal/httpserver"
	"github.com/angeloszaimis/service-router/internal/metrics"
	"github.com/angeloszaimis/service-router/internal/pool"
	"github.com/angeloszaimis/service-router/internal/strategy"
	"github.com/angeloszaimis/service-router/internal/upload"
)

const (
	msgNoServers  = "No healthy file servers available"
	msgBadGateway = "File server unreachable"
)

func (b *Balancer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpserver.AccessLog(b.logger))

	notFound := func(w http.ResponseWriter, _ *http.Request) {
		upload.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		upload.WriteJSON(w, http.StatusOK, map[string]string{"status": "Healthy"})
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		upload.WriteJSON(w, http.StatusOK, b.Stats())
	})
	if b.collector != nil {
		r.Get("/metrics", b.collector.Handler(strategy.RoundRobin))
	}
	r.Post("/upload", b.ServeHTTP)

	return r
}

// ServeHTTP proxies one upload to the next healthy file server.
func (b *Balancer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	inst, err := b.Next(r.Context())
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, strategy.ErrNoHealthyInstance) {
			level = slog.LevelError
		}
		b.logger.Log(r.Context(), level, "No healthy file servers available",
			slog.String("client", httpserver.ClientIP(r)),
			slog.String("error", err.Error()))
		upload.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": msgNoServers})
		return
	}

	address := inst.Address()

	b.logger.Info("Forwarding upload",
		slog.String("client", httpserver.ClientIP(r)),
		slog.String("backend", address))

	inst.Begin()
	start := time.Now()

	w.Header().Set("X-Backend-Server", address)

	wrapped := httpserver.NewStatusRecorder(w)
	inst.ReverseProxy().ServeHTTP(wrapped, r)

	duration := time.Since(start)
	inst.Done(duration)

	b.collector.Emit(metrics.MetricEvent{
		Type:       metrics.EventUploadProxied,
		Class:      pool.File.String(),
		Instance:   address,
		Duration:   duration,
		StatusCode: wrapped.Status(),
	})
}

func (b *Balancer) proxyError(address string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		b.logger.Error("Proxy to file server failed",
			slog.String("backend", address),
			slog.String("error", err.Error()))
		upload.WriteJSON(w, http.StatusBadGateway, map[string]string{"error": msgBadGateway})
	}
}
