package upload

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/angeloszaimis/service-router/internal/httpserver"
)

const (
	msgHealthy  = "Healthy"
	msgUploaded = "File uploaded successfully"
	msgNoFile   = "No file was uploaded"
	msgNotFound = "Not found"
	msgLimited  = "rate limit exceeded"
)

// Receiver serves GET /health and POST /upload.
type Receiver struct {
	store   *Store
	logger  *slog.Logger
	limiter *rate.Limiter
}

// NewReceiver builds the upload handler. A nil limiter disables rate limiting.
func NewReceiver(store *Store, logger *slog.Logger, limiter *rate.Limiter) *Receiver {
	return &Receiver{
		store:   store,
		logger:  logger,
		limiter: limiter,
	}
}

func (rc *Receiver) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(httpserver.AccessLog(rc.logger))

	r.NotFound(rc.notFound)
	r.MethodNotAllowed(rc.notFound)

	r.Get("/health", rc.health)

	var limits []func(http.Handler) http.Handler
	if rc.limiter != nil {
		limits = append(limits, httpserver.RateLimit(rc.limiter, http.HandlerFunc(rc.limited)))
	}
	r.With(limits...).Post("/upload", rc.upload)

	return r
}

func (rc *Receiver) health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": msgHealthy})
}

func (rc *Receiver) notFound(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]string{"error": msgNotFound})
}

func (rc *Receiver) limited(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": msgLimited})
}

func (rc *Receiver) upload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		rc.fail(w, r, err)
		return
	}

	file, err := Parse(r.Header.Get("Content-Type"), body)
	if errors.Is(err, ErrMalformed) {
		rc.logger.Warn("Upload without file", slog.String("request_id", middleware.GetReqID(r.Context())))
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": msgNoFile})
		return
	}
	if err != nil {
		rc.fail(w, r, err)
		return
	}

	path, err := rc.store.Save(file)
	if errors.Is(err, ErrUnsafeName) {
		rc.logger.Warn("Rejected upload filename", slog.String("filename", file.Name))
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		rc.fail(w, r, err)
		return
	}

	rc.logger.Info("File uploaded",
		slog.String("filename", file.Name),
		slog.String("path", path),
		slog.Int("bytes", len(file.Content)))

	WriteJSON(w, http.StatusOK, map[string]string{"message": msgUploaded})
}

func (rc *Receiver) fail(w http.ResponseWriter, r *http.Request, err error) {
	rc.logger.Error("Upload failed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("error", err.Error()))
	WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// WriteJSON writes v with the headers every file backend response carries.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
