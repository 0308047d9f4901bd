package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

// maxBodyBytes bounds a single geocode request body.
const maxBodyBytes = 1 << 20

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// RequestProcessor runs one geocoding request to completion.
type RequestProcessor interface {
	Process(ctx context.Context, req domain.JobRequest) domain.JobResult
}

// Server exposes health, readiness, metrics, and synchronous geocode endpoints.
type Server struct {
	httpServer *http.Server
	processor  RequestProcessor
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// /v1/geocode routes.
func NewServer(addr string, ready ReadinessChecker, processor RequestProcessor, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		processor: processor,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/geocode", s.handleGeocode(false))
	mux.HandleFunc("POST /v1/geocode/dry-run", s.handleGeocode(true))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type geocodeResponse struct {
	RequestID     string           `json:"requestId"`
	Records       []domain.Record  `json:"records"`
	Customization []map[string]any `json:"customization"`
	Properties    map[string]any   `json:"properties"`
}

type errorResponse struct {
	RequestID string `json:"requestId"`
	Error     string `json:"error"`
	Kind      string `json:"kind"`
}

// handleGeocode decodes the body as a parameter object and runs it as one
// request. X-Request-ID names the request; a UUID is generated otherwise.
func (s *Server) handleGeocode(dryRun bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		params, err := decodeParams(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				RequestID: requestID,
				Error:     "malformed request body: " + err.Error(),
				Kind:      "parameter",
			})
			return
		}

		res := s.processor.Process(r.Context(), domain.JobRequest{
			RequestID:  requestID,
			DryRun:     dryRun,
			Parameters: params,
			Timestamp:  time.Now(),
		})
		if res.Failed() {
			kind := domain.ErrorLabel(res.Err)
			writeJSON(w, statusFor(kind), errorResponse{RequestID: requestID, Error: res.Err.Error(), Kind: kind})
			return
		}

		records := res.Records
		if records == nil {
			records = []domain.Record{}
		}
		customization := res.Customizations
		if customization == nil {
			customization = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, geocodeResponse{
			RequestID:     requestID,
			Records:       records,
			Customization: customization,
			Properties:    res.Properties,
		})
	}
}

func decodeParams(body io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		return nil, err
	}
	if params == nil {
		return nil, errors.New("expected a JSON object")
	}
	return params, nil
}

func statusFor(kind string) int {
	switch kind {
	case "parameter", "consistency":
		return http.StatusBadRequest
	case "detached":
		return http.StatusServiceUnavailable
	case "resolved":
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
