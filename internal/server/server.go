// Package server exposes the analysis pipeline over HTTP and serves the
// single-page frontend build.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"

	"stockiq/internal/interfaces"
	"stockiq/internal/logger"
	"stockiq/internal/trace"
	"stockiq/internal/types"
)

const maxBodyBytes = 1 << 20

type Server struct {
	analyzer  interfaces.Analyzer
	staticDir string
}

func New(analyzer interfaces.Analyzer, staticDir string) *Server {
	return &Server{analyzer: analyzer, staticDir: staticDir}
}

// Routes wires the API, the asset directory and the SPA fallback.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.Health).Methods(http.MethodGet)
	api.HandleFunc("/analyze", s.Analyze).Methods(http.MethodPost)
	api.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondDetail(w, http.StatusNotFound, "Not found")
	})

	assets := http.StripPrefix("/assets/", http.FileServer(http.Dir(filepath.Join(s.staticDir, "assets"))))
	r.PathPrefix("/assets/").Handler(assets).Methods(http.MethodGet, http.MethodHead)
	r.PathPrefix("/").HandlerFunc(s.SPA).Methods(http.MethodGet, http.MethodHead)
	return r
}

// Health handles GET /api/health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type analyzeRequest struct {
	Ticker *string `json:"ticker"`
}

// Analyze handles POST /api/analyze
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "Request body must be a JSON object with a ticker field")
		return
	}
	if req.Ticker == nil {
		respondDetail(w, http.StatusUnprocessableEntity, "ticker is required")
		return
	}
	ticker, err := types.NormalizeTicker(*req.Ticker)
	if err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "Ticker must be 1-10 characters and contain only letters, '.' or '-'.")
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), ticker)
	if err != nil {
		status, detail := classify(ticker, err)
		logger.Debug(r.Context(), "Analyze request failed", "ticker", ticker, "status", status, "error", err)
		respondDetail(w, status, detail)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// classify maps a pipeline error to its HTTP status and client-facing detail.
// A run deadline wins over the layer that observed it.
func classify(ticker string, err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Analysis timed out"
	case errors.Is(err, types.ErrInvalidTicker):
		return http.StatusUnprocessableEntity, err.Error()
	case types.IsDataError(err):
		if errors.Is(err, types.ErrTickerNotFound) {
			return http.StatusBadRequest, err.Error()
		}
		return http.StatusBadRequest, fmt.Sprintf("Data provider error while analyzing %s: %v", ticker, err)
	case errors.Is(err, types.ErrMissingCredential):
		return http.StatusInternalServerError, err.Error()
	case types.IsModelError(err):
		return http.StatusBadGateway, fmt.Sprintf("Model error while generating report: %v", err)
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// SPA serves index.html for every non-API GET path.
func (s *Server) SPA(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(s.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		respondDetail(w, http.StatusNotFound, "Frontend not built")
		return
	}
	http.ServeFile(w, r, index)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := trace.StartSpan(r.Context(), "http."+r.Method,
			attribute.String("path", r.URL.Path),
		)
		defer span.End()
		if traceID, _, ok := trace.GetTraceFields(ctx); ok {
			w.Header().Set("X-Trace-Id", traceID)
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		logger.Debug(ctx, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
