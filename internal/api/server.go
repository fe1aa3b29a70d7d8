package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/AndreMinHo/JPLens/internal/config"
	"github.com/AndreMinHo/JPLens/internal/domain"
	"github.com/AndreMinHo/JPLens/internal/downstream"
	"github.com/AndreMinHo/JPLens/internal/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// uploadFieldName is the multipart field the UI posts the image under.
const uploadFieldName = "image"

type Server struct {
	logger         *log.Logger
	pipeline       *pipeline.Orchestrator
	maxUploadBytes int64
	staticDir      string
	auth           config.AuthConfig
	rateLimiter    RateLimiter
	metrics        *metrics
	tracer         trace.Tracer
	mux            *http.ServeMux
}

func NewServer(
	logger *log.Logger,
	normalizer pipeline.Normalizer,
	extractor pipeline.Extractor,
	enricher pipeline.Enricher,
	gatewayCfg config.GatewayConfig,
	authCfg config.AuthConfig,
	rateLimiter RateLimiter,
) (*Server, error) {
	m := newMetrics()

	orchestrator, err := pipeline.NewOrchestrator(normalizer, extractor, enricher, m.observeStage)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline orchestrator: %w", err)
	}

	maxUploadBytes := gatewayCfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}

	s := &Server{
		logger:         logger,
		pipeline:       orchestrator,
		maxUploadBytes: maxUploadBytes,
		staticDir:      strings.TrimSpace(gatewayCfg.StaticDir),
		auth:           authCfg,
		rateLimiter:    rateLimiter,
		metrics:        m,
		tracer:         otel.Tracer("jplens/api"),
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler wraps the mux with the middleware chain. Metrics and tracing see
// every request; the auth gate and rate limiter run inside them so rejected
// requests are still counted.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.withRateLimit(h)
	h = s.withBasicAuth(h)
	h = s.withTracing(h)
	h = s.metrics.withHTTPMetrics(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /analyze", s.handleAnalyze)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	if s.staticDir != "" {
		s.mux.Handle("GET /", http.FileServer(http.Dir(s.staticDir)))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())

	// Reject declared-oversize bodies before reading a byte; the
	// MaxBytesReader below backstops clients that lie about the length.
	if r.ContentLength > s.maxUploadBytes {
		writeJSON(w, http.StatusBadRequest, oversizeUploadBody(s.maxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		status, body := classifyUploadError(err, s.maxUploadBytes)
		writeJSON(w, status, body)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		status, body := classifyUploadError(err, s.maxUploadBytes)
		writeJSON(w, status, body)
		return
	}

	// Cheap gate at the transport boundary before any decode work. The
	// normalizer re-checks the same allow-list on its own contract.
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if !domain.AllowedImageTypes[contentType] {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Unsupported image type",
			"details": fmt.Sprintf("content type %q is not an accepted image format", header.Header.Get("Content-Type")),
		})
		return
	}

	upload := domain.UploadedImage{
		Data:        data,
		ContentType: contentType,
		Filename:    header.Filename,
	}

	result, err := s.pipeline.Process(r.Context(), upload)
	if err != nil {
		s.writePipelineError(w, requestID, upload.Filename, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writePipelineError is the single place pipeline failures become HTTP
// responses: client faults map to 400, downstream and internal faults to
// 500, always with the original failure detail attached.
func (s *Server) writePipelineError(w http.ResponseWriter, requestID, filename string, err error) {
	var invalidErr *pipeline.InvalidImageError
	if errors.As(err, &invalidErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Invalid image file",
			"details": invalidErr.Reason,
		})
		return
	}

	var dsErr *downstream.Error
	if errors.As(err, &dsErr) {
		s.logger.Printf("pipeline failed request_id=%s file=%q stage=%s status=%d err=%v", requestID, filename, dsErr.Stage, dsErr.StatusCode, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to process image",
			"details": dsErr.Error(),
		})
		return
	}

	s.logger.Printf("pipeline failed request_id=%s file=%q err=%v", requestID, filename, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "Failed to process image",
		"details": err.Error(),
	})
}

func classifyUploadError(err error, maxUploadBytes int64) (int, map[string]string) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusBadRequest, oversizeUploadBody(maxUploadBytes)
	}
	if errors.Is(err, http.ErrMissingFile) {
		return http.StatusBadRequest, map[string]string{
			"error": "No image file provided",
		}
	}
	return http.StatusBadRequest, map[string]string{
		"error":   "Invalid upload request",
		"details": err.Error(),
	}
}

func oversizeUploadBody(maxUploadBytes int64) map[string]string {
	return map[string]string{
		"error":   "Image file is too large",
		"details": fmt.Sprintf("uploads are limited to %d MB", maxUploadBytes>>20),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
