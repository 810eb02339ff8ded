package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/trio/internal/logging"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/orchestrator"
	"github.com/aretw0/trio/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// DefaultMaxBodyBytes bounds JSON request bodies.
	DefaultMaxBodyBytes = 1 << 20
	// DefaultMaxUploadBytes bounds image uploads.
	DefaultMaxUploadBytes = 5 << 20
)

// Service is the application surface the HTTP transport drives.
type Service interface {
	Render(ctx context.Context, payload map[string]any) (string, error)
	Generate(ctx context.Context, ref domain.UploadRef, domainHint string) (string, error)
	Upload(ctx context.Context, declaredType string, data []byte) (domain.UploadRef, error)
	Download(ctx context.Context, id string) (*domain.Upload, error)
}

// Server holds the handlers.
type Server struct {
	Service        Service
	logger         *slog.Logger
	info           map[string]string
	metrics        http.Handler
	maxBodyBytes   int64
	maxUploadBytes int64
}

// Option configures the server.
type Option func(*Server)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInfo adds entries to the GET /info document.
func WithInfo(info map[string]string) Option {
	return func(s *Server) {
		for k, v := range info {
			s.info[k] = v
		}
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithMaxUploadBytes bounds image uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// NewHandler creates the HTTP handler for svc.
func NewHandler(svc Service, opts ...Option) http.Handler {
	s := &Server{
		Service:        svc,
		logger:         logging.NewNop(),
		info:           map[string]string{"app": "trio-http"},
		maxBodyBytes:   DefaultMaxBodyBytes,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.StripSlashes)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Post("/render", s.Render)
	r.Post("/generate", s.Generate)
	r.Post("/upload", s.Upload)
	r.Get("/uploads/{id}", s.GetUpload)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	// Swagger UI
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetSwagger(); err != nil {
			http.Error(w, "Failed to load spec", http.StatusInternalServerError)
			s.logger.Error("Failed to load OpenAPI spec", "error", err)
			return
		}
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>trio API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string             `json:"error"`
	Kind   domain.Kind        `json:"kind"`
	Info   *domain.Diagnostic `json:"info,omitempty"`
	Fields []string           `json:"fields,omitempty"`
}

type renderResponse struct {
	SVG string `json:"svg"`
}

type generateRequest struct {
	ImageURL string `json:"image_url"`
	Domain   string `json:"domain"`
}

type generateResponse struct {
	Substance string `json:"substance"`
}

// Render handles the POST /render/ request.
func (s *Server) Render(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := s.decode(w, r, &payload); err != nil {
		s.fail(w, r, err)
		return
	}

	svg, err := s.Service.Render(r.Context(), payload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, renderResponse{SVG: svg})
}

// Generate handles the POST /generate/ request.
func (s *Server) Generate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := s.decode(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	substance, err := s.Service.Generate(r.Context(), domain.UploadRef{URL: body.ImageURL}, body.Domain)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, generateResponse{Substance: substance})
}

// Upload handles the POST /upload/ request. It takes a multipart form with an
// "image" file, or the raw image as the request body.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1<<16)

	var (
		data         []byte
		declaredType = r.Header.Get("Content-Type")
		err          error
	)
	mediaType, _, _ := mime.ParseMediaType(declaredType)
	if mediaType == "multipart/form-data" {
		data, declaredType, err = readFormImage(r, s.maxUploadBytes)
	} else {
		data, err = io.ReadAll(io.LimitReader(r.Body, s.maxUploadBytes+1))
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ref, err := s.Service.Upload(r.Context(), declaredType, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", ref.URL)
	s.respond(w, http.StatusCreated, ref)
}

func readFormImage(r *http.Request, max int64) ([]byte, string, error) {
	if err := r.ParseMultipartForm(max); err != nil {
		return nil, "", bodyError(err)
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", domain.Errorf(domain.KindValidation, "multipart field \"image\" is required")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, max+1))
	if err != nil {
		return nil, "", bodyError(err)
	}
	return data, header.Header.Get("Content-Type"), nil
}

// GetUpload handles the GET /uploads/{id} request.
func (s *Server) GetUpload(w http.ResponseWriter, r *http.Request) {
	upload, err := s.Service.Download(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrUploadNotFound) {
		s.respond(w, http.StatusNotFound, ErrorResponse{Error: "upload not found", Kind: domain.KindValidation})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", upload.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(upload.Data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(upload.Data)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}
	resp := map[string]string{"api_version": apiVersion}
	for k, v := range s.info {
		resp[k] = v
	}
	s.respond(w, http.StatusOK, resp)
}

// -- Helpers --

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &domain.Error{Kind: domain.KindValidation, Message: "request body too large", Err: err}
	}
	return &domain.Error{Kind: domain.KindValidation, Message: "Invalid JSON", Err: err}
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}

// fail writes err as an ErrorResponse. Internal faults are logged and answered
// with a generic message only.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := orchestrator.StatusFor(err)
	resp := ErrorResponse{Kind: domain.KindOf(err)}

	var de *domain.Error
	switch {
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		s.logger.Debug("Client went away", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
		return
	case resp.Kind == domain.KindInternal:
		s.logger.Error("Request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		resp.Error = "internal fault"
	case errors.As(err, &de):
		resp.Error = de.Message
		resp.Info = de.Diagnostic
		for _, fe := range validator.FieldErrors(err) {
			resp.Fields = append(resp.Fields, fe.Error())
		}
	default:
		resp.Error = err.Error()
	}
	s.respond(w, status, resp)
}
