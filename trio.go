package trio

import (
	"context"
	"log/slog"

	"github.com/aretw0/trio/internal/logging"
	"github.com/aretw0/trio/pkg/adapters/memory"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/orchestrator"
	"github.com/aretw0/trio/pkg/ports"
	"github.com/aretw0/trio/pkg/validator"
	"github.com/aretw0/trio/pkg/worker"
)

// Service is the high-level entry point shared by the HTTP, MCP and CLI transports.
// It validates input before any worker runs and keeps no diagram state between calls.
type Service struct {
	orchestrator   *orchestrator.Orchestrator
	generator      ports.SubstanceGenerator
	uploads        ports.UploadStore
	publicURL      string
	maxUploadBytes int64
	logger         *slog.Logger
}

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithOrchestrator sets the render path. The default runs in-process workers with
// orchestrator.DefaultTimeout.
func WithOrchestrator(o *orchestrator.Orchestrator) Option {
	return func(s *Service) {
		s.orchestrator = o
	}
}

// WithGenerator enables substance generation.
func WithGenerator(g ports.SubstanceGenerator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// WithUploadStore sets where uploads are kept. The default is an in-memory store.
func WithUploadStore(store ports.UploadStore) Option {
	return func(s *Service) {
		s.uploads = store
	}
}

// WithPublicURL sets the base of the URLs handed out for uploads.
func WithPublicURL(url string) Option {
	return func(s *Service) {
		s.publicURL = url
	}
}

// WithMaxUploadBytes bounds the size of an uploaded image.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Service.
func New(opts ...Option) *Service {
	s := &Service{
		publicURL:      DefaultPublicURL,
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.orchestrator == nil {
		s.orchestrator = orchestrator.New(worker.NewInProcess(), orchestrator.WithLogger(s.logger))
	}
	if s.uploads == nil {
		s.uploads = memory.NewStore(memory.WithTTL(DefaultUploadTTL))
	}
	return s
}

// Render validates a raw request payload and renders it.
func (s *Service) Render(ctx context.Context, payload map[string]any) (string, error) {
	trio, err := validator.Decode(payload)
	if err != nil {
		return "", err
	}
	return s.orchestrator.Render(ctx, trio)
}

// RenderTrio validates an already typed trio and renders it.
func (s *Service) RenderTrio(ctx context.Context, trio domain.Trio) (string, error) {
	trio, err := validator.Validate(trio)
	if err != nil {
		return "", err
	}
	return s.orchestrator.Render(ctx, trio)
}

// Generate derives substance text from an uploaded image.
func (s *Service) Generate(ctx context.Context, ref domain.UploadRef, domainHint string) (string, error) {
	if s.generator == nil {
		return "", domain.Errorf(domain.KindGeneration, "substance generation is not configured")
	}
	return s.generator.Generate(ctx, ref, domainHint)
}

// Orchestrator exposes the render path, e.g. for its timeout.
func (s *Service) Orchestrator() *orchestrator.Orchestrator {
	return s.orchestrator
}

// Uploads exposes the upload store.
func (s *Service) Uploads() ports.UploadStore {
	return s.uploads
}
