package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/trio/internal/logging"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/observability"
	"github.com/aretw0/trio/pkg/ports"
)

// SystemPrompt frames the model's job.
const SystemPrompt = `You translate pictures of diagrams into substance programs for a diagramming language.
A substance program declares objects and the relations between them, one statement per line:
  Set A, B            -- declares objects of a type
  Subset(B, A)        -- a predicate applied to objects
  AutoLabel All       -- label every object with its name
  Label A "Animals"   -- an explicit label
Reply with the substance program only, no commentary.`

// ImageLoader resolves upload URLs the model cannot fetch itself, such as the
// service's own /uploads/ links, into inline image bytes. It returns ok=false
// for URLs it does not own.
type ImageLoader func(ctx context.Context, url string) (img Image, ok bool, err error)

// Generator implements ports.SubstanceGenerator.
type Generator struct {
	client  Client
	loader  ImageLoader
	logger  *slog.Logger
	metrics *observability.Metrics
}

var _ ports.SubstanceGenerator = (*Generator)(nil)

// Option configures the generator.
type Option func(*Generator)

// WithImageLoader inlines images the loader owns.
func WithImageLoader(l ImageLoader) Option {
	return func(g *Generator) {
		g.loader = l
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics records generation outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

// New creates a generator around client.
func New(client Client, opts ...Option) *Generator {
	g := &Generator{client: client, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate asks the model for a substance describing the referenced image.
// domainHint, when set, is the domain program the substance must conform to.
// Every failure is a GenerationError, except a missing URL, which is a ValidationError.
func (g *Generator) Generate(ctx context.Context, ref domain.UploadRef, domainHint string) (string, error) {
	substance, err := g.generate(ctx, ref, domainHint)
	outcome := observability.OutcomeOK
	if err != nil {
		outcome = string(domain.KindOf(err))
		g.logger.Warn("Substance generation failed", "url", ref.URL, "error", err)
	}
	g.metrics.ObserveGeneration(outcome)
	return substance, err
}

func (g *Generator) generate(ctx context.Context, ref domain.UploadRef, domainHint string) (string, error) {
	url := strings.TrimSpace(ref.URL)
	if url == "" {
		return "", domain.Errorf(domain.KindValidation, "image_url is required")
	}
	if g.client == nil {
		return "", domain.Errorf(domain.KindGeneration, "substance generation is not configured")
	}

	img := Image{URL: url}
	if g.loader != nil {
		loaded, ok, err := g.loader(ctx, url)
		switch {
		case errors.Is(err, domain.ErrUploadNotFound):
			return "", &domain.Error{Kind: domain.KindValidation, Message: "image_url does not name a stored upload", Err: err}
		case err != nil:
			return "", &domain.Error{Kind: domain.KindGeneration, Message: "failed to load upload", Err: err}
		case ok:
			img = loaded
		}
	}

	reply, err := g.client.Complete(ctx, Request{
		System: SystemPrompt,
		Prompt: prompt(domainHint),
		Image:  img,
	})
	if err != nil {
		return "", &domain.Error{Kind: domain.KindGeneration, Message: "substance generation failed: " + err.Error(), Err: err}
	}

	substance := Clean(reply)
	if substance == "" {
		return "", domain.Errorf(domain.KindGeneration, "model returned no usable substance text")
	}
	g.logger.Debug("Substance generated", "url", url, "lines", strings.Count(substance, "\n")+1)
	return substance, nil
}

func prompt(domainHint string) string {
	hint := strings.TrimSpace(domainHint)
	if hint == "" {
		return "Write the substance program for this diagram. Use the type Set and the predicates Subset, Disjoint and Intersecting."
	}
	return fmt.Sprintf("Write the substance program for this diagram. Use only the types and predicates of this domain:\n\n%s", hint)
}
