package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/aretw0/trio/internal/logging"
	"github.com/aretw0/trio/pkg/diagram"
	"github.com/aretw0/trio/pkg/dom"
	"github.com/aretw0/trio/pkg/domain"
)

// ErrSpent is reported when a worker is asked to render a second time.
var ErrSpent = errors.New("worker already used")

// Option configures a Worker.
type Option func(*Worker)

// WithOptimizer sets the optimizer budget.
func WithOptimizer(opts diagram.Options) Option {
	return func(w *Worker) {
		w.optimizer = opts
	}
}

// WithResolver sets the resolver used for resource references during serialization.
func WithResolver(r diagram.Resolver) Option {
	return func(w *Worker) {
		if r != nil {
			w.resolver = r
		}
	}
}

// WithLogger sets the logger for pipeline faults.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Worker is a single-use pipeline runner.
type Worker struct {
	mu        sync.Mutex
	used      bool
	doc       *dom.Document
	optimizer diagram.Options
	resolver  diagram.Resolver
	logger    *slog.Logger
}

// New creates a worker with its own document.
func New(opts ...Option) *Worker {
	w := &Worker{
		doc:      dom.NewDocument(),
		resolver: diagram.NopResolver,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Render compiles, optimizes and serializes trio. It never returns both SVG and an
// error, and a panic anywhere in the pipeline becomes an InternalFault result.
func (w *Worker) Render(ctx context.Context, trio domain.Trio) (res domain.RenderResult) {
	w.mu.Lock()
	if w.used {
		w.mu.Unlock()
		return domain.Failure(domain.NewError(domain.KindInternal, ErrSpent))
	}
	w.used = true
	w.mu.Unlock()

	defer w.doc.Release()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Render worker panicked", "panic", r, "stack", string(debug.Stack()))
			res = domain.Failure(&domain.Error{
				Kind:    domain.KindInternal,
				Message: "internal fault",
				Err:     fmt.Errorf("panic: %v", r),
			})
		}
	}()

	variation := trio.Variation
	if variation == "" {
		variation = domain.DefaultVariation
	}

	d, err := diagram.Compile(ctx, diagram.Source{
		Domain:    trio.Domain,
		Substance: trio.Substance,
		Style:     trio.Style,
		Variation: variation,
	})
	if err != nil {
		return domain.Failure(classify(err, domain.KindCompile))
	}

	if err := diagram.Optimize(ctx, d, w.optimizer); err != nil {
		return domain.Failure(classify(err, domain.KindOptimize))
	}

	svg, err := diagram.ToSVG(ctx, d, w.doc, w.resolver)
	if err != nil {
		return domain.Failure(classify(err, domain.KindInternal))
	}
	return domain.Success(svg)
}

// classify turns a pipeline error into a domain error. Engine diagnostics keep
// their structure; context errors are reported as timeouts or cancellations.
func classify(err error, kind domain.Kind) *domain.Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewError(domain.KindTimeout, err)
	case errors.Is(err, context.Canceled):
		return domain.NewError(domain.KindInternal, err)
	}
	var derr *diagram.Error
	if errors.As(err, &derr) {
		diag := derr.Diagnostic
		return &domain.Error{
			Kind:       kind,
			Message:    diag.String(),
			Diagnostic: &diag,
			Err:        err,
		}
	}
	return domain.NewError(kind, err)
}
