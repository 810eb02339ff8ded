package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/trio/internal/logging"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/observability"
	"github.com/aretw0/trio/pkg/ports"
)

// Orchestrator runs validated trios through an Invoker under a deadline.
// It is safe for concurrent use and keeps no state between requests.
type Orchestrator struct {
	invoker ports.Invoker
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Orchestrator around invoker.
func New(invoker ports.Invoker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		invoker: invoker,
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Timeout returns the configured invocation deadline.
func (o *Orchestrator) Timeout() time.Duration {
	return o.timeout
}

// Render invokes the worker once and returns its SVG.
//
// Failures are *domain.Error values. When the deadline passes first, Render returns a
// TimeoutError without waiting for the worker. When ctx itself is cancelled, the returned
// error wraps context.Canceled.
func (o *Orchestrator) Render(ctx context.Context, trio domain.Trio) (string, error) {
	if o.invoker == nil {
		return "", domain.Errorf(domain.KindInternal, "no worker invoker configured")
	}

	start := time.Now()
	svg, err := o.render(ctx, trio)
	elapsed := time.Since(start)

	outcome := observability.OutcomeOK
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	o.metrics.ObserveRender(outcome, elapsed)

	switch {
	case err == nil:
		o.logger.Debug("Render succeeded", "variation", trio.Variation, "duration", elapsed, "bytes", len(svg))
	case domain.IsKind(err, domain.KindInternal):
		o.logger.Error("Render failed", "variation", trio.Variation, "duration", elapsed, "error", err)
	default:
		o.logger.Info("Render failed", "variation", trio.Variation, "duration", elapsed, "kind", outcome, "error", err)
	}
	return svg, err
}

func (o *Orchestrator) render(ctx context.Context, trio domain.Trio) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", abandoned(err)
	}

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	// Buffered so an abandoned invocation can still deliver and exit.
	results := make(chan domain.RenderResult, 1)
	o.metrics.Started()
	go func() {
		defer o.metrics.Finished()
		defer func() {
			if r := recover(); r != nil {
				results <- domain.Failure(&domain.Error{
					Kind:    domain.KindInternal,
					Message: "internal fault",
					Err:     fmt.Errorf("invoker panic: %v", r),
				})
			}
		}()
		results <- o.invoker.Invoke(runCtx, trio)
	}()

	select {
	case res := <-results:
		if res.OK() {
			return res.SVG, nil
		}
		// The invoker may observe the deadline before we do.
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", o.timedOut()
		}
		if res.Err == nil {
			return "", domain.Errorf(domain.KindInternal, "worker returned neither svg nor error")
		}
		return "", res.Err
	case <-runCtx.Done():
		if err := ctx.Err(); err != nil {
			o.logger.Debug("Render abandoned by caller", "error", err)
			return "", abandoned(err)
		}
		o.logger.Warn("Render timed out, abandoning worker", "timeout", o.timeout)
		return "", o.timedOut()
	}
}

func (o *Orchestrator) timedOut() error {
	return &domain.Error{
		Kind:    domain.KindTimeout,
		Message: fmt.Sprintf("rendering timed out after %s", o.timeout),
		Err:     context.DeadlineExceeded,
	}
}

// abandoned reports a render given up because the caller went away. A caller
// deadline is still a timeout; anything else is a cancellation.
func abandoned(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.Error{Kind: domain.KindTimeout, Message: "rendering timed out", Err: err}
	}
	return &domain.Error{Kind: domain.KindInternal, Message: "render cancelled", Err: err}
}

// StatusFor maps an error to the HTTP status a transport should answer with.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindCompile, domain.KindOptimize:
		return http.StatusUnprocessableEntity
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindGeneration:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
