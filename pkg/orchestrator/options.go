package orchestrator

import (
	"log/slog"
	"time"

	"github.com/aretw0/trio/pkg/observability"
)

// DefaultTimeout is the invocation deadline used when none is configured.
const DefaultTimeout = 30 * time.Second

// Option defines a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithTimeout sets the per-invocation deadline. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records render outcomes and durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}
