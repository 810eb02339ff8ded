package worker

import (
	"context"

	"github.com/aretw0/trio/pkg/domain"
)

// InProcess is an Invoker that runs each trio in a fresh Worker inside the
// current process.
type InProcess struct {
	opts []Option
}

// NewInProcess returns an invoker whose workers are built with opts.
func NewInProcess(opts ...Option) *InProcess {
	return &InProcess{opts: opts}
}

// Invoke renders trio with a new single-use worker.
func (p *InProcess) Invoke(ctx context.Context, trio domain.Trio) domain.RenderResult {
	return New(p.opts...).Render(ctx, trio)
}
