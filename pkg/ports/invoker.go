package ports

import (
	"context"

	"github.com/aretw0/trio/pkg/domain"
)

// Invoker runs one trio through a fresh, single-use worker.
// Implementations must never reuse a worker across calls and must stop
// work promptly once ctx is done.
type Invoker interface {
	Invoke(ctx context.Context, trio domain.Trio) domain.RenderResult
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, trio domain.Trio) domain.RenderResult

func (f InvokerFunc) Invoke(ctx context.Context, trio domain.Trio) domain.RenderResult {
	return f(ctx, trio)
}

// SubstanceGenerator derives substance text from an uploaded image.
type SubstanceGenerator interface {
	Generate(ctx context.Context, ref domain.UploadRef, domainHint string) (string, error)
}
