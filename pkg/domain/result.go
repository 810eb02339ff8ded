package domain

// RenderResult is the only value a worker hands back to the orchestrator.
// Exactly one of SVG or Err is set.
type RenderResult struct {
	SVG string
	Err *Error
}

// Success wraps svg in a RenderResult.
func Success(svg string) RenderResult {
	return RenderResult{SVG: svg}
}

// Failure wraps err in a RenderResult.
func Failure(err *Error) RenderResult {
	return RenderResult{Err: err}
}

// OK reports whether the result carries SVG.
func (r RenderResult) OK() bool {
	return r.Err == nil
}
