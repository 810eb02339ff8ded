/*
Package orchestrator bridges one render request to one worker invocation.

The Orchestrator imposes a wall-clock deadline on the invocation, waits for its single
RenderResult and turns it into an SVG string or a typed *domain.Error. A timed-out or
cancelled invocation is abandoned: its result is dropped into a buffered channel that
nobody reads. Nothing is retried.

StatusFor maps the resulting errors to HTTP status codes for the transports.
*/
package orchestrator
