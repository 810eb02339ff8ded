package generation

import "context"

// Image is the picture sent to the model: a URL it can fetch, or inline bytes.
type Image struct {
	URL       string
	MediaType string
	Data      []byte
}

// Inline reports whether the image carries its own bytes.
func (i Image) Inline() bool {
	return len(i.Data) > 0
}

// Request is one captioning call.
type Request struct {
	System string
	Prompt string
	Image  Image
}

// Client sends a Request to a model and returns its text reply.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
