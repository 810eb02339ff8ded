package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// DefaultBaseURL is the Anthropic API root.
	DefaultBaseURL = "https://api.anthropic.com"
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-5"
	// DefaultMaxTokens bounds the reply; substances are short.
	DefaultMaxTokens = 1024
	// DefaultMaxRetries applies to rate limits, overload and 5xx replies.
	DefaultMaxRetries = 2
)

// AnthropicClient implements Client over the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	model      string
	maxTokens  int
	maxRetries int
	baseURL    string
	httpClient *http.Client
}

// AnthropicOption configures the client.
type AnthropicOption func(*AnthropicClient)

// WithModel selects the model.
func WithModel(model string) AnthropicOption {
	return func(c *AnthropicClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens bounds the reply length.
func WithMaxTokens(n int) AnthropicOption {
	return func(c *AnthropicClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithMaxRetries sets how often a retryable failure is retried. Zero disables retries.
func WithMaxRetries(n int) AnthropicOption {
	return func(c *AnthropicClient) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseURL points the client at another API root.
func WithBaseURL(url string) AnthropicOption {
	return func(c *AnthropicClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) AnthropicOption {
	return func(c *AnthropicClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewAnthropicClient creates a new Anthropic API client.
func NewAnthropicClient(apiKey string, opts ...AnthropicOption) *AnthropicClient {
	c := &AnthropicClient{
		apiKey:     apiKey,
		model:      DefaultModel,
		maxTokens:  DefaultMaxTokens,
		maxRetries: DefaultMaxRetries,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the image and prompt as one user turn and returns the joined text blocks.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("anthropic: API key is not configured")
	}

	image := anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: req.Image.URL})
	if req.Image.Inline() {
		image = anthropic.NewImageBlockBase64(req.Image.MediaType, base64.StdEncoding.EncodeToString(req.Image.Data))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(image, anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	client := anthropic.NewClient(
		option.WithAPIKey(c.apiKey),
		option.WithBaseURL(c.baseURL),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(c.maxRetries),
	)
	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", describeAPIError(apiErr)
		}
		return "", fmt.Errorf("request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// describeAPIError keeps the API's own error type and message when the body carries them.
func describeAPIError(apiErr *anthropic.Error) error {
	raw := strings.TrimSpace(apiErr.RawJSON())
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err == nil && body.Error.Message != "" {
		return fmt.Errorf("API error (%d): %s - %s", apiErr.StatusCode, body.Error.Type, body.Error.Message)
	}
	return fmt.Errorf("API error (%d): %s", apiErr.StatusCode, raw)
}
