package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/trio"
	"github.com/aretw0/trio/examples"
	"github.com/aretw0/trio/internal/logging"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ExampleURIPrefix prefixes the URI of every bundled example resource.
const ExampleURIPrefix = "trio://examples/"

// Service is the application surface exposed as MCP tools.
type Service interface {
	RenderTrio(ctx context.Context, t domain.Trio) (string, error)
	Generate(ctx context.Context, ref domain.UploadRef, domainHint string) (string, error)
}

// RenderArgs are the arguments of the render_diagram tool.
type RenderArgs struct {
	Domain    string `json:"domain"`
	Substance string `json:"substance"`
	Style     string `json:"style"`
	Variation string `json:"variation,omitempty"`
}

// RenderResult is the structured output of render_diagram.
type RenderResult struct {
	SVG string `json:"svg" jsonschema_description:"The rendered diagram as an SVG document"`
}

// GenerateArgs are the arguments of the generate_substance tool.
type GenerateArgs struct {
	ImageURL string `json:"image_url"`
	Domain   string `json:"domain,omitempty"`
}

// GenerateResult is the structured output of generate_substance.
type GenerateResult struct {
	Substance string `json:"substance" jsonschema_description:"Substance program describing the image"`
}

// ToolError is the JSON body of a failed tool call.
type ToolError struct {
	Error string             `json:"error"`
	Kind  domain.Kind        `json:"kind"`
	Info  *domain.Diagnostic `json:"info,omitempty"`
}

// Server exposes a Service over the Model Context Protocol.
type Server struct {
	svc       Service
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance. A nil logger discards output.
func NewServer(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		svc:       svc,
		logger:    logger,
		mcpServer: server.NewMCPServer("trio-mcp", strings.TrimSpace(trio.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	renderTool := mcp.NewTool("render_diagram",
		mcp.WithDescription("Compile, lay out and draw a diagram from a domain, substance and style program."),
		mcp.WithString("domain", mcp.Required(), mcp.Description("Domain program declaring types and predicates")),
		mcp.WithString("substance", mcp.Required(), mcp.Description("Substance program declaring objects and relations")),
		mcp.WithString("style", mcp.Required(), mcp.Description("Style program mapping objects to shapes and goals")),
		mcp.WithString("variation", mcp.Description("Layout seed; identical seeds give identical layouts")),
		mcp.WithOutputSchema[RenderResult](),
	)
	s.mcpServer.AddTool(renderTool, mcp.NewTypedToolHandler(s.handleRender))

	generateTool := mcp.NewTool("generate_substance",
		mcp.WithDescription("Describe the sets drawn in an image as a substance program."),
		mcp.WithString("image_url", mcp.Required(), mcp.Description("URL of the image to describe")),
		mcp.WithString("domain", mcp.Description("Domain program the substance should target (optional)")),
		mcp.WithOutputSchema[GenerateResult](),
	)
	s.mcpServer.AddTool(generateTool, mcp.NewTypedToolHandler(s.handleGenerate))
}

func (s *Server) handleRender(ctx context.Context, _ mcp.CallToolRequest, args RenderArgs) (*mcp.CallToolResult, error) {
	t := domain.Trio{
		Domain:    args.Domain,
		Substance: args.Substance,
		Style:     args.Style,
		Variation: args.Variation,
	}
	svg, err := s.svc.RenderTrio(ctx, t)
	if err != nil {
		return s.toolError("render_diagram", err), nil
	}
	return mcp.NewToolResultStructured(RenderResult{SVG: svg}, svg), nil
}

func (s *Server) handleGenerate(ctx context.Context, _ mcp.CallToolRequest, args GenerateArgs) (*mcp.CallToolResult, error) {
	substance, err := s.svc.Generate(ctx, domain.UploadRef{URL: args.ImageURL}, args.Domain)
	if err != nil {
		return s.toolError("generate_substance", err), nil
	}
	return mcp.NewToolResultStructured(GenerateResult{Substance: substance}, substance), nil
}

// toolError reports err to the model as a failed tool result. Internal faults
// are logged and replaced by a generic message.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	body := ToolError{Kind: domain.KindOf(err), Error: err.Error()}
	var de *domain.Error
	switch {
	case body.Kind == domain.KindInternal:
		s.logger.Error("Tool failed", "tool", tool, "error", err)
		body.Error = "internal fault"
	case errors.As(err, &de):
		body.Error = de.Message
		body.Info = de.Diagnostic
	}
	data, mErr := json.Marshal(body)
	if mErr != nil {
		return mcp.NewToolResultError(body.Error)
	}
	return mcp.NewToolResultError(string(data))
}

func (s *Server) registerResources() {
	for _, name := range examples.Names() {
		uri := ExampleURIPrefix + name
		s.mcpServer.AddResource(mcp.NewResource(uri, "Example trio: "+name,
			mcp.WithResourceDescription("A domain, substance and style program that renders as-is"),
			mcp.WithMIMEType("application/json"),
		), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			t, err := examples.Load(name)
			if err != nil {
				return nil, err
			}
			data, err := json.Marshal(t)
			if err != nil {
				return nil, fmt.Errorf("failed to encode example: %w", err)
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			}, nil
		})
	}
}
