package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/trio"
	"github.com/aretw0/trio/examples"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	render   func(ctx context.Context, t domain.Trio) (string, error)
	generate func(ctx context.Context, ref domain.UploadRef, hint string) (string, error)
}

func (f fakeService) RenderTrio(ctx context.Context, t domain.Trio) (string, error) {
	return f.render(ctx, t)
}

func (f fakeService) Generate(ctx context.Context, ref domain.UploadRef, hint string) (string, error) {
	return f.generate(ctx, ref, hint)
}

func connect(t *testing.T, svc Service) *client.Client {
	t.Helper()
	c, err := client.NewInProcessClient(NewServer(svc, nil).MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	var init mcp.InitializeRequest
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "trio-test", Version: "0"}
	_, err = c.Initialize(ctx, init)
	require.NoError(t, err)
	return c
}

func call(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestTools_Listed(t *testing.T) {
	c := connect(t, fakeService{})
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"render_diagram", "generate_substance"}, names)
}

func TestRenderDiagram(t *testing.T) {
	c := connect(t, trio.New())
	ex, err := examples.Load("nested")
	require.NoError(t, err)

	res := call(t, c, "render_diagram", map[string]any{
		"domain":    ex.Domain,
		"substance": ex.Substance,
		"style":     ex.Style,
	})
	require.False(t, res.IsError, text(t, res))
	svg := text(t, res)
	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Equal(t, 2, strings.Count(svg, "<circle"))
}

func TestRenderDiagram_CompileError(t *testing.T) {
	c := connect(t, trio.New())
	res := call(t, c, "render_diagram", map[string]any{
		"domain":    "type Set\n",
		"substance": "Sett A\n",
		"style":     "canvas {\n  width = 100\n  height = 100\n}\n",
	})
	require.True(t, res.IsError)

	var body ToolError
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &body))
	assert.Equal(t, domain.KindCompile, body.Kind)
	require.NotNil(t, body.Info)
	assert.Equal(t, "Sett", body.Info.Symbol)
}

func TestRenderDiagram_InternalFaultIsGeneric(t *testing.T) {
	c := connect(t, fakeService{render: func(context.Context, domain.Trio) (string, error) {
		return "", errors.New("worker exploded at 0xdeadbeef")
	}})
	res := call(t, c, "render_diagram", map[string]any{"domain": "d", "substance": "s", "style": "y"})
	require.True(t, res.IsError)

	var body ToolError
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &body))
	assert.Equal(t, domain.KindInternal, body.Kind)
	assert.Equal(t, "internal fault", body.Error)
}

func TestGenerateSubstance(t *testing.T) {
	var gotRef domain.UploadRef
	var gotHint string
	c := connect(t, fakeService{generate: func(_ context.Context, ref domain.UploadRef, hint string) (string, error) {
		gotRef, gotHint = ref, hint
		if ref.URL == "" {
			return "", domain.Errorf(domain.KindValidation, "image URL is required")
		}
		return "Set A, B\nSubset(B, A)", nil
	}})

	res := call(t, c, "generate_substance", map[string]any{"image_url": "http://img/1.png", "domain": "type Set"})
	require.False(t, res.IsError)
	assert.Equal(t, "Set A, B\nSubset(B, A)", text(t, res))
	assert.Equal(t, "http://img/1.png", gotRef.URL)
	assert.Equal(t, "type Set", gotHint)

	res = call(t, c, "generate_substance", map[string]any{})
	require.True(t, res.IsError)
	var body ToolError
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &body))
	assert.Equal(t, domain.KindValidation, body.Kind)
	assert.Equal(t, "image URL is required", body.Error)
}

func TestExampleResources(t *testing.T) {
	c := connect(t, fakeService{})

	var req mcp.ReadResourceRequest
	req.Params.URI = ExampleURIPrefix + "sets"
	res, err := c.ReadResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	tc, ok := res.Contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", tc.MIMEType)

	var got domain.Trio
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &got))
	want, err := examples.Load("sets")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
