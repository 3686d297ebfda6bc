package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/triage/internal/capability"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	srv := server.NewMCPServer("fake-gateway", "0.0.1", server.WithToolCapabilities(true))

	srv.AddTool(mcp.NewTool("echo_json",
		mcp.WithDescription("Echo arguments back as JSON"),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, _ := json.Marshal(req.GetArguments())
		return mcp.NewToolResultText(string(data)), nil
	})
	srv.AddTool(mcp.NewTool("plain_text"), func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("created issue #7"), nil
	})
	srv.AddTool(mcp.NewTool("always_fails"), func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("repository not found"), nil
	})

	c, err := client.NewInProcessClient(srv)
	require.NoError(t, err)

	s, err := Open(context.Background(), c, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_Tools(t *testing.T) {
	s := newTestSession(t)
	tools, err := s.Tools(context.Background())
	require.NoError(t, err)

	var names []string
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"echo_json", "plain_text", "always_fails"}, names)
}

func TestSession_BindAndCall(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	c, err := s.Bind(ctx, "echo_json")
	require.NoError(t, err)
	assert.Equal(t, "echo_json", c.Name())
	assert.Equal(t, "Echo arguments back as JSON", c.Description())

	props, required := capability.SchemaProperties(c.InputSchema())
	assert.Contains(t, props, "title")
	assert.Equal(t, []string{"title"}, required)

	out, err := c.Call(ctx, json.RawMessage(`{"title":"hello"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"hello"}`, string(out))
}

func TestSession_PlainTextBecomesJSONString(t *testing.T) {
	s := newTestSession(t)
	c, err := s.Bind(context.Background(), "plain_text")
	require.NoError(t, err)

	out, err := c.Call(context.Background(), nil)
	require.NoError(t, err)

	var text string
	require.NoError(t, json.Unmarshal(out, &text))
	assert.Equal(t, "created issue #7", text)
}

func TestSession_ToolError(t *testing.T) {
	s := newTestSession(t)
	c, err := s.Bind(context.Background(), "always_fails")
	require.NoError(t, err)

	_, err = c.Call(context.Background(), nil)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "always_fails", te.Tool)
	assert.Contains(t, te.Message, "repository not found")
}

func TestSession_BindUnknown(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Bind(context.Background(), "create_issue")
	assert.ErrorIs(t, err, capability.ErrUnknownCapability)
}

func TestSession_ThroughRegistry(t *testing.T) {
	s := newTestSession(t)
	c, err := s.Bind(context.Background(), "echo_json")
	require.NoError(t, err)

	r := capability.NewRegistry()
	r.MustRegister(c, false)

	_, err = r.Call(context.Background(), "echo_json", map[string]any{"title": "x"})
	assert.ErrorIs(t, err, capability.ErrApprovalRequired)
}
