// Package gateway connects to a remote MCP (Model Context Protocol) server
// and exposes its tools as capabilities.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joescharf/triage/internal/capability"
)

// ErrTransport wraps failures to reach the gateway or exchange messages
// with it. These are transient from the caller's point of view.
var ErrTransport = errors.New("gateway transport error")

// ToolError is a tool-level failure reported by the gateway (isError=true).
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("gateway tool %s failed: %s", e.Tool, e.Message)
}

// Session is an initialized connection to one gateway.
type Session struct {
	client *client.Client
}

// Dial connects to a streamable-HTTP MCP endpoint with the given headers
// (typically an Authorization bearer token) and initializes the session.
func Dial(ctx context.Context, url string, headers map[string]string, version string) (*Session, error) {
	c, err := client.NewStreamableHttpClient(url, transport.WithHTTPHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("create gateway client: %w", err)
	}
	return Open(ctx, c, version)
}

// Open starts and initializes an already constructed client.
func Open(ctx context.Context, c *client.Client, version string) (*Session, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrTransport, err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "triage", Version: version}
	if _, err := c.Initialize(ctx, req); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: initialize: %v", ErrTransport, err)
	}
	return &Session{client: c}, nil
}

// Close ends the session.
func (s *Session) Close() error {
	return s.client.Close()
}

// Tools lists the tools the gateway exposes.
func (s *Session) Tools(ctx context.Context) ([]mcp.Tool, error) {
	res, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: list tools: %v", ErrTransport, err)
	}
	return res.Tools, nil
}

// Bind looks up a tool by name and returns it as a capability.
func (s *Session) Bind(ctx context.Context, name string) (capability.Capability, error) {
	tools, err := s.Tools(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tools {
		if t.Name == name {
			return &remoteTool{session: s, tool: t, schema: toolSchema(t)}, nil
		}
	}
	return nil, fmt.Errorf("%w: gateway does not expose %q", capability.ErrUnknownCapability, name)
}

type remoteTool struct {
	session *Session
	tool    mcp.Tool
	schema  map[string]any
}

func (r *remoteTool) Name() string                { return r.tool.Name }
func (r *remoteTool) Description() string         { return r.tool.Description }
func (r *remoteTool) InputSchema() map[string]any { return r.schema }

func (r *remoteTool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return nil, fmt.Errorf("decode %s arguments: %w", r.tool.Name, err)
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = r.tool.Name
	req.Params.Arguments = arguments

	res, err := r.session.client.CallTool(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: call %s: %v", ErrTransport, r.tool.Name, err)
	}
	if res.IsError {
		return nil, &ToolError{Tool: r.tool.Name, Message: resultText(res)}
	}
	return resultJSON(res)
}

// resultJSON prefers structured content; otherwise the concatenated text
// content is returned as-is when it is JSON, or as a JSON string.
func resultJSON(res *mcp.CallToolResult) (json.RawMessage, error) {
	if res.StructuredContent != nil {
		data, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return nil, fmt.Errorf("encode structured content: %w", err)
		}
		return data, nil
	}
	text := strings.TrimSpace(resultText(res))
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}
	return json.Marshal(text)
}

func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func toolSchema(t mcp.Tool) map[string]any {
	data, err := json.Marshal(t)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var decoded struct {
		InputSchema map[string]any `json:"inputSchema"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil || decoded.InputSchema == nil {
		return map[string]any{"type": "object"}
	}
	return decoded.InputSchema
}
