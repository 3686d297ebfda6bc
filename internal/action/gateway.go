package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/joescharf/triage/internal/capability"
	"github.com/joescharf/triage/internal/gateway"
	"github.com/joescharf/triage/internal/models"
)

// DefaultGatewayTool is the tool name a GitHub MCP gateway uses for issue
// creation.
const DefaultGatewayTool = "create_issue"

// ToolInvoker calls a named capability.
type ToolInvoker interface {
	Call(ctx context.Context, name string, args any) (json.RawMessage, error)
}

// GatewayBackend creates issues by calling a tool on a remote MCP gateway.
// The gateway is opaque: only the create_issue-shaped contract is used.
type GatewayBackend struct {
	tools ToolInvoker
	tool  string
	owner string
	repo  string
}

// NewGatewayBackend binds the gateway tool (called through tools) to repo.
func NewGatewayBackend(tools ToolInvoker, tool, repo string) (*GatewayBackend, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	if tool == "" {
		tool = DefaultGatewayTool
	}
	return &GatewayBackend{tools: tools, tool: tool, owner: owner, repo: name}, nil
}

// Name implements IssueBackend.
func (b *GatewayBackend) Name() string { return BackendGateway }

type gatewayIssueArgs struct {
	Owner  string   `json:"owner"`
	Repo   string   `json:"repo"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

// CreateIssue implements IssueBackend.
func (b *GatewayBackend) CreateIssue(ctx context.Context, req models.ActionRequest) models.ActionOutcome {
	raw, err := b.tools.Call(ctx, b.tool, gatewayIssueArgs{
		Owner:  b.owner,
		Repo:   b.repo,
		Title:  req.Title,
		Body:   req.Body,
		Labels: req.Labels,
	})
	if err != nil {
		return gatewayFailure(ctx, err)
	}

	number, url, err := parseGatewayIssue(raw)
	if err != nil {
		return models.Failure(err.Error(), false)
	}
	return models.Success(number, url)
}

func gatewayFailure(ctx context.Context, err error) models.ActionOutcome {
	var toolErr *gateway.ToolError
	switch {
	case ctx.Err() != nil:
		return models.Failure(ctx.Err().Error(), true)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.Failure(err.Error(), true)
	case errors.Is(err, gateway.ErrTransport):
		return models.Failure(err.Error(), true)
	case errors.As(err, &toolErr):
		return models.Failure(toolErr.Message, false)
	case errors.Is(err, capability.ErrApprovalRequired), errors.Is(err, capability.ErrUnknownCapability):
		return models.Failure(err.Error(), false)
	default:
		return models.Failure(err.Error(), false)
	}
}

var issueURLPattern = regexp.MustCompile(`https?://\S+/issues/(\d+)`)

// parseGatewayIssue extracts the issue number and URL from whatever the
// gateway returned: a JSON object (number/issue_number, html_url/url) or
// text that contains the issue URL.
func parseGatewayIssue(raw json.RawMessage) (int, string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, "", fmt.Errorf("decode gateway response: %w", err)
	}
	if s, ok := v.(string); ok {
		var inner any
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			v = inner
		} else if m := issueURLPattern.FindStringSubmatch(s); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n, m[0], nil
		} else {
			return 0, "", fmt.Errorf("gateway response has no issue reference: %q", s)
		}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return 0, "", fmt.Errorf("unexpected gateway response: %s", raw)
	}

	number := intField(obj, "number", "issue_number")
	url := stringField(obj, "html_url", "url")
	if number == 0 && url != "" {
		if m := issueURLPattern.FindStringSubmatch(url); m != nil {
			number, _ = strconv.Atoi(m[1])
		}
	}
	if number == 0 || url == "" {
		return 0, "", fmt.Errorf("gateway response is missing issue number or URL: %s", raw)
	}
	return number, url, nil
}

func intField(obj map[string]any, keys ...string) int {
	for _, k := range keys {
		switch n := obj[k].(type) {
		case float64:
			return int(n)
		case string:
			if v, err := strconv.Atoi(n); err == nil {
				return v
			}
		}
	}
	return 0
}

func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
