package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/triage/internal/capability"
)

// ResultToolName is the tool the model must call to return structured output.
const ResultToolName = "submit_result"

// ToolSpec describes the single tool a forced call is allowed to use.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Completer runs one model turn that must end in a call to the given tool
// and returns the tool input verbatim.
type Completer interface {
	ForceTool(ctx context.Context, system, user string, tool ToolSpec) (json.RawMessage, error)
}

// Client wraps the Anthropic API.
type Client struct {
	api       *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewClient creates an LLM client with the given API key and model. An empty
// baseURL uses the SDK default endpoint.
func NewClient(apiKey, model, baseURL string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:       &client,
		model:     anthropic.Model(model),
		maxTokens: 2048,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return string(c.model) }

// ForceTool sends a single message with tool_choice pinned to tool.Name.
func (c *Client) ForceTool(ctx context.Context, system, user string, tool ToolSpec) (json.RawMessage, error) {
	props, required := capability.SchemaProperties(tool.Schema)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        tool.Name,
					Description: anthropic.String(tool.Description),
					InputSchema: anthropic.ToolInputSchemaParam{
						Properties: props,
						Required:   required,
					},
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: tool.Name},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "tool_use" && block.Name == tool.Name {
			return block.Input, nil
		}
	}
	return nil, fmt.Errorf("model did not call %s (stop reason %s)", tool.Name, msg.StopReason)
}

// Structured asks the model for a value of type T. The schema handed to the
// model is reflected from T at compile time; a response that does not decode
// into T is an error, never a partially filled value.
func Structured[T any](ctx context.Context, c Completer, system, user string) (T, error) {
	var out T
	raw, err := c.ForceTool(ctx, system, user, ToolSpec{
		Name:        ResultToolName,
		Description: "Submit the final structured result.",
		Schema:      capability.SchemaFor[T](),
	})
	if err != nil {
		return out, err
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("%w: %v\nraw response: %s", ErrNonConforming, err, raw)
	}
	return out, nil
}
