package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messagesServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(data, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestForceTool(t *testing.T) {
	var req map[string]any
	srv := messagesServer(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "test-model",
		"content": [
			{"type": "text", "text": "Classifying."},
			{"type": "tool_use", "id": "toolu_1", "name": "submit_result", "input": {"label": "no"}}
		],
		"stop_reason": "tool_use",
		"stop_sequence": null,
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`, &req)

	c := NewClient("test-key", "test-model", srv.URL)
	got, err := Structured[verdict](context.Background(), c, "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, "no", got.Label)

	choice, ok := req["tool_choice"].(map[string]any)
	require.True(t, ok, "tool_choice should be sent")
	assert.Equal(t, "tool", choice["type"])
	assert.Equal(t, ResultToolName, choice["name"])

	tools, ok := req["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	schema := tool["input_schema"].(map[string]any)
	assert.Contains(t, schema["properties"], "label")
}

func TestForceTool_NoToolCall(t *testing.T) {
	srv := messagesServer(t, http.StatusOK, `{
		"id": "msg_2",
		"type": "message",
		"role": "assistant",
		"model": "test-model",
		"content": [{"type": "text", "text": "I think it is LOW."}],
		"stop_reason": "end_turn",
		"stop_sequence": null,
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`, nil)

	c := NewClient("test-key", "test-model", srv.URL)
	_, err := c.ForceTool(context.Background(), "s", "u", ToolSpec{Name: "submit_result"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not call submit_result")
}

func TestForceTool_APIError(t *testing.T) {
	srv := messagesServer(t, http.StatusBadRequest,
		`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, nil)

	c := NewClient("test-key", "test-model", srv.URL)
	_, err := c.ForceTool(context.Background(), "s", "u", ToolSpec{Name: "submit_result"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic API call")
}
