package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	raw    string
	err    error
	system string
	user   string
	tool   ToolSpec
}

func (f *fakeCompleter) ForceTool(_ context.Context, system, user string, tool ToolSpec) (json.RawMessage, error) {
	f.system, f.user, f.tool = system, user, tool
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.raw), nil
}

type verdict struct {
	Label string `json:"label" jsonschema:"enum=yes,enum=no"`
	Note  string `json:"note,omitempty"`
}

func TestStructured(t *testing.T) {
	f := &fakeCompleter{raw: `{"label":"yes","note":"ok"}`}
	got, err := Structured[verdict](context.Background(), f, "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, verdict{Label: "yes", Note: "ok"}, got)

	assert.Equal(t, "sys", f.system)
	assert.Equal(t, "usr", f.user)
	assert.Equal(t, ResultToolName, f.tool.Name)
	assert.Contains(t, f.tool.Schema, "properties")
}

func TestStructured_NonConforming(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown field", `{"label":"yes","extra":1}`},
		{"wrong type", `{"label":5}`},
		{"not json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Structured[verdict](context.Background(), &fakeCompleter{raw: tt.raw}, "", "")
			assert.ErrorIs(t, err, ErrNonConforming)
		})
	}
}

func TestStructured_CompleterError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Structured[verdict](context.Background(), &fakeCompleter{err: boom}, "", "")
	assert.ErrorIs(t, err, boom)
}

func TestNewClient(t *testing.T) {
	c := NewClient("key", "claude-haiku-4-5-20251001", "http://localhost:1")
	assert.Equal(t, "claude-haiku-4-5-20251001", c.Model())
}
