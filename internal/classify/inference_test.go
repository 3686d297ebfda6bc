package classify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/triage/internal/llm"
	"github.com/joescharf/triage/internal/models"
)

type fakeCompleter struct {
	raw  string
	err  error
	user string
}

func (f *fakeCompleter) ForceTool(_ context.Context, _, user string, _ llm.ToolSpec) (json.RawMessage, error) {
	f.user = user
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.raw), nil
}

func TestInference_Classify(t *testing.T) {
	f := &fakeCompleter{raw: `{"title":" Divide by zero ","description":"avg fails","reason":"count is zero","complexity":"medium"}`}
	got, err := NewInference(f).Classify(context.Background(), "trace here")
	require.NoError(t, err)
	assert.Equal(t, models.Classification{
		Title:       "Divide by zero",
		Description: "avg fails",
		Reason:      "count is zero",
		Complexity:  models.ComplexityMedium,
	}, got)
	assert.Contains(t, f.user, "trace here")
}

func TestInference_Errors(t *testing.T) {
	t.Run("backend failure is unavailable", func(t *testing.T) {
		f := &fakeCompleter{err: errors.New("connection refused")}
		_, err := NewInference(f).Classify(context.Background(), "x")
		assert.ErrorIs(t, err, ErrInferenceUnavailable)
	})

	t.Run("unknown complexity is nonconforming", func(t *testing.T) {
		f := &fakeCompleter{raw: `{"title":"","description":"","reason":"r","complexity":"CRITICAL"}`}
		_, err := NewInference(f).Classify(context.Background(), "x")
		assert.ErrorIs(t, err, llm.ErrNonConforming)
	})

	t.Run("estimate smuggled in is nonconforming", func(t *testing.T) {
		f := &fakeCompleter{raw: `{"title":"","description":"","reason":"r","complexity":"LOW","time_estimate":"3 days"}`}
		_, err := NewInference(f).Classify(context.Background(), "x")
		assert.ErrorIs(t, err, llm.ErrNonConforming)
	})
}

func TestBuildPrompt(t *testing.T) {
	system, user := buildPrompt("ZeroDivisionError: division by zero")

	for _, level := range []string{`"NA"`, `"LOW"`, `"MEDIUM"`, `"HIGH"`} {
		assert.Contains(t, system, level)
	}
	assert.Contains(t, system, "Do NOT estimate time")
	assert.Contains(t, system, "submit_result")
	assert.Contains(t, user, "ZeroDivisionError")
}
