package estimate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joescharf/triage/internal/capability"
	"github.com/joescharf/triage/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		complexity models.Complexity
		expected   string
	}{
		{models.ComplexityNA, "1 hour"},
		{models.ComplexityLow, "2 hours"},
		{models.ComplexityMedium, "4 hours"},
		{models.ComplexityHigh, "8 hours"},
	}
	for _, tt := range tests {
		t.Run(string(tt.complexity), func(t *testing.T) {
			assert.Equal(t, tt.expected, Estimate(tt.complexity))
			// Same input, same output.
			assert.Equal(t, Estimate(tt.complexity), Estimate(tt.complexity))
		})
	}
}

func TestEstimate_OutsideClosedSet(t *testing.T) {
	for _, c := range []models.Complexity{"", "CRITICAL", "low", "4"} {
		assert.NotPanics(t, func() {
			assert.Equal(t, Unknown, Estimate(c))
		})
	}
}

func TestCapability(t *testing.T) {
	c := Capability()
	assert.Equal(t, ToolName, c.Name())

	props, required := capability.SchemaProperties(c.InputSchema())
	assert.Equal(t, []string{"complexity"}, required)
	prop := props["complexity"].(map[string]any)
	assert.ElementsMatch(t, []any{"NA", "LOW", "MEDIUM", "HIGH"}, prop["enum"])

	out, err := c.Call(context.Background(), json.RawMessage(`{"complexity":"HIGH"}`))
	require.NoError(t, err)

	var got string
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "8 hours", got)
}
