// Package estimate maps an issue's complexity to a time estimate. The mapping
// is only reachable by the analysis pipeline as a named tool call.
package estimate

import (
	"context"

	"github.com/joescharf/triage/internal/capability"
	"github.com/joescharf/triage/internal/models"
)

// ToolName is the declared name of the estimation capability.
const ToolName = "calculate_time_based_on_complexity"

// Unknown is returned for values outside the closed complexity set.
const Unknown = "Unknown complexity level"

// Estimate returns the time estimate for c. It is pure and total.
func Estimate(c models.Complexity) string {
	switch c {
	case models.ComplexityNA:
		return "1 hour"
	case models.ComplexityLow:
		return "2 hours"
	case models.ComplexityMedium:
		return "4 hours"
	case models.ComplexityHigh:
		return "8 hours"
	default:
		return Unknown
	}
}

// Input is the argument shape of the estimation tool.
type Input struct {
	Complexity models.Complexity `json:"complexity" jsonschema:"enum=NA,enum=LOW,enum=MEDIUM,enum=HIGH,description=The complexity level of the issue."`
}

// Capability binds Estimate as a local tool.
func Capability() capability.Capability {
	return capability.NewFunc(ToolName,
		"Calculate the time required based on issue complexity.",
		func(_ context.Context, in Input) (string, error) {
			return Estimate(in.Complexity), nil
		})
}
