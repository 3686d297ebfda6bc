package action

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joescharf/triage/internal/models"
)

func TestBuildRequest_Defect(t *testing.T) {
	a := models.IssueAnalysis{
		Title:        "ZeroDivisionError in average()",
		Description:  "average() divides by len(items) without a guard.",
		Reason:       "single deterministic cause",
		Complexity:   models.ComplexityMedium,
		TimeEstimate: "4 hours",
	}
	req := BuildRequest(a, "Traceback ...\nZeroDivisionError: division by zero\n", "triage", "bug")

	assert.Equal(t, "ZeroDivisionError in average()", req.Title)
	assert.Equal(t, []string{"bug", "complexity:medium", "triage"}, req.Labels)
	assert.Contains(t, req.Body, "average() divides by len(items)")
	assert.Contains(t, req.Body, "**Time estimate:** 4 hours")
	assert.Contains(t, req.Body, "**Complexity:** MEDIUM")
	assert.Contains(t, req.Body, "## Original report")
	assert.Contains(t, req.Body, "ZeroDivisionError: division by zero\n```")
}

func TestBuildRequest_FeatureRequest(t *testing.T) {
	a := models.IssueAnalysis{
		Reason:       "no failure signature",
		Complexity:   models.ComplexityNA,
		TimeEstimate: "1 hour",
	}
	req := BuildRequest(a, "\n  Please add dark mode to the settings page\nthanks")

	assert.Equal(t, "Please add dark mode to the settings page", req.Title)
	assert.Equal(t, []string{"enhancement", "complexity:na"}, req.Labels)
}

func TestFirstLine_Truncates(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	got := firstLine(long)
	assert.Len(t, got, 72)
	assert.True(t, len(got) > 3 && got[69:] == "...")
	assert.Equal(t, "", firstLine("\n \n"))
}
