package action

import (
	"fmt"
	"strings"

	"github.com/joescharf/triage/internal/models"
)

// BuildRequest turns an analysis into an issue-creation request. Callers
// decide whether escalation is warranted; extra labels are appended after the
// complexity label.
func BuildRequest(a models.IssueAnalysis, source string, labels ...string) models.ActionRequest {
	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = firstLine(source)
	}

	var b strings.Builder
	if a.Description != "" {
		b.WriteString(a.Description)
		b.WriteString("\n\n")
	}
	b.WriteString("## Analysis\n\n")
	fmt.Fprintf(&b, "- **Complexity:** %s\n", a.Complexity)
	fmt.Fprintf(&b, "- **Time estimate:** %s\n", a.TimeEstimate)
	fmt.Fprintf(&b, "- **Reason:** %s\n", a.Reason)
	if strings.TrimSpace(source) != "" {
		b.WriteString("\n## Original report\n\n```\n")
		b.WriteString(strings.TrimRight(source, "\n"))
		b.WriteString("\n```\n")
	}

	all := make([]string, 0, len(labels)+2)
	if a.Complexity.IsDefect() {
		all = append(all, "bug")
	} else if a.Complexity == models.ComplexityNA {
		all = append(all, "enhancement")
	}
	if a.Complexity.Valid() {
		all = append(all, "complexity:"+strings.ToLower(string(a.Complexity)))
	}
	all = append(all, labels...)

	return models.ActionRequest{
		Title:  title,
		Body:   b.String(),
		Labels: normalizeLabels(all),
	}
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			if r := []rune(line); len(r) > 72 {
				return string(r[:69]) + "..."
			}
			return line
		}
	}
	return ""
}
