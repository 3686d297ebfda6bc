// Package classify assigns a Complexity to an issue report.
package classify

import (
	"errors"
	"strings"
)

// ErrInferenceUnavailable is returned when the inference backend could not
// produce a classification at all.
var ErrInferenceUnavailable = errors.New("inference backend unavailable")

// UncertainNote is prefixed to the reason of ambiguous classifications.
const UncertainNote = "Classification uncertain"

// firstLine returns the first non-empty trimmed line of s, cut to max runes.
func firstLine(s string, max int) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r := []rune(line)
		if len(r) > max {
			return strings.TrimSpace(string(r[:max-3])) + "..."
		}
		return line
	}
	return ""
}

// reportBody drops the "Project ID:" / "Analyze:" framing the HTTP ingress
// wraps around a report, so titles come from the report itself.
func reportBody(s string) string {
	lines := strings.Split(s, "\n")
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "Project ID:") {
			i++
			continue
		}
		break
	}
	if i == len(lines) {
		return s
	}
	first := strings.TrimSpace(lines[i])
	if rest, ok := strings.CutPrefix(first, "Analyze:"); ok {
		lines[i] = strings.TrimSpace(rest)
	}
	return strings.Join(lines[i:], "\n")
}
