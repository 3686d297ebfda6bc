package classify

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/joescharf/triage/internal/models"
)

var (
	// Stack frames across common runtimes: Python, JVM/JS, Go.
	framePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*File "[^"]+", line \d+`),
		regexp.MustCompile(`(?m)^\s*at [\w$.<>/]+[(\s]`),
		regexp.MustCompile(`(?m)^\s*\S+\.go:\d+`),
	}
	errorIdentPattern = regexp.MustCompile(`\b([A-Z][A-Za-z0-9_.]*(?:Error|Exception|Panic|Fault))\b(?::\s*([^\n]*))?`)
	// Go runtime failures carry no identifier; the message is the identity.
	panicPattern      = regexp.MustCompile(`(?m)^\s*(panic|fatal error):\s*([^\n]+)`)
	terminalPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`Traceback \(most recent call last\)`),
		regexp.MustCompile(`(?m)^\s*(?:panic|fatal error|error|FATAL|ERROR):\s`),
		regexp.MustCompile(`(?i)segmentation fault|core dumped|stack trace|stacktrace`),
		regexp.MustCompile(`goroutine \d+ \[`),
	}
	chainPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*Caused by:`),
		regexp.MustCompile(`During handling of the above exception`),
		regexp.MustCompile(`The above exception was the direct cause`),
	}
)

// Keyword patterns. Defect wording only counts when no structured failure
// signature exists.
var (
	defectWords = wordPattern(
		"bug", "bugs", "broken", "crash", "crashes", "crashed", "fails", "failing", "failure",
		"not working", "doesn't work", "does not work", "regression", "exception",
	)
	nondeterministicWords = wordPattern(
		"intermittent", "intermittently", "flaky", "sometimes", "randomly", "race condition",
		"data race", "deadlock", "timeout", "timed out", "concurrent", "non-deterministic",
		"nondeterministic", "heisenbug", "sporadic", "sporadically",
	)
	nondeterministicErrors = []string{
		"timeout", "deadlock", "concurrent", "connection", "interrupted", "brokenpipe",
	}
)

func wordPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Heuristic classifies by looking for failure signatures in the text. It is
// deterministic and never fails.
type Heuristic struct{}

// NewHeuristic returns a signature-based classifier.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// signature is what the scan found in one issue text.
type signature struct {
	frames           int
	errors           []string // distinct error identifiers, in order of appearance
	message          string   // message attached to the last error identifier
	terminal         bool
	chained          bool
	defectWording    bool
	nondeterministic bool
}

func scan(text string) signature {
	var sig signature

	for _, p := range framePatterns {
		sig.frames += len(p.FindAllStringIndex(text, -1))
	}

	type ident struct {
		pos     int
		name    string
		message string
	}
	var idents []ident
	var panicSpans [][]int
	anchored := false

	for _, m := range panicPattern.FindAllStringSubmatchIndex(text, -1) {
		msg := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text[m[4]:m[5]]), "[recovered]"))
		idents = append(idents, ident{pos: m[0], name: text[m[2]:m[3]] + ": " + msg})
		panicSpans = append(panicSpans, []int{m[0], m[1]})
		anchored = true
	}
	for _, m := range errorIdentPattern.FindAllStringSubmatchIndex(text, -1) {
		if within(m[0], panicSpans) {
			continue
		}
		id := ident{pos: m[0], name: text[m[2]:m[3]]}
		if m[4] >= 0 {
			id.message = strings.TrimSpace(text[m[4]:m[5]])
			anchored = true
		}
		idents = append(idents, id)
	}
	sort.SliceStable(idents, func(i, j int) bool { return idents[i].pos < idents[j].pos })

	seen := map[string]bool{}
	for _, id := range idents {
		if !seen[id.name] {
			seen[id.name] = true
			sig.errors = append(sig.errors, id.name)
		}
		if id.message != "" {
			sig.message = id.message
		}
	}

	for _, p := range terminalPatterns {
		if p.MatchString(text) {
			sig.terminal = true
			break
		}
	}
	for _, p := range chainPatterns {
		if p.MatchString(text) {
			sig.chained = true
			break
		}
	}
	// A bare identifier in prose ("when a ValueError is raised") is not a
	// failure report without a frame, a terminal marker or "Name: message".
	if !anchored && sig.frames == 0 && !sig.terminal {
		sig.errors = nil
		sig.message = ""
	}
	sig.defectWording = defectWords.MatchString(text)
	sig.nondeterministic = nondeterministicWords.MatchString(text)
	for _, e := range sig.errors {
		le := strings.ToLower(e)
		for _, w := range nondeterministicErrors {
			if strings.Contains(le, w) {
				sig.nondeterministic = true
			}
		}
	}
	return sig
}

func within(pos int, spans [][]int) bool {
	for _, sp := range spans {
		if pos >= sp[0] && pos < sp[1] {
			return true
		}
	}
	return false
}

func (s signature) hasFailure() bool {
	return s.frames > 0 || len(s.errors) > 0 || s.terminal
}

// Classify implements the classification policy:
//   - no failure signature reads as a feature request: NA
//   - a failure with a single localized origin: LOW
//   - a failure through several call layers with one deterministic cause: MEDIUM
//   - a failure spanning subsystems, non-deterministic, or without a clear origin: HIGH
//   - anything else defaults to MEDIUM with an uncertainty note
func (h *Heuristic) Classify(ctx context.Context, text string) (models.Classification, error) {
	if err := ctx.Err(); err != nil {
		return models.Classification{}, err
	}

	sig := scan(text)
	body := reportBody(text)
	out := models.Classification{Description: firstLine(body, 200)}

	if !sig.hasFailure() {
		if !sig.defectWording {
			out.Complexity = models.ComplexityNA
			out.Title = firstLine(body, 72)
			out.Reason = "No failure signature found; the report reads as a feature or enhancement request."
			return out, nil
		}
		out.Title = firstLine(body, 72)
		if sig.nondeterministic {
			out.Complexity = models.ComplexityHigh
			out.Reason = "Defect reported without a trace and described as non-deterministic; the origin is unclear."
			return out, nil
		}
		out.Complexity = models.ComplexityMedium
		out.Reason = UncertainNote + ": a defect is described but no stack trace or error identifier was provided."
		return out, nil
	}

	out.Title = failureTitle(sig, body)

	switch {
	case sig.chained || len(sig.errors) > 1:
		out.Complexity = models.ComplexityHigh
		out.Reason = fmt.Sprintf("Failure chains through multiple errors (%s); the cause spans more than one subsystem.",
			strings.Join(sig.errors, " -> "))
	case sig.nondeterministic:
		out.Complexity = models.ComplexityHigh
		out.Reason = "Failure looks non-deterministic (timing, concurrency or connectivity); reproducing the root cause will take investigation."
	case len(sig.errors) == 0:
		out.Complexity = models.ComplexityHigh
		out.Reason = fmt.Sprintf("Failure output across %d frame(s) without an identifiable error; the origin is unclear.", sig.frames)
	case sig.frames <= 1:
		out.Complexity = models.ComplexityLow
		out.Reason = fmt.Sprintf("%s raised at a single, localized origin.", sig.errors[0])
	default:
		out.Complexity = models.ComplexityMedium
		out.Reason = fmt.Sprintf("%s propagates through %d call frames but has a single deterministic cause%s.",
			sig.errors[0], sig.frames, messageSuffix(sig.message))
	}
	return out, nil
}

func failureTitle(sig signature, text string) string {
	if len(sig.errors) == 0 {
		return firstLine(text, 72)
	}
	last := sig.errors[len(sig.errors)-1]
	if sig.message != "" {
		return firstLine(last+": "+sig.message, 72)
	}
	return last
}

func messageSuffix(msg string) string {
	if msg == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", msg)
}
