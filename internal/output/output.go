package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/joescharf/triage/internal/models"
)

// UI provides colored output and respects verbose/dry-run modes.
type UI struct {
	Verbose bool
	DryRun  bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("\u2713")
	warningPrefix = color.New(color.FgHiYellow).Sprint("\u26a0")
	errorPrefix   = color.New(color.FgHiRed).Sprint("\u2717")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  \u2192")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
)

// Red returns a red-colored string.
func Red(s string) string { return red(s) }

// ComplexityColor colors a complexity level by severity.
func ComplexityColor(c models.Complexity) string {
	s := string(c)
	switch c {
	case models.ComplexityNA:
		return cyan(s)
	case models.ComplexityLow:
		return green(s)
	case models.ComplexityMedium:
		return yellow(s)
	case models.ComplexityHigh:
		return red(s)
	default:
		return s
	}
}

// OutcomeColor colors a dispatch status.
func OutcomeColor(status models.OutcomeStatus) string {
	switch status {
	case models.OutcomeSuccess:
		return green(string(status))
	case models.OutcomeFailure:
		return red(string(status))
	default:
		return string(status)
	}
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

func (u *UI) DryRunMsg(format string, a ...any) {
	if u.DryRun {
		u.Warning("[DRY-RUN] "+format, a...)
	}
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// Analysis prints an analysis as aligned key/value lines.
func (u *UI) Analysis(a models.IssueAnalysis) {
	if a.Title != "" {
		fmt.Fprintf(u.Out, "%s\n", color.New(color.Bold).Sprint(a.Title))
	}
	if a.Description != "" {
		fmt.Fprintf(u.Out, "%s\n", a.Description)
	}
	if a.Title != "" || a.Description != "" {
		fmt.Fprintln(u.Out)
	}
	fmt.Fprintf(u.Out, "  %-14s %s\n", "Complexity:", ComplexityColor(a.Complexity))
	fmt.Fprintf(u.Out, "  %-14s %s\n", "Time estimate:", a.TimeEstimate)
	fmt.Fprintf(u.Out, "  %-14s %s\n", "Reason:", strings.TrimSpace(a.Reason))
}

// Outcome reports a dispatch outcome as a success or error line.
func (u *UI) Outcome(backend string, o models.ActionOutcome) {
	if o.OK() {
		u.Success("Created issue #%d via %s: %s", o.IssueNumber, backend, o.IssueURL)
		return
	}
	hint := "not retriable"
	if o.Retriable {
		hint = "retriable"
	}
	u.Error("Issue creation via %s failed (%s): %s", backend, hint, o.Reason)
}
