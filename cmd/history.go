package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/output"
	"github.com/joescharf/triage/internal/store"
)

var (
	historyLimit      int
	historyComplexity string
	historyFailed     bool
	historyDispatches bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded analyses and issue dispatches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if historyDispatches {
			return historyDispatchesRun(ctx)
		}
		return historyRun(ctx)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of entries")
	historyCmd.Flags().StringVar(&historyComplexity, "complexity", "", "Only analyses with this complexity")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "Only failed analyses")
	historyCmd.Flags().BoolVar(&historyDispatches, "dispatches", false, "List issue dispatches instead of analyses")
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (store.Journal, error) {
	if noStore {
		return nil, fmt.Errorf("history is disabled (--no-history)")
	}
	j := getJournal()
	if j == nil {
		return nil, fmt.Errorf("history database is not available")
	}
	return j, nil
}

func historyRun(ctx context.Context) error {
	j, err := openHistory()
	if err != nil {
		return err
	}

	filter := store.AnalysisFilter{Limit: historyLimit, FailedOnly: historyFailed}
	if historyComplexity != "" {
		c, err := models.ParseComplexity(historyComplexity)
		if err != nil {
			return err
		}
		filter.Complexity = c
	}

	records, err := j.ListAnalyses(ctx, filter)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		ui.Info("No analyses recorded")
		return nil
	}

	table := ui.Table([]string{"ID", "WHEN", "SOURCE", "COMPLEXITY", "ESTIMATE", "TITLE"})
	for _, r := range records {
		complexity := output.ComplexityColor(r.Complexity)
		estimate := r.TimeEstimate
		title := r.Title
		if !r.Succeeded() {
			complexity = output.Red("failed")
			estimate = r.FailedStage
			title = r.Error
		}
		if title == "" {
			title = firstLine(r.Input)
		}
		_ = table.Append([]string{
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			string(r.Source),
			complexity,
			estimate,
			truncate(title, 60),
		})
	}
	return table.Render()
}

func historyDispatchesRun(ctx context.Context) error {
	j, err := openHistory()
	if err != nil {
		return err
	}

	records, err := j.ListDispatches(ctx, "", historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		ui.Info("No dispatches recorded")
		return nil
	}

	table := ui.Table([]string{"ID", "WHEN", "BACKEND", "STATUS", "ISSUE", "TITLE"})
	for _, r := range records {
		issue := r.IssueURL
		if r.Status == models.OutcomeFailure {
			issue = r.Reason
			if r.Retriable {
				issue += " (retriable)"
			}
		} else if r.IssueNumber > 0 {
			issue = "#" + strconv.Itoa(r.IssueNumber) + " " + r.IssueURL
		}
		_ = table.Append([]string{
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Backend,
			output.OutcomeColor(r.Status),
			truncate(issue, 60),
			truncate(r.Title, 50),
		})
	}
	return table.Render()
}

// shortID returns the random tail of a ULID, which is what distinguishes
// entries created in the same millisecond.
func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
