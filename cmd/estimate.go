package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/triage/internal/estimate"
	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/output"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate [complexity]",
	Short: "Print the time estimate for a complexity level",
	Long: `Print the time estimate the estimation tool assigns to a complexity
level. Without an argument, prints the whole table.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return estimateTableRun()
		}
		return estimateRun(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(estimateCmd)
}

// estimateRun calls the estimation tool by name, as the pipeline does.
func estimateRun(ctx context.Context, level string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := models.ParseComplexity(level)
	if err != nil {
		// Out-of-set values still get the tool's answer.
		c = models.Complexity(level)
	}

	out, err := newEstimationRegistry().Call(ctx, estimate.ToolName, estimate.Input{Complexity: c})
	if err != nil {
		return err
	}
	var s string
	if err := json.Unmarshal(out, &s); err != nil {
		return fmt.Errorf("decode estimate: %w", err)
	}
	fmt.Fprintln(ui.Out, s)
	return nil
}

func estimateTableRun() error {
	table := ui.Table([]string{"COMPLEXITY", "ESTIMATE"})
	for _, c := range models.Complexities() {
		_ = table.Append([]string{output.ComplexityColor(c), estimate.Estimate(c)})
	}
	return table.Render()
}
