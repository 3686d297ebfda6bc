package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/triage/internal/analysis"
	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/store"
)

var (
	analyzeFile    string
	analyzeJSON    bool
	analyzeProject string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text...]",
	Short: "Classify an issue report and estimate the work",
	Long: `Classify an issue report by complexity (NA, LOW, MEDIUM, HIGH) and
attach the time estimate from the estimation tool.

The report is read from the arguments, from --file (use - for stdin), or
from piped stdin.`,
	Example: `  triage analyze "Please add dark mode support"
  pbpaste | triage analyze
  triage analyze --file crash.log --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readReport(args, analyzeFile)
		if err != nil {
			return err
		}
		return analyzeRun(cmd.Context(), text)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "Read the report from a file (- for stdin)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the analysis as JSON")
	analyzeCmd.Flags().StringVar(&analyzeProject, "project", "", "Project identifier to include in the prompt and history")
	rootCmd.AddCommand(analyzeCmd)
}

func analyzeRun(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig()
	logger := newLogger(cfg, false)

	coord, _, err := newCoordinator(cfg, logger)
	if err != nil {
		return err
	}

	if analyzeProject != "" {
		text = fmt.Sprintf("Project ID: %s\n\nAnalyze: %s", analyzeProject, text)
	}

	a, _, err := runAnalysis(ctx, coord, analyzeProject, text)
	if err != nil {
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	ui.Analysis(a)
	return nil
}

// runAnalysis analyzes text and journals the attempt when history is on.
func runAnalysis(ctx context.Context, coord *analysis.Coordinator, projectID, text string) (models.IssueAnalysis, string, error) {
	ui.VerboseLog("Analyzing %d bytes", len(text))
	a, err := coord.Analyze(ctx, text)

	j := getJournal()
	if j == nil {
		return a, "", err
	}

	rec := store.NewAnalysisRecord(models.SourceCLI, projectID, text, a, err)
	if jerr := j.RecordAnalysis(ctx, rec); jerr != nil {
		ui.Warning("Could not record analysis: %v", jerr)
		return a, "", err
	}
	ui.VerboseLog("Recorded analysis %s", rec.ID)
	return a, rec.ID, err
}
