package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/triage/internal/action"
	"github.com/joescharf/triage/internal/capability"
	"github.com/joescharf/triage/internal/config"
	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/store"
)

var (
	issueFile    string
	issueLabels  []string
	issueBackend string
	issueYes     bool
	issueForce   bool
	issueJSON    bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "File analyzed reports as GitHub issues",
}

var issueCreateCmd = &cobra.Command{
	Use:   "create [text...]",
	Short: "Analyze a report and create a GitHub issue from it",
	Long: `Analyze a report, then create an issue in github.repo with the
analysis in the body and bug/enhancement and complexity labels.

The backend comes from action.backend (direct REST or MCP gateway) unless
--backend is given. Creation is not idempotent: running the command twice
creates two issues. A failed creation is never retried automatically.

Feature requests (complexity NA) are skipped unless --force is given.`,
	Example: `  triage issue create --file crash.log --label triage
  triage issue create --backend gateway --yes "Checkout crashes on submit"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readReport(args, issueFile)
		if err != nil {
			return err
		}
		return issueCreateRun(cmd.Context(), text)
	},
}

func init() {
	issueCreateCmd.Flags().StringVarP(&issueFile, "file", "f", "", "Read the report from a file (- for stdin)")
	issueCreateCmd.Flags().StringSliceVarP(&issueLabels, "label", "l", nil, "Extra label (repeatable)")
	issueCreateCmd.Flags().StringVar(&issueBackend, "backend", "", "Action backend: direct or gateway (default from config)")
	issueCreateCmd.Flags().BoolVarP(&issueYes, "yes", "y", false, "Approve gateway tool calls without prompting")
	issueCreateCmd.Flags().BoolVar(&issueForce, "force", false, "Create an issue even for NA (feature request) reports")
	issueCreateCmd.Flags().BoolVar(&issueJSON, "json", false, "Print the request and outcome as JSON")

	issueCmd.AddCommand(issueCreateCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueCreateRun(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig()
	logger := newLogger(cfg, false)

	coord, _, err := newCoordinator(cfg, logger)
	if err != nil {
		return err
	}
	backend := issueBackend
	if backend == "" {
		backend = cfg.ActionBackend
	}

	// Fail on configuration before spending an inference call.
	if !dryRun {
		probe := *cfg
		probe.ActionBackend = backend
		probe.InferenceBackend = config.InferenceHeuristic
		if err := probe.Validate(true); err != nil {
			return err
		}
	}

	a, analysisID, err := runAnalysis(ctx, coord, "", text)
	if err != nil {
		return err
	}
	if !issueJSON {
		ui.Analysis(a)
	}

	if a.Complexity == models.ComplexityNA && !issueForce {
		ui.Info("Complexity is NA (no defect found); not creating an issue. Use --force to create one anyway.")
		return nil
	}

	req := action.BuildRequest(a, text, issueLabels...)
	if dryRun {
		ui.DryRunMsg("Would create issue %q in %s via %s with labels %v", req.Title, cfg.GitHub.Repo, backend, req.Labels)
		ui.VerboseLog("Body:\n%s", req.Body)
		return nil
	}

	var approver capability.Approver = promptApprover(stdin, ui.ErrOut)
	if issueYes {
		approver = autoApprover
	}
	dispatcher, closeFn, err := newDispatcher(ctx, cfg, backend, approver, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	out := dispatcher.Dispatch(ctx, req, backend)
	if j := getJournal(); j != nil {
		if err := j.RecordDispatch(ctx, store.NewDispatchRecord(analysisID, backend, req, out)); err != nil {
			ui.Warning("Could not record dispatch: %v", err)
		}
	}

	if issueJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"request": req, "outcome": out}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(ui.Out)
		ui.Outcome(backend, out)
	}
	return out.Err()
}
