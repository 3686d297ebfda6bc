// Package analysis drives classification and estimation of an issue report
// and assembles the structured result.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joescharf/triage/internal/estimate"
	"github.com/joescharf/triage/internal/models"
)

// Classifier maps issue text to a classification.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.Classification, error)
}

// ToolInvoker calls a named tool with JSON-encodable arguments.
type ToolInvoker interface {
	Call(ctx context.Context, name string, args any) (json.RawMessage, error)
}

// State is a step of the analysis state machine.
type State string

const (
	StateStart      State = "START"
	StateClassified State = "CLASSIFIED"
	StateEstimated  State = "ESTIMATED"
	StateAssembled  State = "ASSEMBLED"
	StateFailed     State = "FAILED"
)

// transitions lists the only legal moves. ASSEMBLED and FAILED are terminal.
var transitions = map[State][]State{
	StateStart:      {StateClassified, StateFailed},
	StateClassified: {StateEstimated, StateFailed},
	StateEstimated:  {StateAssembled, StateFailed},
}

// Coordinator runs classify -> estimate -> assemble for each request. It
// holds no per-request state and is safe for concurrent use.
type Coordinator struct {
	classifier Classifier
	tools      ToolInvoker
	toolName   string
	logger     *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for pipeline events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithEstimationTool overrides the tool name used for estimation.
func WithEstimationTool(name string) Option {
	return func(c *Coordinator) { c.toolName = name }
}

// NewCoordinator binds a classifier and the tool invoker that serves the
// estimation tool.
func NewCoordinator(classifier Classifier, tools ToolInvoker, opts ...Option) *Coordinator {
	c := &Coordinator{
		classifier: classifier,
		tools:      tools,
		toolName:   estimate.ToolName,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run tracks one invocation through the state machine.
type run struct {
	state          State
	classification models.Classification
	estimate       string
	estimated      bool
}

func (r *run) advance(to State) {
	for _, allowed := range transitions[r.state] {
		if allowed == to {
			r.state = to
			return
		}
	}
	panic(fmt.Sprintf("analysis: illegal transition %s -> %s", r.state, to))
}

func (r *run) fail(stage Stage, cause error) error {
	r.advance(StateFailed)
	return &AnalysisError{Stage: stage, Cause: cause}
}

// Analyze classifies text, obtains the time estimate from the estimation
// tool, and returns the assembled analysis. Any step that cannot complete
// yields an *AnalysisError.
func (c *Coordinator) Analyze(ctx context.Context, text string) (models.IssueAnalysis, error) {
	r := &run{state: StateStart}

	if strings.TrimSpace(text) == "" {
		return models.IssueAnalysis{}, r.fail(StageClassification, ErrEmptyInput)
	}

	// START -> CLASSIFIED
	cls, err := c.classifier.Classify(ctx, text)
	if err != nil {
		c.logger.WarnContext(ctx, "classification failed", "error", err)
		return models.IssueAnalysis{}, r.fail(StageClassification, err)
	}
	if !cls.Complexity.Valid() {
		return models.IssueAnalysis{}, r.fail(StageClassification,
			fmt.Errorf("classifier returned unknown complexity %q", cls.Complexity))
	}
	r.classification = cls
	r.advance(StateClassified)

	// CLASSIFIED -> ESTIMATED
	if err := c.estimate(ctx, r); err != nil {
		c.logger.WarnContext(ctx, "estimation failed", "complexity", cls.Complexity, "error", err)
		return models.IssueAnalysis{}, r.fail(StageEstimation, err)
	}
	r.advance(StateEstimated)

	// ESTIMATED -> ASSEMBLED
	out, err := assemble(r)
	if err != nil {
		return models.IssueAnalysis{}, r.fail(StageAssembly, err)
	}
	r.advance(StateAssembled)

	c.logger.DebugContext(ctx, "issue analyzed",
		"complexity", out.Complexity,
		"time_estimate", out.TimeEstimate)
	return out, nil
}

func (c *Coordinator) estimate(ctx context.Context, r *run) error {
	raw, err := c.tools.Call(ctx, c.toolName, estimate.Input{Complexity: r.classification.Complexity})
	if err != nil {
		return fmt.Errorf("call %s: %w", c.toolName, err)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("decode %s result: %w", c.toolName, err)
	}
	if value == "" {
		return fmt.Errorf("%s returned an empty estimate", c.toolName)
	}
	r.estimate = value
	r.estimated = true
	return nil
}

// assemble copies the classifier's fields and the tool's estimate verbatim.
func assemble(r *run) (models.IssueAnalysis, error) {
	if !r.estimated {
		return models.IssueAnalysis{}, ErrEstimateSkipped
	}
	if strings.TrimSpace(r.classification.Reason) == "" {
		return models.IssueAnalysis{}, ErrMissingReason
	}
	return models.IssueAnalysis{
		Title:        r.classification.Title,
		Description:  r.classification.Description,
		Reason:       r.classification.Reason,
		Complexity:   r.classification.Complexity,
		TimeEstimate: r.estimate,
	}, nil
}
