package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/triage/internal/llm"
	"github.com/joescharf/triage/internal/models"
)

// result is the shape the model must fill in. It deliberately has no time
// estimate field.
type result struct {
	Title       string `json:"title" jsonschema:"description=Concise issue title"`
	Description string `json:"description" jsonschema:"description=One or two sentence summary of the issue"`
	Reason      string `json:"reason" jsonschema:"description=Justification for the complexity level including the likely cause"`
	Complexity  string `json:"complexity" jsonschema:"enum=NA,enum=LOW,enum=MEDIUM,enum=HIGH,description=Complexity level of the issue"`
}

// Inference classifies with a language model constrained to a fixed result
// schema.
type Inference struct {
	llm llm.Completer
}

// NewInference returns a model-backed classifier.
func NewInference(c llm.Completer) *Inference {
	return &Inference{llm: c}
}

// buildPrompt constructs the system and user prompts for classification.
func buildPrompt(text string) (system string, user string) {
	system = `You analyze software issue reports and classify their complexity. Submit your answer with the submit_result tool.

Complexity levels:
- "NA": the report is a feature or enhancement request with no failure or exception signature
- "LOW": a failure with a single, localized origin
- "MEDIUM": a failure that traverses multiple call layers but has a clear, deterministic cause (e.g. an arithmetic or logic error)
- "HIGH": a failure whose cause spans multiple subsystems, is non-deterministic, or has no clear origin

Rules:
- If the report contains a stack trace, analyze it and state the likely cause in "reason"
- If you cannot decide, use "MEDIUM" and start "reason" with "Classification uncertain"
- "reason" must never be empty
- Do NOT estimate time or cost; estimates are computed separately from the complexity level`

	user = "Classify this issue:\n\n" + text
	return
}

// Classify asks the model for a classification of text.
func (i *Inference) Classify(ctx context.Context, text string) (models.Classification, error) {
	system, user := buildPrompt(text)

	res, err := llm.Structured[result](ctx, i.llm, system, user)
	if err != nil {
		if errors.Is(err, llm.ErrNonConforming) || ctx.Err() != nil {
			return models.Classification{}, err
		}
		return models.Classification{}, fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
	}

	complexity, err := models.ParseComplexity(res.Complexity)
	if err != nil {
		return models.Classification{}, fmt.Errorf("%w: %v", llm.ErrNonConforming, err)
	}

	return models.Classification{
		Title:       strings.TrimSpace(res.Title),
		Description: strings.TrimSpace(res.Description),
		Reason:      strings.TrimSpace(res.Reason),
		Complexity:  complexity,
	}, nil
}
