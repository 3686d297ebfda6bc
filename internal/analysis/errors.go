package analysis

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step an AnalysisError came from.
type Stage string

const (
	StageClassification Stage = "classification"
	StageEstimation     Stage = "estimation"
	StageAssembly       Stage = "assembly"
)

var (
	// ErrEmptyInput is returned for blank issue text.
	ErrEmptyInput = errors.New("issue text is empty")
	// ErrMissingReason is returned when the classifier gave no justification.
	ErrMissingReason = errors.New("classification has no reason")
	// ErrEstimateSkipped is returned if assembly is attempted before the
	// estimation tool produced a value.
	ErrEstimateSkipped = errors.New("time estimate was not produced by the estimation tool")
)

// AnalysisError reports a pipeline step that could not complete. It is
// always surfaced; the coordinator never substitutes a default analysis.
type AnalysisError struct {
	Stage Stage
	Cause error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed at %s: %v", e.Stage, e.Cause)
}

func (e *AnalysisError) Unwrap() error { return e.Cause }
