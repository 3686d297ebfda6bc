package store

import (
	"errors"

	"github.com/joescharf/triage/internal/analysis"
	"github.com/joescharf/triage/internal/models"
)

// NewAnalysisRecord builds the journal entry for one Analyze call.
func NewAnalysisRecord(source models.Source, projectID, input string, a models.IssueAnalysis, err error) *models.AnalysisRecord {
	r := &models.AnalysisRecord{
		Source:    source,
		ProjectID: projectID,
		Input:     input,
	}
	if err != nil {
		r.Error = err.Error()
		var ae *analysis.AnalysisError
		if errors.As(err, &ae) {
			r.FailedStage = string(ae.Stage)
		}
		return r
	}
	r.Title = a.Title
	r.Complexity = a.Complexity
	r.TimeEstimate = a.TimeEstimate
	r.Reason = a.Reason
	return r
}

// NewDispatchRecord builds the journal entry for one dispatch attempt.
func NewDispatchRecord(analysisID, backend string, req models.ActionRequest, out models.ActionOutcome) *models.DispatchRecord {
	return &models.DispatchRecord{
		AnalysisID:  analysisID,
		Backend:     backend,
		Title:       req.Title,
		Labels:      req.Labels,
		Status:      out.Status,
		IssueNumber: out.IssueNumber,
		IssueURL:    out.IssueURL,
		Reason:      out.Reason,
		Retriable:   out.Retriable,
	}
}
