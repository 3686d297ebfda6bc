package models

import "time"

// Source identifies which ingress produced a journal record.
type Source string

const (
	SourceCLI  Source = "cli"
	SourceHTTP Source = "http"
	SourceMCP  Source = "mcp"
)

// AnalysisRecord journals one analysis attempt. Failed attempts carry the
// failing stage and error instead of a result.
type AnalysisRecord struct {
	ID           string     `json:"id"`
	Source       Source     `json:"source"`
	ProjectID    string     `json:"project_id,omitempty"`
	Input        string     `json:"input"`
	Title        string     `json:"title,omitempty"`
	Complexity   Complexity `json:"complexity,omitempty"`
	TimeEstimate string     `json:"time_estimate,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	FailedStage  string     `json:"failed_stage,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Succeeded reports whether the analysis produced a result.
func (r *AnalysisRecord) Succeeded() bool { return r.Error == "" }

// DispatchRecord journals one issue-creation attempt.
type DispatchRecord struct {
	ID          string        `json:"id"`
	AnalysisID  string        `json:"analysis_id,omitempty"`
	Backend     string        `json:"backend"`
	Title       string        `json:"title"`
	Labels      []string      `json:"labels,omitempty"`
	Status      OutcomeStatus `json:"status"`
	IssueNumber int           `json:"issue_number,omitempty"`
	IssueURL    string        `json:"issue_url,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Retriable   bool          `json:"retriable"`
	CreatedAt   time.Time     `json:"created_at"`
}
