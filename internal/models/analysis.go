package models

// IssueAnalysis is the structured result of analyzing one issue report.
// It is produced once per request and never mutated afterwards.
type IssueAnalysis struct {
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	Reason       string     `json:"reason"`
	Complexity   Complexity `json:"complexity"`
	TimeEstimate string     `json:"time_estimate"`
}

// Classification is what a classifier reports about an issue. It carries no
// time estimate; that only ever comes from the estimation tool.
type Classification struct {
	Title       string
	Description string
	Reason      string
	Complexity  Complexity
}
