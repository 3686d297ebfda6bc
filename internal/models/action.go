package models

import "fmt"

// ActionRequest is the input to an issue-creation backend.
type ActionRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

// OutcomeStatus tags an ActionOutcome.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// ActionOutcome is the normalized result of one dispatch attempt. Success
// carries IssueNumber/IssueURL; Failure carries Reason/Retriable.
type ActionOutcome struct {
	Status      OutcomeStatus `json:"status"`
	IssueNumber int           `json:"issue_number,omitempty"`
	IssueURL    string        `json:"issue_url,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Retriable   bool          `json:"retriable"`
}

// Success builds a successful outcome.
func Success(number int, url string) ActionOutcome {
	return ActionOutcome{Status: OutcomeSuccess, IssueNumber: number, IssueURL: url}
}

// Failure builds a failed outcome.
func Failure(reason string, retriable bool) ActionOutcome {
	return ActionOutcome{Status: OutcomeFailure, Reason: reason, Retriable: retriable}
}

// OK reports whether the outcome is a Success.
func (o ActionOutcome) OK() bool { return o.Status == OutcomeSuccess }

// Err returns the outcome as an *ActionFailure, or nil on success.
func (o ActionOutcome) Err() error {
	if o.OK() {
		return nil
	}
	return &ActionFailure{Reason: o.Reason, Retriable: o.Retriable}
}

// ActionFailure is the error form of a failed dispatch.
type ActionFailure struct {
	Reason    string
	Retriable bool
}

func (e *ActionFailure) Error() string {
	if e.Retriable {
		return fmt.Sprintf("action failed (retriable): %s", e.Reason)
	}
	return fmt.Sprintf("action failed: %s", e.Reason)
}
