// Package action performs the side-effecting step of the pipeline: creating
// an issue in an external tracker through one of several equivalent backends.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/joescharf/triage/internal/models"
)

// Backend identifiers, chosen at configuration time.
const (
	BackendDirect  = "direct"
	BackendGateway = "gateway"
)

// IssueBackend creates issues. Implementations own their authentication and
// normalize every result, including transport errors, into an ActionOutcome.
type IssueBackend interface {
	Name() string
	CreateIssue(ctx context.Context, req models.ActionRequest) models.ActionOutcome
}

// Dispatcher routes an ActionRequest to exactly one named backend. It never
// falls back to another backend and never retries: a second submission could
// create a duplicate issue.
type Dispatcher struct {
	backends map[string]IssueBackend
	logger   *slog.Logger
}

// NewDispatcher registers the given backends under their names.
func NewDispatcher(backends ...IssueBackend) *Dispatcher {
	d := &Dispatcher{
		backends: make(map[string]IssueBackend, len(backends)),
		logger:   slog.Default(),
	}
	for _, b := range backends {
		d.backends[b.Name()] = b
	}
	return d
}

// WithLogger sets the dispatcher's logger and returns it.
func (d *Dispatcher) WithLogger(l *slog.Logger) *Dispatcher {
	d.logger = l
	return d
}

// Backends returns the registered backend names, sorted.
func (d *Dispatcher) Backends() []string {
	names := make([]string, 0, len(d.backends))
	for name := range d.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch sends req to the named backend. Dispatch is not idempotent:
// calling it again after a retriable failure may create a duplicate issue.
func (d *Dispatcher) Dispatch(ctx context.Context, req models.ActionRequest, backend string) models.ActionOutcome {
	b, ok := d.backends[backend]
	if !ok {
		return models.Failure(fmt.Sprintf("unknown action backend %q (have: %s)", backend, strings.Join(d.Backends(), ", ")), false)
	}
	if strings.TrimSpace(req.Title) == "" {
		return models.Failure("issue title is required", false)
	}
	if err := ctx.Err(); err != nil {
		return models.Failure(err.Error(), true)
	}

	req.Labels = normalizeLabels(req.Labels)
	out := b.CreateIssue(ctx, req)

	if out.OK() && (out.IssueNumber <= 0 || out.IssueURL == "") {
		out = models.Failure(fmt.Sprintf("%s backend reported success without an issue number and URL", backend), false)
	}

	if out.OK() {
		d.logger.InfoContext(ctx, "issue created", "backend", backend, "number", out.IssueNumber, "url", out.IssueURL)
	} else {
		d.logger.WarnContext(ctx, "issue creation failed", "backend", backend, "reason", out.Reason, "retriable", out.Retriable)
	}
	return out
}

// normalizeLabels trims, drops empties and removes duplicates, keeping the
// first occurrence order.
func normalizeLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(labels))
	var out []string
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
