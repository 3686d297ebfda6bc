package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v58/github"

	"github.com/joescharf/triage/internal/models"
)

// DirectBackend creates issues through the GitHub REST API with a bearer
// token.
type DirectBackend struct {
	client *github.Client
	owner  string
	repo   string
}

// NewDirectBackend builds a REST backend for repo ("owner/name"). apiURL may
// be empty for api.github.com; httpClient may be nil.
func NewDirectBackend(token, repo, apiURL string, httpClient *http.Client) (*DirectBackend, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(httpClient).WithAuthToken(token)
	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		u, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("parse GitHub API URL: %w", err)
		}
		client.BaseURL = u
	}

	return &DirectBackend{client: client, owner: owner, repo: name}, nil
}

// Name implements IssueBackend.
func (b *DirectBackend) Name() string { return BackendDirect }

// CreateIssue implements IssueBackend.
func (b *DirectBackend) CreateIssue(ctx context.Context, req models.ActionRequest) models.ActionOutcome {
	ir := &github.IssueRequest{
		Title: github.String(req.Title),
		Body:  github.String(req.Body),
	}
	if len(req.Labels) > 0 {
		labels := req.Labels
		ir.Labels = &labels
	}

	issue, _, err := b.client.Issues.Create(ctx, b.owner, b.repo, ir)
	if err != nil {
		return restFailure(ctx, err)
	}
	if issue.GetNumber() == 0 || issue.GetHTMLURL() == "" {
		return models.Failure("GitHub response is missing number or html_url", false)
	}
	return models.Success(issue.GetNumber(), issue.GetHTMLURL())
}

// restFailure maps a go-github error to an outcome: HTTP errors become
// "<status> <body>" and are retriable for 5xx; rate limits, timeouts and
// cancellations are retriable; anything else is permanent.
func restFailure(ctx context.Context, err error) models.ActionOutcome {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var respErr *github.ErrorResponse
	var netErr net.Error

	switch {
	case ctx.Err() != nil:
		return models.Failure(ctx.Err().Error(), true)
	case errors.As(err, &rateErr):
		return models.Failure(fmt.Sprintf("rate limited until %s: %s", rateErr.Rate.Reset.Time.Format("15:04:05"), rateErr.Message), true)
	case errors.As(err, &abuseErr):
		return models.Failure("secondary rate limit: "+abuseErr.Message, true)
	case errors.As(err, &respErr) && respErr.Response != nil:
		status := respErr.Response.StatusCode
		return models.Failure(fmt.Sprintf("%d %s", status, errorBody(respErr)), status >= 500)
	case errors.As(err, &netErr) && netErr.Timeout():
		return models.Failure(err.Error(), true)
	default:
		return models.Failure(err.Error(), false)
	}
}

func errorBody(e *github.ErrorResponse) string {
	var parts []string
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	for _, fe := range e.Errors {
		detail := fe.Message
		if detail == "" {
			detail = strings.TrimSpace(fe.Field + " " + fe.Code)
		}
		parts = append(parts, detail)
	}
	if len(parts) == 0 {
		if raw := rawBody(e.Response); raw != "" {
			return raw
		}
		return http.StatusText(e.Response.StatusCode)
	}
	return strings.Join(parts, "; ")
}

// maxBodyReason caps how much of a non-JSON error body ends up in a reason.
const maxBodyReason = 512

// rawBody returns the response body with whitespace collapsed. go-github
// leaves the bytes it read in Response.Body when the body is not JSON.
func rawBody(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4*maxBodyReason))
	if err != nil {
		return ""
	}
	text := strings.Join(strings.Fields(string(data)), " ")
	if r := []rune(text); len(r) > maxBodyReason {
		text = string(r[:maxBodyReason-3]) + "..."
	}
	return text
}

// SplitRepo splits "owner/name".
func SplitRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(strings.Trim(repo, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q (want owner/name)", repo)
	}
	return parts[0], parts[1], nil
}
