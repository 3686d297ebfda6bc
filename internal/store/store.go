package store

import (
	"context"

	"github.com/joescharf/triage/internal/models"
)

// AnalysisFilter narrows ListAnalyses.
type AnalysisFilter struct {
	Complexity models.Complexity
	Source     models.Source
	FailedOnly bool
	Limit      int
}

// Journal records what the ingress layers did. The analysis core never
// touches it.
type Journal interface {
	// Analyses
	RecordAnalysis(ctx context.Context, r *models.AnalysisRecord) error
	GetAnalysis(ctx context.Context, id string) (*models.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]*models.AnalysisRecord, error)

	// Dispatches
	RecordDispatch(ctx context.Context, r *models.DispatchRecord) error
	ListDispatches(ctx context.Context, analysisID string, limit int) ([]*models.DispatchRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// DefaultLimit caps list queries when no limit is given.
const DefaultLimit = 50
