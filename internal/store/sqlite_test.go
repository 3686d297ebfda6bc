package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/triage/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "subdir", "test.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestRecordAnalysis_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &models.AnalysisRecord{
		Source:       models.SourceHTTP,
		ProjectID:    "proj-1",
		Input:        "ZeroDivisionError: division by zero",
		Title:        "Division by zero",
		Complexity:   models.ComplexityMedium,
		TimeEstimate: "4 hours",
		Reason:       "single deterministic cause",
	}
	require.NoError(t, s.RecordAnalysis(ctx, r))
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())

	got, err := s.GetAnalysis(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Source, got.Source)
	assert.Equal(t, r.ProjectID, got.ProjectID)
	assert.Equal(t, r.Input, got.Input)
	assert.Equal(t, models.ComplexityMedium, got.Complexity)
	assert.Equal(t, "4 hours", got.TimeEstimate)
	assert.True(t, got.Succeeded())
}

func TestGetAnalysis_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetAnalysis(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAnalyses_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []*models.AnalysisRecord{
		{Source: models.SourceCLI, Input: "a", Complexity: models.ComplexityNA, TimeEstimate: "1 hour", Reason: "r"},
		{Source: models.SourceHTTP, Input: "b", Complexity: models.ComplexityHigh, TimeEstimate: "8 hours", Reason: "r"},
		{Source: models.SourceHTTP, Input: "c", FailedStage: "classification", Error: "inference unavailable"},
	}
	for _, r := range records {
		require.NoError(t, s.RecordAnalysis(ctx, r))
	}

	all, err := s.ListAnalyses(ctx, AnalysisFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Input, "newest first")

	high, err := s.ListAnalyses(ctx, AnalysisFilter{Complexity: models.ComplexityHigh})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "b", high[0].Input)

	httpOnly, err := s.ListAnalyses(ctx, AnalysisFilter{Source: models.SourceHTTP})
	require.NoError(t, err)
	assert.Len(t, httpOnly, 2)

	failed, err := s.ListAnalyses(ctx, AnalysisFilter{FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.False(t, failed[0].Succeeded())
	assert.Equal(t, "classification", failed[0].FailedStage)

	limited, err := s.ListAnalyses(ctx, AnalysisFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRecordDispatch_LinkedAndStandalone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &models.AnalysisRecord{Source: models.SourceCLI, Input: "x", Complexity: models.ComplexityLow, TimeEstimate: "2 hours", Reason: "r"}
	require.NoError(t, s.RecordAnalysis(ctx, a))

	linked := &models.DispatchRecord{
		AnalysisID:  a.ID,
		Backend:     "direct",
		Title:       "Crash",
		Labels:      []string{"bug", "complexity:low"},
		Status:      models.OutcomeSuccess,
		IssueNumber: 42,
		IssueURL:    "https://github.com/o/r/issues/42",
	}
	require.NoError(t, s.RecordDispatch(ctx, linked))

	standalone := &models.DispatchRecord{
		Backend:   "gateway",
		Title:     "Manual",
		Status:    models.OutcomeFailure,
		Reason:    "503 Service Unavailable",
		Retriable: true,
		CreatedAt: time.Now().UTC().Add(time.Second),
	}
	require.NoError(t, s.RecordDispatch(ctx, standalone))

	forAnalysis, err := s.ListDispatches(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, forAnalysis, 1)
	assert.Equal(t, 42, forAnalysis[0].IssueNumber)
	assert.Equal(t, []string{"bug", "complexity:low"}, forAnalysis[0].Labels)
	assert.Equal(t, a.ID, forAnalysis[0].AnalysisID)

	all, err := s.ListDispatches(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Manual", all[0].Title)
	assert.Empty(t, all[0].AnalysisID)
	assert.Empty(t, all[0].Labels)
	assert.True(t, all[0].Retriable)
	assert.Equal(t, models.OutcomeFailure, all[0].Status)
}

func TestRecordDispatch_UnknownAnalysisRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordDispatch(context.Background(), &models.DispatchRecord{
		AnalysisID: "does-not-exist",
		Backend:    "direct",
		Title:      "t",
		Status:     models.OutcomeSuccess,
	})
	assert.Error(t, err, "foreign key enforced")
}
