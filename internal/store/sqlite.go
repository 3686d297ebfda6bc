package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/triage/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements Journal using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes writers; concurrent HTTP handlers would
	// otherwise hit "database is locked".
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", strings.ToLower(strings.TrimPrefix(pragma, "PRAGMA ")), err)
		}
	}

	return &SQLiteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

// newULID returns a ULID that sorts after every ID this store issued before.
func (s *SQLiteStore) newULID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Analyses ---

const analysisColumns = `id, source, project_id, input, title, complexity, time_estimate, reason, failed_stage, error, created_at`

func (s *SQLiteStore) RecordAnalysis(ctx context.Context, r *models.AnalysisRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.ID == "" {
		r.ID = s.newULID(r.CreatedAt)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (`+analysisColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Source), r.ProjectID, r.Input, r.Title,
		string(r.Complexity), r.TimeEstimate, r.Reason,
		r.FailedStage, r.Error, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record analysis: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id)
	r, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]*models.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses`
	var conditions []string
	var args []any

	if filter.Complexity != "" {
		conditions = append(conditions, "complexity = ?")
		args = append(args, string(filter.Complexity))
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.FailedOnly {
		conditions = append(conditions, "error != ''")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.AnalysisRecord
	for rows.Next() {
		r, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(sc scanner) (*models.AnalysisRecord, error) {
	r := &models.AnalysisRecord{}
	err := sc.Scan(&r.ID, &r.Source, &r.ProjectID, &r.Input, &r.Title,
		&r.Complexity, &r.TimeEstimate, &r.Reason,
		&r.FailedStage, &r.Error, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// --- Dispatches ---

const dispatchColumns = `id, analysis_id, backend, title, labels, status, issue_number, issue_url, reason, retriable, created_at`

func (s *SQLiteStore) RecordDispatch(ctx context.Context, r *models.DispatchRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.ID == "" {
		r.ID = s.newULID(r.CreatedAt)
	}

	labels := r.Labels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dispatches (`+dispatchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, nullable(r.AnalysisID), r.Backend, r.Title, string(labelsJSON),
		string(r.Status), r.IssueNumber, r.IssueURL, r.Reason,
		boolToInt(r.Retriable), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

// ListDispatches returns dispatches newest first, optionally only those for
// one analysis.
func (s *SQLiteStore) ListDispatches(ctx context.Context, analysisID string, limit int) ([]*models.DispatchRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var rows *sql.Rows
	var err error
	if analysisID != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+dispatchColumns+` FROM dispatches WHERE analysis_id = ? ORDER BY id DESC LIMIT ?`, analysisID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+dispatchColumns+` FROM dispatches ORDER BY id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.DispatchRecord
	for rows.Next() {
		r := &models.DispatchRecord{}
		var analysisID sql.NullString
		var labelsJSON string
		if err := rows.Scan(&r.ID, &analysisID, &r.Backend, &r.Title, &labelsJSON,
			&r.Status, &r.IssueNumber, &r.IssueURL, &r.Reason,
			&r.Retriable, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		r.AnalysisID = analysisID.String
		_ = json.Unmarshal([]byte(labelsJSON), &r.Labels)
		out = append(out, r)
	}
	return out, rows.Err()
}
