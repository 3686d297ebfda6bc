// Package api serves the analysis pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/joescharf/triage/internal/action"
	"github.com/joescharf/triage/internal/analysis"
	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/store"
)

// Analyzer runs the analysis pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (models.IssueAnalysis, error)
}

// Dispatcher creates issues.
type Dispatcher interface {
	Dispatch(ctx context.Context, req models.ActionRequest, backend string) models.ActionOutcome
}

// Server provides the REST API handlers. Collaborators are bound once at
// startup; handlers only read them.
type Server struct {
	mu       sync.RWMutex
	analyzer Analyzer

	dispatcher Dispatcher
	backend    string
	journal    store.Journal
	limiter    *rate.Limiter
	version    string
	logger     *slog.Logger
}

// NewServer creates a new API server. analyzer may be nil until SetAnalyzer
// is called; analysis routes answer 503 meanwhile. journal may be nil.
func NewServer(analyzer Analyzer, journal store.Journal, version string) *Server {
	return &Server{
		analyzer: analyzer,
		journal:  journal,
		version:  version,
		logger:   slog.Default(),
	}
}

// SetAnalyzer installs the analyzer once it is ready.
func (s *Server) SetAnalyzer(a Analyzer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyzer = a
}

func (s *Server) currentAnalyzer() Analyzer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyzer
}

// WithDispatcher enables POST /api/v1/issues using backend by default.
func (s *Server) WithDispatcher(d Dispatcher, backend string) *Server {
	s.dispatcher = d
	s.backend = backend
	return s
}

// WithRateLimit limits analysis routes to rps requests per second; zero
// disables limiting.
func (s *Server) WithRateLimit(rps float64) *Server {
	if rps <= 0 {
		s.limiter = nil
		return s
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return s
}

// WithLogger sets the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.root)

	mux.Handle("POST /check-dependencies", s.limit(http.HandlerFunc(s.checkDependencies)))
	mux.Handle("POST /api/v1/analyze", s.limit(http.HandlerFunc(s.analyze)))
	mux.Handle("POST /api/v1/issues", s.limit(http.HandlerFunc(s.createIssue)))

	mux.HandleFunc("GET /api/v1/history", s.history)
	mux.HandleFunc("GET /api/v1/history/{id}", s.historyEntry)

	return corsMiddleware(s.logRequests(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Routes ---

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "triage is running",
		"version": s.version,
		"ready":   s.currentAnalyzer() != nil,
		"actions": s.dispatcher != nil,
	})
}

type checkDependenciesRequest struct {
	ProjectID   string `json:"project_id"`
	Description string `json:"description"`
}

// checkDependencies analyzes a project issue description and returns the
// bare IssueAnalysis.
func (s *Server) checkDependencies(w http.ResponseWriter, r *http.Request) {
	analyzer := s.currentAnalyzer()
	if analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis service is not initialized")
		return
	}

	var req checkDependenciesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	a, _, err := s.runAnalysis(r.Context(), analyzer, req.ProjectID, projectPrompt(req.ProjectID, req.Description))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func projectPrompt(projectID, description string) string {
	return fmt.Sprintf("Project ID: %s\n\nAnalyze: %s", projectID, description)
}

type analyzeRequest struct {
	Text      string `json:"text"`
	ProjectID string `json:"project_id"`
}

type analyzeResponse struct {
	ID       string               `json:"id,omitempty"`
	Analysis models.IssueAnalysis `json:"analysis"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	analyzer := s.currentAnalyzer()
	if analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis service is not initialized")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	a, id, err := s.runAnalysis(r.Context(), analyzer, req.ProjectID, req.Text)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{ID: id, Analysis: a})
}

type createIssueRequest struct {
	Text    string   `json:"text"`
	Labels  []string `json:"labels"`
	Backend string   `json:"backend"`
}

type createIssueResponse struct {
	AnalysisID string               `json:"analysis_id,omitempty"`
	Analysis   models.IssueAnalysis `json:"analysis"`
	Request    models.ActionRequest `json:"request"`
	Outcome    models.ActionOutcome `json:"outcome"`
}

// createIssue analyzes the text and files an issue. A failed dispatch is a
// reportable outcome, not an HTTP error.
func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	analyzer := s.currentAnalyzer()
	if analyzer == nil || s.dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, "issue creation is not configured")
		return
	}

	var req createIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	a, id, err := s.runAnalysis(r.Context(), analyzer, "", req.Text)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}

	backend := req.Backend
	if backend == "" {
		backend = s.backend
	}
	ar := action.BuildRequest(a, req.Text, req.Labels...)
	out := s.dispatcher.Dispatch(r.Context(), ar, backend)
	s.recordDispatch(r.Context(), store.NewDispatchRecord(id, backend, ar, out))

	status := http.StatusCreated
	if !out.OK() {
		status = http.StatusOK
	}
	writeJSON(w, status, createIssueResponse{AnalysisID: id, Analysis: a, Request: ar, Outcome: out})
}

type historyResponse struct {
	Analyses   []*models.AnalysisRecord `json:"analyses"`
	Dispatches []*models.DispatchRecord `json:"dispatches"`
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not enabled")
		return
	}

	q := r.URL.Query()
	filter := store.AnalysisFilter{
		Source:     models.Source(q.Get("source")),
		FailedOnly: q.Get("failed") == "true",
	}
	if c := q.Get("complexity"); c != "" {
		parsed, err := models.ParseComplexity(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Complexity = parsed
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	analyses, err := s.journal.ListAnalyses(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dispatches, err := s.journal.ListDispatches(r.Context(), "", filter.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if analyses == nil {
		analyses = []*models.AnalysisRecord{}
	}
	if dispatches == nil {
		dispatches = []*models.DispatchRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Analyses: analyses, Dispatches: dispatches})
}

type historyEntryResponse struct {
	Analysis   *models.AnalysisRecord   `json:"analysis"`
	Dispatches []*models.DispatchRecord `json:"dispatches"`
}

func (s *Server) historyEntry(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not enabled")
		return
	}
	id := r.PathValue("id")
	a, err := s.journal.GetAnalysis(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dispatches, err := s.journal.ListDispatches(r.Context(), id, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if dispatches == nil {
		dispatches = []*models.DispatchRecord{}
	}
	writeJSON(w, http.StatusOK, historyEntryResponse{Analysis: a, Dispatches: dispatches})
}

// --- Helpers ---

// writeAnalysisError maps pipeline failures to 500 and cancellations to 503.
func writeAnalysisError(w http.ResponseWriter, err error) {
	var ae *analysis.AnalysisError
	if errors.As(err, &ae) && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error(), "stage": string(ae.Stage)})
		return
	}
	if ae != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error(), "stage": string(ae.Stage)})
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// runAnalysis analyzes text and journals the attempt, returning the journal
// ID when one was written.
func (s *Server) runAnalysis(ctx context.Context, analyzer Analyzer, projectID, text string) (models.IssueAnalysis, string, error) {
	a, err := analyzer.Analyze(ctx, text)
	if err != nil {
		s.logger.WarnContext(ctx, "analysis failed", "error", err)
	}
	if s.journal == nil {
		return a, "", err
	}
	rec := store.NewAnalysisRecord(models.SourceHTTP, projectID, text, a, err)
	if jerr := s.journal.RecordAnalysis(ctx, rec); jerr != nil {
		s.logger.WarnContext(ctx, "journal analysis", "error", jerr)
		return a, "", err
	}
	return a, rec.ID, err
}

func (s *Server) recordDispatch(ctx context.Context, rec *models.DispatchRecord) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordDispatch(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "journal dispatch", "error", err)
	}
}
