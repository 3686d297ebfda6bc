// Package mcp exposes triage over the Model Context Protocol so agents can
// analyze reports and estimate work as tool calls.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/triage/internal/action"
	"github.com/joescharf/triage/internal/capability"
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

// Tool names served in addition to the registry's capabilities.
const (
	AnalyzeToolName = "analyze_issue"
	FileToolName    = "file_issue"
)

// Server wraps the analysis pipeline and exposes it as MCP tools.
type Server struct {
	registry   *capability.Registry
	analyzer   Analyzer
	dispatcher Dispatcher
	backend    string
	journal    store.Journal
	version    string
	logger     *slog.Logger
}

// NewServer creates the MCP server wrapper. Every auto-approved capability
// in registry is served as a tool; analyzer may be nil when inference is not
// configured.
func NewServer(registry *capability.Registry, analyzer Analyzer, version string) *Server {
	return &Server{
		registry: registry,
		analyzer: analyzer,
		version:  version,
		logger:   slog.Default(),
	}
}

// WithDispatcher enables the file_issue tool.
func (s *Server) WithDispatcher(d Dispatcher, backend string) *Server {
	s.dispatcher = d
	s.backend = backend
	return s
}

// WithJournal records analyses and dispatches made through the server.
func (s *Server) WithJournal(j store.Journal) *Server {
	s.journal = j
	return s
}

// WithLogger sets the server's logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("triage", s.version, server.WithToolCapabilities(true))

	for _, b := range s.registry.Bindings() {
		if !b.AutoApprove {
			continue
		}
		srv.AddTool(s.capabilityTool(b))
	}
	if s.analyzer != nil {
		srv.AddTool(s.analyzeTool())
		if s.dispatcher != nil {
			srv.AddTool(s.fileIssueTool())
		}
	}
	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// capabilityTool serves a registry binding under its own name and schema.
func (s *Server) capabilityTool(b capability.Binding) (mcp.Tool, server.ToolHandlerFunc) {
	schema, err := json.Marshal(b.InputSchema())
	if err != nil {
		schema = []byte(`{"type":"object"}`)
	}
	tool := mcp.NewToolWithRawSchema(b.Name(), b.Description(), schema)

	name := b.Name()
	return tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		out, err := s.registry.Call(ctx, name, json.RawMessage(args))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toolResult(out), nil
	}
}

// toolResult returns JSON strings unquoted so a plain "4 hours" estimate
// reads naturally.
func toolResult(out json.RawMessage) *mcp.CallToolResult {
	var s string
	if err := json.Unmarshal(out, &s); err == nil {
		return mcp.NewToolResultText(s)
	}
	return mcp.NewToolResultText(string(out))
}

// analyze_issue
func (s *Server) analyzeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool(AnalyzeToolName,
		mcp.WithDescription("Classify an issue report (stack trace, bug report or feature request) by complexity and attach a time estimate. Returns JSON with title, description, reason, complexity and time_estimate."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The raw issue report")),
		mcp.WithString("project_id", mcp.Description("Optional project identifier recorded with the analysis")),
	)
	return tool, s.handleAnalyze
}

func (s *Server) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil || strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	a, _, err := s.analyze(ctx, request.GetString("project_id", ""), text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, err := json.Marshal(a)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal analysis: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// file_issue
func (s *Server) fileIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool(FileToolName,
		mcp.WithDescription("Analyze an issue report and create a tracker issue from the analysis. Not idempotent: each call creates a new issue. Returns JSON with the analysis and the outcome."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The raw issue report")),
		mcp.WithArray("labels", mcp.WithStringItems(), mcp.Description("Extra labels to apply")),
	)
	return tool, s.handleFileIssue
}

func (s *Server) handleFileIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil || strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	a, analysisID, err := s.analyze(ctx, "", text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := action.BuildRequest(a, text, request.GetStringSlice("labels", nil)...)
	out := s.dispatcher.Dispatch(ctx, req, s.backend)
	s.recordDispatch(ctx, store.NewDispatchRecord(analysisID, s.backend, req, out))

	data, err := json.Marshal(map[string]any{
		"analysis": a,
		"outcome":  out,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	if !out.OK() {
		return mcp.NewToolResultError(string(data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Journal helpers
// ---------------------------------------------------------------------------

func (s *Server) analyze(ctx context.Context, projectID, text string) (models.IssueAnalysis, string, error) {
	a, err := s.analyzer.Analyze(ctx, text)
	if s.journal == nil {
		return a, "", err
	}
	rec := store.NewAnalysisRecord(models.SourceMCP, projectID, text, a, err)
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
