package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/triage/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio so agents can
call triage as tools. Configure a client with:

  {
    "mcpServers": {
      "triage": { "command": "triage", "args": ["mcp"] }
    }
  }

Available tools: calculate_time_based_on_complexity, and when inference is
configured, analyze_issue. file_issue is added when github.repo and
github.token are set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return mcpRun(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(parent context.Context) error {
	cfg := loadConfig()
	// stdout carries the protocol; logs go to stderr or log.file.
	logger := newLogger(cfg, true)

	ctx, stop := signal.NotifyContext(parent, shutdownSignals()...)
	defer stop()

	reg := newEstimationRegistry()
	var analyzer mcp.Analyzer
	if coord, _, err := newCoordinator(cfg, logger); err == nil {
		analyzer = coord
	} else {
		logger.Warn("analyze_issue disabled", "error", err)
	}

	srv := mcp.NewServer(reg, analyzer, buildVersion).
		WithLogger(logger).
		WithJournal(getJournal())

	if analyzer != nil && cfg.ActionConfigured() {
		dispatcher, closeFn, err := newDispatcher(ctx, cfg, cfg.ActionBackend, nil, logger)
		if err != nil {
			return err
		}
		defer closeFn()
		srv.WithDispatcher(dispatcher, cfg.ActionBackend)
	}

	return srv.ServeStdio(ctx)
}
