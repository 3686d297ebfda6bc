package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/joescharf/triage/internal/api"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis service",
	Long: `Start an HTTP server exposing the analysis pipeline.

Routes:
  GET  /                      service status
  POST /check-dependencies    {project_id, description} -> analysis
  POST /api/v1/analyze        {text, project_id?} -> analysis
  POST /api/v1/issues         {text, labels?, backend?} -> analysis + outcome
  GET  /api/v1/history        journaled analyses and dispatches

Missing configuration stops the server before it listens. Issue creation
is enabled only when github.repo and github.token are set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return serveRun(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8000, "port to listen on")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serveRun(parent context.Context) error {
	cfg := loadConfig()
	logger := newLogger(cfg, true)

	coord, _, err := newCoordinator(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, shutdownSignals()...)
	defer stop()

	srv := api.NewServer(coord, getJournal(), buildVersion).
		WithLogger(logger).
		WithRateLimit(cfg.Server.RateLimit)

	if cfg.ActionConfigured() {
		// Gateway tool calls must be auto-approved to run unattended; without
		// it they fail with an approval error.
		dispatcher, closeFn, err := newDispatcher(ctx, cfg, cfg.ActionBackend, nil, logger)
		if err != nil {
			return err
		}
		defer closeFn()
		srv.WithDispatcher(dispatcher, cfg.ActionBackend)
		logger.Info("issue creation enabled", "backend", cfg.ActionBackend, "repo", cfg.GitHub.Repo)
	} else {
		logger.Info("issue creation disabled: github.repo or github.token not set")
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", httpSrv.Addr, "version", buildVersion)
		ui.Info("Serving at http://localhost%s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
