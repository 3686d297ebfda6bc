package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/joescharf/triage/internal/action"
	"github.com/joescharf/triage/internal/analysis"
	"github.com/joescharf/triage/internal/capability"
	"github.com/joescharf/triage/internal/classify"
	"github.com/joescharf/triage/internal/config"
	"github.com/joescharf/triage/internal/estimate"
	"github.com/joescharf/triage/internal/gateway"
	"github.com/joescharf/triage/internal/llm"
)

// newLogger builds the operational logger. Long-running commands log JSON;
// with log.file set, output goes through a rotating file writer.
func newLogger(cfg *config.Config, jsonFormat bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	} else if jsonFormat {
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newEstimationRegistry binds the local estimation tool. It is a pure
// function, so it is auto-approved.
func newEstimationRegistry() *capability.Registry {
	reg := capability.NewRegistry()
	reg.MustRegister(estimate.Capability(), true)
	return reg
}

// newClassifier selects the classifier for inference.backend.
func newClassifier(cfg *config.Config) (analysis.Classifier, error) {
	switch cfg.InferenceBackend {
	case config.InferenceAnthropic:
		return classify.NewInference(llm.NewClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.BaseURL)), nil
	case config.InferenceHeuristic:
		return classify.NewHeuristic(), nil
	default:
		return nil, &config.ConfigurationError{Invalid: []string{"inference.backend=" + cfg.InferenceBackend}}
	}
}

// newCoordinator validates the analysis configuration and wires the
// Coordinator with its classifier and the estimation tool.
func newCoordinator(cfg *config.Config, logger *slog.Logger) (*analysis.Coordinator, *capability.Registry, error) {
	if err := cfg.Validate(false); err != nil {
		return nil, nil, err
	}
	classifier, err := newClassifier(cfg)
	if err != nil {
		return nil, nil, err
	}
	reg := newEstimationRegistry()
	return analysis.NewCoordinator(classifier, reg, analysis.WithLogger(logger)), reg, nil
}

// newDispatcher validates the action configuration and builds the selected
// backend. The returned close function releases a gateway session.
func newDispatcher(ctx context.Context, cfg *config.Config, backend string, approver capability.Approver, logger *slog.Logger) (*action.Dispatcher, func(), error) {
	probe := *cfg
	if backend != "" {
		probe.ActionBackend = backend
	}
	probe.InferenceBackend = config.InferenceHeuristic
	if err := probe.Validate(true); err != nil {
		return nil, nil, err
	}

	switch probe.ActionBackend {
	case config.ActionDirect:
		b, err := action.NewDirectBackend(cfg.GitHub.Token, cfg.GitHub.Repo, cfg.GitHub.APIURL, nil)
		if err != nil {
			return nil, nil, err
		}
		return action.NewDispatcher(b).WithLogger(logger), func() {}, nil

	case config.ActionGateway:
		headers := map[string]string{"Authorization": "Bearer " + cfg.GitHub.Token}
		sess, err := gateway.Dial(ctx, cfg.Gateway.URL, headers, buildVersion)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to gateway %s: %w", cfg.Gateway.URL, err)
		}
		tool, err := sess.Bind(ctx, cfg.Gateway.Tool)
		if err != nil {
			_ = sess.Close()
			return nil, nil, err
		}

		reg := capability.NewRegistry()
		if err := reg.Register(tool, cfg.Gateway.AutoApprove); err != nil {
			_ = sess.Close()
			return nil, nil, err
		}
		reg.SetApprover(approver)

		b, err := action.NewGatewayBackend(reg, cfg.Gateway.Tool, cfg.GitHub.Repo)
		if err != nil {
			_ = sess.Close()
			return nil, nil, err
		}
		logger.Debug("gateway bound", "url", cfg.Gateway.URL, "tool", cfg.Gateway.Tool, "auto_approve", cfg.Gateway.AutoApprove)
		return action.NewDispatcher(b).WithLogger(logger), func() { _ = sess.Close() }, nil
	}
	return nil, nil, &config.ConfigurationError{Invalid: []string{"action.backend=" + probe.ActionBackend}}
}

// promptApprover asks on the terminal before a gated capability runs.
func promptApprover(in io.Reader, out io.Writer) capability.Approver {
	reader := bufio.NewReader(in)
	return func(_ context.Context, name string, args json.RawMessage) (bool, error) {
		fmt.Fprintf(out, "Call %s with %s? [y/N] ", name, summarizeArgs(args))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return false, nil
			}
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

// autoApprover approves everything, for --yes.
func autoApprover(context.Context, string, json.RawMessage) (bool, error) { return true, nil }

func summarizeArgs(args json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(args, &m); err != nil {
		return string(args)
	}
	if title, ok := m["title"].(string); ok {
		return fmt.Sprintf("title %q", title)
	}
	return string(args)
}
