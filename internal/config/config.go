// Package config holds the typed runtime configuration read from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Inference backends.
const (
	InferenceAnthropic = "anthropic"
	InferenceHeuristic = "heuristic"
)

// Action backends, matching action.BackendDirect and action.BackendGateway.
const (
	ActionDirect  = "direct"
	ActionGateway = "gateway"
)

// Defaults.
const (
	DefaultModel       = "claude-haiku-4-5-20251001"
	DefaultGitHubAPI   = "https://api.github.com/"
	DefaultGatewayURL  = "https://api.githubcopilot.com/mcp/"
	DefaultGatewayTool = "create_issue"
	DefaultPort        = 8000
)

// Config is the effective configuration.
type Config struct {
	Anthropic struct {
		APIKey  string
		Model   string
		BaseURL string
	}
	InferenceBackend string
	GitHub           struct {
		Repo   string
		Token  string
		APIURL string
	}
	ActionBackend string
	Gateway       struct {
		URL         string
		Tool        string
		AutoApprove bool
	}
	Server struct {
		Port      int
		RateLimit float64
	}
	DBPath  string
	LogFile string
}

// Dir returns ~/.config/triage.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "triage"), nil
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	dir, _ := Dir()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", DefaultModel)
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("inference.backend", InferenceAnthropic)
	v.SetDefault("github.repo", "")
	v.SetDefault("github.token", "")
	v.SetDefault("github.api_url", DefaultGitHubAPI)
	v.SetDefault("action.backend", ActionDirect)
	v.SetDefault("gateway.url", DefaultGatewayURL)
	v.SetDefault("gateway.tool", DefaultGatewayTool)
	v.SetDefault("gateway.auto_approve", false)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("db_path", filepath.Join(dir, "triage.db"))
	v.SetDefault("log.file", "")
}

// Load reads the typed configuration from v. Well-known environment
// variables fill in credentials left unset.
func Load(v *viper.Viper) *Config {
	c := &Config{}
	c.Anthropic.APIKey = firstNonEmpty(v.GetString("anthropic.api_key"), os.Getenv("ANTHROPIC_API_KEY"))
	c.Anthropic.Model = v.GetString("anthropic.model")
	c.Anthropic.BaseURL = v.GetString("anthropic.base_url")
	c.InferenceBackend = strings.ToLower(strings.TrimSpace(v.GetString("inference.backend")))

	c.GitHub.Repo = strings.TrimSpace(v.GetString("github.repo"))
	c.GitHub.Token = firstNonEmpty(v.GetString("github.token"), os.Getenv("GITHUB_TOKEN"))
	c.GitHub.APIURL = v.GetString("github.api_url")
	c.ActionBackend = strings.ToLower(strings.TrimSpace(v.GetString("action.backend")))

	c.Gateway.URL = v.GetString("gateway.url")
	c.Gateway.Tool = v.GetString("gateway.tool")
	c.Gateway.AutoApprove = v.GetBool("gateway.auto_approve")

	c.Server.Port = v.GetInt("server.port")
	c.Server.RateLimit = v.GetFloat64("server.rate_limit")
	c.DBPath = v.GetString("db_path")
	c.LogFile = v.GetString("log.file")
	return c
}

// Validate checks that everything the analysis path needs is present and,
// when needAction is set, everything issue creation needs too. All problems
// are reported at once.
func (c *Config) Validate(needAction bool) error {
	e := &ConfigurationError{}

	switch c.InferenceBackend {
	case InferenceAnthropic:
		if c.Anthropic.APIKey == "" {
			e.Missing = append(e.Missing, "anthropic.api_key")
		}
		if c.Anthropic.Model == "" {
			e.Missing = append(e.Missing, "anthropic.model")
		}
	case InferenceHeuristic:
	default:
		e.Invalid = append(e.Invalid, fmt.Sprintf("inference.backend=%q (want %s or %s)", c.InferenceBackend, InferenceAnthropic, InferenceHeuristic))
	}

	if needAction {
		if c.GitHub.Repo == "" {
			e.Missing = append(e.Missing, "github.repo")
		} else if parts := strings.Split(strings.Trim(c.GitHub.Repo, "/"), "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			e.Invalid = append(e.Invalid, fmt.Sprintf("github.repo=%q (want owner/name)", c.GitHub.Repo))
		}
		if c.GitHub.Token == "" {
			e.Missing = append(e.Missing, "github.token")
		}
		switch c.ActionBackend {
		case ActionDirect:
		case ActionGateway:
			if c.Gateway.URL == "" {
				e.Missing = append(e.Missing, "gateway.url")
			}
			if c.Gateway.Tool == "" {
				e.Missing = append(e.Missing, "gateway.tool")
			}
		default:
			e.Invalid = append(e.Invalid, fmt.Sprintf("action.backend=%q (want %s or %s)", c.ActionBackend, ActionDirect, ActionGateway))
		}
	}

	if c.Server.RateLimit < 0 {
		e.Invalid = append(e.Invalid, "server.rate_limit must be >= 0")
	}

	if len(e.Missing) == 0 && len(e.Invalid) == 0 {
		return nil
	}
	return e
}

// ActionConfigured reports whether issue creation has what it needs.
func (c *Config) ActionConfigured() bool {
	probe := *c
	probe.InferenceBackend = InferenceHeuristic
	return probe.Validate(true) == nil
}

// ConfigurationError reports missing or invalid settings. It is raised at
// startup, before any request is served.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
