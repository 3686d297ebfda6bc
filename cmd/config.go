package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/triage/internal/config"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = config.Dir

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage triage configuration.

Running bare 'triage config' is the same as 'triage config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# triage configuration
# See: triage config show (for effective values and sources)
# Every key can be set through the environment as TRIAGE_<KEY>, with dots
# replaced by underscores (e.g. TRIAGE_GITHUB_REPO).

# SQLite history database (default: ~/.config/triage/triage.db)
# db_path: {{ .DBPath }}

anthropic:
  # API key (falls back to $ANTHROPIC_API_KEY)
  api_key: ""
  model: "{{ .Model }}"
  # Project endpoint; empty uses the public API
  base_url: "{{ .BaseURL }}"

inference:
  # anthropic: classify with the model; heuristic: offline signature analysis
  backend: "{{ .InferenceBackend }}"

github:
  # Target repository for created issues (owner/name)
  repo: "{{ .Repo }}"
  # Token (falls back to $GITHUB_TOKEN); also sent to the gateway
  token: ""
  api_url: "{{ .APIURL }}"

action:
  # direct: GitHub REST API; gateway: MCP gateway tool
  backend: "{{ .ActionBackend }}"

gateway:
  url: "{{ .GatewayURL }}"
  tool: "{{ .GatewayTool }}"
  # Run gateway tool calls without confirmation. Required for serve/mcp.
  auto_approve: {{ .AutoApprove }}

server:
  port: {{ .Port }}
  # Requests per second on analysis routes, 0 disables limiting
  rate_limit: {{ .RateLimit }}

log:
  # Rotating log file for serve/mcp; empty logs to stderr
  file: "{{ .LogFile }}"
`

type configTemplateData struct {
	DBPath           string
	Model            string
	BaseURL          string
	InferenceBackend string
	Repo             string
	APIURL           string
	ActionBackend    string
	GatewayURL       string
	GatewayTool      string
	AutoApprove      bool
	Port             int
	RateLimit        float64
	LogFile          string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	cfg := loadConfig()
	data := configTemplateData{
		DBPath:           cfg.DBPath,
		Model:            cfg.Anthropic.Model,
		BaseURL:          cfg.Anthropic.BaseURL,
		InferenceBackend: cfg.InferenceBackend,
		Repo:             cfg.GitHub.Repo,
		APIURL:           cfg.GitHub.APIURL,
		ActionBackend:    cfg.ActionBackend,
		GatewayURL:       cfg.Gateway.URL,
		GatewayTool:      cfg.Gateway.Tool,
		AutoApprove:      cfg.Gateway.AutoApprove,
		Port:             cfg.Server.Port,
		RateLimit:        cfg.Server.RateLimit,
		LogFile:          cfg.LogFile,
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "anthropic.api_key", EnvVar: "TRIAGE_ANTHROPIC_API_KEY", Secret: true},
	{Key: "anthropic.model", EnvVar: "TRIAGE_ANTHROPIC_MODEL"},
	{Key: "anthropic.base_url", EnvVar: "TRIAGE_ANTHROPIC_BASE_URL"},
	{Key: "inference.backend", EnvVar: "TRIAGE_INFERENCE_BACKEND"},
	{Key: "github.repo", EnvVar: "TRIAGE_GITHUB_REPO"},
	{Key: "github.token", EnvVar: "TRIAGE_GITHUB_TOKEN", Secret: true},
	{Key: "github.api_url", EnvVar: "TRIAGE_GITHUB_API_URL"},
	{Key: "action.backend", EnvVar: "TRIAGE_ACTION_BACKEND"},
	{Key: "gateway.url", EnvVar: "TRIAGE_GATEWAY_URL"},
	{Key: "gateway.tool", EnvVar: "TRIAGE_GATEWAY_TOOL"},
	{Key: "gateway.auto_approve", EnvVar: "TRIAGE_GATEWAY_AUTO_APPROVE"},
	{Key: "server.port", EnvVar: "TRIAGE_SERVER_PORT"},
	{Key: "server.rate_limit", EnvVar: "TRIAGE_SERVER_RATE_LIMIT"},
	{Key: "db_path", EnvVar: "TRIAGE_DB_PATH"},
	{Key: "log.file", EnvVar: "TRIAGE_LOG_FILE"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Secret {
			val = maskSecret(fmt.Sprint(val))
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}
	fmt.Fprintln(ui.Out)

	cfg := loadConfig()
	if err := cfg.Validate(false); err != nil {
		ui.Warning("Analysis: %v", err)
	} else {
		ui.Success("Analysis configured (%s)", cfg.InferenceBackend)
	}
	if cfg.ActionConfigured() {
		ui.Success("Issue creation configured (%s -> %s)", cfg.ActionBackend, cfg.GitHub.Repo)
	} else {
		ui.Info("Issue creation not configured (needs github.repo and github.token)")
	}
	return nil
}

// maskSecret keeps the last four characters of a credential.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'triage config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
