package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/triage/internal/config"
	"github.com/joescharf/triage/internal/output"
	"github.com/joescharf/triage/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui      *output.UI
	journal *store.SQLiteStore

	verbose bool
	dryRun  bool
	noStore bool
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Issue triage - classify reports, estimate effort, file issues",
	Long: `triage analyzes issue reports (stack traces, bug reports, feature
requests), classifies their complexity, attaches a time estimate from the
estimation tool and can file the result as a GitHub issue, either through
the REST API or through an MCP gateway.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\nRun 'triage config init' or set TRIAGE_* environment variables.\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)
	cobra.OnFinalize(closeJournal)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().BoolVar(&noStore, "no-history", false, "Do not record analyses in the local history database")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/triage/config.yaml)")
}

func initConfig() {
	// .env in the working directory is optional.
	_ = godotenv.Load()

	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := config.Dir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TRIAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The journal opens lazily so config/version/estimate run without a db.
}

// loadConfig returns the typed configuration from viper.
func loadConfig() *config.Config {
	return config.Load(viper.GetViper())
}

// getJournal returns the shared history store, or nil when history is
// disabled. Failing to open it is reported but never blocks analysis.
func getJournal() store.Journal {
	if noStore {
		return nil
	}
	if journal != nil {
		return journal
	}

	dbPath := viper.GetString("db_path")
	if dbPath == "" {
		return nil
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		ui.Warning("History disabled: %v", err)
		return nil
	}
	ctx := rootCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		ui.Warning("History disabled: migrate database: %v", err)
		return nil
	}

	journal = s
	return journal
}

func closeJournal() {
	if journal != nil {
		_ = journal.Close()
		journal = nil
	}
}
