package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/meetassist/internal/config"
	"github.com/teemow/meetassist/internal/logging"
)

// rootCmd represents the base command for the meetassist application
var rootCmd = &cobra.Command{
	Use:   "meetassist",
	Short: "Finds meeting slots and reconciles optimizer plans into calendars",
	Long: `meetassist computes the candidate slots of scheduling windows, expands
recurring meeting requests, and applies the optimizer's planning results to
the calendar store.

It can run as:
  - A queue worker with the planner callback endpoint (worker)
  - An MCP (Model Context Protocol) server for AI assistants (serve)
  - One-shot CLI tools (slots, expand, plan, deadletters)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

var (
	configPath string
	logFormat  string
	debugMode  bool
)

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "meetassist version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file. Can also use MEETASSIST_CONFIG env var.")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (default: text)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newSlotsCmd())
	rootCmd.AddCommand(newExpandCmd())
	rootCmd.AddCommand(newDeadLettersCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig reads the configuration file and environment, applies the
// global flags and validates the result.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("MEETASSIST_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if debugMode {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger builds the process logger on stderr and installs it as the
// slog default. Stdout stays free for command output and the stdio transport.
func newLogger(cfg config.Config) *slog.Logger {
	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.Debug)
	slog.SetDefault(logger)
	return logger
}
