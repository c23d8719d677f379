// =============================================================================
// SEPA Direct Debit Generator - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (lastschrift)
//   ├── generateCmd (lastschrift generate)
//   ├── validateCmd (lastschrift validate)
//   ├── serveCmd    (lastschrift serve)
//   └── versionCmd  (lastschrift version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --env-file, --verbose)
//   2. Loading .env files before any command runs
//   3. Building the logger
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clubsepa/lastschrift/internal/config"
	"github.com/clubsepa/lastschrift/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// envFile is loaded into the environment before the configuration.
var envFile string

// verbose enables debug logging.
var verbose bool

// errProblemsFound makes the process exit with status 1 without printing
// the error again; the command has already reported the problems.
var errProblemsFound = errors.New("problems found")

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "lastschrift",
	Short: "Generate SEPA direct debit files (pain.008) from club member exports",
	Long: `lastschrift turns a member export from the club administration
(CSV or Excel) into one SEPA direct debit collection file (pain.008.001.02)
for upload to the club's bank.

Key Features:
  - Delimited text in any common encoding and delimiter, or xlsx workbooks
  - Configurable column mapping, per-club profiles
  - IBAN, BIC and Creditor Identifier checks
  - Per-member validation report before anything is written
  - HTTP API for the same pipeline

Example Usage:
  lastschrift validate --file mitglieder.csv   # Check an export
  lastschrift generate --file mitglieder.csv   # Write the XML file
  lastschrift generate                         # Process the input directory
  lastschrift serve                            # Start the HTTP API`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile == "" {
			return config.LoadDotEnv()
		}
		return config.LoadDotEnv(envFile)
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main().
// SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errProblemsFound) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		"",
		"Path to a .env file (default is .env in the current directory, if present)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadConfig loads the main configuration. Without an explicit --config and
// without config.yaml in the working directory, the defaults plus SEPA_*
// environment overrides are used.
func loadConfig(cmd *cobra.Command) (*config.MainConfig, error) {
	explicit := cmd.Flags().Changed("config")
	if _, err := os.Stat(cfgFile); err == nil || explicit {
		cfg, err := config.LoadMainConfig(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load main config: %w", err)
		}
		return cfg, nil
	}

	cfg := config.Default()
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the console logger for the CLI.
func newLogger(cfg *config.MainConfig, format logging.Format) (*logging.ZapLogger, error) {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Config{Level: level, Format: format})
}
