/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/mirrorengine/internal/engine"
	"github.com/fulmenhq/mirrorengine/pkg/buildinfo"
	"github.com/fulmenhq/mirrorengine/pkg/config"
	"github.com/fulmenhq/mirrorengine/pkg/exitcode"
	"github.com/fulmenhq/mirrorengine/pkg/logger"
	"github.com/fulmenhq/mirrorengine/pkg/manifest"
	"github.com/spf13/cobra"
)

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirrorengine",
		Short: "Mirror filter lists into a GitHub repository",
		Long: `Mirror engine keeps a GitHub repository in sync with a manifest of upstream filter lists.
Every cycle it publishes one entry, skipping entries named in the remote lockfile.

Examples:
   mirrorengine run                    # Start the mirror loop
   mirrorengine manifest               # Resolve and print the manifest
   mirrorengine compare a.txt b.txt    # Compare two filters ignoring comments
   mirrorengine config show            # Print the effective configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().String("config", "", "Configuration file (default: discovered in the home directory)")

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("mirrorengine {{.Version}}\n")

	return cmd
}

// registerSubcommands adds all subcommands to the root command.
// This is called from init() for production and can be called explicitly in tests.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newManifestCommand())
	cmd.AddCommand(newCompareCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newVersionCommand())
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

func init() {
	registerSubcommands(rootCmd)
}

// Execute runs the root command and exits with a code matching the failure.
// This is called by main.main().
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	code := exitCodeFor(err)
	var silent *exitError
	if !errors.As(err, &silent) || silent.err != nil {
		logger.Error("Command execution failed", logger.Err(err))
	}
	os.Exit(code)
}

// exitError carries an explicit exit code. A nil err exits quietly.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return exitcode.String(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	var ee *exitError
	switch {
	case err == nil:
		return exitcode.Success
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, config.ErrInvalidConfig):
		return exitcode.ConfigError
	case errors.Is(err, manifest.ErrUnavailable):
		return exitcode.NetworkError
	case errors.Is(err, manifest.ErrInvalidDocument),
		errors.Is(err, manifest.ErrDuplicateName),
		errors.Is(err, manifest.ErrInvalidOverride),
		errors.Is(err, manifest.ErrInconsistent),
		errors.Is(err, manifest.ErrUnsafeName),
		errors.Is(err, manifest.ErrEmpty),
		errors.Is(err, engine.ErrNoEntries):
		return exitcode.ManifestError
	default:
		return exitcode.GeneralError
	}
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	cfg := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "mirrorengine",
	}

	if err := logger.Initialize(cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(exitcode.ConfigError)
	}
}

// loadConfig reads the configuration named by --config or discovered in the
// home directory, letting flags registered by config.AddFlags override it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(config.Options{File: file, Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	if cfg.Source != "" {
		logger.Debug("Configuration loaded", logger.String("file", cfg.Source))
	}
	return cfg, nil
}
