/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fulmenhq/mirrorengine/internal/engine"
	"github.com/fulmenhq/mirrorengine/pkg/config"
	"github.com/fulmenhq/mirrorengine/pkg/crash"
	"github.com/fulmenhq/mirrorengine/pkg/logger"
	"github.com/fulmenhq/mirrorengine/pkg/safeio"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newState is replaced in tests to stop the loop from inside a cycle.
var newState = engine.NewState

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the mirror loop",
		Long: `Run resolves the manifest and then publishes one entry per cycle until it
receives SIGHUP, SIGTERM or SIGINT. The current cycle always completes before exit.`,
		Args: cobra.NoArgs,
		RunE: runMirror,
	}
	config.AddFlags(cmd.Flags())
	return cmd
}

func runMirror(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger.AddFields(logger.String("run", runID))

	logDir, err := cfg.GetLogDir()
	if err != nil {
		return err
	}
	logPath := filepath.Join(logDir, fmt.Sprintf("%d-%s.log", time.Now().UnixMilli(), runID))
	logFile, err := safeio.OpenAppend(logPath)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	logger.Tee(logFile)
	logger.Info("Logging to '" + logPath + "'")

	recorder := crash.NewRecorder(logDir, runID, os.Args)
	defer recorder.Guard()

	if logger.Enabled(logger.DebugLevel) {
		if dump, err := config.Render(*cfg, config.FormatYAML); err == nil {
			logger.Debug("Configuration data:\n" + string(dump))
		}
	}

	state := newState()
	detach := engine.HandleSignals(state)
	defer detach()

	c := buildComponents(cfg, newDoer())
	orch, err := engine.New(engineConfig(cfg), state, c.anon, c.publisher, c.loader)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	return orch.Run(cmd.Context())
}
