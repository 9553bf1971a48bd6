/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/mirrorengine/pkg/config"
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the mirror engine configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with the secret redacted",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
	show.Flags().String("format", config.FormatYAML, "Output format (yaml|json|toml)")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit non-zero on errors",
		Args:  cobra.NoArgs,
		RunE:  runConfigValidate,
	}

	cmd.AddCommand(show, validate)
	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")

	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(config.Options{File: file})
	if cfg == nil {
		return err
	}
	if err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}

	data, err := config.Render(*cfg, format)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "invalid")
		}
		return err
	}

	source := cfg.Source
	if source == "" {
		source = "environment"
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "valid (%s)\n", source)
	return nil
}
