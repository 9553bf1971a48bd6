/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fulmenhq/mirrorengine/pkg/ascii"
	"github.com/fulmenhq/mirrorengine/pkg/exitcode"
	"github.com/fulmenhq/mirrorengine/pkg/manifest"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const maxLinkWidth = 72

func newManifestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Resolve and print the manifest",
		Long: `Manifest fetches the configured base manifest, include manifest, name overrides
and link blacklist, resolves them exactly as run does, and prints the result.
Any manifest problem is reported with a non-zero exit code.`,
		Args: cobra.NoArgs,
		RunE: runManifest,
	}
	cmd.Flags().String("format", "table", "Output format (table|json|yaml)")
	return cmd
}

// manifestRow is the printable form of an entry.
type manifestRow struct {
	Name   string `json:"name" yaml:"name"`
	Kind   string `json:"kind" yaml:"kind"`
	Link   string `json:"link" yaml:"link"`
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`
}

func runManifest(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "table", "json", "yaml":
	default:
		return &exitError{code: exitcode.GeneralError, err: fmt.Errorf("unsupported format %q (want table, json or yaml)", format)}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	c := buildComponents(cfg, newDoer())
	entries, err := c.loader.Load(cmd.Context())
	if err != nil {
		return err
	}

	rows := manifestRows(entries)
	out := cmd.OutOrStdout()

	switch format {
	case "json":
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, string(data))
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	default:
		base, sub := 0, 0
		for _, r := range rows {
			if r.Kind == "subfilter" {
				sub++
			} else {
				base++
			}
		}
		ascii.DrawBox(out, []string{
			fmt.Sprintf("Repository: %s/%s (%s)", cfg.User, cfg.Repo, cfg.Branch),
			fmt.Sprintf("Entries:    %d (%d base, %d subfilter)", len(rows), base, sub),
		})

		table := make([][]string, len(rows))
		for i, r := range rows {
			table[i] = []string{r.Name, r.Kind, r.Parent, r.Link}
		}
		lines := ascii.Table([]string{"NAME", "KIND", "PARENT", "LINK"}, table, maxLinkWidth)
		_, _ = fmt.Fprintln(out, strings.Join(lines, "\n"))
	}
	return nil
}

func manifestRows(entries []manifest.Entry) []manifestRow {
	rows := make([]manifestRow, 0, len(entries))
	for _, e := range entries {
		row := manifestRow{Name: e.EntryName(), Kind: "base", Link: e.EntryLink()}
		if s, ok := e.(manifest.SubfilterEntry); ok {
			row.Kind = "subfilter"
			row.Parent = s.Parent
		}
		rows = append(rows, row)
	}
	return rows
}
