/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"fmt"

	"github.com/fulmenhq/mirrorengine/pkg/exitcode"
	"github.com/fulmenhq/mirrorengine/pkg/filter"
	"github.com/fulmenhq/mirrorengine/pkg/safeio"
	"github.com/spf13/cobra"
)

func newCompareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Compare two local filters ignoring comments",
		Long: `Compare reports whether two filter files are equivalent the way the publisher
sees them: comment lines are ignored except Title and Expires headers and
"!#" directives. Exits 0 when equivalent and 1 when different.`,
		Args: cobra.ExactArgs(2),
		RunE: runCompare,
	}
}

func runCompare(cmd *cobra.Command, args []string) error {
	a, err := safeio.ReadUserFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	b, err := safeio.ReadUserFile(args[1])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[1], err)
	}

	out := cmd.OutOrStdout()
	if filter.AreEqual(string(a), string(b)) {
		_, _ = fmt.Fprintln(out, "equivalent")
		return nil
	}
	_, _ = fmt.Fprintln(out, "different")
	return &exitError{code: exitcode.Different}
}
