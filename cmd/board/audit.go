package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/boardcore/internal/audit"
)

func newAuditCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check stored boards for broken ordering or dependency invariants",
		Long: `Verifies that list and card positions are contiguous, that the
dependency graph is acyclic and that no edge references a missing card.
Nothing is repaired. Exits non-zero when a violation is found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runAudit(cmd *cobra.Command, configPath string) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	r, err := audit.Run(cmd.Context(), e.db, e.logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checked %d boards, %d lists, %d cards, %d dependencies\n", r.Boards, r.Lists, r.Cards, r.Edges)
	if r.OK() {
		fmt.Fprintln(out, "No violations found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tSCOPE\tDETAIL")
	for _, v := range r.Violations {
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.Kind, v.Scope, v.Detail)
	}
	w.Flush()
	return fmt.Errorf("%d %s found", len(r.Violations), plural(len(r.Violations), "violation"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
