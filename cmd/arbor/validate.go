package main

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the scope against the nested set invariants",
		Long: `Reports missing or unordered boundaries, broken nesting, duplicated
boundaries and misordered roots. It never repairs anything; see "arbor rebuild".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				report, err := rt.Tree.Validate(ctx, scopeFlag(cmd))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOutput(cmd) {
					if err := writeJSON(out, report); err != nil {
						return err
					}
				} else {
					for _, v := range report.Violations {
						fmt.Fprintf(out, "%s\tnode %d\t%s\n", v.Invariant, v.NodeID, v.Detail)
					}
					if report.Valid {
						fmt.Fprintf(out, "scope %s is valid\n", report.Scope)
					}
				}
				return report.Err()
			})
		},
	}
}
