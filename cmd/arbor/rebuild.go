package main

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Renumber the scope from parent pointers",
		Long: `Recomputes every boundary of the scope from parent pointers alone. Siblings
keep their current order unless tree.rebuild_order is "id".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				scope := scopeFlag(cmd)
				n, err := rt.Tree.Rebuild(ctx, scope)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "renumbered %d nodes in scope %s\n", n, scope)
				return nil
			})
		},
	}
}
