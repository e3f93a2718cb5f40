package main

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

func newRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a node",
		Long: `Removes a node. With --policy cascade its whole subtree goes too; with
--policy detach its children are lifted to its parent. The default comes from
tree.dependent in the config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			policy, _ := cmd.Flags().GetString("policy")
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				if err := rt.Tree.Remove(ctx, id, domain.Policy(policy)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", id)
				return nil
			})
		},
	}
	cmd.Flags().String("policy", "", "Removal policy: cascade or detach")
	return cmd
}
