package main

import (
	"context"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Insert a node",
		Long:  `Inserts a node as the last root of the scope, or as the last child of --parent.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawParent, _ := cmd.Flags().GetString("parent")
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				var (
					n   *domain.Node
					err error
				)
				if rawParent == "" {
					n, err = rt.Tree.Insert(ctx, domain.NewNode(args[0], scopeFlag(cmd)))
				} else {
					parentID, perr := parseID(rawParent)
					if perr != nil {
						return perr
					}
					// A child always lives in its parent's scope.
					parent, perr := rt.Tree.Get(ctx, parentID)
					if perr != nil {
						return perr
					}
					n, err = rt.Tree.InsertChild(ctx, domain.NewNode(args[0], parent.Scope), parentID)
				}
				if err != nil {
					return err
				}
				return printNode(cmd, n)
			})
		},
	}
	cmd.Flags().StringP("parent", "p", "", "Id of the parent node")
	return cmd
}
