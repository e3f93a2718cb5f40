package main

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print the scope, or one subtree, in preorder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			relation, _ := cmd.Flags().GetString("relation")
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				var (
					nodes []*domain.Node
					err   error
				)
				if len(args) == 0 {
					if relation != "" {
						return fmt.Errorf("--relation needs a node id")
					}
					nodes, err = rt.Tree.Nodes(ctx, scopeFlag(cmd))
				} else {
					nodes, err = related(ctx, rt, args[0], relation)
				}
				if err != nil {
					return err
				}

				if jsonOutput(cmd) || relation != "" {
					return printNodes(cmd, nodes)
				}
				out := cmd.OutOrStdout()
				if s := tui.RenderTree(tui.NewOutput(out), nodes, nil); s != "" {
					fmt.Fprintln(out, s)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("relation", "", "List ancestors, descendants, children, siblings or leaves of the node instead")
	return cmd
}

func related(ctx context.Context, rt *cli.Runtime, rawID, relation string) ([]*domain.Node, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	n, err := rt.Tree.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch relation {
	case "":
		return rt.Tree.SelfAndDescendants(ctx, n)
	case "ancestors":
		return rt.Tree.Ancestors(ctx, n)
	case "descendants":
		return rt.Tree.Descendants(ctx, n)
	case "children":
		return rt.Tree.Children(ctx, n)
	case "siblings":
		return rt.Tree.Siblings(ctx, n)
	case "leaves":
		return rt.Tree.LeavesOf(ctx, n)
	}
	return nil, fmt.Errorf("unknown relation %q", relation)
}
