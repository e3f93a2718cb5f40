package main

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the scope as a Mermaid diagram",
		Long:  `Outputs a Mermaid diagram (graph TD) of the scope; --select highlights nodes.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, _ := cmd.Flags().GetStringSlice("select")
			var overlay *graph.GraphOverlay
			if len(selected) > 0 {
				overlay = &graph.GraphOverlay{}
				for _, raw := range selected {
					id, err := parseID(raw)
					if err != nil {
						return err
					}
					overlay.Selected = append(overlay.Selected, id)
				}
			}
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				nodes, err := rt.Tree.Nodes(ctx, scopeFlag(cmd))
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(nodes, overlay))
				return nil
			})
		},
	}
	cmd.Flags().StringSlice("select", nil, "Node ids to highlight")
	return cmd
}
