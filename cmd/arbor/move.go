package main

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

func newMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <child|left|right|root> [target]",
		Short: "Move a node and its subtree",
		Long: `Moves a subtree relative to a target node:

  child  last child of target
  left   sibling immediately left of target
  right  sibling immediately right of target
  root   first root of the scope (no target)

"left" and "right" without a target swap the node with its adjacent sibling.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			pos, err := domain.ParsePosition(args[1])
			if err != nil {
				return err
			}
			target := domain.NoID
			if len(args) == 3 {
				if target, err = parseID(args[2]); err != nil {
					return err
				}
			}
			if target == domain.NoID && pos == domain.PositionChild {
				return fmt.Errorf("position %q needs a target", pos)
			}

			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				var moved *domain.Node
				switch {
				case target == domain.NoID && pos == domain.PositionLeft:
					moved, err = rt.Tree.MoveLeft(ctx, id)
				case target == domain.NoID && pos == domain.PositionRight:
					moved, err = rt.Tree.MoveRight(ctx, id)
				default:
					moved, _, err = rt.Tree.Move(ctx, id, target, pos)
				}
				if err != nil {
					return err
				}
				return printNode(cmd, moved)
			})
		},
	}
}
