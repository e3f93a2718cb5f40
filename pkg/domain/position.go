package domain

import "fmt"

// Position names where a move places the mover relative to its target.
type Position string

const (
	// PositionChild makes the mover the last child of the target.
	PositionChild Position = "child"
	// PositionLeft makes the mover the sibling immediately left of the target.
	PositionLeft Position = "left"
	// PositionRight makes the mover the sibling immediately right of the target.
	PositionRight Position = "right"
	// PositionRoot makes the mover the first root of its scope. It takes no target.
	PositionRoot Position = "root"
)

// ParsePosition validates a position name.
func ParsePosition(s string) (Position, error) {
	switch p := Position(s); p {
	case PositionChild, PositionLeft, PositionRight, PositionRoot:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPosition, s)
}

// Policy decides what happens to the descendants of a removed node.
type Policy string

const (
	// PolicyCascade removes the whole subtree.
	PolicyCascade Policy = "cascade"
	// PolicyDetach removes only the node and hands its children to its parent.
	PolicyDetach Policy = "detach"
)

// ParsePolicy validates a policy name. An empty name selects PolicyCascade.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return PolicyCascade, nil
	case PolicyCascade, PolicyDetach:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPolicy, s)
}

// RebuildOrder decides how siblings are ordered when renumbering from parent pointers.
type RebuildOrder string

const (
	// RebuildByPosition keeps the current left order and falls back to id.
	RebuildByPosition RebuildOrder = "position"
	// RebuildByID orders siblings by ascending id only.
	RebuildByID RebuildOrder = "id"
)

// ParseRebuildOrder validates an order name. An empty name selects RebuildByPosition.
func ParseRebuildOrder(s string) (RebuildOrder, error) {
	switch o := RebuildOrder(s); o {
	case "":
		return RebuildByPosition, nil
	case RebuildByPosition, RebuildByID:
		return o, nil
	}
	return "", fmt.Errorf("unsupported rebuild order %q", s)
}
