/*
Package tree implements the nested set engine: queries, insertion, moves,
removal, validation and rebuilding.

Every node carries a boundary pair (left, right). A node's interval strictly
contains the intervals of its descendants, so ancestry and descent are interval
comparisons and a whole subtree is one range query.

# Mutations

Insert appends a node after the last boundary of its scope. Move relocates a
subtree with a single four-point remap of every boundary between the old and
the new position. Remove deletes a node (and, with PolicyCascade, its subtree)
and closes the gap. Rebuild renumbers a scope from parent pointers alone.

Each mutation holds the partition lock of its scope and runs as one store
transaction: either every boundary changes or none does.

# Usage

	store := memory.NewStore()
	t, err := tree.New(store, tree.DefaultConfig())
	if err != nil {
		return err
	}
	root, _ := t.Insert(ctx, domain.NewNode("root", domain.Scope{}))
	child, _ := t.InsertChild(ctx, domain.NewNode("child", domain.Scope{}), root.ID)
	report, _ := t.Validate(ctx, domain.Scope{})
*/
package tree
