/*
Package arbor maintains ordered forests as nested sets (preorder intervals).

Every node carries a pair of integer boundaries, left and right, assigned by a
depth-first walk: a node's interval contains the intervals of all its
descendants. Ancestors, descendants, siblings and leaves then reduce to
interval comparisons against a row store instead of recursive lookups.

# Architecture

The engine lives in pkg/tree and talks to storage only through the ports in
pkg/ports. Adapters implement those ports:

  - pkg/adapters/memory: copy-on-write maps, the reference store.
  - pkg/adapters/sqlite and pkg/adapters/postgres: one table, shared SQL in internal/sqlstore.
  - pkg/adapters/badger: an embedded key-value store.
  - pkg/adapters/redis: a distributed lock so several processes can share a store.
  - pkg/adapters/http: a JSON API over one tree, validated against api/openapi.yaml.
  - pkg/adapters/mcp: Model Context Protocol tools for AI agents.

Forests are partitioned by scope: nodes whose scope attributes differ never
interact, and writers of different scopes never wait for each other.

# Usage

	store := memory.NewStore()
	tr, err := tree.New(store, tree.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	root, _ := tr.Insert(ctx, domain.NewNode("Catalog", domain.Scope{}))
	shoes, _ := tr.InsertChild(ctx, domain.NewNode("Shoes", domain.Scope{}), root.ID)
	boots, _ := tr.InsertChild(ctx, domain.NewNode("Boots", domain.Scope{}), shoes.ID)

	ancestors, _ := tr.Ancestors(ctx, boots) // Catalog, Shoes

The arbor command (cmd/arbor) drives the same engine from the shell and can
serve it over HTTP or MCP.
*/
package arbor
