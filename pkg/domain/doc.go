/*
Package domain contains the core domain model of the arbor nested set engine.

A forest is encoded by giving every node two integer boundaries, left and right,
such that a node's interval strictly contains the intervals of all of its
descendants. Ancestry, descent and sibling order then reduce to interval
comparisons. This package is kept pure and free of I/O, following Hexagonal
Architecture principles; persistence lives behind the ports package.

# Key Entities

  - Node: a record with an id, an optional parent, a boundary pair and a scope.
  - Scope: the tuple of attribute values partitioning the forest into independent trees.
  - Filter: a store-neutral description of an interval / parent-pointer query.
  - Remap: the four-point boundary permutation applied by a move.
  - Report: the result of validating a scope.
*/
package domain
