package domain

import (
	"fmt"
	"strings"
)

// Invariant names a structural rule checked by the validator.
type Invariant string

const (
	InvariantBoundariesPresent Invariant = "boundaries_present"
	InvariantOrdered           Invariant = "ordered"
	InvariantNesting           Invariant = "nesting"
	InvariantUniqueness        Invariant = "uniqueness"
	InvariantRootOrdering      Invariant = "root_ordering"
)

// Violation is a single failed check.
type Violation struct {
	Invariant Invariant `json:"invariant"`
	NodeID    ID        `json:"node_id"`
	Detail    string    `json:"detail"`
}

// Report is the outcome of validating one scope.
type Report struct {
	Scope      Scope       `json:"scope"`
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Invariants lists the distinct violated invariants in first-seen order.
func (r *Report) Invariants() []Invariant {
	seen := make(map[Invariant]bool)
	var out []Invariant
	for _, v := range r.Violations {
		if !seen[v.Invariant] {
			seen[v.Invariant] = true
			out = append(out, v.Invariant)
		}
	}
	return out
}

// Has reports whether the given invariant was violated.
func (r *Report) Has(inv Invariant) bool {
	for _, v := range r.Violations {
		if v.Invariant == inv {
			return true
		}
	}
	return false
}

// Err returns nil for a valid report, otherwise ErrInconsistentTree naming the failed invariants.
func (r *Report) Err() error {
	if r.Valid {
		return nil
	}
	names := make([]string, 0, len(r.Violations))
	for _, inv := range r.Invariants() {
		names = append(names, string(inv))
	}
	return fmt.Errorf("%w: scope %s violates %s", ErrInconsistentTree, r.Scope, strings.Join(names, ", "))
}
