package domain

// Remap swaps two adjacent boundary ranges [A,B] and [C,D] while keeping the
// internal order of each. Applied to every left and right in a scope, it moves
// a whole subtree in one pass.
type Remap struct {
	A, B, C, D int64
}

// Apply maps a single boundary value.
func (r Remap) Apply(v int64) int64 {
	switch {
	case v >= r.A && v <= r.B:
		return v + (r.D - r.B)
	case v >= r.C && v <= r.D:
		return v + (r.A - r.C)
	}
	return v
}

// Touches reports whether v is moved by the remap.
func (r Remap) Touches(v int64) bool {
	return v >= r.A && v <= r.D
}
