package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Scope is the ordered tuple of attribute values that partitions the forest.
// Nodes in different scopes never compare; the empty scope is the default partition.
type Scope struct {
	values []string
}

// NewScope builds a scope from attribute values, in configuration order.
func NewScope(values ...string) Scope {
	if len(values) == 0 {
		return Scope{}
	}
	v := make([]string, len(values))
	copy(v, values)
	return Scope{values: v}
}

// Values returns a copy of the attribute values.
func (s Scope) Values() []string {
	if len(s.values) == 0 {
		return nil
	}
	v := make([]string, len(s.values))
	copy(v, s.values)
	return v
}

// Len returns the number of attributes.
func (s Scope) Len() int { return len(s.values) }

// Equal reports whether both scopes hold the same values.
func (s Scope) Equal(other Scope) bool {
	if len(s.values) != len(other.values) {
		return false
	}
	for i := range s.values {
		if s.values[i] != other.values[i] {
			return false
		}
	}
	return true
}

// Key is a canonical, collision free string used for locking and indexing.
func (s Scope) Key() string {
	if len(s.values) == 0 {
		return ""
	}
	quoted := make([]string, len(s.values))
	for i, v := range s.values {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, "/")
}

func (s Scope) String() string {
	if len(s.values) == 0 {
		return "(default)"
	}
	return strings.Join(s.values, "/")
}

// ParseScope splits a "a/b" style string into a scope. An empty string is the default scope.
func ParseScope(raw string) Scope {
	if raw == "" {
		return Scope{}
	}
	return NewScope(strings.Split(raw, "/")...)
}

func (s Scope) MarshalJSON() ([]byte, error) {
	if s.values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.values)
}

func (s *Scope) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewScope(values...)
	return nil
}
