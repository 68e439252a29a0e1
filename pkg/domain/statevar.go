package domain

import (
	"fmt"
	"strings"
)

// StateVarDefinition is a named state variable with a finite domain of legal values.
// It is immutable after construction.
type StateVarDefinition struct {
	name   string
	values []Value
	index  map[Value]int
}

// NewStateVarDefinition creates a variable definition. The domain keeps the given order.
func NewStateVarDefinition(name string, values ...Value) (*StateVarDefinition, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: state variable without a name", ErrInvalidDefinition)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: state variable %q has an empty domain", ErrInvalidDefinition, name)
	}
	def := &StateVarDefinition{
		name:   name,
		values: make([]Value, 0, len(values)),
		index:  make(map[Value]int, len(values)),
	}
	for _, v := range values {
		if !v.IsValid() {
			return nil, fmt.Errorf("%w: state variable %q has an invalid value", ErrInvalidDefinition, name)
		}
		if _, dup := def.index[v]; dup {
			return nil, fmt.Errorf("%w: state variable %q lists %s twice", ErrInvalidDefinition, name, v)
		}
		def.index[v] = len(def.values)
		def.values = append(def.values, v)
	}
	return def, nil
}

// MustStateVarDefinition is like NewStateVarDefinition but panics on error.
// Intended for package-level model declarations and tests.
func MustStateVarDefinition(name string, values ...Value) *StateVarDefinition {
	def, err := NewStateVarDefinition(name, values...)
	if err != nil {
		panic(err)
	}
	return def
}

// Name returns the variable name.
func (d *StateVarDefinition) Name() string { return d.name }

// Values returns a copy of the domain in declaration order.
func (d *StateVarDefinition) Values() []Value {
	out := make([]Value, len(d.values))
	copy(out, d.values)
	return out
}

// Contains reports whether v is a legal value of the variable.
func (d *StateVarDefinition) Contains(v Value) bool {
	_, ok := d.index[v]
	return ok
}

// Ordinal returns the position of v in the domain, or -1.
func (d *StateVarDefinition) Ordinal(v Value) int {
	if i, ok := d.index[v]; ok {
		return i
	}
	return -1
}

// Equal compares definitions by name and domain.
func (d *StateVarDefinition) Equal(o *StateVarDefinition) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil || d.name != o.name || len(d.values) != len(o.values) {
		return false
	}
	for _, v := range d.values {
		if !o.Contains(v) {
			return false
		}
	}
	return true
}

func (d *StateVarDefinition) String() string {
	parts := make([]string, len(d.values))
	for i, v := range d.values {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s{%s}", d.name, strings.Join(parts, ","))
}

// Var builds a StateVar of this definition.
func (d *StateVarDefinition) Var(v Value) (StateVar, error) {
	return NewStateVar(d, v)
}

// StateVar is an assignment of a legal value to a state variable.
type StateVar struct {
	def   *StateVarDefinition
	value Value
}

// NewStateVar validates v against the definition's domain.
func NewStateVar(def *StateVarDefinition, v Value) (StateVar, error) {
	if def == nil {
		return StateVar{}, fmt.Errorf("%w: nil definition", ErrIncompatibleVar)
	}
	if !def.Contains(v) {
		return StateVar{}, fmt.Errorf("%w: %s is not a legal value of %s", ErrIncompatibleVar, v, def.name)
	}
	return StateVar{def: def, value: v}, nil
}

// Definition returns the variable definition.
func (s StateVar) Definition() *StateVarDefinition { return s.def }

// Value returns the assigned value.
func (s StateVar) Value() Value { return s.value }

func (s StateVar) String() string {
	return s.def.name + "=" + s.value.String()
}
