package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// StateVarTuple is an immutable set of state variable assignments, at most one per
// variable. It describes a full state or a partial assignment (a predicate).
// Two tuples are equal when they hold the same assignments; Key is the canonical form.
type StateVarTuple struct {
	vars []StateVar // sorted by variable name
	key  string
}

// NewStateVarTuple builds a tuple. Assigning the same variable twice with the same
// value is tolerated; conflicting assignments fail with ErrIncompatibleVar.
func NewStateVarTuple(vars ...StateVar) (StateVarTuple, error) {
	byName := make(map[string]StateVar, len(vars))
	for _, v := range vars {
		if v.def == nil {
			return StateVarTuple{}, fmt.Errorf("%w: zero state variable", ErrIncompatibleVar)
		}
		if prev, ok := byName[v.def.name]; ok {
			if !prev.def.Equal(v.def) || prev.value != v.value {
				return StateVarTuple{}, fmt.Errorf("%w: %s assigned twice (%s, %s)",
					ErrIncompatibleVar, v.def.name, prev.value, v.value)
			}
			continue
		}
		byName[v.def.name] = v
	}
	return fromMap(byName), nil
}

// MustStateVarTuple is like NewStateVarTuple but panics on error.
func MustStateVarTuple(vars ...StateVar) StateVarTuple {
	t, err := NewStateVarTuple(vars...)
	if err != nil {
		panic(err)
	}
	return t
}

func fromMap(byName map[string]StateVar) StateVarTuple {
	sorted := make([]StateVar, 0, len(byName))
	for _, v := range byName {
		sorted = append(sorted, v)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].def.name < sorted[j].def.name })

	var sb strings.Builder
	for i, v := range sorted {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(v.def.name)
		sb.WriteByte('=')
		sb.WriteString(v.value.key())
	}
	return StateVarTuple{vars: sorted, key: sb.String()}
}

// Key returns the canonical encoding of the tuple. Equal tuples have equal keys.
func (t StateVarTuple) Key() string { return t.key }

// Len returns the number of assignments.
func (t StateVarTuple) Len() int { return len(t.vars) }

// IsEmpty reports whether the tuple has no assignments.
func (t StateVarTuple) IsEmpty() bool { return len(t.vars) == 0 }

// Vars returns the assignments ordered by variable name.
func (t StateVarTuple) Vars() []StateVar {
	out := make([]StateVar, len(t.vars))
	copy(out, t.vars)
	return out
}

// Equal reports whether both tuples hold the same assignments.
func (t StateVarTuple) Equal(o StateVarTuple) bool { return t.key == o.key }

func (t StateVarTuple) lookup(name string) (StateVar, bool) {
	i := sort.Search(len(t.vars), func(i int) bool { return t.vars[i].def.name >= name })
	if i < len(t.vars) && t.vars[i].def.name == name {
		return t.vars[i], true
	}
	return StateVar{}, false
}

// Has reports whether the tuple assigns the variable.
func (t StateVarTuple) Has(def *StateVarDefinition) bool {
	v, ok := t.lookup(def.name)
	return ok && v.def.Equal(def)
}

// Value returns the value assigned to def.
func (t StateVarTuple) Value(def *StateVarDefinition) (Value, error) {
	v, ok := t.lookup(def.name)
	if !ok || !v.def.Equal(def) {
		return Value{}, fmt.Errorf("%w: %s", ErrVarNotFound, def.name)
	}
	return v.value, nil
}

// Var returns the assignment of def.
func (t StateVarTuple) Var(def *StateVarDefinition) (StateVar, error) {
	v, ok := t.lookup(def.name)
	if !ok || !v.def.Equal(def) {
		return StateVar{}, fmt.Errorf("%w: %s", ErrVarNotFound, def.name)
	}
	return v, nil
}

// Project restricts the tuple to the given definitions. Every definition must be assigned.
func (t StateVarTuple) Project(defs ...*StateVarDefinition) (StateVarTuple, error) {
	byName := make(map[string]StateVar, len(defs))
	for _, def := range defs {
		v, err := t.Var(def)
		if err != nil {
			return StateVarTuple{}, err
		}
		byName[def.name] = v
	}
	return fromMap(byName), nil
}

// Merge returns a tuple holding the assignments of both; o wins on shared variables.
func (t StateVarTuple) Merge(o StateVarTuple) StateVarTuple {
	byName := make(map[string]StateVar, len(t.vars)+len(o.vars))
	for _, v := range t.vars {
		byName[v.def.name] = v
	}
	for _, v := range o.vars {
		byName[v.def.name] = v
	}
	return fromMap(byName)
}

// Matches reports whether every assignment of partial also holds in t.
func (t StateVarTuple) Matches(partial StateVarTuple) bool {
	for _, want := range partial.vars {
		got, ok := t.lookup(want.def.name)
		if !ok || got.value != want.value {
			return false
		}
	}
	return true
}

// Definitions returns the assigned definitions ordered by name.
func (t StateVarTuple) Definitions() []*StateVarDefinition {
	out := make([]*StateVarDefinition, len(t.vars))
	for i, v := range t.vars {
		out[i] = v.def
	}
	return out
}

// Map returns the assignments as a name to value map.
func (t StateVarTuple) Map() map[string]Value {
	out := make(map[string]Value, len(t.vars))
	for _, v := range t.vars {
		out[v.def.name] = v.value
	}
	return out
}

func (t StateVarTuple) String() string {
	parts := make([]string, len(t.vars))
	for i, v := range t.vars {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// MarshalJSON encodes the tuple as a name to value object.
func (t StateVarTuple) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Map())
}

// TupleFromMap resolves a name to value map against the given definitions.
func TupleFromMap(values map[string]Value, defs ...*StateVarDefinition) (StateVarTuple, error) {
	byName := make(map[string]*StateVarDefinition, len(defs))
	for _, d := range defs {
		byName[d.name] = d
	}
	vars := make([]StateVar, 0, len(values))
	for name, v := range values {
		def, ok := byName[name]
		if !ok {
			return StateVarTuple{}, fmt.Errorf("%w: %s", ErrVarNotFound, name)
		}
		sv, err := NewStateVar(def, v)
		if err != nil {
			return StateVarTuple{}, err
		}
		vars = append(vars, sv)
	}
	return NewStateVarTuple(vars...)
}
