package mdp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/xplanning/pkg/domain"
)

// varClass is an ordered set of state variable definitions.
type varClass struct {
	defs []*domain.StateVarDefinition
	key  string
}

func newVarClass(defs []*domain.StateVarDefinition) (varClass, error) {
	seen := make(map[string]*domain.StateVarDefinition, len(defs))
	out := make([]*domain.StateVarDefinition, 0, len(defs))
	for _, d := range defs {
		if d == nil {
			return varClass{}, fmt.Errorf("%w: nil definition in class", domain.ErrIncompatibleVar)
		}
		if prev, ok := seen[d.Name()]; ok {
			if !prev.Equal(d) {
				return varClass{}, fmt.Errorf("%w: two definitions named %s", domain.ErrIncompatibleVar, d.Name())
			}
			continue
		}
		seen[d.Name()] = d
		out = append(out, d)
	}
	names := make([]string, 0, len(out))
	for _, d := range out {
		names = append(names, d.Name())
	}
	sort.Strings(names)
	return varClass{defs: out, key: strings.Join(names, ",")}, nil
}

func (c varClass) contains(def *domain.StateVarDefinition) bool {
	for _, d := range c.defs {
		if d.Equal(def) {
			return true
		}
	}
	return false
}

func (c varClass) overlaps(o varClass) bool {
	for _, d := range c.defs {
		if o.contains(d) {
			return true
		}
	}
	return false
}

// covers reports whether t assigns exactly the variables of the class.
func (c varClass) covers(t domain.StateVarTuple) bool {
	if t.Len() != len(c.defs) {
		return false
	}
	for _, d := range c.defs {
		if !t.Has(d) {
			return false
		}
	}
	return true
}

// DiscriminantClass is the read set of a factored effect: the variables whose
// values determine the outcome distribution.
type DiscriminantClass struct{ varClass }

// NewDiscriminantClass builds a discriminant class. An empty class is legal and
// describes an effect that does not depend on the source state.
func NewDiscriminantClass(defs ...*domain.StateVarDefinition) (DiscriminantClass, error) {
	c, err := newVarClass(defs)
	return DiscriminantClass{c}, err
}

// MustDiscriminantClass is like NewDiscriminantClass but panics on error.
func MustDiscriminantClass(defs ...*domain.StateVarDefinition) DiscriminantClass {
	c, err := NewDiscriminantClass(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Definitions returns the variables of the class in declaration order.
func (c DiscriminantClass) Definitions() []*domain.StateVarDefinition {
	return append([]*domain.StateVarDefinition(nil), c.defs...)
}

// Key returns the canonical name of the class.
func (c DiscriminantClass) Key() string { return c.key }

// Contains reports whether def belongs to the class.
func (c DiscriminantClass) Contains(def *domain.StateVarDefinition) bool { return c.contains(def) }

// Equal compares classes as sets.
func (c DiscriminantClass) Equal(o DiscriminantClass) bool { return c.key == o.key }

// Project builds the discriminant of a state for this class.
func (c DiscriminantClass) Project(state domain.StateVarTuple) (Discriminant, error) {
	t, err := state.Project(c.defs...)
	if err != nil {
		return Discriminant{}, fmt.Errorf("%w: %v", domain.ErrIncompatibleDiscriminantClass, err)
	}
	return Discriminant{class: c, tuple: t}, nil
}

func (c DiscriminantClass) String() string { return "{" + c.key + "}" }

// EffectClass is the write set of a factored effect. Two effect classes are
// independent when their write sets are disjoint.
type EffectClass struct{ varClass }

// NewEffectClass builds an effect class. Effect classes must write at least one variable.
func NewEffectClass(defs ...*domain.StateVarDefinition) (EffectClass, error) {
	if len(defs) == 0 {
		return EffectClass{}, fmt.Errorf("%w: empty effect class", domain.ErrIncompatibleEffectClass)
	}
	c, err := newVarClass(defs)
	return EffectClass{c}, err
}

// MustEffectClass is like NewEffectClass but panics on error.
func MustEffectClass(defs ...*domain.StateVarDefinition) EffectClass {
	c, err := NewEffectClass(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Definitions returns the variables of the class in declaration order.
func (c EffectClass) Definitions() []*domain.StateVarDefinition {
	return append([]*domain.StateVarDefinition(nil), c.defs...)
}

// Key returns the canonical name of the class.
func (c EffectClass) Key() string { return c.key }

// Contains reports whether def belongs to the class.
func (c EffectClass) Contains(def *domain.StateVarDefinition) bool { return c.contains(def) }

// Equal compares classes as sets.
func (c EffectClass) Equal(o EffectClass) bool { return c.key == o.key }

// Overlaps reports whether both classes write a common variable.
func (c EffectClass) Overlaps(o EffectClass) bool { return c.overlaps(o.varClass) }

func (c EffectClass) String() string { return "{" + c.key + "}" }

// Discriminant is a state restricted to a DiscriminantClass.
type Discriminant struct {
	class DiscriminantClass
	tuple domain.StateVarTuple
}

// NewDiscriminant builds a discriminant that assigns exactly the variables of class.
func NewDiscriminant(class DiscriminantClass, vars ...domain.StateVar) (Discriminant, error) {
	t, err := domain.NewStateVarTuple(vars...)
	if err != nil {
		return Discriminant{}, err
	}
	if !class.covers(t) {
		return Discriminant{}, fmt.Errorf("%w: %s does not match %s", domain.ErrIncompatibleDiscriminantClass, t, class)
	}
	return Discriminant{class: class, tuple: t}, nil
}

// Class returns the discriminant class.
func (d Discriminant) Class() DiscriminantClass { return d.class }

// Tuple returns the assignments.
func (d Discriminant) Tuple() domain.StateVarTuple { return d.tuple }

// Value returns the value of one discriminant variable.
func (d Discriminant) Value(def *domain.StateVarDefinition) (domain.Value, error) {
	return d.tuple.Value(def)
}

// Key returns the canonical encoding of the discriminant.
func (d Discriminant) Key() string { return d.tuple.Key() }

// Equal compares discriminants by class and assignments.
func (d Discriminant) Equal(o Discriminant) bool {
	return d.class.Equal(o.class) && d.tuple.Equal(o.tuple)
}

func (d Discriminant) String() string { return d.tuple.String() }

// Effect is one possible outcome of a factored effect: new values for the
// variables of an EffectClass.
type Effect struct {
	class EffectClass
	tuple domain.StateVarTuple
}

// NewEffect builds an effect that assigns exactly the variables of class.
func NewEffect(class EffectClass, vars ...domain.StateVar) (Effect, error) {
	t, err := domain.NewStateVarTuple(vars...)
	if err != nil {
		return Effect{}, err
	}
	if !class.covers(t) {
		return Effect{}, fmt.Errorf("%w: %s does not match %s", domain.ErrIncompatibleEffectClass, t, class)
	}
	return Effect{class: class, tuple: t}, nil
}

// MustEffect is like NewEffect but panics on error.
func MustEffect(class EffectClass, vars ...domain.StateVar) Effect {
	e, err := NewEffect(class, vars...)
	if err != nil {
		panic(err)
	}
	return e
}

// Class returns the effect class.
func (e Effect) Class() EffectClass { return e.class }

// Tuple returns the new assignments.
func (e Effect) Tuple() domain.StateVarTuple { return e.tuple }

// Key returns the canonical encoding of the effect.
func (e Effect) Key() string { return e.tuple.Key() }

// Equal compares effects by class and assignments.
func (e Effect) Equal(o Effect) bool { return e.class.Equal(o.class) && e.tuple.Equal(o.tuple) }

// Apply returns the state with the effect's assignments written over it.
func (e Effect) Apply(state domain.StateVarTuple) domain.StateVarTuple {
	return state.Merge(e.tuple)
}

func (e Effect) String() string { return e.tuple.String() }
