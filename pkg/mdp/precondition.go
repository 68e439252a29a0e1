package mdp

import (
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
)

type allowedValues struct {
	def    *domain.StateVarDefinition
	values []domain.Value
	set    map[domain.Value]struct{}
}

// Precondition guards the actions of one ActionDefinition: for each action it
// records which values of which variables the action is applicable under.
// Variables without an entry are unconstrained.
//
// A Precondition is built once and then read; it is not safe for concurrent mutation.
type Precondition struct {
	def   *domain.ActionDefinition
	guard map[string]map[string]*allowedValues // action ID -> var name -> allowed values
}

// NewPrecondition returns a precondition that allows every action everywhere.
func NewPrecondition(def *domain.ActionDefinition) *Precondition {
	return &Precondition{def: def, guard: make(map[string]map[string]*allowedValues)}
}

// ActionDefinition returns the guarded definition.
func (p *Precondition) ActionDefinition() *domain.ActionDefinition { return p.def }

// Add allows action under the given values of varDef. Repeated calls for the same
// variable widen the allowed set.
func (p *Precondition) Add(action *domain.Action, varDef *domain.StateVarDefinition, values ...domain.Value) error {
	if !p.def.Contains(action) {
		return fmt.Errorf("%w: %s is not in %s", domain.ErrIncompatibleAction, action, p.def)
	}
	byVar, ok := p.guard[action.ID()]
	if !ok {
		byVar = make(map[string]*allowedValues)
		p.guard[action.ID()] = byVar
	}
	allowed, ok := byVar[varDef.Name()]
	if !ok {
		allowed = &allowedValues{def: varDef, set: make(map[domain.Value]struct{})}
		byVar[varDef.Name()] = allowed
	}
	for _, v := range values {
		if !varDef.Contains(v) {
			return fmt.Errorf("%w: %s is not a legal value of %s", domain.ErrIncompatibleVar, v, varDef.Name())
		}
		if _, dup := allowed.set[v]; dup {
			continue
		}
		allowed.set[v] = struct{}{}
		allowed.values = append(allowed.values, v)
	}
	return nil
}

// IsApplicable reports whether the action may be taken in state. Only the
// variables the state assigns are checked.
func (p *Precondition) IsApplicable(action *domain.Action, state domain.StateVarTuple) (bool, error) {
	if !p.def.Contains(action) {
		return false, fmt.Errorf("%w: %s is not in %s", domain.ErrIncompatibleAction, action, p.def)
	}
	for _, allowed := range p.guard[action.ID()] {
		v, err := state.Value(allowed.def)
		if err != nil {
			continue
		}
		if _, ok := allowed.set[v]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// ApplicableValues returns the values of varDef under which the action is
// applicable, in domain order for unconstrained variables.
func (p *Precondition) ApplicableValues(action *domain.Action, varDef *domain.StateVarDefinition) ([]domain.Value, error) {
	if !p.def.Contains(action) {
		return nil, fmt.Errorf("%w: %s is not in %s", domain.ErrIncompatibleAction, action, p.def)
	}
	if allowed, ok := p.guard[action.ID()][varDef.Name()]; ok {
		return append([]domain.Value(nil), allowed.values...), nil
	}
	return varDef.Values(), nil
}

// ApplicableDiscriminants enumerates every discriminant of class the precondition
// admits for action.
func (p *Precondition) ApplicableDiscriminants(action *domain.Action, class DiscriminantClass) ([]Discriminant, error) {
	defs := class.Definitions()
	domains := make([][]domain.Value, len(defs))
	for i, def := range defs {
		vals, err := p.ApplicableValues(action, def)
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return nil, nil
		}
		domains[i] = vals
	}

	var out []Discriminant
	err := product(defs, domains, func(vars []domain.StateVar) error {
		d, err := NewDiscriminant(class, vars...)
		if err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	return out, err
}

// product calls fn once per combination of values, the first variable varying slowest.
func product(defs []*domain.StateVarDefinition, domains [][]domain.Value, fn func([]domain.StateVar) error) error {
	vars := make([]domain.StateVar, len(defs))
	var walk func(i int) error
	walk = func(i int) error {
		if i == len(defs) {
			return fn(append([]domain.StateVar(nil), vars...))
		}
		for _, v := range domains[i] {
			sv, err := domain.NewStateVar(defs[i], v)
			if err != nil {
				return err
			}
			vars[i] = sv
			if err := walk(i + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(0)
}
