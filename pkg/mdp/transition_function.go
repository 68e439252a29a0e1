package mdp

import (
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
)

// ResolvedEffect is one independent factored effect of an action in a state.
type ResolvedEffect struct {
	Class  EffectClass
	Effect ProbabilisticEffect
	// Source is the definition whose PSO contributed the effect: the action's own
	// definition or one of its composite ancestors.
	Source *domain.ActionDefinition
}

// TransitionFunction holds one FactoredPSO per ActionDefinition.
type TransitionFunction struct {
	psos  map[*domain.ActionDefinition]*FactoredPSO
	order []*FactoredPSO
}

// NewTransitionFunction registers the given PSOs.
func NewTransitionFunction(psos ...*FactoredPSO) (*TransitionFunction, error) {
	tf := &TransitionFunction{psos: make(map[*domain.ActionDefinition]*FactoredPSO, len(psos))}
	for _, p := range psos {
		if err := tf.Add(p); err != nil {
			return nil, err
		}
	}
	return tf, nil
}

// Add registers pso. The effect classes of a definition and of its composite
// ancestors are unioned at resolution time, so they must not overlap.
func (tf *TransitionFunction) Add(pso *FactoredPSO) error {
	def := pso.ActionDefinition()
	if _, dup := tf.psos[def]; dup {
		return fmt.Errorf("%w: %s has two PSOs", domain.ErrInvalidModel, def)
	}
	for _, other := range tf.order {
		od := other.ActionDefinition()
		if !od.Covers(def) && !def.Covers(od) {
			continue
		}
		if err := disjoint(pso, other); err != nil {
			return err
		}
	}
	tf.psos[def] = pso
	tf.order = append(tf.order, pso)
	return nil
}

// ActionPSO returns the PSO registered for def.
func (tf *TransitionFunction) ActionPSO(def *domain.ActionDefinition) (*FactoredPSO, error) {
	pso, ok := tf.psos[def]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrActionDefinitionNotFound, def)
	}
	return pso, nil
}

// PSOs returns the registered PSOs in registration order.
func (tf *TransitionFunction) PSOs() []*FactoredPSO {
	return append([]*FactoredPSO(nil), tf.order...)
}

// disjoint fails with domain.ErrIncompatibleEffectClass when a and b write a
// common variable.
func disjoint(a, b *FactoredPSO) error {
	for _, ca := range a.EffectClasses() {
		for _, cb := range b.EffectClasses() {
			if ca.Overlaps(cb) {
				return fmt.Errorf("%w: %s of %s overlaps %s of %s",
					domain.ErrIncompatibleEffectClass, ca, a.ActionDefinition(), cb, b.ActionDefinition())
			}
		}
	}
	return nil
}

// chain returns the PSOs that model actions of def: its own and its ancestors'.
// Descriptions may be added to a PSO after it is registered, so the chain is
// checked for overlapping effect classes on every call.
func (tf *TransitionFunction) chain(def *domain.ActionDefinition) ([]*FactoredPSO, error) {
	var out []*FactoredPSO
	for cur := def; cur != nil; cur = cur.Parent() {
		if pso, ok := tf.psos[cur]; ok {
			out = append(out, pso)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrActionDefinitionNotFound, def)
	}
	for i, a := range out {
		for _, b := range out[i+1:] {
			if err := disjoint(a, b); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// EffectClasses returns every effect class an action of def writes, including the
// classes inherited from composite ancestors.
func (tf *TransitionFunction) EffectClasses(def *domain.ActionDefinition) ([]EffectClass, error) {
	chain, err := tf.chain(def)
	if err != nil {
		return nil, err
	}
	var out []EffectClass
	for _, pso := range chain {
		out = append(out, pso.EffectClasses()...)
	}
	return out, nil
}

// IsApplicable checks the preconditions of def and of its composite ancestors.
func (tf *TransitionFunction) IsApplicable(def *domain.ActionDefinition, action *domain.Action, state domain.StateVarTuple) (bool, error) {
	if !def.Contains(action) {
		return false, fmt.Errorf("%w: %s is not in %s", domain.ErrIncompatibleAction, action, def)
	}
	chain, err := tf.chain(def)
	if err != nil {
		return false, err
	}
	for _, pso := range chain {
		ok, err := pso.Precondition().IsApplicable(action, state)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Resolve returns the independent effects of action, a member of def, taken in state.
// The result is the union of the effects modelled by def's PSO and by the PSOs of
// its composite ancestors.
func (tf *TransitionFunction) Resolve(def *domain.ActionDefinition, action *domain.Action, state domain.StateVarTuple) ([]ResolvedEffect, error) {
	ok, err := tf.IsApplicable(def, action, state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", domain.ErrActionNotApplicable, action, state)
	}
	chain, err := tf.chain(def)
	if err != nil {
		return nil, err
	}
	var out []ResolvedEffect
	for _, pso := range chain {
		for _, class := range pso.EffectClasses() {
			pe, err := pso.ProbabilisticEffect(action, state, class)
			if err != nil {
				return nil, err
			}
			out = append(out, ResolvedEffect{Class: class, Effect: pe, Source: pso.ActionDefinition()})
		}
	}
	return out, nil
}
