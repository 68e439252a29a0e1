package mdp

import (
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
)

// FactoredPSO is the factored transition model of one ActionDefinition: a
// Precondition plus one ActionDescription per effect class. The registered effect
// classes are pairwise independent.
//
// A FactoredPSO is built once and then read; it is not safe for concurrent mutation.
type FactoredPSO struct {
	def          *domain.ActionDefinition
	precondition *Precondition
	descriptions []ActionDescription
}

// NewFactoredPSO creates a PSO for def. A nil precondition allows every action everywhere.
func NewFactoredPSO(def *domain.ActionDefinition, pre *Precondition) (*FactoredPSO, error) {
	if pre == nil {
		pre = NewPrecondition(def)
	}
	if pre.ActionDefinition() != def {
		return nil, fmt.Errorf("%w: precondition guards %s, not %s", domain.ErrIncompatibleAction, pre.ActionDefinition(), def)
	}
	return &FactoredPSO{def: def, precondition: pre}, nil
}

// AddActionDescription registers desc. It fails with domain.ErrIncompatibleEffectClass
// if desc writes a variable another registered description already writes.
func (p *FactoredPSO) AddActionDescription(desc ActionDescription) error {
	if desc.ActionDefinition() != p.def {
		return fmt.Errorf("%w: description is for %s, PSO is for %s",
			domain.ErrIncompatibleAction, desc.ActionDefinition(), p.def)
	}
	for _, existing := range p.descriptions {
		if existing.EffectClass().Overlaps(desc.EffectClass()) {
			return fmt.Errorf("%w: %s overlaps %s in %s",
				domain.ErrIncompatibleEffectClass, desc.EffectClass(), existing.EffectClass(), p.def)
		}
	}
	p.descriptions = append(p.descriptions, desc)
	return nil
}

// ActionDefinition returns the modelled definition.
func (p *FactoredPSO) ActionDefinition() *domain.ActionDefinition { return p.def }

// Precondition returns the guard of the definition's actions.
func (p *FactoredPSO) Precondition() *Precondition { return p.precondition }

// EffectClasses returns the independent effect classes in registration order.
func (p *FactoredPSO) EffectClasses() []EffectClass {
	out := make([]EffectClass, len(p.descriptions))
	for i, d := range p.descriptions {
		out[i] = d.EffectClass()
	}
	return out
}

// ActionDescription returns the description registered for class.
func (p *FactoredPSO) ActionDescription(class EffectClass) (ActionDescription, error) {
	for _, d := range p.descriptions {
		if d.EffectClass().Equal(class) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", domain.ErrEffectClassNotFound, class, p.def)
}

// DiscriminantClass returns the read set the effect of class depends on.
func (p *FactoredPSO) DiscriminantClass(class EffectClass) (DiscriminantClass, error) {
	d, err := p.ActionDescription(class)
	if err != nil {
		return DiscriminantClass{}, err
	}
	return d.DiscriminantClass(), nil
}

// PossibleImpact returns the effect classes the action can change.
func (p *FactoredPSO) PossibleImpact(action *domain.Action) ([]EffectClass, error) {
	if !p.def.Contains(action) {
		return nil, fmt.Errorf("%w: %s is not in %s", domain.ErrIncompatibleAction, action, p.def)
	}
	return p.EffectClasses(), nil
}

// ProbabilisticEffect evaluates the description of class for action taken in state.
func (p *FactoredPSO) ProbabilisticEffect(action *domain.Action, state domain.StateVarTuple, class EffectClass) (ProbabilisticEffect, error) {
	desc, err := p.ActionDescription(class)
	if err != nil {
		return ProbabilisticEffect{}, err
	}
	d, err := desc.DiscriminantClass().Project(state)
	if err != nil {
		return ProbabilisticEffect{}, err
	}
	return desc.ProbabilisticEffect(d, action)
}

// Validate checks that every distribution reachable through the precondition sums
// to one within eps. Missing table entries are reported as errors.
func (p *FactoredPSO) Validate(eps float64) error {
	for _, action := range p.def.Actions() {
		for _, desc := range p.descriptions {
			discs, err := p.precondition.ApplicableDiscriminants(action, desc.DiscriminantClass())
			if err != nil {
				return err
			}
			for _, d := range discs {
				pe, err := desc.ProbabilisticEffect(d, action)
				if err != nil {
					return fmt.Errorf("%s under %s: %w", action, d, err)
				}
				if err := pe.Validate(eps); err != nil {
					return fmt.Errorf("%s under %s: %w", action, d, err)
				}
			}
		}
	}
	return nil
}
