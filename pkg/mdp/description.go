package mdp

import (
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
)

// ActionDescription describes how the actions of one ActionDefinition change the
// variables of one EffectClass, given a Discriminant over its DiscriminantClass.
type ActionDescription interface {
	ActionDefinition() *domain.ActionDefinition
	DiscriminantClass() DiscriminantClass
	EffectClass() EffectClass

	// ProbabilisticEffect returns the outcome distribution of action under d.
	// It fails with domain.ErrIncompatibleAction when the action is not a member of
	// the definition, and with domain.ErrDiscriminantNotFound or
	// domain.ErrEffectClassNotFound when nothing is registered for d.
	ProbabilisticEffect(d Discriminant, action *domain.Action) (ProbabilisticEffect, error)
}

// Formula computes the outcome distribution of an action under a discriminant.
// Domain models implement it to plug their effect logic into a FormulaActionDescription.
type Formula interface {
	Apply(d Discriminant, action *domain.Action) (ProbabilisticEffect, error)
}

// FormulaFunc adapts a function to the Formula interface.
type FormulaFunc func(d Discriminant, action *domain.Action) (ProbabilisticEffect, error)

// Apply calls f.
func (f FormulaFunc) Apply(d Discriminant, action *domain.Action) (ProbabilisticEffect, error) {
	return f(d, action)
}

// FormulaActionDescription delegates to an injected Formula and checks that
// inputs and outputs agree with its classes.
type FormulaActionDescription struct {
	def     *domain.ActionDefinition
	dClass  DiscriminantClass
	eClass  EffectClass
	formula Formula
}

// NewFormulaActionDescription composes a formula with its classes.
func NewFormulaActionDescription(def *domain.ActionDefinition, dClass DiscriminantClass, eClass EffectClass, f Formula) *FormulaActionDescription {
	return &FormulaActionDescription{def: def, dClass: dClass, eClass: eClass, formula: f}
}

func (f *FormulaActionDescription) ActionDefinition() *domain.ActionDefinition { return f.def }
func (f *FormulaActionDescription) DiscriminantClass() DiscriminantClass       { return f.dClass }
func (f *FormulaActionDescription) EffectClass() EffectClass                   { return f.eClass }

func (f *FormulaActionDescription) ProbabilisticEffect(d Discriminant, action *domain.Action) (ProbabilisticEffect, error) {
	if !f.def.Contains(action) {
		return ProbabilisticEffect{}, fmt.Errorf("%w: %s is not in %s", domain.ErrIncompatibleAction, action, f.def)
	}
	if !d.Class().Equal(f.dClass) {
		return ProbabilisticEffect{}, fmt.Errorf("%w: got %s, want %s",
			domain.ErrIncompatibleDiscriminantClass, d.Class(), f.dClass)
	}
	pe, err := f.formula.Apply(d, action)
	if err != nil {
		return ProbabilisticEffect{}, fmt.Errorf("formula for %s on %s: %w", action, f.eClass, err)
	}
	if !pe.Class().Equal(f.eClass) {
		return ProbabilisticEffect{}, fmt.Errorf("%w: formula produced %s, want %s",
			domain.ErrIncompatibleEffectClass, pe.Class(), f.eClass)
	}
	return pe, nil
}

// TabularActionDescription is an explicit (action, discriminant) table of
// distributions. It is built once and then read; it is not safe for concurrent mutation.
type TabularActionDescription struct {
	def    *domain.ActionDefinition
	dClass DiscriminantClass
	eClass EffectClass
	table  map[string]map[string]ProbabilisticEffect // action ID -> discriminant key -> effect
}

// NewTabularActionDescription creates an empty table.
func NewTabularActionDescription(def *domain.ActionDefinition, dClass DiscriminantClass, eClass EffectClass) *TabularActionDescription {
	return &TabularActionDescription{
		def:    def,
		dClass: dClass,
		eClass: eClass,
		table:  make(map[string]map[string]ProbabilisticEffect),
	}
}

// Put registers the distribution of action under d, replacing any previous entry.
func (t *TabularActionDescription) Put(action *domain.Action, d Discriminant, pe ProbabilisticEffect) error {
	if !t.def.Contains(action) {
		return fmt.Errorf("%w: %s is not in %s", domain.ErrIncompatibleAction, action, t.def)
	}
	if !d.Class().Equal(t.dClass) {
		return fmt.Errorf("%w: got %s, want %s", domain.ErrIncompatibleDiscriminantClass, d.Class(), t.dClass)
	}
	if !pe.Class().Equal(t.eClass) {
		return fmt.Errorf("%w: got %s, want %s", domain.ErrIncompatibleEffectClass, pe.Class(), t.eClass)
	}
	byDisc, ok := t.table[action.ID()]
	if !ok {
		byDisc = make(map[string]ProbabilisticEffect)
		t.table[action.ID()] = byDisc
	}
	byDisc[d.Key()] = pe
	return nil
}

func (t *TabularActionDescription) ActionDefinition() *domain.ActionDefinition { return t.def }
func (t *TabularActionDescription) DiscriminantClass() DiscriminantClass       { return t.dClass }
func (t *TabularActionDescription) EffectClass() EffectClass                   { return t.eClass }

func (t *TabularActionDescription) ProbabilisticEffect(d Discriminant, action *domain.Action) (ProbabilisticEffect, error) {
	if !t.def.Contains(action) {
		return ProbabilisticEffect{}, fmt.Errorf("%w: %s is not in %s", domain.ErrIncompatibleAction, action, t.def)
	}
	byDisc, ok := t.table[action.ID()]
	if !ok {
		return ProbabilisticEffect{}, fmt.Errorf("%w: no entry for %s on %s", domain.ErrActionNotFound, action, t.eClass)
	}
	pe, ok := byDisc[d.Key()]
	if !ok {
		return ProbabilisticEffect{}, fmt.Errorf("%w: %s for %s on %s", domain.ErrDiscriminantNotFound, d, action, t.eClass)
	}
	return pe, nil
}
