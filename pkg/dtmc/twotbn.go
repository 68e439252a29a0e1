package dtmc

import (
	"fmt"
	"sort"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/mdp"
)

type tbnEntry struct {
	state   domain.StateVarTuple
	action  *domain.Action
	effects []mdp.ResolvedEffect
}

// TwoTBN is the two-time-slice Bayesian network of one ActionDefinition under a
// policy: for each source state where the policy picks an action of the
// definition, the action and its distribution per effect class.
type TwoTBN struct {
	def     *domain.ActionDefinition
	entries map[string]*tbnEntry
}

func newTwoTBN(def *domain.ActionDefinition) *TwoTBN {
	return &TwoTBN{def: def, entries: make(map[string]*tbnEntry)}
}

func (t *TwoTBN) add(state domain.StateVarTuple, action *domain.Action, effect mdp.ResolvedEffect) error {
	if !t.def.Contains(action) {
		return fmt.Errorf("%w: %s is not in %s", domain.ErrIncompatibleAction, action, t.def)
	}
	e, ok := t.entries[state.Key()]
	if !ok {
		e = &tbnEntry{state: state, action: action}
		t.entries[state.Key()] = e
	}
	if !e.action.Equal(action) {
		return fmt.Errorf("%w: %s already maps to %s", domain.ErrConflictingDecision, state, e.action)
	}
	e.effects = append(e.effects, effect)
	return nil
}

// ActionDefinition returns the definition the network belongs to.
func (t *TwoTBN) ActionDefinition() *domain.ActionDefinition { return t.def }

// Len returns the number of source states.
func (t *TwoTBN) Len() int { return len(t.entries) }

// States returns the source states ordered by key.
func (t *TwoTBN) States() []domain.StateVarTuple {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]domain.StateVarTuple, len(keys))
	for i, k := range keys {
		out[i] = t.entries[k].state
	}
	return out
}

func (t *TwoTBN) entry(state domain.StateVarTuple) (*tbnEntry, error) {
	e, ok := t.entries[state.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s in 2TBN of %s", domain.ErrStateNotFound, state, t.def)
	}
	return e, nil
}

// Action returns the action selected in state.
func (t *TwoTBN) Action(state domain.StateVarTuple) (*domain.Action, error) {
	e, err := t.entry(state)
	if err != nil {
		return nil, err
	}
	return e.action, nil
}

// Effects returns the factored effects of the selected action in state.
func (t *TwoTBN) Effects(state domain.StateVarTuple) ([]mdp.ResolvedEffect, error) {
	e, err := t.entry(state)
	if err != nil {
		return nil, err
	}
	return append([]mdp.ResolvedEffect(nil), e.effects...), nil
}

// ProbabilisticEffect returns the distribution of one effect class in state.
func (t *TwoTBN) ProbabilisticEffect(state domain.StateVarTuple, class mdp.EffectClass) (mdp.ProbabilisticEffect, error) {
	e, err := t.entry(state)
	if err != nil {
		return mdp.ProbabilisticEffect{}, err
	}
	for _, eff := range e.effects {
		if eff.Class.Equal(class) {
			return eff.Effect, nil
		}
	}
	return mdp.ProbabilisticEffect{}, fmt.Errorf("%w: %s in %s", domain.ErrEffectClassNotFound, class, state)
}

// Equal compares networks by content.
func (t *TwoTBN) Equal(o *TwoTBN) bool {
	if t.def != o.def || len(t.entries) != len(o.entries) {
		return false
	}
	for k, e := range t.entries {
		oe, ok := o.entries[k]
		if !ok || !e.action.Equal(oe.action) || len(e.effects) != len(oe.effects) {
			return false
		}
		for i := range e.effects {
			if !e.effects[i].Class.Equal(oe.effects[i].Class) || !e.effects[i].Effect.Equal(oe.effects[i].Effect) {
				return false
			}
		}
	}
	return true
}
