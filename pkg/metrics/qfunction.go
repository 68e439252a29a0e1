package metrics

import (
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
)

// QFunction measures one quality attribute per transition.
// Values are non-negative. Identity is Key: the name plus the structure.
type QFunction interface {
	Name() string
	Structure() TransitionStructure
	Value(t Transition) (float64, error)
}

// Key returns the identity of a QFunction.
func Key(q QFunction) string {
	return q.Name() + "@" + q.Structure().Key()
}

// Same reports whether both QFunctions have the same identity.
func Same(a, b QFunction) bool { return Key(a) == Key(b) }

// ValueFunc computes a QA value for a transition.
type ValueFunc func(t Transition) (float64, error)

// StandardQFunction computes its value directly from the transition.
type StandardQFunction struct {
	name      string
	structure TransitionStructure
	fn        ValueFunc
}

// NewQFunction creates a standard QFunction.
func NewQFunction(name string, structure TransitionStructure, fn ValueFunc) *StandardQFunction {
	return &StandardQFunction{name: name, structure: structure, fn: fn}
}

func (q *StandardQFunction) Name() string                   { return q.name }
func (q *StandardQFunction) Structure() TransitionStructure { return q.structure }

// Value checks the transition's structure and evaluates the function.
func (q *StandardQFunction) Value(t Transition) (float64, error) {
	if err := checkStructure(q.structure, t); err != nil {
		return 0, err
	}
	v, err := q.fn(t)
	if err != nil {
		return 0, fmt.Errorf("qfunction %s: %w", q.name, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("qfunction %s: negative value %v", q.name, v)
	}
	return v, nil
}

// Predicate tests a transition.
type Predicate func(t Transition) (bool, error)

// NewCountQFunction creates a QFunction worth 1 on transitions where pred holds
// and 0 elsewhere. Its expected total is the expected number of such transitions.
func NewCountQFunction(name string, structure TransitionStructure, pred Predicate) *StandardQFunction {
	return NewQFunction(name, structure, func(t Transition) (float64, error) {
		ok, err := pred(t)
		if err != nil || !ok {
			return 0, err
		}
		return 1, nil
	})
}

func checkStructure(s TransitionStructure, t Transition) error {
	if !t.structure.Equal(s) {
		return fmt.Errorf("%w: transition of %s measured with %s", domain.ErrIncompatibleVar, t.structure, s)
	}
	return nil
}
