package mdp

import (
	"fmt"
	"math"

	"github.com/aretw0/xplanning/pkg/domain"
)

// StateSpace is the set of state variables of a problem.
type StateSpace struct {
	defs   []*domain.StateVarDefinition
	byName map[string]*domain.StateVarDefinition
}

// NewStateSpace builds a state space; variable names must be unique.
func NewStateSpace(defs ...*domain.StateVarDefinition) (*StateSpace, error) {
	s := &StateSpace{byName: make(map[string]*domain.StateVarDefinition, len(defs))}
	for _, d := range defs {
		if _, dup := s.byName[d.Name()]; dup {
			return nil, fmt.Errorf("%w: state variable %s declared twice", domain.ErrInvalidDefinition, d.Name())
		}
		s.byName[d.Name()] = d
		s.defs = append(s.defs, d)
	}
	return s, nil
}

// Definitions returns the variables in declaration order.
func (s *StateSpace) Definitions() []*domain.StateVarDefinition {
	return append([]*domain.StateVarDefinition(nil), s.defs...)
}

// Definition looks a variable up by name.
func (s *StateSpace) Definition(name string) (*domain.StateVarDefinition, error) {
	d, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrVarNotFound, name)
	}
	return d, nil
}

// Contains reports whether def belongs to the space.
func (s *StateSpace) Contains(def *domain.StateVarDefinition) bool {
	d, ok := s.byName[def.Name()]
	return ok && d.Equal(def)
}

// IsFull reports whether state assigns every variable of the space and nothing else.
func (s *StateSpace) IsFull(state domain.StateVarTuple) bool {
	if state.Len() != len(s.defs) {
		return false
	}
	for _, d := range s.defs {
		if !state.Has(d) {
			return false
		}
	}
	return true
}

// Size returns the number of full states, saturated at math.MaxInt.
func (s *StateSpace) Size() int {
	n := 1
	for _, d := range s.defs {
		k := len(d.Values())
		if n > math.MaxInt/k {
			return math.MaxInt
		}
		n *= k
	}
	return n
}

// States enumerates every full state, the first declared variable varying slowest.
func (s *StateSpace) States() ([]domain.StateVarTuple, error) {
	domains := make([][]domain.Value, len(s.defs))
	for i, d := range s.defs {
		domains[i] = d.Values()
	}
	size := s.Size()
	if size == math.MaxInt {
		return nil, fmt.Errorf("%w: state space is too large to enumerate", domain.ErrInvalidModel)
	}
	out := make([]domain.StateVarTuple, 0, min(size, 1024))
	err := product(s.defs, domains, func(vars []domain.StateVar) error {
		t, err := domain.NewStateVarTuple(vars...)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

// ActionSpace is the set of action definitions of a problem.
type ActionSpace struct {
	defs   []*domain.ActionDefinition
	byName map[string]*domain.ActionDefinition
}

// NewActionSpace builds an action space; definition names must be unique.
func NewActionSpace(defs ...*domain.ActionDefinition) (*ActionSpace, error) {
	s := &ActionSpace{byName: make(map[string]*domain.ActionDefinition, len(defs))}
	for _, d := range defs {
		if _, dup := s.byName[d.Name()]; dup {
			return nil, fmt.Errorf("%w: action definition %s declared twice", domain.ErrInvalidDefinition, d.Name())
		}
		s.byName[d.Name()] = d
		s.defs = append(s.defs, d)
	}
	return s, nil
}

// Definitions returns the definitions in declaration order.
func (s *ActionSpace) Definitions() []*domain.ActionDefinition {
	return append([]*domain.ActionDefinition(nil), s.defs...)
}

// Definition looks a definition up by name.
func (s *ActionSpace) Definition(name string) (*domain.ActionDefinition, error) {
	d, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrActionDefinitionNotFound, name)
	}
	return d, nil
}

// DefinitionOf returns the most specific definition containing action: an atomic
// definition when one exists, otherwise a composite.
func (s *ActionSpace) DefinitionOf(action *domain.Action) (*domain.ActionDefinition, error) {
	var composite *domain.ActionDefinition
	for _, d := range s.defs {
		if !d.Contains(action) {
			continue
		}
		if !d.IsComposite() {
			return d, nil
		}
		if composite == nil {
			composite = d
		}
	}
	if composite != nil {
		return composite, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrActionNotFound, action)
}

// Actions returns every action of the atomic definitions, in declaration order.
func (s *ActionSpace) Actions() []*domain.Action {
	var out []*domain.Action
	seen := make(map[string]struct{})
	for _, d := range s.defs {
		if d.IsComposite() {
			continue
		}
		for _, a := range d.Actions() {
			if _, dup := seen[a.ID()]; dup {
				continue
			}
			seen[a.ID()] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// Action looks an action up by ID across all definitions.
func (s *ActionSpace) Action(id string) (*domain.Action, error) {
	for _, d := range s.defs {
		if a, err := d.Action(id); err == nil {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrActionNotFound, id)
}
