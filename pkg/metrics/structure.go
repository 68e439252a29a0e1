package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/xplanning/pkg/domain"
)

// TransitionStructure names the variables a QFunction reads from the source and
// destination states, and the ActionDefinition whose transitions it measures.
type TransitionStructure struct {
	actionDef *domain.ActionDefinition
	src       []*domain.StateVarDefinition
	dest      []*domain.StateVarDefinition
	key       string
}

// NewTransitionStructure builds a structure. Either variable set may be empty.
func NewTransitionStructure(actionDef *domain.ActionDefinition, src, dest []*domain.StateVarDefinition) (TransitionStructure, error) {
	if actionDef == nil {
		return TransitionStructure{}, fmt.Errorf("%w: structure without action definition", domain.ErrInvalidDefinition)
	}
	s := TransitionStructure{
		actionDef: actionDef,
		src:       append([]*domain.StateVarDefinition(nil), src...),
		dest:      append([]*domain.StateVarDefinition(nil), dest...),
	}
	s.key = actionDef.Name() + "|" + names(s.src) + "|" + names(s.dest)
	return s, nil
}

// MustTransitionStructure is like NewTransitionStructure but panics on error.
func MustTransitionStructure(actionDef *domain.ActionDefinition, src, dest []*domain.StateVarDefinition) TransitionStructure {
	s, err := NewTransitionStructure(actionDef, src, dest)
	if err != nil {
		panic(err)
	}
	return s
}

func names(defs []*domain.StateVarDefinition) string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name()
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// ActionDefinition returns the measured action type.
func (s TransitionStructure) ActionDefinition() *domain.ActionDefinition { return s.actionDef }

// SrcDefinitions returns the source variables.
func (s TransitionStructure) SrcDefinitions() []*domain.StateVarDefinition {
	return append([]*domain.StateVarDefinition(nil), s.src...)
}

// DestDefinitions returns the destination variables.
func (s TransitionStructure) DestDefinitions() []*domain.StateVarDefinition {
	return append([]*domain.StateVarDefinition(nil), s.dest...)
}

// ContainsSrc reports whether def is a source variable.
func (s TransitionStructure) ContainsSrc(def *domain.StateVarDefinition) bool { return contains(s.src, def) }

// ContainsDest reports whether def is a destination variable.
func (s TransitionStructure) ContainsDest(def *domain.StateVarDefinition) bool {
	return contains(s.dest, def)
}

// Applies reports whether actions of def are measured by the structure, directly
// or through a composite ancestor.
func (s TransitionStructure) Applies(def *domain.ActionDefinition) bool {
	return s.actionDef.Covers(def)
}

// Key returns the canonical encoding of the structure.
func (s TransitionStructure) Key() string { return s.key }

// Equal compares structures by content.
func (s TransitionStructure) Equal(o TransitionStructure) bool { return s.key == o.key }

func (s TransitionStructure) String() string { return s.key }

func contains(defs []*domain.StateVarDefinition, def *domain.StateVarDefinition) bool {
	for _, d := range defs {
		if d.Equal(def) {
			return true
		}
	}
	return false
}

// Transition is one factored (s, a, s') step, restricted to the variables of its structure.
type Transition struct {
	structure TransitionStructure
	action    *domain.Action
	src       domain.StateVarTuple
	dest      domain.StateVarTuple
}

// NewTransition validates the action and variables against structure.
func NewTransition(structure TransitionStructure, action *domain.Action, src, dest []domain.StateVar) (Transition, error) {
	if !structure.actionDef.Contains(action) {
		return Transition{}, fmt.Errorf("%w: %s is not in %s", domain.ErrIncompatibleAction, action, structure.actionDef)
	}
	for _, v := range src {
		if !structure.ContainsSrc(v.Definition()) {
			return Transition{}, fmt.Errorf("%w: %s is not a source variable of %s", domain.ErrIncompatibleVar, v.Definition().Name(), structure)
		}
	}
	for _, v := range dest {
		if !structure.ContainsDest(v.Definition()) {
			return Transition{}, fmt.Errorf("%w: %s is not a destination variable of %s", domain.ErrIncompatibleVar, v.Definition().Name(), structure)
		}
	}
	srcTuple, err := domain.NewStateVarTuple(src...)
	if err != nil {
		return Transition{}, err
	}
	destTuple, err := domain.NewStateVarTuple(dest...)
	if err != nil {
		return Transition{}, err
	}
	return Transition{structure: structure, action: action, src: srcTuple, dest: destTuple}, nil
}

// TransitionFromStates projects full source and destination states onto structure.
func TransitionFromStates(structure TransitionStructure, action *domain.Action, src, dest domain.StateVarTuple) (Transition, error) {
	s, err := src.Project(structure.src...)
	if err != nil {
		return Transition{}, err
	}
	d, err := dest.Project(structure.dest...)
	if err != nil {
		return Transition{}, err
	}
	return NewTransition(structure, action, s.Vars(), d.Vars())
}

// Structure returns the transition structure.
func (t Transition) Structure() TransitionStructure { return t.structure }

// Action returns the action taken.
func (t Transition) Action() *domain.Action { return t.action }

// Src returns the source assignments.
func (t Transition) Src() domain.StateVarTuple { return t.src }

// Dest returns the destination assignments.
func (t Transition) Dest() domain.StateVarTuple { return t.dest }

// SrcValue returns a source variable value.
func (t Transition) SrcValue(def *domain.StateVarDefinition) (domain.Value, error) {
	return t.src.Value(def)
}

// DestValue returns a destination variable value.
func (t Transition) DestValue(def *domain.StateVarDefinition) (domain.Value, error) {
	return t.dest.Value(def)
}

// Equal compares transitions by content.
func (t Transition) Equal(o Transition) bool {
	return t.structure.Equal(o.structure) && t.action.Equal(o.action) && t.src.Equal(o.src) && t.dest.Equal(o.dest)
}

func (t Transition) String() string {
	return fmt.Sprintf("%s --%s--> %s", t.src, t.action, t.dest)
}
