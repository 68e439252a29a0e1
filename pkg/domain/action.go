package domain

import (
	"fmt"
	"strings"
)

// Action is a parameterized action. Identity is its ID: the name plus the parameters.
//
// Static attributes are fixed numbers (e.g. a speed setting). Derived attributes
// depend on the source state the action is taken from (e.g. the distance of a move).
type Action struct {
	name    string
	params  []Value
	attrs   map[string]float64
	derived map[string][]derivedEntry
	id      string
}

type derivedEntry struct {
	src   StateVarTuple
	value float64
}

// ActionOption configures an Action at construction.
type ActionOption func(*Action)

// WithAttribute sets a static attribute.
func WithAttribute(name string, value float64) ActionOption {
	return func(a *Action) {
		a.attrs[name] = value
	}
}

// WithDerivedAttribute sets the value of a derived attribute for one source state
// (or partial source predicate).
func WithDerivedAttribute(name string, src StateVarTuple, value float64) ActionOption {
	return func(a *Action) {
		a.derived[name] = append(a.derived[name], derivedEntry{src: src, value: value})
	}
}

// NewAction creates an action.
func NewAction(name string, params []Value, opts ...ActionOption) *Action {
	a := &Action{
		name:    name,
		params:  append([]Value(nil), params...),
		attrs:   make(map[string]float64),
		derived: make(map[string][]derivedEntry),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.id = actionID(name, a.params)
	return a
}

func actionID(name string, params []Value) string {
	if len(params) == 0 {
		return name
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

// Name returns the action name without parameters.
func (a *Action) Name() string { return a.name }

// ID returns the unique identifier of the action.
func (a *Action) ID() string { return a.id }

// Params returns a copy of the parameter list.
func (a *Action) Params() []Value { return append([]Value(nil), a.params...) }

// Attribute returns a static attribute.
func (a *Action) Attribute(name string) (float64, error) {
	v, ok := a.attrs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s on %s", ErrAttributeNotFound, name, a.id)
	}
	return v, nil
}

// DerivedAttribute returns the value of a derived attribute for the source state.
// An exact entry for src wins; otherwise the first registered predicate that src
// matches is used.
func (a *Action) DerivedAttribute(name string, src StateVarTuple) (float64, error) {
	entries, ok := a.derived[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s on %s", ErrAttributeNotFound, name, a.id)
	}
	for _, e := range entries {
		if e.src.Equal(src) {
			return e.value, nil
		}
	}
	for _, e := range entries {
		if src.Matches(e.src) {
			return e.value, nil
		}
	}
	return 0, fmt.Errorf("%w: %s on %s from %s", ErrAttributeNotFound, name, a.id, src)
}

// Equal compares actions by ID.
func (a *Action) Equal(o *Action) bool {
	if a == nil || o == nil {
		return a == o
	}
	return a.id == o.id
}

func (a *Action) String() string { return a.id }

// DefinitionKind tags an ActionDefinition as atomic or composite.
type DefinitionKind uint8

const (
	Atomic DefinitionKind = iota
	Composite
)

func (k DefinitionKind) String() string {
	if k == Composite {
		return "composite"
	}
	return "atomic"
}

// ActionDefinition is a named, finite set of actions of one type.
//
// A composite definition aggregates the actions of its constituents so that a
// QFunction or an action description can be written once over all of them. Each
// constituent keeps a non-owning reference to its composite parent.
type ActionDefinition struct {
	name         string
	kind         DefinitionKind
	actions      []*Action
	byID         map[string]*Action
	constituents []*ActionDefinition
	parent       *ActionDefinition
}

// NewActionDefinition creates an atomic definition.
func NewActionDefinition(name string, actions ...*Action) (*ActionDefinition, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: action definition without a name", ErrInvalidDefinition)
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: action definition %q has no actions", ErrInvalidDefinition, name)
	}
	def := &ActionDefinition{name: name, kind: Atomic, byID: make(map[string]*Action, len(actions))}
	for _, a := range actions {
		if _, dup := def.byID[a.id]; dup {
			return nil, fmt.Errorf("%w: action definition %q lists %s twice", ErrInvalidDefinition, name, a.id)
		}
		def.byID[a.id] = a
		def.actions = append(def.actions, a)
	}
	return def, nil
}

// NewCompositeActionDefinition aggregates the given definitions and sets their parent.
// A definition can belong to a single composite.
func NewCompositeActionDefinition(name string, constituents ...*ActionDefinition) (*ActionDefinition, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: action definition without a name", ErrInvalidDefinition)
	}
	if len(constituents) == 0 {
		return nil, fmt.Errorf("%w: composite %q has no constituents", ErrInvalidDefinition, name)
	}
	def := &ActionDefinition{name: name, kind: Composite, byID: make(map[string]*Action)}
	for _, c := range constituents {
		if c.parent != nil {
			return nil, fmt.Errorf("%w: %s already belongs to composite %s", ErrIncompatibleAction, c.name, c.parent.name)
		}
		for _, a := range c.actions {
			if _, dup := def.byID[a.id]; dup {
				return nil, fmt.Errorf("%w: composite %q lists %s twice", ErrInvalidDefinition, name, a.id)
			}
			def.byID[a.id] = a
			def.actions = append(def.actions, a)
		}
	}
	for _, c := range constituents {
		c.parent = def
	}
	def.constituents = append(def.constituents, constituents...)
	return def, nil
}

// Name returns the definition name.
func (d *ActionDefinition) Name() string { return d.name }

// Kind reports whether the definition is atomic or composite.
func (d *ActionDefinition) Kind() DefinitionKind { return d.kind }

// IsComposite is shorthand for Kind() == Composite.
func (d *ActionDefinition) IsComposite() bool { return d.kind == Composite }

// Actions returns the member actions in declaration order.
func (d *ActionDefinition) Actions() []*Action { return append([]*Action(nil), d.actions...) }

// Constituents returns the aggregated definitions of a composite.
func (d *ActionDefinition) Constituents() []*ActionDefinition {
	return append([]*ActionDefinition(nil), d.constituents...)
}

// Parent returns the composite this definition belongs to, or nil.
func (d *ActionDefinition) Parent() *ActionDefinition { return d.parent }

// Contains reports whether a is a member of the definition.
func (d *ActionDefinition) Contains(a *Action) bool {
	if a == nil {
		return false
	}
	_, ok := d.byID[a.id]
	return ok
}

// Action looks up a member by ID.
func (d *ActionDefinition) Action(id string) (*Action, error) {
	a, ok := d.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrActionNotFound, id, d.name)
	}
	return a, nil
}

// Covers reports whether d equals o or is an ancestor composite of o.
func (d *ActionDefinition) Covers(o *ActionDefinition) bool {
	for cur := o; cur != nil; cur = cur.parent {
		if cur == d {
			return true
		}
	}
	return false
}

func (d *ActionDefinition) String() string { return d.name }
