// Package explicit flattens factored models into the indexed tables external
// solvers exchange: state indices, policy rows, reward structures and
// explicit transition lists.
package explicit

import (
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/policy"
)

// StateIndex assigns dense serial indices, starting at 0, to full states.
type StateIndex struct {
	states []domain.StateVarTuple
	byKey  map[string]int
}

// NewStateIndex indexes states in the given order.
func NewStateIndex(states ...domain.StateVarTuple) *StateIndex {
	idx := &StateIndex{byKey: make(map[string]int, len(states))}
	for _, s := range states {
		idx.Add(s)
	}
	return idx
}

// Add returns the index of s, assigning the next one if s is new.
func (i *StateIndex) Add(s domain.StateVarTuple) int {
	if n, ok := i.byKey[s.Key()]; ok {
		return n
	}
	n := len(i.states)
	i.byKey[s.Key()] = n
	i.states = append(i.states, s)
	return n
}

// Index returns the index of s.
func (i *StateIndex) Index(s domain.StateVarTuple) (int, error) {
	n, ok := i.byKey[s.Key()]
	if !ok {
		return 0, fmt.Errorf("%w: %s is not indexed", domain.ErrStateNotFound, s)
	}
	return n, nil
}

// State returns the state at index n.
func (i *StateIndex) State(n int) (domain.StateVarTuple, error) {
	if n < 0 || n >= len(i.states) {
		return domain.StateVarTuple{}, fmt.Errorf("%w: no state at index %d", domain.ErrStateNotFound, n)
	}
	return i.states[n], nil
}

// Len returns the number of indexed states.
func (i *StateIndex) Len() int { return len(i.states) }

// StateRow is the interchange form of one indexed state.
type StateRow struct {
	Index int                     `json:"index" yaml:"index"`
	Vars  map[string]domain.Value `json:"vars" yaml:"vars"`
}

// Rows returns the table in index order.
func (i *StateIndex) Rows() []StateRow {
	rows := make([]StateRow, len(i.states))
	for n, s := range i.states {
		rows[n] = StateRow{Index: n, Vars: s.Map()}
	}
	return rows
}

// IndexFromRows rebuilds an index from its table, resolving variable names
// against space. Rows must be listed in index order.
func IndexFromRows(space *mdp.StateSpace, rows []StateRow) (*StateIndex, error) {
	idx := NewStateIndex()
	defs := space.Definitions()
	for n, row := range rows {
		if row.Index != n {
			return nil, fmt.Errorf("%w: row %d has index %d", domain.ErrInvalidModel, n, row.Index)
		}
		s, err := domain.TupleFromMap(row.Vars, defs...)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		if got := idx.Add(s); got != n {
			return nil, fmt.Errorf("%w: row %d repeats state %d", domain.ErrInvalidModel, n, got)
		}
	}
	return idx, nil
}

// PolicyRow is one decision of a policy in index form.
type PolicyRow struct {
	State  int    `json:"state" yaml:"state"`
	Action string `json:"action" yaml:"action"`
}

// PolicyTable is a policy in index form, ordered by state index.
type PolicyTable []PolicyRow

// EncodePolicy converts p to rows. Decisions on states missing from idx are
// left out; they are unreachable in the exported model.
func EncodePolicy(idx *StateIndex, p *policy.Policy) PolicyTable {
	table := make(PolicyTable, 0, p.Len())
	for n, s := range idx.states {
		a, err := p.Action(s)
		if err != nil {
			continue
		}
		table = append(table, PolicyRow{State: n, Action: a.ID()})
	}
	return table
}

// DecodePolicy resolves rows back into a policy.
func DecodePolicy(idx *StateIndex, actions *mdp.ActionSpace, table PolicyTable) (*policy.Policy, error) {
	decisions := make([]policy.Decision, 0, len(table))
	for _, row := range table {
		s, err := idx.State(row.State)
		if err != nil {
			return nil, err
		}
		a, err := actions.Action(row.Action)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, policy.Decision{State: s, Action: a})
	}
	return policy.New(decisions...)
}
