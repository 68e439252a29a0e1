package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/xplanning/pkg/domain"
)

// Decision selects an action in a state.
type Decision struct {
	State  domain.StateVarTuple
	Action *domain.Action
}

// Policy is an immutable partial function from states to actions.
type Policy struct {
	decisions []Decision // sorted by state key
	byState   map[string]int
	key       string
}

// New builds a policy. A state may appear more than once only with the same action.
func New(decisions ...Decision) (*Policy, error) {
	byState := make(map[string]Decision, len(decisions))
	for _, d := range decisions {
		if d.Action == nil {
			return nil, fmt.Errorf("%w: no action for %s", domain.ErrConflictingDecision, d.State)
		}
		k := d.State.Key()
		if prev, ok := byState[k]; ok {
			if !prev.Action.Equal(d.Action) {
				return nil, fmt.Errorf("%w: %s maps to %s and %s", domain.ErrConflictingDecision, d.State, prev.Action, d.Action)
			}
			continue
		}
		byState[k] = d
	}

	p := &Policy{
		decisions: make([]Decision, 0, len(byState)),
		byState:   make(map[string]int, len(byState)),
	}
	for _, d := range byState {
		p.decisions = append(p.decisions, d)
	}
	sort.Slice(p.decisions, func(i, j int) bool { return p.decisions[i].State.Key() < p.decisions[j].State.Key() })

	h := sha256.New()
	for i, d := range p.decisions {
		p.byState[d.State.Key()] = i
		h.Write([]byte(d.State.Key()))
		h.Write([]byte{0})
		h.Write([]byte(d.Action.ID()))
		h.Write([]byte{'\n'})
	}
	p.key = hex.EncodeToString(h.Sum(nil))
	return p, nil
}

// Must is like New but panics on error.
func Must(decisions ...Decision) *Policy {
	p, err := New(decisions...)
	if err != nil {
		panic(err)
	}
	return p
}

// Action returns the action selected in state.
func (p *Policy) Action(state domain.StateVarTuple) (*domain.Action, error) {
	i, ok := p.byState[state.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrStateNotFound, state)
	}
	return p.decisions[i].Action, nil
}

// Has reports whether the policy decides in state.
func (p *Policy) Has(state domain.StateVarTuple) bool {
	_, ok := p.byState[state.Key()]
	return ok
}

// Decisions returns the decisions ordered by state key.
func (p *Policy) Decisions() []Decision { return append([]Decision(nil), p.decisions...) }

// Len returns the number of decisions.
func (p *Policy) Len() int { return len(p.decisions) }

// Key returns a content hash of the policy. Equal policies have equal keys.
func (p *Policy) Key() string { return p.key }

// Equal compares policies by content.
func (p *Policy) Equal(o *Policy) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.key == o.key
}

func (p *Policy) String() string {
	var sb strings.Builder
	for _, d := range p.decisions {
		fmt.Fprintf(&sb, "%s -> %s\n", d.State, d.Action)
	}
	return sb.String()
}
