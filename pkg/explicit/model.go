package explicit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/dtmc"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/metrics"
	"github.com/aretw0/xplanning/pkg/objectives"
)

// Transition is one explicit (from, action, to) branch with its probability.
// Rewards[r-1] holds the reward of structure r; Events lists the EventKeys of
// the events occurring on the branch.
type Transition struct {
	From        int       `json:"from"`
	Action      string    `json:"action"`
	To          int       `json:"to"`
	Probability float64   `json:"probability"`
	Rewards     []float64 `json:"rewards"`
	Events      []string  `json:"events,omitempty"`
}

// Model is an explicit chain or decision process over indexed states. Goal
// states are absorbing and carry no outgoing transitions.
type Model struct {
	States      *StateIndex  `json:"-"`
	Rewards     *RewardIndex `json:"-"`
	Initial     int          `json:"initial"`
	Goals       []int        `json:"goals"`
	Transitions []Transition `json:"transitions"`
}

// Document is the serializable form of a Model.
type Document struct {
	States      []StateRow   `json:"states"`
	Rewards     []string     `json:"rewards"`
	Initial     int          `json:"initial"`
	Goals       []int        `json:"goals"`
	Transitions []Transition `json:"transitions"`
}

// Document returns the model with its state table and reward names inlined.
// Rewards[r-1] names structure r.
func (m *Model) Document() Document {
	names := make([]string, m.Rewards.Len())
	for i := range names {
		names[i], _ = m.Rewards.Name(i + 1)
	}
	return Document{
		States:      m.States.Rows(),
		Rewards:     names,
		Initial:     m.Initial,
		Goals:       append([]int(nil), m.Goals...),
		Transitions: append([]Transition(nil), m.Transitions...),
	}
}

type step struct {
	def    *domain.ActionDefinition
	action *domain.Action
	next   []dtmc.Successor
}

// Fingerprint identifies the content of the model: its states, branches,
// rewards and events. Models with the same fingerprint yield the same results
// under the same criterion.
func (m *Model) Fingerprint() (string, error) {
	data, err := json.Marshal(m.Document())
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// BuildDTMC exports the states reachable from the initial state under the
// chain's policy. A reachable non-goal state without a decision fails with
// domain.ErrStateNotFound.
func BuildDTMC(ctx context.Context, chain *dtmc.XDTMC, objective *objectives.AdditiveCostFunction) (*Model, error) {
	x := chain.XMDP()
	return explore(ctx, x, objective, func(s domain.StateVarTuple) ([]step, error) {
		action, next, err := chain.Successors(s)
		if err != nil {
			return nil, err
		}
		def, err := x.ActionSpace().DefinitionOf(action)
		if err != nil {
			return nil, err
		}
		return []step{{def: def, action: action, next: next}}, nil
	})
}

// BuildMDP exports the states reachable from the initial state under any
// sequence of applicable actions, with one choice per applicable action.
// Both builders stop with ctx's error once ctx is done.
func BuildMDP(ctx context.Context, x *mdp.XMDP, objective *objectives.AdditiveCostFunction) (*Model, error) {
	return explore(ctx, x, objective, func(s domain.StateVarTuple) ([]step, error) {
		actions, err := x.ApplicableActions(s)
		if err != nil {
			return nil, err
		}
		steps := make([]step, 0, len(actions))
		for _, a := range actions {
			def, err := x.ActionSpace().DefinitionOf(a)
			if err != nil {
				return nil, err
			}
			effects, err := x.TransitionFunction().Resolve(def, a, s)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step{def: def, action: a, next: dtmc.Combine(s, effects)})
		}
		return steps, nil
	})
}

func explore(ctx context.Context, x *mdp.XMDP, objective *objectives.AdditiveCostFunction, expand func(domain.StateVarTuple) ([]step, error)) (*Model, error) {
	m := &Model{
		States:  NewStateIndex(),
		Rewards: NewRewardIndex(objective.Name(), x.QSpace()),
	}
	m.Initial = m.States.Add(x.InitialState())

	queue := []domain.StateVarTuple{x.InitialState()}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := queue[0]
		queue = queue[1:]
		from, _ := m.States.Index(s)
		if x.IsGoal(s) {
			m.Goals = append(m.Goals, from)
			continue
		}
		steps, err := expand(s)
		if err != nil {
			return nil, fmt.Errorf("exporting %s: %w", s, err)
		}
		for _, st := range steps {
			for _, succ := range st.next {
				before := m.States.Len()
				to := m.States.Add(succ.State)
				if m.States.Len() > before {
					queue = append(queue, succ.State)
				}
				rewards, events, err := branchRewards(x, objective, st, s, succ.State)
				if err != nil {
					return nil, fmt.Errorf("exporting %s: %w", s, err)
				}
				m.Transitions = append(m.Transitions, Transition{
					From:        from,
					Action:      st.action.ID(),
					To:          to,
					Probability: succ.Probability,
					Rewards:     rewards,
					Events:      events,
				})
			}
		}
	}
	return m, nil
}

// branchRewards evaluates every QFunction whose structure measures the step's
// definition; the objective reward is the scaled cost sum of its own terms.
func branchRewards(x *mdp.XMDP, objective *objectives.AdditiveCostFunction, st step, src, dest domain.StateVarTuple) ([]float64, []string, error) {
	qfuncs := x.QSpace().All()
	rewards := make([]float64, len(qfuncs)+1)
	var events []string

	values := make(map[string]float64, len(qfuncs))
	for i, q := range qfuncs {
		if !q.Structure().Applies(st.def) {
			continue
		}
		tr, err := metrics.TransitionFromStates(q.Structure(), st.action, src, dest)
		if err != nil {
			return nil, nil, err
		}
		v, err := q.Value(tr)
		if err != nil {
			return nil, nil, err
		}
		rewards[i+1] = v
		values[metrics.Key(q)] = v

		eq, ok := q.(*metrics.EventBasedQFunction)
		if !ok {
			continue
		}
		for _, ev := range eq.Events() {
			occurred, err := ev.Event.Occurred(tr)
			if err != nil {
				return nil, nil, err
			}
			if occurred {
				events = append(events, EventKey(q.Name(), ev.Event.Name()))
			}
		}
	}

	for _, term := range objective.Terms() {
		q := term.Cost.QFunction()
		v, ok := values[metrics.Key(q)]
		if !ok {
			continue
		}
		rewards[0] += term.Scaling * term.Cost.Cost(v)
	}
	return rewards, events, nil
}
