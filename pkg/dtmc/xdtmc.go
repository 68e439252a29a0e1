package dtmc

import (
	"fmt"
	"sort"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/policy"
)

// XDTMC is the Markov chain a policy induces on an XMDP, stored as one TwoTBN
// per ActionDefinition. It is built once by Induce and read thereafter.
type XDTMC struct {
	xmdp   *mdp.XMDP
	policy *policy.Policy
	tbns   map[*domain.ActionDefinition]*TwoTBN
	order  []*domain.ActionDefinition
}

// Induce evaluates every effect class of every decision of p against the
// transition model of x. Any inconsistent decision aborts induction.
func Induce(x *mdp.XMDP, p *policy.Policy) (*XDTMC, error) {
	chain := &XDTMC{xmdp: x, policy: p, tbns: make(map[*domain.ActionDefinition]*TwoTBN)}
	tf := x.TransitionFunction()
	for _, d := range p.Decisions() {
		def, err := x.ActionSpace().DefinitionOf(d.Action)
		if err != nil {
			return nil, fmt.Errorf("inducing %s: %w", d.State, err)
		}
		effects, err := tf.Resolve(def, d.Action, d.State)
		if err != nil {
			return nil, fmt.Errorf("inducing %s: %w", d.State, err)
		}
		tbn, ok := chain.tbns[def]
		if !ok {
			tbn = newTwoTBN(def)
			chain.tbns[def] = tbn
			chain.order = append(chain.order, def)
		}
		for _, eff := range effects {
			if err := tbn.add(d.State, d.Action, eff); err != nil {
				return nil, fmt.Errorf("inducing %s: %w", d.State, err)
			}
		}
	}
	sort.Slice(chain.order, func(i, j int) bool { return chain.order[i].Name() < chain.order[j].Name() })
	return chain, nil
}

// XMDP returns the problem the chain was induced on.
func (c *XDTMC) XMDP() *mdp.XMDP { return c.xmdp }

// Policy returns the inducing policy.
func (c *XDTMC) Policy() *policy.Policy { return c.policy }

// TwoTBNs returns the networks ordered by definition name.
func (c *XDTMC) TwoTBNs() []*TwoTBN {
	out := make([]*TwoTBN, len(c.order))
	for i, def := range c.order {
		out[i] = c.tbns[def]
	}
	return out
}

// TwoTBN returns the network of def.
func (c *XDTMC) TwoTBN(def *domain.ActionDefinition) (*TwoTBN, error) {
	t, ok := c.tbns[def]
	if !ok {
		return nil, fmt.Errorf("%w: no decisions of %s", domain.ErrActionDefinitionNotFound, def)
	}
	return t, nil
}

// Successor is one joint outcome of a step of the chain.
type Successor struct {
	State       domain.StateVarTuple
	Probability float64
}

// Successors returns the distribution over next states from state. Independent
// effect classes combine as a product; outcomes reaching the same state are summed.
func (c *XDTMC) Successors(state domain.StateVarTuple) (*domain.Action, []Successor, error) {
	action, err := c.policy.Action(state)
	if err != nil {
		return nil, nil, err
	}
	def, err := c.xmdp.ActionSpace().DefinitionOf(action)
	if err != nil {
		return nil, nil, err
	}
	tbn, err := c.TwoTBN(def)
	if err != nil {
		return nil, nil, err
	}
	effects, err := tbn.Effects(state)
	if err != nil {
		return nil, nil, err
	}
	return action, Combine(state, effects), nil
}

// Combine applies independent factored effects to state and returns the joint
// successor distribution, ordered by state key.
func Combine(state domain.StateVarTuple, effects []mdp.ResolvedEffect) []Successor {
	type partial struct {
		state domain.StateVarTuple
		p     float64
	}
	frontier := []partial{{state: state, p: 1}}
	for _, eff := range effects {
		next := make([]partial, 0, len(frontier)*eff.Effect.Len())
		for _, f := range frontier {
			for _, o := range eff.Effect.Outcomes() {
				if o.Probability == 0 {
					continue
				}
				next = append(next, partial{state: o.Effect.Apply(f.state), p: f.p * o.Probability})
			}
		}
		frontier = next
	}

	merged := make(map[string]*Successor, len(frontier))
	for _, f := range frontier {
		if s, ok := merged[f.state.Key()]; ok {
			s.Probability += f.p
			continue
		}
		merged[f.state.Key()] = &Successor{State: f.state, Probability: f.p}
	}
	out := make([]Successor, 0, len(merged))
	for _, s := range merged {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State.Key() < out[j].State.Key() })
	return out
}

// Equal reports whether both chains hold equal networks.
func (c *XDTMC) Equal(o *XDTMC) bool {
	if len(c.tbns) != len(o.tbns) || !c.policy.Equal(o.policy) {
		return false
	}
	for def, t := range c.tbns {
		ot, ok := o.tbns[def]
		if !ok || !t.Equal(ot) {
			return false
		}
	}
	return true
}
