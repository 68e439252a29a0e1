package mdp

import (
	"errors"
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/metrics"
	"github.com/aretw0/xplanning/pkg/objectives"
)

// Components gathers the parts of an XMDP.
type Components struct {
	States      *StateSpace
	Actions     *ActionSpace
	Initial     domain.StateVarTuple
	Goal        domain.StateVarTuple
	Transitions *TransitionFunction
	QSpace      *metrics.QSpace
	Cost        *objectives.CostFunction
	// Criterion defaults to objectives.TotalCost.
	Criterion objectives.Criterion
}

// XMDP is a factored, multi-objective MDP problem instance. It is immutable.
type XMDP struct {
	c Components
}

// NewXMDP validates the components and assembles the problem.
func NewXMDP(c Components) (*XMDP, error) {
	if c.States == nil || c.Actions == nil || c.Transitions == nil || c.QSpace == nil || c.Cost == nil {
		return nil, fmt.Errorf("%w: missing component", domain.ErrInvalidModel)
	}
	if c.Criterion == "" {
		c.Criterion = objectives.TotalCost
	}
	if !c.Criterion.Valid() {
		return nil, fmt.Errorf("%w: unknown criterion %q", domain.ErrInvalidModel, c.Criterion)
	}

	var errs []error
	if !c.States.IsFull(c.Initial) {
		errs = append(errs, fmt.Errorf("initial state %s does not assign every state variable", c.Initial))
	}
	for _, def := range c.Goal.Definitions() {
		if !c.States.Contains(def) {
			errs = append(errs, fmt.Errorf("goal uses unknown variable %s", def.Name()))
		}
	}
	if c.Criterion == objectives.TotalCost && c.Goal.IsEmpty() {
		errs = append(errs, errors.New("total cost criterion needs a goal"))
	}
	for _, pso := range c.Transitions.PSOs() {
		def := pso.ActionDefinition()
		if got, err := c.Actions.Definition(def.Name()); err != nil || got != def {
			errs = append(errs, fmt.Errorf("PSO for %s is outside the action space", def))
		}
	}
	for _, q := range c.QSpace.All() {
		if !c.Cost.Contains(q) {
			errs = append(errs, fmt.Errorf("cost function %s has no term for %s", c.Cost.Name(), q.Name()))
		}
	}
	for _, q := range c.Cost.QFunctions() {
		if !c.QSpace.Contains(q) {
			errs = append(errs, fmt.Errorf("cost function %s uses %s outside the QSpace", c.Cost.Name(), q.Name()))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidModel, errors.Join(errs...))
	}
	return &XMDP{c: c}, nil
}

func (x *XMDP) StateSpace() *StateSpace                 { return x.c.States }
func (x *XMDP) ActionSpace() *ActionSpace               { return x.c.Actions }
func (x *XMDP) InitialState() domain.StateVarTuple      { return x.c.Initial }
func (x *XMDP) Goal() domain.StateVarTuple              { return x.c.Goal }
func (x *XMDP) TransitionFunction() *TransitionFunction { return x.c.Transitions }
func (x *XMDP) QSpace() *metrics.QSpace                 { return x.c.QSpace }
func (x *XMDP) CostFunction() *objectives.CostFunction  { return x.c.Cost }
func (x *XMDP) Criterion() objectives.Criterion         { return x.c.Criterion }

// IsGoal reports whether state satisfies the goal predicate. Without a goal no
// state is a goal.
func (x *XMDP) IsGoal(state domain.StateVarTuple) bool {
	return !x.c.Goal.IsEmpty() && state.Matches(x.c.Goal)
}

// ApplicableActions returns the actions of atomic definitions that may be taken
// in state, in action space order.
func (x *XMDP) ApplicableActions(state domain.StateVarTuple) ([]*domain.Action, error) {
	var out []*domain.Action
	for _, def := range x.c.Actions.Definitions() {
		if def.IsComposite() {
			continue
		}
		for _, a := range def.Actions() {
			ok, err := x.c.Transitions.IsApplicable(def, a, state)
			if errors.Is(err, domain.ErrActionDefinitionNotFound) {
				break
			}
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

// Validate checks every distribution reachable through the preconditions.
func (x *XMDP) Validate(eps float64) error {
	for _, pso := range x.c.Transitions.PSOs() {
		if err := pso.Validate(eps); err != nil {
			return fmt.Errorf("PSO %s: %w", pso.ActionDefinition(), err)
		}
	}
	return nil
}
