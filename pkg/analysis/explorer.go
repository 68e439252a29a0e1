package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/metrics"
	"github.com/aretw0/xplanning/pkg/objectives"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/aretw0/xplanning/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// ReasonNoRoom means the QFunction's attribute cost cannot drop by a full step
// without its value going negative.
const ReasonNoRoom ports.Reason = "no_room"

// Outcome is the result of the alternative search for one QFunction.
type Outcome struct {
	QFunction string `json:"qfunction"`
	// Objective names the n-1 objective that was minimized.
	Objective string `json:"objective,omitempty"`
	// Bound is the upper bound imposed on the QFunction's value.
	Bound  float64      `json:"bound"`
	Found  bool         `json:"found"`
	Reason ports.Reason `json:"reason,omitempty"`
	// Duplicate marks a policy equal to the solution or to an earlier outcome.
	Duplicate bool           `json:"duplicate,omitempty"`
	Policy    *policy.Policy `json:"-"`
}

// Explorer searches for Pareto-optimal alternatives to a solution policy, one
// QFunction at a time: it asks the optimizer for the best policy under the
// remaining objectives whose attribute cost on that QFunction is at least one
// step lower than the solution's.
type Explorer struct {
	factory ports.SessionFactory
	opts    options
}

// NewExplorer creates an explorer that opens one oracle session per worker.
func NewExplorer(factory ports.SessionFactory, opts ...Option) *Explorer {
	return &Explorer{factory: factory, opts: newOptions(opts)}
}

// Search runs every per-QFunction search and returns the outcomes in QSpace
// order. Infeasible searches are outcomes, not errors; any other oracle error
// cancels the remaining searches and is returned.
func (e *Explorer) Search(ctx context.Context, x *mdp.XMDP, solution *policy.Info) ([]Outcome, error) {
	qfuncs := x.QSpace().All()
	outcomes := make([]Outcome, len(qfuncs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.concurrency)
	for i, q := range qfuncs {
		i, q := i, q
		g.Go(func() error {
			out, err := e.searchOne(gctx, x, solution, q)
			if err != nil {
				return fmt.Errorf("alternative for %s: %w", q.Name(), err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	markDuplicates(solution.Policy, outcomes)
	return outcomes, nil
}

func (e *Explorer) searchOne(ctx context.Context, x *mdp.XMDP, solution *policy.Info, q metrics.QFunction) (out Outcome, err error) {
	ev := &SearchEvent{QFunction: q.Name()}
	e.opts.hooks.searchStart(ctx, ev)
	start := time.Now()
	defer func() {
		ev.Found, ev.Reason, ev.Err, ev.Duration = out.Found, out.Reason, err, time.Since(start)
		e.opts.hooks.searchDone(ctx, ev)
	}()

	session, err := e.factory.Open(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			e.opts.logger.Warn("failed to close oracle session", "qa", q.Name(), "err", cerr)
		}
	}()
	return e.search(ctx, session, x, solution, q)
}

func (e *Explorer) search(ctx context.Context, optimizer ports.PolicyOptimizer, x *mdp.XMDP, solution *policy.Info, q metrics.QFunction) (Outcome, error) {
	name := q.Name()
	out := Outcome{QFunction: name}

	v, ok := solution.QAValues[name]
	if !ok {
		return out, fmt.Errorf("%w: solution has no value for %s", domain.ErrQFunctionNotFound, name)
	}
	cost := x.CostFunction()
	acf, err := cost.AttributeCostFunction(q)
	if err != nil {
		return out, err
	}
	out.Bound = acf.Inverse(acf.Cost(v) - e.opts.step)
	if out.Bound < 0 {
		out.Reason = ReasonNoRoom
		e.opts.logger.Debug("no room to improve", "qa", name, "value", v)
		return out, nil
	}

	objective, err := cost.Without(q)
	if err != nil {
		return out, err
	}
	out.Objective = objective.Name()

	constraints := []objectives.AttributeConstraint{objectives.HardConstraint(q, out.Bound, false)}
	if w := e.opts.weber; w != nil {
		if _, ok := w.Ratio(name); ok {
			soft, err := w.SignificantDecrease(name, v)
			if err != nil {
				return out, err
			}
			constraints = append(constraints,
				objectives.SoftConstraint(q, soft, objectives.QuadraticPenalty{Scale: solution.ObjectiveCost}))
		}
	}

	sol, err := optimizer.Optimize(ctx, x, objective, constraints...)
	if err != nil {
		return out, err
	}
	if !sol.Found() {
		out.Reason = sol.Reason
		e.opts.logger.Info("no alternative", "qa", name, "reason", sol.Reason)
		return out, nil
	}
	out.Found = true
	out.Policy = sol.Policy
	e.opts.logger.Info("alternative found", "qa", name, "policy", sol.Policy.Key())
	return out, nil
}

// markDuplicates flags found outcomes whose policy equals the solution or an
// earlier outcome's policy.
func markDuplicates(solution *policy.Policy, outcomes []Outcome) {
	seen := make(map[string]struct{}, len(outcomes)+1)
	if solution != nil {
		seen[solution.Key()] = struct{}{}
	}
	for i := range outcomes {
		if !outcomes[i].Found {
			continue
		}
		k := outcomes[i].Policy.Key()
		if _, dup := seen[k]; dup {
			outcomes[i].Duplicate = true
			continue
		}
		seen[k] = struct{}{}
	}
}

// Alternatives returns the distinct alternative policies of outcomes, in order.
func Alternatives(outcomes []Outcome) []*policy.Policy {
	var out []*policy.Policy
	for _, o := range outcomes {
		if o.Found && !o.Duplicate {
			out = append(out, o.Policy)
		}
	}
	return out
}
