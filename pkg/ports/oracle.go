package ports

import (
	"context"

	"github.com/aretw0/xplanning/pkg/dtmc"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/metrics"
	"github.com/aretw0/xplanning/pkg/objectives"
	"github.com/aretw0/xplanning/pkg/policy"
)

// ModelEvaluator computes expected values on the chain a policy induces.
// Results are totals until the goal under objectives.TotalCost and long-run
// averages under objectives.AverageCost. Failures are *OracleError values;
// a failed query is never reported as 0.
type ModelEvaluator interface {
	// QAValue returns the expected value of q.
	QAValue(ctx context.Context, chain *dtmc.XDTMC, q metrics.QFunction) (float64, error)

	// Cost returns the expected value of objective.
	Cost(ctx context.Context, chain *dtmc.XDTMC, objective *objectives.AdditiveCostFunction) (float64, error)

	// EventCounts returns the expected number of occurrences of each event of q, keyed by event name.
	EventCounts(ctx context.Context, chain *dtmc.XDTMC, q *metrics.EventBasedQFunction) (map[string]float64, error)
}

// Reason explains why an optimizer found no policy.
type Reason string

const (
	// ReasonGoalNotReached means no policy reaches the goal with probability one.
	ReasonGoalNotReached Reason = "goal_not_reached"
	// ReasonConstraintNotSatisfied means no policy meets the constraints.
	ReasonConstraintNotSatisfied Reason = "constraint_not_satisfied"
)

// Solution is the result of an optimization: a policy, or the reason there is none.
// An infeasible problem is a Solution, not an error.
type Solution struct {
	Policy *policy.Policy
	Reason Reason
}

// Solved wraps an optimal policy.
func Solved(p *policy.Policy) Solution { return Solution{Policy: p} }

// NoSolution reports an infeasible problem.
func NoSolution(reason Reason) Solution { return Solution{Reason: reason} }

// Found reports whether the solution carries a policy.
func (s Solution) Found() bool { return s.Policy != nil }

// PolicyOptimizer computes an optimal policy of an XMDP.
type PolicyOptimizer interface {
	// Optimize minimizes objective subject to constraints under the XMDP's criterion.
	Optimize(ctx context.Context, x *mdp.XMDP, objective *objectives.AdditiveCostFunction, constraints ...objectives.AttributeConstraint) (Solution, error)
}

// Session is one connection to an oracle. It is used by a single goroutine.
type Session interface {
	ModelEvaluator
	PolicyOptimizer
	Close() error
}

// SessionFactory opens independent sessions, one per worker.
type SessionFactory interface {
	Open(ctx context.Context) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context) (Session, error)

// Open calls f.
func (f SessionFactoryFunc) Open(ctx context.Context) (Session, error) { return f(ctx) }
