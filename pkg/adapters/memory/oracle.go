package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/aretw0/xplanning/pkg/dtmc"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/metrics"
	"github.com/aretw0/xplanning/pkg/objectives"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/aretw0/xplanning/pkg/ports"
)

// Values are the scripted answers for one policy.
type Values struct {
	QA map[string]float64
	// Costs holds objective values by objective name. A missing objective is
	// computed from QA through the objective itself.
	Costs  map[string]float64
	Events map[string]map[string]float64
}

// OptimizeCall records one Optimize request.
type OptimizeCall struct {
	Objective   string
	Constraints []objectives.AttributeConstraint
}

type optimum struct {
	solution ports.Solution
	err      error
}

// Oracle is a scripted oracle: it answers queries from values registered per
// policy and optimizations from solutions registered per objective name. It
// implements ports.SessionFactory and is safe for concurrent use.
type Oracle struct {
	mu     sync.Mutex
	values map[string]Values
	optima map[string]optimum
	calls  []OptimizeCall
	opened int
	closed int
}

// NewOracle creates an oracle with no scripted answers.
func NewOracle() *Oracle {
	return &Oracle{
		values: make(map[string]Values),
		optima: make(map[string]optimum),
	}
}

// SetValues registers the answers for chains induced by p.
func (o *Oracle) SetValues(p *policy.Policy, v Values) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[p.Key()] = v
}

// SetOptimum registers the solution returned when objective is minimized.
func (o *Oracle) SetOptimum(objective string, sol ports.Solution) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.optima[objective] = optimum{solution: sol}
}

// FailOptimum makes minimizing objective fail with err.
func (o *Oracle) FailOptimum(objective string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.optima[objective] = optimum{err: err}
}

// Calls returns the Optimize requests received so far.
func (o *Oracle) Calls() []OptimizeCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]OptimizeCall(nil), o.calls...)
}

// Sessions returns how many sessions were opened and closed.
func (o *Oracle) Sessions() (opened, closed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened, o.closed
}

// Open implements ports.SessionFactory.
func (o *Oracle) Open(ctx context.Context) (ports.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++
	return &session{oracle: o}, nil
}

func (o *Oracle) lookup(op string, chain *dtmc.XDTMC) (Values, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.values[chain.Policy().Key()]
	if !ok {
		return Values{}, ports.NewOracleError(op, ports.ErrSolverInternal,
			fmt.Errorf("no values for policy %s", chain.Policy().Key()))
	}
	return v, nil
}

type session struct {
	oracle *Oracle
	once   sync.Once
}

func (s *session) QAValue(ctx context.Context, chain *dtmc.XDTMC, q metrics.QFunction) (float64, error) {
	v, err := s.oracle.lookup("qa_value", chain)
	if err != nil {
		return 0, err
	}
	qa, ok := v.QA[q.Name()]
	if !ok {
		return 0, ports.NewOracleError("qa_value", ports.ErrPropertyParse, fmt.Errorf("unknown qfunction %s", q.Name()))
	}
	return qa, nil
}

func (s *session) Cost(ctx context.Context, chain *dtmc.XDTMC, objective *objectives.AdditiveCostFunction) (float64, error) {
	v, err := s.oracle.lookup("cost", chain)
	if err != nil {
		return 0, err
	}
	if c, ok := v.Costs[objective.Name()]; ok {
		return c, nil
	}
	c, err := objective.Cost(v.QA)
	if err != nil {
		return 0, ports.NewOracleError("cost", ports.ErrPropertyParse, err)
	}
	return c, nil
}

func (s *session) EventCounts(ctx context.Context, chain *dtmc.XDTMC, q *metrics.EventBasedQFunction) (map[string]float64, error) {
	v, err := s.oracle.lookup("event_counts", chain)
	if err != nil {
		return nil, err
	}
	counts, ok := v.Events[q.Name()]
	if !ok {
		counts = make(map[string]float64)
		for _, e := range q.Events() {
			counts[e.Event.Name()] = 0
		}
		return counts, nil
	}
	return maps.Clone(counts), nil
}

func (s *session) Optimize(ctx context.Context, x *mdp.XMDP, objective *objectives.AdditiveCostFunction, constraints ...objectives.AttributeConstraint) (ports.Solution, error) {
	if err := ctx.Err(); err != nil {
		return ports.Solution{}, err
	}
	o := s.oracle
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, OptimizeCall{
		Objective:   objective.Name(),
		Constraints: append([]objectives.AttributeConstraint(nil), constraints...),
	})
	opt, ok := o.optima[objective.Name()]
	if !ok {
		return ports.NoSolution(ports.ReasonConstraintNotSatisfied), nil
	}
	return opt.solution, opt.err
}

func (s *session) Close() error {
	s.once.Do(func() {
		s.oracle.mu.Lock()
		s.oracle.closed++
		s.oracle.mu.Unlock()
	})
	return nil
}
