package objectives

import (
	"fmt"
	"math"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/metrics"
)

// Term is one scaled component of an additive cost function.
type Term struct {
	Cost    *AttributeCostFunction
	Scaling float64
}

// AdditiveCostFunction is Σ kᵢ·(aᵢ + bᵢ·vᵢ) over its terms.
type AdditiveCostFunction struct {
	name  string
	terms []Term
	index map[string]int // metrics.Key -> term position
}

// NewAdditiveCostFunction builds a named cost function. Scaling constants must be
// positive and each QFunction may appear once.
func NewAdditiveCostFunction(name string, terms ...Term) (*AdditiveCostFunction, error) {
	f := &AdditiveCostFunction{name: name, index: make(map[string]int, len(terms))}
	for _, t := range terms {
		if t.Cost == nil {
			return nil, fmt.Errorf("%w: nil term in %s", domain.ErrInvalidCostFunction, name)
		}
		if !(t.Scaling > 0) || math.IsInf(t.Scaling, 0) {
			return nil, fmt.Errorf("%w: scaling constant %v for %s in %s",
				domain.ErrInvalidCostFunction, t.Scaling, t.Cost.QFunction().Name(), name)
		}
		k := metrics.Key(t.Cost.QFunction())
		if _, dup := f.index[k]; dup {
			return nil, fmt.Errorf("%w: %s appears twice in %s", domain.ErrInvalidCostFunction, t.Cost.QFunction().Name(), name)
		}
		f.index[k] = len(f.terms)
		f.terms = append(f.terms, t)
	}
	return f, nil
}

// Name returns the cost function name.
func (f *AdditiveCostFunction) Name() string { return f.name }

// Terms returns the terms in declaration order.
func (f *AdditiveCostFunction) Terms() []Term { return append([]Term(nil), f.terms...) }

// QFunctions returns the QFunctions of the terms in declaration order.
func (f *AdditiveCostFunction) QFunctions() []metrics.QFunction {
	out := make([]metrics.QFunction, len(f.terms))
	for i, t := range f.terms {
		out[i] = t.Cost.QFunction()
	}
	return out
}

// Contains reports whether the function has a term for q.
func (f *AdditiveCostFunction) Contains(q metrics.QFunction) bool {
	_, ok := f.index[metrics.Key(q)]
	return ok
}

func (f *AdditiveCostFunction) term(q metrics.QFunction) (Term, error) {
	i, ok := f.index[metrics.Key(q)]
	if !ok {
		return Term{}, fmt.Errorf("%w: %s in %s", domain.ErrAttributeCostFunctionNotFound, q.Name(), f.name)
	}
	return f.terms[i], nil
}

// AttributeCostFunction returns the cost curve registered for q.
func (f *AdditiveCostFunction) AttributeCostFunction(q metrics.QFunction) (*AttributeCostFunction, error) {
	t, err := f.term(q)
	if err != nil {
		return nil, err
	}
	return t.Cost, nil
}

// ScalingConstant returns the scaling constant of q.
func (f *AdditiveCostFunction) ScalingConstant(q metrics.QFunction) (float64, error) {
	t, err := f.term(q)
	if err != nil {
		return 0, err
	}
	return t.Scaling, nil
}

// ScaledCost returns k·(a + b·value) for q.
func (f *AdditiveCostFunction) ScaledCost(q metrics.QFunction, value float64) (float64, error) {
	t, err := f.term(q)
	if err != nil {
		return 0, err
	}
	return t.Scaling * t.Cost.Cost(value), nil
}

// Cost sums the scaled costs of the given QA values, keyed by QFunction name.
// Every term must have a value.
func (f *AdditiveCostFunction) Cost(values map[string]float64) (float64, error) {
	var sum float64
	for _, t := range f.terms {
		q := t.Cost.QFunction()
		v, ok := values[q.Name()]
		if !ok {
			return 0, fmt.Errorf("%w: no value for %s", domain.ErrQFunctionNotFound, q.Name())
		}
		sum += t.Scaling * t.Cost.Cost(v)
	}
	return sum, nil
}

// TransitionCost returns the cost of a single transition. Only terms whose
// QFunction measures the transition's structure contribute.
func (f *AdditiveCostFunction) TransitionCost(tr metrics.Transition) (float64, error) {
	var sum float64
	for _, t := range f.terms {
		q := t.Cost.QFunction()
		if !q.Structure().Equal(tr.Structure()) {
			continue
		}
		v, err := q.Value(tr)
		if err != nil {
			return 0, err
		}
		sum += t.Scaling * t.Cost.Cost(v)
	}
	return sum, nil
}

// Without returns the objective over every QFunction except q, named
// "cost_no_<q>". Remaining terms keep their cost curves and scaling constants.
func (f *AdditiveCostFunction) Without(q metrics.QFunction) (*AdditiveCostFunction, error) {
	if _, err := f.term(q); err != nil {
		return nil, err
	}
	rest := make([]Term, 0, len(f.terms)-1)
	for _, t := range f.terms {
		if metrics.Same(t.Cost.QFunction(), q) {
			continue
		}
		rest = append(rest, t)
	}
	return NewAdditiveCostFunction("cost_no_"+q.Name(), rest...)
}

// CostFunction is the MDP objective: an additive cost function whose scaling
// constants lie in (0, 1] and sum to one.
type CostFunction struct {
	*AdditiveCostFunction
}

// scalingTolerance bounds the accepted deviation of Σ kᵢ from one.
const scalingTolerance = 1e-9

// NewCostFunction validates and builds the MDP objective.
func NewCostFunction(name string, terms ...Term) (*CostFunction, error) {
	add, err := NewAdditiveCostFunction(name, terms...)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: %s has no terms", domain.ErrInvalidCostFunction, name)
	}
	var sum float64
	for _, t := range terms {
		if t.Scaling > 1 {
			return nil, fmt.Errorf("%w: scaling constant %v of %s exceeds 1",
				domain.ErrInvalidCostFunction, t.Scaling, t.Cost.QFunction().Name())
		}
		sum += t.Scaling
	}
	if math.Abs(sum-1) > scalingTolerance {
		return nil, fmt.Errorf("%w: scaling constants of %s sum to %v", domain.ErrInvalidCostFunction, name, sum)
	}
	return &CostFunction{AdditiveCostFunction: add}, nil
}
