package objectives

import (
	"fmt"
	"math"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/metrics"
)

// AttributeCostFunction maps the value of one QFunction linearly onto a cost:
// cost = a + b·value, with b > 0.
type AttributeCostFunction struct {
	qfunc metrics.QFunction
	a, b  float64
}

// NewAttributeCostFunction creates a linear cost curve for q.
func NewAttributeCostFunction(q metrics.QFunction, a, b float64) (*AttributeCostFunction, error) {
	if !(b > 0) || math.IsInf(b, 0) || math.IsNaN(a) || math.IsInf(a, 0) {
		return nil, fmt.Errorf("%w: cost curve of %s needs b > 0 (a=%v, b=%v)", domain.ErrInvalidCostFunction, q.Name(), a, b)
	}
	return &AttributeCostFunction{qfunc: q, a: a, b: b}, nil
}

// MustAttributeCostFunction is like NewAttributeCostFunction but panics on error.
func MustAttributeCostFunction(q metrics.QFunction, a, b float64) *AttributeCostFunction {
	f, err := NewAttributeCostFunction(q, a, b)
	if err != nil {
		panic(err)
	}
	return f
}

// QFunction returns the measured QFunction.
func (f *AttributeCostFunction) QFunction() metrics.QFunction { return f.qfunc }

// Intercept returns a.
func (f *AttributeCostFunction) Intercept() float64 { return f.a }

// Slope returns b.
func (f *AttributeCostFunction) Slope() float64 { return f.b }

// Cost returns a + b·value.
func (f *AttributeCostFunction) Cost(value float64) float64 { return f.a + f.b*value }

// Inverse returns the QA value whose cost is cost.
func (f *AttributeCostFunction) Inverse(cost float64) float64 { return (cost - f.a) / f.b }

func (f *AttributeCostFunction) String() string {
	return fmt.Sprintf("%s: %g + %g·v", f.qfunc.Name(), f.a, f.b)
}
