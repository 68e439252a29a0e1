package objectives

import (
	"fmt"
	"math"

	"github.com/aretw0/xplanning/pkg/metrics"
)

// Criterion selects how costs accumulate over a run.
type Criterion string

const (
	// TotalCost minimizes the expected total cost of reaching the goal.
	TotalCost Criterion = "total_cost"
	// AverageCost minimizes the long-run average cost per step.
	AverageCost Criterion = "average_cost"
)

// Valid reports whether c is a known criterion.
func (c Criterion) Valid() bool { return c == TotalCost || c == AverageCost }

// PenaltyFunction prices the amount by which a soft bound is exceeded.
type PenaltyFunction interface {
	Penalty(excess float64) float64
}

// QuadraticPenalty charges Scale·excess².
type QuadraticPenalty struct {
	Scale float64
}

// Penalty returns Scale·excess² for positive excess and 0 otherwise.
func (p QuadraticPenalty) Penalty(excess float64) float64 {
	if excess <= 0 {
		return 0
	}
	return p.Scale * excess * excess
}

// AttributeConstraint bounds the expected value of one QFunction from above.
// A hard constraint must hold; a soft one may be violated at the price of its penalty.
type AttributeConstraint struct {
	QFunction  metrics.QFunction
	UpperBound float64
	Strict     bool
	Soft       bool
	Penalty    PenaltyFunction
}

// HardConstraint returns value(q) ≤ bound, or value(q) < bound when strict.
func HardConstraint(q metrics.QFunction, bound float64, strict bool) AttributeConstraint {
	return AttributeConstraint{QFunction: q, UpperBound: bound, Strict: strict}
}

// SoftConstraint returns value(q) ≤ bound, priced by penalty when violated.
func SoftConstraint(q metrics.QFunction, bound float64, penalty PenaltyFunction) AttributeConstraint {
	return AttributeConstraint{QFunction: q, UpperBound: bound, Soft: true, Penalty: penalty}
}

// Satisfied reports whether value meets the bound.
func (c AttributeConstraint) Satisfied(value float64) bool {
	if c.Strict {
		return value < c.UpperBound
	}
	return value <= c.UpperBound
}

// Cost returns the penalty of value: 0 when satisfied, +Inf for a violated hard
// constraint, and the penalty of the excess for a soft one.
func (c AttributeConstraint) Cost(value float64) float64 {
	if c.Satisfied(value) {
		return 0
	}
	if !c.Soft || c.Penalty == nil {
		return math.Inf(1)
	}
	return c.Penalty.Penalty(value - c.UpperBound)
}

func (c AttributeConstraint) String() string {
	op := "<="
	if c.Strict {
		op = "<"
	}
	kind := "hard"
	if c.Soft {
		kind = "soft"
	}
	return fmt.Sprintf("%s %s %g (%s)", c.QFunction.Name(), op, c.UpperBound, kind)
}
