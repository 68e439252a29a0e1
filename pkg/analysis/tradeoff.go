package analysis

import (
	"fmt"
	"maps"
	"sort"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/metrics"
	"github.com/aretw0/xplanning/pkg/policy"
)

// Diff is the change of one QFunction from the solution to an alternative.
type Diff struct {
	Value      float64 `json:"value"`
	ScaledCost float64 `json:"scaled_cost"`
}

// Tradeoff compares an alternative with the solution per QFunction by scaled
// attribute cost: a lower cost is a gain, a higher one a loss, an equal one
// neither. A QFunction is never both.
type Tradeoff struct {
	Solution    *policy.Info    `json:"-"`
	Alternative *policy.Info    `json:"alternative"`
	Gains       map[string]Diff `json:"gains"`
	Losses      map[string]Diff `json:"losses"`
}

// NewTradeoff compares alt against soln over every QFunction of qspace.
func NewTradeoff(soln, alt *policy.Info, qspace *metrics.QSpace) (*Tradeoff, error) {
	t := &Tradeoff{
		Solution:    soln,
		Alternative: alt,
		Gains:       make(map[string]Diff),
		Losses:      make(map[string]Diff),
	}
	for _, q := range qspace.All() {
		name := q.Name()
		sv, sok := soln.QAValues[name]
		av, aok := alt.QAValues[name]
		sc, scok := soln.ScaledCosts[name]
		ac, acok := alt.ScaledCosts[name]
		if !sok || !aok || !scok || !acok {
			return nil, fmt.Errorf("%w: %s is not evaluated on both policies", domain.ErrQFunctionNotFound, name)
		}
		d := Diff{Value: av - sv, ScaledCost: ac - sc}
		switch {
		case ac < sc:
			t.Gains[name] = d
		case ac > sc:
			t.Losses[name] = d
		}
	}
	return t, nil
}

// GainNames returns the improved QFunctions, sorted.
func (t *Tradeoff) GainNames() []string { return sortedKeys(t.Gains) }

// LossNames returns the worsened QFunctions, sorted.
func (t *Tradeoff) LossNames() []string { return sortedKeys(t.Losses) }

// Equal compares both policies and every difference.
func (t *Tradeoff) Equal(o *Tradeoff) bool {
	return t.Solution.Equal(o.Solution) && t.Alternative.Equal(o.Alternative) &&
		maps.Equal(t.Gains, o.Gains) && maps.Equal(t.Losses, o.Losses)
}

func sortedKeys(m map[string]Diff) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
