package mdp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/xplanning/pkg/domain"
)

// DefaultTolerance is the tolerance used when checking that probabilities sum to one.
const DefaultTolerance = 1e-9

// Outcome pairs an Effect with its probability.
type Outcome struct {
	Effect      Effect
	Probability float64
}

// ProbabilisticEffect is a distribution over the effects of one EffectClass.
// It is immutable. Probabilities are not required to sum to one at construction;
// use Validate to check a distribution.
type ProbabilisticEffect struct {
	class    EffectClass
	outcomes []Outcome // sorted by effect key
	key      string
}

// NewProbabilisticEffect builds a distribution. Repeated effects are merged by
// adding their probabilities.
func NewProbabilisticEffect(class EffectClass, outcomes ...Outcome) (ProbabilisticEffect, error) {
	merged := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		if !o.Effect.class.Equal(class) {
			return ProbabilisticEffect{}, fmt.Errorf("%w: effect %s is not in %s",
				domain.ErrIncompatibleEffectClass, o.Effect, class)
		}
		if o.Probability < 0 || math.IsNaN(o.Probability) {
			return ProbabilisticEffect{}, fmt.Errorf("%w: probability %v for %s",
				domain.ErrInvalidDistribution, o.Probability, o.Effect)
		}
		k := o.Effect.Key()
		if prev, ok := merged[k]; ok {
			prev.Probability += o.Probability
			merged[k] = prev
			continue
		}
		merged[k] = o
	}

	sorted := make([]Outcome, 0, len(merged))
	for _, o := range merged {
		sorted = append(sorted, o)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Effect.Key() < sorted[j].Effect.Key() })

	var sb strings.Builder
	sb.WriteString(class.Key())
	for _, o := range sorted {
		sb.WriteByte('|')
		sb.WriteString(o.Effect.Key())
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(o.Probability, 'g', -1, 64))
	}
	return ProbabilisticEffect{class: class, outcomes: sorted, key: sb.String()}, nil
}

// Deterministic returns the distribution that yields e with probability one.
func Deterministic(e Effect) ProbabilisticEffect {
	pe, _ := NewProbabilisticEffect(e.class, Outcome{Effect: e, Probability: 1})
	return pe
}

// Class returns the effect class of the distribution.
func (p ProbabilisticEffect) Class() EffectClass { return p.class }

// Outcomes returns the effects with their probabilities, ordered by effect key.
func (p ProbabilisticEffect) Outcomes() []Outcome {
	return append([]Outcome(nil), p.outcomes...)
}

// Len returns the number of distinct effects.
func (p ProbabilisticEffect) Len() int { return len(p.outcomes) }

// Probability returns the probability of e, zero when absent.
func (p ProbabilisticEffect) Probability(e Effect) float64 {
	k := e.Key()
	for _, o := range p.outcomes {
		if o.Effect.Key() == k {
			return o.Probability
		}
	}
	return 0
}

// Sum returns the total probability mass.
func (p ProbabilisticEffect) Sum() float64 {
	var sum float64
	for _, o := range p.outcomes {
		sum += o.Probability
	}
	return sum
}

// Validate checks that the probabilities sum to one within eps.
func (p ProbabilisticEffect) Validate(eps float64) error {
	if sum := p.Sum(); math.Abs(sum-1) > eps {
		return fmt.Errorf("%w: probabilities over %s sum to %v", domain.ErrInvalidDistribution, p.class, sum)
	}
	return nil
}

// Key returns the canonical encoding of the distribution.
func (p ProbabilisticEffect) Key() string { return p.key }

// Equal compares distributions by content.
func (p ProbabilisticEffect) Equal(o ProbabilisticEffect) bool { return p.key == o.key }

func (p ProbabilisticEffect) String() string {
	parts := make([]string, len(p.outcomes))
	for i, o := range p.outcomes {
		parts[i] = fmt.Sprintf("%s:%g", o.Effect, o.Probability)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
