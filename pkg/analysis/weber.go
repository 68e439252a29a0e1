package analysis

import (
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
)

// WeberScale holds, per QFunction name, the relative change p a person
// notices. A significant decrease of v is v/(1+p); an increase is v·(1+p).
type WeberScale struct {
	percent map[string]float64
}

// NewWeberScale builds a scale; every ratio must be positive.
func NewWeberScale(percent map[string]float64) (*WeberScale, error) {
	w := &WeberScale{percent: make(map[string]float64, len(percent))}
	for q, p := range percent {
		if !(p > 0) {
			return nil, fmt.Errorf("%w: weber ratio %v for %s", domain.ErrInvalidDefinition, p, q)
		}
		w.percent[q] = p
	}
	return w, nil
}

// Ratio returns the ratio of q and whether the scale covers it.
func (w *WeberScale) Ratio(q string) (float64, bool) {
	p, ok := w.percent[q]
	return p, ok
}

// SignificantDecrease returns the highest value of q perceived as lower than v.
func (w *WeberScale) SignificantDecrease(q string, v float64) (float64, error) {
	p, ok := w.percent[q]
	if !ok {
		return 0, fmt.Errorf("%w: no weber ratio for %s", domain.ErrQFunctionNotFound, q)
	}
	return v / (1 + p), nil
}

// SignificantIncrease returns the lowest value of q perceived as higher than v.
func (w *WeberScale) SignificantIncrease(q string, v float64) (float64, error) {
	p, ok := w.percent[q]
	if !ok {
		return 0, fmt.Errorf("%w: no weber ratio for %s", domain.ErrQFunctionNotFound, q)
	}
	return v * (1 + p), nil
}
