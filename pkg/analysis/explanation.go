package analysis

import (
	"time"

	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/google/uuid"
)

// Alternative is a distinct alternative policy with its comparison against the
// solution. Target is the QFunction whose search produced it.
type Alternative struct {
	Target   string    `json:"target"`
	Tradeoff *Tradeoff `json:"tradeoff"`
}

// Explanation is the outcome of explaining a solution policy: its evaluation,
// the trade-offs of every distinct alternative, and the per-QFunction search
// outcomes including those that found nothing.
type Explanation struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	Solution     *policy.Info  `json:"solution"`
	Alternatives []Alternative `json:"alternatives"`
	Outcomes     []Outcome     `json:"outcomes"`
}

// NewExplanation assembles an explanation with a fresh ID.
func NewExplanation(solution *policy.Info, alternatives []Alternative, outcomes []Outcome) *Explanation {
	return &Explanation{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		Solution:     solution,
		Alternatives: alternatives,
		Outcomes:     outcomes,
	}
}

// Tradeoff returns the trade-off of the alternative found for target.
func (e *Explanation) Tradeoff(target string) (*Tradeoff, bool) {
	for _, a := range e.Alternatives {
		if a.Target == target {
			return a.Tradeoff, true
		}
	}
	return nil, false
}

// Outcome returns the search outcome of q.
func (e *Explanation) Outcome(q string) (Outcome, bool) {
	for _, o := range e.Outcomes {
		if o.QFunction == q {
			return o, true
		}
	}
	return Outcome{}, false
}
