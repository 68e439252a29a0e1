package explicit

import (
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/metrics"
)

// ObjectiveIndex is the reward structure of the objective cost function.
const ObjectiveIndex = 1

// RewardIndex numbers the reward structures of an exported model: the
// objective is 1 and the QFunctions follow as 2..n+1 in QSpace order.
type RewardIndex struct {
	objective string
	names     []string
	byName    map[string]int
}

// NewRewardIndex builds the index for the named objective over qspace.
func NewRewardIndex(objective string, qspace *metrics.QSpace) *RewardIndex {
	r := &RewardIndex{objective: objective, byName: make(map[string]int, qspace.Len())}
	for i, q := range qspace.All() {
		r.names = append(r.names, q.Name())
		r.byName[q.Name()] = i + 2
	}
	return r
}

// Objective returns the objective name.
func (r *RewardIndex) Objective() string { return r.objective }

// Len returns the number of reward structures, objective included.
func (r *RewardIndex) Len() int { return len(r.names) + 1 }

// Index returns the reward structure of the named QFunction.
func (r *RewardIndex) Index(name string) (int, error) {
	i, ok := r.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrQFunctionNotFound, name)
	}
	return i, nil
}

// Name returns the QFunction name of reward structure i, or the objective name for 1.
func (r *RewardIndex) Name(i int) (string, error) {
	switch {
	case i == ObjectiveIndex:
		return r.objective, nil
	case i >= 2 && i <= len(r.names)+1:
		return r.names[i-2], nil
	}
	return "", fmt.Errorf("%w: reward structure %d", domain.ErrQFunctionNotFound, i)
}

// Values maps solver results keyed by reward structure back to the objective
// value and the QA values by name. Every structure must be present.
func (r *RewardIndex) Values(results map[int]float64) (float64, map[string]float64, error) {
	obj, ok := results[ObjectiveIndex]
	if !ok {
		return 0, nil, fmt.Errorf("%w: no result for objective %s", domain.ErrQFunctionNotFound, r.objective)
	}
	qa := make(map[string]float64, len(r.names))
	for i, name := range r.names {
		v, ok := results[i+2]
		if !ok {
			return 0, nil, fmt.Errorf("%w: no result for %s", domain.ErrQFunctionNotFound, name)
		}
		qa[name] = v
	}
	return obj, qa, nil
}

// EventKey names the occurrence indicator of event on QFunction q.
func EventKey(q, event string) string { return q + "." + event }
