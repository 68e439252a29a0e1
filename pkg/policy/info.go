package policy

import (
	"fmt"
	"maps"
	"sort"

	"github.com/aretw0/xplanning/pkg/domain"
)

// Info is a policy together with its evaluation: the expected value of each
// QFunction, the scaled attribute cost of each, the objective cost and, for
// event-based QFunctions, the expected occurrence count of each event.
// QFunctions and events are keyed by name. Info is treated as immutable.
type Info struct {
	Policy        *Policy                       `json:"-"`
	PolicyKey     string                        `json:"policy_key"`
	ObjectiveCost float64                       `json:"objective_cost"`
	QAValues      map[string]float64            `json:"qa_values"`
	ScaledCosts   map[string]float64            `json:"scaled_costs"`
	EventCounts   map[string]map[string]float64 `json:"event_counts,omitempty"`
}

// NewInfo returns an empty Info for p.
func NewInfo(p *Policy) *Info {
	return &Info{
		Policy:      p,
		PolicyKey:   p.Key(),
		QAValues:    make(map[string]float64),
		ScaledCosts: make(map[string]float64),
	}
}

// QAValue returns the expected value of the named QFunction.
func (i *Info) QAValue(name string) (float64, error) {
	v, ok := i.QAValues[name]
	if !ok {
		return 0, fmt.Errorf("%w: no QA value for %s", domain.ErrQFunctionNotFound, name)
	}
	return v, nil
}

// ScaledCost returns the scaled attribute cost of the named QFunction.
func (i *Info) ScaledCost(name string) (float64, error) {
	v, ok := i.ScaledCosts[name]
	if !ok {
		return 0, fmt.Errorf("%w: no scaled cost for %s", domain.ErrQFunctionNotFound, name)
	}
	return v, nil
}

// QANames returns the evaluated QFunction names, sorted.
func (i *Info) QANames() []string {
	names := make([]string, 0, len(i.QAValues))
	for n := range i.QAValues {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Equal compares infos by policy and QA values.
func (i *Info) Equal(o *Info) bool {
	if i == nil || o == nil {
		return i == o
	}
	return i.PolicyKey == o.PolicyKey && maps.Equal(i.QAValues, o.QAValues)
}

// Clone returns a deep copy sharing the immutable Policy.
func (i *Info) Clone() *Info {
	c := *i
	c.QAValues = maps.Clone(i.QAValues)
	c.ScaledCosts = maps.Clone(i.ScaledCosts)
	if i.EventCounts != nil {
		c.EventCounts = make(map[string]map[string]float64, len(i.EventCounts))
		for k, v := range i.EventCounts {
			c.EventCounts[k] = maps.Clone(v)
		}
	}
	return &c
}
