package metrics

import (
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
)

// Event is a named condition on transitions, such as "collision at high speed".
type Event interface {
	Name() string
	Structure() TransitionStructure
	Occurred(t Transition) (bool, error)
}

// PredicateEvent is an Event backed by a Predicate.
type PredicateEvent struct {
	name      string
	structure TransitionStructure
	pred      Predicate
}

// NewEvent creates an event.
func NewEvent(name string, structure TransitionStructure, pred Predicate) *PredicateEvent {
	return &PredicateEvent{name: name, structure: structure, pred: pred}
}

func (e *PredicateEvent) Name() string                   { return e.name }
func (e *PredicateEvent) Structure() TransitionStructure { return e.structure }

func (e *PredicateEvent) Occurred(t Transition) (bool, error) { return e.pred(t) }

// EventValue assigns a QA value to an event.
type EventValue struct {
	Event Event
	Value float64
}

// EventBasedMetric assigns to a transition the value of the event that occurs on it.
// Events are ordered by priority (registration order) and must be mutually
// exclusive: a transition on which two events occur is a modeling error.
type EventBasedMetric struct {
	name      string
	structure TransitionStructure
	events    []EventValue
}

// NewEventBasedMetric builds a metric. Events must share the metric's structure,
// have distinct names, and carry non-negative values.
func NewEventBasedMetric(name string, structure TransitionStructure, events ...EventValue) (*EventBasedMetric, error) {
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if !ev.Event.Structure().Equal(structure) {
			return nil, fmt.Errorf("%w: event %s has structure %s, metric %s has %s",
				domain.ErrInvalidDefinition, ev.Event.Name(), ev.Event.Structure(), name, structure)
		}
		if _, dup := seen[ev.Event.Name()]; dup {
			return nil, fmt.Errorf("%w: event %s registered twice on %s", domain.ErrOverlappingEvents, ev.Event.Name(), name)
		}
		if ev.Value < 0 {
			return nil, fmt.Errorf("%w: event %s has negative value %v", domain.ErrInvalidDefinition, ev.Event.Name(), ev.Value)
		}
		seen[ev.Event.Name()] = struct{}{}
	}
	return &EventBasedMetric{name: name, structure: structure, events: append([]EventValue(nil), events...)}, nil
}

// Name returns the metric name.
func (m *EventBasedMetric) Name() string { return m.name }

// Structure returns the shared transition structure.
func (m *EventBasedMetric) Structure() TransitionStructure { return m.structure }

// Events returns the events in priority order.
func (m *EventBasedMetric) Events() []EventValue { return append([]EventValue(nil), m.events...) }

// Value returns the value of the event occurring on t, or 0 when none does.
// It fails with domain.ErrOverlappingEvents when more than one event occurs.
func (m *EventBasedMetric) Value(t Transition) (float64, error) {
	var (
		matched *EventValue
		value   float64
	)
	for i := range m.events {
		ev := &m.events[i]
		ok, err := ev.Event.Occurred(t)
		if err != nil {
			return 0, fmt.Errorf("event %s: %w", ev.Event.Name(), err)
		}
		if !ok {
			continue
		}
		if matched != nil {
			return 0, fmt.Errorf("%w: %s and %s both occur on %s",
				domain.ErrOverlappingEvents, matched.Event.Name(), ev.Event.Name(), t)
		}
		matched = ev
		value = ev.Value
	}
	return value, nil
}

// EventBasedQFunction is a QFunction whose value comes from an EventBasedMetric.
type EventBasedQFunction struct {
	metric *EventBasedMetric
}

// NewEventBasedQFunction wraps a metric.
func NewEventBasedQFunction(metric *EventBasedMetric) *EventBasedQFunction {
	return &EventBasedQFunction{metric: metric}
}

func (q *EventBasedQFunction) Name() string                   { return q.metric.name }
func (q *EventBasedQFunction) Structure() TransitionStructure { return q.metric.structure }

// Metric returns the underlying metric.
func (q *EventBasedQFunction) Metric() *EventBasedMetric { return q.metric }

// Events returns the metric's events in priority order.
func (q *EventBasedQFunction) Events() []EventValue { return q.metric.Events() }

// Value evaluates the metric.
func (q *EventBasedQFunction) Value(t Transition) (float64, error) {
	if err := checkStructure(q.metric.structure, t); err != nil {
		return 0, err
	}
	return q.metric.Value(t)
}
