package metrics_test

import (
	"testing"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roomFixture struct {
	room, door *domain.StateVarDefinition
	walk, jump *domain.Action
	def        *domain.ActionDefinition
	structure  metrics.TransitionStructure
}

func newRoomFixture(t *testing.T) *roomFixture {
	f := &roomFixture{
		room: domain.MustStateVarDefinition("room", domain.Int(1), domain.Int(2)),
		door: domain.MustStateVarDefinition("door", domain.String("open"), domain.String("closed")),
		walk: domain.NewAction("walk", nil),
		jump: domain.NewAction("jump", nil),
	}
	var err error
	f.def, err = domain.NewActionDefinition("move", f.walk, f.jump)
	require.NoError(t, err)
	f.structure, err = metrics.NewTransitionStructure(f.def,
		[]*domain.StateVarDefinition{f.room, f.door},
		[]*domain.StateVarDefinition{f.room})
	require.NoError(t, err)
	return f
}

func (f *roomFixture) transition(t *testing.T, a *domain.Action, from int64, door string, to int64) metrics.Transition {
	srcRoom, err := f.room.Var(domain.Int(from))
	require.NoError(t, err)
	srcDoor, err := f.door.Var(domain.String(door))
	require.NoError(t, err)
	dst, err := f.room.Var(domain.Int(to))
	require.NoError(t, err)
	tr, err := metrics.NewTransition(f.structure, a, []domain.StateVar{srcRoom, srcDoor}, []domain.StateVar{dst})
	require.NoError(t, err)
	return tr
}

func TestTransition_Validation(t *testing.T) {
	f := newRoomFixture(t)
	other := domain.NewAction("fly", nil)
	_, err := metrics.NewTransition(f.structure, other, nil, nil)
	assert.ErrorIs(t, err, domain.ErrIncompatibleAction)

	door, _ := f.door.Var(domain.String("open"))
	_, err = metrics.NewTransition(f.structure, f.walk, nil, []domain.StateVar{door})
	assert.ErrorIs(t, err, domain.ErrIncompatibleVar, "door is not a destination variable")

	tr := f.transition(t, f.walk, 1, "open", 2)
	v, err := tr.DestValue(f.room)
	require.NoError(t, err)
	assert.Equal(t, domain.Int(2), v)
}

func TestTransitionFromStates_Projects(t *testing.T) {
	f := newRoomFixture(t)
	r1, _ := f.room.Var(domain.Int(1))
	r2, _ := f.room.Var(domain.Int(2))
	open, _ := f.door.Var(domain.String("open"))

	src := domain.MustStateVarTuple(r1, open)
	dst := domain.MustStateVarTuple(r2, open)
	tr, err := metrics.TransitionFromStates(f.structure, f.walk, src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Dest().Len(), "destination is projected to the structure")
	assert.True(t, tr.Equal(f.transition(t, f.walk, 1, "open", 2)))
}

func TestQFunction_ValueAndStructureCheck(t *testing.T) {
	f := newRoomFixture(t)
	collisions := metrics.NewCountQFunction("collisions", f.structure, func(tr metrics.Transition) (bool, error) {
		door, err := tr.SrcValue(f.door)
		return door == domain.String("closed") && tr.Action().Equal(f.walk), err
	})

	v, err := collisions.Value(f.transition(t, f.walk, 1, "closed", 2))
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = collisions.Value(f.transition(t, f.jump, 1, "closed", 2))
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	narrow := metrics.MustTransitionStructure(f.def, []*domain.StateVarDefinition{f.room}, nil)
	r1, _ := f.room.Var(domain.Int(1))
	tr, err := metrics.NewTransition(narrow, f.walk, []domain.StateVar{r1}, nil)
	require.NoError(t, err)
	_, err = collisions.Value(tr)
	assert.ErrorIs(t, err, domain.ErrIncompatibleVar)

	negative := metrics.NewQFunction("debt", f.structure, func(metrics.Transition) (float64, error) { return -1, nil })
	_, err = negative.Value(f.transition(t, f.walk, 1, "open", 2))
	assert.Error(t, err)
}

func TestQFunction_Identity(t *testing.T) {
	f := newRoomFixture(t)
	zero := func(metrics.Transition) (float64, error) { return 0, nil }
	a := metrics.NewQFunction("time", f.structure, zero)
	b := metrics.NewQFunction("time", f.structure, zero)
	c := metrics.NewQFunction("time", metrics.MustTransitionStructure(f.def, nil, nil), zero)

	assert.True(t, metrics.Same(a, b))
	assert.False(t, metrics.Same(a, c))
}

func TestEventBasedMetric(t *testing.T) {
	f := newRoomFixture(t)
	bump := metrics.NewEvent("bump", f.structure, func(tr metrics.Transition) (bool, error) {
		door, err := tr.SrcValue(f.door)
		return door == domain.String("closed"), err
	})
	leap := metrics.NewEvent("leap", f.structure, func(tr metrics.Transition) (bool, error) {
		return tr.Action().Equal(f.jump), nil
	})

	m, err := metrics.NewEventBasedMetric("harm", f.structure,
		metrics.EventValue{Event: bump, Value: 5},
		metrics.EventValue{Event: leap, Value: 2},
	)
	require.NoError(t, err)
	q := metrics.NewEventBasedQFunction(m)

	v, err := q.Value(f.transition(t, f.walk, 1, "closed", 2))
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	v, err = q.Value(f.transition(t, f.jump, 1, "open", 2))
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = q.Value(f.transition(t, f.walk, 1, "open", 2))
	require.NoError(t, err)
	assert.Equal(t, 0.0, v, "no event means zero")

	_, err = q.Value(f.transition(t, f.jump, 1, "closed", 2))
	assert.ErrorIs(t, err, domain.ErrOverlappingEvents)

	assert.Equal(t, "bump", q.Events()[0].Event.Name(), "events keep priority order")
}

func TestEventBasedMetric_Validation(t *testing.T) {
	f := newRoomFixture(t)
	always := func(metrics.Transition) (bool, error) { return true, nil }
	ev := metrics.NewEvent("e", f.structure, always)

	_, err := metrics.NewEventBasedMetric("m", f.structure,
		metrics.EventValue{Event: ev, Value: 1}, metrics.EventValue{Event: ev, Value: 2})
	assert.ErrorIs(t, err, domain.ErrOverlappingEvents)

	_, err = metrics.NewEventBasedMetric("m", f.structure, metrics.EventValue{Event: ev, Value: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidDefinition)

	foreign := metrics.NewEvent("f", metrics.MustTransitionStructure(f.def, nil, nil), always)
	_, err = metrics.NewEventBasedMetric("m", f.structure, metrics.EventValue{Event: foreign, Value: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
}

func TestQSpace(t *testing.T) {
	f := newRoomFixture(t)
	zero := func(metrics.Transition) (float64, error) { return 0, nil }
	time := metrics.NewQFunction("time", f.structure, zero)
	cost := metrics.NewQFunction("cost", f.structure, zero)

	s, err := metrics.NewQSpace(time, cost)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	got, err := s.Get("cost")
	require.NoError(t, err)
	assert.True(t, metrics.Same(cost, got))

	_, err = s.Get("risk")
	assert.ErrorIs(t, err, domain.ErrQFunctionNotFound)

	_, err = metrics.NewQSpace(time, metrics.NewQFunction("time", f.structure, zero))
	assert.Error(t, err)
}
