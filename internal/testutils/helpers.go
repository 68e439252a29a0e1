package testutils

import (
	"testing"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/metrics"
	"github.com/aretw0/xplanning/pkg/objectives"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/stretchr/testify/require"
)

// Robot is a small navigation problem shared by tests.
//
// The robot moves a -> b -> goal. Moving slowly always succeeds and takes 2
// time units; moving fast takes 1 unit, succeeds with probability 0.8 and is a
// risky move. Changing speed takes 0.5 units.
type Robot struct {
	Loc, Speed *domain.StateVarDefinition

	MoveB, MoveGoal *domain.Action
	Fast, Slow      *domain.Action

	MoveDef, SpeedDef, AnyDef *domain.ActionDefinition

	Time, Risk metrics.QFunction

	XMDP *mdp.XMDP

	// SlowPolicy drives slowly to the goal. FastPolicy speeds up first.
	SlowPolicy, FastPolicy *policy.Policy
}

// NewRobot builds the fixture and fails the test on any construction error.
func NewRobot(t testing.TB) *Robot {
	t.Helper()
	r := &Robot{}

	r.Loc = domain.MustStateVarDefinition("loc", domain.String("a"), domain.String("b"), domain.String("goal"))
	r.Speed = domain.MustStateVarDefinition("speed", domain.String("slow"), domain.String("fast"))

	r.MoveB = domain.NewAction("moveTo", []domain.Value{domain.String("b")})
	r.MoveGoal = domain.NewAction("moveTo", []domain.Value{domain.String("goal")})
	r.Fast = domain.NewAction("setSpeed", []domain.Value{domain.String("fast")})
	r.Slow = domain.NewAction("setSpeed", []domain.Value{domain.String("slow")})

	var err error
	r.MoveDef, err = domain.NewActionDefinition("moveTo", r.MoveB, r.MoveGoal)
	require.NoError(t, err)
	r.SpeedDef, err = domain.NewActionDefinition("setSpeed", r.Fast, r.Slow)
	require.NoError(t, err)
	r.AnyDef, err = domain.NewCompositeActionDefinition("any", r.MoveDef, r.SpeedDef)
	require.NoError(t, err)

	tf, err := mdp.NewTransitionFunction(r.movePSO(t), r.speedPSO(t))
	require.NoError(t, err)

	timeStructure := metrics.MustTransitionStructure(r.AnyDef, []*domain.StateVarDefinition{r.Speed}, nil)
	r.Time = metrics.NewQFunction("time", timeStructure, func(tr metrics.Transition) (float64, error) {
		if tr.Action().Name() == "setSpeed" {
			return 0.5, nil
		}
		speed, err := tr.SrcValue(r.Speed)
		if err != nil {
			return 0, err
		}
		if speed == domain.String("fast") {
			return 1, nil
		}
		return 2, nil
	})

	riskStructure := metrics.MustTransitionStructure(r.MoveDef, []*domain.StateVarDefinition{r.Speed}, nil)
	riskyMove := metrics.NewEvent("risky-move", riskStructure, func(tr metrics.Transition) (bool, error) {
		speed, err := tr.SrcValue(r.Speed)
		return speed == domain.String("fast"), err
	})
	riskMetric, err := metrics.NewEventBasedMetric("risk", riskStructure, metrics.EventValue{Event: riskyMove, Value: 1})
	require.NoError(t, err)
	r.Risk = metrics.NewEventBasedQFunction(riskMetric)

	qspace, err := metrics.NewQSpace(r.Time, r.Risk)
	require.NoError(t, err)

	cost, err := objectives.NewCostFunction("cost",
		objectives.Term{Cost: objectives.MustAttributeCostFunction(r.Time, 0, 1), Scaling: 0.6},
		objectives.Term{Cost: objectives.MustAttributeCostFunction(r.Risk, 0, 10), Scaling: 0.4},
	)
	require.NoError(t, err)

	states, err := mdp.NewStateSpace(r.Loc, r.Speed)
	require.NoError(t, err)
	actions, err := mdp.NewActionSpace(r.MoveDef, r.SpeedDef, r.AnyDef)
	require.NoError(t, err)

	r.XMDP, err = mdp.NewXMDP(mdp.Components{
		States:      states,
		Actions:     actions,
		Initial:     r.State("a", "slow"),
		Goal:        domain.MustStateVarTuple(r.locVar("goal")),
		Transitions: tf,
		QSpace:      qspace,
		Cost:        cost,
	})
	require.NoError(t, err)

	r.SlowPolicy = policy.Must(
		policy.Decision{State: r.State("a", "slow"), Action: r.MoveB},
		policy.Decision{State: r.State("b", "slow"), Action: r.MoveGoal},
	)
	r.FastPolicy = policy.Must(
		policy.Decision{State: r.State("a", "slow"), Action: r.Fast},
		policy.Decision{State: r.State("a", "fast"), Action: r.MoveB},
		policy.Decision{State: r.State("b", "fast"), Action: r.MoveGoal},
	)
	return r
}

// State returns the full state (loc, speed).
func (r *Robot) State(loc, speed string) domain.StateVarTuple {
	return domain.MustStateVarTuple(r.locVar(loc), r.speedVar(speed))
}

func (r *Robot) locVar(v string) domain.StateVar {
	sv, err := r.Loc.Var(domain.String(v))
	if err != nil {
		panic(err)
	}
	return sv
}

func (r *Robot) speedVar(v string) domain.StateVar {
	sv, err := r.Speed.Var(domain.String(v))
	if err != nil {
		panic(err)
	}
	return sv
}

func (r *Robot) movePSO(t testing.TB) *mdp.FactoredPSO {
	t.Helper()
	pre := mdp.NewPrecondition(r.MoveDef)
	require.NoError(t, pre.Add(r.MoveB, r.Loc, domain.String("a")))
	require.NoError(t, pre.Add(r.MoveGoal, r.Loc, domain.String("b")))

	locClass := mdp.MustEffectClass(r.Loc)
	desc := mdp.NewFormulaActionDescription(r.MoveDef, mdp.MustDiscriminantClass(r.Loc, r.Speed), locClass,
		mdp.FormulaFunc(func(d mdp.Discriminant, a *domain.Action) (mdp.ProbabilisticEffect, error) {
			from, err := d.Value(r.Loc)
			if err != nil {
				return mdp.ProbabilisticEffect{}, err
			}
			speed, err := d.Value(r.Speed)
			if err != nil {
				return mdp.ProbabilisticEffect{}, err
			}
			arrive := mdp.MustEffect(locClass, r.locVar(a.Params()[0].Str()))
			if speed == domain.String("slow") {
				return mdp.Deterministic(arrive), nil
			}
			stay := mdp.MustEffect(locClass, r.locVar(from.Str()))
			return mdp.NewProbabilisticEffect(locClass,
				mdp.Outcome{Effect: arrive, Probability: 0.8},
				mdp.Outcome{Effect: stay, Probability: 0.2},
			)
		}))

	pso, err := mdp.NewFactoredPSO(r.MoveDef, pre)
	require.NoError(t, err)
	require.NoError(t, pso.AddActionDescription(desc))
	return pso
}

func (r *Robot) speedPSO(t testing.TB) *mdp.FactoredPSO {
	t.Helper()
	pre := mdp.NewPrecondition(r.SpeedDef)
	require.NoError(t, pre.Add(r.Fast, r.Speed, domain.String("slow")))
	require.NoError(t, pre.Add(r.Slow, r.Speed, domain.String("fast")))

	speedClass := mdp.MustEffectClass(r.Speed)
	desc := mdp.NewTabularActionDescription(r.SpeedDef, mdp.MustDiscriminantClass(r.Speed), speedClass)
	for _, entry := range []struct {
		action   *domain.Action
		from, to string
	}{
		{r.Fast, "slow", "fast"},
		{r.Slow, "fast", "slow"},
	} {
		d, err := mdp.NewDiscriminant(mdp.MustDiscriminantClass(r.Speed), r.speedVar(entry.from))
		require.NoError(t, err)
		require.NoError(t, desc.Put(entry.action, d, mdp.Deterministic(mdp.MustEffect(speedClass, r.speedVar(entry.to)))))
	}

	pso, err := mdp.NewFactoredPSO(r.SpeedDef, pre)
	require.NoError(t, err)
	require.NoError(t, pso.AddActionDescription(desc))
	return pso
}
