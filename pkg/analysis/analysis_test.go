package analysis_test

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aretw0/xplanning/internal/testutils"
	"github.com/aretw0/xplanning/pkg/adapters/memory"
	"github.com/aretw0/xplanning/pkg/analysis"
	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/modelfile"
	"github.com/aretw0/xplanning/pkg/objectives"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/aretw0/xplanning/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// robotOracle scripts the exact values of the robot policies:
// slow takes 4 time units with no risky move, fast takes 0.5 + 2/0.8 = 3
// units with 2.5 expected risky moves.
func robotOracle(r *testutils.Robot) *memory.Oracle {
	o := memory.NewOracle()
	o.SetValues(r.SlowPolicy, memory.Values{
		QA: map[string]float64{"time": 4, "risk": 0},
	})
	o.SetValues(r.FastPolicy, memory.Values{
		QA:     map[string]float64{"time": 3, "risk": 2.5},
		Events: map[string]map[string]float64{"risk": {"risky-move": 2.5}},
	})
	return o
}

func evaluate(t *testing.T, r *testutils.Robot, o *memory.Oracle, p *policy.Policy, opts ...analysis.Option) *policy.Info {
	t.Helper()
	session, err := o.Open(context.Background())
	require.NoError(t, err)
	defer session.Close()

	info, err := analysis.NewEvaluator(opts...).Evaluate(context.Background(), session, r.XMDP, p)
	require.NoError(t, err)
	return info
}

func findCall(t *testing.T, calls []memory.OptimizeCall, objective string) memory.OptimizeCall {
	t.Helper()
	for _, c := range calls {
		if c.Objective == objective {
			return c
		}
	}
	require.Failf(t, "missing optimize call", "objective %s", objective)
	return memory.OptimizeCall{}
}

func TestEvaluator_Evaluate(t *testing.T) {
	r := testutils.NewRobot(t)
	o := robotOracle(r)

	slow := evaluate(t, r, o, r.SlowPolicy)
	assert.Same(t, r.SlowPolicy, slow.Policy)
	assert.Equal(t, 4.0, slow.QAValues["time"])
	assert.InDelta(t, 2.4, slow.ScaledCosts["time"], 1e-9)
	assert.InDelta(t, 0.0, slow.ScaledCosts["risk"], 1e-9)
	assert.InDelta(t, 2.4, slow.ObjectiveCost, 1e-9)
	assert.Equal(t, map[string]float64{"risky-move": 0}, slow.EventCounts["risk"])

	fast := evaluate(t, r, o, r.FastPolicy)
	assert.InDelta(t, 1.8, fast.ScaledCosts["time"], 1e-9)
	assert.InDelta(t, 10.0, fast.ScaledCosts["risk"], 1e-9)
	assert.InDelta(t, 11.8, fast.ObjectiveCost, 1e-9)
	assert.Equal(t, 2.5, fast.EventCounts["risk"]["risky-move"])
}

func TestEvaluator_CachesByPolicy(t *testing.T) {
	r := testutils.NewRobot(t)
	cache := memory.NewCache()

	var events []analysis.EvaluationEvent
	var mu sync.Mutex
	hooks := analysis.Hooks{OnEvaluate: func(_ context.Context, e *analysis.EvaluationEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, *e)
	}}
	opts := []analysis.Option{
		analysis.WithCache(cache),
		analysis.WithLocker(memory.NewLocker(), 0),
		analysis.WithHooks(hooks),
	}

	first := evaluate(t, r, robotOracle(r), r.SlowPolicy, opts...)
	assert.Equal(t, 1, cache.Len())

	// An oracle with no scripted values fails every query, so only the cache can answer.
	second := evaluate(t, r, memory.NewOracle(), r.SlowPolicy, opts...)
	assert.True(t, first.Equal(second))
	assert.Same(t, r.SlowPolicy, second.Policy, "cached info is reattached to its policy")

	require.Len(t, events, 2)
	assert.False(t, events[0].Cached)
	assert.True(t, events[1].Cached)
	assert.Equal(t, r.SlowPolicy.Key(), events[1].PolicyKey)
}

// loadRobot builds the robot model file after applying edit to its text.
func loadRobot(t *testing.T, edit func(string) string) *mdp.XMDP {
	t.Helper()
	data, err := os.ReadFile("../../examples/robot/model.yaml")
	require.NoError(t, err)
	f, err := modelfile.Parse([]byte(edit(string(data))), modelfile.FormatYAML)
	require.NoError(t, err)
	x, err := f.Build()
	require.NoError(t, err)
	return x
}

func TestEvaluator_CacheSeparatesModels(t *testing.T) {
	r := testutils.NewRobot(t)
	same := func(s string) string { return s }
	// Same names, but a slow move now takes 20 time units.
	slower := func(s string) string { return strings.Replace(s, "- {value: 2}", "- {value: 20}", 1) }

	opts := []analysis.Option{analysis.WithCache(memory.NewCache())}
	run := func(x *mdp.XMDP, time float64) *policy.Info {
		var decisions []policy.Decision
		for _, d := range r.SlowPolicy.Decisions() {
			s, err := domain.TupleFromMap(d.State.Map(), x.StateSpace().Definitions()...)
			require.NoError(t, err)
			a, err := x.ActionSpace().Action(d.Action.ID())
			require.NoError(t, err)
			decisions = append(decisions, policy.Decision{State: s, Action: a})
		}
		p := policy.Must(decisions...)

		o := memory.NewOracle()
		o.SetValues(p, memory.Values{QA: map[string]float64{"time": time, "risk": 0}})
		session, err := o.Open(context.Background())
		require.NoError(t, err)
		defer session.Close()

		info, err := analysis.NewEvaluator(opts...).Evaluate(context.Background(), session, x, p)
		require.NoError(t, err)
		return info
	}

	first := run(loadRobot(t, same), 4)
	assert.Equal(t, 4.0, first.QAValues["time"])

	other := run(loadRobot(t, slower), 40)
	assert.Equal(t, 40.0, other.QAValues["time"], "a model with other rewards is not served from the cache")
	assert.Equal(t, first.PolicyKey, other.PolicyKey)

	// A separately loaded copy of the first model shares its entry.
	again := run(loadRobot(t, same), 400)
	assert.Equal(t, 4.0, again.QAValues["time"])
}

func TestEvaluator_Errors(t *testing.T) {
	r := testutils.NewRobot(t)
	ctx := context.Background()

	t.Run("Non-finite result", func(t *testing.T) {
		o := memory.NewOracle()
		o.SetValues(r.SlowPolicy, memory.Values{QA: map[string]float64{"time": math.NaN(), "risk": 0}})
		session, err := o.Open(ctx)
		require.NoError(t, err)

		_, err = analysis.NewEvaluator().Evaluate(ctx, session, r.XMDP, r.SlowPolicy)
		assert.ErrorIs(t, err, ports.ErrResultParsing)
	})

	t.Run("Oracle failure is not zero", func(t *testing.T) {
		session, err := memory.NewOracle().Open(ctx)
		require.NoError(t, err)

		info, err := analysis.NewEvaluator().Evaluate(ctx, session, r.XMDP, r.SlowPolicy)
		assert.Nil(t, info)
		assert.ErrorIs(t, err, ports.ErrSolverInternal)
	})

	t.Run("Policy outside the model", func(t *testing.T) {
		p := policy.Must(policy.Decision{State: r.State("a", "slow"), Action: r.MoveGoal})
		session, err := robotOracle(r).Open(ctx)
		require.NoError(t, err)

		_, err = analysis.NewEvaluator().Evaluate(ctx, session, r.XMDP, p)
		assert.Error(t, err)
	})
}

func TestExplorer_FindsAlternative(t *testing.T) {
	r := testutils.NewRobot(t)
	o := robotOracle(r)
	o.SetOptimum("cost_no_time", ports.Solved(r.FastPolicy))
	solution := evaluate(t, r, o, r.SlowPolicy)

	outcomes, err := analysis.NewExplorer(o).Search(context.Background(), r.XMDP, solution)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	timeOut := outcomes[0]
	assert.Equal(t, "time", timeOut.QFunction)
	assert.Equal(t, "cost_no_time", timeOut.Objective)
	assert.InDelta(t, 3.0, timeOut.Bound, 1e-9)
	assert.True(t, timeOut.Found)
	assert.True(t, timeOut.Policy.Equal(r.FastPolicy))

	riskOut := outcomes[1]
	assert.Equal(t, "risk", riskOut.QFunction)
	assert.False(t, riskOut.Found)
	assert.Equal(t, analysis.ReasonNoRoom, riskOut.Reason, "a zero risk cannot drop by a step")

	calls := o.Calls()
	require.Len(t, calls, 1)
	c := calls[0]
	require.Len(t, c.Constraints, 1)
	assert.Equal(t, "time", c.Constraints[0].QFunction.Name())
	assert.False(t, c.Constraints[0].Soft)
	assert.False(t, c.Constraints[0].Strict)
	assert.InDelta(t, 3.0, c.Constraints[0].UpperBound, 1e-9)

	alts := analysis.Alternatives(outcomes)
	require.Len(t, alts, 1)
	assert.True(t, alts[0].Equal(r.FastPolicy))

	opened, closed := o.Sessions()
	assert.Equal(t, opened, closed, "every session is closed")
}

func TestExplorer_InfeasibleIsSkipped(t *testing.T) {
	r := testutils.NewRobot(t)
	o := robotOracle(r)
	o.SetOptimum("cost_no_time", ports.NoSolution(ports.ReasonGoalNotReached))
	o.SetOptimum("cost_no_risk", ports.Solved(r.SlowPolicy))
	solution := evaluate(t, r, o, r.FastPolicy)

	outcomes, err := analysis.NewExplorer(o, analysis.WithConcurrency(2)).Search(context.Background(), r.XMDP, solution)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.False(t, outcomes[0].Found)
	assert.Equal(t, ports.ReasonGoalNotReached, outcomes[0].Reason)
	assert.True(t, outcomes[1].Found)
	assert.True(t, outcomes[1].Policy.Equal(r.SlowPolicy))

	// Each bound asks for one full step of attribute cost below the solution.
	calls := o.Calls()
	require.Len(t, calls, 2)
	timeCall := findCall(t, calls, "cost_no_time")
	assert.InDelta(t, 2.0, timeCall.Constraints[0].UpperBound, 1e-9)
	riskCall := findCall(t, calls, "cost_no_risk")
	assert.InDelta(t, 2.4, riskCall.Constraints[0].UpperBound, 1e-9)
}

func TestExplorer_Step(t *testing.T) {
	r := testutils.NewRobot(t)
	o := robotOracle(r)
	solution := evaluate(t, r, o, r.FastPolicy)

	outcomes, err := analysis.NewExplorer(o, analysis.WithStep(0.5)).Search(context.Background(), r.XMDP, solution)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, outcomes[0].Bound, 1e-9)
	assert.InDelta(t, 2.45, outcomes[1].Bound, 1e-9)
	for _, out := range outcomes {
		assert.Equal(t, ports.ReasonConstraintNotSatisfied, out.Reason)
	}
}

func TestExplorer_Duplicates(t *testing.T) {
	r := testutils.NewRobot(t)
	o := robotOracle(r)
	o.SetOptimum("cost_no_time", ports.Solved(r.SlowPolicy))
	o.SetOptimum("cost_no_risk", ports.Solved(r.SlowPolicy))

	t.Run("Same as another alternative", func(t *testing.T) {
		solution := evaluate(t, r, o, r.FastPolicy)
		outcomes, err := analysis.NewExplorer(o).Search(context.Background(), r.XMDP, solution)
		require.NoError(t, err)
		assert.False(t, outcomes[0].Duplicate)
		assert.True(t, outcomes[1].Duplicate)
		assert.Len(t, analysis.Alternatives(outcomes), 1)
	})

	t.Run("Same as the solution", func(t *testing.T) {
		solution := evaluate(t, r, o, r.SlowPolicy)
		outcomes, err := analysis.NewExplorer(o).Search(context.Background(), r.XMDP, solution)
		require.NoError(t, err)
		assert.True(t, outcomes[0].Duplicate)
		assert.Empty(t, analysis.Alternatives(outcomes))
	})
}

func TestExplorer_OracleErrorAborts(t *testing.T) {
	r := testutils.NewRobot(t)
	o := robotOracle(r)
	boom := ports.NewOracleError("optimize", ports.ErrSolverInternal, errors.New("segfault"))
	o.FailOptimum("cost_no_time", boom)
	solution := evaluate(t, r, o, r.FastPolicy)

	var done atomic.Int32
	hooks := analysis.Hooks{OnSearchDone: func(_ context.Context, e *analysis.SearchEvent) {
		done.Add(1)
		if e.QFunction == "time" {
			assert.ErrorIs(t, e.Err, ports.ErrSolverInternal)
		}
	}}

	outcomes, err := analysis.NewExplorer(o, analysis.WithHooks(hooks)).Search(context.Background(), r.XMDP, solution)
	assert.Nil(t, outcomes)
	assert.ErrorIs(t, err, ports.ErrSolverInternal)
	assert.ErrorContains(t, err, "alternative for time")
	assert.GreaterOrEqual(t, done.Load(), int32(1))
}

func TestExplorer_WeberScale(t *testing.T) {
	r := testutils.NewRobot(t)
	o := robotOracle(r)
	solution := evaluate(t, r, o, r.FastPolicy)

	w, err := analysis.NewWeberScale(map[string]float64{"time": 0.25})
	require.NoError(t, err)

	_, err = analysis.NewExplorer(o, analysis.WithWeberScale(w)).Search(context.Background(), r.XMDP, solution)
	require.NoError(t, err)

	timeCall := findCall(t, o.Calls(), "cost_no_time")
	require.Len(t, timeCall.Constraints, 2)
	soft := timeCall.Constraints[1]
	assert.True(t, soft.Soft)
	assert.InDelta(t, 2.4, soft.UpperBound, 1e-9)
	assert.Equal(t, objectives.QuadraticPenalty{Scale: solution.ObjectiveCost}, soft.Penalty)

	riskCall := findCall(t, o.Calls(), "cost_no_risk")
	assert.Len(t, riskCall.Constraints, 1, "risk has no weber ratio")
}

func TestExplorer_Hooks(t *testing.T) {
	r := testutils.NewRobot(t)
	o := robotOracle(r)
	o.SetOptimum("cost_no_time", ports.Solved(r.FastPolicy))
	solution := evaluate(t, r, o, r.SlowPolicy)

	var started, found atomic.Int32
	first := analysis.Hooks{OnSearchStart: func(context.Context, *analysis.SearchEvent) { started.Add(1) }}
	second := analysis.Hooks{OnSearchDone: func(_ context.Context, e *analysis.SearchEvent) {
		if e.Found {
			found.Add(1)
		}
	}}

	_, err := analysis.NewExplorer(o, analysis.WithHooks(first.Merge(second))).Search(context.Background(), r.XMDP, solution)
	require.NoError(t, err)
	assert.Equal(t, int32(2), started.Load())
	assert.Equal(t, int32(1), found.Load())
}

func TestTradeoff(t *testing.T) {
	r := testutils.NewRobot(t)
	o := robotOracle(r)
	slow := evaluate(t, r, o, r.SlowPolicy)
	fast := evaluate(t, r, o, r.FastPolicy)

	tr, err := analysis.NewTradeoff(slow, fast, r.XMDP.QSpace())
	require.NoError(t, err)
	assert.Equal(t, []string{"time"}, tr.GainNames())
	assert.Equal(t, []string{"risk"}, tr.LossNames())
	assert.InDelta(t, -1.0, tr.Gains["time"].Value, 1e-9)
	assert.InDelta(t, -0.6, tr.Gains["time"].ScaledCost, 1e-9)
	assert.InDelta(t, 2.5, tr.Losses["risk"].Value, 1e-9)
	assert.InDelta(t, 10.0, tr.Losses["risk"].ScaledCost, 1e-9)

	same, err := analysis.NewTradeoff(slow, slow, r.XMDP.QSpace())
	require.NoError(t, err)
	assert.Empty(t, same.Gains)
	assert.Empty(t, same.Losses)

	again, err := analysis.NewTradeoff(slow, fast, r.XMDP.QSpace())
	require.NoError(t, err)
	assert.True(t, tr.Equal(again))
	assert.False(t, tr.Equal(same))

	partial := slow.Clone()
	delete(partial.QAValues, "risk")
	_, err = analysis.NewTradeoff(partial, fast, r.XMDP.QSpace())
	assert.ErrorIs(t, err, domain.ErrQFunctionNotFound)
}

func TestWeberScale(t *testing.T) {
	w, err := analysis.NewWeberScale(map[string]float64{"time": 0.25})
	require.NoError(t, err)

	down, err := w.SignificantDecrease("time", 5)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, down, 1e-9)

	up, err := w.SignificantIncrease("time", 4)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, up, 1e-9)

	_, err = w.SignificantDecrease("risk", 1)
	assert.ErrorIs(t, err, domain.ErrQFunctionNotFound)

	_, err = analysis.NewWeberScale(map[string]float64{"time": 0})
	assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
}

func TestExplanation_Lookup(t *testing.T) {
	r := testutils.NewRobot(t)
	o := robotOracle(r)
	slow := evaluate(t, r, o, r.SlowPolicy)
	fast := evaluate(t, r, o, r.FastPolicy)
	tr, err := analysis.NewTradeoff(slow, fast, r.XMDP.QSpace())
	require.NoError(t, err)

	e := analysis.NewExplanation(slow,
		[]analysis.Alternative{{Target: "time", Tradeoff: tr}},
		[]analysis.Outcome{{QFunction: "time", Found: true}, {QFunction: "risk", Reason: analysis.ReasonNoRoom}},
	)
	assert.NotEmpty(t, e.ID)

	got, ok := e.Tradeoff("time")
	assert.True(t, ok)
	assert.Same(t, tr, got)
	_, ok = e.Tradeoff("risk")
	assert.False(t, ok)

	out, ok := e.Outcome("risk")
	assert.True(t, ok)
	assert.Equal(t, analysis.ReasonNoRoom, out.Reason)
}
