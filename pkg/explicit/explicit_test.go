package explicit_test

import (
	"context"
	"testing"

	"github.com/aretw0/xplanning/internal/testutils"
	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/dtmc"
	"github.com/aretw0/xplanning/pkg/explicit"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewardIndex(t *testing.T) {
	r := testutils.NewRobot(t)
	idx := explicit.NewRewardIndex("cost", r.XMDP.QSpace())

	assert.Equal(t, 3, idx.Len())
	i, err := idx.Index("time")
	require.NoError(t, err)
	assert.Equal(t, 2, i)
	i, err = idx.Index("risk")
	require.NoError(t, err)
	assert.Equal(t, 3, i)

	name, err := idx.Name(explicit.ObjectiveIndex)
	require.NoError(t, err)
	assert.Equal(t, "cost", name)
	_, err = idx.Name(4)
	assert.ErrorIs(t, err, domain.ErrQFunctionNotFound)

	obj, qa, err := idx.Values(map[int]float64{1: 3.2, 2: 2, 3: 5})
	require.NoError(t, err)
	assert.Equal(t, 3.2, obj)
	assert.Equal(t, map[string]float64{"time": 2, "risk": 5}, qa)

	_, _, err = idx.Values(map[int]float64{1: 3.2, 2: 2})
	assert.ErrorIs(t, err, domain.ErrQFunctionNotFound)
}

func TestBuildDTMC_FastPolicy(t *testing.T) {
	r := testutils.NewRobot(t)
	chain, err := dtmc.Induce(r.XMDP, r.FastPolicy)
	require.NoError(t, err)

	m, err := explicit.BuildDTMC(context.Background(), chain, r.XMDP.CostFunction().AdditiveCostFunction)
	require.NoError(t, err)

	assert.Equal(t, 4, m.States.Len())
	assert.Equal(t, 0, m.Initial)
	require.Len(t, m.Goals, 1)
	goal, err := m.States.State(m.Goals[0])
	require.NoError(t, err)
	assert.True(t, goal.Equal(r.State("goal", "fast")))
	require.Len(t, m.Transitions, 5)

	speedUp := m.Transitions[0]
	assert.Equal(t, "setSpeed(fast)", speedUp.Action)
	assert.Equal(t, 1.0, speedUp.Probability)
	assert.InDeltaSlice(t, []float64{0.3, 0.5, 0}, speedUp.Rewards, 1e-12)
	assert.Empty(t, speedUp.Events)

	aFast, err := m.States.Index(r.State("a", "fast"))
	require.NoError(t, err)
	outgoing := 0.0
	for _, tr := range m.Transitions {
		if tr.From != aFast {
			continue
		}
		outgoing += tr.Probability
		assert.Equal(t, "moveTo(b)", tr.Action)
		assert.InDeltaSlice(t, []float64{4.6, 1, 1}, tr.Rewards, 1e-12)
		assert.Equal(t, []string{explicit.EventKey("risk", "risky-move")}, tr.Events)
	}
	assert.InDelta(t, 1.0, outgoing, 1e-12)

	doc := m.Document()
	assert.Equal(t, []string{"cost", "time", "risk"}, doc.Rewards)
	assert.Len(t, doc.States, 4)
}

func TestBuildDTMC_MissingDecision(t *testing.T) {
	r := testutils.NewRobot(t)
	partial := policy.Must(policy.Decision{State: r.State("a", "slow"), Action: r.MoveB})
	chain, err := dtmc.Induce(r.XMDP, partial)
	require.NoError(t, err)

	_, err = explicit.BuildDTMC(context.Background(), chain, r.XMDP.CostFunction().AdditiveCostFunction)
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}

func TestBuildMDP(t *testing.T) {
	r := testutils.NewRobot(t)
	m, err := explicit.BuildMDP(context.Background(), r.XMDP, r.XMDP.CostFunction().AdditiveCostFunction)
	require.NoError(t, err)

	assert.Equal(t, 6, m.States.Len())
	assert.Len(t, m.Goals, 2)
	assert.Len(t, m.Transitions, 10)

	mass := map[[2]any]float64{}
	for _, tr := range m.Transitions {
		mass[[2]any{tr.From, tr.Action}] += tr.Probability
	}
	for choice, p := range mass {
		assert.InDelta(t, 1.0, p, 1e-12, "choice %v", choice)
	}
}

func TestBuild_Cancelled(t *testing.T) {
	r := testutils.NewRobot(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := explicit.BuildMDP(ctx, r.XMDP, r.XMDP.CostFunction().AdditiveCostFunction)
	assert.ErrorIs(t, err, context.Canceled)

	chain, err := dtmc.Induce(r.XMDP, r.SlowPolicy)
	require.NoError(t, err)
	_, err = explicit.BuildDTMC(ctx, chain, r.XMDP.CostFunction().AdditiveCostFunction)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestModel_Fingerprint(t *testing.T) {
	r := testutils.NewRobot(t)
	build := func(p *policy.Policy) string {
		chain, err := dtmc.Induce(r.XMDP, p)
		require.NoError(t, err)
		m, err := explicit.BuildDTMC(context.Background(), chain, r.XMDP.CostFunction().AdditiveCostFunction)
		require.NoError(t, err)
		fp, err := m.Fingerprint()
		require.NoError(t, err)
		return fp
	}

	slow := build(r.SlowPolicy)
	assert.Len(t, slow, 64)
	assert.Equal(t, slow, build(r.SlowPolicy))
	assert.NotEqual(t, slow, build(r.FastPolicy))
}

func TestPolicyTable_RoundTrip(t *testing.T) {
	r := testutils.NewRobot(t)
	chain, err := dtmc.Induce(r.XMDP, r.FastPolicy)
	require.NoError(t, err)
	m, err := explicit.BuildDTMC(context.Background(), chain, r.XMDP.CostFunction().AdditiveCostFunction)
	require.NoError(t, err)

	table := explicit.EncodePolicy(m.States, r.FastPolicy)
	require.Len(t, table, 3)
	assert.Equal(t, explicit.PolicyRow{State: 0, Action: "setSpeed(fast)"}, table[0])

	decoded, err := explicit.DecodePolicy(m.States, r.XMDP.ActionSpace(), table)
	require.NoError(t, err)
	assert.True(t, decoded.Equal(r.FastPolicy))

	_, err = explicit.DecodePolicy(m.States, r.XMDP.ActionSpace(), explicit.PolicyTable{{State: 9, Action: "moveTo(b)"}})
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
	_, err = explicit.DecodePolicy(m.States, r.XMDP.ActionSpace(), explicit.PolicyTable{{State: 0, Action: "teleport"}})
	assert.ErrorIs(t, err, domain.ErrActionNotFound)
}

func TestIndexFromRows(t *testing.T) {
	r := testutils.NewRobot(t)
	idx := explicit.NewStateIndex(r.State("a", "slow"), r.State("b", "fast"))

	rebuilt, err := explicit.IndexFromRows(r.XMDP.StateSpace(), idx.Rows())
	require.NoError(t, err)
	s, err := rebuilt.State(1)
	require.NoError(t, err)
	assert.True(t, s.Equal(r.State("b", "fast")))

	rows := idx.Rows()
	rows[1].Index = 5
	_, err = explicit.IndexFromRows(r.XMDP.StateSpace(), rows)
	assert.ErrorIs(t, err, domain.ErrInvalidModel)
}
