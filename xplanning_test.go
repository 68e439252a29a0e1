package xplanning_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/xplanning"
	"github.com/aretw0/xplanning/internal/testutils"
	"github.com/aretw0/xplanning/pkg/adapters/memory"
	"github.com/aretw0/xplanning/pkg/analysis"
	"github.com/aretw0/xplanning/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func robotOracle(r *testutils.Robot) *memory.Oracle {
	o := memory.NewOracle()
	o.SetValues(r.SlowPolicy, memory.Values{QA: map[string]float64{"time": 4, "risk": 0}})
	o.SetValues(r.FastPolicy, memory.Values{
		QA:     map[string]float64{"time": 3, "risk": 2.5},
		Events: map[string]map[string]float64{"risk": {"risky-move": 2.5}},
	})
	o.SetOptimum("cost", ports.Solved(r.SlowPolicy))
	o.SetOptimum("cost_no_time", ports.Solved(r.FastPolicy))
	return o
}

func TestExplainer_SolveAndExplain(t *testing.T) {
	r := testutils.NewRobot(t)
	o := robotOracle(r)
	cache := memory.NewCache()

	e := xplanning.New(o, xplanning.WithAnalysisOptions(
		analysis.WithCache(cache),
		analysis.WithConcurrency(2),
	))

	exp, err := e.SolveAndExplain(context.Background(), r.XMDP)
	require.NoError(t, err)

	assert.NotEmpty(t, exp.ID)
	assert.True(t, exp.Solution.Policy.Equal(r.SlowPolicy))
	assert.InDelta(t, 2.4, exp.Solution.ObjectiveCost, 1e-9)

	require.Len(t, exp.Alternatives, 1)
	tr, ok := exp.Tradeoff("time")
	require.True(t, ok)
	assert.True(t, tr.Alternative.Policy.Equal(r.FastPolicy))
	assert.Equal(t, []string{"time"}, tr.GainNames())
	assert.Equal(t, []string{"risk"}, tr.LossNames())

	risk, ok := exp.Outcome("risk")
	require.True(t, ok)
	assert.Equal(t, analysis.ReasonNoRoom, risk.Reason)

	assert.Equal(t, 2, cache.Len(), "solution and alternative are cached")
	opened, closed := o.Sessions()
	assert.Equal(t, opened, closed)
}

func TestExplainer_Solve(t *testing.T) {
	r := testutils.NewRobot(t)
	ctx := context.Background()

	t.Run("No Solution", func(t *testing.T) {
		o := memory.NewOracle()
		o.SetOptimum("cost", ports.NoSolution(ports.ReasonGoalNotReached))

		p, err := xplanning.New(o).Solve(ctx, r.XMDP)
		assert.Nil(t, p)
		assert.ErrorIs(t, err, ports.ErrNoSolution)
		assert.ErrorContains(t, err, string(ports.ReasonGoalNotReached))
	})

	t.Run("Oracle Error", func(t *testing.T) {
		o := memory.NewOracle()
		o.FailOptimum("cost", ports.NewOracleError("optimize", ports.ErrMalformedModel, nil))

		_, err := xplanning.New(o).Solve(ctx, r.XMDP)
		assert.ErrorIs(t, err, ports.ErrMalformedModel)
		assert.False(t, errors.Is(err, ports.ErrNoSolution))
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := xplanning.New(robotOracle(r)).Solve(cctx, r.XMDP)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExplainer_ExplainGivenPolicy(t *testing.T) {
	r := testutils.NewRobot(t)
	o := robotOracle(r)
	o.SetOptimum("cost_no_time", ports.NoSolution(ports.ReasonConstraintNotSatisfied))
	o.SetOptimum("cost_no_risk", ports.Solved(r.SlowPolicy))

	exp, err := xplanning.New(o).Explain(context.Background(), r.XMDP, r.FastPolicy)
	require.NoError(t, err)

	require.Len(t, exp.Alternatives, 1)
	assert.Equal(t, "risk", exp.Alternatives[0].Target)
	tr := exp.Alternatives[0].Tradeoff
	assert.Equal(t, []string{"risk"}, tr.GainNames())
	assert.Equal(t, []string{"time"}, tr.LossNames())

	timeOut, ok := exp.Outcome("time")
	require.True(t, ok)
	assert.False(t, timeOut.Found)
	assert.Equal(t, ports.ReasonConstraintNotSatisfied, timeOut.Reason)
}

func TestRunner(t *testing.T) {
	r := testutils.NewRobot(t)
	ctx := context.Background()

	t.Run("Markdown", func(t *testing.T) {
		var buf bytes.Buffer
		runner := xplanning.NewRunner(&buf)
		runner.Renderer = func(md string) (string, error) { return strings.ToUpper(md), nil }

		exp, err := runner.Run(ctx, xplanning.New(robotOracle(r)), r.XMDP, nil)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "# EXPLANATION")
		assert.Contains(t, buf.String(), strings.ToUpper(exp.ID))
	})

	t.Run("Renderer Failure Falls Back", func(t *testing.T) {
		var buf bytes.Buffer
		runner := xplanning.NewRunner(&buf)
		runner.Renderer = func(string) (string, error) { return "", errors.New("no tty") }

		_, err := runner.Run(ctx, xplanning.New(robotOracle(r)), r.XMDP, r.SlowPolicy)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "## Alternatives")
	})

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		runner := &xplanning.Runner{Output: &buf, Format: xplanning.FormatJSON}

		exp, err := runner.Run(ctx, xplanning.New(robotOracle(r)), r.XMDP, nil)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, exp.ID, decoded["id"])
		assert.Len(t, decoded["alternatives"], 1)
		assert.Len(t, decoded["outcomes"], 2)
	})

	t.Run("Unknown Format", func(t *testing.T) {
		runner := &xplanning.Runner{Output: &bytes.Buffer{}, Format: "yaml"}
		_, err := runner.Run(ctx, xplanning.New(robotOracle(r)), r.XMDP, nil)
		assert.ErrorContains(t, err, "unknown output format")
	})

	t.Run("Missing Output", func(t *testing.T) {
		_, err := (&xplanning.Runner{}).Run(ctx, xplanning.New(robotOracle(r)), r.XMDP, nil)
		assert.Error(t, err)
	})
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, strings.TrimSpace(xplanning.Version))
}
