package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/xplanning/pkg/analysis"
	"github.com/aretw0/xplanning/pkg/observability"
	"github.com/aretw0/xplanning/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnEvaluate(ctx, &analysis.EvaluationEvent{PolicyKey: "p1", Duration: time.Millisecond})
	hooks.OnEvaluate(ctx, &analysis.EvaluationEvent{PolicyKey: "p1", Cached: true})
	hooks.OnEvaluate(ctx, &analysis.EvaluationEvent{PolicyKey: "p2", Err: ports.ErrSolverInternal})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("evaluated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("error")))

	timeSearch := &analysis.SearchEvent{QFunction: "time"}
	riskSearch := &analysis.SearchEvent{QFunction: "risk"}
	hooks.OnSearchStart(ctx, timeSearch)
	hooks.OnSearchStart(ctx, riskSearch)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveSearches))

	timeSearch.Found = true
	hooks.OnSearchDone(ctx, timeSearch)
	riskSearch.Reason = ports.ReasonConstraintNotSatisfied
	hooks.OnSearchDone(ctx, riskSearch)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSearches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("time", "found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("risk", "constraint_not_satisfied")))

	count, err := testutil.GatherAndCount(reg, "xplanning_alternative_search_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetrics_Unregistered(t *testing.T) {
	m := observability.NewMetrics(nil)
	m.Hooks().OnSearchStart(context.Background(), &analysis.SearchEvent{QFunction: "time"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSearches))
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LogHooks(logger)
	ctx := context.Background()

	hooks.OnSearchDone(ctx, &analysis.SearchEvent{QFunction: "time", Found: true})
	hooks.OnSearchDone(ctx, &analysis.SearchEvent{QFunction: "risk", Reason: analysis.ReasonNoRoom})
	hooks.OnSearchDone(ctx, &analysis.SearchEvent{QFunction: "cost", Err: errors.New("boom")})
	hooks.OnEvaluate(ctx, &analysis.EvaluationEvent{PolicyKey: "p", Err: errors.New("bad")})

	out := buf.String()
	assert.Contains(t, out, `"msg":"alternative found"`)
	assert.Contains(t, out, `"reason":"no_room"`)
	assert.Contains(t, out, `"level":"WARN","msg":"alternative search failed"`)
	assert.Contains(t, out, `"msg":"evaluation failed"`)
	assert.Equal(t, 4, strings.Count(out, "\n"))
}

func TestHooks_Merge(t *testing.T) {
	var buf bytes.Buffer
	m := observability.NewMetrics(nil)
	hooks := m.Hooks().Merge(observability.LogHooks(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))

	hooks.OnEvaluate(context.Background(), &analysis.EvaluationEvent{PolicyKey: "p"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("evaluated")))
	assert.Contains(t, buf.String(), "policy evaluated")
}
