package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/aretw0/xplanning"
	"github.com/aretw0/xplanning/internal/testutils"
	xhttp "github.com/aretw0/xplanning/pkg/adapters/http"
	"github.com/aretw0/xplanning/pkg/adapters/memory"
	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/modelfile"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/aretw0/xplanning/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const robotPath = "../../../examples/robot/model.yaml"

func robotModel(t *testing.T) (string, *mdp.XMDP) {
	t.Helper()
	data, err := os.ReadFile(robotPath)
	require.NoError(t, err)
	f, err := modelfile.Parse(data, modelfile.FormatYAML)
	require.NoError(t, err)
	x, err := f.Build()
	require.NoError(t, err)
	return string(data), x
}

// translate rebuilds p against the variables and actions of x.
func translate(t *testing.T, x *mdp.XMDP, p *policy.Policy) *policy.Policy {
	t.Helper()
	var decisions []policy.Decision
	for _, d := range p.Decisions() {
		s, err := domain.TupleFromMap(d.State.Map(), x.StateSpace().Definitions()...)
		require.NoError(t, err)
		a, err := x.ActionSpace().Action(d.Action.ID())
		require.NoError(t, err)
		decisions = append(decisions, policy.Decision{State: s, Action: a})
	}
	out, err := policy.New(decisions...)
	require.NoError(t, err)
	return out
}

type fixture struct {
	doc    string
	slow   *policy.Policy
	fast   *policy.Policy
	oracle *memory.Oracle
}

func newFixture(t *testing.T) *fixture {
	r := testutils.NewRobot(t)
	doc, x := robotModel(t)
	f := &fixture{
		doc:    doc,
		slow:   translate(t, x, r.SlowPolicy),
		fast:   translate(t, x, r.FastPolicy),
		oracle: memory.NewOracle(),
	}
	f.oracle.SetValues(f.slow, memory.Values{QA: map[string]float64{"time": 4, "risk": 0}})
	f.oracle.SetValues(f.fast, memory.Values{
		QA:     map[string]float64{"time": 3, "risk": 2.5},
		Events: map[string]map[string]float64{"risk": {"risky-move": 2.5}},
	})
	f.oracle.SetOptimum("cost", ports.Solved(f.slow))
	f.oracle.SetOptimum("cost_no_time", ports.Solved(f.fast))
	return f
}

func (f *fixture) handler(opts ...xhttp.Option) http.Handler {
	return xhttp.NewHandler(xplanning.New(f.oracle), opts...)
}

func do(h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newFixture(t).handler(), http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, xplanning.Version, body["version"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	rec := do(newFixture(t).handler(), http.MethodOptions, "/explain", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestModel(t *testing.T) {
	f := newFixture(t)
	h := f.handler()

	t.Run("YAML", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/model", "application/yaml", f.doc)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var summary xhttp.ModelSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
		assert.Equal(t, "robot", summary.Name)
		assert.Equal(t, 6, summary.States)
		assert.Equal(t, []string{"time", "risk"}, summary.QFunctions)
		assert.Equal(t, "cost", summary.Objective)
		assert.Contains(t, summary.Actions, "setSpeed(fast)")
	})

	t.Run("JSON", func(t *testing.T) {
		file, err := modelfile.Parse([]byte(f.doc), modelfile.FormatYAML)
		require.NoError(t, err)
		data, err := json.Marshal(file)
		require.NoError(t, err)

		rec := do(h, http.MethodPost, "/model", "application/json; charset=utf-8", string(data))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = do(h, http.MethodPost, "/model?input=json", "", string(data))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("Invalid", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/model", "", "name: empty\n")
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body struct {
			Error   string   `json:"error"`
			Details []string `json:"details"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.Error)
		assert.NotEmpty(t, body.Details)
	})

	t.Run("Too Large", func(t *testing.T) {
		rec := do(f.handler(xhttp.WithMaxBodyBytes(16)), http.MethodPost, "/model", "", f.doc)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestExplain(t *testing.T) {
	f := newFixture(t)
	h := f.handler()

	t.Run("JSON", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/explain", "", f.doc)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body struct {
			ID       string `json:"id"`
			Solution struct {
				PolicyKey     string  `json:"policy_key"`
				ObjectiveCost float64 `json:"objective_cost"`
			} `json:"solution"`
			Alternatives []struct {
				Target string `json:"target"`
			} `json:"alternatives"`
			Outcomes []struct {
				QFunction string `json:"qfunction"`
				Found     bool   `json:"found"`
			} `json:"outcomes"`
			Policy []xhttp.DecisionRow `json:"policy"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.ID)
		assert.Equal(t, f.slow.Key(), body.Solution.PolicyKey)
		assert.InDelta(t, 2.4, body.Solution.ObjectiveCost, 1e-9)
		require.Len(t, body.Alternatives, 1)
		assert.Equal(t, "time", body.Alternatives[0].Target)
		assert.Len(t, body.Outcomes, 2)
		assert.Len(t, body.Policy, f.slow.Len())
	})

	t.Run("Markdown", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/explain?format=markdown", "", f.doc)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
		assert.Contains(t, rec.Body.String(), "## Alternatives")
	})

	t.Run("Invalid Model", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/explain", "", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExplain_Failures(t *testing.T) {
	tests := []struct {
		name   string
		script func(o *memory.Oracle)
		status int
	}{
		{
			name:   "No Solution",
			script: func(o *memory.Oracle) { o.SetOptimum("cost", ports.NoSolution(ports.ReasonGoalNotReached)) },
			status: http.StatusUnprocessableEntity,
		},
		{
			name: "Oracle Error",
			script: func(o *memory.Oracle) {
				o.FailOptimum("cost", ports.NewOracleError("optimize", ports.ErrSolverInternal, nil))
			},
			status: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.script(f.oracle)

			rec := do(f.handler(), http.MethodPost, "/explain", "", f.doc)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "xplanning_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	f := newFixture(t)
	rec := do(f.handler(xhttp.WithGatherer(reg)), http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "xplanning_test_total 1")

	rec = do(f.handler(), http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
