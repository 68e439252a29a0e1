package modelfile_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/aretw0/xplanning/internal/testutils"
	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/dtmc"
	"github.com/aretw0/xplanning/pkg/explicit"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/modelfile"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const robotPath = "../../examples/robot/model.yaml"

func loadRobot(t *testing.T) *mdp.XMDP {
	t.Helper()
	f, err := modelfile.Load(robotPath)
	require.NoError(t, err)
	x, err := f.Build()
	require.NoError(t, err)
	return x
}

// translate rebuilds p against the actions and variables of x.
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

// lines renders transitions independently of state numbering.
func lines(t *testing.T, m *explicit.Model) []string {
	t.Helper()
	out := make([]string, 0, len(m.Transitions))
	for _, tr := range m.Transitions {
		from, err := m.States.State(tr.From)
		require.NoError(t, err)
		to, err := m.States.State(tr.To)
		require.NoError(t, err)
		out = append(out, fmt.Sprintf("%s -%s-> %s p=%.3f r=%v ev=%v", from, tr.Action, to, tr.Probability, tr.Rewards, tr.Events))
	}
	return out
}

func TestBuild_MatchesHandWrittenRobot(t *testing.T) {
	r := testutils.NewRobot(t)
	x := loadRobot(t)

	assert.Equal(t, []string{"time", "risk"}, qnames(x))
	assert.Equal(t, "cost", x.CostFunction().Name())
	assert.True(t, x.IsGoal(r.State("goal", "slow")))

	for name, p := range map[string]*policy.Policy{"slow": r.SlowPolicy, "fast": r.FastPolicy} {
		t.Run(name, func(t *testing.T) {
			want, err := dtmc.Induce(r.XMDP, p)
			require.NoError(t, err)
			got, err := dtmc.Induce(x, translate(t, x, p))
			require.NoError(t, err)

			wantModel, err := explicit.BuildDTMC(context.Background(), want, r.XMDP.CostFunction().AdditiveCostFunction)
			require.NoError(t, err)
			gotModel, err := explicit.BuildDTMC(context.Background(), got, x.CostFunction().AdditiveCostFunction)
			require.NoError(t, err)
			assert.ElementsMatch(t, lines(t, wantModel), lines(t, gotModel))
		})
	}

	wantMDP, err := explicit.BuildMDP(context.Background(), r.XMDP, r.XMDP.CostFunction().AdditiveCostFunction)
	require.NoError(t, err)
	gotMDP, err := explicit.BuildMDP(context.Background(), x, x.CostFunction().AdditiveCostFunction)
	require.NoError(t, err)
	assert.ElementsMatch(t, lines(t, wantMDP), lines(t, gotMDP))
}

func qnames(x *mdp.XMDP) []string {
	var names []string
	for _, q := range x.QSpace().All() {
		names = append(names, q.Name())
	}
	return names
}

func TestParse_JSON(t *testing.T) {
	f, err := modelfile.Load(robotPath)
	require.NoError(t, err)
	data, err := json.Marshal(f)
	require.NoError(t, err)

	again, err := modelfile.Parse(data, modelfile.FormatJSON)
	require.NoError(t, err)
	x, err := again.Build()
	require.NoError(t, err)
	assert.Equal(t, 6, x.StateSpace().Size())
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, modelfile.FormatJSON, modelfile.FormatOf("m.JSON"))
	assert.Equal(t, modelfile.FormatYAML, modelfile.FormatOf("m.yml"))
	assert.Equal(t, modelfile.FormatYAML, modelfile.FormatOf("model"))
}

func robotYAML(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(robotPath)
	require.NoError(t, err)
	return string(data)
}

func TestParse_StructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		keys []string
	}{
		{
			name: "missing sections",
			doc:  "name: empty\n",
			keys: []string{"variables", "actions", "initial", "transitions", "qfunctions", "cost.terms"},
		},
		{
			name: "bad numbers",
			doc: strings.NewReplacer(
				"probability: 0.8", "probability: 1.5",
				"slope: 10", "slope: 0",
				"criterion: total_cost", "criterion: discounted",
			).Replace(robotYAML(t)),
			keys: []string{"criterion", "transitions[0].effects[0].table[1].outcomes[0].probability", "cost.terms[1].slope"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := modelfile.Parse([]byte(tt.doc), modelfile.FormatYAML)
			require.Error(t, err)

			var keys []string
			for _, e := range modelfile.ValidationErrors(err) {
				var ve *modelfile.ValidationError
				require.True(t, errors.As(e, &ve), "unexpected error %v", e)
				keys = append(keys, ve.Key)
			}
			for _, k := range tt.keys {
				assert.Contains(t, keys, k)
			}
		})
	}
}

func TestParse_UnknownKeys(t *testing.T) {
	doc := strings.Replace(robotYAML(t), "name: robot", "name: robot\ncolour: red", 1)
	_, err := modelfile.Parse([]byte(doc), modelfile.FormatYAML)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
	assert.NotEmpty(t, modelfile.ValidationErrors(err))
}

func TestParse_QFunctionKinds(t *testing.T) {
	doc := strings.Replace(robotYAML(t), "      - {name: risky-move, src: {speed: fast}, value: 1}",
		"      - {name: risky-move, src: {speed: fast}, value: 1}\n    count: {src: {speed: fast}}", 1)
	_, err := modelfile.Parse([]byte(doc), modelfile.FormatYAML)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of values, events or count")
}

func TestParse_Empty(t *testing.T) {
	_, err := modelfile.Parse(nil, modelfile.FormatYAML)
	assert.Error(t, err)
	_, err = modelfile.Parse([]byte("{"), modelfile.FormatJSON)
	assert.Error(t, err)
	_, err = modelfile.Parse([]byte("{}"), modelfile.Format("toml"))
	assert.Error(t, err)
}

func TestBuild_CollectsReferenceErrors(t *testing.T) {
	doc := strings.NewReplacer(
		"initial: {loc: a, speed: slow}", "initial: {loc: a, speed: slow, battery: full}",
		"- action: moveTo(goal)\n            when: {loc: b, speed: slow}", "- action: moveTo(c)\n            when: {loc: b, speed: slow}",
		"{qfunction: risk,", "{qfunction: danger,",
	).Replace(robotYAML(t))

	f, err := modelfile.Parse([]byte(doc), modelfile.FormatYAML)
	require.NoError(t, err, "references are resolved by Build")

	_, err = f.Build()
	require.Error(t, err)
	errs := modelfile.ValidationErrors(err)
	require.Len(t, errs, 3, err.Error())
	assert.Contains(t, err.Error(), "battery")
	assert.Contains(t, err.Error(), "moveTo(c)")
	assert.Contains(t, err.Error(), "danger")
}

func TestBuild_ValidatesHandBuiltFile(t *testing.T) {
	f, err := modelfile.Parse([]byte(robotYAML(t)), modelfile.FormatYAML)
	require.NoError(t, err)

	// The time QFunction no longer says how it is measured.
	f.QFunctions[0].Values = nil
	assert.NotPanics(t, func() {
		_, err = f.Build()
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of values, events or count")

	_, err = (&modelfile.File{}).Build()
	assert.NotEmpty(t, modelfile.ValidationErrors(err))
}

func TestBuild_UnknownComposite(t *testing.T) {
	doc := strings.Replace(robotYAML(t), "composite: [moveTo, setSpeed]", "composite: [moveTo, jump]", 1)
	f, err := modelfile.Parse([]byte(doc), modelfile.FormatYAML)
	require.NoError(t, err)

	_, err = f.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "actions[2].composite[1]")
}

func TestBuild_InvalidDistribution(t *testing.T) {
	doc := strings.Replace(robotYAML(t), "{set: {loc: a}, probability: 0.2}", "{set: {loc: a}, probability: 0.3}", 1)
	f, err := modelfile.Parse([]byte(doc), modelfile.FormatYAML)
	require.NoError(t, err)

	_, err = f.Build()
	assert.ErrorIs(t, err, domain.ErrInvalidDistribution)
}

func TestBuild_IllegalValue(t *testing.T) {
	doc := strings.Replace(robotYAML(t), "goal: {loc: goal}", "goal: {loc: home}", 1)
	f, err := modelfile.Parse([]byte(doc), modelfile.FormatYAML)
	require.NoError(t, err)

	_, err = f.Build()
	assert.ErrorIs(t, err, domain.ErrIncompatibleVar)
}

func TestPolicy_RoundTrip(t *testing.T) {
	r := testutils.NewRobot(t)
	x := loadRobot(t)
	fast := translate(t, x, r.FastPolicy)

	data, err := json.Marshal(modelfile.NewPolicyFile(fast))
	require.NoError(t, err)

	p, err := modelfile.ParsePolicy(data, modelfile.FormatJSON, x)
	require.NoError(t, err)
	assert.True(t, p.Equal(fast))
}

func TestParsePolicy_Errors(t *testing.T) {
	x := loadRobot(t)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty list", doc: "decisions: []\n", want: "decisions"},
		{name: "partial state", doc: "decisions:\n  - {state: {loc: a}, action: moveTo(b)}\n", want: "not a full state"},
		{name: "unknown variable", doc: "decisions:\n  - {state: {loc: a, fuel: 1}, action: moveTo(b)}\n", want: "fuel"},
		{name: "unknown action", doc: "decisions:\n  - {state: {loc: a, speed: slow}, action: fly}\n", want: "fly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := modelfile.ParsePolicy([]byte(tt.doc), modelfile.FormatYAML, x)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NotEmpty(t, modelfile.ValidationErrors(err))
		})
	}
}
