package modelfile

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/go-playground/validator/v10"
)

// PolicyFile lists the decisions of a policy, one per state.
type PolicyFile struct {
	Decisions []DecisionDef `mapstructure:"decisions" json:"decisions" validate:"required,min=1,dive"`
}

// DecisionDef selects Action, by ID, in the full state State.
type DecisionDef struct {
	State  Assignment `mapstructure:"state" json:"state" validate:"required"`
	Action string     `mapstructure:"action" json:"action" validate:"required"`
}

// NewPolicyFile lists the decisions of p.
func NewPolicyFile(p *policy.Policy) *PolicyFile {
	f := &PolicyFile{Decisions: make([]DecisionDef, 0, p.Len())}
	for _, d := range p.Decisions() {
		state := make(Assignment)
		for name, v := range d.State.Map() {
			state[name] = v.Interface()
		}
		f.Decisions = append(f.Decisions, DecisionDef{State: state, Action: d.Action.ID()})
	}
	return f
}

// LoadPolicy reads a policy file and resolves it against x.
func LoadPolicy(path string, x *mdp.XMDP) (*policy.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data, FormatOf(path), x)
}

// ParsePolicy decodes a policy file and resolves it against x. Every state
// must be a full state of x and every action one of its actions.
func ParsePolicy(data []byte, format Format, x *mdp.XMDP) (*policy.Policy, error) {
	raw, err := unmarshal(data, format, "policy")
	if err != nil {
		return nil, err
	}
	var f PolicyFile
	if err := decode(raw, &f); err != nil {
		return nil, err
	}

	var c collector
	if err := validate.Struct(&f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		for _, fe := range verrs {
			c.add(fieldPath(fe.Namespace()), describe(fe), fe.Value())
		}
		return nil, c.err()
	}

	b := &builder{vars: make(map[string]*domain.StateVarDefinition)}
	for _, def := range x.StateSpace().Definitions() {
		b.vars[def.Name()] = def
	}

	decisions := make([]policy.Decision, 0, len(f.Decisions))
	for i, d := range f.Decisions {
		key := fmt.Sprintf("decisions[%d]", i)
		before := len(b.c.errs)
		state := b.tuple(key+".state", d.State)
		if len(b.c.errs) == before && !x.StateSpace().IsFull(state) {
			b.c.add(key+".state", "is not a full state", state.String())
		}
		action, err := x.ActionSpace().Action(d.Action)
		if err != nil {
			b.c.wrap(key+".action", err)
			continue
		}
		decisions = append(decisions, policy.Decision{State: state, Action: action})
	}
	if err := b.c.err(); err != nil {
		return nil, err
	}
	return policy.New(decisions...)
}
