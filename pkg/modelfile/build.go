package modelfile

import (
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/metrics"
	"github.com/aretw0/xplanning/pkg/objectives"
)

// DefaultCostName names the objective when the file does not.
const DefaultCostName = "cost"

// ValidateEpsilon is the tolerance Build allows on the sum of each distribution.
const ValidateEpsilon = 1e-9

// builder resolves names while building; every lookup failure is collected
// so one pass reports everything.
type builder struct {
	c       collector
	vars    map[string]*domain.StateVarDefinition
	varList []*domain.StateVarDefinition
	defs    map[string]*domain.ActionDefinition
	defList []*domain.ActionDefinition
	qfuncs  map[string]metrics.QFunction
}

// Build validates the file and resolves it into an XMDP. The distributions are
// validated too.
func (f *File) Build() (*mdp.XMDP, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	b := &builder{
		vars:   make(map[string]*domain.StateVarDefinition),
		defs:   make(map[string]*domain.ActionDefinition),
		qfuncs: make(map[string]metrics.QFunction),
	}

	b.variables(f.Variables)
	b.actions(f.Actions)
	if err := b.c.err(); err != nil {
		// Everything below refers to variables and actions.
		return nil, err
	}

	initial := b.tuple("initial", f.Initial)
	goal := b.tuple("goal", f.Goal)
	psos := b.psos(f.Transitions)
	qspace := b.qspace(f.QFunctions)
	cost := b.cost(f.Cost)
	if err := b.c.err(); err != nil {
		return nil, err
	}

	states, err := mdp.NewStateSpace(b.varList...)
	if err != nil {
		return nil, err
	}
	actions, err := mdp.NewActionSpace(b.defList...)
	if err != nil {
		return nil, err
	}
	tf, err := mdp.NewTransitionFunction(psos...)
	if err != nil {
		return nil, err
	}
	x, err := mdp.NewXMDP(mdp.Components{
		States:      states,
		Actions:     actions,
		Initial:     initial,
		Goal:        goal,
		Transitions: tf,
		QSpace:      qspace,
		Cost:        cost,
		Criterion:   objectives.Criterion(f.Criterion),
	})
	if err != nil {
		return nil, err
	}
	if err := x.Validate(ValidateEpsilon); err != nil {
		return nil, err
	}
	return x, nil
}

func (b *builder) variables(vars []Variable) {
	for i, v := range vars {
		key := fmt.Sprintf("variables[%d]", i)
		if _, dup := b.vars[v.Name]; dup {
			b.c.add(key+".name", "duplicate variable", v.Name)
			continue
		}
		values := make([]domain.Value, 0, len(v.Values))
		for j, raw := range v.Values {
			val, err := domain.ValueOf(raw)
			if err != nil {
				b.c.add(fmt.Sprintf("%s.values[%d]", key, j), err.Error(), raw)
				continue
			}
			values = append(values, val)
		}
		def, err := domain.NewStateVarDefinition(v.Name, values...)
		if err != nil {
			b.c.wrap(key, err)
			continue
		}
		b.vars[v.Name] = def
		b.varList = append(b.varList, def)
	}
}

// actions builds the atomic definitions first so composites can refer to
// definitions listed after them.
func (b *builder) actions(defs []ActionDef) {
	for i, d := range defs {
		if d.Composite != nil {
			continue
		}
		key := fmt.Sprintf("actions[%d]", i)
		acts := make([]*domain.Action, 0, len(d.Actions))
		for j, params := range d.Actions {
			values := make([]domain.Value, 0, len(params))
			for k, raw := range params {
				val, err := domain.ValueOf(raw)
				if err != nil {
					b.c.add(fmt.Sprintf("%s.actions[%d][%d]", key, j, k), err.Error(), raw)
					continue
				}
				values = append(values, val)
			}
			acts = append(acts, domain.NewAction(d.Name, values))
		}
		def, err := domain.NewActionDefinition(d.Name, acts...)
		if err != nil {
			b.c.wrap(key, err)
			continue
		}
		b.addDefinition(key, def)
	}

	for i, d := range defs {
		if d.Composite == nil {
			continue
		}
		key := fmt.Sprintf("actions[%d]", i)
		constituents := make([]*domain.ActionDefinition, 0, len(d.Composite))
		for j, name := range d.Composite {
			c, ok := b.defs[name]
			if !ok {
				b.c.add(fmt.Sprintf("%s.composite[%d]", key, j), "unknown action definition", name)
				continue
			}
			constituents = append(constituents, c)
		}
		def, err := domain.NewCompositeActionDefinition(d.Name, constituents...)
		if err != nil {
			b.c.wrap(key, err)
			continue
		}
		b.addDefinition(key, def)
	}
}

func (b *builder) addDefinition(key string, def *domain.ActionDefinition) {
	if _, dup := b.defs[def.Name()]; dup {
		b.c.add(key+".name", "duplicate action definition", def.Name())
		return
	}
	b.defs[def.Name()] = def
	b.defList = append(b.defList, def)
}

func (b *builder) variable(key, name string) (*domain.StateVarDefinition, bool) {
	def, ok := b.vars[name]
	if !ok {
		b.c.add(key, "unknown variable", name)
	}
	return def, ok
}

func (b *builder) variableList(key string, names []string) ([]*domain.StateVarDefinition, bool) {
	defs := make([]*domain.StateVarDefinition, 0, len(names))
	ok := true
	for i, name := range names {
		def, found := b.variable(fmt.Sprintf("%s[%d]", key, i), name)
		ok = ok && found
		defs = append(defs, def)
	}
	return defs, ok
}

func (b *builder) definition(key, name string) (*domain.ActionDefinition, bool) {
	def, ok := b.defs[name]
	if !ok {
		b.c.add(key, "unknown action definition", name)
	}
	return def, ok
}

func (b *builder) action(key string, def *domain.ActionDefinition, id string) (*domain.Action, bool) {
	for _, a := range def.Actions() {
		if a.ID() == id {
			return a, true
		}
	}
	b.c.add(key, "not an action of "+def.Name(), id)
	return nil, false
}

func (b *builder) tuple(key string, a Assignment) domain.StateVarTuple {
	vars := make([]domain.StateVar, 0, len(a))
	for name, raw := range a {
		def, ok := b.variable(key+"."+name, name)
		if !ok {
			continue
		}
		val, err := domain.ValueOf(raw)
		if err != nil {
			b.c.add(key+"."+name, err.Error(), raw)
			continue
		}
		sv, err := def.Var(val)
		if err != nil {
			b.c.wrap(key+"."+name, err)
			continue
		}
		vars = append(vars, sv)
	}
	t, err := domain.NewStateVarTuple(vars...)
	if err != nil {
		b.c.wrap(key, err)
	}
	return t
}

func (b *builder) psos(decls []PSO) []*mdp.FactoredPSO {
	psos := make([]*mdp.FactoredPSO, 0, len(decls))
	for i, decl := range decls {
		key := fmt.Sprintf("transitions[%d]", i)
		def, ok := b.definition(key+".definition", decl.Definition)
		if !ok {
			continue
		}

		pre := mdp.NewPrecondition(def)
		for j, p := range decl.Preconditions {
			pkey := fmt.Sprintf("%s.preconditions[%d]", key, j)
			a, okA := b.action(pkey+".action", def, p.Action)
			v, okV := b.variable(pkey+".var", p.Var)
			if !okA || !okV {
				continue
			}
			values := make([]domain.Value, 0, len(p.Values))
			for k, raw := range p.Values {
				val, err := domain.ValueOf(raw)
				if err != nil {
					b.c.add(fmt.Sprintf("%s.values[%d]", pkey, k), err.Error(), raw)
					continue
				}
				values = append(values, val)
			}
			if err := pre.Add(a, v, values...); err != nil {
				b.c.wrap(pkey, err)
			}
		}

		pso, err := mdp.NewFactoredPSO(def, pre)
		if err != nil {
			b.c.wrap(key, err)
			continue
		}
		for j, table := range decl.Effects {
			desc, ok := b.table(fmt.Sprintf("%s.effects[%d]", key, j), def, table)
			if !ok {
				continue
			}
			if err := pso.AddActionDescription(desc); err != nil {
				b.c.wrap(fmt.Sprintf("%s.effects[%d]", key, j), err)
			}
		}
		psos = append(psos, pso)
	}
	return psos
}

func (b *builder) table(key string, def *domain.ActionDefinition, decl EffectTable) (*mdp.TabularActionDescription, bool) {
	dDefs, okD := b.variableList(key+".discriminant", decl.Discriminant)
	eDefs, okE := b.variableList(key+".effect", decl.Effect)
	if !okD || !okE {
		return nil, false
	}
	dClass, err := mdp.NewDiscriminantClass(dDefs...)
	if err != nil {
		b.c.wrap(key+".discriminant", err)
		return nil, false
	}
	eClass, err := mdp.NewEffectClass(eDefs...)
	if err != nil {
		b.c.wrap(key+".effect", err)
		return nil, false
	}

	desc := mdp.NewTabularActionDescription(def, dClass, eClass)
	ok := true
	for i, row := range decl.Table {
		rkey := fmt.Sprintf("%s.table[%d]", key, i)
		a, found := b.action(rkey+".action", def, row.Action)
		if !found {
			ok = false
			continue
		}
		d, err := mdp.NewDiscriminant(dClass, b.tuple(rkey+".when", row.When).Vars()...)
		if err != nil {
			b.c.wrap(rkey+".when", err)
			ok = false
			continue
		}
		outcomes := make([]mdp.Outcome, 0, len(row.Outcomes))
		for j, o := range row.Outcomes {
			okey := fmt.Sprintf("%s.outcomes[%d].set", rkey, j)
			e, err := mdp.NewEffect(eClass, b.tuple(okey, o.Set).Vars()...)
			if err != nil {
				b.c.wrap(okey, err)
				ok = false
				continue
			}
			outcomes = append(outcomes, mdp.Outcome{Effect: e, Probability: o.Probability})
		}
		pe, err := mdp.NewProbabilisticEffect(eClass, outcomes...)
		if err != nil {
			b.c.wrap(rkey+".outcomes", err)
			ok = false
			continue
		}
		if err := desc.Put(a, d, pe); err != nil {
			b.c.wrap(rkey, err)
			ok = false
		}
	}
	return desc, ok
}

func (b *builder) qspace(decls []QFunctionDef) *metrics.QSpace {
	qfuncs := make([]metrics.QFunction, 0, len(decls))
	for i, decl := range decls {
		key := fmt.Sprintf("qfunctions[%d]", i)
		q, ok := b.qfunction(key, decl)
		if !ok {
			continue
		}
		if _, dup := b.qfuncs[q.Name()]; dup {
			b.c.add(key+".name", "duplicate qfunction", q.Name())
			continue
		}
		b.qfuncs[q.Name()] = q
		qfuncs = append(qfuncs, q)
	}
	qspace, err := metrics.NewQSpace(qfuncs...)
	if err != nil {
		b.c.wrap("qfunctions", err)
	}
	return qspace
}

func (b *builder) qfunction(key string, decl QFunctionDef) (metrics.QFunction, bool) {
	def, okDef := b.definition(key+".definition", decl.Definition)
	src, okSrc := b.variableList(key+".src", decl.Src)
	dest, okDest := b.variableList(key+".dest", decl.Dest)
	if !okDef || !okSrc || !okDest {
		return nil, false
	}
	structure, err := metrics.NewTransitionStructure(def, src, dest)
	if err != nil {
		b.c.wrap(key, err)
		return nil, false
	}

	switch {
	case len(decl.Values) > 0:
		rules := make([]rule, 0, len(decl.Values))
		ok := true
		for i, v := range decl.Values {
			m, found := b.match(fmt.Sprintf("%s.values[%d]", key, i), v.Match)
			ok = ok && found
			rules = append(rules, rule{match: m, value: v.Value})
		}
		return metrics.NewQFunction(decl.Name, structure, valueOf(rules)), ok

	case len(decl.Events) > 0:
		events := make([]metrics.EventValue, 0, len(decl.Events))
		ok := true
		for i, e := range decl.Events {
			m, found := b.match(fmt.Sprintf("%s.events[%d]", key, i), e.Match)
			ok = ok && found
			events = append(events, metrics.EventValue{
				Event: metrics.NewEvent(e.Name, structure, m.holds),
				Value: e.Value,
			})
		}
		if !ok {
			return nil, false
		}
		metric, err := metrics.NewEventBasedMetric(decl.Name, structure, events...)
		if err != nil {
			b.c.wrap(key, err)
			return nil, false
		}
		return metrics.NewEventBasedQFunction(metric), true

	case decl.Count != nil:
		m, ok := b.match(key+".count", *decl.Count)
		return metrics.NewCountQFunction(decl.Name, structure, m.holds), ok
	}
	b.c.add(key, "needs exactly one of values, events or count", nil)
	return nil, false
}

func (b *builder) cost(decl Cost) *objectives.CostFunction {
	name := decl.Name
	if name == "" {
		name = DefaultCostName
	}
	terms := make([]objectives.Term, 0, len(decl.Terms))
	for i, t := range decl.Terms {
		key := fmt.Sprintf("cost.terms[%d]", i)
		q, ok := b.qfuncs[t.QFunction]
		if !ok {
			b.c.add(key+".qfunction", "unknown qfunction", t.QFunction)
			continue
		}
		acf, err := objectives.NewAttributeCostFunction(q, t.Intercept, t.Slope)
		if err != nil {
			b.c.wrap(key, err)
			continue
		}
		terms = append(terms, objectives.Term{Cost: acf, Scaling: t.Scaling})
	}
	if len(b.c.errs) > 0 {
		return nil
	}
	cost, err := objectives.NewCostFunction(name, terms...)
	if err != nil {
		b.c.wrap("cost", err)
	}
	return cost
}
