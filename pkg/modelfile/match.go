package modelfile

import (
	"github.com/aretw0/xplanning/pkg/domain"
	"github.com/aretw0/xplanning/pkg/metrics"
)

// matcher is a resolved Match.
type matcher struct {
	action string
	src    domain.StateVarTuple
	dest   domain.StateVarTuple
}

func (b *builder) match(key string, m Match) (matcher, bool) {
	before := len(b.c.errs)
	out := matcher{
		action: m.Action,
		src:    b.tuple(key+".src", m.Src),
		dest:   b.tuple(key+".dest", m.Dest),
	}
	return out, len(b.c.errs) == before
}

// holds is a metrics.Predicate.
func (m matcher) holds(t metrics.Transition) (bool, error) {
	if m.action != "" && m.action != t.Action().Name() && m.action != t.Action().ID() {
		return false, nil
	}
	if ok, err := within(m.src, t.SrcValue); !ok || err != nil {
		return false, err
	}
	return within(m.dest, t.DestValue)
}

// within reports whether every variable of want has the same value in the
// transition. A variable outside the structure is an error.
func within(want domain.StateVarTuple, value func(*domain.StateVarDefinition) (domain.Value, error)) (bool, error) {
	for _, sv := range want.Vars() {
		got, err := value(sv.Definition())
		if err != nil {
			return false, err
		}
		if got != sv.Value() {
			return false, nil
		}
	}
	return true, nil
}

type rule struct {
	match matcher
	value float64
}

// valueOf returns the value of the first matching rule, or 0.
func valueOf(rules []rule) metrics.ValueFunc {
	return func(t metrics.Transition) (float64, error) {
		for _, r := range rules {
			ok, err := r.match.holds(t)
			if err != nil {
				return 0, err
			}
			if ok {
				return r.value, nil
			}
		}
		return 0, nil
	}
}
