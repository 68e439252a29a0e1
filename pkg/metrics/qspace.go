package metrics

import (
	"fmt"

	"github.com/aretw0/xplanning/pkg/domain"
)

// QSpace is the ordered set of QFunctions of a problem. Names are unique.
type QSpace struct {
	qfuncs []QFunction
	byName map[string]QFunction
}

// NewQSpace builds a space; duplicate names are rejected.
func NewQSpace(qfuncs ...QFunction) (*QSpace, error) {
	s := &QSpace{byName: make(map[string]QFunction, len(qfuncs))}
	for _, q := range qfuncs {
		if _, dup := s.byName[q.Name()]; dup {
			return nil, fmt.Errorf("%w: qfunction %s declared twice", domain.ErrInvalidDefinition, q.Name())
		}
		s.byName[q.Name()] = q
		s.qfuncs = append(s.qfuncs, q)
	}
	return s, nil
}

// All returns the QFunctions in declaration order.
func (s *QSpace) All() []QFunction { return append([]QFunction(nil), s.qfuncs...) }

// Len returns the number of QFunctions.
func (s *QSpace) Len() int { return len(s.qfuncs) }

// Get returns the QFunction with the given name.
func (s *QSpace) Get(name string) (QFunction, error) {
	q, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrQFunctionNotFound, name)
	}
	return q, nil
}

// Contains reports whether q, by identity, belongs to the space.
func (s *QSpace) Contains(q QFunction) bool {
	got, ok := s.byName[q.Name()]
	return ok && Same(got, q)
}
