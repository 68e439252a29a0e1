package analysis

import (
	"context"
	"time"

	"github.com/aretw0/xplanning/pkg/ports"
)

// EvaluationEvent describes one policy evaluation.
type EvaluationEvent struct {
	PolicyKey string
	Cached    bool
	Duration  time.Duration
	Err       error
}

// SearchEvent describes one alternative search for a QFunction.
type SearchEvent struct {
	QFunction string
	Found     bool
	Reason    ports.Reason
	Duration  time.Duration
	Err       error
}

// Hooks are optional callbacks fired during analysis. They run on the
// goroutine doing the work and must be safe for concurrent use.
type Hooks struct {
	OnEvaluate    func(ctx context.Context, e *EvaluationEvent)
	OnSearchStart func(ctx context.Context, e *SearchEvent)
	OnSearchDone  func(ctx context.Context, e *SearchEvent)
}

func (h Hooks) evaluate(ctx context.Context, e *EvaluationEvent) {
	if h.OnEvaluate != nil {
		h.OnEvaluate(ctx, e)
	}
}

func (h Hooks) searchStart(ctx context.Context, e *SearchEvent) {
	if h.OnSearchStart != nil {
		h.OnSearchStart(ctx, e)
	}
}

func (h Hooks) searchDone(ctx context.Context, e *SearchEvent) {
	if h.OnSearchDone != nil {
		h.OnSearchDone(ctx, e)
	}
}

// Merge returns hooks that call h and then o.
func (h Hooks) Merge(o Hooks) Hooks {
	return Hooks{
		OnEvaluate: func(ctx context.Context, e *EvaluationEvent) {
			h.evaluate(ctx, e)
			o.evaluate(ctx, e)
		},
		OnSearchStart: func(ctx context.Context, e *SearchEvent) {
			h.searchStart(ctx, e)
			o.searchStart(ctx, e)
		},
		OnSearchDone: func(ctx context.Context, e *SearchEvent) {
			h.searchDone(ctx, e)
			o.searchDone(ctx, e)
		},
	}
}
