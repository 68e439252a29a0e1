package xplanning

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/xplanning/pkg/analysis"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/aretw0/xplanning/pkg/ports"
)

// Explainer is the high-level entry point of the library.
// It solves XMDPs and explains solution policies through their alternatives.
type Explainer struct {
	factory   ports.SessionFactory
	evaluator *analysis.Evaluator
	explorer  *analysis.Explorer
	analysis  []analysis.Option
	logger    *slog.Logger
}

// Option defines a functional option for configuring the Explainer.
type Option func(*Explainer)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Explainer) {
		e.logger = logger
	}
}

// WithAnalysisOptions configures the underlying evaluator and explorer
// (cache, locker, step, concurrency, hooks, Weber scale).
func WithAnalysisOptions(opts ...analysis.Option) Option {
	return func(e *Explainer) {
		e.analysis = append(e.analysis, opts...)
	}
}

// New creates an Explainer backed by the oracle sessions of factory.
func New(factory ports.SessionFactory, opts ...Option) *Explainer {
	e := &Explainer{factory: factory}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// The logger goes first so explicit analysis options can override it.
	aopts := append([]analysis.Option{analysis.WithLogger(e.logger)}, e.analysis...)
	e.evaluator = analysis.NewEvaluator(aopts...)
	e.explorer = analysis.NewExplorer(factory, aopts...)
	return e
}

// Solve computes the optimal policy of x under its cost function.
// An infeasible problem is reported as ports.ErrNoSolution.
func (e *Explainer) Solve(ctx context.Context, x *mdp.XMDP) (*policy.Policy, error) {
	session, err := e.factory.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening oracle session: %w", err)
	}
	defer e.close(session)

	sol, err := session.Optimize(ctx, x, x.CostFunction().AdditiveCostFunction)
	if err != nil {
		return nil, fmt.Errorf("solving: %w", err)
	}
	if !sol.Found() {
		return nil, fmt.Errorf("%w: %s", ports.ErrNoSolution, sol.Reason)
	}
	e.logger.Info("solution found", "policy", sol.Policy.Key(), "decisions", sol.Policy.Len())
	return sol.Policy, nil
}

// Explain evaluates solution and compares it with every distinct
// Pareto-optimal alternative the explorer finds.
func (e *Explainer) Explain(ctx context.Context, x *mdp.XMDP, solution *policy.Policy) (*analysis.Explanation, error) {
	session, err := e.factory.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening oracle session: %w", err)
	}
	defer e.close(session)

	info, err := e.evaluator.Evaluate(ctx, session, x, solution)
	if err != nil {
		return nil, fmt.Errorf("evaluating solution: %w", err)
	}

	outcomes, err := e.explorer.Search(ctx, x, info)
	if err != nil {
		return nil, err
	}

	var alts []analysis.Alternative
	for _, out := range outcomes {
		if !out.Found || out.Duplicate {
			continue
		}
		altInfo, err := e.evaluator.Evaluate(ctx, session, x, out.Policy)
		if err != nil {
			return nil, fmt.Errorf("evaluating alternative for %s: %w", out.QFunction, err)
		}
		tr, err := analysis.NewTradeoff(info, altInfo, x.QSpace())
		if err != nil {
			return nil, err
		}
		alts = append(alts, analysis.Alternative{Target: out.QFunction, Tradeoff: tr})
	}

	exp := analysis.NewExplanation(info, alts, outcomes)
	e.logger.Info("explanation ready",
		"explanation_id", exp.ID,
		"policy", info.PolicyKey,
		"alternatives", len(alts),
	)
	return exp, nil
}

// SolveAndExplain solves x and explains the resulting policy.
func (e *Explainer) SolveAndExplain(ctx context.Context, x *mdp.XMDP) (*analysis.Explanation, error) {
	p, err := e.Solve(ctx, x)
	if err != nil {
		return nil, err
	}
	return e.Explain(ctx, x, p)
}

func (e *Explainer) close(s ports.Session) {
	if err := s.Close(); err != nil {
		e.logger.Warn("failed to close oracle session", "err", err)
	}
}
