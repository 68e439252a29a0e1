package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/xplanning/pkg/dtmc"
	"github.com/aretw0/xplanning/pkg/explicit"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/metrics"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/aretw0/xplanning/pkg/ports"
)

// Evaluator turns a policy into a policy.Info by querying a ModelEvaluator on
// the chain the policy induces. It is safe for concurrent use when its cache
// and locker are.
type Evaluator struct {
	opts options
}

// NewEvaluator creates an evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	return &Evaluator{opts: newOptions(opts)}
}

// cacheKey names the evaluation of the chain p induces on x. Policy keys only
// hold state and action names, so the key also carries the fingerprint of the
// explicit chain and the criterion: models sharing names but not dynamics,
// rewards or costs get distinct entries.
func (e *Evaluator) cacheKey(ctx context.Context, x *mdp.XMDP, chain *dtmc.XDTMC, p *policy.Policy) (string, error) {
	m, err := explicit.BuildDTMC(ctx, chain, x.CostFunction().AdditiveCostFunction)
	if err != nil {
		return "", err
	}
	fp, err := m.Fingerprint()
	if err != nil {
		return "", err
	}
	return e.opts.namespace + ":info:" + p.Key() + ":" + string(x.Criterion()) + ":" + fp, nil
}

// Evaluate computes the QA values, scaled costs, event counts and objective
// cost of p on x. Oracle errors are returned unchanged.
func (e *Evaluator) Evaluate(ctx context.Context, oracle ports.ModelEvaluator, x *mdp.XMDP, p *policy.Policy) (*policy.Info, error) {
	start := time.Now()
	info, cached, err := e.evaluate(ctx, oracle, x, p)
	e.opts.hooks.evaluate(ctx, &EvaluationEvent{
		PolicyKey: p.Key(),
		Cached:    cached,
		Duration:  time.Since(start),
		Err:       err,
	})
	return info, err
}

func (e *Evaluator) evaluate(ctx context.Context, oracle ports.ModelEvaluator, x *mdp.XMDP, p *policy.Policy) (*policy.Info, bool, error) {
	chain, err := dtmc.Induce(x, p)
	if err != nil {
		return nil, false, err
	}
	if e.opts.cache == nil {
		info, err := e.compute(ctx, oracle, x, chain, p)
		return info, false, err
	}

	key, err := e.cacheKey(ctx, x, chain, p)
	if err != nil {
		return nil, false, err
	}
	if info, ok := e.lookup(ctx, key, p); ok {
		return info, true, nil
	}

	if e.opts.locker != nil {
		unlock, err := e.opts.locker.Lock(ctx, "lock:"+key, e.opts.lockTTL)
		if err != nil {
			return nil, false, fmt.Errorf("locking %s: %w", key, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				e.opts.logger.Warn("failed to release evaluation lock", "key", key, "err", err)
			}
		}()
		// Another replica may have finished while we waited.
		if info, ok := e.lookup(ctx, key, p); ok {
			return info, true, nil
		}
	}

	info, err := e.compute(ctx, oracle, x, chain, p)
	if err != nil {
		return nil, false, err
	}
	if err := e.opts.cache.Put(ctx, key, info); err != nil {
		e.opts.logger.Warn("failed to cache policy info", "policy", p.Key(), "err", err)
	}
	return info, false, nil
}

func (e *Evaluator) lookup(ctx context.Context, key string, p *policy.Policy) (*policy.Info, bool) {
	info, err := e.opts.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ports.ErrCacheMiss) {
			e.opts.logger.Warn("policy info cache read failed", "key", key, "err", err)
		}
		return nil, false
	}
	if info.PolicyKey != p.Key() {
		e.opts.logger.Warn("discarding cache entry for another policy", "key", key, "policy", info.PolicyKey)
		return nil, false
	}
	info.Policy = p
	return info, true
}

func (e *Evaluator) compute(ctx context.Context, oracle ports.ModelEvaluator, x *mdp.XMDP, chain *dtmc.XDTMC, p *policy.Policy) (*policy.Info, error) {
	info := policy.NewInfo(p)
	cost := x.CostFunction()
	for _, q := range x.QSpace().All() {
		v, err := oracle.QAValue(ctx, chain, q)
		if err != nil {
			return nil, err
		}
		if v, err = ports.CheckResult("qa_value "+q.Name(), v); err != nil {
			return nil, err
		}
		info.QAValues[q.Name()] = v

		scaled, err := cost.ScaledCost(q, v)
		if err != nil {
			return nil, err
		}
		info.ScaledCosts[q.Name()] = scaled

		eq, ok := q.(*metrics.EventBasedQFunction)
		if !ok {
			continue
		}
		counts, err := oracle.EventCounts(ctx, chain, eq)
		if err != nil {
			return nil, err
		}
		for name, n := range counts {
			if _, err := ports.CheckResult("event_counts "+q.Name()+"."+name, n); err != nil {
				return nil, err
			}
		}
		if info.EventCounts == nil {
			info.EventCounts = make(map[string]map[string]float64)
		}
		info.EventCounts[q.Name()] = counts
	}

	obj, err := oracle.Cost(ctx, chain, cost.AdditiveCostFunction)
	if err != nil {
		return nil, err
	}
	if info.ObjectiveCost, err = ports.CheckResult("cost "+cost.Name(), obj); err != nil {
		return nil, err
	}

	e.opts.logger.Debug("policy evaluated", "policy", p.Key(), "objective_cost", info.ObjectiveCost)
	return info, nil
}
