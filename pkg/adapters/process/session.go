package process

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/xplanning/pkg/dtmc"
	"github.com/aretw0/xplanning/pkg/explicit"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/metrics"
	"github.com/aretw0/xplanning/pkg/objectives"
	"github.com/aretw0/xplanning/pkg/ports"
	"github.com/google/uuid"
)

// Session is one solver process. It implements ports.Session and, like every
// session, is used by a single goroutine.
type Session struct {
	factory *Factory
	proc    *proc
	closed  bool
}

// modelError reports a model that could not be exported. Cancellation is
// returned as is.
func modelError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ports.NewOracleError(op, ports.ErrMalformedModel, err)
}

// QAValue implements ports.ModelEvaluator.
func (s *Session) QAValue(ctx context.Context, chain *dtmc.XDTMC, q metrics.QFunction) (float64, error) {
	const op = "qa_value"
	x := chain.XMDP()
	m, err := explicit.BuildDTMC(ctx, chain, x.CostFunction().AdditiveCostFunction)
	if err != nil {
		return 0, modelError(op, err)
	}
	reward, err := m.Rewards.Index(q.Name())
	if err != nil {
		return 0, ports.NewOracleError(op, ports.ErrPropertyParse, err)
	}
	return s.expected(ctx, op, x, m, reward)
}

// Cost implements ports.ModelEvaluator.
func (s *Session) Cost(ctx context.Context, chain *dtmc.XDTMC, objective *objectives.AdditiveCostFunction) (float64, error) {
	const op = "cost"
	m, err := explicit.BuildDTMC(ctx, chain, objective)
	if err != nil {
		return 0, modelError(op, err)
	}
	return s.expected(ctx, op, chain.XMDP(), m, explicit.ObjectiveIndex)
}

func (s *Session) expected(ctx context.Context, op string, x *mdp.XMDP, m *explicit.Model, reward int) (float64, error) {
	resp, err := s.call(ctx, op, &Request{
		Op:        OpExpectedReward,
		Criterion: string(x.Criterion()),
		Model:     m.Document(),
		Reward:    reward,
	})
	if err != nil {
		return 0, err
	}
	if resp.Value == nil {
		return 0, ports.NewOracleError(op, ports.ErrResultParsing, errors.New("response has no value"))
	}
	return ports.CheckResult(op, *resp.Value)
}

// EventCounts implements ports.ModelEvaluator.
func (s *Session) EventCounts(ctx context.Context, chain *dtmc.XDTMC, q *metrics.EventBasedQFunction) (map[string]float64, error) {
	const op = "event_counts"
	x := chain.XMDP()
	m, err := explicit.BuildDTMC(ctx, chain, x.CostFunction().AdditiveCostFunction)
	if err != nil {
		return nil, modelError(op, err)
	}

	events := q.Events()
	keys := make([]string, len(events))
	for i, ev := range events {
		keys[i] = explicit.EventKey(q.Name(), ev.Event.Name())
	}
	resp, err := s.call(ctx, op, &Request{
		Op:        OpEventCounts,
		Criterion: string(x.Criterion()),
		Model:     m.Document(),
		Events:    keys,
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]float64, len(events))
	for i, ev := range events {
		v, ok := resp.Values[keys[i]]
		if !ok {
			return nil, ports.NewOracleError(op, ports.ErrResultParsing, fmt.Errorf("no count for %s", keys[i]))
		}
		if counts[ev.Event.Name()], err = ports.CheckResult(op, v); err != nil {
			return nil, err
		}
	}
	return counts, nil
}

// Optimize implements ports.PolicyOptimizer.
func (s *Session) Optimize(ctx context.Context, x *mdp.XMDP, objective *objectives.AdditiveCostFunction, constraints ...objectives.AttributeConstraint) (ports.Solution, error) {
	const op = "optimize"
	m, err := explicit.BuildMDP(ctx, x, objective)
	if err != nil {
		return ports.Solution{}, modelError(op, err)
	}

	wire := make([]Constraint, 0, len(constraints))
	for _, c := range constraints {
		reward, err := m.Rewards.Index(c.QFunction.Name())
		if err != nil {
			return ports.Solution{}, ports.NewOracleError(op, ports.ErrPropertyParse, err)
		}
		k := Constraint{Reward: reward, Bound: c.UpperBound, Strict: c.Strict, Soft: c.Soft}
		if c.Soft {
			qp, ok := c.Penalty.(objectives.QuadraticPenalty)
			if !ok {
				return ports.Solution{}, ports.NewOracleError(op, ports.ErrPropertyParse,
					fmt.Errorf("unsupported penalty %T on %s", c.Penalty, c.QFunction.Name()))
			}
			k.PenaltyScale = qp.Scale
		}
		wire = append(wire, k)
	}

	resp, err := s.call(ctx, op, &Request{
		Op:          OpOptimize,
		Criterion:   string(x.Criterion()),
		Model:       m.Document(),
		Constraints: wire,
	})
	if err != nil {
		return ports.Solution{}, err
	}

	if resp.Status == StatusNoSolution {
		reason := ports.Reason(resp.Reason)
		if reason == "" {
			reason = ports.ReasonConstraintNotSatisfied
		}
		return ports.NoSolution(reason), nil
	}
	p, err := explicit.DecodePolicy(m.States, x.ActionSpace(), resp.Policy)
	if err != nil {
		return ports.Solution{}, ports.NewOracleError(op, ports.ErrResultParsing, err)
	}
	return ports.Solved(p), nil
}

// call sends req, restarting the solver and resending up to Retries times
// when the process dies or hangs.
func (s *Session) call(ctx context.Context, op string, req *Request) (*Response, error) {
	if s.closed {
		return nil, ports.NewOracleError(op, ports.ErrSolverInternal, errors.New("session closed"))
	}
	req.ID = uuid.NewString()
	f := s.factory
	if f.artifacts != nil {
		if err := f.artifacts.Put(ctx, string(req.Op)+"-"+req.ID+".json", req); err != nil {
			f.logger.Warn("failed to store solver request", "id", req.ID, "err", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if s.proc == nil {
			p, err := startProc(f.cfg, f.grace)
			if err != nil {
				return nil, ports.NewOracleError(op, ports.ErrSolverInternal, err)
			}
			s.proc = p
		}

		raw, err := s.proc.roundTrip(ctx, req, f.cfg.timeout())
		if err == nil {
			return s.decode(op, req, raw)
		}
		if ctx.Err() != nil {
			s.discard()
			return nil, ctx.Err()
		}
		if !errors.Is(err, errProcessLost) {
			return nil, ports.NewOracleError(op, ports.ErrResultParsing, err)
		}
		s.discard()
		if attempt >= f.cfg.Retries {
			return nil, ports.NewOracleError(op, ports.ErrSolverInternal, err)
		}
		f.logger.Warn("solver lost, retrying", "solver", f.cfg.Name, "id", req.ID, "attempt", attempt+1, "err", err)
	}
}

func (s *Session) decode(op string, req *Request, raw map[string]any) (*Response, error) {
	var resp Response
	if err := decode(raw, &resp); err != nil {
		return nil, ports.NewOracleError(op, ports.ErrResultParsing, err)
	}
	if resp.ID != req.ID {
		return nil, ports.NewOracleError(op, ports.ErrResultParsing,
			fmt.Errorf("response %q answers another request than %q", resp.ID, req.ID))
	}
	switch resp.Status {
	case StatusOK:
		return &resp, nil
	case StatusNoSolution:
		if req.Op != OpOptimize {
			return nil, ports.NewOracleError(op, ports.ErrResultParsing, errors.New("no_solution answer to an evaluation"))
		}
		return &resp, nil
	case StatusError:
		return nil, resp.err(op)
	default:
		return nil, ports.NewOracleError(op, ports.ErrResultParsing, fmt.Errorf("unknown status %q", resp.Status))
	}
}

// discard kills the current process without waiting for a graceful exit.
func (s *Session) discard() {
	if s.proc == nil {
		return
	}
	s.proc.kill()
	<-s.proc.done
	s.proc = nil
}

// Close stops the solver. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.proc == nil {
		return nil
	}
	p := s.proc
	s.proc = nil
	if err := p.stop(); err != nil {
		return fmt.Errorf("solver %s: %w", s.factory.cfg.Name, err)
	}
	return nil
}
