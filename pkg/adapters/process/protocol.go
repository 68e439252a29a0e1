package process

import (
	"errors"

	"github.com/aretw0/xplanning/pkg/explicit"
	"github.com/aretw0/xplanning/pkg/ports"
)

// Op names a solver request.
type Op string

const (
	// OpExpectedReward asks for the expected accumulated value of one reward
	// structure of a DTMC.
	OpExpectedReward Op = "expected_reward"
	// OpEventCounts asks for the expected number of transitions carrying each event key.
	OpEventCounts Op = "event_counts"
	// OpOptimize asks for a policy of an MDP minimizing reward 1 under constraints.
	OpOptimize Op = "optimize"
)

// Request is one line sent to the solver.
type Request struct {
	ID          string            `json:"id"`
	Op          Op                `json:"op"`
	Criterion   string            `json:"criterion"`
	Model       explicit.Document `json:"model"`
	Reward      int               `json:"reward,omitempty"`
	Events      []string          `json:"events,omitempty"`
	Constraints []Constraint      `json:"constraints,omitempty"`
}

// Constraint bounds the expected value of a reward structure.
type Constraint struct {
	Reward int     `json:"reward"`
	Bound  float64 `json:"bound"`
	Strict bool    `json:"strict,omitempty"`
	Soft   bool    `json:"soft,omitempty"`
	// PenaltyScale prices a violated soft constraint quadratically.
	PenaltyScale float64 `json:"penalty_scale,omitempty"`
}

// Status of a Response.
const (
	StatusOK         = "ok"
	StatusNoSolution = "no_solution"
	StatusError      = "error"
)

// Response is one line read from the solver. Unknown fields are ignored.
type Response struct {
	ID      string               `mapstructure:"id"`
	Status  string               `mapstructure:"status"`
	Kind    string               `mapstructure:"kind"`
	Message string               `mapstructure:"message"`
	Value   *float64             `mapstructure:"value"`
	Values  map[string]float64   `mapstructure:"values"`
	Reason  string               `mapstructure:"reason"`
	Policy  explicit.PolicyTable `mapstructure:"policy"`
}

// errorKinds maps the "kind" of an error response to its oracle sentinel.
var errorKinds = map[string]error{
	"malformed_model": ports.ErrMalformedModel,
	"property_parse":  ports.ErrPropertyParse,
	"solver_internal": ports.ErrSolverInternal,
	"result_parsing":  ports.ErrResultParsing,
}

func (r *Response) err(op string) error {
	kind, ok := errorKinds[r.Kind]
	if !ok {
		kind = ports.ErrSolverInternal
	}
	var cause error
	if r.Message != "" {
		cause = errors.New(r.Message)
	}
	return ports.NewOracleError(op, kind, cause)
}
