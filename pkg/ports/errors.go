package ports

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMalformedModel is returned when the oracle rejects the exported model.
	ErrMalformedModel = errors.New("malformed model")
	// ErrPropertyParse is returned when the oracle cannot parse a query.
	ErrPropertyParse = errors.New("property could not be parsed")
	// ErrSolverInternal is returned when the oracle fails while solving.
	ErrSolverInternal = errors.New("solver internal error")
	// ErrResultParsing is returned when an oracle answer cannot be read or is not a finite number.
	ErrResultParsing = errors.New("solver result could not be parsed")
	// ErrNoSolution is returned when a policy is required but the optimizer found none.
	ErrNoSolution = errors.New("no solution")
	// ErrCacheMiss is returned by a ResultCache that holds no entry for a key.
	ErrCacheMiss = errors.New("cache miss")
)

// OracleError is a failed oracle call. Kind is one of the oracle sentinels.
type OracleError struct {
	Op   string
	Kind error
	Err  error
}

// NewOracleError builds an OracleError; err may be nil.
func NewOracleError(op string, kind, err error) *OracleError {
	return &OracleError{Op: op, Kind: kind, Err: err}
}

func (e *OracleError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OracleError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// CheckResult rejects NaN and infinite oracle answers.
func CheckResult(op string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, NewOracleError(op, ErrResultParsing, fmt.Errorf("non-finite value %v", v))
	}
	return v, nil
}
