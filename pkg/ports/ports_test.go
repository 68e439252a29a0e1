package ports_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/aretw0/xplanning/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonCache round-trips entries through JSON to behave like a remote cache.
type jsonCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *jsonCache) Get(_ context.Context, key string) (*policy.Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	var info policy.Info
	return &info, json.Unmarshal(raw, &info)
}

func (c *jsonCache) Put(_ context.Context, key string, info *policy.Info) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *jsonCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func TestResultCache_Contract(t *testing.T) {
	ports.RunResultCacheContract(t, &jsonCache{data: make(map[string][]byte)})
}

func TestOracleError(t *testing.T) {
	cause := errors.New("exit status 3")
	err := error(ports.NewOracleError("qa_value", ports.ErrSolverInternal, cause))

	assert.ErrorIs(t, err, ports.ErrSolverInternal)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ports.ErrMalformedModel)
	assert.Equal(t, "qa_value: solver internal error: exit status 3", err.Error())

	var oe *ports.OracleError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "qa_value", oe.Op)

	bare := ports.NewOracleError("optimize", ports.ErrPropertyParse, nil)
	assert.Equal(t, "optimize: property could not be parsed", bare.Error())
	assert.ErrorIs(t, bare, ports.ErrPropertyParse)
}

func TestCheckResult(t *testing.T) {
	v, err := ports.CheckResult("cost", 1.5)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ports.CheckResult("cost", bad)
		assert.ErrorIs(t, err, ports.ErrResultParsing)
	}
}

func TestSolution(t *testing.T) {
	assert.True(t, ports.Solved(policy.Must()).Found())

	none := ports.NoSolution(ports.ReasonConstraintNotSatisfied)
	assert.False(t, none.Found())
	assert.Equal(t, ports.ReasonConstraintNotSatisfied, none.Reason)
}
