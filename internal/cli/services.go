package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aretw0/xplanning"
	"github.com/aretw0/xplanning/internal/config"
	"github.com/aretw0/xplanning/pkg/adapters/file"
	"github.com/aretw0/xplanning/pkg/adapters/memory"
	"github.com/aretw0/xplanning/pkg/adapters/process"
	"github.com/aretw0/xplanning/pkg/adapters/redis"
	"github.com/aretw0/xplanning/pkg/analysis"
	"github.com/aretw0/xplanning/pkg/observability"
	"github.com/aretw0/xplanning/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Services bundles what the commands need to explain models.
type Services struct {
	Explainer *xplanning.Explainer
	Registry  *prometheus.Registry
	Metrics   *observability.Metrics
	Logger    *slog.Logger
	closers   []func() error
}

// Close releases the cache connections.
func (s *Services) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewServices wires an explainer from cfg. A nil factory starts the solver
// named by the configuration.
func NewServices(cfg *config.Config, logger *slog.Logger, factory ports.SessionFactory) (*Services, error) {
	s := &Services{Registry: prometheus.NewRegistry(), Logger: logger}
	s.Metrics = observability.NewMetrics(s.Registry)

	if factory == nil {
		f, err := OpenSolver(cfg, logger)
		if err != nil {
			return nil, err
		}
		factory = f
	}

	opts := []analysis.Option{
		analysis.WithStep(cfg.Step),
		analysis.WithConcurrency(cfg.Concurrency),
		analysis.WithHooks(s.Metrics.Hooks().Merge(observability.LogHooks(logger))),
	}
	if len(cfg.Weber) > 0 {
		w, err := analysis.NewWeberScale(cfg.Weber)
		if err != nil {
			return nil, err
		}
		opts = append(opts, analysis.WithWeberScale(w))
	}
	cacheOpts, err := s.cache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	opts = append(opts, cacheOpts...)

	s.Explainer = xplanning.New(factory,
		xplanning.WithLogger(logger),
		xplanning.WithAnalysisOptions(opts...),
	)
	return s, nil
}

func (s *Services) cache(cfg config.Cache) ([]analysis.Option, error) {
	ttl := cfg.LockTTL
	if ttl == 0 {
		ttl = analysis.DefaultLockTTL
	}

	switch cfg.Backend {
	case config.CacheNone:
		return nil, nil
	case "", config.CacheMemory:
		return []analysis.Option{
			analysis.WithCache(memory.NewCache()),
			analysis.WithLocker(memory.NewLocker(), ttl),
		}, nil
	case config.CacheRedis:
		prefix := cfg.Prefix
		if prefix == "" {
			prefix = redis.DefaultPrefix
		}
		cache := redis.New(cfg.Addr, cfg.Password, cfg.DB, redis.WithPrefix(prefix), redis.WithTTL(cfg.TTL))
		s.closers = append(s.closers, cache.Client().Close)
		s.Logger.Debug("using redis cache", "addr", cfg.Addr, "prefix", prefix)
		return []analysis.Option{
			analysis.WithCache(cache),
			analysis.WithLocker(redis.NewLocker(cache.Client(), prefix+"lock:"), ttl),
		}, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// OpenSolver builds the process factory of the configured solver. Without a
// solver name the only declared solver is used.
func OpenSolver(cfg *config.Config, logger *slog.Logger) (*process.Factory, error) {
	solvers, err := process.LoadSolvers(cfg.SolversFile)
	if err != nil {
		return nil, err
	}

	name := cfg.Solver
	if name == "" {
		if len(solvers) != 1 {
			return nil, fmt.Errorf("no solver selected among %d declared in %s", len(solvers), cfg.SolversFile)
		}
		for n := range solvers {
			name = n
		}
	}
	solver, ok := solvers[name]
	if !ok {
		names := make([]string, 0, len(solvers))
		for n := range solvers {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown solver %q (declared: %s)", name, strings.Join(names, ", "))
	}

	opts := []process.Option{process.WithLogger(logger)}
	if cfg.ArtifactsDir != "" {
		opts = append(opts, process.WithArtifacts(file.New(cfg.ArtifactsDir)))
	}
	return process.NewFactory(solver, opts...)
}
