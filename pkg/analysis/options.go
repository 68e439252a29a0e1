package analysis

import (
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/xplanning/pkg/ports"
)

// DefaultStep is the attribute-cost improvement requested per alternative.
const DefaultStep = 1.0

// DefaultLockTTL bounds how long an evaluation holds its cache lock.
const DefaultLockTTL = 30 * time.Second

type options struct {
	logger      *slog.Logger
	hooks       Hooks
	cache       ports.ResultCache
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	namespace   string
	step        float64
	concurrency int
	weber       *WeberScale
}

func defaultOptions() options {
	return options{
		logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		lockTTL:     DefaultLockTTL,
		namespace:   "xplanning",
		step:        DefaultStep,
		concurrency: 1,
	}
}

func newOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures an Evaluator or an Explorer.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHooks registers lifecycle hooks.
func WithHooks(hooks Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithCache stores evaluated policies in cache.
func WithCache(cache ports.ResultCache) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithLocker serializes evaluations of the same policy across processes.
// It only takes effect together with WithCache.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(o *options) {
		o.locker = locker
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithNamespace prefixes cache keys, typically with a model identifier.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithStep sets the attribute-cost improvement requested per alternative (default 1.0).
func WithStep(step float64) Option {
	return func(o *options) {
		if step > 0 {
			o.step = step
		}
	}
}

// WithConcurrency sets how many QFunctions are searched at once (default 1).
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithWeberScale adds a soft constraint asking each alternative for a
// perceivable improvement.
func WithWeberScale(w *WeberScale) Option {
	return func(o *options) {
		o.weber = w
	}
}
