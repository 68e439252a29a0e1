package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/xplanning/pkg/ports"
)

// ArtifactSink receives a copy of every request sent to the solver.
type ArtifactSink interface {
	Put(ctx context.Context, name string, v any) error
}

// Factory opens solver sessions, one process per session.
// It implements ports.SessionFactory.
type Factory struct {
	cfg       Config
	logger    *slog.Logger
	artifacts ArtifactSink
	grace     time.Duration
}

// Option configures the Factory.
type Option func(*Factory)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithWorkDir overrides the working directory of solver processes.
func WithWorkDir(dir string) Option {
	return func(f *Factory) {
		f.cfg.WorkDir = dir
	}
}

// WithArtifacts stores every request in sink, for offline debugging.
func WithArtifacts(sink ArtifactSink) Option {
	return func(f *Factory) {
		f.artifacts = sink
	}
}

// WithGracePeriod sets how long a closing solver may take to exit.
func WithGracePeriod(d time.Duration) Option {
	return func(f *Factory) {
		if d > 0 {
			f.grace = d
		}
	}
}

// NewFactory validates cfg and returns a factory for it.
func NewFactory(cfg Config, opts ...Option) (*Factory, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("solver %q has no command", cfg.Name)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("solver %q: negative retries", cfg.Name)
	}
	f := &Factory{
		cfg:    cfg,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		grace:  DefaultGracePeriod,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Open starts a solver process.
func (f *Factory) Open(ctx context.Context) (ports.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := startProc(f.cfg, f.grace)
	if err != nil {
		return nil, ports.NewOracleError("open", ports.ErrSolverInternal, err)
	}
	f.logger.Debug("solver started", "solver", f.cfg.Name, "pid", p.cmd.Process.Pid)
	return &Session{factory: f, proc: p}, nil
}
