package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/xplanning"
	"github.com/aretw0/xplanning/internal/config"
	"github.com/aretw0/xplanning/internal/logging"
	"github.com/aretw0/xplanning/internal/presentation/graph"
	"github.com/aretw0/xplanning/internal/presentation/report"
	"github.com/aretw0/xplanning/pkg/dtmc"
	"github.com/aretw0/xplanning/pkg/explicit"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/modelfile"
	"github.com/aretw0/xplanning/pkg/policy"
	"github.com/aretw0/xplanning/pkg/ports"
)

// RunOptions holds the flags shared by the commands.
type RunOptions struct {
	ConfigPath string
	ModelPath  string
	// PolicyPath names a policy file to explain instead of the optimal one.
	PolicyPath string
	JSON       bool
	Debug      bool
	// Factory replaces the configured solver.
	Factory ports.SessionFactory
}

// createLogger configures the application logger.
// In debug mode, everything goes to Stderr; otherwise the configured level applies.
func createLogger(debug bool, cfg *config.Config) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(cfg.Level())
}

func setup(opts RunOptions) (*Services, *mdp.XMDP, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	x, err := loadModel(opts.ModelPath)
	if err != nil {
		return nil, nil, err
	}
	svc, err := NewServices(cfg, createLogger(opts.Debug, cfg), opts.Factory)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing explainer: %w", err)
	}
	return svc, x, nil
}

func loadModel(path string) (*mdp.XMDP, error) {
	f, err := modelfile.Load(path)
	if err != nil {
		return nil, err
	}
	return f.Build()
}

func loadPolicy(path string, x *mdp.XMDP) (*policy.Policy, error) {
	if path == "" {
		return nil, nil
	}
	return modelfile.LoadPolicy(path, x)
}

// RunExplain explains the model of opts and writes the report to out.
func RunExplain(ctx context.Context, opts RunOptions, out io.Writer) error {
	svc, x, err := setup(opts)
	if err != nil {
		return err
	}
	defer svc.Close()

	solution, err := loadPolicy(opts.PolicyPath, x)
	if err != nil {
		return err
	}

	runner := xplanning.NewRunner(out)
	if opts.JSON {
		runner.Format = xplanning.FormatJSON
	} else if f, ok := out.(*os.File); ok {
		if r, err := report.NewRenderer(f); err == nil {
			runner.Renderer = xplanning.ContentRenderer(r)
		}
	}

	_, err = runner.Run(ctx, svc.Explainer, x, solution)
	return handleExecutionError(err)
}

// RunValidate builds the model at path and reports every problem found.
func RunValidate(path string, out io.Writer) error {
	x, err := loadModel(path)
	if err != nil {
		if details := modelfile.ValidationErrors(err); len(details) > 0 {
			for _, d := range details {
				fmt.Fprintf(out, "  - %v\n", d)
			}
			return fmt.Errorf("%d problem(s) in %s", len(details), path)
		}
		return err
	}
	fmt.Fprintf(out, "%s is valid: %d states, %d QFunctions, objective %s\n",
		path, x.StateSpace().Size(), len(x.QSpace().All()), x.CostFunction().Name())
	return nil
}

// GraphOptions selects what RunGraph draws.
type GraphOptions struct {
	RunOptions
	// Full draws every applicable action instead of a policy.
	Full bool
}

// RunGraph writes a Mermaid diagram of the model, or of the chain induced by
// the given policy or the optimal one.
func RunGraph(ctx context.Context, opts GraphOptions, out io.Writer) error {
	var model *explicit.Model
	if opts.Full {
		x, err := loadModel(opts.ModelPath)
		if err != nil {
			return err
		}
		if model, err = explicit.BuildMDP(ctx, x, x.CostFunction().AdditiveCostFunction); err != nil {
			return err
		}
	} else {
		svc, x, err := setup(opts.RunOptions)
		if err != nil {
			return err
		}
		defer svc.Close()

		p, err := loadPolicy(opts.PolicyPath, x)
		if err != nil {
			return err
		}
		if p == nil {
			if p, err = svc.Explainer.Solve(ctx, x); err != nil {
				return handleExecutionError(err)
			}
		}
		chain, err := dtmc.Induce(x, p)
		if err != nil {
			return err
		}
		if model, err = explicit.BuildDTMC(ctx, chain, x.CostFunction().AdditiveCostFunction); err != nil {
			return err
		}
	}
	_, err := io.WriteString(out, graph.GenerateMermaid(model, nil))
	return err
}

// handleExecutionError adds hints to the errors users can act on.
func handleExecutionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ports.ErrNoSolution):
		return fmt.Errorf("%w (check the goal and the constraints of the model)", err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("interrupted: %w", err)
	}
	return err
}
