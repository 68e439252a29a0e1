package xplanning

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/xplanning/internal/presentation/report"
	"github.com/aretw0/xplanning/pkg/analysis"
	"github.com/aretw0/xplanning/pkg/mdp"
	"github.com/aretw0/xplanning/pkg/policy"
)

// Format selects how a Runner writes explanations.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ContentRenderer transforms the markdown report before it is written.
// This allows terminal rendering without coupling the core package to it.
type ContentRenderer func(string) (string, error)

// Runner explains a model and writes the result to Output.
// This allows for easy testing and integration with different frontends (CLI, HTTP).
type Runner struct {
	Output   io.Writer
	Format   Format
	Renderer ContentRenderer
}

// NewRunner creates a Runner writing markdown to out.
func NewRunner(out io.Writer) *Runner {
	return &Runner{Output: out, Format: FormatMarkdown}
}

// Run explains solution, or the optimal policy of x when solution is nil,
// and writes the explanation.
func (r *Runner) Run(ctx context.Context, e *Explainer, x *mdp.XMDP, solution *policy.Policy) (*analysis.Explanation, error) {
	if r.Output == nil {
		return nil, fmt.Errorf("output writer must be set")
	}

	var (
		exp *analysis.Explanation
		err error
	)
	if solution == nil {
		exp, err = e.SolveAndExplain(ctx, x)
	} else {
		exp, err = e.Explain(ctx, x, solution)
	}
	if err != nil {
		return nil, err
	}
	return exp, r.Write(exp)
}

// Write renders exp in the runner's format.
func (r *Runner) Write(exp *analysis.Explanation) error {
	switch r.Format {
	case FormatJSON:
		enc := json.NewEncoder(r.Output)
		enc.SetIndent("", "  ")
		return enc.Encode(exp)
	case FormatMarkdown, "":
		md := report.Markdown(exp)
		if r.Renderer != nil {
			// Fall back to raw markdown if rendering fails.
			if rendered, err := r.Renderer(md); err == nil {
				md = rendered
			}
		}
		_, err := fmt.Fprintln(r.Output, strings.TrimSpace(md))
		return err
	default:
		return fmt.Errorf("unknown output format %q", r.Format)
	}
}
