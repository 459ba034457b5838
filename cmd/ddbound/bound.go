package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/gitrdm/ddbound/internal/instfile"
	"github.com/gitrdm/ddbound/internal/satcheck"
	"github.com/gitrdm/ddbound/pkg/relax"
)

// report is the outcome of one instance, in the objective sense of the
// instance file.
type report struct {
	Instance     string        `yaml:"instance"`
	RunID        string        `yaml:"run_id,omitempty"`
	Bound        float64       `yaml:"bound"`
	DiagramBound float64       `yaml:"diagram_bound"`
	Primal       *float64      `yaml:"primal,omitempty"`
	Infeasible   bool          `yaml:"infeasible,omitempty"`
	Exact        bool          `yaml:"exact,omitempty"`
	Width        int           `yaml:"width"`
	Relaxed      int           `yaml:"relaxed"`
	Termination  string        `yaml:"termination,omitempty"`
	Iterations   int           `yaml:"iterations,omitempty"`
	Skipped      string        `yaml:"skipped,omitempty"`
	Error        string        `yaml:"error,omitempty"`
	Elapsed      time.Duration `yaml:"elapsed"`
}

func newBoundCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bound <instance.yaml>",
		Short: "Compute a dual bound for one instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.solve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), []report{r})
		},
	}
}

// solve computes the bound of the instance at path. Skipped instances are
// reported, not returned as errors.
func (a *app) solve(ctx context.Context, path string) (report, error) {
	start := time.Now()
	r := report{Instance: path}
	f, err := instfile.Load(path)
	if err != nil {
		return r, err
	}
	sub, err := f.Subproblem()
	if err != nil {
		return r, fmt.Errorf("instance %s: %w", path, err)
	}
	if a.settings.SATCheck {
		ch := satcheck.New(sub)
		ok, err := ch.Satisfiable(ctx)
		if err != nil {
			return r, err
		}
		if !ok {
			r.Infeasible = true
			r.Bound = f.HostValue(math.Inf(-1))
			r.DiagramBound = r.Bound
			r.Elapsed = time.Since(start)
			return r, nil
		}
		sub.Checker = ch
	}

	res, err := relax.Bound(ctx, sub, a.settings.Relax)
	switch {
	case errors.Is(err, relax.ErrSkipped), errors.Is(err, relax.ErrNoStructure):
		r.Skipped = err.Error()
		r.Bound = f.HostValue(math.Inf(1))
		r.DiagramBound = r.Bound
		r.Elapsed = time.Since(start)
		return r, nil
	case err != nil:
		return r, err
	}

	r.RunID = res.RunID
	r.Bound = f.HostValue(res.Bound)
	r.DiagramBound = f.HostValue(res.DiagramBound)
	r.Infeasible = res.Infeasible
	r.Exact = res.Exact
	r.Width = res.Width
	r.Relaxed = res.Relaxed
	if res.PrimalSolution != nil {
		p := f.HostValue(res.PrimalBound)
		r.Primal = &p
	}
	if lr := res.Lagrangian; lr != nil {
		r.Termination = lr.Termination.String()
		r.Iterations = lr.Iterations
	}
	r.Elapsed = time.Since(start)
	return r, nil
}

func (a *app) print(w io.Writer, reports []report) error {
	if a.output == outputYAML {
		data, err := yaml.Marshal(reports)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	for _, r := range reports {
		var err error
		switch {
		case r.Error != "":
			_, err = fmt.Fprintf(w, "%s\terror: %s\n", r.Instance, r.Error)
		case r.Skipped != "":
			_, err = fmt.Fprintf(w, "%s\tskipped: %s\n", r.Instance, r.Skipped)
		case r.Infeasible:
			_, err = fmt.Fprintf(w, "%s\tinfeasible\n", r.Instance)
		default:
			_, err = fmt.Fprintf(w, "%s\tbound %.6f\tdiagram %.6f\twidth %d\texact %t\trelaxed %d\t%s\n",
				r.Instance, r.Bound, r.DiagramBound, r.Width, r.Exact, r.Relaxed, r.Elapsed.Round(time.Microsecond))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
