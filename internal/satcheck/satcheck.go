// Package satcheck validates solutions of a relax.Subproblem with the gini
// SAT solver. Cliques, fixings and rows whose coefficients are all +1 or -1
// become cardinality constraints of a circuit; other rows are evaluated
// directly.
package satcheck

import (
	"context"
	"math"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/inter"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/gitrdm/ddbound/pkg/linear"
	"github.com/gitrdm/ddbound/pkg/relax"
)

const (
	satisfiable   = 1
	unsatisfiable = -1
)

// Checker implements lagrangian.FeasibilityChecker and keeps the best
// accepted solution.
type Checker struct {
	g     *gini.Gini
	vars  []z.Lit
	other []*linear.Row
	cards int

	Best  float64
	BestX []int
}

// New compiles sub. The returned checker is not safe for concurrent use.
func New(sub *relax.Subproblem) *Checker {
	n := sub.NumVars
	c := logic.NewC()
	ch := &Checker{g: gini.New(), vars: make([]z.Lit, n), Best: math.Inf(-1)}
	for v := range ch.vars {
		ch.vars[v] = c.Lit()
	}
	lit := func(l int) z.Lit {
		if l < n {
			return ch.vars[l]
		}
		return ch.vars[l-n].Not()
	}

	var units []z.Lit
	for _, cl := range sub.Cliques {
		ms := make([]z.Lit, len(cl))
		for k, l := range cl {
			ms[k] = lit(l)
		}
		units = append(units, c.CardSort(ms).Leq(1))
		ch.cards++
	}
	for _, r := range sub.Rows {
		ms, rhs, ok := cardinality(r, ch.vars)
		if !ok {
			ch.other = append(ch.other, r)
			continue
		}
		cs := c.CardSort(ms)
		switch r.Sense {
		case linear.LE:
			units = append(units, leq(c, cs, rhs))
		case linear.GE:
			units = append(units, geq(c, cs, rhs))
		case linear.EQ:
			units = append(units, leq(c, cs, rhs), geq(c, cs, rhs))
		}
		ch.cards++
	}
	for v, f := range sub.Fixed {
		switch f {
		case 1:
			units = append(units, ch.vars[v])
		case 0:
			units = append(units, ch.vars[v].Not())
		}
	}

	c.ToCnf(ch.g)
	for _, m := range units {
		ch.g.Add(m)
		ch.g.Add(z.LitNull)
	}
	return ch
}

// cardinality rewrites r as a count of literals against an integral rhs.
// A -1 coefficient counts the negated literal and raises the rhs by one.
func cardinality(r *linear.Row, vars []z.Lit) ([]z.Lit, int, bool) {
	rhs := r.Rhs
	ms := make([]z.Lit, 0, len(r.Ind))
	for k, v := range r.Ind {
		switch {
		case linear.Equal(r.Coeffs[k], 1):
			ms = append(ms, vars[v])
		case linear.Equal(r.Coeffs[k], -1):
			ms = append(ms, vars[v].Not())
			rhs++
		default:
			return nil, 0, false
		}
	}
	if r.Sense == linear.EQ && !linear.IsIntegral(rhs) {
		return nil, 0, false
	}
	b := int(math.Floor(rhs + linear.Epsilon))
	if r.Sense == linear.GE {
		b = int(math.Ceil(rhs - linear.Epsilon))
	}
	return ms, b, true
}

func leq(c *logic.C, cs *logic.CardSort, b int) z.Lit {
	if b < 0 {
		return c.F
	}
	return cs.Leq(b)
}

func geq(c *logic.C, cs *logic.CardSort, b int) z.Lit {
	if b <= 0 {
		return c.T
	}
	return cs.Geq(b)
}

// NumCardinality returns the number of constraints compiled into the
// circuit.
func (ch *Checker) NumCardinality() int { return ch.cards }

// Satisfiable reports whether the compiled constraints admit a solution,
// ignoring the rows evaluated directly. It returns ctx.Err() when ctx ends
// before the solver does.
func (ch *Checker) Satisfiable(ctx context.Context) (bool, error) {
	switch wait(ctx, ch.g.GoSolve()) {
	case satisfiable:
		return true, nil
	case unsatisfiable:
		ctxzap.Extract(ctx).Debug("subproblem unsatisfiable", zap.Int("cardinality", ch.cards))
		return false, nil
	}
	return false, ctx.Err()
}

// Model returns the assignment of the last satisfiable solve.
func (ch *Checker) Model() []int {
	x := make([]int, len(ch.vars))
	for v, m := range ch.vars {
		if ch.g.Value(m) {
			x[v] = 1
		}
	}
	return x
}

// CheckFeasibilityAndApply implements lagrangian.FeasibilityChecker.
func (ch *Checker) CheckFeasibilityAndApply(x []int, value float64) bool {
	for _, r := range ch.other {
		if !r.Satisfied(x) {
			return false
		}
	}
	for v, m := range ch.vars {
		if x[v] == 0 {
			m = m.Not()
		}
		ch.g.Assume(m)
	}
	if ch.g.Solve() != satisfiable {
		return false
	}
	if value > ch.Best {
		ch.Best = value
		ch.BestX = append([]int(nil), x...)
	}
	return true
}

func wait(ctx context.Context, gs inter.Solve) int {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()

	for {
		if result, ok := gs.Test(); ok {
			return result
		}
		select {
		case <-ctx.Done():
			return gs.Stop()
		case <-t.C:
		}
	}
}
