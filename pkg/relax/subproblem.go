// Package relax computes dual bounds for binary subproblems handed over by
// a branch-and-bound host. A relaxed decision diagram captures part of the
// constraints; a Lagrangian relaxation over the diagram folds in the rest.
//
// Everything here maximizes. A host that minimizes negates its objective
// and bounds at the boundary.
package relax

import (
	"fmt"
	"math"

	"go.uber.org/multierr"

	"github.com/gitrdm/ddbound/pkg/lagrangian"
	"github.com/gitrdm/ddbound/pkg/linear"
)

// Subproblem is one node of the host search. Cliques are given over
// literals: v is x_v and v+NumVars is its negation.
type Subproblem struct {
	NumVars   int
	Rows      []*linear.Row
	Cliques   [][]int
	Objective []float64
	// Fixed holds linear.Unfixed or a 0/1 value per variable; nil fixes
	// nothing.
	Fixed []int
	// PrimalBound is the value of the best known solution, -Inf if none.
	PrimalBound float64
	// DualCutoff is a known upper bound of the subproblem (for instance
	// from the LP), +Inf if none. Used by dual pruning only.
	DualCutoff float64
	// Checker validates harvested solutions; optional.
	Checker lagrangian.FeasibilityChecker
}

// NewSubproblem returns a subproblem without fixings or bounds.
func NewSubproblem(n int, rows []*linear.Row, obj []float64) *Subproblem {
	return &Subproblem{
		NumVars:     n,
		Rows:        rows,
		Objective:   obj,
		PrimalBound: math.Inf(-1),
		DualCutoff:  math.Inf(1),
	}
}

// Validate reports every inconsistency in the subproblem.
func (s *Subproblem) Validate() error {
	var err error
	n := s.NumVars
	if n < 0 {
		return fmt.Errorf("relax: negative number of variables %d", n)
	}
	if len(s.Objective) != n {
		err = multierr.Append(err, fmt.Errorf("relax: objective of length %d for %d variables", len(s.Objective), n))
	}
	for i, c := range s.Objective {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			err = multierr.Append(err, fmt.Errorf("relax: objective coefficient %d is %v", i, c))
		}
	}
	if s.Fixed != nil && len(s.Fixed) != n {
		err = multierr.Append(err, fmt.Errorf("relax: %d fixings for %d variables", len(s.Fixed), n))
	}
	for v, f := range s.Fixed {
		if f != linear.Unfixed && f != 0 && f != 1 {
			err = multierr.Append(err, fmt.Errorf("relax: variable %d fixed to %d", v, f))
		}
	}
	for i, r := range s.Rows {
		if len(r.Coeffs) != len(r.Ind) {
			err = multierr.Append(err, fmt.Errorf("relax: row %d has %d coefficients and %d indices", i, len(r.Coeffs), len(r.Ind)))
			continue
		}
		if math.IsNaN(r.Rhs) || math.IsInf(r.Rhs, 0) {
			err = multierr.Append(err, fmt.Errorf("relax: row %d has right-hand side %v", i, r.Rhs))
		}
		for _, v := range r.Ind {
			if v < 0 || v >= n {
				err = multierr.Append(err, fmt.Errorf("relax: row %d references variable %d outside [0,%d)", i, v, n))
			}
		}
	}
	for i, c := range s.Cliques {
		for _, l := range c {
			if l < 0 || l >= 2*n {
				err = multierr.Append(err, fmt.Errorf("relax: clique %d has literal %d outside [0,%d)", i, l, 2*n))
			}
		}
	}
	if math.IsNaN(s.PrimalBound) || math.IsNaN(s.DualCutoff) {
		err = multierr.Append(err, fmt.Errorf("relax: NaN bound"))
	}
	return err
}

// fixings returns the fixing vector with nil expanded.
func (s *Subproblem) fixings() []int {
	fixed := make([]int, s.NumVars)
	for v := range fixed {
		fixed[v] = linear.Unfixed
	}
	copy(fixed, s.Fixed)
	return fixed
}

// NumFree returns the number of unfixed variables.
func (s *Subproblem) NumFree() int {
	free := 0
	for v := 0; v < s.NumVars; v++ {
		if s.Fixed == nil || s.Fixed[v] == linear.Unfixed {
			free++
		}
	}
	return free
}

// CliqueRow returns the row sum(lits) <= 1 of a literal clique over n
// variables: a negated literal contributes 1 - x.
func CliqueRow(lits []int, n int) *linear.Row {
	r := &linear.Row{Rhs: 1, Sense: linear.LE}
	for _, l := range lits {
		if l < n {
			r.Ind = append(r.Ind, l)
			r.Coeffs = append(r.Coeffs, 1)
		} else {
			r.Ind = append(r.Ind, l-n)
			r.Coeffs = append(r.Coeffs, -1)
			r.Rhs--
		}
	}
	return r
}

// literalTrue reports whether literal l is fixed true, and whether its
// variable is fixed at all.
func literalTrue(l, n int, fixed []int) (truth, isFixed bool) {
	v, want := l, 1
	if l >= n {
		v, want = l-n, 0
	}
	if fixed[v] == linear.Unfixed {
		return false, false
	}
	return fixed[v] == want, true
}

// fixedRowsFeasible reports whether every row left without free variables
// holds.
func fixedRowsFeasible(rows []*linear.Row, fixed []int) bool {
	for _, r := range rows {
		f := r.Fix(fixed)
		if f.Len() == 0 && !linear.SenseHolds(f.Sense, 0, f.Rhs) {
			return false
		}
	}
	return true
}
