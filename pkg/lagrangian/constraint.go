// Package lagrangian computes Lagrangian dual bounds for maximization
// problems over binary variables.
//
// Relaxed constraints are moved into the objective with multipliers. A
// Subproblem maximizes the penalized objective with an Oracle, and a master
// (subgradient or proximal bundle) moves the multipliers to decrease the
// resulting bound. Every value a Subproblem returns for multipliers in
// their sign domain is a valid upper bound.
//
// Sign convention: a <= constraint takes a multiplier >= 0, a >= constraint
// one <= 0 and an equality a free one.
package lagrangian

import (
	"fmt"
	"strings"

	"github.com/gitrdm/ddbound/pkg/linear"
)

// Constraint is a relaxed linear constraint a.x (sense) rhs.
type Constraint struct {
	Ind    []int
	Coeffs []float64
	Rhs    float64
	Sense  linear.Sense
}

// NewConstraint checks sizes and returns the constraint.
func NewConstraint(ind []int, coeffs []float64, rhs float64, sense linear.Sense) Constraint {
	if len(ind) != len(coeffs) {
		panic(fmt.Sprintf("lagrangian: constraint with %d indices and %d coefficients", len(ind), len(coeffs)))
	}
	return Constraint{Ind: ind, Coeffs: coeffs, Rhs: rhs, Sense: sense}
}

// Subgradient returns rhs - a.x, the slack of x, which is a subgradient of
// the dual function in this constraint's multiplier.
func (c Constraint) Subgradient(x []int) float64 {
	slack := c.Rhs
	for k, v := range c.Ind {
		if v >= len(x) {
			panic(fmt.Sprintf("lagrangian: constraint references variable %d of %d", v, len(x)))
		}
		slack -= c.Coeffs[k] * float64(x[v])
	}
	return slack
}

// Satisfied reports whether x satisfies the constraint.
func (c Constraint) Satisfied(x []int) bool {
	lhs := c.Rhs - c.Subgradient(x)
	return linear.SenseHolds(c.Sense, lhs, c.Rhs)
}

// Project moves a multiplier into the sign domain of the constraint.
func (c Constraint) Project(lambda float64) float64 {
	switch c.Sense {
	case linear.LE:
		if lambda < 0 {
			return 0
		}
	case linear.GE:
		if lambda > 0 {
			return 0
		}
	}
	return lambda
}

// Row returns the constraint as a row.
func (c Constraint) Row() *linear.Row {
	return linear.NewRow(c.Rhs, c.Sense, c.Coeffs, c.Ind)
}

func (c Constraint) String() string {
	var b strings.Builder
	for k, v := range c.Ind {
		fmt.Fprintf(&b, "%+g x%d ", c.Coeffs[k], v)
	}
	fmt.Fprintf(&b, "%s %g", c.Sense, c.Rhs)
	return b.String()
}

// ExtractConstraints converts rows to constraints, removing fixed variables
// (fixed[v] != linear.Unfixed) and moving them to the right-hand side.
// With cleanup set, rows that every binary point satisfies are dropped.
// Indices are kept in the original variable space.
func ExtractConstraints(rows []*linear.Row, fixed []int, cleanup bool) []Constraint {
	var out []Constraint
	for _, r := range rows {
		if fixed != nil {
			r = r.Fix(fixed)
		}
		if cleanup && redundant(r) {
			continue
		}
		out = append(out, NewConstraint(
			append([]int(nil), r.Ind...),
			append([]float64(nil), r.Coeffs...),
			r.Rhs, r.Sense))
	}
	return out
}

func redundant(r *linear.Row) bool {
	le := linear.LessEq(r.MaxActivity(), r.Rhs)
	ge := linear.GreaterEq(r.MinActivity(), r.Rhs)
	switch r.Sense {
	case linear.LE:
		return le
	case linear.GE:
		return ge
	}
	return le && ge
}
