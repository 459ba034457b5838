package lagrangian

import (
	"fmt"
	"math"

	"github.com/gitrdm/ddbound/pkg/dd"
	"github.com/gitrdm/ddbound/pkg/linear"
)

// Oracle maximizes a linear objective over a fixed feasible set (or a
// relaxation of it). It returns the value and a maximizer, or -Inf and nil
// when the set is empty.
type Oracle interface {
	Solve(obj []float64) (float64, []int)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(obj []float64) (float64, []int)

// Solve implements Oracle.
func (f OracleFunc) Solve(obj []float64) (float64, []int) { return f(obj) }

// Value returns obj.x.
func Value(obj []float64, x []int) float64 {
	v := 0.0
	for i, xi := range x {
		v += obj[i] * float64(xi)
	}
	return v
}

// ZeroOneOracle maximizes over the whole 0-1 cube.
type ZeroOneOracle struct{}

// Solve implements Oracle.
func (ZeroOneOracle) Solve(obj []float64) (float64, []int) {
	x := make([]int, len(obj))
	for i, c := range obj {
		if linear.Greater(c, 0) {
			x[i] = 1
		}
	}
	return Value(obj, x), x
}

// DiagramOracle maximizes over the paths of a decision diagram. With Relaxed
// false only paths avoiding relaxed nodes count, so every returned point
// is feasible.
type DiagramOracle struct {
	D       *dd.Diagram
	Relaxed bool
}

// Solve implements Oracle.
func (o DiagramOracle) Solve(obj []float64) (float64, []int) {
	return o.D.OptimalValue(obj, o.Relaxed)
}

// NonRelaxedPathOracle returns a DiagramOracle over the exact paths of d.
func NonRelaxedPathOracle(d *dd.Diagram) DiagramOracle {
	return DiagramOracle{D: d}
}

// SubspaceRelaxed lifts an oracle over a subset of the variables to the
// full space. Variables outside the subset are unconstrained and set to
// one exactly when their objective coefficient is positive.
type SubspaceRelaxed struct {
	inner     Oracle
	subToFull []int
	inside    []bool
}

// NewSubspaceRelaxed maps inner variable i to variable subToFull[i] of n.
func NewSubspaceRelaxed(inner Oracle, subToFull []int, n int) *SubspaceRelaxed {
	return &SubspaceRelaxed{inner: inner, subToFull: subToFull, inside: membership(subToFull, n)}
}

// Solve implements Oracle.
func (o *SubspaceRelaxed) Solve(obj []float64) (float64, []int) {
	val, x := lift(o.inner, o.subToFull, len(o.inside), obj)
	if x == nil {
		return math.Inf(-1), nil
	}
	for i := range x {
		if !o.inside[i] && linear.Greater(obj[i], 0) {
			x[i] = 1
			val += obj[i]
		}
	}
	return val, x
}

// SubspaceRestricted lifts an oracle over a subset of the variables to the
// full space with every other variable v held at fixed[v].
type SubspaceRestricted struct {
	inner     Oracle
	subToFull []int
	fixed     []int
	inside    []bool
}

// NewSubspaceRestricted maps inner variable i to variable subToFull[i];
// len(fixed) is the size of the full space.
func NewSubspaceRestricted(inner Oracle, subToFull, fixed []int) *SubspaceRestricted {
	return &SubspaceRestricted{inner: inner, subToFull: subToFull, fixed: fixed, inside: membership(subToFull, len(fixed))}
}

// Solve implements Oracle.
func (o *SubspaceRestricted) Solve(obj []float64) (float64, []int) {
	val, x := lift(o.inner, o.subToFull, len(o.fixed), obj)
	if x == nil {
		return math.Inf(-1), nil
	}
	for i := range x {
		if !o.inside[i] {
			x[i] = o.fixed[i]
			val += obj[i] * float64(o.fixed[i])
		}
	}
	return val, x
}

func membership(subToFull []int, n int) []bool {
	m := make([]bool, n)
	for _, v := range subToFull {
		if v < 0 || v >= n {
			panic(fmt.Sprintf("lagrangian: subspace variable %d out of range [0,%d)", v, n))
		}
		m[v] = true
	}
	return m
}

func lift(inner Oracle, subToFull []int, n int, obj []float64) (float64, []int) {
	if len(obj) != n {
		panic(fmt.Sprintf("lagrangian: objective of length %d for %d variables", len(obj), n))
	}
	sub := make([]float64, len(subToFull))
	for i, v := range subToFull {
		sub[i] = obj[v]
	}
	val, xs := inner.Solve(sub)
	if xs == nil {
		return val, nil
	}
	x := make([]int, n)
	for i, v := range subToFull {
		x[v] = xs[i]
	}
	return val, x
}

// FeasibilityChecker validates a candidate solution of the original
// problem and keeps it as incumbent if feasible. Values are in the
// maximization sense used by this package.
type FeasibilityChecker interface {
	CheckFeasibilityAndApply(x []int, value float64) bool
}

// FeasibilityCheck passes every oracle solution that beats the best known
// primal value under the true objective to a FeasibilityChecker.
type FeasibilityCheck struct {
	Inner   Oracle
	Checker FeasibilityChecker
	Obj     []float64

	best  float64
	bestX []int
}

// NewFeasibilityCheck returns the decorator with primal as the value to
// beat.
func NewFeasibilityCheck(inner Oracle, checker FeasibilityChecker, obj []float64, primal float64) *FeasibilityCheck {
	return &FeasibilityCheck{Inner: inner, Checker: checker, Obj: obj, best: primal}
}

// Solve implements Oracle.
func (o *FeasibilityCheck) Solve(obj []float64) (float64, []int) {
	val, x := o.Inner.Solve(obj)
	if x == nil {
		return val, x
	}
	if v := Value(o.Obj, x); linear.Greater(v, o.best) && o.Checker.CheckFeasibilityAndApply(x, v) {
		o.best = v
		o.bestX = append([]int(nil), x...)
	}
	return val, x
}

// Primal returns the best value accepted by the checker and its solution,
// which is nil if none was accepted.
func (o *FeasibilityCheck) Primal() (float64, []int) { return o.best, o.bestX }

// PrimalSource is implemented by oracles that harvest feasible solutions.
type PrimalSource interface {
	Primal() (float64, []int)
}
