package lagrangian

import (
	"fmt"
	"math"
)

// Subproblem evaluates the dual function
//
//	L(lambda) = max_x (c - A^T lambda).x + lambda.rhs
//
// with an oracle for the inner maximization.
type Subproblem struct {
	n       int
	obj     []float64
	constrs []Constraint
	oracle  Oracle
	lagObj  []float64
}

// NewSubproblem returns the subproblem of maximizing obj over n variables
// with constrs relaxed. It panics if a constraint references a variable
// outside [0, n).
func NewSubproblem(n int, obj []float64, constrs []Constraint, oracle Oracle) *Subproblem {
	if len(obj) != n {
		panic(fmt.Sprintf("lagrangian: objective of length %d for %d variables", len(obj), n))
	}
	for _, c := range constrs {
		for _, v := range c.Ind {
			if v < 0 || v >= n {
				panic(fmt.Sprintf("lagrangian: constraint %v references variable %d of %d", c, v, n))
			}
		}
	}
	return &Subproblem{n: n, obj: obj, constrs: constrs, oracle: oracle, lagObj: make([]float64, n)}
}

// NumVars returns the number of variables.
func (s *Subproblem) NumVars() int { return s.n }

// Objective returns the original objective.
func (s *Subproblem) Objective() []float64 { return s.obj }

// Constraints returns the relaxed constraints.
func (s *Subproblem) Constraints() []Constraint { return s.constrs }

// Oracle returns the inner oracle.
func (s *Subproblem) Oracle() Oracle { return s.oracle }

// Solve returns L(lambda) and the maximizer found by the oracle. The value
// is -Inf with a nil solution when the oracle finds no feasible point.
func (s *Subproblem) Solve(lambda []float64) (float64, []int) {
	if len(lambda) != len(s.constrs) {
		panic(fmt.Sprintf("lagrangian: %d multipliers for %d constraints", len(lambda), len(s.constrs)))
	}
	copy(s.lagObj, s.obj)
	offset := 0.0
	for i, c := range s.constrs {
		if lambda[i] == 0 {
			continue
		}
		for k, v := range c.Ind {
			s.lagObj[v] -= lambda[i] * c.Coeffs[k]
		}
		offset += lambda[i] * c.Rhs
	}
	val, x := s.oracle.Solve(s.lagObj)
	if x == nil {
		return math.Inf(-1), nil
	}
	return val + offset, x
}

// Subgradient returns rhs - A x, a subgradient of L where x is the
// maximizer.
func (s *Subproblem) Subgradient(x []int) []float64 {
	g := make([]float64, len(s.constrs))
	for i, c := range s.constrs {
		g[i] = c.Subgradient(x)
	}
	return g
}

// Project moves every multiplier into the sign domain of its constraint.
func (s *Subproblem) Project(lambda []float64) {
	for i, c := range s.constrs {
		lambda[i] = c.Project(lambda[i])
	}
}
