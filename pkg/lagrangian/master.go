package lagrangian

import (
	"math"

	"github.com/gitrdm/ddbound/pkg/linear"
)

// Master chooses the next multipliers from the solutions seen so far.
type Master interface {
	// Update records the maximizer x and dual value val found at lambda.
	Update(x []int, val float64, lambda []float64)
	// Solve overwrites lambda with the next multipliers and returns a
	// primal estimate, -Inf if the master has none.
	Solve(lambda []float64) float64
}

const (
	initialStepScale = 1.0
	maxStalls        = 5
)

// SubgradientMaster takes projected subgradient steps of length
// scale/(k+1). The scale is halved after maxStalls iterations without an
// improvement of the best dual value.
type SubgradientMaster struct {
	sub    *Subproblem
	scale  float64
	ncalls int
	stalls int
	best   float64
	grad   []float64
}

// NewSubgradientMaster returns a master for sub.
func NewSubgradientMaster(sub *Subproblem) *SubgradientMaster {
	return &SubgradientMaster{sub: sub, scale: initialStepScale, best: math.Inf(1)}
}

// Scale returns the current step scale.
func (m *SubgradientMaster) Scale() float64 { return m.scale }

// Update implements Master.
func (m *SubgradientMaster) Update(x []int, val float64, _ []float64) {
	m.grad = m.sub.Subgradient(x)
	if linear.Less(val, m.best) {
		m.best = val
		m.stalls = 0
		return
	}
	m.stalls++
	if m.stalls >= maxStalls {
		m.scale /= 2
		m.stalls = 0
	}
}

// Solve implements Master. The dual is minimized, so the step goes
// against the subgradient.
func (m *SubgradientMaster) Solve(lambda []float64) float64 {
	if m.grad == nil {
		return math.Inf(-1)
	}
	step := m.scale / float64(m.ncalls+1)
	m.ncalls++
	for i, g := range m.grad {
		lambda[i] -= step * g
	}
	m.sub.Project(lambda)
	return math.Inf(-1)
}
