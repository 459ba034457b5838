package bp

import (
	"github.com/gitrdm/ddbound/pkg/dd"
	"github.com/gitrdm/ddbound/pkg/graph"
	"github.com/gitrdm/ddbound/pkg/intset"
	"github.com/gitrdm/ddbound/pkg/linear"
	"github.com/gitrdm/ddbound/pkg/linprop"
)

// Problem adapts an Instance to dd.Problem. It owns a propagator, so a
// Problem serves a single construction.
type Problem struct {
	inst *Instance
	prop *linprop.Propagator
}

// NewProblem returns the diagram problem of inst.
func NewProblem(inst *Instance) *Problem {
	return &Problem{inst: inst, prop: linprop.New(inst.rows, inst.n)}
}

// Instance returns the row instance.
func (p *Problem) Instance() *Instance { return p.inst }

// NumVars implements dd.Problem.
func (p *Problem) NumVars() int { return p.inst.n }

// Weights implements dd.Problem.
func (p *Problem) Weights() []float64 { return p.inst.weights }

// InitialState implements dd.Problem. Rows that cannot be satisfied at all
// make the root infeasible; rows that already force variables tighten the
// root domains.
func (p *Problem) InitialState() (dd.State, bool) {
	s := &State{p: p, dom: intset.NewFull(2 * p.inst.n), rhs: p.prop.InitialRHS()}
	if !p.prop.Feasible(s, s.rhs) {
		return nil, false
	}
	for r := range s.rhs {
		if p.prop.Remaining(r) == 0 {
			s.rhs[r] = 0
		}
	}
	return s, true
}

// SkipVarForLongArc implements dd.Problem. Row states never skip.
func (p *Problem) SkipVarForLongArc(int, dd.State) bool { return false }

// LayerEnd implements dd.Problem.
func (p *Problem) LayerEnd(v int) { p.prop.LayerEnd(v) }

// DomainCompletionBound bounds completions from the open literals of a
// state, ignoring the rows.
type DomainCompletionBound struct {
	Inst *Instance
}

// DualBound adds positive weights of variables that can be one and
// negative weights of variables that must be one.
func (cb DomainCompletionBound) DualBound(st dd.State) float64 {
	return cb.bound(st.(*State), linear.Greater)
}

// PrimalBound adds negative weights of variables that can be one and
// positive weights of variables that must be one.
func (cb DomainCompletionBound) PrimalBound(st dd.State) float64 {
	return cb.bound(st.(*State), linear.Less)
}

func (cb DomainCompletionBound) bound(s *State, good func(a, b float64) bool) float64 {
	n := cb.Inst.n
	b := 0.0
	for i := s.dom.First(); i >= 0 && i < n; i = s.dom.Next(i) {
		w := cb.Inst.weights[i]
		if good(w, 0) || (!linear.Equal(w, 0) && !s.dom.Contains(i+n)) {
			b += w
		}
	}
	return b
}

// NewCuthillMcKee orders variables by a Cuthill-McKee traversal of the
// interaction graph, keeping the variables of a row close together.
func NewCuthillMcKee(inst *Instance) *dd.FixedOrdering {
	return dd.NewFixedOrdering("cuthill_mckee", graph.CuthillMcKee(inst.InteractionGraph(), false))
}
