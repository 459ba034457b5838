package cliquetable

import (
	"github.com/gitrdm/ddbound/pkg/dd"
	"github.com/gitrdm/ddbound/pkg/linprop"
)

// Problem adapts an Instance to dd.Problem.
type Problem struct {
	inst       *Instance
	prop       *linprop.Propagator
	consistent bool
}

// ProblemOption configures a Problem.
type ProblemOption func(*Problem)

// WithPropagator attaches rows propagated during construction. Variables
// in those rows never take long arcs.
func WithPropagator(p *linprop.Propagator) ProblemOption {
	return func(pr *Problem) { pr.prop = p }
}

// WithDomainConsistency runs MakeDomainConsistent on the root state. It has
// no effect on nonnegated-only instances.
func WithDomainConsistency(on bool) ProblemOption {
	return func(pr *Problem) { pr.consistent = on }
}

// NewProblem returns the diagram problem of inst. Domain consistency of the
// root is on by default.
func NewProblem(inst *Instance, opts ...ProblemOption) *Problem {
	p := &Problem{inst: inst, consistent: true}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Instance returns the clique table.
func (p *Problem) Instance() *Instance { return p.inst }

// Propagator returns the attached propagator, or nil.
func (p *Problem) Propagator() *linprop.Propagator { return p.prop }

// NodeData returns root data for the propagator, or nil without one.
func (p *Problem) NodeData() dd.NodeData {
	if p.prop == nil || p.prop.NumRows() == 0 {
		return nil
	}
	return linprop.NewData(p.prop)
}

// NumVars implements dd.Problem.
func (p *Problem) NumVars() int { return p.inst.n }

// Weights implements dd.Problem.
func (p *Problem) Weights() []float64 { return p.inst.weights }

// InitialState implements dd.Problem.
func (p *Problem) InitialState() (dd.State, bool) {
	s := NewState(p.inst)
	if p.consistent && !p.inst.nonnegatedOnly {
		if !MakeDomainConsistent(p.inst, s.set) {
			return nil, false
		}
	}
	return s, true
}

// SkipVarForLongArc implements dd.Problem. A long arc is taken when v
// cannot be one and setting it to zero leaves the state unchanged.
func (p *Problem) SkipVarForLongArc(v int, st dd.State) bool {
	if p.prop != nil && len(p.prop.Column(v).Rows) > 0 {
		return false
	}
	s := st.(*State)
	inst := p.inst
	if inst.nonnegatedOnly {
		return !s.set.Contains(v)
	}
	neg := v + inst.n
	if s.set.Contains(v) || !s.set.Contains(neg) {
		return false
	}
	if inst.adj[neg].Count() == 1 {
		s.MarkProcessed(v)
		return true
	}
	rest := s.set.Clone().Remove(neg)
	if rest.Clone().Intersect(inst.masks[neg]).Equal(rest) {
		s.MarkProcessed(v)
		return true
	}
	return false
}

// LayerEnd implements dd.Problem.
func (p *Problem) LayerEnd(v int) {
	if p.prop != nil {
		p.prop.LayerEnd(v)
	}
}
