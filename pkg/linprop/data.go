package linprop

import (
	"fmt"

	"github.com/gitrdm/ddbound/pkg/dd"
	"github.com/gitrdm/ddbound/pkg/linear"
)

// Data is the per-node right-hand side of every propagated row, reduced by
// the coefficients of variables set to one on the path to the node.
type Data struct {
	p   *Propagator
	Rhs []float64
}

// NewData returns the root data of p.
func NewData(p *Propagator) *Data {
	return &Data{p: p, Rhs: p.InitialRHS()}
}

func (d *Data) clone() *Data {
	return &Data{p: d.p, Rhs: append([]float64(nil), d.Rhs...)}
}

// Transition implements dd.NodeData. The child state must implement
// DomainState; propagation may tighten it.
func (d *Data) Transition(child dd.State, v, val int) (dd.NodeData, bool) {
	ds, ok := child.(DomainState)
	if !ok {
		panic(fmt.Sprintf("linprop: state %T does not expose domains", child))
	}
	next := d.clone()
	if !next.TransitionInPlace(ds, v, val) {
		return nil, false
	}
	return next, true
}

// TransitionInPlace applies v = val to the receiver and s and reports
// feasibility.
func (d *Data) TransitionInPlace(s DomainState, v, val int) bool {
	if d.p.NumRows() == 0 {
		return true
	}
	min, max := d.p.Activities(s, v)
	if !d.p.Assign(v, val, min, max, d.Rhs) {
		return false
	}
	return d.p.Propagate(s, v, min, max, d.Rhs)
}

// Merge relaxes every right-hand side to the looser of the two.
func (d *Data) Merge(other dd.NodeData) {
	o := other.(*Data)
	for i, r := range d.p.rows {
		if (r.Sense == linear.LE && o.Rhs[i] > d.Rhs[i]) || (r.Sense == linear.GE && o.Rhs[i] < d.Rhs[i]) {
			d.Rhs[i] = o.Rhs[i]
		}
	}
}

// Equal compares right-hand sides within tolerance.
func (d *Data) Equal(other dd.NodeData) bool {
	o, ok := other.(*Data)
	if !ok || len(o.Rhs) != len(d.Rhs) {
		return false
	}
	for i := range d.Rhs {
		if !linear.Equal(d.Rhs[i], o.Rhs[i]) {
			return false
		}
	}
	return true
}
