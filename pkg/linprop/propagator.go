// Package linprop propagates linear rows over binary variables while a
// decision diagram is built.
//
// A Propagator keeps the global minimum and maximum activity of every row
// over the variables not yet branched on. It is updated once per finished
// layer. Each node carries its own right-hand sides (Data) and derives node
// activities from the global ones plus the domains recorded in its state.
// On every assignment the rows of the assigned variable are checked for
// infeasibility and one pass of bound propagation is run over the variables
// sharing a row with it.
//
// A Propagator is mutated during construction and serves one diagram.
package linprop

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gitrdm/ddbound/pkg/linear"
)

// DomainState is the view of a node state that propagation reads and
// tightens.
type DomainState interface {
	Domain(v int) linear.Domain
	// SetDomain restricts v to linear.Zero or linear.One and reports
	// whether the result is still feasible.
	SetDomain(v int, d linear.Domain) bool
}

// Propagator holds the rows and the global activity bookkeeping.
type Propagator struct {
	n         int
	rows      []*linear.Row
	cols      []linear.Column
	minGlobal []float64
	maxGlobal []float64
	remaining []int
	processed []bool
	neighbors [][]int
}

// New returns a propagator for rows over variables [0, n). Equality rows
// are split into their two sides. Rows must not mention fixed variables;
// use linear.Row.Fix first.
func New(rows []*linear.Row, n int) *Propagator {
	var split []*linear.Row
	for _, r := range rows {
		for _, h := range r.Split() {
			for _, v := range h.Ind {
				if v < 0 || v >= n {
					panic(fmt.Sprintf("linprop: row %q references variable %d outside [0,%d)", h.Name, v, n))
				}
			}
			split = append(split, h)
		}
	}

	p := &Propagator{
		n:         n,
		rows:      split,
		cols:      linear.Columns(split, n),
		minGlobal: make([]float64, len(split)),
		maxGlobal: make([]float64, len(split)),
		remaining: make([]int, len(split)),
		processed: make([]bool, n),
		neighbors: make([][]int, n),
	}
	for i, r := range split {
		p.minGlobal[i] = r.MinActivity()
		p.maxGlobal[i] = r.MaxActivity()
		p.remaining[i] = r.Len()
	}
	for v := 0; v < n; v++ {
		p.neighbors[v] = p.neighborSet(v)
	}
	return p
}

// neighborSet lists the variables sharing a row with v, excluding v.
func (p *Propagator) neighborSet(v int) []int {
	set := mapset.NewThreadUnsafeSet[int]()
	for _, r := range p.cols[v].Rows {
		for _, u := range p.rows[r].Ind {
			if u != v {
				set.Add(u)
			}
		}
	}
	out := set.ToSlice()
	sort.Ints(out)
	return out
}

// NumRows returns the number of one-sided rows.
func (p *Propagator) NumRows() int { return len(p.rows) }

// Rows returns the one-sided rows.
func (p *Propagator) Rows() []*linear.Row { return p.rows }

// Column returns the rows containing v.
func (p *Propagator) Column(v int) linear.Column { return p.cols[v] }

// Processed reports whether the layer of v has finished.
func (p *Propagator) Processed(v int) bool { return p.processed[v] }

// Remaining returns the number of variables of row r not yet processed.
func (p *Propagator) Remaining(r int) int { return p.remaining[r] }

// InitialRHS returns the right-hand sides of the rows.
func (p *Propagator) InitialRHS() []float64 {
	rhs := make([]float64, len(p.rows))
	for i, r := range p.rows {
		rhs[i] = r.Rhs
	}
	return rhs
}

// LayerEnd removes v from the global activities and marks it processed.
func (p *Propagator) LayerEnd(v int) {
	if p.processed[v] {
		return
	}
	col := p.cols[v]
	for k, r := range col.Rows {
		if c := col.Coeffs[k]; c < 0 {
			p.minGlobal[r] -= c
		} else {
			p.maxGlobal[r] -= c
		}
		p.remaining[r]--
	}
	p.processed[v] = true
}

// Activities returns copies of the global activities adjusted for the
// fixed domains recorded in s. Variable skip is left untouched.
func (p *Propagator) Activities(s DomainState, skip int) (min, max []float64) {
	min = append([]float64(nil), p.minGlobal...)
	max = append([]float64(nil), p.maxGlobal...)
	p.ActivityFromDomain(s, min, max, skip)
	return min, max
}

// ActivityFromDomain tightens min and max for every unprocessed variable
// other than skip whose domain in s is a single value.
func (p *Propagator) ActivityFromDomain(s DomainState, min, max []float64, skip int) {
	for v := 0; v < p.n; v++ {
		if p.processed[v] || v == skip {
			continue
		}
		dom := s.Domain(v)
		if dom != linear.Zero && dom != linear.One {
			continue
		}
		col := p.cols[v]
		for k, r := range col.Rows {
			c := col.Coeffs[k]
			switch {
			case c < 0 && dom == linear.One:
				max[r] += c
			case c < 0:
				min[r] -= c
			case dom == linear.One:
				min[r] += c
			default:
				max[r] -= c
			}
		}
	}
}

// Assign applies v = val to the node activities and rhs and reports
// whether every row of v can still be satisfied.
func (p *Propagator) Assign(v, val int, min, max, rhs []float64) bool {
	col := p.cols[v]
	for k, r := range col.Rows {
		c := col.Coeffs[k]
		if c < 0 {
			min[r] -= c
		} else {
			max[r] -= c
		}
		if val == 1 {
			rhs[r] -= c
		}
		if !p.rowFeasible(r, min[r], max[r], rhs[r]) {
			return false
		}
	}
	return true
}

func (p *Propagator) rowFeasible(r int, min, max, rhs float64) bool {
	if p.rows[r].Sense == linear.GE {
		return !linear.Less(max, rhs)
	}
	return !linear.Greater(min, rhs)
}

// Propagate runs one pass over the unprocessed neighbors of v whose domain
// in s is still open, forcing values the rows imply. It returns false when
// a forced value contradicts s.
func (p *Propagator) Propagate(s DomainState, v int, min, max, rhs []float64) bool {
	return p.propagate(s, p.neighbors[v], min, max, rhs)
}

// Feasible checks every row against the activities of s and then
// propagates over all open variables. It is used at the root, before any
// variable is assigned.
func (p *Propagator) Feasible(s DomainState, rhs []float64) bool {
	min, max := p.Activities(s, -1)
	for r := range p.rows {
		if !p.rowFeasible(r, min[r], max[r], rhs[r]) {
			return false
		}
	}
	all := make([]int, p.n)
	for v := range all {
		all[v] = v
	}
	return p.propagate(s, all, min, max, rhs)
}

func (p *Propagator) propagate(s DomainState, vars []int, min, max, rhs []float64) bool {
	for _, u := range vars {
		if p.processed[u] || s.Domain(u) != linear.ZeroOne {
			continue
		}
		col := p.cols[u]
		for k, r := range col.Rows {
			dom := SmallestDomain(col.Coeffs[k], p.rows[r].Sense, rhs[r], min[r], max[r])
			if dom == linear.ZeroOne {
				continue
			}
			if !s.SetDomain(u, dom) {
				return false
			}
		}
	}
	return true
}

// SmallestDomain returns the domain a variable with coefficient coeff is
// restricted to by a single row, given the row's activity over the other
// open variables including this one.
func SmallestDomain(coeff float64, sense linear.Sense, rhs, min, max float64) linear.Domain {
	if sense == linear.GE {
		if coeff < 0 {
			if linear.Less(max+coeff, rhs) {
				return linear.Zero
			}
		} else if linear.Less(max-coeff, rhs) {
			return linear.One
		}
		return linear.ZeroOne
	}
	if coeff < 0 {
		if linear.Greater(min-coeff, rhs) {
			return linear.One
		}
	} else if linear.Greater(min+coeff, rhs) {
		return linear.Zero
	}
	return linear.ZeroOne
}
