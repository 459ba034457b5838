// Package cliquetable implements diagrams over clique tables: sets of
// pairwise conflicts between literals of binary variables.
//
// For n variables there are 2n literals. Literal i stands for x_i = 1 and
// literal i+n for x_i = 0. A node state is the set of literals that may
// still be set true. Branching on a literal removes every literal it
// conflicts with, which makes the transition a single bitset intersection
// against a precomputed mask.
//
// Rows of a linear system that are not in clique-table form can be attached
// through the linprop package; they are then propagated while the diagram is
// built.
package cliquetable

import (
	"fmt"

	"github.com/gitrdm/ddbound/pkg/graph"
	"github.com/gitrdm/ddbound/pkg/intset"
	"github.com/gitrdm/ddbound/pkg/linear"
)

// Instance is an immutable clique table with objective weights.
type Instance struct {
	n              int
	weights        []float64
	adj            []*intset.IntSet
	masks          []*intset.IntSet
	edges          int
	nonnegatedOnly bool
	transitive     bool
}

// NumVars returns the number of variables.
func (inst *Instance) NumVars() int { return inst.n }

// Weights returns the objective weights.
func (inst *Instance) Weights() []float64 { return inst.weights }

// Complement returns the literal of the opposite value.
func (inst *Instance) Complement(lit int) int {
	if lit < inst.n {
		return lit + inst.n
	}
	return lit - inst.n
}

// Adj returns the literals conflicting with lit, always including its
// complement. Callers must not modify it.
func (inst *Instance) Adj(lit int) *intset.IntSet { return inst.adj[lit] }

// Mask returns the literals that survive when lit is set true.
func (inst *Instance) Mask(lit int) *intset.IntSet { return inst.masks[lit] }

// NumEdges returns the number of conflicts, not counting the complement
// pairs.
func (inst *Instance) NumEdges() int { return inst.edges }

// NonnegatedOnly reports whether no negated literal takes part in a
// conflict. States then only track the n positive literals.
func (inst *Instance) NonnegatedOnly() bool { return inst.nonnegatedOnly }

// Transitive reports whether masks were built with implied conflicts.
func (inst *Instance) Transitive() bool { return inst.transitive }

// Builder accumulates conflicts for an Instance.
type Builder struct {
	n       int
	g       *graph.Graph
	weights []float64
}

// NewBuilder returns a builder for n variables with zero weights.
func NewBuilder(n int) *Builder {
	g := graph.New(2 * n)
	for i := 0; i < n; i++ {
		g.AddEdge(i, i+n)
	}
	return &Builder{n: n, g: g, weights: make([]float64, n)}
}

func (b *Builder) checkLiteral(lit int) {
	if lit < 0 || lit >= 2*b.n {
		panic(fmt.Sprintf("cliquetable: literal %d outside [0,%d)", lit, 2*b.n))
	}
}

// AddConflict records that literals a and c cannot both be true. It
// returns false if the conflict was already known.
func (b *Builder) AddConflict(a, c int) bool {
	b.checkLiteral(a)
	b.checkLiteral(c)
	return b.g.AddEdge(a, c)
}

// AddClique records pairwise conflicts between all given literals.
func (b *Builder) AddClique(lits ...int) {
	for _, l := range lits {
		b.checkLiteral(l)
	}
	b.g.AddClique(lits)
}

// AddRow adds the cliques of a row in clique-table form and reports
// whether the row was in that form. An equality row contributes both of
// its sides.
func (b *Builder) AddRow(r *linear.Row) bool {
	le, ge := linear.CliqueTableForm(r)
	if !le && !ge {
		return false
	}
	if r.Sense == linear.EQ && !(le && ge) {
		return false
	}
	if le {
		b.AddClique(linear.CliqueLiterals(r, b.n, false)...)
	}
	if ge {
		b.AddClique(linear.CliqueLiterals(r, b.n, true)...)
	}
	return true
}

// SetWeights sets the objective weights.
func (b *Builder) SetWeights(w []float64) {
	if len(w) != b.n {
		panic(fmt.Sprintf("cliquetable: %d weights for %d variables", len(w), b.n))
	}
	copy(b.weights, w)
}

// Build returns the instance. With transitive set, each mask also removes
// the literals implied false through chains of forced literals.
func (b *Builder) Build(transitive bool) *Instance {
	n := b.n
	inst := &Instance{
		n:          n,
		weights:    append([]float64(nil), b.weights...),
		adj:        make([]*intset.IntSet, 2*n),
		masks:      make([]*intset.IntSet, 2*n),
		edges:      b.g.NumEdges() - n,
		transitive: transitive,
	}
	for lit := 0; lit < 2*n; lit++ {
		inst.adj[lit] = b.g.Neighbors(lit).Clone()
	}

	inst.nonnegatedOnly = true
	for i := n; i < 2*n; i++ {
		if inst.adj[i].Count() > 1 {
			inst.nonnegatedOnly = false
			break
		}
	}

	for lit := 0; lit < 2*n; lit++ {
		if transitive {
			inst.masks[lit] = inst.transitiveMask(lit)
		} else {
			inst.masks[lit] = inst.adj[lit].Clone().Complement().Remove(lit)
		}
	}
	if inst.nonnegatedOnly {
		for _, m := range inst.masks {
			m.Resize(n)
		}
	}
	return inst
}

// transitiveMask closes the mask of lit under forced literals: a literal
// still in the mask whose complement is gone must be true, so its own
// conflicts are removed as well.
func (inst *Instance) transitiveMask(lit int) *intset.IntSet {
	m := inst.adj[lit].Clone().Complement()
	for changed := true; changed; {
		changed = false
		for u := m.First(); u >= 0; u = m.Next(u) {
			if m.Contains(inst.Complement(u)) || !m.Intersects(inst.adj[u]) {
				continue
			}
			m.Difference(inst.adj[u])
			changed = true
		}
	}
	return m.Remove(lit)
}

// Conflicts lists every conflict as a pair of literals a < c, excluding
// complement pairs.
func (inst *Instance) Conflicts() [][2]int {
	var out [][2]int
	for a := 0; a < 2*inst.n; a++ {
		for c := inst.adj[a].Next(a); c >= 0; c = inst.adj[a].Next(c) {
			if c != inst.Complement(a) {
				out = append(out, [2]int{a, c})
			}
		}
	}
	return out
}

// Feasible reports whether x violates no conflict.
func (inst *Instance) Feasible(x []int) bool {
	if len(x) != inst.n {
		panic(fmt.Sprintf("cliquetable: assignment of %d values for %d variables", len(x), inst.n))
	}
	lit := func(l int) bool {
		if l < inst.n {
			return x[l] == 1
		}
		return x[l-inst.n] == 0
	}
	for _, e := range inst.Conflicts() {
		if lit(e[0]) && lit(e[1]) {
			return false
		}
	}
	return true
}
