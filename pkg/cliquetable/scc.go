package cliquetable

import (
	"github.com/gitrdm/ddbound/pkg/graph"
	"github.com/gitrdm/ddbound/pkg/intset"
)

// ImplicationGraph returns the directed graph over 2n literals with arcs
// a -> not c and c -> not a for every conflict {a, c}.
func (inst *Instance) ImplicationGraph() *graph.Digraph {
	d := graph.NewDigraph(2 * inst.n)
	for _, e := range inst.Conflicts() {
		d.AddArc(e[0], inst.Complement(e[1]))
		d.AddArc(e[1], inst.Complement(e[0]))
	}
	return d
}

// MakeDomainConsistent removes from set (a 2n literal set) every literal
// that implies its own complement in the implication graph. A variable
// whose two literals share a component loses both. It returns false if
// some variable is left with neither literal.
//
// The result depends only on the instance, so a second call removes
// nothing new.
func MakeDomainConsistent(inst *Instance, set *intset.IntSet) bool {
	d := inst.ImplicationGraph()
	comp, nc := d.StronglyConnected()

	members := make([][]int, nc)
	for v, c := range comp {
		members[c] = append(members[c], v)
	}

	// arcs run from higher to lower component numbers, so a descending
	// sweep sees every ancestor of a component before the component itself
	ancestors := make([]*intset.IntSet, nc)
	for c := range ancestors {
		ancestors[c] = intset.New(nc)
	}
	for c := nc - 1; c >= 0; c-- {
		for _, u := range members[c] {
			for _, w := range d.Successors(u) {
				if cw := comp[w]; cw != c {
					ancestors[cw].Add(c).Union(ancestors[c])
				}
			}
		}
	}

	for v := 0; v < 2*inst.n; v++ {
		cv, cn := comp[v], comp[inst.Complement(v)]
		if cv == cn || ancestors[cn].Contains(cv) {
			set.Remove(v)
		}
	}

	for i := 0; i < inst.n; i++ {
		if !set.Contains(i) && !set.Contains(i+inst.n) {
			return false
		}
	}
	return true
}
