package dd

import (
	"fmt"
	"math"

	"github.com/gitrdm/ddbound/pkg/linear"
)

// NodeID indexes a node in the diagram arena.
type NodeID int32

// NoNode marks an absent arc.
const NoNode NodeID = -1

type arcRef struct {
	node NodeID
	val  int
}

// Node is a diagram node. Arcs[0] and Arcs[1] lead to the children for
// values zero and one. A child may sit more than one layer below its parent
// (a long arc); the skipped variables take value zero.
type Node struct {
	State State
	Data  NodeData
	Value float64
	Arcs  [2]NodeID
	// Layer is the layer in which the node branches. The terminal has
	// Layer == NumVars.
	Layer int
	// Relaxed is set when the node resulted from a relaxing merge.
	Relaxed bool

	parents []arcRef
	removed bool
}

// Diagram is a finished decision diagram. It owns every node.
type Diagram struct {
	nodes      []Node
	layers     [][]NodeID
	layerToVar []int
	root       NodeID
	terminal   NodeID
	width      int
	exact      bool
}

// NumVars returns the number of branching layers.
func (d *Diagram) NumVars() int { return len(d.layerToVar) }

// LayerToVar returns the variable branched on in each layer.
func (d *Diagram) LayerToVar() []int { return d.layerToVar }

// Width is the largest layer size observed during construction.
func (d *Diagram) Width() int { return d.width }

// Exact reports whether no relaxing merge or pruning happened.
func (d *Diagram) Exact() bool { return d.exact }

// Root returns the root node id.
func (d *Diagram) Root() NodeID { return d.root }

// Terminal returns the terminal node id.
func (d *Diagram) Terminal() NodeID { return d.terminal }

// Node returns the node with the given id.
func (d *Diagram) Node(id NodeID) *Node { return &d.nodes[id] }

// Layer returns the ids of the nodes branching in layer l. Layer NumVars()
// holds the terminal.
func (d *Diagram) Layer(l int) []NodeID { return d.layers[l] }

// NumNodes counts the live nodes.
func (d *Diagram) NumNodes() int {
	n := 0
	for _, l := range d.layers {
		n += len(l)
	}
	return n
}

// DetachArc removes the arc of node id for value val.
func (d *Diagram) DetachArc(id NodeID, val int) {
	child := d.nodes[id].Arcs[val]
	if child == NoNode {
		return
	}
	d.nodes[id].Arcs[val] = NoNode
	ps := d.nodes[child].parents
	for i, p := range ps {
		if p.node == id && p.val == val {
			d.nodes[child].parents = append(ps[:i], ps[i+1:]...)
			break
		}
	}
}

// OptimalValue returns the longest root-to-terminal path under obj, indexed
// by variable, and an assignment attaining it. When relaxed is false only
// paths that avoid relaxed nodes are considered. If no path qualifies it
// returns -Inf and a nil assignment.
func (d *Diagram) OptimalValue(obj []float64, relaxed bool) (float64, []int) {
	if len(obj) < d.NumVars() {
		panic(fmt.Sprintf("dd: objective of length %d for %d variables", len(obj), d.NumVars()))
	}
	val := make([]float64, len(d.nodes))
	from := make([]arcRef, len(d.nodes))
	for i := range val {
		val[i] = math.Inf(-1)
		from[i] = arcRef{node: NoNode}
	}
	if !relaxed && d.nodes[d.root].Relaxed {
		return math.Inf(-1), nil
	}
	val[d.root] = 0

	for l := 0; l < d.NumVars(); l++ {
		v := d.layerToVar[l]
		for _, id := range d.layers[l] {
			if math.IsInf(val[id], -1) {
				continue
			}
			n := &d.nodes[id]
			for b := 0; b < 2; b++ {
				c := n.Arcs[b]
				if c == NoNode || (!relaxed && d.nodes[c].Relaxed) {
					continue
				}
				cand := val[id]
				if b == 1 {
					cand += obj[v]
				}
				if cand > val[c] {
					val[c] = cand
					from[c] = arcRef{node: id, val: b}
				}
			}
		}
	}

	best := val[d.terminal]
	if math.IsInf(best, -1) {
		return best, nil
	}
	x := make([]int, len(obj))
	for id := d.terminal; id != d.root; {
		f := from[id]
		x[d.layerToVar[d.nodes[f.node].Layer]] = f.val
		id = f.node
	}
	return best, x
}

// Filter detaches every arc that cannot lie on a path satisfying row. Row
// indices refer to diagram variables. It returns the number of detached
// arcs. Equality rows are filtered on both sides.
func (d *Diagram) Filter(row *linear.Row) int {
	if row.Sense == linear.EQ {
		n := 0
		for _, r := range row.Split() {
			n += d.Filter(r)
		}
		return n
	}

	coeff := make([]float64, d.NumVars())
	for k, v := range row.Ind {
		coeff[v] += row.Coeffs[k]
	}
	// For a <= row track the smallest partial lhs, for >= the largest.
	sign := 1.0
	if row.Sense == linear.GE {
		sign = -1.0
	}
	better := func(a, b float64) bool { return sign*a < sign*b }
	worst := math.Inf(int(sign))

	top := make([]float64, len(d.nodes))
	bottom := make([]float64, len(d.nodes))
	for i := range top {
		top[i] = worst
		bottom[i] = worst
	}
	top[d.root] = 0
	for l := 0; l < d.NumVars(); l++ {
		v := d.layerToVar[l]
		for _, id := range d.layers[l] {
			if top[id] == worst {
				continue
			}
			for b := 0; b < 2; b++ {
				if c := d.nodes[id].Arcs[b]; c != NoNode {
					if cand := top[id] + float64(b)*coeff[v]; better(cand, top[c]) {
						top[c] = cand
					}
				}
			}
		}
	}

	bottom[d.terminal] = 0
	for l := d.NumVars() - 1; l >= 0; l-- {
		v := d.layerToVar[l]
		for _, id := range d.layers[l] {
			for b := 0; b < 2; b++ {
				if c := d.nodes[id].Arcs[b]; c != NoNode && bottom[c] != worst {
					if cand := float64(b)*coeff[v] + bottom[c]; better(cand, bottom[id]) {
						bottom[id] = cand
					}
				}
			}
		}
	}

	detached := 0
	for l := 0; l < d.NumVars(); l++ {
		v := d.layerToVar[l]
		for _, id := range d.layers[l] {
			if top[id] == worst {
				continue
			}
			for b := 0; b < 2; b++ {
				c := d.nodes[id].Arcs[b]
				if c == NoNode || bottom[c] == worst {
					continue
				}
				lhs := top[id] + float64(b)*coeff[v] + bottom[c]
				if (row.Sense == linear.LE && linear.Greater(lhs, row.Rhs)) ||
					(row.Sense == linear.GE && linear.Less(lhs, row.Rhs)) {
					d.DetachArc(id, b)
					detached++
				}
			}
		}
	}
	return detached
}
