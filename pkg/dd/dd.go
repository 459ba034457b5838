// Package dd builds layered binary decision diagrams for maximization
// problems. A Solver expands one variable per layer, deduplicates equal
// states, merges nodes when a layer exceeds the width limit and optionally
// prunes nodes against primal or dual cutoffs. The result is either exact or
// a relaxation whose longest path is a valid upper bound.
//
// Problem variants plug in through the State, NodeData and Problem
// interfaces; the engine never inspects a state beyond them.
package dd

// State is the dynamic-programming state of a node.
//
// Contract:
//   - Transition never mutates the receiver. It returns the child state and
//     false when assigning val to v is infeasible.
//   - Merge mutates the receiver so that it admits every completion admitted
//     by the receiver or by other.
//   - Equal and Hash agree: equal states hash equally.
//   - Less is a strict total order on states of one problem.
type State interface {
	Transition(v, val int) (State, bool)
	Merge(other State)
	Equal(other State) bool
	Less(other State) bool
	Hash() uint64
	// Size is the number of open literals, used for logging and ordering ties.
	Size() int
	String() string
}

// NodeData is auxiliary per-node data advanced in lockstep with the state.
//
// Transition may tighten the child state (for example by forcing domains)
// and returns false when the assignment is infeasible. Merge relaxes the
// receiver so it stays valid for every path of both nodes.
type NodeData interface {
	Transition(child State, v, val int) (NodeData, bool)
	Merge(other NodeData)
	Equal(other NodeData) bool
}

// Problem supplies the instance-specific parts of diagram construction.
type Problem interface {
	// NumVars is the number of variables, one layer each.
	NumVars() int
	// Weights is the objective used for node values during construction.
	Weights() []float64
	// InitialState returns the root state, or false if the root is infeasible.
	InitialState() (State, bool)
	// SkipVarForLongArc reports that branching on v cannot change s except
	// for marking v processed, and that v must take value zero. The
	// implementation may update s in place to mark v processed.
	SkipVarForLongArc(v int, s State) bool
	// LayerEnd is called once the layer branching on v is complete.
	LayerEnd(v int)
}

// Ordering picks the variable of each layer.
type Ordering interface {
	Name() string
	Next(layer int) int
}

// StateObserver is implemented by adaptive orderings. StateCreated fires
// when a distinct state enters the frontier; StateRemoved fires when it
// leaves it by expansion, merging or pruning.
type StateObserver interface {
	StateCreated(s State)
	StateRemoved(s State)
}

// CompletionBound estimates the best value obtainable below a state.
// DualBound never underestimates it; PrimalBound never overestimates it.
type CompletionBound interface {
	DualBound(s State) float64
	PrimalBound(s State) float64
}

// FixedOrdering branches on a precomputed variable order.
type FixedOrdering struct {
	name  string
	order []int
}

// NewFixedOrdering returns an ordering that yields order[layer].
func NewFixedOrdering(name string, order []int) *FixedOrdering {
	return &FixedOrdering{name: name, order: order}
}

// Name returns the ordering name.
func (o *FixedOrdering) Name() string { return o.name }

// Next returns order[layer].
func (o *FixedOrdering) Next(layer int) int { return o.order[layer] }

// Identity returns the order 0, 1, ..., n-1.
func Identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
