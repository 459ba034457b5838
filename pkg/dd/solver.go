package dd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/gitrdm/ddbound/pkg/linear"
)

var (
	// ErrInfeasible is returned when no node survives some layer. For a
	// maximization bound the caller should read it as -Inf.
	ErrInfeasible = errors.New("dd: infeasible")
	// ErrStopped is returned when the stop predicate fired.
	ErrStopped = errors.New("dd: construction stopped")
)

// Solver constructs one decision diagram for a problem.
type Solver struct {
	problem Problem
	cfg     *config
	stats   Stats
	width   int
	exact   bool
}

// NewSolver returns a solver for p. It panics on inconsistent options,
// such as pruning without a completion bound or a zero width.
func NewSolver(p Problem, opts ...Option) *Solver {
	cfg := defaultConfig()
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}
	if cfg.ordering == nil {
		cfg.ordering = NewFixedOrdering("index", Identity(p.NumVars()))
	}
	if cfg.merger == nil {
		cfg.merger = MinLongestPath{}
	}
	if (cfg.primalPrune || cfg.dualPrune) && cfg.completion == nil {
		panic("dd: pruning requires a completion bound")
	}
	if cfg.width == 0 || cfg.width < Exact {
		panic(fmt.Sprintf("dd: invalid width %d", cfg.width))
	}
	return &Solver{problem: p, cfg: cfg}
}

// Stats returns statistics of the last construction.
func (s *Solver) Stats() Stats { return s.stats }

// FinalWidth returns the largest layer size of the last construction.
func (s *Solver) FinalWidth() int { return s.width }

// FinalExact reports whether the last construction was exact.
func (s *Solver) FinalExact() bool { return s.exact }

// Ordering returns the configured ordering.
func (s *Solver) Ordering() Ordering { return s.cfg.ordering }

// frontier is the set of nodes waiting to branch, indexed by state hash.
type frontier struct {
	ids   []NodeID
	index map[uint64][]NodeID
}

func newFrontier() *frontier {
	return &frontier{index: make(map[uint64][]NodeID)}
}

type builder struct {
	s       *Solver
	d       *Diagram
	obs     StateObserver
	weights []float64
	last    bool
}

// Construct builds the diagram layer by layer.
//
// Contract:
//   - Returns ErrInfeasible if the root is infeasible or every node of some
//     layer is infeasible or pruned.
//   - Returns ctx.Err() or ErrStopped when cancelled at a layer boundary;
//     the partial diagram is discarded.
//   - On success Diagram.Exact() is false iff a relaxing merge or pruning
//     took place.
func (s *Solver) Construct(ctx context.Context) (*Diagram, error) {
	start := time.Now()
	log := ctxzap.Extract(ctx)
	if s.cfg.timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.timeLimit)
		defer cancel()
	}

	n := s.problem.NumVars()
	s.stats = Stats{Layers: n}
	s.exact = true
	s.width = 0

	b := &builder{
		s:       s,
		weights: s.problem.Weights(),
		d: &Diagram{
			layers:     make([][]NodeID, n+1),
			layerToVar: make([]int, n),
		},
	}
	if obs, ok := s.cfg.ordering.(StateObserver); ok {
		b.obs = obs
	}
	d := b.d

	rootState, ok := s.problem.InitialState()
	if !ok {
		log.Debug("root state infeasible")
		return nil, ErrInfeasible
	}
	d.root = b.newNode(rootState, s.cfg.data, 0)
	b.created(d.root)
	front := []NodeID{d.root}
	s.width = 1

	for l := 0; l < n; l++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.cfg.stop != nil && s.cfg.stop() {
			return nil, ErrStopped
		}
		b.last = l == n-1

		v := s.cfg.ordering.Next(l)
		d.layerToVar[l] = v
		next := newFrontier()
		expanded := make([]NodeID, 0, len(front))

		for _, id := range front {
			if s.cfg.longArcs && s.problem.SkipVarForLongArc(v, d.nodes[id].State) {
				s.stats.LongArcs++
				if got := b.insert(next, id); got != id {
					b.removed(id)
				}
				continue
			}
			d.nodes[id].Layer = l
			expanded = append(expanded, id)
			b.removed(id)
			b.expand(next, id, v)
		}
		s.problem.LayerEnd(v)

		if s.cfg.releaseState {
			for _, id := range expanded {
				d.nodes[id].State = nil
				d.nodes[id].Data = nil
			}
		}
		d.layers[l] = expanded

		b.prune(next)
		if len(next.ids) == 0 {
			log.Debug("layer infeasible", zap.Int("layer", l), zap.Int("var", v))
			return nil, ErrInfeasible
		}
		if !b.last && s.cfg.width > 0 && len(next.ids) > s.cfg.width {
			b.mergeLayer(next)
		}
		if !b.last && len(next.ids) > s.width {
			s.width = len(next.ids)
		}
		front = next.ids

		log.Debug("layer built",
			zap.Int("layer", l),
			zap.Int("var", v),
			zap.Int("expanded", len(expanded)),
			zap.Int("frontier", len(front)),
		)
	}

	d.terminal = b.mergeTerminal(front)
	d.nodes[d.terminal].Layer = n
	d.layers[n] = []NodeID{d.terminal}
	d.width = s.width
	d.exact = s.exact

	s.stats.MaxWidth = s.width
	s.stats.Elapsed = time.Since(start)
	log.Debug("diagram constructed",
		zap.Int("width", s.width),
		zap.Bool("exact", s.exact),
		zap.Int("nodes", d.NumNodes()),
		zap.Duration("elapsed", s.stats.Elapsed),
	)
	return d, nil
}

func (b *builder) newNode(s State, data NodeData, value float64) NodeID {
	b.d.nodes = append(b.d.nodes, Node{
		State: s,
		Data:  data,
		Value: value,
		Arcs:  [2]NodeID{NoNode, NoNode},
	})
	return NodeID(len(b.d.nodes) - 1)
}

func (b *builder) created(id NodeID) {
	if b.obs != nil {
		b.obs.StateCreated(b.d.nodes[id].State)
	}
}

func (b *builder) removed(id NodeID) {
	if b.obs != nil {
		b.obs.StateRemoved(b.d.nodes[id].State)
	}
}

// expand creates the children of node id for variable v.
func (b *builder) expand(next *frontier, id NodeID, v int) {
	for val := 0; val < 2; val++ {
		parent := &b.d.nodes[id]
		child, ok := parent.State.Transition(v, val)
		if !ok {
			continue
		}
		var data NodeData
		if parent.Data != nil {
			if data, ok = parent.Data.Transition(child, v, val); !ok {
				continue
			}
		}
		value := parent.Value
		if val == 1 {
			value += b.weights[v]
		}

		cid := b.newNode(child, data, value)
		b.d.nodes[id].Arcs[val] = cid
		b.d.nodes[cid].parents = append(b.d.nodes[cid].parents, arcRef{node: id, val: val})

		if got := b.insert(next, cid); got == cid {
			b.s.stats.NodesCreated++
			b.created(cid)
		} else {
			b.s.stats.DuplicatesMerged++
		}
	}
}

// insert adds id to the frontier, or absorbs it into an equal node already
// there. It returns the id that now represents the state.
func (b *builder) insert(f *frontier, id NodeID) NodeID {
	st := b.d.nodes[id].State
	h := st.Hash()
	for _, c := range f.index[h] {
		if b.d.nodes[c].State.Equal(st) {
			b.absorb(c, id, false)
			return c
		}
	}
	f.index[h] = append(f.index[h], id)
	f.ids = append(f.ids, id)
	return id
}

// absorb redirects every arc into src to dst and removes src. With relax
// set, the states are merged and dst becomes relaxed.
func (b *builder) absorb(dst, src NodeID, relax bool) {
	nodes := b.d.nodes
	ds, ss := &nodes[dst], &nodes[src]
	for _, p := range ss.parents {
		nodes[p.node].Arcs[p.val] = dst
		ds.parents = append(ds.parents, p)
	}
	ss.parents = nil
	ss.removed = true
	if ss.Value > ds.Value {
		ds.Value = ss.Value
	}
	if relax {
		ds.State.Merge(ss.State)
		ds.Relaxed = true
		b.s.exact = false
	}
	if ss.Relaxed {
		ds.Relaxed = true
	}
	if ds.Data != nil && ss.Data != nil && !ds.Data.Equal(ss.Data) {
		ds.Data.Merge(ss.Data)
		if !b.last {
			ds.Relaxed = true
			b.s.exact = false
		}
	}
}

// prune drops frontier nodes that cannot improve on the cutoffs.
func (b *builder) prune(f *frontier) {
	cfg := b.s.cfg
	if !cfg.primalPrune && !cfg.dualPrune {
		return
	}
	kept := f.ids[:0]
	for _, id := range f.ids {
		n := &b.d.nodes[id]
		bound := n.Value + cfg.completion.DualBound(n.State)
		switch {
		case cfg.primalPrune && linear.LessEq(bound, cfg.primalBound):
			b.s.stats.PrunedPrimal++
		case cfg.dualPrune && linear.LessEq(bound, cfg.dualCutoff):
			b.s.stats.PrunedDual++
		default:
			kept = append(kept, id)
			continue
		}
		for _, p := range n.parents {
			b.d.nodes[p.node].Arcs[p.val] = NoNode
		}
		n.parents = nil
		n.removed = true
		b.removed(id)
		b.s.exact = false
	}
	f.ids = kept
	f.reindex(b.d.nodes)
}

func (f *frontier) reindex(nodes []Node) {
	f.index = make(map[uint64][]NodeID, len(f.ids))
	for _, id := range f.ids {
		h := nodes[id].State.Hash()
		f.index[h] = append(f.index[h], id)
	}
}

// mergeLayer applies the merger and then folds merged nodes that became
// equal to other frontier nodes.
func (b *builder) mergeLayer(f *frontier) {
	ptrs := make([]*Node, len(f.ids))
	for i, id := range f.ids {
		ptrs[i] = &b.d.nodes[id]
	}
	groups := b.s.cfg.merger.Select(ptrs, b.s.cfg.width)
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		dst := f.ids[g[0]]
		for _, i := range g {
			b.removed(f.ids[i])
		}
		for _, i := range g[1:] {
			b.absorb(dst, f.ids[i], true)
			b.s.stats.RelaxedMerges++
		}
		b.created(dst)
	}

	ids := f.ids
	*f = *newFrontier()
	for _, id := range ids {
		if b.d.nodes[id].removed {
			continue
		}
		if got := b.insert(f, id); got != id {
			b.removed(id)
		}
	}
}

// mergeTerminal collapses the final frontier into a single terminal.
func (b *builder) mergeTerminal(front []NodeID) NodeID {
	nodes := b.d.nodes
	t := front[0]
	for _, id := range front[1:] {
		for _, p := range nodes[id].parents {
			nodes[p.node].Arcs[p.val] = t
			nodes[t].parents = append(nodes[t].parents, p)
		}
		nodes[id].parents = nil
		nodes[id].removed = true
		if nodes[id].Value > nodes[t].Value {
			nodes[t].Value = nodes[id].Value
		}
	}
	// every arc into the terminal was produced by a feasible transition
	nodes[t].Relaxed = false
	return t
}
