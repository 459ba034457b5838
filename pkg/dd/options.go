package dd

import "time"

// Exact as a width disables merging.
const Exact = -1

// Option configures a Solver.
type Option func(*config)

type config struct {
	ordering     Ordering
	merger       Merger
	width        int
	completion   CompletionBound
	primalPrune  bool
	primalBound  float64
	dualPrune    bool
	dualCutoff   float64
	longArcs     bool
	data         NodeData
	releaseState bool
	stop         func() bool
	timeLimit    time.Duration
}

func defaultConfig() *config {
	return &config{
		width:        Exact,
		longArcs:     true,
		releaseState: true,
	}
}

// WithOrdering sets the variable ordering. The default branches on
// variables in index order.
func WithOrdering(o Ordering) Option {
	return func(c *config) { c.ordering = o }
}

// WithMerger sets the node merger. The default is MinLongestPath.
func WithMerger(m Merger) Option {
	return func(c *config) { c.merger = m }
}

// WithWidth bounds the number of nodes per layer. Exact (-1) disables the
// bound.
func WithWidth(w int) Option {
	return func(c *config) { c.width = w }
}

// WithCompletionBound sets the completion estimate used for pruning.
func WithCompletionBound(cb CompletionBound) Option {
	return func(c *config) { c.completion = cb }
}

// WithPrimalPruning discards nodes whose value plus dual completion cannot
// exceed bound, the value of a known solution.
func WithPrimalPruning(bound float64) Option {
	return func(c *config) {
		c.primalPrune = true
		c.primalBound = bound
	}
}

// WithDualPruning discards nodes whose value plus dual completion does not
// exceed cutoff. The resulting diagram bound is only meaningful when it
// stays above cutoff.
func WithDualPruning(cutoff float64) Option {
	return func(c *config) {
		c.dualPrune = true
		c.dualCutoff = cutoff
	}
}

// WithLongArcs enables or disables long arcs. Enabled by default.
func WithLongArcs(on bool) Option {
	return func(c *config) { c.longArcs = on }
}

// WithNodeData attaches data to the root; children inherit it through
// NodeData.Transition.
func WithNodeData(d NodeData) Option {
	return func(c *config) { c.data = d }
}

// WithReleaseStates drops states and node data of expanded layers to bound
// memory. Enabled by default.
func WithReleaseStates(on bool) Option {
	return func(c *config) { c.releaseState = on }
}

// WithStop installs a predicate polled at every layer boundary.
func WithStop(stop func() bool) Option {
	return func(c *config) { c.stop = stop }
}

// WithTimeLimit bounds construction time.
func WithTimeLimit(d time.Duration) Option {
	return func(c *config) { c.timeLimit = d }
}
