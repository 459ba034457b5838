package dd

import "sort"

// Merger chooses which nodes of an oversized layer are merged.
//
// Select receives the frontier and the width limit and returns groups of
// indices into nodes. Each group is merged into its first member. After
// merging, the layer must hold at most width nodes.
type Merger interface {
	Name() string
	Select(nodes []*Node, width int) [][]int
}

// MinLongestPath keeps the width-1 nodes with the largest values and merges
// the remainder into one node. Ties are broken by state order so the result
// is deterministic.
type MinLongestPath struct{}

// Name returns "min_longest_path".
func (MinLongestPath) Name() string { return "min_longest_path" }

// Select implements Merger.
func (MinLongestPath) Select(nodes []*Node, width int) [][]int {
	if len(nodes) <= width {
		return nil
	}
	idx := make([]int, len(nodes))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		na, nb := nodes[idx[a]], nodes[idx[b]]
		if na.Value != nb.Value {
			return na.Value > nb.Value
		}
		return na.State.Less(nb.State)
	})
	keep := width - 1
	if keep < 0 {
		keep = 0
	}
	return [][]int{idx[keep:]}
}
