package graph

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// CliqueCover greedily partitions the edge set into cliques. Every edge
// of g belongs to at least one returned clique and every returned clique has
// at least two vertices. Isolated vertices are not reported.
//
// The cover starts each clique from the uncovered edge with the smallest
// endpoints and grows it with the candidate that covers the most uncovered
// edges, so it is deterministic for a given graph.
func CliqueCover(g *Graph) [][]int {
	covered := make([]mapset.Set[int], g.n)
	for i := range covered {
		covered[i] = mapset.NewThreadUnsafeSet[int]()
	}

	var cliques [][]int
	for u := 0; u < g.n; u++ {
		for v := g.adj[u].Next(u); v >= 0; v = g.adj[u].Next(v) {
			if covered[u].Contains(v) {
				continue
			}
			clique := []int{u, v}
			candidates := mapset.NewThreadUnsafeSet[int](g.adj[u].ToSlice()...)
			candidates = candidates.Intersect(mapset.NewThreadUnsafeSet[int](g.adj[v].ToSlice()...))

			for candidates.Cardinality() > 0 {
				best, bestGain := -1, -1
				for _, w := range sortedMembers(candidates) {
					gain := 0
					for _, c := range clique {
						if !covered[c].Contains(w) {
							gain++
						}
					}
					if gain > bestGain {
						best, bestGain = w, gain
					}
				}
				if bestGain == 0 {
					break
				}
				clique = append(clique, best)
				candidates.Remove(best)
				candidates = candidates.Intersect(mapset.NewThreadUnsafeSet[int](g.adj[best].ToSlice()...))
			}

			for i := 0; i < len(clique); i++ {
				for j := i + 1; j < len(clique); j++ {
					covered[clique[i]].Add(clique[j])
					covered[clique[j]].Add(clique[i])
				}
			}
			sort.Ints(clique)
			cliques = append(cliques, clique)
		}
	}
	return cliques
}

func sortedMembers(s mapset.Set[int]) []int {
	out := s.ToSlice()
	sort.Ints(out)
	return out
}
