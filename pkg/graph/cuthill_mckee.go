package graph

import "sort"

// CuthillMcKee returns a vertex order with small bandwidth. Each connected
// component is traversed breadth first from one of its minimum-degree
// vertices, visiting neighbors by increasing degree. When reverse is true
// the order is reversed (RCM).
func CuthillMcKee(g *Graph, reverse bool) []int {
	order := make([]int, 0, g.n)
	visited := make([]bool, g.n)
	deg := make([]int, g.n)
	for v := range deg {
		deg[v] = g.Degree(v)
	}

	byDegree := make([]int, g.n)
	for v := range byDegree {
		byDegree[v] = v
	}
	sort.SliceStable(byDegree, func(a, b int) bool { return deg[byDegree[a]] < deg[byDegree[b]] })

	for _, start := range byDegree {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			order = append(order, v)

			var next []int
			g.adj[v].ForEach(func(w int) {
				if !visited[w] {
					visited[w] = true
					next = append(next, w)
				}
			})
			sort.SliceStable(next, func(a, b int) bool { return deg[next[a]] < deg[next[b]] })
			queue = append(queue, next...)
		}
	}

	if reverse {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}
	return order
}
