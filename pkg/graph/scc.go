package graph

// Digraph is a directed graph on vertices [0, n) stored as successor lists.
type Digraph struct {
	adj [][]int
}

// NewDigraph returns a directed graph with n vertices and no arcs.
func NewDigraph(n int) *Digraph {
	return &Digraph{adj: make([][]int, n)}
}

// NumVertices returns n.
func (d *Digraph) NumVertices() int { return len(d.adj) }

// AddArc inserts u -> v.
func (d *Digraph) AddArc(u, v int) {
	d.adj[u] = append(d.adj[u], v)
}

// Successors returns the successors of u.
func (d *Digraph) Successors(u int) []int { return d.adj[u] }

// StronglyConnected computes strongly connected components with Tarjan's
// algorithm. It returns comp[v] for every vertex and the number of
// components.
//
// Components are numbered in reverse topological order: if u -> v is an arc
// then comp[u] >= comp[v].
func (d *Digraph) StronglyConnected() ([]int, int) {
	n := len(d.adj)
	comp := make([]int, n)
	indices := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range indices {
		indices[i] = -1
		comp[i] = -1
	}

	index := 0
	count := 0
	stack := []int{}

	var strongconnect func(int)
	strongconnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range d.adj[v] {
			if indices[w] == -1 {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] && indices[w] < lowlink[v] {
				lowlink[v] = indices[w]
			}
		}

		// v is the root of a component: pop it
		if lowlink[v] == indices[v] {
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp[w] = count
				if w == v {
					break
				}
			}
			count++
		}
	}

	for v := 0; v < n; v++ {
		if indices[v] == -1 {
			strongconnect(v)
		}
	}
	return comp, count
}
