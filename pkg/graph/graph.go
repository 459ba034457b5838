// Package graph provides the small graph toolkit used to build diagram
// instances: an undirected conflict graph with bitset adjacency, a directed
// graph with strongly connected components, a greedy clique cover and a
// Cuthill-McKee vertex order.
package graph

import (
	"fmt"

	"github.com/gitrdm/ddbound/pkg/intset"
)

// Graph is an undirected simple graph on vertices [0, n).
// Self loops are rejected; parallel edges collapse.
type Graph struct {
	n   int
	adj []*intset.IntSet
	m   int
}

// New returns an edgeless graph with n vertices.
func New(n int) *Graph {
	adj := make([]*intset.IntSet, n)
	for i := range adj {
		adj[i] = intset.New(n)
	}
	return &Graph{n: n, adj: adj}
}

// NumVertices returns n.
func (g *Graph) NumVertices() int { return g.n }

// NumEdges returns the number of distinct edges.
func (g *Graph) NumEdges() int { return g.m }

// AddEdge inserts {u, v}. It returns false when the edge already existed.
func (g *Graph) AddEdge(u, v int) bool {
	if u == v {
		panic(fmt.Sprintf("graph: self loop on vertex %d", u))
	}
	if g.adj[u].Contains(v) {
		return false
	}
	g.adj[u].Add(v)
	g.adj[v].Add(u)
	g.m++
	return true
}

// HasEdge reports whether {u, v} is an edge.
func (g *Graph) HasEdge(u, v int) bool {
	return g.adj[u].Contains(v)
}

// Degree returns the number of neighbors of v.
func (g *Graph) Degree(v int) int {
	return g.adj[v].Count()
}

// Neighbors returns the adjacency set of v. Callers must not modify it.
func (g *Graph) Neighbors(v int) *intset.IntSet {
	return g.adj[v]
}

// AddClique inserts every edge between the given vertices.
func (g *Graph) AddClique(vs []int) {
	for i := 0; i < len(vs); i++ {
		for j := i + 1; j < len(vs); j++ {
			if vs[i] != vs[j] {
				g.AddEdge(vs[i], vs[j])
			}
		}
	}
}
