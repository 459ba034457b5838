// Package bp builds diagrams directly over the rows of a binary program.
//
// A node state records the remaining domain of every variable and the
// right-hand side of every row after the assignments on its path. Rows are
// checked and propagated with the linprop rules on each transition, so an
// exact diagram holds exactly the feasible points.
package bp

import (
	"fmt"
	"math"

	"go.uber.org/multierr"

	"github.com/gitrdm/ddbound/pkg/cliquetable"
	"github.com/gitrdm/ddbound/pkg/graph"
	"github.com/gitrdm/ddbound/pkg/linear"
)

// Instance is a set of rows over n binary variables with a maximization
// objective.
type Instance struct {
	n       int
	rows    []*linear.Row
	weights []float64
}

// NewInstance validates rows and weights and returns the instance. Every
// problem found is reported in the combined error.
func NewInstance(n int, rows []*linear.Row, weights []float64) (*Instance, error) {
	var err error
	if len(weights) != n {
		err = multierr.Append(err, fmt.Errorf("bp: %d weights for %d variables", len(weights), n))
	}
	for i, r := range rows {
		if len(r.Coeffs) != len(r.Ind) {
			err = multierr.Append(err, fmt.Errorf("bp: row %d has %d coefficients and %d indices", i, len(r.Coeffs), len(r.Ind)))
			continue
		}
		if math.IsNaN(r.Rhs) || math.IsInf(r.Rhs, 0) {
			err = multierr.Append(err, fmt.Errorf("bp: row %d has right-hand side %v", i, r.Rhs))
		}
		for k, v := range r.Ind {
			if v < 0 || v >= n {
				err = multierr.Append(err, fmt.Errorf("bp: row %d references variable %d outside [0,%d)", i, v, n))
			}
			if c := r.Coeffs[k]; math.IsNaN(c) || math.IsInf(c, 0) {
				err = multierr.Append(err, fmt.Errorf("bp: row %d has coefficient %v", i, c))
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return &Instance{n: n, rows: rows, weights: append([]float64(nil), weights...)}, nil
}

// NumVars returns the number of variables.
func (inst *Instance) NumVars() int { return inst.n }

// Rows returns the rows.
func (inst *Instance) Rows() []*linear.Row { return inst.rows }

// Weights returns the objective weights.
func (inst *Instance) Weights() []float64 { return inst.weights }

// Feasible reports whether x satisfies every row.
func (inst *Instance) Feasible(x []int) bool {
	for _, r := range inst.rows {
		if !r.Satisfied(x) {
			return false
		}
	}
	return true
}

// InteractionGraph connects two variables when they share a row.
func (inst *Instance) InteractionGraph() *graph.Graph {
	g := graph.New(inst.n)
	for _, r := range inst.rows {
		g.AddClique(r.Ind)
	}
	return g
}

// SetPacking is the conflict graph of the set-packing rows of a system,
// over the variables appearing in them.
type SetPacking struct {
	Graph     *graph.Graph
	VarToNode []int // -1 for variables in no set-packing row
	NodeToVar []int
	Used      []bool // rows that contributed
}

// SetPackingGraph extracts the set-packing rows (sum x <= 1 with unit
// coefficients) of rows over n variables.
func SetPackingGraph(rows []*linear.Row, n int) *SetPacking {
	sp := &SetPacking{VarToNode: make([]int, n), Used: make([]bool, len(rows))}
	for i := range sp.VarToNode {
		sp.VarToNode[i] = -1
	}
	for i, r := range rows {
		if !linear.IsSetPacking(r) {
			continue
		}
		sp.Used[i] = true
		for _, v := range r.Ind {
			sp.VarToNode[v] = 0
		}
	}
	for v, m := range sp.VarToNode {
		if m >= 0 {
			sp.VarToNode[v] = len(sp.NodeToVar)
			sp.NodeToVar = append(sp.NodeToVar, v)
		}
	}

	sp.Graph = graph.New(len(sp.NodeToVar))
	for i, r := range rows {
		if !sp.Used[i] {
			continue
		}
		nodes := make([]int, len(r.Ind))
		for k, v := range r.Ind {
			nodes[k] = sp.VarToNode[v]
		}
		sp.Graph.AddClique(nodes)
	}
	return sp
}

// ToCliqueTable splits the instance into a clique table holding every row
// in clique-table form and the rows that are not.
func (inst *Instance) ToCliqueTable(transitive bool) (*cliquetable.Instance, []*linear.Row) {
	b := cliquetable.NewBuilder(inst.n)
	b.SetWeights(inst.weights)
	var rest []*linear.Row
	for _, r := range inst.rows {
		if !b.AddRow(r) {
			rest = append(rest, r)
		}
	}
	return b.Build(transitive), rest
}
