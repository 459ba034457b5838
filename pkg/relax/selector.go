package relax

import (
	"errors"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gitrdm/ddbound/pkg/bp"
	"github.com/gitrdm/ddbound/pkg/cliquetable"
	"github.com/gitrdm/ddbound/pkg/dd"
	"github.com/gitrdm/ddbound/pkg/graph"
	"github.com/gitrdm/ddbound/pkg/linear"
	"github.com/gitrdm/ddbound/pkg/linprop"
)

// ErrNoStructure is returned when a selector finds nothing to build a
// diagram from.
var ErrNoStructure = errors.New("relax: no diagram structure in subproblem")

// Plan is a diagram construction over a subset of the free variables
// together with the rows left to the Lagrangian relaxation.
type Plan struct {
	Problem    dd.Problem
	Options    []dd.Option
	Completion dd.CompletionBound
	// DDToVar maps diagram variables to subproblem variables.
	DDToVar []int
	// Relaxed rows are in subproblem variables and may mention fixed
	// variables.
	Relaxed []*linear.Row
}

// Selector decides which constraints the diagram captures.
type Selector interface {
	Name() string
	// Plan prepares a construction. It may extend fixed with implied
	// fixings and returns false when the fixings are contradictory.
	Plan(sub *Subproblem, fixed []int, cfg Config) (*Plan, bool, error)
}

// SelectorFor returns the selector of cfg.Mode.
func SelectorFor(cfg Config) Selector {
	if cfg.Mode == ModeRows {
		return RowSelector{}
	}
	return CliqueTableSelector{}
}

// CliqueTableSelector builds a clique table from the cliques and the row
// sides in clique-table form. Other row sides are relaxed and, with
// Config.Propagate, also propagated during construction.
type CliqueTableSelector struct{}

// Name implements Selector.
func (CliqueTableSelector) Name() string { return ModeCliqueTable }

// Plan implements Selector.
func (CliqueTableSelector) Plan(sub *Subproblem, fixed []int, cfg Config) (*Plan, bool, error) {
	n := sub.NumVars
	var cliques [][]int
	var relaxed, propagated []*linear.Row
	for _, r := range sub.Rows {
		for _, side := range r.Split() {
			le, ge := linear.CliqueTableForm(side)
			if le || ge {
				cliques = append(cliques, dedup(linear.CliqueLiterals(side, n, ge)))
				if cfg.AddAllRows {
					relaxed = append(relaxed, side)
				}
				continue
			}
			relaxed = append(relaxed, side)
			propagated = append(propagated, side)
		}
	}
	for _, c := range sub.Cliques {
		cliques = append(cliques, dedup(c))
		if cfg.AddAllRows {
			relaxed = append(relaxed, CliqueRow(c, n))
		}
	}
	if len(cliques) == 0 {
		return nil, false, ErrNoStructure
	}
	if !fixByCliques(cliques, fixed, n) || !fixedRowsFeasible(sub.Rows, fixed) {
		return nil, false, nil
	}

	vars := mapset.NewThreadUnsafeSet[int]()
	for _, c := range cliques {
		for _, l := range c {
			if _, isFixed := literalTrue(l, n, fixed); !isFixed {
				vars.Add(l % n)
			}
		}
	}
	var props []*linear.Row
	if cfg.Propagate {
		for _, r := range propagated {
			f := r.Fix(fixed)
			if f.Len() == 0 {
				continue
			}
			props = append(props, f)
			for _, v := range f.Ind {
				vars.Add(v)
			}
		}
	}
	ddToVar, varToDD := index(vars, n)
	nDD := len(ddToVar)

	b := cliquetable.NewBuilder(nDD)
	for _, c := range cliques {
		var lits []int
		for _, l := range c {
			if _, isFixed := literalTrue(l, n, fixed); isFixed {
				continue
			}
			if l < n {
				lits = append(lits, varToDD[l])
			} else {
				lits = append(lits, varToDD[l-n]+nDD)
			}
		}
		if len(lits) > 1 {
			b.AddClique(lits...)
		}
	}
	b.SetWeights(restrict(sub.Objective, ddToVar))
	inst := b.Build(cfg.Transitive)

	popts := []cliquetable.ProblemOption{cliquetable.WithDomainConsistency(cfg.DomainConsistency)}
	if len(props) > 0 {
		rows := make([]*linear.Row, len(props))
		for i, r := range props {
			rows[i] = r.Remap(varToDD)
		}
		popts = append(popts, cliquetable.WithPropagator(linprop.New(rows, nDD)))
	}
	problem := cliquetable.NewProblem(inst, popts...)

	var ordering dd.Ordering
	switch cfg.Ordering {
	case OrderMinInState:
		ordering = cliquetable.NewMinInState(inst)
	case OrderRandMinInState:
		ordering = cliquetable.NewRandomMinInState(inst, cfg.OrderingProb, cfg.OrderingSeed)
	case OrderMinDegree:
		ordering = cliquetable.NewMinDegree(inst)
	default:
		ordering = dd.NewFixedOrdering(OrderIndex, dd.Identity(nDD))
	}
	opts := []dd.Option{dd.WithOrdering(ordering)}
	if data := problem.NodeData(); data != nil {
		opts = append(opts, dd.WithNodeData(data))
	}
	return &Plan{
		Problem:    problem,
		Options:    opts,
		Completion: cliquetable.DomainCompletionBound{Inst: inst},
		DDToVar:    ddToVar,
		Relaxed:    relaxed,
	}, true, nil
}

// RowSelector builds a row diagram over every row and clique. Set-packing
// rows are replaced by a clique cover of their conflict graph. Nothing is
// relaxed unless Config.AddAllRows is set.
type RowSelector struct{}

// Name implements Selector.
func (RowSelector) Name() string { return ModeRows }

// Plan implements Selector.
func (RowSelector) Plan(sub *Subproblem, fixed []int, cfg Config) (*Plan, bool, error) {
	n := sub.NumVars
	rows := append([]*linear.Row(nil), sub.Rows...)
	for _, c := range sub.Cliques {
		rows = append(rows, CliqueRow(c, n))
	}
	if !fixedRowsFeasible(rows, fixed) {
		return nil, false, nil
	}

	vars := mapset.NewThreadUnsafeSet[int]()
	var kept []*linear.Row
	for _, r := range rows {
		f := r.Fix(fixed)
		if f.Len() == 0 {
			continue
		}
		kept = append(kept, f)
		for _, v := range f.Ind {
			vars.Add(v)
		}
	}
	ddToVar, varToDD := index(vars, n)
	for i, r := range kept {
		kept[i] = r.Remap(varToDD)
	}
	kept = compressPacking(kept, len(ddToVar))
	inst, err := bp.NewInstance(len(ddToVar), kept, restrict(sub.Objective, ddToVar))
	if err != nil {
		return nil, false, err
	}

	ordering := dd.Ordering(bp.NewCuthillMcKee(inst))
	if cfg.Ordering == OrderIndex {
		ordering = dd.NewFixedOrdering(OrderIndex, dd.Identity(len(ddToVar)))
	}
	var relaxed []*linear.Row
	if cfg.AddAllRows {
		relaxed = rows
	}
	return &Plan{
		Problem:    bp.NewProblem(inst),
		Options:    []dd.Option{dd.WithOrdering(ordering)},
		Completion: bp.DomainCompletionBound{Inst: inst},
		DDToVar:    ddToVar,
		Relaxed:    relaxed,
	}, true, nil
}

// compressPacking replaces the set-packing rows by one row per clique of a
// cover of their conflict graph.
func compressPacking(rows []*linear.Row, n int) []*linear.Row {
	sp := bp.SetPackingGraph(rows, n)
	out := make([]*linear.Row, 0, len(rows))
	for i, r := range rows {
		if !sp.Used[i] {
			out = append(out, r)
		}
	}
	for _, c := range graph.CliqueCover(sp.Graph) {
		ind := make([]int, len(c))
		coeffs := make([]float64, len(c))
		for k, u := range c {
			ind[k] = sp.NodeToVar[u]
			coeffs[k] = 1
		}
		out = append(out, linear.NewRow(1, linear.LE, coeffs, ind))
	}
	return out
}

// fixByCliques extends fixed until no clique holds a true literal next to
// an open one. It returns false if a clique holds two true literals.
func fixByCliques(cliques [][]int, fixed []int, n int) bool {
	for changed := true; changed; {
		changed = false
		for _, c := range cliques {
			trueLit := -1
			for _, l := range c {
				if t, _ := literalTrue(l, n, fixed); t {
					if trueLit >= 0 {
						return false
					}
					trueLit = l
				}
			}
			if trueLit < 0 {
				continue
			}
			for _, l := range c {
				if _, isFixed := literalTrue(l, n, fixed); isFixed {
					continue
				}
				if l < n {
					fixed[l] = 0
				} else {
					fixed[l-n] = 1
				}
				changed = true
			}
		}
	}
	return true
}

func dedup(lits []int) []int {
	set := mapset.NewThreadUnsafeSet(lits...)
	out := set.ToSlice()
	sort.Ints(out)
	return out
}

// index numbers the variables of vars in increasing order.
func index(vars mapset.Set[int], n int) (sub, full []int) {
	sub = vars.ToSlice()
	sort.Ints(sub)
	full = make([]int, n)
	for v := range full {
		full[v] = -1
	}
	for i, v := range sub {
		full[v] = i
	}
	return sub, full
}

func restrict(obj []float64, subToVar []int) []float64 {
	out := make([]float64, len(subToVar))
	for i, v := range subToVar {
		out[i] = obj[v]
	}
	return out
}
