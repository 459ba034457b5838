package relax

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/gitrdm/ddbound/pkg/dd"
	"github.com/gitrdm/ddbound/pkg/lagrangian"
	"github.com/gitrdm/ddbound/pkg/linear"
)

// ErrSkipped is returned when the number of free variables is outside the
// configured range.
var ErrSkipped = errors.New("relax: bound skipped")

// safetyOffset is added to every finite bound.
const safetyOffset = 1e-6

// Result of a bound computation.
type Result struct {
	RunID string
	// Bound is a valid upper bound on the subproblem optimum, -Inf when
	// the subproblem is infeasible.
	Bound        float64
	DiagramBound float64
	ObjConstant  float64
	Infeasible   bool
	Exact        bool
	Width        int
	Free         int
	DiagramVars  int
	Relaxed      int
	FilteredArcs int
	// PrimalBound and PrimalSolution hold the best solution accepted by
	// the feasibility checker, or the subproblem's bound if none was.
	PrimalBound    float64
	PrimalSolution []int
	Lagrangian     *lagrangian.Result
	DiagramStats   dd.Stats
	Elapsed        time.Duration
}

// Bound computes a dual bound for sub. It returns ErrSkipped when the
// free variable thresholds of cfg exclude sub and ErrNoStructure when the
// selector finds nothing to build a diagram from.
func Bound(ctx context.Context, sub *Subproblem, cfg Config) (*Result, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	id := ksuid.New().String()
	log := ctxzap.Extract(ctx).With(zap.String("run_id", id))
	ctx = ctxzap.ToContext(ctx, log)

	n := sub.NumVars
	free := sub.NumFree()
	if free == 0 || free > cfg.freeThreshold(n) || (cfg.MinFree >= 0 && free < cfg.MinFree) {
		log.Debug("bound skipped", zap.Int("free", free), zap.Int("vars", n))
		return nil, ErrSkipped
	}

	res := &Result{RunID: id, Free: free, PrimalBound: sub.PrimalBound, Bound: math.Inf(-1)}
	defer func() { res.Elapsed = time.Since(start) }()

	fixed := sub.fixings()
	sel := SelectorFor(cfg)
	plan, ok, err := sel.Plan(sub, fixed, cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Debug("fixings infeasible")
		res.Infeasible = true
		return res, nil
	}
	res.ObjConstant = lagrangian.Value(sub.Objective, fixedValues(fixed))
	res.DiagramVars = len(plan.DDToVar)

	freeToVar, ddToFree := freeSpace(fixed, plan.DDToVar)
	inDD := make([]bool, n)
	for _, v := range plan.DDToVar {
		inDD[v] = true
	}
	// the diagram value misses the fixed part and at most the positive
	// weights of free variables it does not cover
	outside := res.ObjConstant
	for _, v := range freeToVar {
		if !inDD[v] && sub.Objective[v] > 0 {
			outside += sub.Objective[v]
		}
	}

	opts := append([]dd.Option{dd.WithWidth(cfg.Width), dd.WithLongArcs(cfg.LongArcs)}, plan.Options...)
	if cfg.DDTimeLimit > 0 {
		opts = append(opts, dd.WithTimeLimit(cfg.DDTimeLimit))
	}
	floor := math.Inf(-1)
	if cfg.PrimalPruning && !math.IsInf(sub.PrimalBound, -1) {
		opts = append(opts, dd.WithCompletionBound(plan.Completion), dd.WithPrimalPruning(sub.PrimalBound-outside))
		floor = sub.PrimalBound
	}
	if cfg.DualPruning && !math.IsInf(sub.DualCutoff, 1) {
		opts = append(opts, dd.WithCompletionBound(plan.Completion), dd.WithDualPruning(sub.DualCutoff-outside))
		floor = math.Max(floor, sub.DualCutoff)
	}

	solver := dd.NewSolver(plan.Problem, opts...)
	d, err := solver.Construct(ctx)
	res.DiagramStats = solver.Stats()
	if errors.Is(err, dd.ErrInfeasible) {
		res.finish(log, math.Inf(-1), floor)
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("relax: diagram construction: %w", err)
	}
	res.Exact = solver.FinalExact()
	res.Width = solver.FinalWidth()

	varToDD := make([]int, n)
	for v := range varToDD {
		varToDD[v] = -1
	}
	for i, v := range plan.DDToVar {
		varToDD[v] = i
	}
	if cfg.Filter {
		for _, r := range plan.Relaxed {
			for _, side := range r.Fix(fixed).Split() {
				res.FilteredArcs += d.Filter(diagramRow(side, varToDD))
			}
		}
	}

	checker := sub.Checker
	if checker == nil {
		checker = NewRowChecker(sub)
	}
	lift := func(o lagrangian.Oracle) lagrangian.Oracle {
		return lagrangian.NewSubspaceRestricted(
			lagrangian.NewSubspaceRelaxed(o, ddToFree, len(freeToVar)), freeToVar, fixed)
	}
	primal := sub.PrimalBound
	harvest := func(fc *lagrangian.FeasibilityCheck) {
		if v, x := fc.Primal(); x != nil && v > primal {
			primal = v
			res.PrimalBound = v
			res.PrimalSolution = x
		}
	}

	if cfg.GeneratePrimalNRP {
		nrp := lagrangian.NewFeasibilityCheck(lift(lagrangian.NonRelaxedPathOracle(d)), checker, sub.Objective, primal)
		nrp.Solve(sub.Objective)
		harvest(nrp)
	}

	oracle := lift(lagrangian.DiagramOracle{D: d, Relaxed: true})
	var fc *lagrangian.FeasibilityCheck
	if cfg.GeneratePrimal {
		fc = lagrangian.NewFeasibilityCheck(oracle, checker, sub.Objective, primal)
		oracle = fc
	}
	ddBound, x := oracle.Solve(sub.Objective)
	if fc != nil {
		harvest(fc)
	}
	res.DiagramBound = ddBound
	if x == nil {
		res.finish(log, math.Inf(-1), floor)
		return res, nil
	}
	log.Debug("diagram bound",
		zap.Float64("bound", ddBound),
		zap.Int("width", res.Width),
		zap.Bool("exact", res.Exact),
		zap.Int("dd_vars", res.DiagramVars),
	)

	constrs := lagrangian.ExtractConstraints(plan.Relaxed, fixed, true)
	if cfg.RemoveRedundant {
		kept := constrs[:0]
		for _, c := range constrs {
			if !ConstraintRedundant(d, c, varToDD) {
				kept = append(kept, c)
			}
		}
		constrs = kept
	}
	res.Relaxed = len(constrs)

	switch {
	case len(constrs) == 0, cfg.LagTimeLimit == 0, cfg.LagIterLimit == 0:
		res.finish(log, ddBound, floor)
		return res, nil
	case linear.Less(ddBound, primal):
		log.Debug("diagram bound prunes; lagrangian skipped")
		res.finish(log, ddBound, floor)
		return res, nil
	}

	lsub := lagrangian.NewSubproblem(n, sub.Objective, constrs, oracle)
	params := lagrangian.DefaultParams()
	params.ConvergenceTol = cfg.ConvergenceTol
	params.MaxOracleCalls = cfg.LagIterLimit
	if cfg.LagTimeLimit > 0 {
		params.TimeLimit = cfg.LagTimeLimit
	}
	params.ObjLimit = primal
	params.PrimalBound = primal

	var lr *lagrangian.Result
	if cfg.Master == MasterSubgradient {
		lr, err = lagrangian.NewRelaxation(lagrangian.NewSubgradientMaster(lsub), lsub).Solve(ctx, params)
	} else {
		lr, err = lagrangian.NewBundleRelaxation(lsub).Solve(ctx, params)
	}
	if err != nil {
		return nil, err
	}
	res.Lagrangian = lr
	if fc != nil {
		harvest(fc)
	}
	res.finish(log, math.Min(ddBound, lr.DualBound), floor)
	return res, nil
}

// finish records the bound. Pruned nodes only hide solutions no better
// than floor, so the bound never drops below it.
func (r *Result) finish(log *zap.Logger, bound, floor float64) {
	if bound <= floor {
		if !math.IsInf(floor, -1) {
			log.Warn("bound reached the pruning cutoff", zap.Float64("bound", bound), zap.Float64("cutoff", floor))
		}
		bound = floor
	}
	r.Infeasible = math.IsInf(bound, -1)
	if !r.Infeasible {
		bound += safetyOffset
	}
	r.Bound = bound
	log.Info("bound computed",
		zap.Float64("bound", r.Bound),
		zap.Float64("dd_bound", r.DiagramBound),
		zap.Bool("infeasible", r.Infeasible),
		zap.Int("relaxed", r.Relaxed),
		zap.Int("free", r.Free),
	)
}

// ConstraintRedundant reports whether every path of d satisfies c.
// Variables outside the diagram (varToDD[v] < 0) take their worst value.
func ConstraintRedundant(d *dd.Diagram, c lagrangian.Constraint, varToDD []int) bool {
	sides := []float64{1, -1}
	switch c.Sense {
	case linear.LE:
		sides = sides[:1]
	case linear.GE:
		sides = sides[1:]
	}
	for _, sign := range sides {
		w := make([]float64, d.NumVars())
		worst := 0.0
		for k, v := range c.Ind {
			a := sign * c.Coeffs[k]
			if i := varToDD[v]; i >= 0 {
				w[i] += a
			} else if a > 0 {
				worst += a
			}
		}
		best, x := d.OptimalValue(w, true)
		if x != nil && !linear.LessEq(best+worst, sign*c.Rhs) {
			return false
		}
	}
	return true
}

// diagramRow rewrites a one-sided row over diagram variables. Variables
// outside the diagram take their most favorable value.
func diagramRow(r *linear.Row, varToDD []int) *linear.Row {
	out := &linear.Row{Rhs: r.Rhs, Sense: r.Sense, Name: r.Name}
	for k, v := range r.Ind {
		c := r.Coeffs[k]
		if i := varToDD[v]; i >= 0 {
			out.Ind = append(out.Ind, i)
			out.Coeffs = append(out.Coeffs, c)
			continue
		}
		if (r.Sense == linear.LE && c < 0) || (r.Sense == linear.GE && c > 0) {
			out.Rhs -= c
		}
	}
	return out
}

// freeSpace lists the free variables and maps diagram variables into
// that list.
func freeSpace(fixed, ddToVar []int) (freeToVar, ddToFree []int) {
	pos := make([]int, len(fixed))
	for v, f := range fixed {
		if f == linear.Unfixed {
			pos[v] = len(freeToVar)
			freeToVar = append(freeToVar, v)
		}
	}
	ddToFree = make([]int, len(ddToVar))
	for i, v := range ddToVar {
		ddToFree[i] = pos[v]
	}
	return freeToVar, ddToFree
}

func fixedValues(fixed []int) []int {
	x := make([]int, len(fixed))
	for v, f := range fixed {
		if f == 1 {
			x[v] = 1
		}
	}
	return x
}

// RowChecker accepts solutions that respect the fixings, rows and cliques
// of a subproblem.
type RowChecker struct {
	sub   *Subproblem
	rows  []*linear.Row
	Best  float64
	BestX []int
}

// NewRowChecker returns a checker for sub.
func NewRowChecker(sub *Subproblem) *RowChecker {
	rows := append([]*linear.Row(nil), sub.Rows...)
	for _, c := range sub.Cliques {
		rows = append(rows, CliqueRow(c, sub.NumVars))
	}
	return &RowChecker{sub: sub, rows: rows, Best: math.Inf(-1)}
}

// CheckFeasibilityAndApply implements lagrangian.FeasibilityChecker.
func (c *RowChecker) CheckFeasibilityAndApply(x []int, value float64) bool {
	for v, f := range c.sub.Fixed {
		if f != linear.Unfixed && x[v] != f {
			return false
		}
	}
	for _, r := range c.rows {
		if !r.Satisfied(x) {
			return false
		}
	}
	if value > c.Best {
		c.Best = value
		c.BestX = append([]int(nil), x...)
	}
	return true
}
