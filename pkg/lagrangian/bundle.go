package lagrangian

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	defaultBundleSize = 50
	seriousFraction   = 0.1
	minWeight         = 1e-4
	maxWeight         = 1e4
	qpIters           = 500
	qpTol             = 1e-10
)

// cut is the linearization alpha + g.lambda of the dual function.
type cut struct {
	alpha float64
	g     []float64
	age   int
}

// BundleSolver minimizes a convex piecewise-linear function over a box with
// a proximal bundle method. Each step minimizes the cutting-plane model
// plus (u/2)|lambda - center|^2 and the weight u adapts to the outcome.
type BundleSolver struct {
	lower, upper []float64
	center       []float64
	fcenter      float64
	weight       float64
	cuts         []cut
	maxCuts      int
}

// NewBundleSolver returns a solver over the box [lower, upper].
func NewBundleSolver(lower, upper []float64) *BundleSolver {
	return &BundleSolver{
		lower:   lower,
		upper:   upper,
		center:  make([]float64, len(lower)),
		fcenter: math.Inf(1),
		weight:  1,
		maxCuts: defaultBundleSize,
	}
}

// Center returns the stability center.
func (b *BundleSolver) Center() []float64 { return b.center }

// AddCut records that f(at) = val with subgradient g.
func (b *BundleSolver) AddCut(at []float64, val float64, g []float64) {
	alpha := val
	for i := range g {
		alpha -= g[i] * at[i]
	}
	if len(b.cuts) >= b.maxCuts {
		oldest := 0
		for i, c := range b.cuts {
			if c.age > b.cuts[oldest].age {
				oldest = i
			}
		}
		b.cuts = append(b.cuts[:oldest], b.cuts[oldest+1:]...)
	}
	for i := range b.cuts {
		b.cuts[i].age++
	}
	b.cuts = append(b.cuts, cut{alpha: alpha, g: append([]float64(nil), g...)})
}

// Model returns the cutting-plane model at lambda.
func (b *BundleSolver) Model(lambda []float64) float64 {
	m := math.Inf(-1)
	for _, c := range b.cuts {
		v := c.alpha
		for i, gi := range c.g {
			v += gi * lambda[i]
		}
		if v > m {
			m = v
		}
	}
	return m
}

// Step returns the minimizer of the proximal model and the model value
// there. The quadratic program is solved in its dual over the simplex of
// cut weights by projected gradient ascent.
func (b *BundleSolver) Step() ([]float64, float64) {
	k := len(b.cuts)
	w := make([]float64, k)
	for i := range w {
		w[i] = 1 / float64(k)
	}
	norm := 0.0
	for _, c := range b.cuts {
		for _, gi := range c.g {
			norm += gi * gi
		}
	}
	step := b.weight / math.Max(norm, qpTol)

	lambda := make([]float64, len(b.center))
	grad := make([]float64, k)
	for it := 0; it < qpIters; it++ {
		b.lambdaOf(w, lambda)
		for j, c := range b.cuts {
			grad[j] = c.alpha
			for i, gi := range c.g {
				grad[j] += gi * lambda[i]
			}
		}
		moved := 0.0
		next := make([]float64, k)
		for j := range w {
			next[j] = w[j] + step*grad[j]
		}
		projectSimplex(next)
		for j := range w {
			moved += math.Abs(next[j] - w[j])
		}
		w = next
		if moved < qpTol {
			break
		}
	}
	b.lambdaOf(w, lambda)
	return lambda, b.Model(lambda)
}

// lambdaOf sets lambda to the box projection of center - (1/u) G^T w.
func (b *BundleSolver) lambdaOf(w, lambda []float64) {
	copy(lambda, b.center)
	for j, c := range b.cuts {
		for i, gi := range c.g {
			lambda[i] -= w[j] * gi / b.weight
		}
	}
	for i := range lambda {
		lambda[i] = math.Min(math.Max(lambda[i], b.lower[i]), b.upper[i])
	}
}

// Accept moves the center to lambda when its value val decreased f by at
// least a fraction of the predicted decrease, and adapts the weight.
func (b *BundleSolver) Accept(lambda []float64, val, predicted float64) bool {
	if b.fcenter-val >= seriousFraction*predicted {
		if b.fcenter-val >= 0.5*predicted {
			b.weight = math.Max(b.weight/2, minWeight)
		}
		copy(b.center, lambda)
		b.fcenter = val
		return true
	}
	b.weight = math.Min(b.weight*1.5, maxWeight)
	return false
}

// projectSimplex projects w onto {w >= 0, sum w = 1}.
func projectSimplex(w []float64) {
	u := append([]float64(nil), w...)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))
	sum, theta := 0.0, 0.0
	for j, uj := range u {
		sum += uj
		t := (sum - 1) / float64(j+1)
		if uj-t > 0 {
			theta = t
		}
	}
	for j := range w {
		w[j] = math.Max(w[j]-theta, 0)
	}
}

// BundleRelaxation minimizes the dual function of a Subproblem with a
// BundleSolver.
type BundleRelaxation struct {
	sub    *Subproblem
	solver *BundleSolver
}

// NewBundleRelaxation returns a relaxation of sub over the sign domains of
// its constraints.
func NewBundleRelaxation(sub *Subproblem) *BundleRelaxation {
	m := len(sub.Constraints())
	lower, upper := make([]float64, m), make([]float64, m)
	for i, c := range sub.Constraints() {
		lower[i] = c.Project(math.Inf(-1))
		upper[i] = c.Project(math.Inf(1))
	}
	return &BundleRelaxation{sub: sub, solver: NewBundleSolver(lower, upper)}
}

// Solve runs the bundle method from lambda = 0. It stops when the
// predicted decrease or the gap to the best known primal value is within
// tolerance, when the bound reaches ObjLimit, or on a limit.
func (r *BundleRelaxation) Solve(ctx context.Context, p Params) (*Result, error) {
	m := len(r.sub.Constraints())
	if m == 0 {
		return nil, ErrNoConstraints
	}
	log := ctxzap.Extract(ctx)
	lim := newLimits(p)
	res := &Result{DualBound: math.Inf(1), PrimalBound: p.PrimalBound, Lambda: make([]float64, m)}
	b := r.solver

	eval := func(lambda []float64) (float64, bool) {
		start := time.Now()
		val, x := r.sub.Solve(lambda)
		res.SubproblemTime += time.Since(start)
		res.OracleCalls++
		if x == nil {
			res.DualBound = math.Inf(-1)
			res.Termination = Infeasible
			return val, false
		}
		if val < res.DualBound {
			res.DualBound = val
			copy(res.Lambda, lambda)
		}
		b.AddCut(lambda, val, r.sub.Subgradient(x))
		primalOf(r.sub, res)
		return val, true
	}

	if t, stop := lim.check(ctx, res); stop {
		res.Termination = t
		return res, nil
	}
	val, ok := eval(b.center)
	if !ok {
		return res, nil
	}
	b.fcenter = val

	for {
		if res.DualBound <= p.ObjLimit {
			res.Termination = ObjectiveLimit
			break
		}
		if Gap(res.PrimalBound, res.DualBound) <= p.ConvergenceTol {
			res.Termination = Converged
			break
		}
		if t, stop := lim.check(ctx, res); stop {
			res.Termination = t
			break
		}
		res.Iterations++

		start := time.Now()
		cand, model := b.Step()
		res.MasterTime += time.Since(start)
		predicted := b.fcenter - model
		if predicted <= p.ConvergenceTol*(1+math.Abs(b.fcenter)) {
			res.Termination = Converged
			break
		}

		val, ok := eval(cand)
		if !ok {
			break
		}
		serious := b.Accept(cand, val, predicted)
		log.Debug("bundle iteration",
			zap.Int("iter", res.Iterations),
			zap.Float64("dual", val),
			zap.Float64("center", b.fcenter),
			zap.Float64("predicted", predicted),
			zap.Float64("weight", b.weight),
			zap.Bool("serious", serious),
		)
	}

	log.Info("bundle finished",
		zap.Stringer("termination", res.Termination),
		zap.Float64("bound", res.DualBound),
		zap.Int("iters", res.Iterations),
		zap.Int("oracle_calls", res.OracleCalls),
		zap.Duration("master", res.MasterTime),
		zap.Duration("subproblem", res.SubproblemTime),
	)
	return res, nil
}
