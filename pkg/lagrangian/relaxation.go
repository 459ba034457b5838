package lagrangian

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// ErrNoConstraints is returned when a relaxation has nothing to relax.
var ErrNoConstraints = errors.New("lagrangian: no relaxed constraints")

// Termination says why a relaxation stopped.
type Termination int

const (
	Converged Termination = iota
	IterationLimit
	OracleLimit
	TimeLimit
	ObjectiveLimit
	Infeasible
	Stopped
)

func (t Termination) String() string {
	switch t {
	case Converged:
		return "converged"
	case IterationLimit:
		return "iteration_limit"
	case OracleLimit:
		return "oracle_limit"
	case TimeLimit:
		return "time_limit"
	case ObjectiveLimit:
		return "objective_limit"
	case Infeasible:
		return "infeasible"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Params bounds a relaxation run. Negative limits mean unlimited and zero
// limits stop before the first oracle call, so start from DefaultParams.
type Params struct {
	ConvergenceTol float64
	MaxIters       int
	MaxOracleCalls int
	TimeLimit      time.Duration
	// ObjLimit stops the run once the dual bound is at or below it.
	ObjLimit float64
	// PrimalBound is the best known feasible value, used for the gap.
	PrimalBound float64
}

// DefaultParams returns a tolerance of 1e-4 and no limits.
func DefaultParams() Params {
	return Params{
		ConvergenceTol: 1e-4,
		MaxIters:       -1,
		MaxOracleCalls: -1,
		TimeLimit:      -1,
		ObjLimit:       math.Inf(-1),
		PrimalBound:    math.Inf(-1),
	}
}

// Result of a relaxation run. DualBound is the smallest dual value seen
// and is a valid upper bound whatever the termination.
type Result struct {
	DualBound      float64
	Lambda         []float64
	PrimalBound    float64
	PrimalSolution []int
	Iterations     int
	OracleCalls    int
	MasterTime     time.Duration
	SubproblemTime time.Duration
	Termination    Termination
}

// Gap returns |primal - dual| / (1 + |dual|).
func Gap(primal, dual float64) float64 {
	if math.IsInf(primal, -1) || math.IsInf(dual, 1) {
		return math.Inf(1)
	}
	return math.Abs(primal-dual) / (1 + math.Abs(dual))
}

// Relaxation drives a Master against a Subproblem.
type Relaxation struct {
	master Master
	sub    *Subproblem
}

// NewRelaxation returns a relaxation of sub driven by master.
func NewRelaxation(master Master, sub *Subproblem) *Relaxation {
	return &Relaxation{master: master, sub: sub}
}

type limits struct {
	p        Params
	deadline time.Time
}

func newLimits(p Params) limits {
	l := limits{p: p}
	if p.TimeLimit >= 0 {
		l.deadline = time.Now().Add(p.TimeLimit)
	}
	return l
}

// check returns the termination that applies before another oracle call.
func (l limits) check(ctx context.Context, res *Result) (Termination, bool) {
	switch {
	case ctx.Err() != nil:
		return Stopped, true
	case l.p.MaxIters >= 0 && res.Iterations >= l.p.MaxIters:
		return IterationLimit, true
	case l.p.MaxOracleCalls >= 0 && res.OracleCalls >= l.p.MaxOracleCalls:
		return OracleLimit, true
	case !l.deadline.IsZero() && !time.Now().Before(l.deadline):
		return TimeLimit, true
	}
	return 0, false
}

func primalOf(sub *Subproblem, res *Result) {
	if ps, ok := sub.Oracle().(PrimalSource); ok {
		if v, x := ps.Primal(); x != nil && v > res.PrimalBound {
			res.PrimalBound = v
			res.PrimalSolution = x
		}
	}
}

// Solve runs the relaxation from lambda = 0 until the gap to the best
// known primal value is within tolerance or a limit is reached. A
// cancelled context ends the run with Stopped and a valid partial result.
func (r *Relaxation) Solve(ctx context.Context, p Params) (*Result, error) {
	m := len(r.sub.Constraints())
	if m == 0 {
		return nil, ErrNoConstraints
	}
	log := ctxzap.Extract(ctx)
	lim := newLimits(p)
	lambda := make([]float64, m)
	res := &Result{DualBound: math.Inf(1), PrimalBound: p.PrimalBound, Lambda: make([]float64, m)}

	for {
		if t, stop := lim.check(ctx, res); stop {
			res.Termination = t
			break
		}

		start := time.Now()
		val, x := r.sub.Solve(lambda)
		res.SubproblemTime += time.Since(start)
		res.OracleCalls++
		res.Iterations++
		if x == nil {
			res.DualBound = math.Inf(-1)
			res.Termination = Infeasible
			break
		}
		if val < res.DualBound {
			res.DualBound = val
			copy(res.Lambda, lambda)
		}

		start = time.Now()
		r.master.Update(x, val, lambda)
		primal := r.master.Solve(lambda)
		res.MasterTime += time.Since(start)

		if primal > res.PrimalBound {
			res.PrimalBound = primal
		}
		primalOf(r.sub, res)
		gap := Gap(res.PrimalBound, res.DualBound)

		log.Debug("lagrangian iteration",
			zap.Int("iter", res.Iterations),
			zap.Float64("dual", val),
			zap.Float64("best", res.DualBound),
			zap.Float64("primal", res.PrimalBound),
			zap.Float64("gap", gap),
		)
		if gap <= p.ConvergenceTol {
			res.Termination = Converged
			break
		}
		if res.DualBound <= p.ObjLimit {
			res.Termination = ObjectiveLimit
			break
		}
	}

	log.Info("lagrangian finished",
		zap.Stringer("termination", res.Termination),
		zap.Float64("bound", res.DualBound),
		zap.Int("iters", res.Iterations),
		zap.Duration("master", res.MasterTime),
		zap.Duration("subproblem", res.SubproblemTime),
	)
	return res, nil
}
