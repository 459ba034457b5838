package lagrangian

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/ddbound/pkg/linear"
)

// pairProblem is max x0 + x1 subject to x0 + x1 <= 1 with the constraint
// relaxed. The dual is max(2 - lambda, lambda), minimized at lambda = 1.
func pairProblem(oracle Oracle) *Subproblem {
	c := NewConstraint([]int{0, 1}, []float64{1, 1}, 1, linear.LE)
	return NewSubproblem(2, []float64{1, 1}, []Constraint{c}, oracle)
}

func TestSubgradientClosedForm(t *testing.T) {
	sub := pairProblem(ZeroOneOracle{})
	p := DefaultParams()
	p.PrimalBound = 1
	p.MaxIters = 50

	res, err := NewRelaxation(NewSubgradientMaster(sub), sub).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Termination)
	assert.InDelta(t, 1.0, res.DualBound, 1e-9)
	assert.InDelta(t, 1.0, res.Lambda[0], 1e-9)
	// lambda = 0 gives x = (1,1) and a unit step lands on the optimum
	assert.Equal(t, 2, res.Iterations)
}

func TestBundleClosedForm(t *testing.T) {
	sub := pairProblem(ZeroOneOracle{})
	p := DefaultParams()
	p.MaxIters = 50

	res, err := NewBundleRelaxation(sub).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Termination)
	assert.InDelta(t, 1.0, res.DualBound, 1e-6)
	assert.LessOrEqual(t, res.Iterations, 5)
}

func TestObjectiveLimit(t *testing.T) {
	sub := pairProblem(ZeroOneOracle{})
	p := DefaultParams()
	p.ObjLimit = 1.5
	p.MaxIters = 50

	res, err := NewBundleRelaxation(sub).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, ObjectiveLimit, res.Termination)
	assert.LessOrEqual(t, res.DualBound, 1.5)
}

func TestLimits(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Params)
		ctx   func() context.Context
		want  Termination
		calls int
	}{
		{"iterations", func(p *Params) { p.MaxIters = 1 }, context.Background, IterationLimit, 1},
		{"oracle", func(p *Params) { p.MaxOracleCalls = 2 }, context.Background, OracleLimit, 2},
		{"time", func(p *Params) { p.TimeLimit = 0 }, context.Background, TimeLimit, 0},
		{"cancelled", func(*Params) {}, func() context.Context {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx
		}, Stopped, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.edit(&p)
			sub := pairProblem(ZeroOneOracle{})
			res, err := NewRelaxation(NewSubgradientMaster(sub), sub).Solve(tt.ctx(), p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Termination)
			assert.Equal(t, tt.calls, res.OracleCalls)
		})
	}
}

func TestNoConstraints(t *testing.T) {
	sub := NewSubproblem(1, []float64{1}, nil, ZeroOneOracle{})
	_, err := NewRelaxation(NewSubgradientMaster(sub), sub).Solve(context.Background(), DefaultParams())
	assert.ErrorIs(t, err, ErrNoConstraints)
	_, err = NewBundleRelaxation(sub).Solve(context.Background(), DefaultParams())
	assert.ErrorIs(t, err, ErrNoConstraints)
}

func TestInfeasibleOracle(t *testing.T) {
	empty := OracleFunc(func([]float64) (float64, []int) { return math.Inf(-1), nil })
	sub := pairProblem(empty)
	res, err := NewRelaxation(NewSubgradientMaster(sub), sub).Solve(context.Background(), DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Termination)
	assert.True(t, math.IsInf(res.DualBound, -1))

	res, err = NewBundleRelaxation(sub).Solve(context.Background(), DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Termination)
}

// enumerate returns an oracle maximizing over the points that satisfy
// every row in kept.
func enumerate(n int, kept []*linear.Row) Oracle {
	return OracleFunc(func(obj []float64) (float64, []int) {
		best, bestX := math.Inf(-1), []int(nil)
		x := make([]int, n)
		for mask := 0; mask < 1<<n; mask++ {
			for i := range x {
				x[i] = (mask >> i) & 1
			}
			ok := true
			for _, r := range kept {
				ok = ok && r.Satisfied(x)
			}
			if v := Value(obj, x); ok && v > best {
				best, bestX = v, append([]int(nil), x...)
			}
		}
		return best, bestX
	})
}

func TestDualBoundsAreValid(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 40; trial++ {
		n := 3 + rng.Intn(5)
		var rows []*linear.Row
		for r := 0; r < 1+rng.Intn(4); r++ {
			var coeffs []float64
			var ind []int
			for v := 0; v < n; v++ {
				if rng.Intn(2) == 0 {
					coeffs = append(coeffs, float64(rng.Intn(5)-1))
					ind = append(ind, v)
				}
			}
			sense := []linear.Sense{linear.LE, linear.GE, linear.EQ}[rng.Intn(3)]
			rows = append(rows, linear.NewRow(float64(rng.Intn(4)), sense, coeffs, ind))
		}
		obj := make([]float64, n)
		for i := range obj {
			obj[i] = float64(rng.Intn(9) - 3)
		}

		want, _ := enumerate(n, rows).Solve(obj)
		if math.IsInf(want, -1) {
			continue
		}
		split := rng.Intn(len(rows) + 1)
		kept, relaxed := rows[:split], rows[split:]
		constrs := ExtractConstraints(relaxed, nil, false)
		if len(constrs) == 0 {
			continue
		}

		p := DefaultParams()
		p.MaxIters = 40
		sub := NewSubproblem(n, obj, constrs, enumerate(n, kept))
		res, err := NewRelaxation(NewSubgradientMaster(sub), sub).Solve(context.Background(), p)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.DualBound, want-1e-6, "subgradient trial %d", trial)

		sub = NewSubproblem(n, obj, constrs, enumerate(n, kept))
		res, err = NewBundleRelaxation(sub).Solve(context.Background(), p)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.DualBound, want-1e-6, "bundle trial %d", trial)
		for i, c := range constrs {
			assert.Equal(t, res.Lambda[i], c.Project(res.Lambda[i]), "multiplier %d outside its sign domain", i)
		}
	}
}

func TestSubgradientStalls(t *testing.T) {
	sub := pairProblem(ZeroOneOracle{})
	m := NewSubgradientMaster(sub)
	lambda := []float64{0}
	m.Update([]int{1, 1}, 2, lambda)
	for i := 0; i < maxStalls-1; i++ {
		m.Update([]int{1, 1}, 2, lambda)
	}
	assert.Equal(t, initialStepScale, m.Scale())
	m.Update([]int{1, 1}, 3, lambda)
	assert.Equal(t, initialStepScale/2, m.Scale())
}

func TestSubgradientStepRule(t *testing.T) {
	sub := pairProblem(ZeroOneOracle{})
	m := NewSubgradientMaster(sub)
	lambda := []float64{0}

	steps := []struct {
		x    []int
		val  float64
		want float64
	}{
		{[]int{1, 1}, 2, 1},              // subgradient -1, step 1
		{[]int{0, 0}, 1, 0.5},            // subgradient 1, step 1/2
		{[]int{1, 1}, 1.5, 0.5 + 1/3.0}, // subgradient -1, step 1/3
	}
	for i, st := range steps {
		m.Update(st.x, st.val, lambda)
		assert.Equal(t, math.Inf(-1), m.Solve(lambda))
		assert.InDelta(t, st.want, lambda[0], 1e-12, "iteration %d", i)
	}
	assert.Equal(t, 1.0, m.Scale())
}

func TestSubspaceOracles(t *testing.T) {
	obj := []float64{2, -1, -3, 5}

	val, x := NewSubspaceRelaxed(ZeroOneOracle{}, []int{1, 3}, 4).Solve(obj)
	assert.Equal(t, 7.0, val)
	assert.Empty(t, cmp.Diff([]int{1, 0, 0, 1}, x))

	val, x = NewSubspaceRestricted(ZeroOneOracle{}, []int{1, 3}, []int{1, 0, 1, 0}).Solve(obj)
	assert.Equal(t, 4.0, val)
	assert.Empty(t, cmp.Diff([]int{1, 0, 1, 1}, x))
}

type rowChecker struct {
	row      *linear.Row
	accepted []float64
}

func (c *rowChecker) CheckFeasibilityAndApply(x []int, value float64) bool {
	if !c.row.Satisfied(x) {
		return false
	}
	c.accepted = append(c.accepted, value)
	return true
}

func TestFeasibilityCheck(t *testing.T) {
	checker := &rowChecker{row: linear.NewRow(1, linear.LE, []float64{1, 1}, []int{0, 1})}
	obj := []float64{3, 1}
	fc := NewFeasibilityCheck(ZeroOneOracle{}, checker, obj, math.Inf(-1))

	fc.Solve([]float64{1, 1})
	v, x := fc.Primal()
	assert.True(t, math.IsInf(v, -1), "x0 + x1 = 2 violates the row")
	assert.Nil(t, x)

	fc.Solve([]float64{1, -1})
	v, x = fc.Primal()
	assert.Equal(t, 3.0, v)
	assert.Equal(t, []int{1, 0}, x)

	fc.Solve([]float64{-1, 1})
	v, _ = fc.Primal()
	assert.Equal(t, 3.0, v, "worse solutions are not offered")
	assert.Equal(t, []float64{3}, checker.accepted)
}

func TestHarvestedPrimalClosesGap(t *testing.T) {
	checker := &rowChecker{row: linear.NewRow(1, linear.LE, []float64{1, 1}, []int{0, 1})}
	obj := []float64{1, 0}
	fc := NewFeasibilityCheck(ZeroOneOracle{}, checker, obj, math.Inf(-1))
	c := NewConstraint([]int{0, 1}, []float64{1, 1}, 1, linear.LE)
	sub := NewSubproblem(2, obj, []Constraint{c}, fc)

	p := DefaultParams()
	p.MaxIters = 20
	res, err := NewRelaxation(NewSubgradientMaster(sub), sub).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Termination)
	assert.InDelta(t, 1.0, res.DualBound, 1e-9)
	assert.Equal(t, 1.0, res.PrimalBound)
	assert.Equal(t, []int{1, 0}, res.PrimalSolution)
}

func TestExtractConstraints(t *testing.T) {
	rows := []*linear.Row{
		linear.NewRow(1, linear.LE, []float64{1, 1, 1}, []int{0, 1, 2}),
		linear.NewRow(5, linear.LE, []float64{1, 1}, []int{1, 2}),
		linear.NewRow(1, linear.GE, []float64{1, -1}, []int{0, 2}),
	}
	fixed := []int{1, linear.Unfixed, linear.Unfixed}

	got := ExtractConstraints(rows, fixed, true)
	want := []Constraint{
		{Ind: []int{1, 2}, Coeffs: []float64{1, 1}, Rhs: 0, Sense: linear.LE},
		{Ind: []int{2}, Coeffs: []float64{-1}, Rhs: 0, Sense: linear.GE},
	}
	assert.Empty(t, cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)))

	assert.Len(t, ExtractConstraints(rows, nil, false), 3)
}

func TestProjectSimplex(t *testing.T) {
	tests := []struct {
		in, want []float64
	}{
		{[]float64{0.5, 0.5}, []float64{0.5, 0.5}},
		{[]float64{2, 0}, []float64{1, 0}},
		{[]float64{1, 1, -5}, []float64{0.5, 0.5, 0}},
		{[]float64{0, 0, 0, 0}, []float64{0.25, 0.25, 0.25, 0.25}},
	}
	for _, tt := range tests {
		w := append([]float64(nil), tt.in...)
		projectSimplex(w)
		assert.Empty(t, cmp.Diff(tt.want, w, cmpopts.EquateApprox(0, 1e-12)), "in=%v", tt.in)
	}
}
