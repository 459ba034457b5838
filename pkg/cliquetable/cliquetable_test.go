package cliquetable

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/ddbound/pkg/dd"
	"github.com/gitrdm/ddbound/pkg/intset"
	"github.com/gitrdm/ddbound/pkg/linear"
	"github.com/gitrdm/ddbound/pkg/linprop"
)

func bruteForce(inst *Instance, rows []*linear.Row) float64 {
	n := inst.NumVars()
	best := math.Inf(-1)
	x := make([]int, n)
	for mask := 0; mask < 1<<n; mask++ {
		val := 0.0
		for i := range x {
			x[i] = (mask >> i) & 1
			val += float64(x[i]) * inst.Weights()[i]
		}
		if !inst.Feasible(x) {
			continue
		}
		ok := true
		for _, r := range rows {
			ok = ok && r.Satisfied(x)
		}
		if ok && val > best {
			best = val
		}
	}
	return best
}

func randomInstance(rng *rand.Rand, n int, negated bool, transitive bool) *Instance {
	b := NewBuilder(n)
	for k := 0; k < n+rng.Intn(2*n); k++ {
		span := n
		if negated {
			span = 2 * n
		}
		a, c := rng.Intn(span), rng.Intn(span)
		if a == c || c == a+n || a == c+n {
			continue
		}
		b.AddConflict(a, c)
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = float64(rng.Intn(13) - 4)
	}
	b.SetWeights(w)
	return b.Build(transitive)
}

func setPacking() *Instance {
	b := NewBuilder(5)
	require := func(ok bool) {
		if !ok {
			panic("row not in clique-table form")
		}
	}
	require(b.AddRow(linear.NewRow(1, linear.LE, []float64{1, 1}, []int{0, 1})))
	require(b.AddRow(linear.NewRow(1, linear.LE, []float64{1, 1, 1}, []int{1, 2, 3})))
	b.SetWeights([]float64{3, 2, 4, 1, 5})
	return b.Build(false)
}

func TestSetPackingScenario(t *testing.T) {
	inst := setPacking()
	require.True(t, inst.NonnegatedOnly())
	assert.Equal(t, 4, inst.NumEdges())

	for _, w := range []int{dd.Exact, 2, 4} {
		d, err := dd.NewSolver(NewProblem(inst), dd.WithWidth(w)).Construct(context.Background())
		require.NoError(t, err)
		assert.True(t, d.Exact(), "width %d", w)
		got, x := d.OptimalValue(inst.Weights(), true)
		assert.Equal(t, 12.0, got)
		assert.Empty(t, cmp.Diff([]int{1, 0, 1, 0, 1}, x))
	}

	d, err := dd.NewSolver(NewProblem(inst), dd.WithWidth(1)).Construct(context.Background())
	require.NoError(t, err)
	assert.False(t, d.Exact())
	got, _ := d.OptimalValue(inst.Weights(), true)
	assert.GreaterOrEqual(t, got, 12.0)
}

func TestTransitiveMask(t *testing.T) {
	// x0 forces x1, and x1 excludes x2, so x0 excludes x2
	b := NewBuilder(3)
	b.AddConflict(0, 1+3)
	b.AddConflict(1, 2)

	plain := b.Build(false)
	assert.True(t, plain.Mask(0).Contains(2))
	assert.False(t, plain.Adj(0).Contains(2))

	closed := b.Build(true)
	assert.False(t, closed.Mask(0).Contains(2))
	assert.True(t, closed.Mask(0).Contains(1))
	assert.False(t, closed.Mask(0).Contains(0))

	// x2 forces not x1, which excludes x0
	assert.True(t, plain.Mask(2).Contains(0))
	assert.False(t, closed.Mask(2).Contains(0))
}

func TestTransitiveMaskCycle(t *testing.T) {
	// x0 forces x1, x1 forces x2, x2 forces x0, and x1 excludes x3
	const n = 4
	b := NewBuilder(n)
	b.AddConflict(0, 1+n)
	b.AddConflict(1, 2+n)
	b.AddConflict(2, 0+n)
	b.AddConflict(1, 3)
	plain, closed := b.Build(false), b.Build(true)

	tests := []struct {
		lit   int
		plain []int
		want  []int
	}{
		{0, []int{1, 2, 3, 6, 7}, []int{1, 2, 7}},
		{1, []int{0, 2, 4, 7}, []int{0, 2, 7}},
		{2, []int{0, 1, 3, 5, 7}, []int{0, 1, 7}},
	}
	for _, tt := range tests {
		assert.Empty(t, cmp.Diff(tt.plain, plain.Mask(tt.lit).ToSlice()), "plain mask of %d", tt.lit)
		assert.Empty(t, cmp.Diff(tt.want, closed.Mask(tt.lit).ToSlice()), "closed mask of %d", tt.lit)
	}
}

func TestTransitionDetectsEmptyVariable(t *testing.T) {
	b := NewBuilder(2)
	b.AddConflict(0, 1)
	b.AddConflict(0, 1+2)
	inst := b.Build(false)

	root := NewState(inst)
	_, ok := root.Transition(0, 1)
	assert.False(t, ok, "x0 = 1 rules out both values of x1")

	child, ok := root.Transition(0, 0)
	require.True(t, ok)
	assert.Equal(t, "{1,3}", child.String())
}

func TestDomains(t *testing.T) {
	b := NewBuilder(3)
	b.AddConflict(0+3, 1)
	inst := b.Build(false)
	s := &State{inst: inst, set: intset.FromSlice(6, []int{0, 3, 1, 5})}

	tests := []struct {
		v    int
		want linear.Domain
	}{
		{0, linear.ZeroOne},
		{1, linear.One},
		{2, linear.Zero},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Domain(tt.v), "x%d", tt.v)
	}

	assert.True(t, s.SetDomain(0, linear.One))
	assert.Equal(t, linear.One, s.Domain(0))
	assert.False(t, s.SetDomain(1, linear.Zero))
	assert.Equal(t, linear.Processed, s.Domain(1))

	before := s.set.Clone()
	assert.PanicsWithValue(t, "cliquetable: cannot restrict x2 to domain 01", func() { s.SetDomain(2, linear.ZeroOne) })
	assert.True(t, before.Equal(s.set), "a rejected restriction leaves the state alone")
}

func TestDomainConsistency(t *testing.T) {
	b := NewBuilder(2)
	b.AddConflict(0, 1)
	b.AddConflict(0, 1+2)
	inst := b.Build(false)

	set := intset.NewFull(4)
	require.True(t, MakeDomainConsistent(inst, set))
	assert.Equal(t, "{1,2,3}", set.String())

	again := set.Clone()
	require.True(t, MakeDomainConsistent(inst, again))
	assert.True(t, again.Equal(set))

	b = NewBuilder(2)
	b.AddClique(0, 1)
	b.AddClique(0, 3)
	b.AddClique(2, 1)
	b.AddClique(2, 3)
	assert.False(t, MakeDomainConsistent(b.Build(false), intset.NewFull(4)))
}

func TestDomainConsistencyIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(19))
	for trial := 0; trial < 50; trial++ {
		inst := randomInstance(rng, 3+rng.Intn(8), true, false)
		once := intset.NewFull(2 * inst.NumVars())
		ok := MakeDomainConsistent(inst, once)
		twice := once.Clone()
		assert.Equal(t, ok, MakeDomainConsistent(inst, twice))
		assert.True(t, once.Equal(twice))
	}
}

func TestDomainConsistencyKeepsSolutions(t *testing.T) {
	rng := rand.New(rand.NewSource(29))
	for trial := 0; trial < 50; trial++ {
		inst := randomInstance(rng, 3+rng.Intn(6), true, false)
		n := inst.NumVars()
		set := intset.NewFull(2 * n)
		MakeDomainConsistent(inst, set)

		x := make([]int, n)
		for mask := 0; mask < 1<<n; mask++ {
			for i := range x {
				x[i] = (mask >> i) & 1
			}
			if !inst.Feasible(x) {
				continue
			}
			for i := range x {
				lit := i
				if x[i] == 0 {
					lit = i + n
				}
				assert.True(t, set.Contains(lit), "trial %d removed literal %d of feasible %v", trial, lit, x)
			}
		}
	}
}

func TestExactMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 60; trial++ {
		negated := trial%3 != 0
		inst := randomInstance(rng, 3+rng.Intn(7), negated, trial%2 == 0)
		want := bruteForce(inst, nil)

		orderings := []func() dd.Ordering{
			func() dd.Ordering { return nil },
			func() dd.Ordering { return NewMinInState(inst) },
			func() dd.Ordering { return NewMinDegree(inst) },
		}
		for k, mk := range orderings {
			for _, longArcs := range []bool{true, false} {
				p := NewProblem(inst, WithDomainConsistency(k != 1))
				d, err := dd.NewSolver(p, dd.WithOrdering(mk()), dd.WithLongArcs(longArcs)).Construct(context.Background())
				if errors.Is(err, dd.ErrInfeasible) {
					assert.True(t, math.IsInf(want, -1), "trial %d", trial)
					continue
				}
				require.NoError(t, err)
				require.True(t, d.Exact())
				got, x := d.OptimalValue(inst.Weights(), true)
				assert.InDelta(t, want, got, 1e-9, "trial %d ordering %d long arcs %v", trial, k, longArcs)
				assert.True(t, inst.Feasible(x))
			}
		}
	}
}

func TestRelaxedAndPrunedBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	for trial := 0; trial < 40; trial++ {
		inst := randomInstance(rng, 5+rng.Intn(6), true, true)
		want := bruteForce(inst, nil)
		if math.IsInf(want, -1) {
			continue
		}
		for _, w := range []int{1, 2, 4} {
			d, err := dd.NewSolver(NewProblem(inst), dd.WithWidth(w), dd.WithOrdering(NewMinInState(inst))).Construct(context.Background())
			require.NoError(t, err)
			got, _ := d.OptimalValue(inst.Weights(), true)
			assert.GreaterOrEqual(t, got, want-1e-9, "trial %d width %d", trial, w)

			nrp, x := d.OptimalValue(inst.Weights(), false)
			if x != nil {
				assert.True(t, inst.Feasible(x))
				assert.LessOrEqual(t, nrp, want+1e-9)
			}
		}

		cb := DomainCompletionBound{Inst: inst}
		d, err := dd.NewSolver(NewProblem(inst), dd.WithWidth(3),
			dd.WithCompletionBound(cb), dd.WithPrimalPruning(want-1)).Construct(context.Background())
		require.NoError(t, err)
		got, _ := d.OptimalValue(inst.Weights(), true)
		assert.GreaterOrEqual(t, got, want-1e-9)
	}
}

func TestCompletionBound(t *testing.T) {
	b := NewBuilder(3)
	b.AddConflict(0+3, 2)
	b.SetWeights([]float64{2, -3, 5})
	inst := b.Build(false)
	cb := DomainCompletionBound{Inst: inst}

	// x0 free, x1 forced one, x2 forced zero
	s := &State{inst: inst, set: intset.FromSlice(6, []int{0, 3, 1, 5})}
	assert.Equal(t, 2.0-3.0, cb.DualBound(s))
	assert.Equal(t, -3.0, cb.PrimalBound(s))

	root := NewState(inst)
	assert.Equal(t, 7.0, cb.DualBound(root))
	assert.Equal(t, -3.0, cb.PrimalBound(root))
}

func TestMergeAdmitsBothCompletions(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	for trial := 0; trial < 30; trial++ {
		inst := randomInstance(rng, 6, true, trial%2 == 0)
		walk := func(s dd.State, x []int) (dd.State, bool) {
			for v, val := range x {
				var ok bool
				if s, ok = s.Transition(v, val); !ok {
					return nil, false
				}
			}
			return s, true
		}
		prefix := func() []int { return []int{rng.Intn(2), rng.Intn(2), rng.Intn(2)} }

		a, okA := walk(NewState(inst), prefix())
		c, okC := walk(NewState(inst), prefix())
		if !okA || !okC {
			continue
		}
		merged := &State{inst: inst, set: a.(*State).set.Clone()}
		merged.Merge(c)

		for mask := 0; mask < 8; mask++ {
			suffix := []int{mask & 1, (mask >> 1) & 1, (mask >> 2) & 1}
			for _, st := range []dd.State{a, c} {
				s := st
				ok := true
				for k, val := range suffix {
					if s, ok = s.Transition(3+k, val); !ok {
						break
					}
				}
				if !ok {
					continue
				}
				m := dd.State(merged)
				for k, val := range suffix {
					m, ok = m.Transition(3+k, val)
					require.True(t, ok, "trial %d suffix %v", trial, suffix)
				}
			}
		}
	}
}

func TestMinDegreeOrder(t *testing.T) {
	b := NewBuilder(3)
	b.AddConflict(0, 1)
	b.AddConflict(0, 2)
	assert.Empty(t, cmp.Diff([]int{1, 0, 2}, MinDegreeOrder(b.Build(false))))
}

func TestRandomMinInStateIsSeeded(t *testing.T) {
	inst := randomInstance(rand.New(rand.NewSource(2)), 8, false, false)
	run := func() []int {
		o := NewRandomMinInState(inst, 0.5, 42)
		d, err := dd.NewSolver(NewProblem(inst, WithDomainConsistency(false)), dd.WithOrdering(o)).Construct(context.Background())
		require.NoError(t, err)
		return append([]int(nil), d.LayerToVar()...)
	}
	first := run()
	assert.Empty(t, cmp.Diff(first, run()))
	assert.ElementsMatch(t, dd.Identity(8), first)
}

func TestPropagatedRows(t *testing.T) {
	rng := rand.New(rand.NewSource(37))
	for trial := 0; trial < 40; trial++ {
		n := 4 + rng.Intn(4)
		inst := randomInstance(rng, n, trial%2 == 0, false)
		var rows []*linear.Row
		for r := 0; r < 1+rng.Intn(2); r++ {
			var coeffs []float64
			var ind []int
			for v := 0; v < n; v++ {
				if rng.Intn(2) == 0 {
					coeffs = append(coeffs, float64(rng.Intn(5)-1))
					ind = append(ind, v)
				}
			}
			if len(ind) == 0 {
				continue
			}
			sense := linear.LE
			if rng.Intn(2) == 0 {
				sense = linear.GE
			}
			rows = append(rows, linear.NewRow(float64(rng.Intn(4)), sense, coeffs, ind))
		}
		want := bruteForce(inst, rows)

		p := NewProblem(inst, WithPropagator(linprop.New(rows, n)), WithDomainConsistency(false))
		d, err := dd.NewSolver(p, dd.WithNodeData(p.NodeData())).Construct(context.Background())
		if errors.Is(err, dd.ErrInfeasible) {
			assert.True(t, math.IsInf(want, -1), "trial %d", trial)
			continue
		}
		require.NoError(t, err)
		got, _ := d.OptimalValue(inst.Weights(), true)
		assert.GreaterOrEqual(t, got, want-1e-9, "trial %d", trial)
		if d.Exact() {
			assert.InDelta(t, want, got, 1e-9, "trial %d", trial)
		}
		nrp, x := d.OptimalValue(inst.Weights(), false)
		if x != nil {
			assert.True(t, inst.Feasible(x))
			for _, r := range rows {
				assert.True(t, r.Satisfied(x), "trial %d row %v", trial, r)
			}
			assert.LessOrEqual(t, nrp, want+1e-9)
		}
	}
}
