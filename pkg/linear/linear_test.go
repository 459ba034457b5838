package linear

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowFix(t *testing.T) {
	r := NewRow(4, LE, []float64{2, -1, 3}, []int{0, 1, 2})
	got := r.Fix([]int{1, Unfixed, 0})
	assert.Equal(t, []int{1}, got.Ind)
	assert.Equal(t, []float64{-1}, got.Coeffs)
	assert.InDelta(t, 2.0, got.Rhs, Epsilon)
	assert.Panics(t, func() { r.Fix([]int{2, Unfixed, Unfixed}) })
	assert.Panics(t, func() { NewRow(0, LE, []float64{1}, nil) })
}

func TestActivities(t *testing.T) {
	r := NewRow(1, GE, []float64{2, -3, 1}, []int{0, 1, 2})
	assert.Equal(t, -3.0, r.MinActivity())
	assert.Equal(t, 3.0, r.MaxActivity())
	tests := []struct {
		x    []int
		lhs  float64
		want bool
	}{
		{[]int{1, 0, 0}, 2, true},
		{[]int{1, 0, 1}, 3, true},
		{[]int{0, 0, 1}, 1, true},
		{[]int{1, 1, 1}, 0, false},
		{[]int{0, 1, 1}, -2, false},
		{[]int{0, 0, 0}, 0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.lhs, r.Activity(tt.x), "activity of %v", tt.x)
		assert.Equal(t, tt.want, r.Satisfied(tt.x), "%v", tt.x)
	}
	assert.Equal(t, "2 x0 - 3 x1 + x2 >= 1", r.String())
}

func TestCliqueTableForm(t *testing.T) {
	tests := []struct {
		name   string
		row    *Row
		le, ge bool
	}{
		{"set packing", NewRow(1, LE, []float64{1, 1, 1}, []int{0, 1, 2}), true, false},
		{"implication", NewRow(0, LE, []float64{1, -1}, []int{0, 1}), true, false},
		{"covering", NewRow(1, GE, []float64{1, 1}, []int{0, 1}), false, true},
		{"scaled packing", NewRow(2, LE, []float64{2, 2}, []int{0, 1}), true, false},
		{"knapsack", NewRow(3, LE, []float64{2, 1, 1}, []int{0, 1, 2}), false, false},
		{"loose packing", NewRow(2, LE, []float64{1, 1, 1}, []int{0, 1, 2}), false, false},
		{"equality partition", NewRow(1, EQ, []float64{1, 1}, []int{0, 1}), true, true},
		{"empty satisfied", NewRow(0, LE, nil, nil), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			le, ge := CliqueTableForm(tt.row)
			if le != tt.le || ge != tt.ge {
				t.Errorf("CliqueTableForm() = (%v, %v), want (%v, %v)", le, ge, tt.le, tt.ge)
			}
		})
	}
}

func TestCliqueLiteralsMatchRow(t *testing.T) {
	// x0 - x1 <= 0  is the clique {x0, not x1}
	r := NewRow(0, LE, []float64{1, -1}, []int{0, 1})
	assert.Equal(t, []int{0, 3}, CliqueLiterals(r, 2, false))

	// x0 + x1 >= 1  is the clique {not x0, not x1}
	c := NewRow(1, GE, []float64{1, 1}, []int{0, 1})
	lits := CliqueLiterals(c, 2, true)
	require.Equal(t, []int{2, 3}, lits)

	// every assignment satisfies the row iff at most one literal holds
	for mask := 0; mask < 4; mask++ {
		x := []int{mask & 1, (mask >> 1) & 1}
		held := 0
		for _, l := range lits {
			if (l < 2 && x[l] == 1) || (l >= 2 && x[l-2] == 0) {
				held++
			}
		}
		assert.Equal(t, c.Satisfied(x), held <= 1, "x=%v", x)
	}
}

func TestSplitAndParse(t *testing.T) {
	r := NewRow(1, EQ, []float64{1}, []int{0})
	parts := r.Split()
	require.Len(t, parts, 2)
	assert.Equal(t, LE, parts[0].Sense)
	assert.Equal(t, GE, parts[1].Sense)
	assert.Equal(t, EQ, r.Sense)

	s, err := ParseSense(">=")
	require.NoError(t, err)
	assert.Equal(t, GE, s)
	_, err = ParseSense("<")
	assert.Error(t, err)
}

func TestTolerance(t *testing.T) {
	assert.True(t, Equal(1, 1+Epsilon/2))
	assert.True(t, LessEq(1+Epsilon/2, 1))
	assert.False(t, Less(1, 1+Epsilon/2))
	assert.True(t, Greater(1+1e-6, 1))
	assert.True(t, IsSetPacking(NewRow(1, LE, []float64{1, 1}, []int{0, 1})))
}
