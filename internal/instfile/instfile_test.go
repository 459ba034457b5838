package instfile

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/ddbound/pkg/linear"
)

const packing = `
name: packing
vars: 5
objective: [3, 2, 4, 1, 5]
rows:
  - {vars: [0, 1], coeffs: [1, 1], sense: "<=", rhs: 1}
  - {name: second, vars: [1, 2, 3], coeffs: [1, 1, 1], sense: le, rhs: 1}
cliques: [[3, 9]]
fixed: {2: 1}
primal_bound: 7
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(packing))
	require.NoError(t, err)
	sub, err := f.Subproblem()
	require.NoError(t, err)

	assert.Equal(t, 5, sub.NumVars)
	assert.Empty(t, cmp.Diff([]float64{3, 2, 4, 1, 5}, sub.Objective))
	require.Len(t, sub.Rows, 2)
	assert.Equal(t, "r0", sub.Rows[0].Name)
	assert.Equal(t, "second", sub.Rows[1].Name)
	assert.Equal(t, linear.LE, sub.Rows[1].Sense)
	assert.Empty(t, cmp.Diff([][]int{{3, 9}}, sub.Cliques))
	assert.Empty(t, cmp.Diff([]int{linear.Unfixed, linear.Unfixed, 1, linear.Unfixed, linear.Unfixed}, sub.Fixed))
	assert.Equal(t, 7.0, sub.PrimalBound)
	assert.True(t, math.IsInf(sub.DualCutoff, 1))
}

func TestMinimize(t *testing.T) {
	f, err := Parse([]byte(`
vars: 2
minimize: true
objective: [1, -2]
rows: [{vars: [0, 1], coeffs: [1, 1], sense: ">=", rhs: 1}]
primal_bound: 3
dual_cutoff: -1
`))
	require.NoError(t, err)
	sub, err := f.Subproblem()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]float64{-1, 2}, sub.Objective))
	assert.Equal(t, -3.0, sub.PrimalBound)
	assert.Equal(t, 1.0, sub.DualCutoff)
	assert.Equal(t, -2.5, f.HostValue(2.5))
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{"unknown key", "vars: 1\nobjective: [1]\ncolor: red\n", []string{"color"}},
		{"no vars", "objective: []\n", []string{"invalid number of variables"}},
		{
			"several problems",
			"vars: 2\nobjective: [1]\nrows: [{vars: [0], coeffs: [1, 2], sense: '<=', rhs: 1}, {vars: [0], coeffs: [1], sense: '<', rhs: 1}]\n",
			[]string{"objective has 1 coefficients", "row 0 has 1 variables and 2 coefficients", "row 1"},
		},
		{"bad fixing", "vars: 1\nobjective: [1]\nfixed: {3: 1}\n", []string{"variable 3"}},
		{"bad literal", "vars: 1\nobjective: [1]\ncliques: [[0, 2]]\n", []string{"literal 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.data))
			if err == nil {
				_, err = f.Subproblem()
			}
			require.Error(t, err)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestLoadRoundTrip(t *testing.T) {
	f, err := Parse([]byte(packing))
	require.NoError(t, err)
	data, err := f.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "packing.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	g, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(f, g))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "missing.yaml")
}
