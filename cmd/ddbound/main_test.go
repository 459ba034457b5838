package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

const packing = `
name: packing
vars: 5
objective: [3, 2, 4, 1, 5]
rows:
  - {vars: [0, 1], coeffs: [1, 1], sense: "<=", rhs: 1}
  - {vars: [1, 2, 3], coeffs: [1, 1, 1], sense: "<=", rhs: 1}
`

const conflict = `
vars: 2
objective: [1, 1]
rows:
  - {vars: [0, 1], coeffs: [1, 1], sense: "<=", rhs: 1}
fixed: {0: 1, 1: 1}
`

func write(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--log-level=error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBound(t *testing.T) {
	path := write(t, t.TempDir(), "packing.yaml", packing)
	out, err := run(t, "bound", path, "-o", "yaml")
	require.NoError(t, err)

	var reports []report
	require.NoError(t, yaml.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.InDelta(t, 12, reports[0].Bound, 1e-5)
	assert.True(t, reports[0].Exact)
	assert.NotEmpty(t, reports[0].RunID)

	out, err = run(t, "bound", path, "--width=1", "--sat-check")
	require.NoError(t, err)
	assert.Contains(t, out, "packing.yaml\tbound")
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		write(t, dir, "a.yaml", packing),
		write(t, dir, "b.yaml", conflict),
		filepath.Join(dir, "missing.yaml"),
	}
	out, err := run(t, append([]string{"batch", "--workers=2", "--sat-check", "-o", "yaml"}, paths...)...)
	require.NoError(t, err)

	var reports []report
	require.NoError(t, yaml.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 3)
	assert.InDelta(t, 12, reports[0].Bound, 1e-5)
	assert.True(t, reports[1].Infeasible)
	assert.Contains(t, reports[2].Error, "missing.yaml")
}

func TestSATCheckInfeasible(t *testing.T) {
	path := write(t, t.TempDir(), "conflict.yaml", conflict)
	out, err := run(t, "bound", path, "--sat-check")
	require.NoError(t, err)
	assert.Contains(t, out, "infeasible")
}

func TestBadSettings(t *testing.T) {
	path := write(t, t.TempDir(), "packing.yaml", packing)
	_, err := run(t, "bound", path, "--master=simplex")
	assert.ErrorContains(t, err, "simplex")
	_, err = run(t, "bound", path, "-o", "xml")
	assert.ErrorContains(t, err, "xml")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}
