package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/ddbound/pkg/relax"
)

func load(t *testing.T, path string, args ...string) (Settings, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))
	v, err := New(fs, path)
	require.NoError(t, err)
	return Load(v)
}

func TestDefaults(t *testing.T) {
	s, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, relax.DefaultConfig(), s.Relax)
	assert.Equal(t, "info", s.LogLevel)
}

func TestPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ddbound.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
master: subgradient
lag_time_limit: 2s
width: 4
ordering: min_degree
`), 0o600))
	t.Setenv("DDBOUND_WIDTH", "8")

	s, err := load(t, path, "--ordering=rand_min_in_state", "--ordering-seed=3")
	require.NoError(t, err)
	assert.Equal(t, relax.MasterSubgradient, s.Relax.Master)
	assert.Equal(t, 2*time.Second, s.Relax.LagTimeLimit)
	assert.Equal(t, 8, s.Relax.Width, "environment beats the file")
	assert.Equal(t, relax.OrderRandMinInState, s.Relax.Ordering, "flags beat the file")
	assert.Equal(t, int64(3), s.Relax.OrderingSeed)
}

func TestInvalid(t *testing.T) {
	_, err := load(t, "", "--mode=rows", "--log-format=xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_in_state")
	assert.Contains(t, err.Error(), "xml")
}

func TestMissingFile(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	_, err := New(fs, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
