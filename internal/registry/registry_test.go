package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStrategies(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRegistryLoadsAndOrdersByPriority(t *testing.T) {
	path := writeStrategies(t, `strategies:
  trading:
    name: "Intraday"
    priority: 50
    time_horizon: short
    active: true
  long_term:
    name: "Long Term"
    priority: 100
    time_horizon: long
    active: true
`)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "long_term", list[0].ID)
	assert.Equal(t, "trading", list[1].ID)

	s, ok := r.Get("trading")
	require.True(t, ok)
	assert.Equal(t, 50, s.Priority)
	assert.Equal(t, "Intraday", s.Name)

	_, ok = r.Get("ghost")
	assert.False(t, ok)

	snap := r.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.Len(t, snap.Strategies, 2)
}

func TestNewRegistryDefaultsAndNormalization(t *testing.T) {
	path := writeStrategies(t, `strategies:
  swing:
    priority: 70
    active: true
`)
	r, err := NewRegistry(path)
	require.NoError(t, err)
	s, ok := r.Get("swing")
	require.True(t, ok)
	assert.Equal(t, "swing", s.Name)
	assert.Equal(t, "medium", s.TimeHorizon)
}

func TestNewRegistryRejectsInvalidFiles(t *testing.T) {
	cases := map[string]string{
		"bad horizon": `strategies:
  a:
    priority: 10
    time_horizon: eternal
`,
		"negative priority": `strategies:
  a:
    priority: -1
`,
		"duplicate name": `strategies:
  a:
    name: same
    priority: 10
  b:
    name: same
    priority: 20
`,
		"unknown field": `strategies:
  a:
    priority: 10
    color: green
`,
		"empty": `strategies: {}
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(writeStrategies(t, content))
			assert.Error(t, err)
		})
	}
}
