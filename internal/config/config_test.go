package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelfit/domain/panel"
	"panelfit/internal/errors"
	"panelfit/internal/screening"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panelfit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, panel.DefaultSchema(), cfg.Schema())
	assert.Equal(t, "median_iqr", cfg.Screen.Policy)
	assert.Equal(t, "nearest", cfg.Screen.Interpolation)
	assert.True(t, cfg.Input.DropNonFinite)
	assert.True(t, cfg.Influence.Prune)
	assert.Equal(t, 4.0, cfg.Influence.Numerator)
	assert.Equal(t, "info", cfg.Logging.Level)

	pc, err := cfg.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, screening.DefaultConfig(), pc.Screen)
	assert.Equal(t, panel.DefaultOutputs, pc.ScreenVariables)
	assert.GreaterOrEqual(t, pc.Workers, 1)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PANELFIT_SCREEN_POLICY", "tukey")
	t.Setenv("PANELFIT_WORKERS", "3")
	t.Setenv("PANELFIT_LOG_LEVEL", "debug")
	t.Setenv("PANELFIT_VARIABLES_OUTPUTS", "Inflation, Unemployment")

	cfg, err := Load("")
	require.NoError(t, err)

	pc, err := cfg.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, screening.PolicyTukey, pc.Screen.Policy)
	assert.Equal(t, 1.5, pc.Screen.Multiplier)
	assert.Equal(t, 3, pc.Workers)
	assert.Equal(t, []string{"Inflation", "Unemployment"}, pc.Schema.Outputs)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_FileOverridesEnvironment(t *testing.T) {
	t.Setenv("PANELFIT_INFLUENCE_NUMERATOR", "6")
	t.Setenv("PANELFIT_WORKERS", "2")
	path := writeFile(t, `
workers: 5
screen:
  policy: none
  ranges:
    - variable: "*"
      min: -100
    - variable: Inflation
      max: 1000
influence:
  prune: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, 6.0, cfg.Influence.Numerator)
	assert.False(t, cfg.Influence.Prune)
	require.Len(t, cfg.Screen.Ranges, 2)
	assert.Equal(t, screening.AllVariables, cfg.Screen.Ranges[0].Variable)
	require.NotNil(t, cfg.Screen.Ranges[0].Min)
	assert.Equal(t, -100.0, *cfg.Screen.Ranges[0].Min)
	assert.Nil(t, cfg.Screen.Ranges[0].Max)

	pc, err := cfg.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, screening.PolicyNone, pc.Screen.Policy)
	assert.False(t, pc.PruneInfluence)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"policy":        "screen:\n  policy: winsor\n",
		"numerator":     "influence:\n  numerator: -1\n",
		"duplicate":     "variables:\n  inputs: [Inflation]\n",
		"empty range":   "screen:\n  ranges:\n    - min: 1\n",
		"inverted":      "screen:\n  ranges:\n    - variable: Inflation\n      min: 5\n      max: 1\n",
		"interpolation": "screen:\n  interpolation: cubic\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeIOError, errors.GetCode(err))
}
