package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"spiral-forge/internal/logging"
	"spiral-forge/internal/trainer"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 300, cfg.TotalSamples)
	require.Equal(t, 3, cfg.NumClasses)
	require.Equal(t, 100, cfg.HiddenSize)
	require.InDelta(t, math.Pi, cfg.Span, 1e-12)
	require.InDelta(t, 0.001, cfg.RegularRate, 1e-12)
	require.Equal(t, 256, cfg.RenderWidth)
	require.True(t, cfg.LogConsole)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
radius: 2
total_samples: 90
num_classes: 3
hidden_size: 8
steps: 20
log_every: 5
render_out: out.png
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.InDelta(t, 2.0, cfg.Radius, 1e-12)
	require.Equal(t, 90, cfg.TotalSamples)
	require.Equal(t, 8, cfg.HiddenSize)
	require.Equal(t, 20, cfg.Steps)
	require.Equal(t, 5, cfg.LogEvery)
	require.Equal(t, "out.png", cfg.RenderOut)
	// untouched keys keep their defaults
	require.InDelta(t, 0.25, cfg.DataRandMax, 1e-12)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "steps: 10\nbatch_size: 4\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SPIRAL_STEPS", "77")
	t.Setenv("SPIRAL_HIDDEN_SIZE", "12")
	cfg, err := Load(writeConfig(t, "steps: 10\n"))
	require.NoError(t, err)
	require.Equal(t, 77, cfg.Steps)
	require.Equal(t, 12, cfg.HiddenSize)
}

func TestLoadRejectsIndivisibleSamples(t *testing.T) {
	_, err := Load(writeConfig(t, "total_samples: 301\n"))
	require.Error(t, err)
	require.Equal(t, trainer.ErrInvalidParams, errors.Cause(err))
}

func TestValidate(t *testing.T) {
	var nilCfg *Config
	require.Error(t, nilCfg.Validate())

	cfg, err := Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Steps = 0
	require.Error(t, bad.Validate())

	bad = *cfg
	bad.RenderSpan = 0
	require.Error(t, bad.Validate())

	bad = *cfg
	bad.LogLevel = "verbose"
	require.Error(t, bad.Validate())

	fixed := *cfg
	fixed.LogEvery = 0
	require.NoError(t, fixed.Validate())
	require.Equal(t, 50, fixed.LogEvery)
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.ApplyOverrides(Overrides{Steps: 5, HiddenSize: 16, RenderOut: "x.png", LogLevel: "warn"})
	require.Equal(t, 5, cfg.Steps)
	require.Equal(t, 16, cfg.HiddenSize)
	require.Equal(t, "x.png", cfg.RenderOut)
	require.Equal(t, "warn", cfg.LogLevel)
	// zero values leave the config alone
	require.Equal(t, 300, cfg.TotalSamples)
	require.InDelta(t, 1.0, cfg.DescentRate, 1e-12)
}

func TestDerivedConfigs(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.LogLevel = "error"
	cfg.LogPath = filepath.Join(t.TempDir(), "spiral.log")

	lc := cfg.LogConfig()
	require.Equal(t, logging.LevelError, lc.LogLevel)
	require.Equal(t, cfg.LogPath, lc.LogPath)
	require.True(t, lc.LogInConsole)

	p := cfg.SessionParams()
	require.Equal(t, cfg.HiddenSize, p.HiddenSize)
	require.NoError(t, p.Validate())

	vp := cfg.Viewport()
	require.Equal(t, 256, vp.Width)
	require.InDelta(t, 2.0, vp.SpanLeast, 1e-12)
}
