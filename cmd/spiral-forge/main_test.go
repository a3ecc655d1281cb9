package main

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestAttachFlags(t *testing.T) {
	resetFlags()
	cmd := &cobra.Command{Use: "x"}
	attachFlags(cmd, []string{"config", "steps"})
	require.NotNil(t, cmd.Flags().Lookup("config"))
	require.Nil(t, cmd.Flags().Lookup("listen"))

	require.Panics(t, func() { attachFlags(cmd, []string{"nope"}) })
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)
	cfgPathFlag = ""
	stepsFlag = 3
	hiddenFlag = 7

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Steps)
	require.Equal(t, 7, cfg.HiddenSize)
	require.Equal(t, 300, cfg.TotalSamples)
}

func TestTrainWritesPNG(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)
	out := filepath.Join(t.TempDir(), "boundary.png")
	cfgPathFlag = ""
	stepsFlag = 10
	hiddenFlag = 16
	renderOutFlag = out

	require.NoError(t, train(context.Background()))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	require.Equal(t, 256, img.Bounds().Dx())
}

func TestTrainRejectsBadConfig(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)
	cfgPathFlag = ""
	samplesFlag = 301

	require.Error(t, train(context.Background()))
}
