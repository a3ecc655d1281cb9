package trainer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRunReportsSummary(t *testing.T) {
	s, err := NewSession(referenceParams())
	require.NoError(t, err)

	var seen []StepResult
	summary, err := Run(context.Background(), s, RunConfig{
		Steps:    60,
		LogEvery: 20,
		Logger:   zaptest.NewLogger(t).Sugar(),
		OnStep:   func(r StepResult) { seen = append(seen, r) },
	})
	require.NoError(t, err)
	require.Equal(t, 60, summary.Steps)
	require.Len(t, seen, 60)
	require.Equal(t, 1, seen[0].Step)
	require.Equal(t, 60, seen[59].Step)
	require.Equal(t, seen[0].Total(), summary.FirstLoss)
	require.Equal(t, seen[59].Total(), summary.LastLoss)
	require.Less(t, summary.LastLoss, summary.FirstLoss)
	require.Greater(t, summary.Accuracy, 0.0)
	require.Positive(t, summary.Elapsed)
}

func TestRunRejectsZeroSteps(t *testing.T) {
	s, err := NewSession(referenceParams())
	require.NoError(t, err)
	_, err = Run(context.Background(), s, RunConfig{})
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, err := NewSession(referenceParams())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	summary, err := Run(ctx, s, RunConfig{
		Steps:  100,
		Logger: zaptest.NewLogger(t).Sugar(),
		OnStep: func(r StepResult) {
			if r.Step == 3 {
				cancel()
			}
		},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 3, summary.Steps)
	require.Equal(t, 3, s.Steps())
}

func TestRunStopsWhenLossDiverges(t *testing.T) {
	p := referenceParams()
	p.NetworkRandMax = 1e4
	s, err := NewSession(p)
	require.NoError(t, err)
	_, err = Run(context.Background(), s, RunConfig{Steps: 10, Logger: zaptest.NewLogger(t).Sugar()})
	require.ErrorIs(t, err, ErrDiverged)
}
