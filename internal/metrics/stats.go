package metrics

import (
	"math"
	"time"
)

// Window accumulates timing and loss stats across multiple train steps.
type Window struct {
	samples  int
	compute  time.Duration
	steps    int
	lastLoss float64
	minLoss  float64
}

// Record adds a new measurement to the window.
func (w *Window) Record(samples int, computeTime time.Duration, loss float64) {
	if w.steps == 0 || loss < w.minLoss {
		w.minLoss = loss
	}
	w.samples += samples
	w.compute += computeTime
	w.steps++
	w.lastLoss = loss
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Steps: w.steps, LastLoss: w.lastLoss, MinLoss: w.minLoss}
	if w.compute > 0 {
		snap.SamplesPerSec = float64(w.samples) / w.compute.Seconds()
	}
	if w.steps > 0 {
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	} else {
		snap.MinLoss = math.NaN()
	}

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Steps         int
	SamplesPerSec float64
	AvgComputeMS  float64
	LastLoss      float64
	MinLoss       float64
}
