package trainer

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"spiral-forge/internal/logging"
	"spiral-forge/internal/metrics"
)

// ErrDiverged is returned by Run when the loss stops being finite.
var ErrDiverged = errors.New("trainer: loss is not finite")

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Steps    int
	LogEvery int
	Logger   logging.Logger
	// OnStep, if set, is called after every step.
	OnStep func(StepResult)
}

// Summary reports the outcome of a Run.
type Summary struct {
	Steps     int
	FirstLoss float64
	LastLoss  float64
	Accuracy  float64
	Elapsed   time.Duration
}

// Run drives s for cfg.Steps train steps. It stops early when ctx is done or
// the loss becomes NaN or infinite.
func Run(ctx context.Context, s *Session, cfg RunConfig) (summary Summary, err error) {
	if cfg.Steps <= 0 {
		return Summary{}, errors.New("trainer: steps must be > 0")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 50
	}
	log := cfg.Logger
	if log == nil {
		log = logging.GetLogger(logging.ModuleTrainer)
	}

	samples := s.Samples()
	var window metrics.Window
	start := time.Now()
	defer func() { summary.Elapsed = time.Since(start) }()

	for step := 1; step <= cfg.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		startCompute := time.Now()
		res := s.TrainStepDetailed()
		computeTime := time.Since(startCompute)

		loss := res.Total()
		if step == 1 {
			summary.FirstLoss = loss
		}
		summary.Steps = step
		summary.LastLoss = loss
		window.Record(samples, computeTime, loss)
		if cfg.OnStep != nil {
			cfg.OnStep(res)
		}

		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			log.Warnf("step=%d data_loss=%v reg_loss=%v: training diverged", res.Step, res.DataLoss, res.RegLoss)
			return summary, errors.Wrapf(ErrDiverged, "step %d", res.Step)
		}

		if step%cfg.LogEvery == 0 || step == cfg.Steps {
			snap := window.Snapshot()
			log.Infof("step=%d samples_per_sec=%.1f compute_ms=%.2f loss=%.4f min_loss=%.4f",
				res.Step,
				snap.SamplesPerSec,
				snap.AvgComputeMS,
				snap.LastLoss,
				snap.MinLoss,
			)
		}
	}

	summary.Accuracy = s.Accuracy()
	log.Infof("finished steps=%d first_loss=%.4f last_loss=%.4f accuracy=%.3f",
		summary.Steps, summary.FirstLoss, summary.LastLoss, summary.Accuracy)
	return summary, nil
}
