package render

import (
	"sync"

	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/mat"
)

// gridChunkRows is the number of pixels predicted per job.
const gridChunkRows = 4096

// predictWorkers is the default fan-out for grid prediction.
func predictWorkers() int {
	return max(1, cpuid.CPU.LogicalCores)
}

type gridJob struct {
	lo, hi int
}

// predictChunks predicts query in row chunks on up to workers goroutines.
// Labels keep the row order of query. The first error reported by any worker
// is returned.
func predictChunks(p Predictor, query *mat.Dense, workers, chunkRows int) ([]int, error) {
	rows, cols := query.Dims()
	if workers <= 1 || rows <= chunkRows {
		return p.PredictGrid(query)
	}

	jobs := make(chan gridJob, workers)
	errCh := make(chan error, workers)
	labels := make([]int, rows)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var failed error
			for job := range jobs {
				if failed != nil {
					continue
				}
				part, err := p.PredictGrid(query.Slice(job.lo, job.hi, 0, cols).(*mat.Dense))
				if err != nil {
					failed = err
					continue
				}
				copy(labels[job.lo:job.hi], part)
			}
			if failed != nil {
				errCh <- failed
			}
		}()
	}

	for lo := 0; lo < rows; lo += chunkRows {
		jobs <- gridJob{lo: lo, hi: min(lo+chunkRows, rows)}
	}
	close(jobs)
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}
	return labels, nil
}
