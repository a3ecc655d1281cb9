package render

import (
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// countingPredictor labels every row with the sign of its x coordinate.
type countingPredictor struct {
	calls atomic.Int32
	fail  bool
}

func (c *countingPredictor) PredictGrid(query *mat.Dense) ([]int, error) {
	c.calls.Add(1)
	if c.fail {
		return nil, errors.New("boom")
	}
	rows, _ := query.Dims()
	out := make([]int, rows)
	for i := range out {
		if query.At(i, 0) > 0 {
			out[i] = 1
		}
	}
	return out, nil
}

func TestPredictChunksMatchesSerial(t *testing.T) {
	s := newSession(t)
	grid := Viewport{Width: 37, Height: 23, SpanLeast: 2}.Grid()

	serial, err := s.PredictGrid(grid)
	require.NoError(t, err)
	parallel, err := predictChunks(s, grid, 4, 50)
	require.NoError(t, err)
	require.Equal(t, serial, parallel)
}

func TestPredictChunksSplitsWork(t *testing.T) {
	p := &countingPredictor{}
	grid := Viewport{Width: 10, Height: 10, SpanLeast: 2}.Grid()

	labels, err := predictChunks(p, grid, 3, 7)
	require.NoError(t, err)
	require.Len(t, labels, 100)
	require.Equal(t, int32(15), p.calls.Load())
	require.Equal(t, 0, labels[0])
	require.Equal(t, 1, labels[9])

	single := &countingPredictor{}
	_, err = predictChunks(single, grid, 1, 7)
	require.NoError(t, err)
	require.Equal(t, int32(1), single.calls.Load())
}

func TestPredictChunksReportsError(t *testing.T) {
	p := &countingPredictor{fail: true}
	grid := Viewport{Width: 10, Height: 10, SpanLeast: 2}.Grid()
	_, err := predictChunks(p, grid, 3, 7)
	require.EqualError(t, err, "boom")
}
