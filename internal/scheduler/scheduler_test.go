package scheduler

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-lpc/internal/errors"
)

func TestNumberOfThreads(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		frames    int
		minFrames int
		opts      Options
		want      int
	}{
		{"few frames", 10, DefaultMinFrames, Options{MaxThreads: 8}, 1},
		{"rounded", 100, DefaultMinFrames, Options{MaxThreads: 8}, 2},
		{"hardware ceiling", 6000, DefaultMinFrames, Options{MaxThreads: 8}, 8},
		{"hard limit", 100000, DefaultMinFrames, Options{MaxThreads: 1000}, MaxThreads},
		{"synthesis threshold", 6000, SynthesisMinFrames, Options{MaxThreads: 100}, 50},
		{"override", 100, DefaultMinFrames, Options{MaxThreads: 16, MinFrames: 10}, 7},
		{"single threaded", 6000, DefaultMinFrames, Options{SingleThreaded: true, MaxThreads: 8}, 1},
		{"no frames", 0, DefaultMinFrames, Options{MaxThreads: 8}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NumberOfThreads(tt.frames, tt.minFrames, tt.opts))
		})
	}

	// without a configured maximum the hardware decides, but never zero
	assert.GreaterOrEqual(t, NumberOfThreads(100000, DefaultMinFrames, Options{}), 1)
}

func TestSplit(t *testing.T) {
	t.Parallel()

	threads := Split(10, 3)
	require.Len(t, threads, 3)
	assert.Equal(t, [2]int{0, 4}, [2]int{threads[0].First, threads[0].Last})
	assert.Equal(t, [2]int{4, 7}, [2]int{threads[1].First, threads[1].Last})
	assert.Equal(t, [2]int{7, 10}, [2]int{threads[2].First, threads[2].Last})
	for i, th := range threads {
		assert.Equal(t, i, th.ID)
	}

	// random streams depend only on the thread id
	again := Split(50, 3)
	assert.Equal(t, threads[2].Rand.Uint64(), again[2].Rand.Uint64())
	assert.NotEqual(t, Split(1, 1)[0].Rand.Uint64(), again[1].Rand.Uint64())
}

type counters struct {
	thread int
	seen   int
}

func TestRunVisitsEveryFrameOnce(t *testing.T) {
	t.Parallel()

	const frames = 1000
	visits := make([]atomic.Int32, frames)
	var workspaces atomic.Int32

	job := Job[*counters]{
		Name:   "visit",
		Frames: frames,
		NewWorkspace: func(th *Thread) (*counters, error) {
			workspaces.Add(1)
			return &counters{thread: th.ID}, nil
		},
		Process: func(ws *counters, i int) error {
			ws.seen++
			visits[i].Add(1)
			return nil
		},
	}

	stats, err := Run(context.Background(), job, Options{MaxThreads: 4, MinFrames: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Threads)
	assert.Equal(t, int32(4), workspaces.Load())
	for i := range visits {
		require.Equal(t, int32(1), visits[i].Load(), "frame %d", i)
	}
}

func TestRunResultIndependentOfThreadCount(t *testing.T) {
	t.Parallel()

	compute := func(maxThreads int) []float64 {
		out := make([]float64, 333)
		job := Job[[]float64]{
			Name:   "square",
			Frames: len(out),
			NewWorkspace: func(*Thread) ([]float64, error) {
				return make([]float64, 1), nil
			},
			Process: func(ws []float64, i int) error {
				ws[0] = float64(i) * 0.5
				out[i] = ws[0] * ws[0]
				return nil
			},
		}
		_, err := Run(context.Background(), job, Options{MaxThreads: maxThreads, MinFrames: 1})
		require.NoError(t, err)
		return out
	}

	want := compute(1)
	for _, n := range []int{2, 3, 7, 16} {
		assert.Equal(t, want, compute(n), "threads %d", n)
	}
}

func TestRunReturnsFirstError(t *testing.T) {
	t.Parallel()

	sentinel := errors.NewStd("bad frame")
	job := Job[struct{}]{
		Name:         "fail",
		Frames:       200,
		NewWorkspace: func(*Thread) (struct{}, error) { return struct{}{}, nil },
		Process: func(_ struct{}, i int) error {
			if i == 57 {
				return sentinel
			}
			return nil
		},
	}

	_, err := Run(context.Background(), job, Options{MaxThreads: 4, MinFrames: 1})
	require.Error(t, err)
	require.ErrorIs(t, err, sentinel)
	assert.True(t, errors.IsCategory(err, errors.CategoryProcessing))
	assert.False(t, errors.IsCancellation(err))

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 57, ee.GetContext()["frame"])
	assert.Equal(t, "fail", ee.GetContext()["operation"])
	assert.Contains(t, ee.GetContext(), "duration_ms")
}

func TestRunRecoversPanics(t *testing.T) {
	t.Parallel()

	job := Job[struct{}]{
		Name:         "panic",
		Frames:       100,
		NewWorkspace: func(*Thread) (struct{}, error) { return struct{}{}, nil },
		Process: func(_ struct{}, i int) error {
			if i == 90 {
				var m map[string]int
				m["boom"] = 1
			}
			return nil
		},
	}

	_, err := Run(context.Background(), job, Options{MaxThreads: 3, MinFrames: 1})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryWorker))
	assert.Contains(t, err.Error(), "panic in panic thread")

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, errors.PriorityCritical, ee.GetPriority())
	assert.Equal(t, "panic", ee.GetContext()["operation"])
}

func TestRunWorkspaceFailure(t *testing.T) {
	t.Parallel()

	var processed atomic.Int32
	job := Job[int]{
		Name:   "alloc",
		Frames: 100,
		NewWorkspace: func(th *Thread) (int, error) {
			if th.ID == 1 {
				return 0, errors.NewStd("out of scratch")
			}
			return th.ID, nil
		},
		Process: func(int, int) error {
			processed.Add(1)
			return nil
		},
	}

	_, err := Run(context.Background(), job, Options{MaxThreads: 2, MinFrames: 1})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryWorker))
	assert.Less(t, processed.Load(), int32(100))
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var processed atomic.Int32
	job := Job[struct{}]{
		Name:         "cancelled",
		Frames:       100,
		NewWorkspace: func(*Thread) (struct{}, error) { return struct{}{}, nil },
		Process: func(struct{}, int) error {
			processed.Add(1)
			return nil
		},
	}

	_, err := Run(ctx, job, Options{MaxThreads: 4, MinFrames: 1})
	require.Error(t, err)
	assert.True(t, errors.IsCancellation(err))
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), processed.Load())
}

func TestRunProgressCancels(t *testing.T) {
	t.Parallel()

	done := make([]bool, 20)
	var fractions []float64
	job := Job[struct{}]{
		Name:         "progress",
		Frames:       len(done),
		NewWorkspace: func(*Thread) (struct{}, error) { return struct{}{}, nil },
		Process: func(_ struct{}, i int) error {
			done[i] = true
			return nil
		},
	}
	opts := Options{
		SingleThreaded: true,
		Progress: func(f float64) bool {
			fractions = append(fractions, f)
			return len(fractions) <= 3
		},
	}

	_, err := Run(context.Background(), job, opts)
	require.Error(t, err)
	assert.True(t, errors.IsCancellation(err))
	assert.NotErrorIs(t, err, context.Canceled)

	assert.Equal(t, []bool{true, true, true, false}, done[:4])
	assert.InDeltaSlice(t, []float64{0.025, 0.075, 0.125, 0.175}, fractions, 1e-15)
}

func TestRunProgressIsMonotonic(t *testing.T) {
	t.Parallel()

	var last float64
	calls := 0
	job := Job[struct{}]{
		Name:         "monotonic",
		Frames:       400,
		NewWorkspace: func(*Thread) (struct{}, error) { return struct{}{}, nil },
		Process:      func(struct{}, int) error { return nil },
	}
	opts := Options{
		MaxThreads: 4,
		MinFrames:  1,
		Progress: func(f float64) bool {
			calls++
			assert.Greater(t, f, last)
			assert.LessOrEqual(t, f, 1.0)
			last = f
			return true
		},
	}

	_, err := Run(context.Background(), job, opts)
	require.NoError(t, err)
	// the first range reports each frame, then completion
	assert.Equal(t, 101, calls)
	assert.InDelta(t, 1.0, last, 0)
}

func TestRunFailedJobDoesNotReportCompletion(t *testing.T) {
	t.Parallel()

	var fractions []float64
	job := Job[struct{}]{
		Name:         "incomplete",
		Frames:       10,
		NewWorkspace: func(*Thread) (struct{}, error) { return struct{}{}, nil },
		Process: func(_ struct{}, i int) error {
			if i == 5 {
				return errors.NewStd("bad frame")
			}
			return nil
		},
	}
	opts := Options{
		SingleThreaded: true,
		Progress: func(f float64) bool {
			fractions = append(fractions, f)
			return true
		},
	}

	_, err := Run(context.Background(), job, opts)
	require.Error(t, err)
	require.Len(t, fractions, 6)
	assert.Less(t, fractions[len(fractions)-1], 1.0)
}

func TestRunWithoutFrames(t *testing.T) {
	t.Parallel()

	stats, err := Run(context.Background(), Job[int]{Name: "empty"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Threads)

	_, err = Run(context.Background(), Job[int]{Name: "incomplete", Frames: 3}, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryWorker))
}
