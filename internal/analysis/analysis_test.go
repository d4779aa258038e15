package analysis

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-lpc/internal/conf"
	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/formant"
	"github.com/tphakala/go-lpc/internal/lpc"
	"github.com/tphakala/go-lpc/internal/observability/metrics"
	"github.com/tphakala/go-lpc/internal/robust"
	"github.com/tphakala/go-lpc/internal/scheduler"
	"github.com/tphakala/go-lpc/internal/signal"
)

const testRate = 10000.0

var testResonances = []formant.Resonance{{Frequency: 500, Bandwidth: 60}, {Frequency: 1500, Bandwidth: 90}}

// resonantNoise returns white noise shaped by two resonances.
func resonantNoise(t *testing.T, seconds float64, seed uint64) *signal.Sound {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, 11))
	x := make([]float64, int(seconds*testRate))
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	a := make([]float64, 4)
	formant.NewSynthesizer(2).ToLPC(testResonances, 1/testRate, a)
	lpc.FilterInPlace(x, a)

	s, err := signal.NewMono(x, testRate)
	require.NoError(t, err)
	return s
}

func multiThreaded() Options {
	return Options{Threads: scheduler.Options{MaxThreads: 4, MinFrames: 5}}
}

func singleThreaded() Options {
	return Options{Threads: scheduler.Options{SingleThreaded: true}}
}

func TestSoundToLPCIsIndependentOfThreadCount(t *testing.T) {
	t.Parallel()

	sound := resonantNoise(t, 0.5, 1)
	for _, m := range []lpc.Method{lpc.Autocorrelation, lpc.Covariance, lpc.Burg, lpc.Marple} {
		t.Run(m.String(), func(t *testing.T) {
			t.Parallel()
			single, err := SoundToLPC(context.Background(), sound, m, 10, 0.025, 0.01, singleThreaded())
			require.NoError(t, err)
			multi, err := SoundToLPC(context.Background(), sound, m, 10, 0.025, 0.01, multiThreaded())
			require.NoError(t, err)

			require.Equal(t, len(single.Frames), single.NumberOfValidFrames())
			assert.Equal(t, single.Frames, multi.Frames)
			for i, f := range multi.Frames {
				assert.Len(t, f.A, f.Order, "frame %d", i)
				assert.GreaterOrEqual(t, f.Gain, 0.0, "frame %d", i)
				assert.LessOrEqual(t, f.Order, 10)
			}
		})
	}
}

func TestSoundToLPCSilence(t *testing.T) {
	t.Parallel()

	s, err := signal.NewMono(make([]float64, 5000), testRate)
	require.NoError(t, err)

	for _, m := range []lpc.Method{lpc.Autocorrelation, lpc.Covariance, lpc.Burg, lpc.Marple} {
		rec := metrics.NewTestRecorder()
		opts := multiThreaded()
		opts.Recorder = rec

		out, err := SoundToLPC(context.Background(), s, m, 8, 0.025, 0.01, opts)
		require.NoError(t, err, m.String())
		for _, f := range out.Frames {
			assert.True(t, f.Valid)
			assert.Equal(t, 0, f.Order, m.String())
			assert.InDelta(t, 0, f.Gain, 0, m.String())
		}
		assert.Equal(t, len(out.Frames), rec.FrameCount(OpSoundToLPC, "degraded"), m.String())
		assert.Equal(t, len(out.Frames), rec.DegradationCount(OpSoundToLPC, "zero_energy"), m.String())
		assert.Equal(t, 1, rec.OperationCount(OpSoundToLPC, statusSuccess))
	}
}

func TestSoundToLPCPreconditions(t *testing.T) {
	t.Parallel()

	sound := resonantNoise(t, 0.1, 2)
	ctx := context.Background()

	tests := []struct {
		name     string
		order    int
		width    float64
		window   string
		category errors.ErrorCategory
	}{
		{"window longer than sound", 10, 0.08, "", errors.CategoryPrecondition},
		{"window too short for order", 60, 0.0025, "", errors.CategoryPrecondition},
		{"zero order", 0, 0.025, "", errors.CategoryPrecondition},
		{"unknown window", 10, 0.025, "blackman", errors.CategoryValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := metrics.NewTestRecorder()
			opts := Options{Window: tt.window, Recorder: rec}
			_, err := SoundToLPC(ctx, sound, lpc.Burg, tt.order, tt.width, 0.01, opts)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "got %v", err)
			assert.Equal(t, 1, rec.OperationCount(OpSoundToLPC, statusError))
		})
	}
}

func TestSoundToLPCCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := metrics.NewTestRecorder()
	opts := multiThreaded()
	opts.Recorder = rec
	out, err := SoundToLPC(ctx, resonantNoise(t, 0.3, 3), lpc.Burg, 10, 0.025, 0.01, opts)
	require.Error(t, err)
	assert.True(t, errors.IsCancellation(err))
	require.NotNil(t, out)
	assert.Equal(t, 0, out.NumberOfValidFrames())
	assert.Equal(t, 1, rec.OperationCount(OpSoundToLPC, statusCancelled))
	assert.Equal(t, len(out.Frames), rec.FrameCount(OpSoundToLPC, "invalid"))
}

func TestSoundToLPCProgressCancelKeepsFinishedFrames(t *testing.T) {
	t.Parallel()

	calls := 0
	opts := singleThreaded()
	opts.Threads.Progress = func(float64) bool {
		calls++
		return calls <= 3
	}

	out, err := SoundToLPC(context.Background(), resonantNoise(t, 0.3, 4), lpc.Autocorrelation, 10, 0.025, 0.01, opts)
	require.Error(t, err)
	assert.True(t, errors.IsCancellation(err))
	for i, f := range out.Frames {
		assert.Equal(t, i < 3, f.Valid, "frame %d", i)
	}
}

func TestSoundToLPCRobust(t *testing.T) {
	t.Parallel()

	sound := resonantNoise(t, 0.3, 5)
	var fractions []float64
	opts := singleThreaded()
	opts.Threads.Progress = func(f float64) bool {
		fractions = append(fractions, f)
		return true
	}

	out, err := SoundToLPC(context.Background(), sound, lpc.Robust, 4, 0.025, 0.01, opts)
	require.NoError(t, err)
	assert.Equal(t, len(out.Frames), out.NumberOfValidFrames())
	for _, f := range out.Frames {
		assert.Equal(t, 4, f.Order)
		assert.Greater(t, f.Gain, 0.0)
	}

	// both passes report into one monotonic range
	require.NotEmpty(t, fractions)
	for i := 1; i < len(fractions); i++ {
		assert.Greater(t, fractions[i], fractions[i-1])
	}
	assert.InDelta(t, 1.0, fractions[len(fractions)-1], 0)
	assert.Contains(t, fractions, 0.5)

	multi, err := SoundToLPCRobust(context.Background(), sound, 4, 0.025, 0.01, robust.DefaultParams(), multiThreaded())
	require.NoError(t, err)
	assert.Equal(t, out.Frames, multi.Frames)
}

func TestRefineLPCRobustPreconditions(t *testing.T) {
	t.Parallel()

	sound := resonantNoise(t, 0.3, 6)
	model, err := SoundToLPC(context.Background(), sound, lpc.Autocorrelation, 4, 0.025, 0.01, singleThreaded())
	require.NoError(t, err)

	other, err := signal.NewMono(make([]float64, 2*sound.Nx()), 2*testRate)
	require.NoError(t, err)
	_, err = RefineLPCRobust(context.Background(), model, other, 0.025, robust.DefaultParams(), singleThreaded())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPrecondition))

	bad := robust.DefaultParams()
	bad.K = 0
	_, err = RefineLPCRobust(context.Background(), model, sound, 0.025, bad, singleThreaded())
	require.Error(t, err)
}

func TestRefineLPCRobustSkipsInvalidFrames(t *testing.T) {
	t.Parallel()

	sound := resonantNoise(t, 0.3, 7)
	model, err := SoundToLPC(context.Background(), sound, lpc.Autocorrelation, 4, 0.025, 0.01, singleThreaded())
	require.NoError(t, err)
	model.Frames[2] = lpc.Frame{}

	out, err := RefineLPCRobust(context.Background(), model, sound, 0.025, robust.DefaultParams(), multiThreaded())
	require.NoError(t, err)
	assert.False(t, out.Frames[2].Valid)
	assert.Equal(t, len(out.Frames)-1, out.NumberOfValidFrames())
}

func meanFormants(t *testing.T, f *formant.Formant) (f1, f2 float64) {
	t.Helper()
	n := 0
	for _, fr := range f.Frames {
		require.True(t, fr.Valid)
		if len(fr.Formants) < 2 {
			continue
		}
		f1 += fr.Formants[0].Frequency
		f2 += fr.Formants[1].Frequency
		n++
	}
	require.Greater(t, n, len(f.Frames)/2)
	return f1 / float64(n), f2 / float64(n)
}

func TestSoundToFormantBurg(t *testing.T) {
	t.Parallel()

	sound := resonantNoise(t, 0.5, 8)
	out, err := SoundToFormantBurg(context.Background(), sound, 2, 0.025, 0.01, 50, multiThreaded())
	require.NoError(t, err)
	assert.Equal(t, 2, out.MaxFormants)

	f1, f2 := meanFormants(t, out)
	assert.InDelta(t, 500, f1, 50)
	assert.InDelta(t, 1500, f2, 100)

	// the combined pass agrees with the two step pipeline
	model, err := SoundToLPC(context.Background(), sound, lpc.Burg, 4, 0.025, 0.01, singleThreaded())
	require.NoError(t, err)
	twoStep, err := LPCToFormant(context.Background(), model, 50, singleThreaded())
	require.NoError(t, err)
	require.Len(t, twoStep.Frames, len(out.Frames))
	for i := range out.Frames {
		assert.Equal(t, len(twoStep.Frames[i].Formants), len(out.Frames[i].Formants), "frame %d", i)
		for k := range out.Frames[i].Formants {
			assert.InDelta(t, twoStep.Frames[i].Formants[k].Frequency, out.Frames[i].Formants[k].Frequency, 1e-6)
		}
	}
}

func TestSoundToFormantBurgDefaultTimeStep(t *testing.T) {
	t.Parallel()

	out, err := SoundToFormantBurg(context.Background(), resonantNoise(t, 0.3, 9), 2, 0.04, 0, 50, singleThreaded())
	require.NoError(t, err)
	assert.InDelta(t, 0.01, out.Sampling.Dx, 1e-15)

	_, err = SoundToFormantBurg(context.Background(), resonantNoise(t, 0.3, 9), 50, 0.04, 0, 50, singleThreaded())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPrecondition))
}

func TestSoundToFormantRobust(t *testing.T) {
	t.Parallel()

	out, err := SoundToFormantRobust(context.Background(), resonantNoise(t, 0.5, 10), 2, 0.025, 0.01, 50,
		robust.DefaultParams(), multiThreaded())
	require.NoError(t, err)
	f1, _ := meanFormants(t, out)
	assert.InDelta(t, 500, f1, 50)
}

func TestFormantRoundTrip(t *testing.T) {
	t.Parallel()

	model, err := SoundToLPC(context.Background(), resonantNoise(t, 0.3, 11), lpc.Burg, 4, 0.025, 0.01, singleThreaded())
	require.NoError(t, err)

	formants, err := LPCToFormant(context.Background(), model, 0, multiThreaded())
	require.NoError(t, err)
	back, err := FormantToLPC(context.Background(), formants, model.SamplingPeriod, multiThreaded())
	require.NoError(t, err)
	require.Len(t, back.Frames, len(model.Frames))

	compared := 0
	for i, f := range model.Frames {
		if 2*len(formants.Frames[i].Formants) != f.Order {
			continue
		}
		compared++
		assert.Equal(t, f.Order, back.Frames[i].Order)
		assert.InDeltaSlice(t, f.A, back.Frames[i].A, 1e-8, "frame %d", i)
		assert.InDelta(t, f.Gain, back.Frames[i].Gain, 0)
	}
	assert.Positive(t, compared)
}

func TestLSFRoundTrip(t *testing.T) {
	t.Parallel()

	for _, order := range []int{9, 10} {
		model, err := SoundToLPC(context.Background(), resonantNoise(t, 0.3, 12), lpc.Burg, order, 0.025, 0.01, singleThreaded())
		require.NoError(t, err)

		rec := metrics.NewTestRecorder()
		opts := multiThreaded()
		opts.Recorder = rec
		lines, err := LPCToLSF(context.Background(), model, 0, opts)
		require.NoError(t, err)
		assert.InDelta(t, testRate/2, lines.MaximumFrequency, 1e-9)
		assert.Equal(t, len(model.Frames), rec.FrameCount(OpLPCToLSF, "ok"))

		for i, f := range lines.Frames {
			require.Len(t, f.Frequencies, order, "frame %d", i)
			for k, v := range f.Frequencies {
				assert.Greater(t, v, 0.0)
				assert.Less(t, v, lines.MaximumFrequency)
				if k > 0 {
					assert.Greater(t, v, f.Frequencies[k-1])
				}
			}
		}

		back, err := LSFToLPC(context.Background(), lines, opts)
		require.NoError(t, err)
		assert.InDelta(t, model.SamplingPeriod, back.SamplingPeriod, 1e-15)
		for i, f := range model.Frames {
			assert.InDeltaSlice(t, f.A, back.Frames[i].A, 1e-7, "order %d frame %d", order, i)
			assert.InDelta(t, 1, back.Frames[i].Gain, 0)
		}
	}
}

func TestConversionsRequireSameGrid(t *testing.T) {
	t.Parallel()

	model, err := SoundToLPC(context.Background(), resonantNoise(t, 0.3, 13), lpc.Burg, 4, 0.025, 0.01, singleThreaded())
	require.NoError(t, err)

	grid := model.Sampling
	grid.Nx++
	err = LPCIntoFormant(context.Background(), model, formant.New(grid, 4), 50, singleThreaded())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPrecondition))

	err = LPCIntoFormant(context.Background(), model, formant.New(model.Sampling, 1), 50, singleThreaded())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPrecondition))

	tooHigh := lpc.New(model.Sampling, formant.MaxOrder, model.SamplingPeriod)
	_, err = LPCToFormant(context.Background(), tooHigh, 50, singleThreaded())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPrecondition))

	_, err = FormantToLPC(context.Background(), formant.New(model.Sampling, 2), 0, singleThreaded())
	require.Error(t, err)
}

func TestFilterRoundTrip(t *testing.T) {
	t.Parallel()

	sound := resonantNoise(t, 0.3, 14)
	model, err := SoundToLPC(context.Background(), sound, lpc.Burg, 4, 0.025, 0.01, singleThreaded())
	require.NoError(t, err)

	residual, err := InverseFilter(model, sound)
	require.NoError(t, err)
	require.Equal(t, sound.Nx(), residual.Nx())

	// the residual of a well fitted model is much whiter, and weaker, than the input
	energy := func(x []float64) float64 {
		e := 0.0
		for _, v := range x {
			e += v * v
		}
		return e
	}
	assert.Less(t, energy(residual.Channels[0]), energy(sound.Channels[0]))

	resynth, err := Filter(model, residual, false)
	require.NoError(t, err)
	require.Equal(t, sound.Nx(), resynth.Nx())
	assert.False(t, math.IsNaN(resynth.Channels[0][sound.Nx()/2]))
}

func TestExport(t *testing.T) {
	t.Parallel()

	model, err := SoundToLPC(context.Background(), resonantNoise(t, 0.1, 15), lpc.Burg, 2, 0.025, 0.01, singleThreaded())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, model, FormatYAML))
	assert.Contains(t, buf.String(), "max_order: 2")
	assert.Contains(t, buf.String(), "frames:")

	buf.Reset()
	require.NoError(t, Export(&buf, model, "JSON"))
	assert.Contains(t, buf.String(), `"sampling_period"`)

	err = Export(&buf, model, "csv")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestCheckMemory(t *testing.T) {
	t.Parallel()

	plenty := func() (uint64, error) { return 1 << 30, nil }
	scarce := func() (uint64, error) { return 1 << 10, nil }
	broken := func() (uint64, error) { return 0, errors.NewStd("no procfs") }

	need := memoryEstimate(1000, 80, 4, 4096)
	assert.Equal(t, uint64(1000*80+4*4096), need)

	require.NoError(t, checkMemory(need, plenty))
	require.NoError(t, checkMemory(need, broken))

	err := checkMemory(need, scarce)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryResource))

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, errors.PriorityHigh, ee.GetPriority())
}

func TestRecordFramesReportsRootFallbacks(t *testing.T) {
	t.Parallel()

	rec := metrics.NewTestRecorder()
	op := startOperation(context.Background(), OpLPCToFormant, Options{Recorder: rec})

	var tally frameTally
	tally.add(true, "")
	tally.add(true, "")
	tally.add(true, "empty_model")
	tally.add(false, "")
	tally.rootFallbacks = 2
	op.recordFrames(tally)

	assert.Equal(t, 2, rec.FrameCount(OpLPCToFormant, "ok"))
	assert.Equal(t, 1, rec.FrameCount(OpLPCToFormant, "degraded"))
	assert.Equal(t, 1, rec.FrameCount(OpLPCToFormant, "invalid"))
	assert.Equal(t, 1, rec.DegradationCount(OpLPCToFormant, "empty_model"))
	assert.Equal(t, 2, rec.DegradationCount(OpLPCToFormant, degradationRootFallback))
}

func TestFormantPassesWithoutRootFallback(t *testing.T) {
	t.Parallel()

	rec := metrics.NewTestRecorder()
	opts := multiThreaded()
	opts.Recorder = rec

	out, err := SoundToFormantBurg(context.Background(), resonantNoise(t, 0.3, 21), 2, 0.025, 0.01, 50, opts)
	require.NoError(t, err)
	require.NotEmpty(t, out.Frames)
	assert.Zero(t, rec.DegradationCount(OpSoundToFormantBurg, degradationRootFallback))
}

func TestWithProgressRange(t *testing.T) {
	t.Parallel()

	var got []float64
	opts := Options{Threads: scheduler.Options{Progress: func(f float64) bool {
		got = append(got, f)
		return true
	}}}

	sub := WithProgressRange(opts, 0.5, 1)
	sub.Threads.Progress(0)
	sub.Threads.Progress(0.5)
	assert.InDeltaSlice(t, []float64{0.5, 0.75}, got, 1e-15)

	assert.Nil(t, WithProgressRange(Options{}, 0, 1).Threads.Progress)
}

func testSettings() *conf.Settings {
	return &conf.Settings{
		Analysis: conf.AnalysisSettings{
			Method:       "burg",
			Order:        4,
			WindowLength: 0.025,
			TimeStep:     0.01,
			SubtractMean: true,
			Window:       "gaussian2",
		},
		Robust:  conf.RobustSettings{K: 1.5, IterMax: 5, Tol: 1e-6},
		Threads: conf.ThreadSettings{Enabled: true, Max: 3, MinFrames: 5},
	}
}

func TestOptionsFromSettings(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Marple.Tol1 = 1e-3
	rec := metrics.NewTestRecorder()

	opts := OptionsFromSettings(settings, rec)
	assert.Equal(t, "gaussian2", opts.Window)
	assert.False(t, opts.KeepMean)
	assert.False(t, opts.Threads.SingleThreaded)
	assert.Equal(t, 3, opts.Threads.MaxThreads)
	assert.Equal(t, 5, opts.Threads.MinFrames)
	assert.Same(t, rec, opts.Recorder)

	tol1, tol2 := opts.marpleTolerances()
	assert.InDelta(t, 1e-3, tol1, 0)
	assert.InDelta(t, lpc.DefaultMarpleTol2, tol2, 0)

	params := RobustParamsFromSettings(settings)
	require.NoError(t, params.Validate())
	assert.Equal(t, 5, params.IterMax)
}

func TestAnalyzeSound(t *testing.T) {
	t.Parallel()

	sound := resonantNoise(t, 0.3, 16)
	settings := testSettings()
	opts := OptionsFromSettings(settings, nil)

	burg, err := AnalyzeSound(context.Background(), sound, settings, opts)
	require.NoError(t, err)
	direct, err := SoundToLPC(context.Background(), sound, lpc.Burg, 4, 0.025, 0.01, singleThreaded())
	require.NoError(t, err)
	assert.Equal(t, direct.Frames, burg.Frames)

	settings.Analysis.Method = "robust"
	refined, err := AnalyzeSound(context.Background(), sound, settings, opts)
	require.NoError(t, err)
	assert.Equal(t, len(refined.Frames), refined.NumberOfValidFrames())

	settings.Analysis.Method = "lattice"
	_, err = AnalyzeSound(context.Background(), sound, settings, opts)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}
