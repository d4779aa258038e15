package analysis

import (
	"context"
	"sync/atomic"

	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/formant"
	"github.com/tphakala/go-lpc/internal/lpc"
	"github.com/tphakala/go-lpc/internal/lsf"
	"github.com/tphakala/go-lpc/internal/scheduler"
	"github.com/tphakala/go-lpc/internal/signal"
)

// LSF info is not an LPC info, so degradations are named here.
const degradationGridExhausted = "grid_exhausted"

// degradationRootsDropped marks LSF frames with fewer frequencies than the
// model order.
const degradationRootsDropped = "roots_dropped"

func requireSameSampling(op string, a, b signal.Sampling) error {
	if a.Equal(b) {
		return nil
	}
	return errors.New(errors.NewStd("frame sequences do not share a time grid")).
		Component("analysis").
		Category(errors.CategoryPrecondition).
		Context("operation", op).
		Context("input_frames", a.Nx).
		Context("output_frames", b.Nx).
		Build()
}

// LPCToFormant converts every valid model of in to formants. Formants closer
// than margin Hz to 0 or the Nyquist frequency are dropped.
func LPCToFormant(ctx context.Context, in *lpc.LPC, margin float64, opts Options) (*formant.Formant, error) {
	if err := formant.CheckOrder(in.MaxOrder); err != nil {
		return nil, startOperation(ctx, OpLPCToFormant, opts).fail(err)
	}
	out := formant.New(in.Sampling, formant.MaxNumberOfFormants(in.MaxOrder, margin))
	return out, LPCIntoFormant(ctx, in, out, margin, opts)
}

// LPCIntoFormant converts in into the frames of an existing formant sequence
// on the same grid.
func LPCIntoFormant(ctx context.Context, in *lpc.LPC, out *formant.Formant, margin float64, opts Options) error {
	op := startOperation(ctx, OpLPCToFormant, opts)
	if err := requireSameSampling(op.name, in.Sampling, out.Sampling); err != nil {
		return op.fail(err)
	}
	if err := formant.CheckOrder(in.MaxOrder); err != nil {
		return op.fail(err)
	}
	if margin < 0 {
		return op.fail(errors.PreconditionError("analysis", "margin %v must not be negative", margin))
	}
	if need := formant.MaxNumberOfFormants(in.MaxOrder, margin); out.MaxFormants < need {
		return op.fail(errors.PreconditionError("analysis",
			"formant sequence holds %d formants per frame, %d needed", out.MaxFormants, need))
	}
	p := in.MaxOrder
	if err := op.preflight(len(in.Frames), 0, scheduler.DefaultMinFrames, (p*p+p*12)*float64Size); err != nil {
		return op.fail(err)
	}

	fs := 1 / in.SamplingPeriod
	var fallbacks atomic.Int64
	stats, err := run(op, scheduler.Job[*formant.Converter]{
		Frames: len(in.Frames),
		NewWorkspace: func(*scheduler.Thread) (*formant.Converter, error) {
			return formant.NewConverter(p), nil
		},
		Process: func(c *formant.Converter, i int) error {
			frame := &in.Frames[i]
			if !frame.Valid {
				return nil
			}
			before := c.FallbackCount()
			formants, info := c.FromLPC(frame, fs, margin)
			if c.FallbackCount() != before {
				fallbacks.Add(1)
			}
			out.Publish(i, formants, frame.Gain, info)
			return nil
		},
	})
	tally := tallyFormant(out)
	tally.rootFallbacks = int(fallbacks.Load())
	op.recordFrames(tally)
	return op.finish(stats, err)
}

// FormantToLPC builds the all-pole model of every valid formant frame. A
// frame with n formants gives a model of order 2n with the frame intensity
// as gain.
func FormantToLPC(ctx context.Context, in *formant.Formant, samplingPeriod float64, opts Options) (*lpc.LPC, error) {
	if samplingPeriod <= 0 {
		return nil, startOperation(ctx, OpFormantToLPC, opts).fail(
			errors.PreconditionError("analysis", "sampling period %v must be positive", samplingPeriod))
	}
	out := lpc.New(in.Sampling, 2*in.MaxFormants, samplingPeriod)
	return out, FormantIntoLPC(ctx, in, out, opts)
}

type synthesisWorkspace struct {
	synth *formant.Synthesizer
	a     []float64
}

// FormantIntoLPC synthesizes in into the frames of an existing model
// sequence on the same grid.
func FormantIntoLPC(ctx context.Context, in *formant.Formant, out *lpc.LPC, opts Options) error {
	op := startOperation(ctx, OpFormantToLPC, opts)
	if err := requireSameSampling(op.name, in.Sampling, out.Sampling); err != nil {
		return op.fail(err)
	}
	if out.SamplingPeriod <= 0 {
		return op.fail(errors.PreconditionError("analysis",
			"sampling period %v must be positive", out.SamplingPeriod))
	}
	if out.MaxOrder < 2*in.MaxFormants {
		return op.fail(errors.PreconditionError("analysis",
			"model order %d cannot hold %d formants", out.MaxOrder, in.MaxFormants))
	}

	stats, err := run(op, scheduler.Job[*synthesisWorkspace]{
		Frames:    len(in.Frames),
		MinFrames: scheduler.SynthesisMinFrames,
		NewWorkspace: func(*scheduler.Thread) (*synthesisWorkspace, error) {
			return &synthesisWorkspace{
				synth: formant.NewSynthesizer(in.MaxFormants),
				a:     make([]float64, out.MaxOrder),
			}, nil
		},
		Process: func(ws *synthesisWorkspace, i int) error {
			frame := &in.Frames[i]
			if !frame.Valid {
				return nil
			}
			if len(frame.Formants) == 0 {
				out.Publish(i, 0, nil, 0, lpc.InfoOK)
				return nil
			}
			n := ws.synth.ToLPC(frame.Formants, out.SamplingPeriod, ws.a)
			out.Publish(i, n, ws.a[:n], frame.Intensity, lpc.InfoOK)
			return nil
		},
	})
	op.recordFrames(tallyLPC(out, lpc.Autocorrelation))
	return op.finish(stats, err)
}

// LPCToLSF converts every valid model of in to line spectral frequencies.
// gridSize is the initial root search cell in the cosine domain; a
// non-positive value selects lsf.DefaultGridSize.
func LPCToLSF(ctx context.Context, in *lpc.LPC, gridSize float64, opts Options) (*lsf.LSF, error) {
	out := lsf.New(in.Sampling, in.MaxOrder, in.NyquistFrequency())
	return out, LPCIntoLSF(ctx, in, out, gridSize, opts)
}

// LPCIntoLSF converts in into the frames of an existing LSF sequence on the
// same grid.
func LPCIntoLSF(ctx context.Context, in *lpc.LPC, out *lsf.LSF, gridSize float64, opts Options) error {
	op := startOperation(ctx, OpLPCToLSF, opts)
	if err := requireSameSampling(op.name, in.Sampling, out.Sampling); err != nil {
		return op.fail(err)
	}
	if out.MaxFrequencies < in.MaxOrder {
		return op.fail(errors.PreconditionError("analysis",
			"LSF sequence holds %d frequencies per frame, %d needed", out.MaxFrequencies, in.MaxOrder))
	}
	if gridSize <= 0 {
		gridSize = lsf.DefaultGridSize
	}

	stats, err := run(op, scheduler.Job[*lsf.Analyzer]{
		Frames: len(in.Frames),
		NewWorkspace: func(*scheduler.Thread) (*lsf.Analyzer, error) {
			return lsf.NewAnalyzer(in.MaxOrder), nil
		},
		Process: func(an *lsf.Analyzer, i int) error {
			frame := &in.Frames[i]
			if !frame.Valid {
				return nil
			}
			freqs, info := an.FromLPC(frame, gridSize, out.MaximumFrequency)
			out.Publish(i, freqs, info)
			return nil
		},
	})

	var t frameTally
	for i := range out.Frames {
		f := &out.Frames[i]
		kind := ""
		switch {
		case !f.Valid:
		case f.Info == lsf.InfoGridExhausted:
			kind = degradationGridExhausted
		case len(f.Frequencies) < in.Frames[i].Order:
			kind = degradationRootsDropped
		}
		t.add(f.Valid, kind)
	}
	op.recordFrames(t)
	return op.finish(stats, err)
}

type lsfSynthesisWorkspace struct {
	synth *lsf.Synthesizer
	a     []float64
}

// LSFToLPC rebuilds the models of every valid frame of in. The sampling
// period follows from the maximum frequency; the models have unit gain.
func LSFToLPC(ctx context.Context, in *lsf.LSF, opts Options) (*lpc.LPC, error) {
	op := startOperation(ctx, OpLSFToLPC, opts)
	if in.MaximumFrequency <= 0 {
		return nil, op.fail(errors.PreconditionError("analysis",
			"maximum frequency %v must be positive", in.MaximumFrequency))
	}

	out := lpc.New(in.Sampling, in.MaxFrequencies, 0.5/in.MaximumFrequency)
	stats, err := run(op, scheduler.Job[*lsfSynthesisWorkspace]{
		Frames: len(in.Frames),
		NewWorkspace: func(*scheduler.Thread) (*lsfSynthesisWorkspace, error) {
			return &lsfSynthesisWorkspace{
				synth: lsf.NewSynthesizer(in.MaxFrequencies),
				a:     make([]float64, in.MaxFrequencies),
			}, nil
		},
		Process: func(ws *lsfSynthesisWorkspace, i int) error {
			frame := &in.Frames[i]
			if !frame.Valid {
				return nil
			}
			n := ws.synth.ToLPC(frame.Frequencies, in.MaximumFrequency, ws.a)
			gain := 1.0
			if n == 0 {
				gain = 0
			}
			out.Publish(i, n, ws.a[:n], gain, lpc.InfoOK)
			return nil
		},
	})
	op.recordFrames(tallyLPC(out, lpc.Autocorrelation))
	return out, op.finish(stats, err)
}

func tallyFormant(f *formant.Formant) frameTally {
	var t frameTally
	for i := range f.Frames {
		fr := &f.Frames[i]
		kind := ""
		switch fr.Info {
		case formant.InfoEmptyModel:
			kind = "empty_model"
		case formant.InfoRootsFailed:
			kind = "roots_failed"
		}
		t.add(fr.Valid, kind)
	}
	return t
}
