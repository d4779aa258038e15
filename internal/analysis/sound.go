// Package analysis runs the frame-parallel linear prediction operations:
// sound to model analysis, robust refinement and the conversions between
// model, formant and line spectral frequency sequences.
//
// Every operation validates its inputs before any frame is scheduled, runs
// on the scheduler and returns a complete sequence or an error. After a
// cancellation the returned error is of category errors.CategoryCancellation;
// frames finished before the stop are valid, the rest are not.
package analysis

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/formant"
	"github.com/tphakala/go-lpc/internal/frames"
	"github.com/tphakala/go-lpc/internal/logger"
	"github.com/tphakala/go-lpc/internal/lpc"
	"github.com/tphakala/go-lpc/internal/robust"
	"github.com/tphakala/go-lpc/internal/scheduler"
	"github.com/tphakala/go-lpc/internal/signal"
	"github.com/tphakala/go-lpc/internal/window"
)

const float64Size = 8

// requireSoundMatches rejects a sound whose domain or sampling period does
// not match the model sequence.
func requireSoundMatches(sound *signal.Sound, grid signal.Sampling, samplingPeriod float64) error {
	tol := 1e-9 * sound.Dx
	if math.Abs(sound.Dx-samplingPeriod) > tol {
		return errors.New(errors.NewStd("sampling periods of sound and model differ")).
			Component("analysis").
			Category(errors.CategoryPrecondition).
			Context("sound_period", sound.Dx).
			Context("model_period", samplingPeriod).
			Build()
	}
	if math.Abs(sound.Xmin-grid.Xmin) > tol || math.Abs(sound.Xmax-grid.Xmax) > tol {
		return errors.New(errors.NewStd("domains of sound and model differ")).
			Component("analysis").
			Category(errors.CategoryPrecondition).
			Context("sound_domain", [2]float64{sound.Xmin, sound.Xmax}).
			Context("model_domain", [2]float64{grid.Xmin, grid.Xmax}).
			Build()
	}
	return nil
}

// analysisGrid validates the analysis parameters and returns the frame grid.
func analysisGrid(sound *signal.Sound, shape window.Shape, order int, effectiveWidth, dt float64) (signal.Sampling, error) {
	if sound == nil || sound.Nx() == 0 {
		return signal.Sampling{}, errors.PreconditionError("analysis", "sound has no samples")
	}
	if effectiveWidth <= 0 {
		return signal.Sampling{}, errors.PreconditionError("analysis",
			"window length %v must be positive", effectiveWidth)
	}
	physical := effectiveWidth * shape.PhysicalWidthFactor()
	if err := signal.CheckAnalysisParameters(sound, physical, order); err != nil {
		return signal.Sampling{}, err
	}
	return signal.ShortTermAnalysis(sound, physical, dt)
}

// SoundToLPC estimates a model of at most order coefficients for every
// frame of sound. Frames are effectiveWidth seconds long, in the sense of
// the window shape in opts, and taken every dt seconds. lpc.Robust runs the
// autocorrelation method followed by robust refinement with default
// parameters.
func SoundToLPC(ctx context.Context, sound *signal.Sound, method lpc.Method, order int, effectiveWidth, dt float64, opts Options) (*lpc.LPC, error) {
	if method == lpc.Robust {
		return SoundToLPCRobust(ctx, sound, order, effectiveWidth, dt, robust.DefaultParams(), opts)
	}

	shape, err := opts.shape()
	if err != nil {
		return nil, startOperation(ctx, OpSoundToLPC, opts).fail(err)
	}
	grid, err := analysisGrid(sound, shape, order, effectiveWidth, dt)
	if err != nil {
		return nil, startOperation(ctx, OpSoundToLPC, opts).fail(err)
	}

	out := lpc.New(grid, order, sound.Dx)
	return out, SoundIntoLPC(ctx, sound, out, method, effectiveWidth, opts)
}

// lpcWorkspace is the per-thread state of sound analysis.
type lpcWorkspace struct {
	extractor *frames.Extractor
	estimator *lpc.Workspace
	a         []float64
}

// SoundIntoLPC analyses sound into the frames of an existing sequence. The
// sequence must share the sound's domain and sampling period.
func SoundIntoLPC(ctx context.Context, sound *signal.Sound, out *lpc.LPC, method lpc.Method, effectiveWidth float64, opts Options) error {
	op := startOperation(ctx, OpSoundToLPC, opts)
	if method == lpc.Robust {
		return op.fail(errors.ValidationError("analysis", "robust analysis needs a starting model, use SoundToLPCRobust"))
	}
	if err := requireSoundMatches(sound, out.Sampling, out.SamplingPeriod); err != nil {
		return op.fail(err)
	}
	shape, err := opts.shape()
	if err != nil {
		return op.fail(err)
	}
	cfg, err := frames.NewConfigOnGrid(sound, out.Sampling, shape, effectiveWidth, !opts.KeepMean)
	if err != nil {
		return op.fail(err)
	}
	if err := signal.CheckAnalysisParameters(sound, cfg.PhysicalWidth, out.MaxOrder); err != nil {
		return op.fail(err)
	}
	if err := op.preflight(cfg.NumberOfFrames(), out.MaxOrder*float64Size,
		scheduler.DefaultMinFrames, (cfg.Size*4+out.MaxOrder*6)*float64Size); err != nil {
		return op.fail(err)
	}

	op.log.Debug("analysing sound",
		logger.String("method", method.String()),
		logger.Int("order", out.MaxOrder),
		logger.Int("frames", cfg.NumberOfFrames()),
		logger.Int("frame_size", cfg.Size))

	tol1, tol2 := opts.marpleTolerances()
	stats, err := run(op, scheduler.Job[*lpcWorkspace]{
		Frames: cfg.NumberOfFrames(),
		NewWorkspace: func(*scheduler.Thread) (*lpcWorkspace, error) {
			est, err := lpc.NewWorkspace(out.MaxOrder, cfg.Size)
			if err != nil {
				return nil, err
			}
			est.Tol1, est.Tol2 = tol1, tol2
			return &lpcWorkspace{
				extractor: cfg.NewExtractor(),
				estimator: est,
				a:         make([]float64, out.MaxOrder),
			}, nil
		},
		Process: func(ws *lpcWorkspace, i int) error {
			x := ws.extractor.Extract(i)
			res, err := ws.estimator.Estimate(method, x, ws.a)
			if err != nil {
				return err
			}
			out.Publish(i, res.Order, ws.a[:res.Order], res.Gain, res.Info)
			return nil
		},
	})
	op.recordFrames(tallyLPC(out, method))
	return op.finish(stats, err)
}

// SoundToLPCRobust runs the autocorrelation method and refines every frame
// with iteratively reweighted least squares.
func SoundToLPCRobust(ctx context.Context, sound *signal.Sound, order int, effectiveWidth, dt float64, params robust.Params, opts Options) (*lpc.LPC, error) {
	if err := params.Validate(); err != nil {
		return nil, startOperation(ctx, OpRefineLPCRobust, opts).fail(err)
	}
	start, err := SoundToLPC(ctx, sound, lpc.Autocorrelation, order, effectiveWidth, dt, WithProgressRange(opts, 0, 0.5))
	if err != nil {
		return nil, err
	}
	return RefineLPCRobust(ctx, start, sound, effectiveWidth, params, WithProgressRange(opts, 0.5, 1))
}

// robustWorkspace is the per-thread state of robust refinement.
type robustWorkspace struct {
	extractor *frames.Extractor
	refiner   *robust.Workspace
	a         []float64
}

// RefineLPCRobust returns a copy of in with every valid frame re-estimated
// from sound by robust refinement. Frames of in that are not valid stay
// invalid.
func RefineLPCRobust(ctx context.Context, in *lpc.LPC, sound *signal.Sound, effectiveWidth float64, params robust.Params, opts Options) (*lpc.LPC, error) {
	op := startOperation(ctx, OpRefineLPCRobust, opts)
	if err := params.Validate(); err != nil {
		return nil, op.fail(err)
	}
	if err := requireSoundMatches(sound, in.Sampling, in.SamplingPeriod); err != nil {
		return nil, op.fail(err)
	}
	shape, err := opts.shape()
	if err != nil {
		return nil, op.fail(err)
	}
	cfg, err := frames.NewConfigOnGrid(sound, in.Sampling, shape, effectiveWidth, !opts.KeepMean)
	if err != nil {
		return nil, op.fail(err)
	}
	if err := signal.CheckAnalysisParameters(sound, cfg.PhysicalWidth, in.MaxOrder); err != nil {
		return nil, op.fail(err)
	}
	p := in.MaxOrder
	if err := op.preflight(cfg.NumberOfFrames(), p*float64Size,
		scheduler.DefaultMinFrames, (cfg.Size*4+p*p+p*8)*float64Size); err != nil {
		return nil, op.fail(err)
	}

	out := lpc.New(in.Sampling, p, in.SamplingPeriod)
	stats, err := run(op, scheduler.Job[*robustWorkspace]{
		Frames: cfg.NumberOfFrames(),
		NewWorkspace: func(*scheduler.Thread) (*robustWorkspace, error) {
			refiner, err := robust.NewWorkspace(p, cfg.Size, params)
			if err != nil {
				return nil, err
			}
			return &robustWorkspace{
				extractor: cfg.NewExtractor(),
				refiner:   refiner,
				a:         make([]float64, p),
			}, nil
		},
		Process: func(ws *robustWorkspace, i int) error {
			frame := in.Frames[i]
			if !frame.Valid {
				return nil
			}
			x := ws.extractor.Extract(i)
			res := ws.refiner.Refine(x, frame, ws.a)
			out.Publish(i, res.Order, ws.a[:res.Order], res.Gain, res.Info)
			return nil
		},
	})
	op.recordFrames(tallyLPC(out, lpc.Robust))
	return out, op.finish(stats, err)
}

// formantBurgWorkspace is the per-thread state of the combined Burg and
// formant pass.
type formantBurgWorkspace struct {
	extractor *frames.Extractor
	estimator *lpc.Workspace
	converter *formant.Converter
	a         []float64
}

// SoundToFormantBurg estimates formants in a single sweep: each frame is
// analysed with Burg's method for 2*numberOfFormants poles and converted to
// formants right away. A non-positive dt selects a quarter of the window
// length. The sound is expected at the sampling frequency whose Nyquist
// frequency is the highest formant of interest.
func SoundToFormantBurg(ctx context.Context, sound *signal.Sound, numberOfFormants, effectiveWidth, dt, margin float64, opts Options) (*formant.Formant, error) {
	op := startOperation(ctx, OpSoundToFormantBurg, opts)
	if dt <= 0 {
		dt = effectiveWidth / 4
	}
	poles := int(2 * numberOfFormants)
	if poles < 1 {
		return nil, op.fail(errors.PreconditionError("analysis",
			"number of formants %v gives no poles", numberOfFormants))
	}
	if err := formant.CheckOrder(poles); err != nil {
		return nil, op.fail(err)
	}
	if margin < 0 {
		return nil, op.fail(errors.PreconditionError("analysis", "margin %v must not be negative", margin))
	}
	shape, err := opts.shape()
	if err != nil {
		return nil, op.fail(err)
	}
	grid, err := analysisGrid(sound, shape, poles, effectiveWidth, dt)
	if err != nil {
		return nil, op.fail(err)
	}
	cfg, err := frames.NewConfigOnGrid(sound, grid, shape, effectiveWidth, !opts.KeepMean)
	if err != nil {
		return nil, op.fail(err)
	}
	maxFormants := formant.MaxNumberOfFormants(poles, margin)
	if err := op.preflight(cfg.NumberOfFrames(), maxFormants*2*float64Size,
		scheduler.DefaultMinFrames, (cfg.Size*3+poles*poles+poles*10)*float64Size); err != nil {
		return nil, op.fail(err)
	}

	out := formant.New(grid, maxFormants)
	fs := sound.SamplingFrequency()
	var fallbacks atomic.Int64
	stats, err := run(op, scheduler.Job[*formantBurgWorkspace]{
		Frames: cfg.NumberOfFrames(),
		NewWorkspace: func(*scheduler.Thread) (*formantBurgWorkspace, error) {
			est, err := lpc.NewWorkspace(poles, cfg.Size)
			if err != nil {
				return nil, err
			}
			return &formantBurgWorkspace{
				extractor: cfg.NewExtractor(),
				estimator: est,
				converter: formant.NewConverter(poles),
				a:         make([]float64, poles),
			}, nil
		},
		Process: func(ws *formantBurgWorkspace, i int) error {
			x := ws.extractor.Extract(i)
			res := ws.estimator.Burg(x, ws.a)
			model := lpc.Frame{Order: res.Order, A: ws.a[:res.Order], Gain: res.Gain, Info: res.Info, Valid: true}
			before := ws.converter.FallbackCount()
			formants, info := ws.converter.FromLPC(&model, fs, margin)
			if ws.converter.FallbackCount() != before {
				fallbacks.Add(1)
			}
			out.Publish(i, formants, res.Gain, info)
			return nil
		},
	})
	tally := tallyFormant(out)
	tally.rootFallbacks = int(fallbacks.Load())
	op.recordFrames(tally)
	return out, op.finish(stats, err)
}

// SoundToFormantRobust estimates formants from robustly refined models.
func SoundToFormantRobust(ctx context.Context, sound *signal.Sound, numberOfFormants, effectiveWidth, dt, margin float64, params robust.Params, opts Options) (*formant.Formant, error) {
	if dt <= 0 {
		dt = effectiveWidth / 4
	}
	poles := int(2 * numberOfFormants)
	if err := formant.CheckOrder(poles); err != nil {
		return nil, startOperation(ctx, OpSoundToFormantRobust, opts).fail(err)
	}
	model, err := SoundToLPCRobust(ctx, sound, poles, effectiveWidth, dt, params, WithProgressRange(opts, 0, 0.8))
	if err != nil {
		return nil, err
	}
	return LPCToFormant(ctx, model, margin, WithProgressRange(opts, 0.8, 1))
}

func tallyLPC(l *lpc.LPC, method lpc.Method) frameTally {
	var t frameTally
	for i := range l.Frames {
		f := &l.Frames[i]
		t.add(f.Valid, lpc.DegradationKind(method, f.Info))
	}
	return t
}
