package analysis

import (
	"context"

	"github.com/tphakala/go-lpc/internal/conf"
	"github.com/tphakala/go-lpc/internal/lpc"
	"github.com/tphakala/go-lpc/internal/observability/metrics"
	"github.com/tphakala/go-lpc/internal/robust"
	"github.com/tphakala/go-lpc/internal/scheduler"
	"github.com/tphakala/go-lpc/internal/signal"
	"github.com/tphakala/go-lpc/internal/window"
)

// Options carries the settings shared by every operation. The zero value
// analyses with a Gaussian window and subtracts the frame mean.
type Options struct {
	// Window names the analysis window; empty selects gaussian2.
	Window string
	// KeepMean disables per-frame mean subtraction.
	KeepMean bool
	// MarpleTol1 and MarpleTol2 override the Marple stop tolerances when positive.
	MarpleTol1, MarpleTol2 float64
	// Threads controls the scheduler, including progress and cancellation.
	Threads scheduler.Options
	// Recorder receives per-run metrics. Nil discards them.
	Recorder metrics.AnalysisRecorder
	// SkipMemoryCheck disables the available memory preflight.
	SkipMemoryCheck bool
}

// OptionsFromSettings maps loaded configuration onto Options.
func OptionsFromSettings(settings *conf.Settings, recorder metrics.AnalysisRecorder) Options {
	return Options{
		Window:     settings.Analysis.Window,
		KeepMean:   !settings.Analysis.SubtractMean,
		MarpleTol1: settings.Marple.Tol1,
		MarpleTol2: settings.Marple.Tol2,
		Threads: scheduler.Options{
			SingleThreaded: !settings.Threads.Enabled,
			MaxThreads:     settings.Threads.Max,
			MinFrames:      settings.Threads.MinFrames,
		},
		Recorder: recorder,
	}
}

// RobustParamsFromSettings returns the IRLS parameters of settings.
func RobustParamsFromSettings(settings *conf.Settings) robust.Params {
	return robust.Params{
		K:            settings.Robust.K,
		IterMax:      settings.Robust.IterMax,
		Tol:          settings.Robust.Tol,
		WantLocation: settings.Robust.WantLocation,
	}
}

// AnalyzeSound estimates the models of sound with the method, order and
// frame layout of settings.
func AnalyzeSound(ctx context.Context, sound *signal.Sound, settings *conf.Settings, opts Options) (*lpc.LPC, error) {
	method, err := lpc.ParseMethod(settings.Analysis.Method)
	if err != nil {
		return nil, startOperation(ctx, OpSoundToLPC, opts).fail(err)
	}
	a := settings.Analysis
	if method == lpc.Robust {
		return SoundToLPCRobust(ctx, sound, a.Order, a.WindowLength, a.TimeStep, RobustParamsFromSettings(settings), opts)
	}
	return SoundToLPC(ctx, sound, method, a.Order, a.WindowLength, a.TimeStep, opts)
}

func (o Options) shape() (window.Shape, error) {
	if o.Window == "" {
		return window.Gaussian2, nil
	}
	return window.Parse(o.Window)
}

func (o Options) recorder() metrics.AnalysisRecorder {
	if o.Recorder == nil {
		return metrics.NoOpRecorder{}
	}
	return o.Recorder
}

func (o Options) marpleTolerances() (tol1, tol2 float64) {
	tol1, tol2 = lpc.DefaultMarpleTol1, lpc.DefaultMarpleTol2
	if o.MarpleTol1 > 0 {
		tol1 = o.MarpleTol1
	}
	if o.MarpleTol2 > 0 {
		tol2 = o.MarpleTol2
	}
	return tol1, tol2
}
