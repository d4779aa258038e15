// Package filter implements the filter command, which writes the
// prediction residual of a sound or drives its models with a source.
package filter

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/go-lpc/cmd/flags"
	"github.com/tphakala/go-lpc/internal/analysis"
	"github.com/tphakala/go-lpc/internal/conf"
	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/logger"
	"github.com/tphakala/go-lpc/internal/lpc"
	"github.com/tphakala/go-lpc/internal/signal"
)

// Filter modes.
const (
	ModeInverse   = "inverse"
	ModeSynthesis = "synthesis"
)

// peakLimit is the level a clipping output is scaled down to.
const peakLimit = 0.99

// Options selects what the filter command writes.
type Options struct {
	Mode    string
	Source  string // sound driving the synthesis filter, empty uses the residual
	UseGain bool

	// SingleFrame filters the whole sound with the model nearest FrameAt
	// seconds instead of the time varying models.
	SingleFrame bool
	FrameAt     float64
}

// Command creates the filter command.
func Command(ctx *conf.Context) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "filter [input] [output.wav]",
		Short: "Inverse filter a sound or resynthesize it from its models",
		Long: `Analyze the input sound and filter with the estimated models. Inverse
mode writes the prediction residual. Synthesis mode filters a source sound,
or the residual when no source is given, with the all-pole models.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.SingleFrame = cmd.Flags().Changed("frame-at")
			return Run(cmd.Context(), ctx, args[0], args[1], opts)
		},
	}

	setupFlags(cmd, &opts)

	return cmd
}

// setupFlags configures flags specific to the filter command.
func setupFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVar(&opts.Mode, "mode", ModeInverse, "Filter mode: inverse or synthesis")
	cmd.Flags().StringVar(&opts.Source, "source", "", "Source sound for synthesis, same sampling frequency as the input")
	cmd.Flags().BoolVar(&opts.UseGain, "use-gain", false, "Scale the synthesis output by the interpolated frame gain")
	cmd.Flags().Float64Var(&opts.FrameAt, "frame-at", 0, "Filter with the single model nearest this time in seconds")
	flags.Analysis(cmd)
}

// Run analyses input and writes the filtered sound to output as WAV.
func Run(c context.Context, ctx *conf.Context, input, output string, opts Options) error {
	log := logger.Global().Module("filter")

	sound, err := signal.ReadFile(input)
	if err != nil {
		return err
	}
	model, err := analysis.AnalyzeSound(c, sound, ctx.Settings, analysis.OptionsFromSettings(ctx.Settings, ctx.Recorder))
	if err != nil {
		return err
	}

	var out *signal.Sound
	switch strings.ToLower(opts.Mode) {
	case ModeInverse:
		out, err = inverse(model, sound, opts)
	case ModeSynthesis:
		source := sound
		if opts.Source != "" {
			source, err = signal.ReadFile(opts.Source)
		} else {
			source, err = inverse(model, sound, opts)
		}
		if err != nil {
			return err
		}
		out, err = synthesize(model, source, opts)
	default:
		err = errors.ValidationError("filter", "unknown filter mode %q, expected inverse or synthesis", opts.Mode)
	}
	if err != nil {
		return err
	}

	if peak := out.Peak(); peak > 1 {
		log.Warn("output clips, scaling down",
			logger.Float64("peak", peak),
			logger.Float64("limit", peakLimit))
		out = scale(out, peakLimit/peak)
	}

	if err := out.WriteWAV(output); err != nil {
		return err
	}
	log.Info("filtered sound written",
		logger.String("file", output),
		logger.String("mode", opts.Mode),
		logger.Int("samples", out.Nx()))
	return nil
}

func inverse(model *lpc.LPC, s *signal.Sound, opts Options) (*signal.Sound, error) {
	if opts.SingleFrame {
		logger.Global().Module("filter").Debug("inverse filtering with one frame",
			logger.Float64("time", opts.FrameAt))
		return lpc.InverseFilterWithFrameAt(model, s, opts.FrameAt)
	}
	return analysis.InverseFilter(model, s)
}

func synthesize(model *lpc.LPC, s *signal.Sound, opts Options) (*signal.Sound, error) {
	if opts.SingleFrame {
		logger.Global().Module("filter").Debug("filtering with one frame",
			logger.Float64("time", opts.FrameAt))
		return lpc.FilterWithFrameAt(model, s, opts.FrameAt)
	}
	return analysis.Filter(model, s, opts.UseGain)
}

// scale returns a copy of s with every sample multiplied by factor.
func scale(s *signal.Sound, factor float64) *signal.Sound {
	channels := make([][]float64, len(s.Channels))
	for c, ch := range s.Channels {
		scaled := make([]float64, len(ch))
		for i, v := range ch {
			scaled[i] = v * factor
		}
		channels[c] = scaled
	}
	scaledSound := *s
	scaledSound.Channels = channels
	return &scaledSound
}
