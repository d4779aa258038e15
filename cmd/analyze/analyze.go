// Package analyze implements the analyze command: a sound file in, a
// sequence of LPC, formant or LSF frames out.
package analyze

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tphakala/go-lpc/cmd/flags"
	"github.com/tphakala/go-lpc/internal/analysis"
	"github.com/tphakala/go-lpc/internal/conf"
	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/formant"
	"github.com/tphakala/go-lpc/internal/logger"
	"github.com/tphakala/go-lpc/internal/lpc"
	"github.com/tphakala/go-lpc/internal/lsf"
	"github.com/tphakala/go-lpc/internal/signal"
	"github.com/tphakala/go-lpc/pkg/spinner"
)

// Output targets.
const (
	TargetLPC     = "lpc"
	TargetFormant = "formant"
	TargetLSF     = "lsf"
)

// Command creates the analyze command.
func Command(ctx *conf.Context) *cobra.Command {
	var (
		target, output string
		progress       bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [input.wav|input.flac]",
		Short: "Estimate LPC, formant or LSF frames of a sound",
		Long: `Analyze a sound frame by frame with linear prediction and export the
frames as YAML or JSON. With --to formant or --to lsf the models are
converted before export.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := Request{Input: args[0], Target: target, Progress: progress}
			return writeOutput(output, cmd.OutOrStdout(), createFile, func(out io.Writer) error {
				return Run(cmd.Context(), ctx, req, out, cmd.ErrOrStderr())
			})
		},
	}

	setupFlags(cmd, &target, &output, &progress)

	return cmd
}

// setupFlags configures flags specific to the analyze command.
func setupFlags(cmd *cobra.Command, target, output *string, progress *bool) {
	cmd.Flags().StringVar(target, "to", TargetLPC, "Output frames: lpc, formant or lsf")
	cmd.Flags().StringVarP(output, "output", "o", "", "Output file, stdout when empty")
	cmd.Flags().BoolVar(progress, "progress", false, "Show a progress indicator on stderr")
	flags.Analysis(cmd)
	flags.String(cmd.Flags(), "format", "f", "output.format", "Output format: yaml or json")
	flags.Float64(cmd.Flags(), "margin", "", "formant.margin", "Formants closer than this many Hz to 0 or Nyquist are dropped")
	flags.Float64(cmd.Flags(), "grid-size", "", "lsf.gridsize", "Initial LSF root search grid size")
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// writeOutput runs write against the file at path, or against stdout when
// path is empty or "-". A failure to close the file is returned unless write
// failed first.
func writeOutput(path string, stdout io.Writer, create func(string) (io.WriteCloser, error), write func(io.Writer) error) (err error) {
	if path == "" || path == "-" {
		return write(stdout)
	}
	f, err := create(path)
	if err != nil {
		return errors.FileError(err, path, 0)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.FileError(cerr, path, 0)
		}
	}()
	return write(f)
}

// summary describes a finished run for the console.
type summary struct {
	target  string
	frames  int
	valid   int
	elapsed time.Duration
}

// Request describes one analyze run.
type Request struct {
	Input    string
	Target   string // TargetLPC, TargetFormant or TargetLSF
	Progress bool
}

// Run analyses the sound file of req and writes the requested frames to out.
// Progress and a one line summary go to status.
func Run(c context.Context, ctx *conf.Context, req Request, out, status io.Writer) error {
	log := logger.Global().Module("analyze")
	settings := ctx.Settings
	start := time.Now()

	sound, err := signal.ReadFile(req.Input)
	if err != nil {
		return err
	}
	log.Info("sound loaded",
		logger.String("file", req.Input),
		logger.Int("channels", sound.NumberOfChannels()),
		logger.Float64("duration", sound.Duration()),
		logger.Float64("sampling_frequency", sound.SamplingFrequency()))

	opts := analysis.OptionsFromSettings(settings, ctx.Recorder)
	stopProgress := func() {}
	if req.Progress {
		sp := spinner.NewSpinner(status)
		opts.Threads.Progress = sp.Update
		stopProgress = sp.Cleanup
	}
	result, s, err := analyze(c, sound, settings, strings.ToLower(req.Target), opts)
	stopProgress()
	if err != nil {
		return err
	}
	if err := analysis.Export(out, result, settings.Output.Format); err != nil {
		return err
	}

	s.elapsed = time.Since(start)
	printSummary(status, s)
	return nil
}

func analyze(c context.Context, sound *signal.Sound, settings *conf.Settings, target string, opts analysis.Options) (any, summary, error) {
	switch target {
	case TargetLPC:
		l, err := analysis.AnalyzeSound(c, sound, settings, opts)
		if err != nil {
			return nil, summary{}, err
		}
		return l, summary{target: target, frames: len(l.Frames), valid: l.NumberOfValidFrames()}, nil

	case TargetFormant:
		f, err := formants(c, sound, settings, opts)
		if err != nil {
			return nil, summary{}, err
		}
		return f, summary{target: target, frames: len(f.Frames), valid: countValid(f.Frames, func(fr *formant.Frame) bool { return fr.Valid })}, nil

	case TargetLSF:
		l, err := analysis.AnalyzeSound(c, sound, settings, analysis.WithProgressRange(opts, 0, 0.5))
		if err != nil {
			return nil, summary{}, err
		}
		lines, err := analysis.LPCToLSF(c, l, settings.LSF.GridSize, analysis.WithProgressRange(opts, 0.5, 1))
		if err != nil {
			return nil, summary{}, err
		}
		return lines, summary{target: target, frames: len(lines.Frames), valid: countValid(lines.Frames, func(fr *lsf.Frame) bool { return fr.Valid })}, nil

	default:
		return nil, summary{}, errors.ValidationError("analyze",
			"unknown output target %q, expected lpc, formant or lsf", target)
	}
}

// formants runs the formant analysis for the configured method. Burg and
// robust analysis use their combined passes; other methods convert the
// models afterwards.
func formants(c context.Context, sound *signal.Sound, settings *conf.Settings, opts analysis.Options) (*formant.Formant, error) {
	a := settings.Analysis
	margin := settings.Formant.Margin
	numberOfFormants := float64(a.Order) / 2

	method, err := lpc.ParseMethod(a.Method)
	if err != nil {
		return nil, err
	}
	switch method {
	case lpc.Burg:
		return analysis.SoundToFormantBurg(c, sound, numberOfFormants, a.WindowLength, a.TimeStep, margin, opts)
	case lpc.Robust:
		return analysis.SoundToFormantRobust(c, sound, numberOfFormants, a.WindowLength, a.TimeStep, margin,
			analysis.RobustParamsFromSettings(settings), opts)
	default:
		l, err := analysis.AnalyzeSound(c, sound, settings, analysis.WithProgressRange(opts, 0, 0.5))
		if err != nil {
			return nil, err
		}
		return analysis.LPCToFormant(c, l, margin, analysis.WithProgressRange(opts, 0.5, 1))
	}
}

func countValid[F any](frames []F, valid func(*F) bool) int {
	n := 0
	for i := range frames {
		if valid(&frames[i]) {
			n++
		}
	}
	return n
}

func printSummary(w io.Writer, s summary) {
	p := message.NewPrinter(language.English)
	_, _ = p.Fprintf(w, "%s: %d frames, %d valid, %v\n", s.target, s.frames, s.valid, s.elapsed.Round(time.Millisecond))
}
