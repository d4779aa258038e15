package signal

import (
	"math"

	"github.com/tphakala/go-lpc/internal/errors"
)

// Sampling describes a regular time grid: Nx points spaced Dx apart, the
// first at X1, within the domain [Xmin, Xmax].
type Sampling struct {
	Xmin float64 `yaml:"xmin" json:"xmin"`
	Xmax float64 `yaml:"xmax" json:"xmax"`
	Nx   int     `yaml:"nx" json:"nx"`
	Dx   float64 `yaml:"dx" json:"dx"`
	X1   float64 `yaml:"x1" json:"x1"`
}

// IndexToX returns the time of the 0-based grid point i.
func (s Sampling) IndexToX(i int) float64 { return s.X1 + float64(i)*s.Dx }

// XToIndex returns the real valued 0-based grid position of x.
func (s Sampling) XToIndex(x float64) float64 { return (x - s.X1) / s.Dx }

// NearestIndex returns the grid point closest to x, clamped to [0, Nx-1].
func (s Sampling) NearestIndex(x float64) int {
	if s.Nx == 0 {
		return 0
	}
	i := int(math.Floor((x-s.X1)/s.Dx + 0.5))
	return min(max(i, 0), s.Nx-1)
}

// Equal reports whether two samplings describe the same grid. Times are
// compared with a tolerance relative to the grid spacing.
func (s Sampling) Equal(o Sampling) bool {
	if s.Nx != o.Nx {
		return false
	}
	tol := 1e-9 * math.Max(math.Abs(s.Dx), math.Abs(o.Dx))
	return math.Abs(s.Dx-o.Dx) <= tol &&
		math.Abs(s.X1-o.X1) <= tol &&
		math.Abs(s.Xmin-o.Xmin) <= tol &&
		math.Abs(s.Xmax-o.Xmax) <= tol
}

// ShortTermAnalysis returns the grid of analysis frames of the given
// physical width taken every timeStep seconds, centred in the sound.
func ShortTermAnalysis(s *Sound, windowDuration, timeStep float64) (Sampling, error) {
	if windowDuration <= 0 || timeStep <= 0 {
		return Sampling{}, errors.PreconditionError("signal",
			"window duration %v and time step %v must be positive", windowDuration, timeStep)
	}
	duration := s.Duration()
	if windowDuration > duration {
		return Sampling{}, errors.New(errors.NewStd("window longer than sound")).
			Component("signal").
			Category(errors.CategoryPrecondition).
			Context("window_duration", windowDuration).
			Context("sound_duration", duration).
			Build()
	}

	nFrames := int(math.Floor((duration-windowDuration)/timeStep)) + 1
	if nFrames < 1 {
		return Sampling{}, errors.PreconditionError("signal",
			"no analysis frame fits a %v s window in a %v s sound", windowDuration, duration)
	}

	mid := s.X1 - 0.5*s.Dx + 0.5*duration
	t1 := mid - 0.5*float64(nFrames-1)*timeStep
	return Sampling{Xmin: s.Xmin, Xmax: s.Xmax, Nx: nFrames, Dx: timeStep, X1: t1}, nil
}

// CheckAnalysisParameters rejects windows that do not fit in the sound or
// that hold too few samples to estimate a model of the given order.
func CheckAnalysisParameters(s *Sound, physicalWidth float64, order int) error {
	if order < 1 {
		return errors.PreconditionError("signal", "prediction order %d must be at least 1", order)
	}
	if physicalWidth > s.Duration() {
		return errors.New(errors.NewStd("analysis window longer than sound")).
			Component("signal").
			Category(errors.CategoryPrecondition).
			Context("window_duration", physicalWidth).
			Context("sound_duration", s.Duration()).
			Build()
	}
	if samples := int(math.Floor(physicalWidth / s.Dx)); samples <= order {
		return errors.New(errors.NewStd("analysis window too short for prediction order")).
			Component("signal").
			Category(errors.CategoryPrecondition).
			Context("window_samples", samples).
			Context("order", order).
			Build()
	}
	return nil
}
