package lpc

import (
	"math"
	"slices"

	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/signal"
)

// InverseFilterInPlace replaces x by the prediction residual of the model
// a, assuming silence before x[0].
func InverseFilterInPlace(x, a []float64) {
	p := len(a)
	for i := len(x) - 1; i >= 0; i-- {
		depth := min(p, i)
		sum := x[i]
		for j := 1; j <= depth; j++ {
			sum += a[j-1] * x[i-j]
		}
		x[i] = sum
	}
}

// FilterInPlace runs the all-pole synthesis filter 1/A(z) over y, assuming
// silence before y[0].
func FilterInPlace(y, a []float64) {
	p := len(a)
	for i := range y {
		depth := min(p, i)
		for j := 1; j <= depth; j++ {
			y[i] -= a[j-1] * y[i-j]
		}
	}
}

func requireSamePeriod(l *LPC, s *signal.Sound) error {
	if math.Abs(l.SamplingPeriod-s.Dx) > 1e-12*s.Dx {
		return errors.New(errors.NewStd("sampling periods of model and sound differ")).
			Component("lpc").
			Category(errors.CategoryPrecondition).
			Context("model_period", l.SamplingPeriod).
			Context("sound_period", s.Dx).
			Build()
	}
	return nil
}

// nearestFrame returns the frame closest to time x, or -1 when x lies more
// than half a time step outside the grid.
func (l *LPC) nearestFrame(x float64) int {
	i := int(math.Round(l.Sampling.XToIndex(x)))
	if i < 0 || i >= len(l.Frames) {
		return -1
	}
	return i
}

// InverseFilter returns the residual of the channel averaged sound, each
// sample filtered with the model of the nearest frame. Samples without a
// nearby frame are zero.
func InverseFilter(l *LPC, s *signal.Sound) (*signal.Sound, error) {
	if err := requireSamePeriod(l, s); err != nil {
		return nil, err
	}
	nx := s.Nx()
	src := make([]float64, nx)
	for i := range src {
		src[i] = s.Mono(i)
	}
	out := make([]float64, nx)
	for i := range out {
		fi := l.nearestFrame(s.IndexToX(i))
		if fi < 0 {
			continue
		}
		f := &l.Frames[fi]
		sum := src[i]
		for j := 1; j <= min(f.Order, i); j++ {
			sum += f.A[j-1] * src[i-j]
		}
		out[i] = sum
	}
	return s.WithSamples(out), nil
}

// Filter drives the synthesis filter of the nearest frame with the channel
// averaged sound. With useGain the output is scaled by the square root of
// the frame gains, interpolated linearly between frame centres.
func Filter(l *LPC, s *signal.Sound, useGain bool) (*signal.Sound, error) {
	if err := requireSamePeriod(l, s); err != nil {
		return nil, err
	}
	xmin := math.Max(l.Sampling.Xmin, s.Xmin)
	xmax := math.Min(l.Sampling.Xmax, s.Xmax)
	if xmin >= xmax {
		return nil, errors.Newf("domains of sound [%v, %v] and model [%v, %v] do not overlap",
			s.Xmin, s.Xmax, l.Sampling.Xmin, l.Sampling.Xmax).
			Component("lpc").
			Category(errors.CategoryPrecondition).
			Build()
	}

	nx := s.Nx()
	y := make([]float64, nx)
	for i := range y {
		y[i] = s.Mono(i)
	}
	first := max(0, int(math.Ceil((xmin-s.X1)/s.Dx)))
	last := min(nx-1, int(math.Floor((xmax-s.X1)/s.Dx)))

	for i := first; i <= last; i++ {
		fi := l.nearestFrame(s.IndexToX(i))
		if fi < 0 {
			y[i] = 0
			continue
		}
		f := &l.Frames[fi]
		for j := 1; j <= min(f.Order, i); j++ {
			y[i] -= f.A[j-1] * y[i-j]
		}
	}
	clear(y[:min(first, nx)])
	if last+1 < nx {
		clear(y[max(last+1, 0):])
	}

	if useGain {
		nf := len(l.Frames)
		for i := first; i <= last; i++ {
			pos := l.Sampling.XToIndex(s.IndexToX(i))
			left := int(math.Floor(pos))
			right := left + 1
			phase := pos - float64(left)
			switch {
			case right < 0 || left > nf-1:
				y[i] = 0
			case right == 0:
				y[i] *= math.Sqrt(l.Frames[0].Gain) * phase
			case left == nf-1:
				y[i] *= math.Sqrt(l.Frames[nf-1].Gain) * (1 - phase)
			default:
				y[i] *= phase*math.Sqrt(l.Frames[right].Gain) + (1-phase)*math.Sqrt(l.Frames[left].Gain)
			}
		}
	}
	return s.WithSamples(y), nil
}

func (l *LPC) frameAt(t float64) *Frame {
	i := l.Sampling.NearestIndex(t)
	return &l.Frames[i]
}

// FilterWithFrameAt filters every channel of s with the single model closest
// to time t. Times outside the grid use the first or last frame.
func FilterWithFrameAt(l *LPC, s *signal.Sound, t float64) (*signal.Sound, error) {
	if len(l.Frames) == 0 {
		return nil, errors.PreconditionError("lpc", "model sequence has no frames")
	}
	f := l.frameAt(t)
	out := cloneSound(s)
	for _, ch := range out.Channels {
		FilterInPlace(ch, f.A)
	}
	return out, nil
}

// InverseFilterWithFrameAt inverse filters every channel of s with the
// single model closest to time t.
func InverseFilterWithFrameAt(l *LPC, s *signal.Sound, t float64) (*signal.Sound, error) {
	if len(l.Frames) == 0 {
		return nil, errors.PreconditionError("lpc", "model sequence has no frames")
	}
	f := l.frameAt(t)
	out := cloneSound(s)
	for _, ch := range out.Channels {
		InverseFilterInPlace(ch, f.A)
	}
	return out, nil
}

func cloneSound(s *signal.Sound) *signal.Sound {
	out := *s
	out.Channels = make([][]float64, len(s.Channels))
	for c, ch := range s.Channels {
		out.Channels[c] = slices.Clone(ch)
	}
	return &out
}
