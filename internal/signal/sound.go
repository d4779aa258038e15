// Package signal holds the sampled sound container and the short-term
// analysis grid shared by every frame sequence derived from it.
package signal

import (
	"math"

	"github.com/tphakala/go-lpc/internal/errors"
)

// Sound is an immutable multichannel sampled signal. Sample i of every
// channel is taken at time X1 + i*Dx.
type Sound struct {
	Channels   [][]float64
	Xmin, Xmax float64
	Dx         float64
	X1         float64
}

// New returns a sound starting at time 0 with the first sample at the
// centre of the first sampling period. All channels must have the same length.
func New(channels [][]float64, samplingFrequency float64) (*Sound, error) {
	if samplingFrequency <= 0 || math.IsNaN(samplingFrequency) || math.IsInf(samplingFrequency, 0) {
		return nil, errors.Newf("invalid sampling frequency %v", samplingFrequency).
			Component("signal").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(channels) == 0 {
		return nil, errors.Newf("sound has no channels").
			Component("signal").
			Category(errors.CategoryValidation).
			Build()
	}
	nx := len(channels[0])
	for c, ch := range channels {
		if len(ch) != nx {
			return nil, errors.Newf("channel %d has %d samples, expected %d", c, len(ch), nx).
				Component("signal").
				Category(errors.CategoryValidation).
				Context("channels", len(channels)).
				Build()
		}
	}

	dx := 1 / samplingFrequency
	return &Sound{
		Channels: channels,
		Xmin:     0,
		Xmax:     float64(nx) * dx,
		Dx:       dx,
		X1:       0.5 * dx,
	}, nil
}

// NewMono is a convenience wrapper around New for a single channel.
func NewMono(samples []float64, samplingFrequency float64) (*Sound, error) {
	return New([][]float64{samples}, samplingFrequency)
}

// Nx returns the number of samples per channel.
func (s *Sound) Nx() int {
	if len(s.Channels) == 0 {
		return 0
	}
	return len(s.Channels[0])
}

// NumberOfChannels returns the channel count.
func (s *Sound) NumberOfChannels() int { return len(s.Channels) }

// SamplingFrequency returns 1/Dx.
func (s *Sound) SamplingFrequency() float64 { return 1 / s.Dx }

// Duration returns the time covered by the samples, Nx*Dx.
func (s *Sound) Duration() float64 { return float64(s.Nx()) * s.Dx }

// IndexToX returns the time of the 0-based sample i.
func (s *Sound) IndexToX(i int) float64 { return s.X1 + float64(i)*s.Dx }

// NearestIndex returns the 0-based index of the sample closest to time x.
// Ties round up. The result may lie outside [0, Nx).
func (s *Sound) NearestIndex(x float64) int {
	return int(math.Floor((x-s.X1)/s.Dx + 0.5))
}

// Mono returns the channel average of sample i, or 0 outside the signal.
func (s *Sound) Mono(i int) float64 {
	if i < 0 || i >= s.Nx() {
		return 0
	}
	if len(s.Channels) == 1 {
		return s.Channels[0][i]
	}
	sum := 0.0
	for _, ch := range s.Channels {
		sum += ch[i]
	}
	return sum / float64(len(s.Channels))
}

// Sampling returns the sampling of the sound itself.
func (s *Sound) Sampling() Sampling {
	return Sampling{Xmin: s.Xmin, Xmax: s.Xmax, Nx: s.Nx(), Dx: s.Dx, X1: s.X1}
}

// WithSamples returns a mono sound on the same time axis holding samples.
func (s *Sound) WithSamples(samples []float64) *Sound {
	return &Sound{
		Channels: [][]float64{samples},
		Xmin:     s.Xmin,
		Xmax:     s.Xmax,
		Dx:       s.Dx,
		X1:       s.X1,
	}
}

// Peak returns the largest absolute sample value across all channels.
func (s *Sound) Peak() float64 {
	peak := 0.0
	for _, ch := range s.Channels {
		for _, v := range ch {
			peak = math.Max(peak, math.Abs(v))
		}
	}
	return peak
}
