// Package frames cuts windowed analysis frames out of a sound.
//
// A Config is built once per run and shared read-only by all threads; each
// thread owns an Extractor holding the frame buffer it overwrites per frame.
package frames

import (
	"math"

	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/signal"
	"github.com/tphakala/go-lpc/internal/window"
)

// Config describes how frames are taken from a sound.
type Config struct {
	Sound          *signal.Sound
	Grid           signal.Sampling
	Shape          window.Shape
	EffectiveWidth float64
	PhysicalWidth  float64
	Size           int
	SubtractMean   bool
	Window         []float64
}

// NewConfig places frames of the given effective width every timeStep
// seconds, centred in the sound.
func NewConfig(sound *signal.Sound, shape window.Shape, effectiveWidth, timeStep float64, subtractMean bool) (*Config, error) {
	physical := effectiveWidth * shape.PhysicalWidthFactor()
	grid, err := signal.ShortTermAnalysis(sound, physical, timeStep)
	if err != nil {
		return nil, err
	}
	return NewConfigOnGrid(sound, grid, shape, effectiveWidth, subtractMean)
}

// NewConfigOnGrid takes frames at the centres of an existing grid, e.g. the
// frame times of a model sequence that is being refined.
func NewConfigOnGrid(sound *signal.Sound, grid signal.Sampling, shape window.Shape, effectiveWidth float64, subtractMean bool) (*Config, error) {
	physical := effectiveWidth * shape.PhysicalWidthFactor()
	size := int(math.Round(physical / sound.Dx))
	if size < 1 {
		return nil, errors.PreconditionError("frames",
			"window of %v s holds no samples at sampling period %v", physical, sound.Dx)
	}
	if grid.Nx < 1 {
		return nil, errors.PreconditionError("frames", "analysis grid has no frames")
	}
	return &Config{
		Sound:          sound,
		Grid:           grid,
		Shape:          shape,
		EffectiveWidth: effectiveWidth,
		PhysicalWidth:  physical,
		Size:           size,
		SubtractMean:   subtractMean,
		Window:         window.Table(shape, size),
	}, nil
}

// NumberOfFrames returns the number of frames on the grid.
func (c *Config) NumberOfFrames() int { return c.Grid.Nx }

// Extractor is the per-thread frame state.
type Extractor struct {
	cfg      *Config
	buffer   []float64
	extremum float64
}

// NewExtractor allocates a frame buffer for one thread.
func (c *Config) NewExtractor() *Extractor {
	return &Extractor{cfg: c, buffer: make([]float64, c.Size)}
}

// Extract fills the frame buffer with frame i and returns it. The returned
// slice is overwritten by the next call.
func (e *Extractor) Extract(i int) []float64 {
	cfg := e.cfg
	s := cfg.Sound
	centre := cfg.Grid.IndexToX(i)
	begin := s.NearestIndex(centre - 0.5*cfg.PhysicalWidth)

	frame := e.buffer
	for j := range frame {
		frame[j] = s.Mono(begin + j)
	}

	if cfg.SubtractMean {
		mean := 0.0
		for _, v := range frame {
			mean += v
		}
		mean /= float64(len(frame))
		for j := range frame {
			frame[j] -= mean
		}
	}

	e.extremum = 0
	for _, v := range frame {
		if math.Abs(v) > math.Abs(e.extremum) {
			e.extremum = v
		}
	}

	for j, w := range cfg.Window {
		frame[j] *= w
	}
	return frame
}

// Extremum returns the signed sample of largest magnitude of the last
// extracted frame, taken before windowing.
func (e *Extractor) Extremum() float64 { return e.extremum }

// Raw copies the unwindowed samples of frame i into dst, which must hold
// Size samples, and returns the index of the first sample.
func (e *Extractor) Raw(i int, dst []float64) int {
	cfg := e.cfg
	s := cfg.Sound
	begin := s.NearestIndex(cfg.Grid.IndexToX(i) - 0.5*cfg.PhysicalWidth)
	for j := range dst[:cfg.Size] {
		dst[j] = s.Mono(begin + j)
	}
	return begin
}
