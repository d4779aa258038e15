package frames

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/signal"
	"github.com/tphakala/go-lpc/internal/window"
)

// ramp returns one second of x[i] = i at 1024 Hz, so that grid times and
// sample indices are exact in binary.
func ramp(t *testing.T) *signal.Sound {
	t.Helper()
	x := make([]float64, 1024)
	for i := range x {
		x[i] = float64(i)
	}
	s, err := signal.NewMono(x, 1024)
	require.NoError(t, err)
	return s
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(ramp(t), window.Rectangular, 0.125, 0.0625, false)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Size)
	assert.Equal(t, 15, cfg.NumberOfFrames())
	assert.InDelta(t, 0.125, cfg.PhysicalWidth, 0)

	// bell shaped windows are twice as long as their effective width
	cfg, err = NewConfig(ramp(t), window.Gaussian2, 0.0625, 0.0625, false)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Size)
	assert.Len(t, cfg.Window, 128)
}

func TestExtractFrames(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(ramp(t), window.Rectangular, 0.125, 0.0625, false)
	require.NoError(t, err)
	ex := cfg.NewExtractor()

	for _, i := range []int{0, 7, 14} {
		frame := ex.Extract(i)
		require.Len(t, frame, 128)
		assert.InDelta(t, float64(64*i), frame[0], 0, "frame %d", i)
		assert.InDelta(t, float64(64*i+127), frame[127], 0, "frame %d", i)
		assert.InDelta(t, float64(64*i+127), ex.Extremum(), 0)
	}
}

func TestExtractSubtractsMean(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(ramp(t), window.Rectangular, 0.125, 0.0625, true)
	require.NoError(t, err)
	ex := cfg.NewExtractor()

	frame := ex.Extract(0)
	assert.InDelta(t, -63.5, frame[0], 1e-12)
	assert.InDelta(t, 63.5, frame[127], 1e-12)
	// the first extremum of equal magnitude wins
	assert.InDelta(t, -63.5, ex.Extremum(), 1e-12)
}

func TestExtractAppliesWindow(t *testing.T) {
	t.Parallel()

	s := ramp(t)
	cfg, err := NewConfig(s, window.Hanning, 0.125, 0.0625, false)
	require.NoError(t, err)
	ex := cfg.NewExtractor()

	frame := ex.Extract(3)
	raw := make([]float64, cfg.Size)
	begin := ex.Raw(3, raw)
	assert.Equal(t, 192, begin)
	for j := range frame {
		assert.InDelta(t, raw[j]*cfg.Window[j], frame[j], 1e-12)
	}
	// the extremum is taken before windowing
	assert.InDelta(t, 319, ex.Extremum(), 0)
}

func TestExtractOutsideSoundReadsSilence(t *testing.T) {
	t.Parallel()

	s := ramp(t)
	grid := signal.Sampling{Xmin: 0, Xmax: 1, Nx: 2, Dx: 0.5, X1: 0}
	cfg, err := NewConfigOnGrid(s, grid, window.Rectangular, 0.125, false)
	require.NoError(t, err)

	frame := cfg.NewExtractor().Extract(0)
	// centred on t=0: the first half lies before the sound
	for j := range 64 {
		assert.InDelta(t, 0, frame[j], 0)
	}
	assert.InDelta(t, 0, frame[64], 0)
	assert.InDelta(t, 63, frame[127], 0)
}

func TestNewConfigOnGridRejectsEmptyWindows(t *testing.T) {
	t.Parallel()

	s := ramp(t)
	_, err := NewConfigOnGrid(s, s.Sampling(), window.Rectangular, 1e-5, false)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPrecondition))

	_, err = NewConfigOnGrid(s, signal.Sampling{Dx: 0.1}, window.Rectangular, 0.125, false)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPrecondition))
}

func TestExtractorsAreIndependent(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(ramp(t), window.Rectangular, 0.125, 0.0625, false)
	require.NoError(t, err)
	a, b := cfg.NewExtractor(), cfg.NewExtractor()

	fa := a.Extract(1)
	b.Extract(10)
	assert.InDelta(t, 64, fa[0], 0)
}
