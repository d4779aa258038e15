package formant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/lpc"
	"github.com/tphakala/go-lpc/internal/signal"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	const fs = 10000.0
	want := []Resonance{{500, 50}, {1500, 80}}

	a := make([]float64, 4)
	n := NewSynthesizer(2).ToLPC(want, 1/fs, a)
	require.Equal(t, 4, n)

	frame := lpc.Frame{Order: 4, A: a, Gain: 0.3, Valid: true}
	got, info := NewConverter(4).FromLPC(&frame, fs, 50)
	require.Equal(t, InfoOK, info)
	require.Len(t, got, 2)
	for i := range want {
		assert.InDelta(t, want[i].Frequency, got[i].Frequency, 1e-6)
		assert.InDelta(t, want[i].Bandwidth, got[i].Bandwidth, 1e-6)
	}
}

func TestRoundTripManyFormants(t *testing.T) {
	t.Parallel()

	const fs = 11025.0
	want := []Resonance{{320, 60}, {1100, 90}, {2450, 120}, {3300, 200}, {4200, 250}}
	a := make([]float64, 10)
	NewSynthesizer(5).ToLPC(want, 1/fs, a)

	frame := lpc.Frame{Order: 10, A: a, Valid: true}
	got, info := NewConverter(10).FromLPC(&frame, fs, 0)
	require.Equal(t, InfoOK, info)
	require.Len(t, got, 5)
	for i := range want {
		assert.InDelta(t, want[i].Frequency, got[i].Frequency, 1e-6)
		assert.InDelta(t, want[i].Bandwidth, got[i].Bandwidth, 1e-6)
	}
}

func TestSynthesizerSkipsFormantsAboveNyquist(t *testing.T) {
	t.Parallel()

	a := make([]float64, 4)
	n := NewSynthesizer(2).ToLPC([]Resonance{{6000, 50}, {1000, 100}}, 1.0/10000, a)
	assert.Equal(t, 4, n)
	assert.InDelta(t, 0, a[2], 0)
	assert.InDelta(t, 0, a[3], 0)

	only := make([]float64, 2)
	NewSynthesizer(1).ToLPC([]Resonance{{1000, 100}}, 1.0/10000, only)
	assert.InDeltaSlice(t, only, a[:2], 1e-15)
}

func TestMarginDropsRealRoots(t *testing.T) {
	t.Parallel()

	// (1 - 0.5 z^-1): a single real root at 0 Hz
	frame := lpc.Frame{Order: 1, A: []float64{-0.5}, Valid: true}
	c := NewConverter(1)

	got, _ := c.FromLPC(&frame, 8000, 50)
	assert.Empty(t, got)

	got, _ = c.FromLPC(&frame, 8000, 0)
	require.Len(t, got, 1)
	assert.InDelta(t, 0, got[0].Frequency, 0)
}

func TestEmptyModel(t *testing.T) {
	t.Parallel()

	got, info := NewConverter(4).FromLPC(&lpc.Frame{Valid: true}, 8000, 50)
	assert.Empty(t, got)
	assert.Equal(t, InfoEmptyModel, info)
}

func TestLimits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 16, MaxNumberOfFormants(16, 0))
	assert.Equal(t, 8, MaxNumberOfFormants(16, 50))
	assert.Equal(t, 9, MaxNumberOfFormants(17, 50))

	require.NoError(t, CheckOrder(99))
	err := CheckOrder(100)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPrecondition))
}

func TestPublish(t *testing.T) {
	t.Parallel()

	f := New(signal.Sampling{Nx: 2, Dx: 0.01}, 2)
	scratch := []Resonance{{100, 10}, {200, 20}, {300, 30}}
	f.Publish(1, scratch, 0.7, InfoOK)
	scratch[0].Frequency = -1

	require.True(t, f.Frames[1].Valid)
	assert.Len(t, f.Frames[1].Formants, 2)
	assert.InDelta(t, 100, f.Frames[1].Formants[0].Frequency, 0)
	assert.InDelta(t, 0.7, f.Frames[1].Intensity, 0)
	assert.False(t, f.Frames[0].Valid)
}
