package analysis

import (
	"github.com/tphakala/go-lpc/internal/logger"
	"github.com/tphakala/go-lpc/internal/lpc"
	"github.com/tphakala/go-lpc/internal/signal"
)

// InverseFilter returns the prediction residual of sound under the time
// varying model l. Sound and model must share the sampling period.
func InverseFilter(l *lpc.LPC, sound *signal.Sound) (*signal.Sound, error) {
	GetLogger().Debug("inverse filtering",
		logger.Int("frames", len(l.Frames)),
		logger.Int("samples", sound.Nx()))
	return lpc.InverseFilter(l, sound)
}

// Filter drives the time varying synthesis filter of l with sound. With
// useGain the output is scaled by the interpolated square root of the frame
// gains.
func Filter(l *lpc.LPC, sound *signal.Sound, useGain bool) (*signal.Sound, error) {
	GetLogger().Debug("filtering",
		logger.Int("frames", len(l.Frames)),
		logger.Int("samples", sound.Nx()),
		logger.Bool("use_gain", useGain))
	return lpc.Filter(l, sound, useGain)
}
