package signal

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/logger"
)

// GetLogger returns the signal logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("signal")
}

// AudioInfo describes the stream header of an audio file.
type AudioInfo struct {
	SampleRate   int
	TotalSamples int
	NumChannels  int
	BitDepth     int
}

// ReadFile decodes a WAV or FLAC file into a Sound with samples scaled to
// [-1, 1). The format is chosen from the file extension.
func ReadFile(path string) (*Sound, error) {
	start := time.Now()

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.FileError(err, path, 0)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			GetLogger().Warn("failed to close audio file",
				logger.String("path", path),
				logger.Error(cerr))
		}
	}()

	var size int64
	if fi, statErr := file.Stat(); statErr == nil {
		size = fi.Size()
	}

	var (
		sound *Sound
		info  AudioInfo
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		sound, info, err = readWAV(file)
	case ".flac":
		sound, info, err = readFLAC(file)
	default:
		return nil, errors.Newf("unsupported audio file extension %q", ext).
			Component("signal").
			Category(errors.CategoryValidation).
			FileContext(path, size).
			Build()
	}
	if err != nil {
		return nil, errors.New(err).
			Component("signal").
			Category(errors.CategoryFileParsing).
			FileContext(path, size).
			Build()
	}

	GetLogger().Debug("audio file decoded",
		logger.String("path", path),
		logger.Int("sample_rate", info.SampleRate),
		logger.Int("channels", info.NumChannels),
		logger.Int("bit_depth", info.BitDepth),
		logger.Int("samples", sound.Nx()),
		logger.Duration("elapsed", time.Since(start)))
	return sound, nil
}

// getAudioDivisor returns the value that scales integer PCM of the given
// bit depth into [-1, 1).
func getAudioDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 8:
		return 128.0, nil
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported audio bit depth %d", bitDepth).
			Component("signal").
			Category(errors.CategoryAudio).
			Build()
	}
}

// deinterleave appends interleaved integer samples to per-channel float slices.
func deinterleave(channels [][]float64, data []int, divisor float64) {
	n := len(channels)
	for i := 0; i+n <= len(data); i += n {
		for c := range n {
			channels[c] = append(channels[c], float64(data[i+c])/divisor)
		}
	}
}
