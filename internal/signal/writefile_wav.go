package signal

import (
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/go-lpc/internal/errors"
)

// WriteWAV writes the sound as 16-bit PCM. Samples are clipped to [-1, 1].
func (s *Sound) WriteWAV(path string) error {
	outFile, err := os.Create(path)
	if err != nil {
		return errors.FileError(err, path, 0)
	}

	sampleRate := int(math.Round(s.SamplingFrequency()))
	numChannels := s.NumberOfChannels()
	enc := wav.NewEncoder(outFile, sampleRate, 16, numChannels, 1)

	nx := s.Nx()
	data := make([]int, nx*numChannels)
	for i := range nx {
		for c, ch := range s.Channels {
			v := math.Max(-1, math.Min(1, ch[i]))
			data[i*numChannels+c] = int(math.Round(v * 32767))
		}
	}
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: numChannels},
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		_ = outFile.Close()
		return errors.New(err).
			Component("signal").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	if err := enc.Close(); err != nil {
		_ = outFile.Close()
		return errors.New(err).
			Component("signal").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	if err := outFile.Close(); err != nil {
		return errors.FileError(err, path, 0)
	}
	return nil
}
