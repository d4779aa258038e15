package signal

import (
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/go-lpc/internal/errors"
)

const wavReadFrames = 8192

func readWAV(r io.ReadSeeker) (*Sound, AudioInfo, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, AudioInfo{}, errors.NewStd("input is not a valid WAV audio file")
	}

	info := AudioInfo{
		SampleRate:  int(decoder.SampleRate),
		NumChannels: int(decoder.NumChans),
		BitDepth:    int(decoder.BitDepth),
	}
	if info.NumChannels < 1 {
		return nil, info, errors.NewStd("WAV file declares no channels")
	}
	divisor, err := getAudioDivisor(info.BitDepth)
	if err != nil {
		return nil, info, err
	}

	channels := make([][]float64, info.NumChannels)
	buf := &audio.IntBuffer{
		Data:   make([]int, wavReadFrames*info.NumChannels),
		Format: &audio.Format{SampleRate: info.SampleRate, NumChannels: info.NumChannels},
	}
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, info, err
		}
		if n == 0 {
			break
		}
		data := buf.Data[:n]
		if info.BitDepth == 8 {
			// 8-bit WAV is unsigned
			for i := range data {
				data[i] -= 128
			}
		}
		deinterleave(channels, data, divisor)
	}

	info.TotalSamples = len(channels[0])
	sound, err := New(channels, float64(info.SampleRate))
	return sound, info, err
}
