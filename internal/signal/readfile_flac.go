package signal

import (
	"encoding/binary"
	"io"

	"github.com/tphakala/flac"

	"github.com/tphakala/go-lpc/internal/errors"
)

func readFLAC(r io.Reader) (*Sound, AudioInfo, error) {
	decoder, err := flac.NewDecoder(r)
	if err != nil {
		return nil, AudioInfo{}, err
	}

	info := AudioInfo{
		SampleRate:   decoder.SampleRate,
		TotalSamples: int(decoder.TotalSamples),
		NumChannels:  decoder.NChannels,
		BitDepth:     decoder.BitsPerSample,
	}
	if info.NumChannels < 1 {
		return nil, info, errors.NewStd("FLAC stream declares no channels")
	}
	divisor, err := getAudioDivisor(info.BitDepth)
	if err != nil {
		return nil, info, err
	}
	if info.BitDepth == 8 {
		return nil, info, errors.NewStd("8-bit FLAC is not supported")
	}

	channels := make([][]float64, info.NumChannels)
	for c := range channels {
		channels[c] = make([]float64, 0, info.TotalSamples)
	}

	bytesPerSample := info.BitDepth / 8
	var samples []int
	for {
		frame, err := decoder.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, info, err
		}

		samples = samples[:0]
		for i := 0; i+bytesPerSample <= len(frame); i += bytesPerSample {
			var sample int32
			switch info.BitDepth {
			case 16:
				sample = int32(int16(binary.LittleEndian.Uint16(frame[i:])))
			case 24:
				sample = int32(frame[i]) | int32(frame[i+1])<<8 | int32(frame[i+2])<<16
				// sign extend from 24 bits
				sample = sample << 8 >> 8
			case 32:
				sample = int32(binary.LittleEndian.Uint32(frame[i:]))
			}
			samples = append(samples, int(sample))
		}
		deinterleave(channels, samples, divisor)
	}

	sound, err := New(channels, float64(info.SampleRate))
	return sound, info, err
}
