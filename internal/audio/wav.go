// Package audio turns uploaded clips into mono PCM at the extractor's sample rate.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/youpy/go-wav"
)

// Decoding errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmpty             = errors.New("audio contains no samples")
	ErrSilence           = errors.New("audio is silent")
)

// silenceRMS is the RMS level below which a clip carries no speech.
const silenceRMS = 1e-4

// Clip is mono PCM normalised to [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// minWAVSize is the length of a canonical RIFF/WAVE header with an empty data chunk.
const minWAVSize = 44

// DecodeWAV parses a RIFF/WAVE byte stream and downmixes it to mono.
// Integer PCM of 16, 24 or 32 bits and 32-bit IEEE float are accepted.
func DecodeWAV(data []byte) (clip Clip, err error) {
	if len(data) < minWAVSize {
		return Clip{}, fmt.Errorf("%w: %d bytes is shorter than a wav header", ErrUnsupportedFormat, len(data))
	}
	// go-riff panics on truncated chunks instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			clip, err = Clip{}, fmt.Errorf("%w: malformed riff: %v", ErrUnsupportedFormat, r)
		}
	}()

	r := wav.NewReader(bytes.NewReader(data))
	format, err := r.Format()
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	if err := checkFormat(format); err != nil {
		return Clip{}, err
	}

	channels := uint(format.NumChannels)
	var samples []float64
	for {
		batch, err := r.ReadSamples(4096)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(samples) == 0 {
				// A valid header without a readable data chunk carries no audio.
				return Clip{}, fmt.Errorf("%w: %w", ErrEmpty, err)
			}
			return Clip{}, fmt.Errorf("read wav samples: %w", err)
		}
		for _, s := range batch {
			var sum float64
			for ch := range channels {
				sum += r.FloatValue(s, ch)
			}
			samples = append(samples, sum/float64(channels))
		}
		if len(batch) == 0 {
			break
		}
	}
	if len(samples) == 0 {
		return Clip{}, ErrEmpty
	}
	return Clip{Samples: samples, SampleRate: int(format.SampleRate)}, nil
}

func checkFormat(f *wav.WavFormat) error {
	switch f.AudioFormat {
	case wav.AudioFormatPCM:
		if f.BitsPerSample != 16 && f.BitsPerSample != 24 && f.BitsPerSample != 32 {
			return fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFormat, f.BitsPerSample)
		}
	case wav.AudioFormatIEEEFloat:
		if f.BitsPerSample != 32 {
			return fmt.Errorf("%w: %d-bit float", ErrUnsupportedFormat, f.BitsPerSample)
		}
	default:
		return fmt.Errorf("%w: wav format tag %d", ErrUnsupportedFormat, f.AudioFormat)
	}
	if f.NumChannels == 0 || f.NumChannels > 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, f.NumChannels)
	}
	if f.SampleRate == 0 {
		return fmt.Errorf("%w: zero sample rate", ErrUnsupportedFormat)
	}
	return nil
}

// RMS returns the root mean square level of samples.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var ss float64
	for _, s := range samples {
		ss += s * s
	}
	return math.Sqrt(ss / float64(len(samples)))
}
