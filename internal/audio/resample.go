package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono samples from one rate to another.
func Resample(samples []float64, from, to int) ([]float64, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", from, to)
	}
	if from == to {
		return append([]float64(nil), samples...), nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	out, err := rs.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d: %w", from, to, err)
	}
	return out, nil
}

// Prepare decodes a WAV clip, resamples it to targetRate and rejects silence.
// The result is ready for the embedding extractor.
func Prepare(data []byte, targetRate int) ([]float32, error) {
	clip, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	if RMS(clip.Samples) < silenceRMS {
		return nil, ErrSilence
	}
	samples, err := Resample(clip.Samples, clip.SampleRate, targetRate)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(min(max(s, -1), 1))
	}
	return out, nil
}
