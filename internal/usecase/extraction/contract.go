package extraction

import "context"

// Extractor turns mono PCM into a raw speaker embedding.
type Extractor interface {
	Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error)
}
