// Package extraction is the audio boundary: clip bytes in, speaker embedding out.
package extraction

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/voicegate/internal/audio"
	"github.com/kailas-cloud/voicegate/internal/domain"
	"github.com/kailas-cloud/voicegate/internal/logger"
)

// DefaultSampleRate is the rate the embedding model was trained on.
const DefaultSampleRate = 16000

const defaultConcurrency = 4

// Service decodes uploaded clips and asks the extractor for embeddings.
type Service struct {
	extractor   Extractor
	cipher      *audio.XORCipher
	sampleRate  int
	dim         int
	concurrency int
}

// New creates a Service producing dim-dimensional embeddings.
func New(extractor Extractor, dim int) *Service {
	return &Service{
		extractor:   extractor,
		sampleRate:  DefaultSampleRate,
		dim:         dim,
		concurrency: defaultConcurrency,
	}
}

// WithCipher enables de-obfuscation of clips flagged as encrypted.
func (s *Service) WithCipher(c *audio.XORCipher) *Service {
	s.cipher = c
	return s
}

// WithSampleRate overrides the extractor input rate.
func (s *Service) WithSampleRate(rate int) *Service {
	if rate > 0 {
		s.sampleRate = rate
	}
	return s
}

// Embed converts one clip into an embedding.
func (s *Service) Embed(ctx context.Context, clip []byte, encrypted bool) ([]float32, error) {
	if len(clip) == 0 {
		return nil, fmt.Errorf("%w: empty clip", domain.ErrInvalidAudio)
	}
	if encrypted {
		if s.cipher == nil {
			return nil, fmt.Errorf("%w: encrypted clips are not accepted", domain.ErrInvalidInput)
		}
		clip = s.cipher.Apply(clip)
	}

	samples, err := audio.Prepare(clip, s.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidAudio, err)
	}

	emb, err := s.extractor.Embed(ctx, samples, s.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("extract embedding: %w", err)
	}
	if s.dim > 0 && len(emb) != s.dim {
		return nil, domain.NewDependencyError("embedding extractor",
			fmt.Errorf("returned %d dimensions, expected %d", len(emb), s.dim))
	}

	logger.FromContext(ctx).Debug("embedding extracted",
		zap.Int("samples", len(samples)),
		zap.Int("sample_rate", s.sampleRate),
	)
	return emb, nil
}

// EmbedAll converts clips concurrently; the first failure aborts the rest.
// The error names the failing clip index.
func (s *Service) EmbedAll(ctx context.Context, clips [][]byte, encrypted bool) ([][]float32, error) {
	if len(clips) == 0 {
		return nil, fmt.Errorf("%w: no clips", domain.ErrInvalidAudio)
	}
	out := make([][]float32, len(clips))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, clip := range clips {
		g.Go(func() error {
			emb, err := s.Embed(gctx, clip, encrypted)
			if err != nil {
				return fmt.Errorf("clip %d: %w", i, err)
			}
			out[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
