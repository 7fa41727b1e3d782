// Package extractor calls the external speaker-embedding model over HTTP.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voicegate/internal/domain"
	"github.com/kailas-cloud/voicegate/internal/metrics"
)

const embedPath = "/v1/embed"

// Client is a resty-backed embedding extractor.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// Config holds the extractor connection settings.
type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration
	Logger     *zap.Logger
}

type embedRequest struct {
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (e *errorResponse) message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error
}

// New creates an extractor client. Server errors and transport failures are retried.
func New(cfg *Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = 200 * time.Millisecond
	}

	c := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(4 * wait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}

	return &Client{http: c, logger: logger}
}

// Embed sends mono PCM to the extractor and returns the raw embedding.
// A 4xx answer means the extractor rejected the audio and maps to domain.ErrInvalidAudio.
func (c *Client) Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	var (
		out    embedResponse
		apiErr errorResponse
	)
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(embedRequest{Samples: samples, SampleRate: sampleRate}).
		SetResult(&out).
		SetError(&apiErr).
		Post(embedPath)
	metrics.ExtractorRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ExtractorRequestsTotal.WithLabelValues("error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("embed: %w", ctxErr)
		}
		return nil, domain.NewDependencyError("embedding extractor", err)
	}

	switch code := resp.StatusCode(); {
	case code >= http.StatusInternalServerError:
		metrics.ExtractorRequestsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("extractor server error", zap.Int("status", code), zap.String("detail", apiErr.message()))
		return nil, domain.NewDependencyError("embedding extractor",
			fmt.Errorf("status %d: %s", code, apiErr.message()))
	case resp.IsError():
		metrics.ExtractorRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: extractor rejected clip (%d): %s", domain.ErrInvalidAudio, code, apiErr.message())
	}

	if len(out.Embedding) == 0 {
		metrics.ExtractorRequestsTotal.WithLabelValues("error").Inc()
		return nil, domain.NewDependencyError("embedding extractor", errors.New("empty embedding in response"))
	}
	metrics.ExtractorRequestsTotal.WithLabelValues("success").Inc()
	return out.Embedding, nil
}

// HealthCheck probes the extractor's health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("extractor health: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("extractor health: status %d", resp.StatusCode())
	}
	return nil
}
