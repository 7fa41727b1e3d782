package voicegate

import (
	"context"
	"fmt"
	"time"

	domcohort "github.com/kailas-cloud/voicegate/internal/domain/cohort"
	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
)

// EnrollOption tunes a single enrollment.
type EnrollOption func(*enrollOptions)

type enrollOptions struct {
	model string
}

// WithEmbeddingModel records the name of the model that produced the samples.
func WithEmbeddingModel(name string) EnrollOption {
	return func(o *enrollOptions) { o.model = name }
}

// Enroll builds a voiceprint from samples and makes it the user's active one.
// Older voiceprints are kept but deactivated.
func (c *Client) Enroll(
	ctx context.Context, userID string, samples [][]float32, opts ...EnrollOption,
) (_ Voiceprint, err error) {
	start := time.Now()
	defer func() { c.obs.observe("enroll", start, err) }()

	var o enrollOptions
	for _, fn := range opts {
		fn(&o)
	}
	vp, err := c.verification.Enroll(ctx, userID, samples, o.model)
	if err != nil {
		return Voiceprint{}, fmt.Errorf("enroll: %w", err)
	}
	return fromVoiceprint(&vp), nil
}

// Verify scores probe against the user's active voiceprint and records the attempt.
func (c *Client) Verify(ctx context.Context, userID string, probe []float32) (_ VerificationResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("verify", start, err) }()

	res, err := c.verification.Verify(ctx, userID, probe)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("verify: %w", err)
	}
	return fromResult(res), nil
}

// VerifyBatch scores several probes of one user. Per-probe failures are
// reported in the items; the returned error covers the whole call.
func (c *Client) VerifyBatch(ctx context.Context, userID string, probes [][]float32) (_ BatchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("verify_batch", start, err) }()

	res, err := c.verification.VerifyBatch(ctx, userID, probes)
	if err != nil {
		return BatchResult{}, fmt.Errorf("verify batch: %w", err)
	}
	return fromBatch(res), nil
}

// Voiceprints lists the user's voiceprints, newest first.
func (c *Client) Voiceprints(ctx context.Context, userID string) (_ []Voiceprint, err error) {
	start := time.Now()
	defer func() { c.obs.observe("voiceprints.list", start, err) }()

	vps, err := c.verification.ListVoiceprints(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list voiceprints: %w", err)
	}
	out := make([]Voiceprint, len(vps))
	for i := range vps {
		out[i] = fromVoiceprint(&vps[i])
	}
	return out, nil
}

// SetActive toggles a voiceprint. Activating one deactivates the owner's others.
func (c *Client) SetActive(ctx context.Context, voiceprintID string, active bool) (_ Voiceprint, err error) {
	start := time.Now()
	defer func() { c.obs.observe("voiceprints.set_active", start, err) }()

	vp, err := c.verification.SetActive(ctx, voiceprintID, active)
	if err != nil {
		return Voiceprint{}, fmt.Errorf("set active: %w", err)
	}
	return fromVoiceprint(&vp), nil
}

// DeleteVoiceprint removes a single voiceprint.
func (c *Client) DeleteVoiceprint(ctx context.Context, voiceprintID string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("voiceprints.delete", start, err) }()

	if err = c.verification.DeleteVoiceprint(ctx, voiceprintID); err != nil {
		return fmt.Errorf("delete voiceprint: %w", err)
	}
	return nil
}

// DeleteUser removes every voiceprint of the user and returns how many were deleted.
// The verification history is kept.
func (c *Client) DeleteUser(ctx context.Context, userID string) (_ int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("users.delete", start, err) }()

	n, err := c.verification.DeleteUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user: %w", err)
	}
	return n, nil
}

// History returns the user's most recent attempts, newest first.
// limit 0 selects the default page size.
func (c *Client) History(ctx context.Context, userID string, limit int) (_ []Attempt, err error) {
	start := time.Now()
	defer func() { c.obs.observe("history", start, err) }()

	attempts, err := c.verification.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	out := make([]Attempt, len(attempts))
	for i := range attempts {
		out[i] = fromAttempt(&attempts[i])
	}
	return out, nil
}

// CohortEntry is one impostor embedding for SeedCohort.
type CohortEntry struct {
	Ref       string
	Embedding []float32
}

// SeedCohort L2-normalises and writes entries into the cohort collection,
// returning how many were written. Existing refs are overwritten.
func (c *Client) SeedCohort(ctx context.Context, entries []CohortEntry) (_ int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("cohort.seed", start, err) }()

	domEntries := make([]domcohort.Entry, len(entries))
	for i, e := range entries {
		v, verr := embedding.New(e.Embedding, c.embeddingDim)
		if verr != nil {
			return 0, fmt.Errorf("cohort entry %d (%s): %w", i, e.Ref, verr)
		}
		domEntries[i] = domcohort.Entry{Ref: e.Ref, Vector: v}
	}
	n, err := c.cohort.Seed(ctx, domEntries)
	if err != nil {
		return n, fmt.Errorf("seed cohort: %w", err)
	}
	return n, nil
}

// CohortSize returns the number of impostor embeddings in the cohort.
func (c *Client) CohortSize(ctx context.Context) (_ int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("cohort.count", start, err) }()

	n, err := c.cohort.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("cohort size: %w", err)
	}
	return n, nil
}
