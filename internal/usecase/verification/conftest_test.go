package verification

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/voicegate/internal/domain"
	domattempt "github.com/kailas-cloud/voicegate/internal/domain/attempt"
	domcohort "github.com/kailas-cloud/voicegate/internal/domain/cohort"
	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
	"github.com/kailas-cloud/voicegate/internal/plda"
)

const testDim = 32

// --- Mocks ---

type memVoiceprints struct {
	mu      sync.Mutex
	byID    map[string]domvp.Voiceprint
	listErr error
	saves   int
}

func newMemVoiceprints() *memVoiceprints {
	return &memVoiceprints{byID: make(map[string]domvp.Voiceprint)}
}

func (m *memVoiceprints) Save(ctx context.Context, vp domvp.Voiceprint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[vp.ID()] = vp
	m.saves++
	return nil
}

func (m *memVoiceprints) Get(_ context.Context, id string) (domvp.Voiceprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vp, ok := m.byID[id]
	if !ok {
		return domvp.Voiceprint{}, domain.ErrVoiceprintNotFound
	}
	return vp, nil
}

func (m *memVoiceprints) ListByUser(ctx context.Context, userID string) ([]domvp.Voiceprint, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domvp.Voiceprint
	for _, vp := range m.byID {
		if vp.UserID() == userID {
			out = append(out, vp)
		}
	}
	domvp.SortNewestFirst(out)
	return out, nil
}

func (m *memVoiceprints) Delete(_ context.Context, vp domvp.Voiceprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, vp.ID())
	return nil
}

func (m *memVoiceprints) DeleteByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, vp := range m.byID {
		if vp.UserID() == userID {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *memVoiceprints) active(userID string) []domvp.Voiceprint {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domvp.Voiceprint
	for _, vp := range m.byID {
		if vp.UserID() == userID && vp.IsActive() {
			out = append(out, vp)
		}
	}
	return out
}

type memAttempts struct {
	mu        sync.Mutex
	attempts  []domattempt.Attempt
	appendErr error
	lastLimit int
}

func (m *memAttempts) Append(_ context.Context, attempts ...domattempt.Attempt) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempts...)
	return nil
}

func (m *memAttempts) ListByUser(_ context.Context, userID string, limit int) ([]domattempt.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	var out []domattempt.Attempt
	for i := len(m.attempts) - 1; i >= 0; i-- {
		if m.attempts[i].UserID() == userID {
			out = append(out, m.attempts[i])
		}
	}
	return out, nil
}

func (m *memAttempts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// memCohort is a brute-force cosine cohort index.
type memCohort struct {
	entries []domcohort.Neighbor
	err     error
	// onQuery runs before every query when set.
	onQuery func(ctx context.Context) error
}

func (c *memCohort) TopK(ctx context.Context, v embedding.Vector, k int) ([]domcohort.Neighbor, error) {
	if c.onQuery != nil {
		if err := c.onQuery(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	if len(c.entries) == 0 {
		return nil, domain.ErrEmptyCohort
	}
	out := make([]domcohort.Neighbor, len(c.entries))
	for i, e := range c.entries {
		out[i] = domcohort.Neighbor{Ref: e.Ref, Embedding: e.Embedding, Similarity: embedding.Cosine(v, e.Embedding)}
	}
	slices.SortFunc(out, func(a, b domcohort.Neighbor) int {
		if d := cmp.Compare(b.Similarity, a.Similarity); d != 0 {
			return d
		}
		return cmp.Compare(a.Ref, b.Ref)
	})
	return out[:min(k, len(out))], nil
}

// --- Fixtures ---

// synth draws embeddings from deterministic synthetic clusters.
type synth struct {
	t   *testing.T
	rng *rand.Rand
}

func newSynth(t *testing.T) *synth {
	t.Helper()
	return &synth{t: t, rng: rand.New(rand.NewPCG(7, 11))}
}

// clusterSample returns basis vector axis plus small gaussian noise.
func (s *synth) clusterSample(axis int) []float32 {
	v := make([]float32, testDim)
	for i := range v {
		v[i] = float32(s.rng.NormFloat64() * 0.02)
	}
	v[axis]++
	return v
}

// randomUnit returns a direction drawn uniformly from the sphere.
func (s *synth) randomUnit() embedding.Vector {
	v := make([]float32, testDim)
	for i := range v {
		v[i] = float32(s.rng.NormFloat64())
	}
	e, err := embedding.New(v, testDim)
	if err != nil {
		s.t.Fatal(err)
	}
	return e
}

func (s *synth) cohort(n int) *memCohort {
	c := &memCohort{entries: make([]domcohort.Neighbor, n)}
	for i := range n {
		c.entries[i] = domcohort.Neighbor{Ref: fmt.Sprintf("c%04d", i), Embedding: s.randomUnit()}
	}
	return c
}

func testModel(t *testing.T) *plda.Model {
	t.Helper()
	mean := make([]float64, testDim)
	transform := make([][]float64, testDim)
	psi := make([]float64, testDim)
	for i := range testDim {
		transform[i] = make([]float64, testDim)
		transform[i][i] = 1
		psi[i] = 2
	}
	m, err := plda.NewDiagonal(mean, transform, psi, 1)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func testConfig() domain.ScoringConfig {
	cfg := domain.DefaultScoringConfig()
	cfg.EmbeddingDim = testDim
	return cfg
}

type fixture struct {
	svc      *Service
	vps      *memVoiceprints
	attempts *memAttempts
	cohort   *memCohort
	synth    *synth
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := newSynth(t)
	f := &fixture{
		vps:      newMemVoiceprints(),
		attempts: &memAttempts{},
		cohort:   s.cohort(500),
		synth:    s,
	}
	clock := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	f.svc = New(f.vps, f.attempts, ScoringContext{Model: testModel(t), Cohort: f.cohort}, testConfig()).
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		})
	return f
}

// enroll enrolls userID with n samples of cluster axis.
func (f *fixture) enroll(t *testing.T, userID string, axis, n int) domvp.Voiceprint {
	t.Helper()
	samples := make([][]float32, n)
	for i := range samples {
		samples[i] = f.synth.clusterSample(axis)
	}
	vp, err := f.svc.Enroll(context.Background(), userID, samples, "")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	return vp
}
