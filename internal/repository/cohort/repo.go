package cohort

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/voicegate/internal/db"
	"github.com/kailas-cloud/voicegate/internal/domain"
	domcohort "github.com/kailas-cloud/voicegate/internal/domain/cohort"
	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
)

// SeedBatchSize is the number of cohort vectors written per pipelined round-trip.
const SeedBatchSize = 100

const dependency = "cohort index"

// store is the consumer interface for the cohort index (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string, tags ...db.TagFilter) (int, error)
}

// Config describes the cohort collection layout.
type Config struct {
	KeyPrefix   string
	Collection  string
	Dim         int
	Algorithm   db.VectorAlgorithm
	M           int
	EFConstruct int
	Retry       db.RetryPolicy
}

// Repo is the cohort index: a read-mostly population of impostor embeddings.
type Repo struct {
	store store
	cfg   Config
}

// New creates a cohort repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

// IndexName returns the FT index name of the cohort collection.
func (r *Repo) IndexName() string {
	return r.cfg.KeyPrefix + r.cfg.Collection + ":idx"
}

func (r *Repo) keyPrefix() string {
	return r.cfg.KeyPrefix + r.cfg.Collection + ":"
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	return db.NewIndex(r.IndexName()).
		OnHash().
		Prefix(r.keyPrefix()).
		VectorField(db.VectorField, r.cfg.Dim, r.cfg.Algorithm, db.DistanceCosine, r.cfg.M, r.cfg.EFConstruct).
		Build()
}

// EnsureIndex creates the cohort FT index if it is missing.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := r.indexDefinition()
	if err != nil {
		return fmt.Errorf("build cohort index: %w", err)
	}
	exists, err := r.store.IndexExists(ctx, def.Name)
	if err != nil {
		return domain.NewDependencyError(dependency, err)
	}
	if exists {
		return nil
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return domain.NewDependencyError(dependency, err)
	}
	return nil
}

// IndexReady reports whether the cohort index exists.
func (r *Repo) IndexReady(ctx context.Context) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return false, domain.NewDependencyError(dependency, err)
	}
	return ok, nil
}

// TopK returns up to k cohort neighbours of v, most similar first, ties by ref.
// An empty or missing cohort yields domain.ErrEmptyCohort.
func (r *Repo) TopK(ctx context.Context, v embedding.Vector, k int) ([]domcohort.Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", domain.ErrInvalidInput)
	}

	res, err := db.Query(ctx, r.cfg.Retry, func(ctx context.Context) (*db.SearchResult, error) {
		return r.store.SearchKNN(ctx, &db.KNNQuery{
			IndexName:     r.IndexName(),
			Vector:        v.Values(),
			K:             k,
			IncludeVector: true,
		})
	})
	if err != nil {
		return nil, r.wrapErr(ctx, "search cohort", err)
	}
	if len(res.Entries) == 0 {
		return nil, domain.ErrEmptyCohort
	}

	neighbors := make([]domcohort.Neighbor, 0, len(res.Entries))
	for _, e := range res.Entries {
		values, err := db.DecodeVector(e.Fields[db.VectorField])
		if err != nil || len(values) != v.Dim() {
			return nil, domain.NewDependencyError(dependency,
				fmt.Errorf("cohort entry %s has a malformed vector", e.Key))
		}
		neighbors = append(neighbors, domcohort.Neighbor{
			Ref:        strings.TrimPrefix(e.Key, r.keyPrefix()),
			Similarity: e.Score,
			Embedding:  embedding.Reconstruct(values),
		})
	}

	slices.SortStableFunc(neighbors, func(a, b domcohort.Neighbor) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Ref, b.Ref)
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Count returns the number of indexed cohort vectors; a missing index counts as zero.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := db.Query(ctx, r.cfg.Retry, func(ctx context.Context) (int, error) {
		return r.store.SearchCount(ctx, r.IndexName())
	})
	if errors.Is(err, db.ErrIndexNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, r.wrapErr(ctx, "count cohort", err)
	}
	return n, nil
}

// Seed writes entries in pipelined batches and returns how many were written.
// Entries are assumed unit-length; dimension mismatches are rejected up front.
func (r *Repo) Seed(ctx context.Context, entries []domcohort.Entry) (int, error) {
	for i, e := range entries {
		if e.Ref == "" {
			return 0, fmt.Errorf("%w: cohort entry %d has no ref", domain.ErrInvalidInput, i)
		}
		if e.Vector.Dim() != r.cfg.Dim {
			return 0, fmt.Errorf("%w: cohort entry %s has dimension %d, expected %d",
				domain.ErrInvalidEmbedding, e.Ref, e.Vector.Dim(), r.cfg.Dim)
		}
	}

	written := 0
	for batch := range slices.Chunk(entries, SeedBatchSize) {
		items := make([]db.HashSetItem, len(batch))
		for i, e := range batch {
			items[i] = db.HashSetItem{
				Key: r.keyPrefix() + e.Ref,
				Fields: map[string]string{
					"ref":          e.Ref,
					db.VectorField: db.EncodeVector(e.Vector.Values()),
				},
			}
		}
		err := db.Do(ctx, r.cfg.Retry, func(ctx context.Context) error {
			return r.store.HSetMulti(ctx, items)
		})
		if err != nil {
			return written, r.wrapErr(ctx, "seed cohort", err)
		}
		written += len(batch)
	}
	return written, nil
}

// Reset deletes every cohort vector and recreates the index.
func (r *Repo) Reset(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix()+"*")
	if err != nil {
		return 0, r.wrapErr(ctx, "scan cohort", err)
	}
	for batch := range slices.Chunk(keys, SeedBatchSize) {
		if err := r.store.Del(ctx, batch...); err != nil {
			return 0, r.wrapErr(ctx, "delete cohort", err)
		}
	}
	if err := r.store.DropIndex(ctx, r.IndexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return 0, r.wrapErr(ctx, "drop cohort index", err)
	}
	if err := r.EnsureIndex(ctx); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (r *Repo) wrapErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, db.ErrIndexNotFound) {
		return domain.ErrEmptyCohort
	}
	return domain.NewDependencyError(dependency, fmt.Errorf("%s: %w", op, err))
}
