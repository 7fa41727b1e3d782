package cohort

import (
	"context"
	"testing"

	"github.com/kailas-cloud/voicegate/internal/db"
	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
)

const testDim = 4

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	delFn         func(ctx context.Context, keys ...string) error
	scanFn        func(ctx context.Context, pattern string) ([]string, error)
	dropIndexFn   func(ctx context.Context, name string) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index string, tags ...db.TagFilter) (int, error)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return true, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index string, tags ...db.TagFilter) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, tags...)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, Config{
		KeyPrefix:  "vg:",
		Collection: "indian_cohort_ecapa",
		Dim:        testDim,
		Algorithm:  db.VectorHNSW,
		Retry:      db.RetryPolicy{MaxRetries: 2},
	}), ms
}

func unit(t *testing.T, values ...float32) embedding.Vector {
	t.Helper()
	v, err := embedding.New(values, len(values))
	if err != nil {
		t.Fatalf("embedding.New: %v", err)
	}
	return v
}

func entry(key string, score float64, v embedding.Vector) db.SearchEntry {
	return db.SearchEntry{
		Key:    key,
		Score:  score,
		Fields: map[string]string{db.VectorField: db.EncodeVector(v.Values())},
	}
}
