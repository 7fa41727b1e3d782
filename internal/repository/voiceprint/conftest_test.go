package voiceprint

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/voicegate/internal/db"
	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn        func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn     func(ctx context.Context, key string) (map[string]string, error)
	delFn         func(ctx context.Context, keys ...string) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchListFn  func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return nil, &db.Error{Op: db.OpHGetAll, Err: db.ErrKeyNotFound}
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
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

func (m *mockStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, Config{
		KeyPrefix:  "vg:",
		Collection: "enrolled_users_ecapa",
		Dim:        3,
		M:          16,
		Retry:      db.RetryPolicy{MaxRetries: 1},
	}), ms
}

func testVoiceprint(t *testing.T, userID string, createdAt time.Time) domvp.Voiceprint {
	t.Helper()
	v, err := embedding.New([]float32{1, 2, 2}, 3)
	if err != nil {
		t.Fatal(err)
	}
	vp, err := domvp.New(userID, v, "ecapa-tdnn-voxceleb", 3, createdAt)
	if err != nil {
		t.Fatal(err)
	}
	return vp
}
