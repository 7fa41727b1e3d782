package redis

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/voicegate/internal/db"
)

func TestSearchKNN_TagsAndVector(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var got []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			got = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("vg:cohort:spk-1"),
			mock.RedisArray(
				mock.RedisString("vector"), mock.RedisString(db.EncodeVector([]float32{1, 0})),
				mock.RedisString("__vector_score"), mock.RedisString("0.25"),
			),
			mock.RedisString("vg:cohort:spk-2"),
			mock.RedisArray(
				mock.RedisString("vector"), mock.RedisString(db.EncodeVector([]float32{0, 1})),
				mock.RedisString("__vector_score"), mock.RedisString("1.5"),
			),
		)))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:     "vg:cohort:idx",
		Tags:          []db.TagFilter{db.Tag("is_active", "true")},
		Vector:        []float32{1, 0},
		K:             30,
		IncludeVector: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantPrefix := []string{
		"FT.SEARCH", "vg:cohort:idx", "(@is_active:{true})=>[KNN 30 @vector $BLOB]",
		"RETURN", "2", "vector", "__vector_score",
		"LIMIT", "0", "30",
		"PARAMS", "2", "BLOB",
	}
	if len(got) < len(wantPrefix) || !slices.Equal(got[:len(wantPrefix)], wantPrefix) {
		t.Errorf("FT.SEARCH args = %v", got)
	}
	if got[len(got)-2] != "DIALECT" || got[len(got)-1] != "2" {
		t.Errorf("expected DIALECT 2, got %v", got[len(got)-2:])
	}

	if res.Total != 2 || len(res.Entries) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if math.Abs(res.Entries[0].Score-0.75) > 1e-9 {
		t.Errorf("score = %v, want 0.75", res.Entries[0].Score)
	}
	if math.Abs(res.Entries[1].Score-(-0.5)) > 1e-9 {
		t.Errorf("negative similarity must survive, got %v", res.Entries[1].Score)
	}
	if _, ok := res.Entries[0].Fields["__vector_score"]; ok {
		t.Error("__vector_score must be stripped from fields")
	}
	if len(res.Entries[0].Fields["vector"]) != 8 {
		t.Errorf("vector blob = %q", res.Entries[0].Fields["vector"])
	}
}

func TestSearchKNN_NoFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "*=>[KNN 5 @vector $BLOB]"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(res.Entries))
	}
}

func TestSearchKNN_MissingIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisError("vg:cohort:idx: no such index")))

	s := NewStoreForTest(c)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "vg:cohort:idx", Vector: []float32{1}, K: 5})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	if _, err := s.SearchKNN(ctx, &db.KNNQuery{Vector: []float32{0.1}, K: 10}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", K: 10}); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}}); err == nil {
		t.Error("expected error for k=0")
	}
}

func TestSearchList(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.SEARCH", "vg:enrolled:idx", `@user_id:{alice\@example\.com}`,
			"LIMIT", "0", "50", "RETURN", "1", "user_id", "DIALECT", "2",
		)).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("vg:enrolled:vp-1"),
			mock.RedisArray(mock.RedisString("user_id"), mock.RedisString("alice@example.com")),
			mock.RedisString("vg:enrolled:vp-2"),
			mock.RedisArray(mock.RedisString("user_id"), mock.RedisString("alice@example.com")),
		)))

	s := NewStoreForTest(c)
	res, err := s.SearchList(context.Background(), &db.ListQuery{
		IndexName:    "vg:enrolled:idx",
		Tags:         []db.TagFilter{db.Tag("user_id", "alice@example.com")},
		Limit:        50,
		ReturnFields: []string{"user_id"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 || len(res.Entries) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Entries[1].Key != "vg:enrolled:vp-2" {
		t.Errorf("key = %q", res.Entries[1].Key)
	}
}

func TestSearchCount(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", "vg:cohort:idx", "*", "LIMIT", "0", "0", "DIALECT", "2")).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(1200))))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", "vg:enrolled:idx", "@user_id:{bob}", "LIMIT", "0", "0", "DIALECT", "2")).
		Return(mock.Result(mock.RedisArray()))

	s := NewStoreForTest(c)
	n, err := s.SearchCount(context.Background(), "vg:cohort:idx")
	if err != nil || n != 1200 {
		t.Errorf("SearchCount = %d, %v; want 1200", n, err)
	}
	n, err = s.SearchCount(context.Background(), "vg:enrolled:idx", db.Tag("user_id", "bob"))
	if err != nil || n != 0 {
		t.Errorf("SearchCount = %d, %v; want 0", n, err)
	}
}

func TestBuildTagQuery(t *testing.T) {
	tests := []struct {
		name string
		tags []db.TagFilter
		want string
	}{
		{"none", nil, ""},
		{"single", []db.TagFilter{db.Tag("user_id", "alice")}, "@user_id:{alice}"},
		{"escaped", []db.TagFilter{db.Tag("user_id", "a.b-c@d")}, `@user_id:{a\.b\-c\@d}`},
		{"any of", []db.TagFilter{{Field: "user_id", Values: []string{"a", "b"}}}, "@user_id:{a | b}"},
		{
			"conjunction",
			[]db.TagFilter{db.Tag("user_id", "a"), db.Tag("is_active", "true")},
			"@user_id:{a} @is_active:{true}",
		},
		{"empty values skipped", []db.TagFilter{{Field: "user_id"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildTagQuery(tt.tags); got != tt.want {
				t.Errorf("buildTagQuery = %q, want %q", got, tt.want)
			}
		})
	}
}
