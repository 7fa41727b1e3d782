package redis

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/voicegate/internal/db"
)

func voiceprintIndex() *db.IndexDefinition {
	return db.NewIndex("vg:enrolled:idx").
		Prefix("vg:enrolled:").
		CaseSensitiveTag("user_id").
		Tag("is_active").
		Numeric("created_at").
		VectorHNSW(db.VectorField, 192, db.DistanceCosine, 16, 200).
		MustBuild()
}

func TestCreateIndex_Args(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var got []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			got = cmd
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.CreateIndex(context.Background(), voiceprintIndex()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"FT.CREATE", "vg:enrolled:idx", "ON", "HASH", "PREFIX", "1", "vg:enrolled:", "SCHEMA",
		"user_id", "TAG", "CASESENSITIVE",
		"is_active", "TAG",
		"created_at", "NUMERIC",
		"vector", "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32", "DIM", "192", "DISTANCE_METRIC", "COSINE", "M", "16", "EF_CONSTRUCTION", "200",
	}
	if !slices.Equal(got, want) {
		t.Errorf("FT.CREATE args\n got: %v\nwant: %v", got, want)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	err := s.CreateIndex(context.Background(), voiceprintIndex())
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "vg:cohort:idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	err := s.DropIndex(context.Background(), "vg:cohort:idx")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "present")).
		Return(mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("present"))))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "absent")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "broken")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	ctx := context.Background()
	if ok, err := s.IndexExists(ctx, "present"); err != nil || !ok {
		t.Errorf("IndexExists(present) = %v, %v", ok, err)
	}
	if ok, err := s.IndexExists(ctx, "absent"); err != nil || ok {
		t.Errorf("IndexExists(absent) = %v, %v", ok, err)
	}
	if _, err := s.IndexExists(ctx, "broken"); !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

func TestEnsureIndex_SkipsExisting(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.INFO", "vg:enrolled:idx")).
		Return(mock.Result(mock.RedisArray()))

	s := NewStoreForTest(c)
	if err := s.EnsureIndex(context.Background(), voiceprintIndex()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_CreatesMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "vg:enrolled:idx")).
			Return(mock.Result(mock.RedisError("Unknown index name"))),
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
			Return(mock.Result(mock.RedisError("Index already exists"))),
	)

	s := NewStoreForTest(c)
	if err := s.EnsureIndex(context.Background(), voiceprintIndex()); err != nil {
		t.Fatalf("concurrent creation must be tolerated, got %v", err)
	}
}

func TestBuildFieldArgs_Errors(t *testing.T) {
	if _, err := buildFieldArgs(&db.IndexField{Name: "", Type: db.IndexFieldTag}); err == nil {
		t.Error("expected error for empty field name")
	}
	if _, err := buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldType(99)}); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := buildFieldArgs(&db.IndexField{Name: "f", Type: db.IndexFieldVector}); err == nil {
		t.Error("expected error for zero vector dim")
	}
	if _, err := buildCreateArgs(&db.IndexDefinition{Name: "idx"}); err == nil {
		t.Error("expected error for empty schema")
	}
}

func TestBuildVectorFieldArgs_Flat(t *testing.T) {
	args, err := buildVectorFieldArgs(&db.IndexField{
		Name: "vector", Type: db.IndexFieldVector, VectorDim: 192, VectorAlgo: db.VectorFlat,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"VECTOR", "FLAT", "6", "TYPE", "FLOAT32", "DIM", "192", "DISTANCE_METRIC", "COSINE"}
	if !slices.Equal(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}
