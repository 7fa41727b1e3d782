package voiceprint

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/voicegate/internal/domain"
	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
)

func centroid(t *testing.T) embedding.Vector {
	t.Helper()
	v, err := embedding.New([]float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("embedding: %v", err)
	}
	return v
}

func TestNew(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	vp, err := New("u1", centroid(t), "ecapa", 3, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vp.ID() == "" {
		t.Error("expected generated id")
	}
	if !vp.IsActive() {
		t.Error("new voiceprint must be active")
	}
	if vp.CreatedAt().Location() != time.UTC {
		t.Error("expected UTC timestamp")
	}
	if vp.NumSamples() != 3 || vp.Model() != "ecapa" || vp.UserID() != "u1" {
		t.Errorf("unexpected fields: %+v", vp)
	}
}

func TestValidateUserID(t *testing.T) {
	valid := []string{"u1", "user.name@example.com", "a-b_c"}
	for _, id := range valid {
		if err := ValidateUserID(id); err != nil {
			t.Errorf("ValidateUserID(%q) = %v", id, err)
		}
	}
	invalid := []string{"", "has space", "semi;colon", strings.Repeat("a", MaxUserIDLength+1)}
	for _, id := range invalid {
		if err := ValidateUserID(id); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("ValidateUserID(%q) = %v, want ErrInvalidInput", id, err)
		}
	}
}

func TestNew_EmptyCentroid(t *testing.T) {
	_, err := New("u1", embedding.Vector{}, "m", 3, time.Now())
	if !errors.Is(err, domain.ErrInvalidEmbedding) {
		t.Fatalf("expected ErrInvalidEmbedding, got %v", err)
	}
}

func TestWithActive_ReturnsCopy(t *testing.T) {
	vp, _ := New("u1", centroid(t), "m", 3, time.Now())
	off := vp.WithActive(false)
	if off.IsActive() {
		t.Error("expected inactive copy")
	}
	if !vp.IsActive() {
		t.Error("original must stay active")
	}
}

func TestSelectActive_MostRecentWins(t *testing.T) {
	c := centroid(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	vps := []Voiceprint{
		Reconstruct("a", "u1", c, "m", 3, true, base),
		Reconstruct("b", "u1", c, "m", 3, true, base.Add(2*time.Hour)),
		Reconstruct("c", "u1", c, "m", 3, false, base.Add(3*time.Hour)),
	}
	got, ok := SelectActive(vps)
	if !ok {
		t.Fatal("expected an active voiceprint")
	}
	if got.ID() != "b" {
		t.Errorf("expected b, got %s", got.ID())
	}
}

func TestSelectActive_TieBrokenByID(t *testing.T) {
	c := centroid(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	vps := []Voiceprint{
		Reconstruct("z", "u1", c, "m", 3, true, ts),
		Reconstruct("k", "u1", c, "m", 3, true, ts),
	}
	for range 5 {
		got, _ := SelectActive(vps)
		if got.ID() != "k" {
			t.Fatalf("expected deterministic pick k, got %s", got.ID())
		}
	}
}

func TestSelectActive_NoneActive(t *testing.T) {
	c := centroid(t)
	vps := []Voiceprint{Reconstruct("a", "u1", c, "m", 3, false, time.Now())}
	if _, ok := SelectActive(vps); ok {
		t.Error("expected no active voiceprint")
	}
	if _, ok := SelectActive(nil); ok {
		t.Error("expected no active voiceprint for empty input")
	}
}

func TestSortNewestFirst(t *testing.T) {
	c := centroid(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	vps := []Voiceprint{
		Reconstruct("old", "u1", c, "m", 3, true, base),
		Reconstruct("new", "u1", c, "m", 3, false, base.Add(time.Hour)),
	}
	SortNewestFirst(vps)
	if vps[0].ID() != "new" || vps[1].ID() != "old" {
		t.Errorf("unexpected order: %s, %s", vps[0].ID(), vps[1].ID())
	}
}
