package voiceprint

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/voicegate/internal/db"
	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
)

// Hash field names of a stored voiceprint.
const (
	fieldID         = "id"
	fieldUserID     = "user_id"
	fieldModel      = "model"
	fieldNumSamples = "num_samples"
	fieldIsActive   = "is_active"
	fieldCreatedAt  = "created_at" // unix microseconds
)

var returnFields = []string{
	fieldID, fieldUserID, fieldModel, fieldNumSamples, fieldIsActive, fieldCreatedAt, db.VectorField,
}

// voiceprintToHash converts a domain Voiceprint into a flat map for HSET.
func voiceprintToHash(vp *domvp.Voiceprint) map[string]string {
	return map[string]string{
		fieldID:         vp.ID(),
		fieldUserID:     vp.UserID(),
		fieldModel:      vp.Model(),
		fieldNumSamples: strconv.Itoa(vp.NumSamples()),
		fieldIsActive:   strconv.FormatBool(vp.IsActive()),
		fieldCreatedAt:  strconv.FormatInt(vp.CreatedAt().UnixMicro(), 10),
		db.VectorField:  db.EncodeVector(vp.Embedding().Values()),
	}
}

// voiceprintFromHash hydrates a domain Voiceprint from an HGETALL/FT.SEARCH field map.
func voiceprintFromHash(m map[string]string) (domvp.Voiceprint, error) {
	id := m[fieldID]
	if id == "" {
		return domvp.Voiceprint{}, fmt.Errorf("missing %s", fieldID)
	}
	values, err := db.DecodeVector(m[db.VectorField])
	if err != nil {
		return domvp.Voiceprint{}, fmt.Errorf("voiceprint %s: %w", id, err)
	}
	if len(values) == 0 {
		return domvp.Voiceprint{}, fmt.Errorf("voiceprint %s: empty vector", id)
	}
	numSamples, err := strconv.Atoi(m[fieldNumSamples])
	if err != nil {
		return domvp.Voiceprint{}, fmt.Errorf("voiceprint %s: invalid %s: %w", id, fieldNumSamples, err)
	}
	active, err := strconv.ParseBool(m[fieldIsActive])
	if err != nil {
		return domvp.Voiceprint{}, fmt.Errorf("voiceprint %s: invalid %s: %w", id, fieldIsActive, err)
	}
	micros, err := strconv.ParseInt(m[fieldCreatedAt], 10, 64)
	if err != nil {
		return domvp.Voiceprint{}, fmt.Errorf("voiceprint %s: invalid %s: %w", id, fieldCreatedAt, err)
	}

	return domvp.Reconstruct(
		id, m[fieldUserID], embedding.Reconstruct(values), m[fieldModel],
		numSamples, active, time.UnixMicro(micros).UTC(),
	), nil
}
