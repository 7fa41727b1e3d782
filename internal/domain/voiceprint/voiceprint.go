package voiceprint

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/voicegate/internal/domain"
	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@-]+$`)

// MaxUserIDLength bounds user identifiers stored as index tags.
const MaxUserIDLength = 128

// Voiceprint is an enrolled speaker centroid (aggregate).
// Only the active flag changes after creation.
type Voiceprint struct {
	id         string
	userID     string
	embedding  embedding.Vector
	model      string
	numSamples int
	active     bool
	createdAt  time.Time
}

// ValidateUserID checks a user identifier.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if len(userID) > MaxUserIDLength {
		return fmt.Errorf("%w: user id too long (max %d)", domain.ErrInvalidInput, MaxUserIDLength)
	}
	if !userIDRegex.MatchString(userID) {
		return fmt.Errorf("%w: user id may contain letters, digits, '_', '.', '@' and '-'", domain.ErrInvalidInput)
	}
	return nil
}

// New creates an active voiceprint with a fresh identifier.
func New(userID string, centroid embedding.Vector, model string, numSamples int, now time.Time) (Voiceprint, error) {
	if err := ValidateUserID(userID); err != nil {
		return Voiceprint{}, err
	}
	if centroid.IsZero() {
		return Voiceprint{}, fmt.Errorf("%w: centroid is empty", domain.ErrInvalidEmbedding)
	}
	return Voiceprint{
		id:         uuid.NewString(),
		userID:     userID,
		embedding:  centroid,
		model:      model,
		numSamples: numSamples,
		active:     true,
		createdAt:  now.UTC().Truncate(time.Microsecond),
	}, nil
}

// Reconstruct creates a Voiceprint without validation (storage hydration).
func Reconstruct(
	id, userID string, centroid embedding.Vector, model string,
	numSamples int, active bool, createdAt time.Time,
) Voiceprint {
	return Voiceprint{
		id: id, userID: userID, embedding: centroid, model: model,
		numSamples: numSamples, active: active, createdAt: createdAt,
	}
}

// ID returns the voiceprint identifier; it doubles as the vector-store point id.
func (v *Voiceprint) ID() string { return v.id }

// UserID returns the owning user.
func (v *Voiceprint) UserID() string { return v.userID }

// Embedding returns the unit-length enrollment centroid.
func (v *Voiceprint) Embedding() embedding.Vector { return v.embedding }

// Model returns the embedding model name the centroid was computed with.
func (v *Voiceprint) Model() string { return v.model }

// NumSamples returns how many enrollment samples were aggregated.
func (v *Voiceprint) NumSamples() int { return v.numSamples }

// IsActive reports whether the voiceprint may serve verification.
func (v *Voiceprint) IsActive() bool { return v.active }

// CreatedAt returns the creation timestamp (UTC).
func (v *Voiceprint) CreatedAt() time.Time { return v.createdAt }

// WithActive returns a copy with the active flag set.
func (v Voiceprint) WithActive(active bool) Voiceprint {
	v.active = active
	return v
}

// SortNewestFirst orders voiceprints by creation time descending, id ascending on ties.
func SortNewestFirst(vps []Voiceprint) {
	sort.SliceStable(vps, func(i, j int) bool {
		if !vps[i].createdAt.Equal(vps[j].createdAt) {
			return vps[i].createdAt.After(vps[j].createdAt)
		}
		return vps[i].id < vps[j].id
	})
}

// SelectActive picks the voiceprint that serves verification: the most recently
// created active one. Several active voiceprints are permitted by the data model.
func SelectActive(vps []Voiceprint) (Voiceprint, bool) {
	var (
		best  Voiceprint
		found bool
	)
	for _, vp := range vps {
		if !vp.active {
			continue
		}
		if !found || vp.createdAt.After(best.createdAt) ||
			(vp.createdAt.Equal(best.createdAt) && vp.id < best.id) {
			best = vp
			found = true
		}
	}
	return best, found
}
