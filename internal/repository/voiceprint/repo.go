package voiceprint

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/voicegate/internal/db"
	"github.com/kailas-cloud/voicegate/internal/domain"
	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
)

// MaxPerUser bounds how many voiceprints of one user a listing returns.
const MaxPerUser = 1000

const dependency = "voiceprint store"

// store is the consumer interface for voiceprints (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
}

// Config describes the enrolled-users collection layout.
type Config struct {
	KeyPrefix   string
	Collection  string
	Dim         int
	M           int
	EFConstruct int
	Retry       db.RetryPolicy
}

// Repo stores voiceprints as hashes under an FT index (user_id, is_active, created_at, vector).
type Repo struct {
	store store
	cfg   Config
}

// New creates a voiceprint repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

// IndexName returns the FT index name of the enrolled collection.
func (r *Repo) IndexName() string {
	return r.cfg.KeyPrefix + r.cfg.Collection + ":idx"
}

func (r *Repo) key(id string) string {
	return r.cfg.KeyPrefix + r.cfg.Collection + ":" + id
}

// EnsureIndex creates the voiceprint FT index if it is missing.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := db.NewIndex(r.IndexName()).
		OnHash().
		Prefix(r.key("")).
		CaseSensitiveTag(fieldUserID).
		Tag(fieldIsActive).
		Numeric(fieldCreatedAt).
		VectorHNSW(db.VectorField, r.cfg.Dim, db.DistanceCosine, r.cfg.M, r.cfg.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build voiceprint index: %w", err)
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

// IndexReady reports whether the voiceprint index exists.
func (r *Repo) IndexReady(ctx context.Context) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return false, domain.NewDependencyError(dependency, err)
	}
	return ok, nil
}

// Save writes the full voiceprint record (create or overwrite).
func (r *Repo) Save(ctx context.Context, vp domvp.Voiceprint) error {
	fields := voiceprintToHash(&vp)
	err := db.Do(ctx, r.cfg.Retry, func(ctx context.Context) error {
		return r.store.HSet(ctx, r.key(vp.ID()), fields)
	})
	if err != nil {
		return wrapErr(ctx, "save voiceprint", err)
	}
	return nil
}

// Get loads a voiceprint by id.
func (r *Repo) Get(ctx context.Context, id string) (domvp.Voiceprint, error) {
	m, err := db.Query(ctx, r.cfg.Retry, func(ctx context.Context) (map[string]string, error) {
		return r.store.HGetAll(ctx, r.key(id))
	})
	if errors.Is(err, db.ErrKeyNotFound) {
		return domvp.Voiceprint{}, domain.ErrVoiceprintNotFound
	}
	if err != nil {
		return domvp.Voiceprint{}, wrapErr(ctx, "get voiceprint", err)
	}
	vp, err := voiceprintFromHash(m)
	if err != nil {
		return domvp.Voiceprint{}, domain.NewDependencyError(dependency, err)
	}
	return vp, nil
}

// ListByUser returns all voiceprints of a user, newest first.
func (r *Repo) ListByUser(ctx context.Context, userID string) ([]domvp.Voiceprint, error) {
	res, err := db.Query(ctx, r.cfg.Retry, func(ctx context.Context) (*db.SearchResult, error) {
		return r.store.SearchList(ctx, &db.ListQuery{
			IndexName:    r.IndexName(),
			Tags:         []db.TagFilter{db.Tag(fieldUserID, userID)},
			Limit:        MaxPerUser,
			ReturnFields: returnFields,
		})
	})
	if errors.Is(err, db.ErrIndexNotFound) {
		return []domvp.Voiceprint{}, nil
	}
	if err != nil {
		return nil, wrapErr(ctx, "list voiceprints", err)
	}

	out := make([]domvp.Voiceprint, 0, len(res.Entries))
	for _, e := range res.Entries {
		vp, err := voiceprintFromHash(e.Fields)
		if err != nil {
			return nil, domain.NewDependencyError(dependency, fmt.Errorf("parse %s: %w", e.Key, err))
		}
		out = append(out, vp)
	}
	domvp.SortNewestFirst(out)
	return out, nil
}

// Delete removes a voiceprint.
func (r *Repo) Delete(ctx context.Context, vp domvp.Voiceprint) error {
	err := db.Do(ctx, r.cfg.Retry, func(ctx context.Context) error {
		return r.store.Del(ctx, r.key(vp.ID()))
	})
	if err != nil {
		return wrapErr(ctx, "delete voiceprint", err)
	}
	return nil
}

// DeleteByUser removes every voiceprint of a user and returns how many were removed.
func (r *Repo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	vps, err := r.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(vps) == 0 {
		return 0, nil
	}
	keys := make([]string, len(vps))
	for i := range vps {
		keys[i] = r.key(vps[i].ID())
	}
	err = db.Do(ctx, r.cfg.Retry, func(ctx context.Context) error {
		return r.store.Del(ctx, keys...)
	})
	if err != nil {
		return 0, wrapErr(ctx, "delete user voiceprints", err)
	}
	return len(vps), nil
}

func wrapErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.NewDependencyError(dependency, fmt.Errorf("%s: %w", op, err))
}
