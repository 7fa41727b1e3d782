package vpcache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
)

// repository is the consumer interface for the wrapped voiceprint store (ISP).
type repository interface {
	Save(ctx context.Context, vp domvp.Voiceprint) error
	Get(ctx context.Context, id string) (domvp.Voiceprint, error)
	ListByUser(ctx context.Context, userID string) ([]domvp.Voiceprint, error)
	Delete(ctx context.Context, vp domvp.Voiceprint) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

// Repo caches per-user voiceprint listings in an expiring LRU.
// Every write through the decorator drops the owner's entry.
// A listing loaded while any write was invalidating is returned but not cached.
type Repo struct {
	inner      repository
	lru        *expirable.LRU[string, []domvp.Voiceprint]
	cacheTotal *prometheus.CounterVec

	mu  sync.Mutex
	gen uint64 // bumped by every invalidation
}

// New creates a caching decorator. size <= 0 disables caching.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(inner repository, size int, ttl time.Duration, cacheTotal *prometheus.CounterVec) *Repo {
	r := &Repo{inner: inner, cacheTotal: cacheTotal}
	if size > 0 {
		r.lru = expirable.NewLRU[string, []domvp.Voiceprint](size, nil, ttl)
	}
	return r
}

// ListByUser returns the cached listing or loads it from the inner store.
func (r *Repo) ListByUser(ctx context.Context, userID string) ([]domvp.Voiceprint, error) {
	if r.lru != nil {
		if vps, ok := r.lru.Get(userID); ok {
			r.incCache("hit")
			return slices.Clone(vps), nil
		}
		r.incCache("miss")
	}

	gen := r.generation()
	vps, err := r.inner.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list voiceprints: %w", err)
	}
	r.fill(userID, gen, vps)
	return vps, nil
}

// Get is not cached.
func (r *Repo) Get(ctx context.Context, id string) (domvp.Voiceprint, error) {
	return r.inner.Get(ctx, id) //nolint:wrapcheck // transparent decorator
}

// Save stores vp and invalidates its owner.
func (r *Repo) Save(ctx context.Context, vp domvp.Voiceprint) error {
	defer r.invalidate(vp.UserID())
	return r.inner.Save(ctx, vp) //nolint:wrapcheck // transparent decorator
}

// Delete removes vp and invalidates its owner.
func (r *Repo) Delete(ctx context.Context, vp domvp.Voiceprint) error {
	defer r.invalidate(vp.UserID())
	return r.inner.Delete(ctx, vp) //nolint:wrapcheck // transparent decorator
}

// DeleteByUser removes every voiceprint of userID and invalidates the entry.
func (r *Repo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	defer r.invalidate(userID)
	return r.inner.DeleteByUser(ctx, userID) //nolint:wrapcheck // transparent decorator
}

// Len reports the number of cached users.
func (r *Repo) Len() int {
	if r.lru == nil {
		return 0
	}
	return r.lru.Len()
}

func (r *Repo) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// fill caches vps unless an invalidation ran since gen was read.
func (r *Repo) fill(userID string, gen uint64, vps []domvp.Voiceprint) {
	if r.lru == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return
	}
	r.lru.Add(userID, slices.Clone(vps))
}

func (r *Repo) invalidate(userID string) {
	if r.lru == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.lru.Remove(userID)
}

func (r *Repo) incCache(result string) {
	if r.cacheTotal != nil {
		r.cacheTotal.WithLabelValues(result).Inc()
	}
}
