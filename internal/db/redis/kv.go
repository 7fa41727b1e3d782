package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/voicegate/internal/db"
)

// Get returns the value of a string key. A missing key yields db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	v, err := s.do(ctx, cmd).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, &db.Error{Op: db.OpGet, Err: db.ErrKeyNotFound}
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return v, nil
}

// SetEx stores value under key; ttl <= 0 stores it without expiry.
func (s *Store) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	set := s.b().Set().Key(key).Value(string(value))
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = set.Ex(ttl).Build()
	} else {
		cmd = set.Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}
