package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGenStore shares namespace generations across processes and survives
// restarts. An optional TTL bounds key lifetime; an expired generation reads
// as 0, which only makes entries written under generation 0 reachable again
// if they have not expired themselves, so keep the TTL above the entry TTL.
type RedisGenStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

var _ GenStore = (*RedisGenStore)(nil)

// NewRedisGenStore takes ownership of client. ttl <= 0 keeps generation keys
// forever.
func NewRedisGenStore(client redis.UniversalClient, ttl time.Duration) *RedisGenStore {
	return &RedisGenStore{rdb: client, ttl: ttl}
}

func key(ns string) string { return "gen:" + ns }

func (s *RedisGenStore) Snapshot(ctx context.Context, ns string) (uint64, error) {
	res, err := s.rdb.Get(ctx, key(ns)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis gen parse: %w", err)
	}
	return u, nil
}

// Bump runs INCR (and EXPIRE when a TTL is set) in one pipeline round-trip.
func (s *RedisGenStore) Bump(ctx context.Context, ns string) (uint64, error) {
	k := key(ns)
	if s.ttl <= 0 {
		return s.rdb.Incr(ctx, k).Uint64()
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

func (s *RedisGenStore) Close(context.Context) error { return s.rdb.Close() }
