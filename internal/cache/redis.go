package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Per-operation budget for the distributed tier. A cache lookup that
// takes longer than this costs more than the recomputation it avoids.
// No automatic retries — a failed operation degrades to a miss.
const redisOpTimeout = 500 * time.Millisecond

// redisKeyPrefix namespaces every key this subsystem writes, so Clear
// can scan-and-delete its own keys without touching anything else that
// may share the Redis database.
const redisKeyPrefix = "tutorcache:"

// RedisStats holds the distributed tier's lifetime operation counters.
type RedisStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
	Errors  int64 `json:"errors"`
}

// RedisStore is the distributed cache tier shared across backend
// replicas. Every operation degrades gracefully: network or protocol
// errors are logged and counted, then reported as a miss (Get) or
// swallowed (Set/Delete/Clear). A cache must never turn a transient
// infrastructure failure into a user-facing request failure.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
	errors  atomic.Int64
}

// NewRedisStoreFromURL parses redisURL, verifies connectivity with a
// PING and returns a RedisStore. A connection failure here is an error —
// the caller decides whether to degrade to local-only caching.
func NewRedisStoreFromURL(ctx context.Context, redisURL string, log *slog.Logger) (*RedisStore, error) {
	if ctx == nil {
		return nil, fmt.Errorf("cache: context must not be nil")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}

	cli := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := cli.Ping(pingCtx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}

	return NewRedisStoreFromClient(cli, log), nil
}

// NewRedisStoreFromClient wraps an existing client. The store owns the
// client from here on; Close releases it.
func NewRedisStoreFromClient(cli *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{client: cli, log: log}
}

// Get returns (payload, true) on a hit and (nil, false) on a miss or any
// error. redis.Nil is an ordinary miss; everything else is logged and
// counted as an error. An empty payload with a hit is distinguishable
// from a miss, so legitimately cached empty values round-trip.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	val, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.errors.Add(1)
			s.log.Warn("distributed cache get failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return val, true
}

// Set stores value under key with the given TTL. Failures are logged and
// counted, never propagated — the local tier still holds the value.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := s.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(); err != nil {
		s.errors.Add(1)
		s.log.Warn("distributed cache set failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	s.sets.Add(1)
}

// Delete removes key. A failure means the entry lives on until its TTL
// fires; that is acceptable for a cache, so the error is only logged.
func (s *RedisStore) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		s.errors.Add(1)
		s.log.Warn("distributed cache delete failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	s.deletes.Add(1)
}

// Clear removes every key this subsystem owns.
func (s *RedisStore) Clear(ctx context.Context) {
	s.ClearPrefix(ctx, "")
}

// ClearPrefix removes every owned key under the given workload prefix
// using SCAN + DEL, never FLUSHDB — the database may be shared.
func (s *RedisStore) ClearPrefix(ctx context.Context, prefix string) {
	// Scanning a keyspace is not a hot-path operation; give it a more
	// generous budget than single-key commands.
	ctx, cancel := context.WithTimeout(ctx, 10*redisOpTimeout)
	defer cancel()

	pattern := redisKeyPrefix + prefix + "*"
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			s.errors.Add(1)
			s.log.Warn("distributed cache clear failed",
				slog.String("key", iter.Val()),
				slog.String("error", err.Error()),
			)
			return
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		s.errors.Add(1)
		s.log.Warn("distributed cache scan failed",
			slog.String("pattern", pattern),
			slog.String("error", err.Error()),
		)
		return
	}
	if deleted > 0 {
		s.deletes.Add(int64(deleted))
	}
}

// Stats returns a snapshot of the tier's operation counters.
func (s *RedisStore) Stats() RedisStats {
	return RedisStats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Sets:    s.sets.Load(),
		Deletes: s.deletes.Load(),
		Errors:  s.errors.Load(),
	}
}

// Client exposes the underlying connection for subsystems that share it
// (the rate limiter). The RedisStore still owns the lifecycle.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
