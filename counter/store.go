// Package counter implements the shared failure-counter store backing the
// login attempt controller: plain string-keyed integers in Redis with an
// atomic conditional-increment primitive, plus a small read-through fragment
// cache for derived values.
package counter

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned when the Redis backend cannot be reached.
var ErrUnavailable = errors.New("counter store unavailable")

// ErrContention is returned when a conditional increment exceeded its retry
// budget without committing. Callers should treat it as a hard failure, not
// as a business outcome.
var ErrContention = errors.New("counter contention retries exhausted")

// DefaultMaxRetries bounds the optimistic retry loop in ConditionalIncrement.
// Each retry round admits exactly one concurrent committer, so the cap is
// only reachable under pathological contention on a single key.
const DefaultMaxRetries = 16

// Config holds counter store tuning parameters.
type Config struct {
	// MaxRetries caps the optimistic-concurrency retry loop.
	// Zero selects DefaultMaxRetries.
	MaxRetries int
}

// Store is a cache-like key-value service over Redis. Values are
// non-negative integers; absent keys read as zero.
type Store struct {
	redis      redis.UniversalClient
	maxRetries int
}

// New creates a counter [Store] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Store {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	return &Store{
		redis:      redisClient,
		maxRetries: retries,
	}
}

// Get returns the current value for key. Missing keys return zero so that a
// counter exists implicitly from its first read.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	value, err := s.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}

// Set overwrites the value for key. The login path uses it to reset a
// counter to zero after a successful attempt.
func (s *Store) Set(ctx context.Context, key string, value int64) error {
	if err := s.redis.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Increment atomically adds one to key and returns the committed value.
// It is ConditionalIncrement with an always-true predicate.
func (s *Store) Increment(ctx context.Context, key string) (int64, error) {
	var committed int64
	_, err := s.ConditionalIncrement(ctx, key, func(current int64) bool {
		committed = current + 1
		return true
	})
	if err != nil {
		return 0, err
	}
	return committed, nil
}

// ConditionalIncrement inspects the current value of key, decides via
// shouldIncrement whether to add one, and commits the increment so that no
// concurrent caller's increment is lost and no increment commits against a
// value that went stale before commit.
//
// The key is WATCHed, the current value read, the predicate evaluated, and
// the INCR issued inside MULTI/EXEC; if the key changed between read and
// EXEC the transaction aborts and the whole cycle retries. The predicate may
// therefore run several times for one call and must be pure with respect to
// re-evaluation. A nil predicate increments unconditionally.
//
// Returns whether the increment was applied. Exhausting the retry budget
// surfaces [ErrContention].
func (s *Store) ConditionalIncrement(ctx context.Context, key string, shouldIncrement func(current int64) bool) (bool, error) {
	for i := 0; i < s.maxRetries; i++ {
		var applied bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, key).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			if shouldIncrement != nil && !shouldIncrement(current) {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Incr(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			applied = true
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return applied, nil
	}

	return false, ErrContention
}
