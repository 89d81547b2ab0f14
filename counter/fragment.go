package counter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// fragmentSchemaVersion is the first byte of every stored fragment. Bumping
// it invalidates all fragments across a process restart instead of decoding
// stale layouts.
const fragmentSchemaVersion byte = 1

// ErrFragmentEncoding is returned when a fragment value cannot be encoded.
var ErrFragmentEncoding = errors.New("fragment encoding failed")

// Fragments is a read-through cache of derived values keyed by opaque
// strings. Values are stored as a schema-version byte followed by a JSON
// body; a version mismatch or undecodable body reads as a miss. Fragments
// never expire on their own — writers that change the underlying data must
// call Purge.
type Fragments struct {
	redis redis.UniversalClient
}

// NewFragments creates a fragment cache on the given Redis client.
func NewFragments(redisClient redis.UniversalClient) *Fragments {
	return &Fragments{redis: redisClient}
}

// Cache returns the cached value for key into dest, or invokes compute,
// stores its result, and returns that. Two concurrent misses on the same
// key may both compute; the last writer wins, which is acceptable because
// fragment values are idempotent recomputations of the same query.
func (f *Fragments) Cache(ctx context.Context, key string, dest any, compute func(ctx context.Context) (any, error)) error {
	data, err := f.redis.Get(ctx, key).Bytes()
	if err == nil {
		if decodeErr := decodeFragment(data, dest); decodeErr == nil {
			return nil
		}
		// Stale schema or corrupt payload: fall through and recompute.
	} else if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	value, err := compute(ctx)
	if err != nil {
		return err
	}
	if err := f.Update(ctx, key, value); err != nil {
		return err
	}
	return reassign(dest, value)
}

// Update stores value under key, replacing any existing fragment.
func (f *Fragments) Update(ctx context.Context, key string, value any) error {
	data, err := encodeFragment(value)
	if err != nil {
		return err
	}
	if err := f.redis.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Purge removes the fragment under key so the next read recomputes it.
func (f *Fragments) Purge(ctx context.Context, key string) error {
	if err := f.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func encodeFragment(value any) ([]byte, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFragmentEncoding, err)
	}
	return append([]byte{fragmentSchemaVersion}, body...), nil
}

func decodeFragment(data []byte, dest any) error {
	if len(data) < 1 || data[0] != fragmentSchemaVersion {
		return errors.New("fragment schema mismatch")
	}
	return json.Unmarshal(data[1:], dest)
}

// reassign copies a freshly computed value into dest through a JSON
// round-trip, keeping the miss path and the hit path type-exact.
func reassign(dest, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFragmentEncoding, err)
	}
	return json.Unmarshal(body, dest)
}
