package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

type flightGroup = singleflight.Group

// KeyFunc derives the deterministic cache key from the wrapped
// function's arguments.
type KeyFunc func(args ...interface{}) string

// OriginFunc fetches the value from the source of truth on cache miss.
type OriginFunc func(ctx context.Context, args ...interface{}) (interface{}, error)

// CachedFunc is the wrapped read-through function.
type CachedFunc func(ctx context.Context, args ...interface{}) (interface{}, error)

// Wrap builds a read-through function over the named pool. A live entry
// returns immediately and counts a hit; otherwise origin is invoked and
// the result stored under the pool's TTL (or ttlOverride when > 0).
// Concurrent misses for the same key share one origin call through
// singleflight, so no thundering herd reaches the origin. Latency of
// both paths is recorded for later ratio computation.
func (m *Manager) Wrap(poolName string, keyFn KeyFunc, origin OriginFunc, ttlOverride time.Duration) CachedFunc {
	return func(ctx context.Context, args ...interface{}) (interface{}, error) {
		key := keyFn(args...)

		start := time.Now()
		if v, ok := m.Get(poolName, key); ok {
			m.metrics.observeCachePath(time.Since(start))
			return v, nil
		}

		v, err, _ := m.flight.Do(poolName+":"+key, func() (interface{}, error) {
			// A concurrent caller may have stored the value while this
			// call waited its turn; peek without recounting the miss.
			if v, ok := m.peek(poolName, key); ok {
				return v, nil
			}
			v, err := origin(ctx, args...)
			if err != nil {
				return nil, err
			}
			m.Set(poolName, key, v, ttlOverride)
			return v, nil
		})
		m.metrics.observeOriginPath(time.Since(start))
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
