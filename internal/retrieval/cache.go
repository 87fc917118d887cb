package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RetrievabilityCache memoizes per-memory FSRS retrievability lookups for
// the duration of one retrieval call, so a memory that surfaces as both a
// vector hit and an activation hit costs one cognitive-store round trip
// instead of two. Backed by Redis the way the teacher's skills/workspace
// caches are (redis.UniversalClient, short TTL, nil-receiver no-ops when
// disabled), rather than an ad hoc in-process map, so the cache can be
// shared across concurrent retrieve calls on the same process.
type RetrievabilityCache struct {
	client redis.UniversalClient
	source Retrievability
	ttl    time.Duration
}

// NewRetrievabilityCache wraps source with a Redis-backed memo layer. A nil
// client degrades every call straight through to source, same as a disabled
// cache in the teacher's pattern.
func NewRetrievabilityCache(client redis.UniversalClient, source Retrievability, ttl time.Duration) *RetrievabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RetrievabilityCache{client: client, source: source, ttl: ttl}
}

func (c *RetrievabilityCache) key(memoryID string, now int64) string {
	return fmt.Sprintf("rook:retrievability:%s:%d", memoryID, now/60)
}

// RetrievabilityAt satisfies the Retrievability interface, checking the
// cache before falling through to the wrapped source.
func (c *RetrievabilityCache) RetrievabilityAt(memoryID string, now int64) (float64, bool) {
	if c == nil {
		return 0, false
	}
	if c.client == nil {
		return c.source.RetrievabilityAt(memoryID, now)
	}
	ctx := context.Background()
	key := c.key(memoryID, now)

	if val, err := c.client.Get(ctx, key).Result(); err == nil {
		if r, parseErr := strconv.ParseFloat(val, 64); parseErr == nil {
			return r, true
		}
	}

	r, ok := c.source.RetrievabilityAt(memoryID, now)
	if !ok {
		return 0, false
	}
	_ = c.client.Set(ctx, key, strconv.FormatFloat(r, 'f', -1, 64), c.ttl).Err()
	return r, true
}
