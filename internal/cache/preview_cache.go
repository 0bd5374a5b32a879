// Package cache provides an optional Redis-backed read-through cache for
// public discount-code previews. Preview verdicts are advisory (the
// redemption transaction re-validates everything under serializable
// isolation), so a short TTL plus invalidation on admin mutations is
// sufficient consistency.
//
// Every method degrades gracefully: a missing or unreachable Redis behaves
// like a permanent cache miss and is logged at debug level, never surfaced
// to callers.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/folioforge/go-discount-backend/internal/services"
)

// DefaultPreviewTTL keeps verdicts fresh enough for storefront display.
const DefaultPreviewTTL = 30 * time.Second

// keyPrefix namespaces preview entries within a shared Redis.
const keyPrefix = "discount:preview:"

// PreviewCache implements services.PreviewCacheStore on top of go-redis.
type PreviewCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPreviewCache wraps an existing Redis client. A zero ttl means
// DefaultPreviewTTL.
func NewPreviewCache(rdb *redis.Client, ttl time.Duration) *PreviewCache {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	return &PreviewCache{rdb: rdb, ttl: ttl}
}

// Get returns a cached verdict for a normalized code, or ok=false on miss,
// decode failure, or backend error.
func (c *PreviewCache) Get(ctx context.Context, code string) (*services.PreviewResult, bool) {
	raw, err := c.rdb.Get(ctx, keyPrefix+code).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("code", code).Msg("preview cache get failed")
		}
		return nil, false
	}
	var res services.PreviewResult
	if err := json.Unmarshal(raw, &res); err != nil {
		log.Debug().Err(err).Str("code", code).Msg("preview cache entry corrupt")
		return nil, false
	}
	return &res, true
}

// Set stores a verdict under the cache TTL. Failures are logged and dropped.
func (c *PreviewCache) Set(ctx context.Context, code string, res *services.PreviewResult) {
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+code, raw, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("code", code).Msg("preview cache set failed")
	}
}

// Invalidate drops the cached verdict for a code. Admin mutations call this
// so storefronts never display a stale verdict past the mutation.
func (c *PreviewCache) Invalidate(ctx context.Context, code string) {
	if err := c.rdb.Del(ctx, keyPrefix+code).Err(); err != nil {
		log.Debug().Err(err).Str("code", code).Msg("preview cache invalidate failed")
	}
}
