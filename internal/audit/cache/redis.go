package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/elimika/auditlog/internal/audit"
)

const (
	keyPrefix     = "audit:pages"
	generationKey = keyPrefix + ":gen"
)

// PageCache stores audit pages in Redis. Keys embed a generation counter so
// Invalidate drops every cached page with a single INCR.
type PageCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewPageCache returns a Redis backed page cache.
func NewPageCache(client redis.UniversalClient, ttl time.Duration) *PageCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PageCache{client: client, ttl: ttl}
}

// Get returns the page cached under generation gen.
func (c *PageCache) Get(ctx context.Context, gen int64, key string, page int) (audit.Page, bool, error) {
	if c == nil || c.client == nil {
		return audit.Page{}, false, nil
	}
	redisKey := pageKey(gen, key, page)
	payload, err := c.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			recordCacheMiss()
			return audit.Page{}, false, nil
		}
		return audit.Page{}, false, fmt.Errorf("audit/cache: get: %w", err)
	}
	var cached audit.Page
	if err := json.Unmarshal(payload, &cached); err != nil {
		recordCacheMiss()
		return audit.Page{}, false, nil
	}
	recordCacheHit()
	return cached, true, nil
}

// Set stores a page under generation gen, which must be the generation read
// before the rows were loaded. A page loaded across an Invalidate lands under
// the old generation and is never served.
func (c *PageCache) Set(ctx context.Context, gen int64, key string, page int, value audit.Page) error {
	if c == nil || c.client == nil {
		return nil
	}
	redisKey := pageKey(gen, key, page)
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("audit/cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, redisKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("audit/cache: set: %w", err)
	}
	return nil
}

// Invalidate bumps the generation; old keys expire through their TTL.
func (c *PageCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("audit/cache: invalidate: %w", err)
	}
	recordInvalidation()
	return nil
}

// Generation reports the current generation counter.
func (c *PageCache) Generation(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	value, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("audit/cache: generation: %w", err)
	}
	return value, nil
}

func pageKey(gen int64, key string, page int) string {
	return keyPrefix + ":" + strconv.FormatInt(gen, 10) + ":" + filterDigest(key) + ":" + strconv.Itoa(page)
}

// filterDigest keeps free-text filters out of Redis key names.
func filterDigest(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}
