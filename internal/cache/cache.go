// Package cache memoizes metadata lookups. Extraction is the most expensive
// step in every flow, and preview, download, and stream requests for the same
// URL tend to arrive seconds apart.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"mediadrop/internal/domain"
	"mediadrop/internal/extractor"
)

const keyPrefix = "mediadrop:meta:"

// Connect dials Redis and verifies the connection. A nil client is returned
// when addr is empty or the ping fails; the cache degrades to process-local
// memory in that case rather than refusing to start.
func Connect(addr string, logger zerolog.Logger) *redis.Client {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", addr).Msg("redis unreachable, using in-memory cache only")
		rdb.Close()
		return nil
	}
	logger.Info().Str("addr", addr).Msg("redis cache connected")
	return rdb
}

type localEntry struct {
	payload []byte
	expires time.Time
}

// MetadataCache deduplicates concurrent lookups for the same key and caches
// successful results for a bounded TTL. Redis is optional; when absent the
// local map alone serves the same purpose for a single instance.
type MetadataCache struct {
	group  singleflight.Group
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu    sync.Mutex
	local map[string]localEntry
}

// New builds a cache. rdb may be nil.
func New(rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *MetadataCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MetadataCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
		local:  make(map[string]localEntry),
	}
}

// Lookup returns the cached metadata for key, or runs fetch exactly once for
// all concurrent callers and caches its result. Failures are never cached.
func (c *MetadataCache) Lookup(ctx context.Context, key string, fetch func() (*extractor.Metadata, error)) (*extractor.Metadata, error) {
	if meta := c.get(ctx, key); meta != nil {
		return meta, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A racing caller may have populated the cache while this one was
		// queued behind the flight.
		if meta := c.get(ctx, key); meta != nil {
			return meta, nil
		}
		meta, err := fetch()
		if err != nil {
			return nil, err
		}
		c.put(ctx, key, meta)
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*extractor.Metadata), nil
}

func (c *MetadataCache) get(ctx context.Context, key string) *extractor.Metadata {
	c.mu.Lock()
	if e, ok := c.local[key]; ok && time.Now().Before(e.expires) {
		c.mu.Unlock()
		return decode(e.payload)
	}
	c.mu.Unlock()

	if c.rdb == nil {
		return nil
	}
	payload, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Msg("redis get failed")
		}
		return nil
	}
	return decode(payload)
}

func (c *MetadataCache) put(ctx context.Context, key string, meta *extractor.Metadata) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return
	}

	c.mu.Lock()
	now := time.Now()
	for k, e := range c.local {
		if now.After(e.expires) {
			delete(c.local, k)
		}
	}
	c.local[key] = localEntry{payload: payload, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, keyPrefix+key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("redis set failed")
		}
	}
}

// CachedExtractor fronts a metadata client with the cache. Cookie-carrying
// requests are keyed separately so an authenticated lookup never leaks into
// anonymous ones.
type CachedExtractor struct {
	client *extractor.Client
	cache  *MetadataCache
}

func NewCachedExtractor(client *extractor.Client, c *MetadataCache) *CachedExtractor {
	return &CachedExtractor{client: client, cache: c}
}

func (e *CachedExtractor) Extract(ctx context.Context, ref domain.MediaReference, profile domain.PlatformProfile) (*extractor.Metadata, error) {
	key := ref.PlatformTag + "|" + ref.CanonicalURL + "|" + profile.CookieHeader
	return e.cache.Lookup(ctx, key, func() (*extractor.Metadata, error) {
		return e.client.Extract(ctx, ref, profile)
	})
}

func decode(payload []byte) *extractor.Metadata {
	meta := new(extractor.Metadata)
	if err := json.Unmarshal(payload, meta); err != nil {
		return nil
	}
	return meta
}
