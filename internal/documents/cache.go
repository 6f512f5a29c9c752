package documents

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const catalogCacheKey = "zonasi:master-dokumen"

// CachedCatalogClient keeps a short-lived catalog snapshot in Redis so
// back-to-back batches do not hammer the document service. Cache failures fall
// through to the origin: the cache is an optimization, never a dependency.
type CachedCatalogClient struct {
	origin CatalogClient
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedCatalogClient(origin CatalogClient, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedCatalogClient {
	return &CachedCatalogClient{origin: origin, redis: rdb, ttl: ttl, logger: logger}
}

func (c *CachedCatalogClient) Catalog(ctx context.Context) ([]Requirement, error) {
	if cached, err := c.redis.Get(ctx, catalogCacheKey).Bytes(); err == nil {
		var catalog []Requirement
		if err := json.Unmarshal(cached, &catalog); err == nil {
			return catalog, nil
		}
		// Corrupt entry; drop it and refetch.
		c.redis.Del(ctx, catalogCacheKey)
	}

	catalog, err := c.origin.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(catalog); err == nil {
		if err := c.redis.Set(ctx, catalogCacheKey, encoded, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "failed to cache document catalog", "error", err)
		}
	}
	return catalog, nil
}
