package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stratahq/strata/internal/core/topology"
)

// CapacityCache is a read-through redis cache in front of the licensed
// unit counts. Plan capacity changes rarely but is read on every
// generation and re-inclusion, so misses go to the database and hits
// skip it entirely. A cache failure is never fatal; the source wins.
type CapacityCache struct {
	source topology.CapacitySource
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// CapacityCacheConfig holds configuration for the capacity cache
type CapacityCacheConfig struct {
	Source topology.CapacitySource
	Client redis.Cmdable
	Prefix string
	TTL    time.Duration
	Logger *zap.Logger
}

// NewCapacityCache creates a capacity cache over the given source
func NewCapacityCache(cfg CapacityCacheConfig) *CapacityCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CapacityCache{
		source: cfg.Source,
		client: cfg.Client,
		prefix: cfg.Prefix,
		ttl:    ttl,
		logger: cfg.Logger.Named("cache.capacity"),
	}
}

func (c *CapacityCache) key(tenantID uint) string {
	return fmt.Sprintf("%slicensed_units:%d", c.prefix, tenantID)
}

// LicensedUnits returns the tenant's licensed unit count, from redis
// when fresh and from the source on a miss.
func (c *CapacityCache) LicensedUnits(ctx context.Context, tenantID uint) (int, error) {
	key := c.key(tenantID)

	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if n, convErr := strconv.Atoi(val); convErr == nil {
			return n, nil
		}
		// unparseable entry, fall through to the source and rewrite it
	} else if err != redis.Nil {
		c.logger.Warn("capacity cache read failed",
			zap.Uint("tenant_id", tenantID),
			zap.Error(err))
	}

	n, err := c.source.LicensedUnits(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	if err := c.client.Set(ctx, key, strconv.Itoa(n), c.ttl).Err(); err != nil {
		c.logger.Warn("capacity cache write failed",
			zap.Uint("tenant_id", tenantID),
			zap.Error(err))
	}
	return n, nil
}

// Invalidate drops the cached count after a plan change
func (c *CapacityCache) Invalidate(ctx context.Context, tenantID uint) error {
	return c.client.Del(ctx, c.key(tenantID)).Err()
}
