package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

const defaultCacheTTL = 30 * time.Minute

// CachedSource fronts another Source with a per-location Redis cache.
type CachedSource struct {
	redis  *redis.Client
	source Source
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedSource wraps source. A non-positive ttl uses 30 minutes.
func NewCachedSource(client *redis.Client, source Source, ttl time.Duration, logger *logging.Logger) *CachedSource {
	if client == nil {
		panic("catalog: redis client cannot be nil")
	}
	if source == nil {
		panic("catalog: source cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedSource{redis: client, source: source, ttl: ttl, logger: logger}
}

func cacheKey(locationID int) string {
	return fmt.Sprintf("salon:catalog:location:%d", locationID)
}

// ServicesAt implements Source. Cache failures fall through to the backing source.
func (c *CachedSource) ServicesAt(ctx context.Context, locationID int) ([]ServiceRecord, error) {
	key := cacheKey(locationID)
	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var recs []ServiceRecord
		if jsonErr := json.Unmarshal(data, &recs); jsonErr == nil {
			return recs, nil
		}
		c.logger.Warn("catalog: discarding corrupt cache entry", "location_id", locationID)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("catalog: cache read failed", "error", err, "location_id", locationID)
	}

	recs, err := c.source.ServicesAt(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(recs); err == nil {
		if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog: cache write failed", "error", err, "location_id", locationID)
		}
	}
	return recs, nil
}

// Invalidate drops cached entries for the given locations.
func (c *CachedSource) Invalidate(ctx context.Context, locationIDs ...int) error {
	if len(locationIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(locationIDs)+1)
	for _, id := range locationIDs {
		keys = append(keys, cacheKey(id))
	}
	keys = append(keys, cacheKey(0))
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("catalog: invalidate cache: %w", err)
	}
	return nil
}
