package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"followup_backend/internal/followups/ports"
	"followup_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheTTL = 5 * time.Minute
	keyPrefix       = "directory"
)

// CachedDirectory is a read-through redis cache in front of another
// directory. Concurrent misses for the same key share one lookup. Status
// writes go to the inner directory and drop the cached subject.
type CachedDirectory struct {
	inner  ports.Directory
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	log    *logger.Logger
}

func NewCachedDirectory(inner ports.Directory, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if log == nil {
		log = logger.Discard()
	}
	return &CachedDirectory{inner: inner, client: client, ttl: ttl, log: log}
}

func (c *CachedDirectory) GetLead(ctx context.Context, id uuid.UUID) (ports.SubjectRecord, error) {
	return readThrough(ctx, c, cacheKey("lead", id), func(ctx context.Context) (ports.SubjectRecord, error) {
		return c.inner.GetLead(ctx, id)
	})
}

func (c *CachedDirectory) GetClient(ctx context.Context, id uuid.UUID) (ports.SubjectRecord, error) {
	return readThrough(ctx, c, cacheKey("client", id), func(ctx context.Context) (ports.SubjectRecord, error) {
		return c.inner.GetClient(ctx, id)
	})
}

func (c *CachedDirectory) GetUser(ctx context.Context, id uuid.UUID) (ports.UserRecord, error) {
	return readThrough(ctx, c, cacheKey("user", id), func(ctx context.Context) (ports.UserRecord, error) {
		return c.inner.GetUser(ctx, id)
	})
}

func (c *CachedDirectory) SetLeadStatus(ctx context.Context, id uuid.UUID, status string) error {
	if err := c.inner.SetLeadStatus(ctx, id, status); err != nil {
		return err
	}
	c.invalidate(ctx, cacheKey("lead", id))
	return nil
}

func (c *CachedDirectory) SetClientStatus(ctx context.Context, id uuid.UUID, status string) error {
	if err := c.inner.SetClientStatus(ctx, id, status); err != nil {
		return err
	}
	c.invalidate(ctx, cacheKey("client", id))
	return nil
}

func (c *CachedDirectory) invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn("directory cache invalidation failed", "key", key, "error", err)
	}
}

// readThrough serves key from redis, falling back to load on a miss. Redis
// errors degrade to a direct load. Lookup errors are never cached.
func readThrough[T any](ctx context.Context, c *CachedDirectory, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T

	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached T
		if jsonErr := json.Unmarshal(val, &cached); jsonErr == nil {
			return cached, nil
		}
		c.log.Warn("directory cache entry is corrupt", "key", key)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("directory cache read failed", "key", key, "error", err)
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(loaded); err == nil {
			if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
				c.log.Warn("directory cache write failed", "key", key, "error", err)
			}
		}
		return loaded, nil
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

func cacheKey(kind string, id uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, id)
}

var _ ports.Directory = (*CachedDirectory)(nil)
