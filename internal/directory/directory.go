package directory

import (
	"fmt"

	"followup_backend/internal/followups/ports"
	"followup_backend/platform/config"
	"followup_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// New returns the Postgres directory, wrapped in the redis cache when caching
// is configured. The returned close func releases the redis client.
func New(pool *pgxpool.Pool, cfg config.CacheConfig, log *logger.Logger) (ports.Directory, func(), error) {
	pg := NewPGDirectory(pool)
	if !cfg.IsDirectoryCacheEnabled() {
		return pg, func() {}, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	log.Info("directory cache enabled", "ttl", cfg.GetDirectoryCacheTTL())

	return NewCachedDirectory(pg, client, cfg.GetDirectoryCacheTTL(), log), func() { _ = client.Close() }, nil
}
