package cache

import (
	"github.com/redis/go-redis/v9"

	"ccm_server/config"
	"ccm_server/core/port/out"
	"ccm_server/pkg/logger"
)

// NewReportCache builds the cache variant named by CACHE_PROVIDER. The redis
// client is only required for the remote variant.
func NewReportCache(cfg *config.Config, redisClient *redis.Client) out.ReportCache {
	if cfg.CacheProvider == config.CacheProviderRemote {
		logger.Info("[ReportCache] using remote redis cache")
		return NewRedisCache(redisClient)
	}
	logger.Info("[ReportCache] using in-process memory cache")
	return NewMemoryCache(0)
}
