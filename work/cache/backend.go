package cache

import (
	"fmt"
	"strings"

	"hlsproxy/work/config"
	"hlsproxy/work/logger"
)

// NewBackend builds the backend named by cfg.CacheBackend. The "none"
// backend returns nil, which the Gateway treats as an always-missing cache.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch strings.ToLower(cfg.CacheBackend) {
	case "memory", "":
		logger.Info("{cache/backend - NewBackend} using memory cache (max %d entries)", cfg.CacheMaxEntries)
		return NewMemoryBackend(cfg.CacheMaxEntries, cfg.CacheTTL())
	case "sqlite":
		logger.Info("{cache/backend - NewBackend} using sqlite cache at %s", cfg.CachePath)
		return NewSQLiteBackend(cfg.CachePath)
	case "leveldb":
		logger.Info("{cache/backend - NewBackend} using leveldb cache at %s", cfg.CachePath)
		return NewLevelDBBackend(cfg.CachePath)
	case "none":
		logger.Info("{cache/backend - NewBackend} cache disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
