package sharedstate

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conversia-ai/conversia/pkg/config"
)

// NewStore returns the Redis backend when the server is reachable and falls
// back to the in-memory backend otherwise, logging a warning. The degraded
// store loses cross-process sharing but keeps requests flowing.
func NewStore(rdb *redis.Client, registry *config.TenantRegistry, defaults *config.Defaults) Store {
	if rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err == nil {
			return NewRedisStore(rdb, registry, defaults)
		} else {
			slog.Warn("Redis unavailable for shared state, using in-memory fallback", "error", err)
		}
	}
	return NewInMemoryStore(registry, defaults)
}
