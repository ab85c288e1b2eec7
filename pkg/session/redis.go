package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/memory"
)

// RedisGuard is the production guard, backed by SETNX idempotency keys and a
// per-conversation status hash.
type RedisGuard struct {
	rdb      *redis.Client
	registry *config.TenantRegistry
	defaults *config.Defaults
}

// NewRedisGuard creates a Redis-backed guard. Panics on nil arguments.
func NewRedisGuard(rdb *redis.Client, registry *config.TenantRegistry, defaults *config.Defaults) *RedisGuard {
	if rdb == nil {
		panic("session.NewRedisGuard: redis client must not be nil")
	}
	if registry == nil {
		panic("session.NewRedisGuard: registry must not be nil")
	}
	if defaults == nil {
		panic("session.NewRedisGuard: defaults must not be nil")
	}
	return &RedisGuard{rdb: rdb, registry: registry, defaults: defaults}
}

func (g *RedisGuard) tenant(companyID string) (*config.TenantConfig, error) {
	t, ok := g.registry.Get(companyID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", memory.ErrUnknownTenant, companyID)
	}
	return t, nil
}

// MarkProcessed claims a (conversation, message) pair. It returns true for
// the first delivery and false for duplicates within the key TTL.
func (g *RedisGuard) MarkProcessed(ctx context.Context, companyID string, conversationID, messageID int64) (bool, error) {
	t, err := g.tenant(companyID)
	if err != nil {
		return false, err
	}
	blob, _ := json.Marshal(map[string]any{
		"company_id":   companyID,
		"processed_at": time.Now().Format(time.RFC3339),
	})
	first, err := g.rdb.SetNX(ctx, processedKey(t.RedisPrefix, conversationID, messageID), blob, g.defaults.ProcessedTTL).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency check: %w", err)
	}
	return first, nil
}

// SetBotStatus records a conversation status change. The bot stays active
// only while the status is in the tenant's active set.
func (g *RedisGuard) SetBotStatus(ctx context.Context, companyID string, conversationID int64, status string) error {
	t, err := g.tenant(companyID)
	if err != nil {
		return err
	}
	active := false
	for _, s := range g.defaults.BotActiveStatuses {
		if s == status {
			active = true
			break
		}
	}

	key := botStatusKey(t.RedisPrefix, conversationID)
	pipe := g.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"active":     fmt.Sprintf("%t", active),
		"status":     status,
		"company_id": companyID,
		"updated_at": time.Now().Format(time.RFC3339),
	})
	pipe.Expire(ctx, key, g.defaults.BotStatusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store bot status: %w", err)
	}
	return nil
}

// BotActive reports whether the bot should reply in a conversation. A
// conversation with no recorded status is treated as active.
func (g *RedisGuard) BotActive(ctx context.Context, companyID string, conversationID int64) (bool, error) {
	t, err := g.tenant(companyID)
	if err != nil {
		return false, err
	}
	val, err := g.rdb.HGet(ctx, botStatusKey(t.RedisPrefix, conversationID), "active").Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read bot status: %w", err)
	}
	return val == "true", nil
}
