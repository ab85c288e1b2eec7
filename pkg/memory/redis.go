package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/models"
)

// RedisStore is the production conversation memory, backed by a Redis list
// per (tenant, user) plus a conversation metadata hash.
type RedisStore struct {
	rdb      *redis.Client
	registry *config.TenantRegistry
	ttl      time.Duration
}

// NewRedisStore creates a Redis-backed conversation memory.
func NewRedisStore(rdb *redis.Client, registry *config.TenantRegistry, defaults *config.Defaults) *RedisStore {
	return &RedisStore{
		rdb:      rdb,
		registry: registry,
		ttl:      defaults.MemoryTTL,
	}
}

func (s *RedisStore) tenant(companyID string) (*config.TenantConfig, error) {
	t, ok := s.registry.Get(companyID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, companyID)
	}
	return t, nil
}

func historyKey(prefix, userID string) string {
	return prefix + "chat_history:" + userID
}

func conversationKey(prefix, userID string) string {
	return prefix + "conversation:" + userID
}

// Get returns the current window, oldest first.
func (s *RedisStore) Get(ctx context.Context, companyID, userID string) ([]models.Message, error) {
	t, err := s.tenant(companyID)
	if err != nil {
		return nil, err
	}
	raw, err := s.rdb.LRange(ctx, historyKey(t.RedisPrefix, userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read chat history: %w", err)
	}
	msgs := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			// Skip unreadable entries rather than failing the whole read.
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Append pushes a message, trims to the tenant window, and resets TTLs.
func (s *RedisStore) Append(ctx context.Context, companyID, userID string, role models.Role, content string) error {
	t, err := s.tenant(companyID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(models.Message{Role: role, Content: content, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	hKey := historyKey(t.RedisPrefix, userID)
	cKey := conversationKey(t.RedisPrefix, userID)

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, hKey, payload)
	pipe.LTrim(ctx, hKey, int64(-t.MaxContextMessages), -1)
	pipe.Expire(ctx, hKey, s.ttl)
	pipe.HSet(ctx, cKey, "company_id", companyID, "last_updated", now, "updated_at", now)
	pipe.Expire(ctx, cKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append chat history: %w", err)
	}
	return nil
}

// Clear removes the conversation for a user.
func (s *RedisStore) Clear(ctx context.Context, companyID, userID string) error {
	t, err := s.tenant(companyID)
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, historyKey(t.RedisPrefix, userID), conversationKey(t.RedisPrefix, userID)).Err(); err != nil {
		return fmt.Errorf("clear chat history: %w", err)
	}
	return nil
}

// Stats scans the tenant's history keys and counts conversations and messages.
func (s *RedisStore) Stats(ctx context.Context, companyID string) (Stats, error) {
	t, err := s.tenant(companyID)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	pattern := historyKey(t.RedisPrefix, "*")
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !strings.HasPrefix(key, t.RedisPrefix) {
			continue
		}
		stats.Conversations++
		n, err := s.rdb.LLen(ctx, key).Result()
		if err == nil {
			stats.Messages += int(n)
		}
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("scan chat history: %w", err)
	}
	return stats, nil
}
