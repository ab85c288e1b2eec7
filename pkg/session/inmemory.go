package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/memory"
)

// InMemoryGuard is the testing/fallback backend: a mutex around two maps with
// lazy expiry, key layout mirroring the Redis backend.
type InMemoryGuard struct {
	registry *config.TenantRegistry
	defaults *config.Defaults

	mu        sync.Mutex
	processed map[string]time.Time
	statuses  map[string]botStatus
}

type botStatus struct {
	active  bool
	written time.Time
}

// NewInMemoryGuard creates an in-memory guard.
func NewInMemoryGuard(registry *config.TenantRegistry, defaults *config.Defaults) *InMemoryGuard {
	return &InMemoryGuard{
		registry:  registry,
		defaults:  defaults,
		processed: make(map[string]time.Time),
		statuses:  make(map[string]botStatus),
	}
}

func (g *InMemoryGuard) prefix(companyID string) (string, error) {
	t, ok := g.registry.Get(companyID)
	if !ok {
		return "", fmt.Errorf("%w: %s", memory.ErrUnknownTenant, companyID)
	}
	return t.RedisPrefix, nil
}

// MarkProcessed claims a (conversation, message) pair. It returns true for
// the first delivery and false for duplicates within the key TTL.
func (g *InMemoryGuard) MarkProcessed(_ context.Context, companyID string, conversationID, messageID int64) (bool, error) {
	prefix, err := g.prefix(companyID)
	if err != nil {
		return false, err
	}
	key := processedKey(prefix, conversationID, messageID)

	g.mu.Lock()
	defer g.mu.Unlock()
	if written, ok := g.processed[key]; ok && time.Since(written) <= g.defaults.ProcessedTTL {
		return false, nil
	}
	g.processed[key] = time.Now()
	return true, nil
}

// SetBotStatus records a conversation status change. The bot stays active
// only while the status is in the configured active set.
func (g *InMemoryGuard) SetBotStatus(_ context.Context, companyID string, conversationID int64, status string) error {
	prefix, err := g.prefix(companyID)
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

	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[botStatusKey(prefix, conversationID)] = botStatus{active: active, written: time.Now()}
	return nil
}

// BotActive reports whether the bot should reply in a conversation. A
// conversation with no recorded or live status is treated as active.
func (g *InMemoryGuard) BotActive(_ context.Context, companyID string, conversationID int64) (bool, error) {
	prefix, err := g.prefix(companyID)
	if err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.statuses[botStatusKey(prefix, conversationID)]
	if !ok || time.Since(s.written) > g.defaults.BotStatusTTL {
		return true, nil
	}
	return s.active, nil
}
