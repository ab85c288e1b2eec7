package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/models"
)

// InMemoryStore is the testing/fallback conversation memory. TTL expiry is
// checked lazily on read.
type InMemoryStore struct {
	registry *config.TenantRegistry
	ttl      time.Duration

	mu            sync.Mutex
	conversations map[string][]models.Message // companyID|userID
	touched       map[string]time.Time
}

// NewInMemoryStore creates an in-memory conversation memory.
func NewInMemoryStore(registry *config.TenantRegistry, defaults *config.Defaults) *InMemoryStore {
	return &InMemoryStore{
		registry:      registry,
		ttl:           defaults.MemoryTTL,
		conversations: make(map[string][]models.Message),
		touched:       make(map[string]time.Time),
	}
}

func (s *InMemoryStore) key(companyID, userID string) string {
	return companyID + "|" + userID
}

func (s *InMemoryStore) tenant(companyID string) (*config.TenantConfig, error) {
	t, ok := s.registry.Get(companyID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, companyID)
	}
	return t, nil
}

// Get returns the current window, oldest first.
func (s *InMemoryStore) Get(_ context.Context, companyID, userID string) ([]models.Message, error) {
	if _, err := s.tenant(companyID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(companyID, userID)
	if at, ok := s.touched[key]; ok && time.Since(at) > s.ttl {
		delete(s.conversations, key)
		delete(s.touched, key)
		return nil, nil
	}
	msgs := s.conversations[key]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Append adds a message and trims the window.
func (s *InMemoryStore) Append(_ context.Context, companyID, userID string, role models.Role, content string) error {
	t, err := s.tenant(companyID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(companyID, userID)
	msgs := append(s.conversations[key], models.Message{Role: role, Content: content, Timestamp: time.Now()})
	if len(msgs) > t.MaxContextMessages {
		msgs = msgs[len(msgs)-t.MaxContextMessages:]
	}
	s.conversations[key] = msgs
	s.touched[key] = time.Now()
	return nil
}

// Clear removes the conversation for a user.
func (s *InMemoryStore) Clear(_ context.Context, companyID, userID string) error {
	if _, err := s.tenant(companyID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(companyID, userID)
	delete(s.conversations, key)
	delete(s.touched, key)
	return nil
}

// Stats returns memory statistics for a tenant.
func (s *InMemoryStore) Stats(_ context.Context, companyID string) (Stats, error) {
	if _, err := s.tenant(companyID); err != nil {
		return Stats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats Stats
	prefix := companyID + "|"
	for key, msgs := range s.conversations {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			stats.Conversations++
			stats.Messages += len(msgs)
		}
	}
	return stats, nil
}
