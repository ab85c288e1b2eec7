package sharedstate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/models"
)

// InMemoryStore is the testing/fallback backend: a single mutex around slot
// maps, TTL checked lazily on read. Key layout mirrors the Redis backend so
// Stats reports the same shape.
type InMemoryStore struct {
	registry *config.TenantRegistry
	ttl      time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	value   any
	written time.Time
}

// NewInMemoryStore creates an in-memory shared-state store.
func NewInMemoryStore(registry *config.TenantRegistry, defaults *config.Defaults) *InMemoryStore {
	return &InMemoryStore{
		registry: registry,
		ttl:      defaults.SharedStateTTL,
		entries:  make(map[string]entry),
	}
}

func (s *InMemoryStore) prefix(companyID string) (string, error) {
	t, ok := s.registry.Get(companyID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTenant, companyID)
	}
	return t.RedisPrefix, nil
}

// set stores a value under the key; the caller holds no lock.
func (s *InMemoryStore) set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: v, written: time.Now()}
}

// get returns the live value for key, expiring it lazily.
func (s *InMemoryStore) get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(e.written) > s.ttl {
		delete(s.entries, key)
		return nil, false
	}
	return e.value, true
}

// SetPricing stores pricing for one service of a user.
func (s *InMemoryStore) SetPricing(_ context.Context, companyID, userID, service string, p models.PricingInfo) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	s.set(slotKey(prefix, models.SlotPricing, userID, service), p)
	return nil
}

// GetPricing returns pricing for one service of a user.
func (s *InMemoryStore) GetPricing(_ context.Context, companyID, userID, service string) (models.PricingInfo, bool, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return models.PricingInfo{}, false, err
	}
	v, ok := s.get(slotKey(prefix, models.SlotPricing, userID, service))
	if !ok {
		return models.PricingInfo{}, false, nil
	}
	return v.(models.PricingInfo), true, nil
}

// GetAllPricingForUser returns every pricing record of a user.
func (s *InMemoryStore) GetAllPricingForUser(_ context.Context, companyID, userID string) (map[string]models.PricingInfo, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return nil, err
	}
	base := slotKey(prefix, models.SlotPricing, userID) + ":"
	out := make(map[string]models.PricingInfo)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if !strings.HasPrefix(key, base) || time.Since(e.written) > s.ttl {
			continue
		}
		if p, ok := e.value.(models.PricingInfo); ok {
			out[strings.TrimPrefix(key, base)] = p
		}
	}
	return out, nil
}

// SetSchedule stores the user's scheduling state.
func (s *InMemoryStore) SetSchedule(_ context.Context, companyID, userID string, info models.ScheduleInfo) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	s.set(slotKey(prefix, models.SlotSchedule, userID), info)
	return nil
}

// GetSchedule returns the user's scheduling state.
func (s *InMemoryStore) GetSchedule(_ context.Context, companyID, userID string) (models.ScheduleInfo, bool, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return models.ScheduleInfo{}, false, err
	}
	v, ok := s.get(slotKey(prefix, models.SlotSchedule, userID))
	if !ok {
		return models.ScheduleInfo{}, false, nil
	}
	return v.(models.ScheduleInfo), true, nil
}

// UpdateScheduleStatus rewrites only the status field of the schedule slot.
func (s *InMemoryStore) UpdateScheduleStatus(ctx context.Context, companyID, userID, status string) error {
	info, ok, err := s.GetSchedule(ctx, companyID, userID)
	if err != nil {
		return err
	}
	if !ok {
		info = models.ScheduleInfo{SourceAgent: "system"}
	}
	info.Status = status
	info.Timestamp = time.Now()
	return s.SetSchedule(ctx, companyID, userID, info)
}

// SetUser merges the incoming record into the stored one.
func (s *InMemoryStore) SetUser(_ context.Context, companyID, userID string, u models.UserInfo) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	key := slotKey(prefix, models.SlotUser, userID)
	var existing models.UserInfo
	if v, ok := s.get(key); ok {
		existing = v.(models.UserInfo)
	}
	s.set(key, mergeUser(existing, u))
	return nil
}

// GetUser returns the stored user record.
func (s *InMemoryStore) GetUser(_ context.Context, companyID, userID string) (models.UserInfo, bool, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return models.UserInfo{}, false, err
	}
	v, ok := s.get(slotKey(prefix, models.SlotUser, userID))
	if !ok {
		return models.UserInfo{}, false, nil
	}
	return v.(models.UserInfo), true, nil
}

// AddIntentToHistory appends one intent to the user's intent history.
func (s *InMemoryStore) AddIntentToHistory(ctx context.Context, companyID, userID, intent string) error {
	return s.SetUser(ctx, companyID, userID, models.UserInfo{
		IntentHistory: []string{intent},
		Timestamp:     time.Now(),
	})
}

func (s *InMemoryStore) appendList(companyID, userID string, slot models.Slot, item any) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	key := slotKey(prefix, slot, userID)
	var list []any
	if v, ok := s.get(key); ok {
		list = v.([]any)
	}
	s.set(key, append(list, item))
	return nil
}

func (s *InMemoryStore) getListEntries(companyID, userID string, slot models.Slot) ([]any, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return nil, err
	}
	v, ok := s.get(slotKey(prefix, slot, userID))
	if !ok {
		return nil, nil
	}
	return v.([]any), nil
}

// AddService appends a service-interest record.
func (s *InMemoryStore) AddService(_ context.Context, companyID, userID string, info models.ServiceInfo) error {
	return s.appendList(companyID, userID, models.SlotService, info)
}

// GetServices returns the service-interest records.
func (s *InMemoryStore) GetServices(_ context.Context, companyID, userID string) ([]models.ServiceInfo, error) {
	list, err := s.getListEntries(companyID, userID, models.SlotService)
	if err != nil {
		return nil, err
	}
	out := make([]models.ServiceInfo, 0, len(list))
	for _, v := range list {
		out = append(out, v.(models.ServiceInfo))
	}
	return out, nil
}

// AddSupport appends a support record.
func (s *InMemoryStore) AddSupport(_ context.Context, companyID, userID string, info models.SupportInfo) error {
	return s.appendList(companyID, userID, models.SlotSupport, info)
}

// GetSupport returns the support records.
func (s *InMemoryStore) GetSupport(_ context.Context, companyID, userID string) ([]models.SupportInfo, error) {
	list, err := s.getListEntries(companyID, userID, models.SlotSupport)
	if err != nil {
		return nil, err
	}
	out := make([]models.SupportInfo, 0, len(list))
	for _, v := range list {
		out = append(out, v.(models.SupportInfo))
	}
	return out, nil
}

// SetEmergency stores the user's emergency record.
func (s *InMemoryStore) SetEmergency(_ context.Context, companyID, userID string, e models.EmergencyInfo) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	s.set(slotKey(prefix, models.SlotEmergency, userID), e)
	return nil
}

// GetEmergency returns the user's emergency record.
func (s *InMemoryStore) GetEmergency(_ context.Context, companyID, userID string) (models.EmergencyInfo, bool, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return models.EmergencyInfo{}, false, err
	}
	v, ok := s.get(slotKey(prefix, models.SlotEmergency, userID))
	if !ok {
		return models.EmergencyInfo{}, false, nil
	}
	return v.(models.EmergencyInfo), true, nil
}

// AddHandoff appends a handoff record.
func (s *InMemoryStore) AddHandoff(_ context.Context, companyID, userID string, h models.HandoffInfo) error {
	return s.appendList(companyID, userID, models.SlotHandoff, h)
}

// GetHandoffs returns the handoff records.
func (s *InMemoryStore) GetHandoffs(_ context.Context, companyID, userID string) ([]models.HandoffInfo, error) {
	list, err := s.getListEntries(companyID, userID, models.SlotHandoff)
	if err != nil {
		return nil, err
	}
	out := make([]models.HandoffInfo, 0, len(list))
	for _, v := range list {
		out = append(out, v.(models.HandoffInfo))
	}
	return out, nil
}

// GetLastHandoff returns the most recent handoff record.
func (s *InMemoryStore) GetLastHandoff(ctx context.Context, companyID, userID string) (models.HandoffInfo, bool, error) {
	handoffs, err := s.GetHandoffs(ctx, companyID, userID)
	if err != nil || len(handoffs) == 0 {
		return models.HandoffInfo{}, false, err
	}
	return handoffs[len(handoffs)-1], true, nil
}

// ClearUserData removes every slot of a user.
func (s *InMemoryStore) ClearUserData(_ context.Context, companyID, userID string) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range []models.Slot{
		models.SlotPricing, models.SlotSchedule, models.SlotUser, models.SlotService,
		models.SlotSupport, models.SlotEmergency, models.SlotHandoff,
	} {
		base := slotKey(prefix, slot, userID)
		for key := range s.entries {
			if key == base || strings.HasPrefix(key, base+":") {
				delete(s.entries, key)
			}
		}
	}
	return nil
}

// Stats counts shared-state keys per slot for a tenant.
func (s *InMemoryStore) Stats(_ context.Context, companyID string) (Stats, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{PerSlot: make(map[string]int)}
	base := prefix + "shared_state:"
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if !strings.HasPrefix(key, base) || time.Since(e.written) > s.ttl {
			continue
		}
		rest := strings.TrimPrefix(key, base)
		slot, _, _ := strings.Cut(rest, ":")
		stats.Keys++
		stats.PerSlot[slot]++
	}
	return stats, nil
}
