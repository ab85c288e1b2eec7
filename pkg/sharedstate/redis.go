package sharedstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/models"
)

// RedisStore is the production shared-state backend. Keys follow
// {redis_prefix}shared_state:{slot}:{user_id}[:{sub_key}]; every write uses
// SET with expiry so value and TTL land atomically.
type RedisStore struct {
	rdb      *redis.Client
	registry *config.TenantRegistry
	ttl      time.Duration
}

// NewRedisStore creates a Redis-backed shared-state store.
func NewRedisStore(rdb *redis.Client, registry *config.TenantRegistry, defaults *config.Defaults) *RedisStore {
	return &RedisStore{rdb: rdb, registry: registry, ttl: defaults.SharedStateTTL}
}

func (s *RedisStore) prefix(companyID string) (string, error) {
	t, ok := s.registry.Get(companyID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTenant, companyID)
	}
	return t.RedisPrefix, nil
}

func slotKey(prefix string, slot models.Slot, userID string, subKeys ...string) string {
	key := prefix + "shared_state:" + string(slot) + ":" + userID
	for _, sub := range subKeys {
		key += ":" + sub
	}
	return key
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) getJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetPricing stores pricing for one service of a user.
func (s *RedisStore) SetPricing(ctx context.Context, companyID, userID, service string, p models.PricingInfo) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	return s.setJSON(ctx, slotKey(prefix, models.SlotPricing, userID, service), p)
}

// GetPricing returns pricing for one service of a user.
func (s *RedisStore) GetPricing(ctx context.Context, companyID, userID, service string) (models.PricingInfo, bool, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return models.PricingInfo{}, false, err
	}
	var p models.PricingInfo
	ok, err := s.getJSON(ctx, slotKey(prefix, models.SlotPricing, userID, service), &p)
	return p, ok, err
}

// GetAllPricingForUser scans the user's pricing sub-keys.
func (s *RedisStore) GetAllPricingForUser(ctx context.Context, companyID, userID string) (map[string]models.PricingInfo, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return nil, err
	}
	base := slotKey(prefix, models.SlotPricing, userID) + ":"
	out := make(map[string]models.PricingInfo)
	iter := s.rdb.Scan(ctx, 0, base+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		var p models.PricingInfo
		if ok, err := s.getJSON(ctx, key, &p); err == nil && ok {
			out[strings.TrimPrefix(key, base)] = p
		}
	}
	if err := iter.Err(); err != nil {
		return out, fmt.Errorf("scan pricing: %w", err)
	}
	return out, nil
}

// SetSchedule stores the user's scheduling state.
func (s *RedisStore) SetSchedule(ctx context.Context, companyID, userID string, info models.ScheduleInfo) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	return s.setJSON(ctx, slotKey(prefix, models.SlotSchedule, userID), info)
}

// GetSchedule returns the user's scheduling state.
func (s *RedisStore) GetSchedule(ctx context.Context, companyID, userID string) (models.ScheduleInfo, bool, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return models.ScheduleInfo{}, false, err
	}
	var info models.ScheduleInfo
	ok, err := s.getJSON(ctx, slotKey(prefix, models.SlotSchedule, userID), &info)
	return info, ok, err
}

// UpdateScheduleStatus rewrites only the status field of the schedule slot.
func (s *RedisStore) UpdateScheduleStatus(ctx context.Context, companyID, userID, status string) error {
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
func (s *RedisStore) SetUser(ctx context.Context, companyID, userID string, u models.UserInfo) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	key := slotKey(prefix, models.SlotUser, userID)
	var existing models.UserInfo
	if _, err := s.getJSON(ctx, key, &existing); err != nil {
		return err
	}
	return s.setJSON(ctx, key, mergeUser(existing, u))
}

// GetUser returns the stored user record.
func (s *RedisStore) GetUser(ctx context.Context, companyID, userID string) (models.UserInfo, bool, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return models.UserInfo{}, false, err
	}
	var u models.UserInfo
	ok, err := s.getJSON(ctx, slotKey(prefix, models.SlotUser, userID), &u)
	return u, ok, err
}

// AddIntentToHistory appends one intent to the user's intent history.
func (s *RedisStore) AddIntentToHistory(ctx context.Context, companyID, userID, intent string) error {
	return s.SetUser(ctx, companyID, userID, models.UserInfo{
		IntentHistory: []string{intent},
		Timestamp:     time.Now(),
	})
}

func appendToList[T any](ctx context.Context, s *RedisStore, key string, item T) error {
	var list []T
	if _, err := s.getJSON(ctx, key, &list); err != nil {
		return err
	}
	list = append(list, item)
	return s.setJSON(ctx, key, list)
}

func getList[T any](ctx context.Context, s *RedisStore, key string) ([]T, error) {
	var list []T
	if _, err := s.getJSON(ctx, key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AddService appends a service-interest record.
func (s *RedisStore) AddService(ctx context.Context, companyID, userID string, info models.ServiceInfo) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	return appendToList(ctx, s, slotKey(prefix, models.SlotService, userID), info)
}

// GetServices returns the service-interest records.
func (s *RedisStore) GetServices(ctx context.Context, companyID, userID string) ([]models.ServiceInfo, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return nil, err
	}
	return getList[models.ServiceInfo](ctx, s, slotKey(prefix, models.SlotService, userID))
}

// AddSupport appends a support record.
func (s *RedisStore) AddSupport(ctx context.Context, companyID, userID string, info models.SupportInfo) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	return appendToList(ctx, s, slotKey(prefix, models.SlotSupport, userID), info)
}

// GetSupport returns the support records.
func (s *RedisStore) GetSupport(ctx context.Context, companyID, userID string) ([]models.SupportInfo, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return nil, err
	}
	return getList[models.SupportInfo](ctx, s, slotKey(prefix, models.SlotSupport, userID))
}

// SetEmergency stores the user's emergency record.
func (s *RedisStore) SetEmergency(ctx context.Context, companyID, userID string, e models.EmergencyInfo) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	return s.setJSON(ctx, slotKey(prefix, models.SlotEmergency, userID), e)
}

// GetEmergency returns the user's emergency record.
func (s *RedisStore) GetEmergency(ctx context.Context, companyID, userID string) (models.EmergencyInfo, bool, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return models.EmergencyInfo{}, false, err
	}
	var e models.EmergencyInfo
	ok, err := s.getJSON(ctx, slotKey(prefix, models.SlotEmergency, userID), &e)
	return e, ok, err
}

// AddHandoff appends a handoff record.
func (s *RedisStore) AddHandoff(ctx context.Context, companyID, userID string, h models.HandoffInfo) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	return appendToList(ctx, s, slotKey(prefix, models.SlotHandoff, userID), h)
}

// GetHandoffs returns the handoff records.
func (s *RedisStore) GetHandoffs(ctx context.Context, companyID, userID string) ([]models.HandoffInfo, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return nil, err
	}
	return getList[models.HandoffInfo](ctx, s, slotKey(prefix, models.SlotHandoff, userID))
}

// GetLastHandoff returns the most recent handoff record.
func (s *RedisStore) GetLastHandoff(ctx context.Context, companyID, userID string) (models.HandoffInfo, bool, error) {
	handoffs, err := s.GetHandoffs(ctx, companyID, userID)
	if err != nil || len(handoffs) == 0 {
		return models.HandoffInfo{}, false, err
	}
	return handoffs[len(handoffs)-1], true, nil
}

// ClearUserData removes every slot of a user.
func (s *RedisStore) ClearUserData(ctx context.Context, companyID, userID string) error {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return err
	}
	keys := []string{}
	for _, slot := range []models.Slot{
		models.SlotPricing, models.SlotSchedule, models.SlotUser, models.SlotService,
		models.SlotSupport, models.SlotEmergency, models.SlotHandoff,
	} {
		base := slotKey(prefix, slot, userID)
		keys = append(keys, base)
		iter := s.rdb.Scan(ctx, 0, base+":*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan %s: %w", base, err)
		}
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear user data: %w", err)
	}
	return nil
}

// Stats counts shared-state keys per slot for a tenant.
func (s *RedisStore) Stats(ctx context.Context, companyID string) (Stats, error) {
	prefix, err := s.prefix(companyID)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{PerSlot: make(map[string]int)}
	base := prefix + "shared_state:"
	iter := s.rdb.Scan(ctx, 0, base+"*", 100).Iterator()
	for iter.Next(ctx) {
		rest := strings.TrimPrefix(iter.Val(), base)
		slot, _, _ := strings.Cut(rest, ":")
		stats.Keys++
		stats.PerSlot[slot]++
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("scan shared state: %w", err)
	}
	return stats, nil
}
