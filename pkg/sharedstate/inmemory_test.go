package sharedstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversia-ai/conversia/pkg/config"
	"github.com/conversia-ai/conversia/pkg/models"
)

const (
	testCompany = "benova"
	testUser    = "benova_contact_1"
)

func newTestStore(t *testing.T) *InMemoryStore {
	t.Helper()
	registry := config.NewTenantRegistry(map[string]*config.TenantConfig{
		testCompany: {CompanyID: testCompany, RedisPrefix: "benova:"},
	}, nil)
	return NewInMemoryStore(registry, &config.Defaults{SharedStateTTL: time.Hour})
}

func TestPricingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetPricing(ctx, testCompany, testUser, "botox")
	require.NoError(t, err)
	assert.False(t, ok)

	p := models.PricingInfo{Service: "botox", Price: "500000", Currency: "COP", SourceAgent: "sales"}
	require.NoError(t, s.SetPricing(ctx, testCompany, testUser, "botox", p))
	require.NoError(t, s.SetPricing(ctx, testCompany, testUser, "limpieza facial", models.PricingInfo{Service: "limpieza facial", Price: "120000"}))

	got, ok, err := s.GetPricing(ctx, testCompany, testUser, "botox")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p, got)

	all, err := s.GetAllPricingForUser(ctx, testCompany, testUser)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "500000", all["botox"].Price)
	assert.Equal(t, "120000", all["limpieza facial"].Price)
}

func TestPricingIsPerUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetPricing(ctx, testCompany, testUser, "botox", models.PricingInfo{Price: "500000"}))
	_, ok, err := s.GetPricing(ctx, testCompany, "benova_contact_2", "botox")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTenantIsolation(t *testing.T) {
	registry := config.NewTenantRegistry(map[string]*config.TenantConfig{
		"benova": {CompanyID: "benova", RedisPrefix: "benova:"},
		"luxe":   {CompanyID: "luxe", RedisPrefix: "luxe:"},
	}, nil)
	s := NewInMemoryStore(registry, &config.Defaults{SharedStateTTL: time.Hour})
	ctx := context.Background()

	require.NoError(t, s.SetPricing(ctx, "benova", "contact_1", "botox", models.PricingInfo{Price: "500000"}))
	require.NoError(t, s.SetUser(ctx, "benova", "contact_1", models.UserInfo{Name: "Ana"}))
	require.NoError(t, s.SetSchedule(ctx, "benova", "contact_1", models.ScheduleInfo{Treatment: "botox"}))

	// The same user id under another tenant reads nothing.
	_, ok, err := s.GetPricing(ctx, "luxe", "contact_1", "botox")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.GetUser(ctx, "luxe", "contact_1")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.GetSchedule(ctx, "luxe", "contact_1")
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := s.Stats(ctx, "luxe")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Keys)

	// Clearing under the other tenant leaves the data intact.
	require.NoError(t, s.ClearUserData(ctx, "luxe", "contact_1"))
	_, ok, err = s.GetUser(ctx, "benova", "contact_1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserMergeSemantics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetUser(ctx, testCompany, testUser, models.UserInfo{
		Name:          "Ana",
		Phone:         "3001234567",
		IntentHistory: []string{"SALES"},
	}))
	// Empty fields must not clobber what is already known.
	require.NoError(t, s.SetUser(ctx, testCompany, testUser, models.UserInfo{
		Email:         "ana@example.com",
		IntentHistory: []string{"SCHEDULE"},
	}))

	u, ok, err := s.GetUser(ctx, testCompany, testUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ana", u.Name)
	assert.Equal(t, "3001234567", u.Phone)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, []string{"SALES", "SCHEDULE"}, u.IntentHistory)
}

func TestAddIntentToHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddIntentToHistory(ctx, testCompany, testUser, "SUPPORT"))
	require.NoError(t, s.AddIntentToHistory(ctx, testCompany, testUser, "SALES"))

	u, ok, err := s.GetUser(ctx, testCompany, testUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"SUPPORT", "SALES"}, u.IntentHistory)
}

func TestUpdateScheduleStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetSchedule(ctx, testCompany, testUser, models.ScheduleInfo{
		Treatment: "botox",
		Date:      "11-12-2024",
		Status:    "confirmed",
	}))
	require.NoError(t, s.UpdateScheduleStatus(ctx, testCompany, testUser, "booked"))

	sched, ok, err := s.GetSchedule(ctx, testCompany, testUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "booked", sched.Status)
	assert.Equal(t, "botox", sched.Treatment, "status update keeps the rest of the slot")
}

func TestHandoffsOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetLastHandoff(ctx, testCompany, testUser)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.AddHandoff(ctx, testCompany, testUser, models.HandoffInfo{FromAgent: "schedule", ToAgent: "sales"}))
	require.NoError(t, s.AddHandoff(ctx, testCompany, testUser, models.HandoffInfo{FromAgent: "sales", ToAgent: "support"}))

	all, err := s.GetHandoffs(ctx, testCompany, testUser)
	require.NoError(t, err)
	require.Len(t, all, 2)

	last, ok, err := s.GetLastHandoff(ctx, testCompany, testUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "support", last.ToAgent)
}

func TestClearUserData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetPricing(ctx, testCompany, testUser, "botox", models.PricingInfo{Price: "500000"}))
	require.NoError(t, s.SetUser(ctx, testCompany, testUser, models.UserInfo{Name: "Ana"}))
	require.NoError(t, s.AddSupport(ctx, testCompany, testUser, models.SupportInfo{Issue: "app"}))
	require.NoError(t, s.SetPricing(ctx, testCompany, "benova_contact_2", "botox", models.PricingInfo{Price: "500000"}))

	require.NoError(t, s.ClearUserData(ctx, testCompany, testUser))

	_, ok, err := s.GetUser(ctx, testCompany, testUser)
	require.NoError(t, err)
	assert.False(t, ok)
	all, err := s.GetAllPricingForUser(ctx, testCompany, testUser)
	require.NoError(t, err)
	assert.Empty(t, all)

	// Other users are untouched.
	_, ok, err = s.GetPricing(ctx, testCompany, "benova_contact_2", "botox")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnknownTenantRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SetPricing(ctx, "ghost", testUser, "botox", models.PricingInfo{})
	assert.ErrorIs(t, err, ErrUnknownTenant)
	_, _, err = s.GetSchedule(ctx, "ghost", testUser)
	assert.ErrorIs(t, err, ErrUnknownTenant)
	_, err = s.Stats(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUnknownTenant)
}

func TestStatsCountsPerSlot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetPricing(ctx, testCompany, testUser, "botox", models.PricingInfo{}))
	require.NoError(t, s.SetPricing(ctx, testCompany, testUser, "limpieza facial", models.PricingInfo{}))
	require.NoError(t, s.SetUser(ctx, testCompany, testUser, models.UserInfo{Name: "Ana"}))
	require.NoError(t, s.SetSchedule(ctx, testCompany, testUser, models.ScheduleInfo{Status: "collecting_info"}))

	stats, err := s.Stats(ctx, testCompany)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Keys)
	assert.Equal(t, 2, stats.PerSlot["pricing"])
	assert.Equal(t, 1, stats.PerSlot["user"])
	assert.Equal(t, 1, stats.PerSlot["schedule"])
}

func TestExpiredEntriesAreDropped(t *testing.T) {
	registry := config.NewTenantRegistry(map[string]*config.TenantConfig{
		testCompany: {CompanyID: testCompany, RedisPrefix: "benova:"},
	}, nil)
	s := NewInMemoryStore(registry, &config.Defaults{SharedStateTTL: time.Nanosecond})
	ctx := context.Background()

	require.NoError(t, s.SetEmergency(ctx, testCompany, testUser, models.EmergencyInfo{Description: "dolor"}))
	time.Sleep(time.Millisecond)

	_, ok, err := s.GetEmergency(ctx, testCompany, testUser)
	require.NoError(t, err)
	assert.False(t, ok)
}
