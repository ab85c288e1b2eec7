// Package sharedstate implements the tenant-scoped, per-user typed key-value
// store agents use to share information across requests. Every slot write is
// TTL-bound; overwrites reset the TTL.
package sharedstate

import (
	"context"
	"errors"

	"github.com/conversia-ai/conversia/pkg/models"
)

// ErrUnknownTenant is returned for a company ID that is not registered.
// Cross-tenant access is rejected at the store boundary.
var ErrUnknownTenant = errors.New("unknown tenant")

// Stats summarizes a tenant's shared state.
type Stats struct {
	Keys    int            `json:"keys"`
	PerSlot map[string]int `json:"per_slot"`
}

// Store is the shared-context boundary. All operations are tenant-scoped;
// implementations must reject unregistered company IDs.
type Store interface {
	SetPricing(ctx context.Context, companyID, userID, service string, p models.PricingInfo) error
	GetPricing(ctx context.Context, companyID, userID, service string) (models.PricingInfo, bool, error)
	GetAllPricingForUser(ctx context.Context, companyID, userID string) (map[string]models.PricingInfo, error)

	SetSchedule(ctx context.Context, companyID, userID string, s models.ScheduleInfo) error
	GetSchedule(ctx context.Context, companyID, userID string) (models.ScheduleInfo, bool, error)
	UpdateScheduleStatus(ctx context.Context, companyID, userID, status string) error

	// SetUser uses merge semantics: non-empty fields overwrite, IntentHistory appends.
	SetUser(ctx context.Context, companyID, userID string, u models.UserInfo) error
	GetUser(ctx context.Context, companyID, userID string) (models.UserInfo, bool, error)
	AddIntentToHistory(ctx context.Context, companyID, userID, intent string) error

	AddService(ctx context.Context, companyID, userID string, s models.ServiceInfo) error
	GetServices(ctx context.Context, companyID, userID string) ([]models.ServiceInfo, error)

	AddSupport(ctx context.Context, companyID, userID string, s models.SupportInfo) error
	GetSupport(ctx context.Context, companyID, userID string) ([]models.SupportInfo, error)

	SetEmergency(ctx context.Context, companyID, userID string, e models.EmergencyInfo) error
	GetEmergency(ctx context.Context, companyID, userID string) (models.EmergencyInfo, bool, error)

	AddHandoff(ctx context.Context, companyID, userID string, h models.HandoffInfo) error
	GetHandoffs(ctx context.Context, companyID, userID string) ([]models.HandoffInfo, error)
	GetLastHandoff(ctx context.Context, companyID, userID string) (models.HandoffInfo, bool, error)

	ClearUserData(ctx context.Context, companyID, userID string) error
	Stats(ctx context.Context, companyID string) (Stats, error)
}

// mergeUser applies set-merge semantics: non-empty incoming fields overwrite,
// intent history appends.
func mergeUser(existing, incoming models.UserInfo) models.UserInfo {
	out := existing
	if incoming.Name != "" {
		out.Name = incoming.Name
	}
	if incoming.Phone != "" {
		out.Phone = incoming.Phone
	}
	if incoming.Email != "" {
		out.Email = incoming.Email
	}
	if incoming.NationalID != "" {
		out.NationalID = incoming.NationalID
	}
	out.IntentHistory = append(out.IntentHistory, incoming.IntentHistory...)
	if incoming.SourceAgent != "" {
		out.SourceAgent = incoming.SourceAgent
	}
	out.Timestamp = incoming.Timestamp
	return out
}
