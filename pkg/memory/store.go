// Package memory implements the per-tenant, per-user conversation window:
// a bounded sliding window of recent messages with TTL.
package memory

import (
	"context"
	"errors"

	"github.com/conversia-ai/conversia/pkg/models"
)

// ErrUnknownTenant is returned for a company ID that is not registered.
// Cross-tenant access is rejected at the store boundary.
var ErrUnknownTenant = errors.New("unknown tenant")

// Stats summarizes a tenant's conversation memory.
type Stats struct {
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
}

// Store is the conversation memory boundary.
type Store interface {
	// Get returns the current window, oldest first. Reads never mutate.
	Get(ctx context.Context, companyID, userID string) ([]models.Message, error)

	// Append adds a message, trims the window to the tenant's limit, and
	// resets the TTL.
	Append(ctx context.Context, companyID, userID string, role models.Role, content string) error

	// Clear removes the conversation for a user.
	Clear(ctx context.Context, companyID, userID string) error

	// Stats returns memory statistics for a tenant.
	Stats(ctx context.Context, companyID string) (Stats, error)
}
