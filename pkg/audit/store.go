// Package audit provides the append-only record of tool invocations.
// Audit writes are never on the critical path for the user reply: failures
// are logged, not raised.
package audit

import (
	"context"

	"github.com/conversia-ai/conversia/pkg/models"
)

// Store is the audit boundary.
type Store interface {
	// Log appends a pending entry and returns its audit ID.
	Log(ctx context.Context, userID, actionType, actionName string, inputParams map[string]any, compensable bool, compensationAction string) (string, error)

	// MarkSuccess finalizes an entry with its result.
	MarkSuccess(ctx context.Context, auditID string, result map[string]any) error

	// MarkFailed finalizes an entry with an error message.
	MarkFailed(ctx context.Context, auditID, errorMessage string) error

	// ListByUser returns entries for a user, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error)
}
