package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conversia-ai/conversia/pkg/models"
)

// LogStore is the degraded audit backend used when no database is configured:
// entries go to the structured log and a small in-memory ring for diagnostics.
type LogStore struct {
	mu      sync.Mutex
	entries map[string]*models.AuditEntry
	order   []string
	keep    int
}

// NewLogStore creates a log-only audit store retaining the last keep entries.
func NewLogStore(keep int) *LogStore {
	if keep <= 0 {
		keep = 500
	}
	return &LogStore{entries: make(map[string]*models.AuditEntry), keep: keep}
}

// Log appends a pending entry and returns its audit ID.
func (s *LogStore) Log(_ context.Context, userID, actionType, actionName string, inputParams map[string]any, compensable bool, compensationAction string) (string, error) {
	e := &models.AuditEntry{
		AuditID:            uuid.NewString(),
		UserID:             userID,
		ActionType:         actionType,
		ActionName:         actionName,
		InputParams:        inputParams,
		Compensable:        compensable,
		CompensationAction: compensationAction,
		Status:             models.AuditStatusPending,
		CreatedAt:          time.Now(),
	}
	s.mu.Lock()
	s.entries[e.AuditID] = e
	s.order = append(s.order, e.AuditID)
	if len(s.order) > s.keep {
		delete(s.entries, s.order[0])
		s.order = s.order[1:]
	}
	s.mu.Unlock()
	slog.Info("audit", "audit_id", e.AuditID, "user_id", userID,
		"action_type", actionType, "action_name", actionName, "status", e.Status)
	return e.AuditID, nil
}

// MarkSuccess finalizes an entry with its result.
func (s *LogStore) MarkSuccess(_ context.Context, auditID string, result map[string]any) error {
	s.finish(auditID, models.AuditStatusSuccess, result, "")
	return nil
}

// MarkFailed finalizes an entry with an error message.
func (s *LogStore) MarkFailed(_ context.Context, auditID, errorMessage string) error {
	s.finish(auditID, models.AuditStatusFailed, nil, errorMessage)
	return nil
}

func (s *LogStore) finish(auditID string, status models.AuditStatus, result map[string]any, errMsg string) {
	now := time.Now()
	s.mu.Lock()
	if e, ok := s.entries[auditID]; ok {
		e.Status = status
		e.Result = result
		e.Error = errMsg
		e.CompletedAt = &now
	}
	s.mu.Unlock()
	slog.Info("audit", "audit_id", auditID, "status", status, "error", errMsg)
}

// ListByUser returns retained entries for a user, newest first.
func (s *LogStore) ListByUser(_ context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuditEntry
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		if e := s.entries[s.order[i]]; e != nil && e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}
