package models

import "time"

// ActionStatus tracks one saga action through its lifecycle.
type ActionStatus string

const (
	ActionStatusPending     ActionStatus = "pending"
	ActionStatusRunning     ActionStatus = "running"
	ActionStatusSuccess     ActionStatus = "success"
	ActionStatusFailed      ActionStatus = "failed"
	ActionStatusCompensated ActionStatus = "compensated"
)

// SagaAction is one side-effecting step with an optional compensator.
type SagaAction struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	InputParams map[string]any `json:"input_params,omitempty"`
	Status      ActionStatus   `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SagaResult summarizes a completed saga run.
type SagaResult struct {
	SagaID  string       `json:"saga_id"`
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Steps   []SagaAction `json:"steps"`
}

// AuditStatus tracks an audit entry through its lifecycle.
type AuditStatus string

const (
	AuditStatusPending AuditStatus = "pending"
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

// AuditEntry is one append-only record of a tool invocation.
type AuditEntry struct {
	AuditID            string         `json:"audit_id"`
	UserID             string         `json:"user_id"`
	ActionType         string         `json:"action_type"`
	ActionName         string         `json:"action_name"`
	InputParams        map[string]any `json:"input_params,omitempty"`
	Compensable        bool           `json:"compensable"`
	CompensationAction string         `json:"compensation_action,omitempty"`
	Status             AuditStatus    `json:"status"`
	Result             map[string]any `json:"result,omitempty"`
	Error              string         `json:"error,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
}
