// Package saga sequences side-effecting tool actions with paired
// compensators. On the first executor failure, compensators for previously
// successful actions run in reverse order; a compensator failure halts
// further compensation. Every transition is written to the audit log.
package saga

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conversia-ai/conversia/pkg/audit"
	"github.com/conversia-ai/conversia/pkg/models"
)

// ExecutorFunc runs one saga action.
type ExecutorFunc func(ctx context.Context, params map[string]any) (map[string]any, error)

// CompensatorFunc undoes one successfully executed action. It receives the
// original input params and the executor's result.
type CompensatorFunc func(ctx context.Context, params, result map[string]any) error

type action struct {
	models.SagaAction
	executor    ExecutorFunc
	compensator CompensatorFunc
}

// Saga is one ordered sequence of actions for a user.
type Saga struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time

	actions []*action
}

// Coordinator manages saga lifecycles. Actions within a saga run strictly
// sequentially; independent sagas may run concurrently.
type Coordinator struct {
	audit audit.Store

	mu    sync.Mutex
	sagas map[string]*Saga
}

// NewCoordinator creates a Coordinator writing transitions to the audit store.
// Panics if auditStore is nil; callers must provide at least the log store.
func NewCoordinator(auditStore audit.Store) *Coordinator {
	if auditStore == nil {
		panic("saga.NewCoordinator: audit store must not be nil")
	}
	return &Coordinator{audit: auditStore, sagas: make(map[string]*Saga)}
}

// CreateSaga registers a new empty saga for a user.
func (c *Coordinator) CreateSaga(userID, name string) *Saga {
	s := &Saga{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	c.mu.Lock()
	c.sagas[s.ID] = s
	c.mu.Unlock()
	return s
}

// AddAction appends an action to a saga. A nil compensator marks the action
// as non-compensable.
func (c *Coordinator) AddAction(sagaID, actionType, name string, executor ExecutorFunc, compensator CompensatorFunc, inputParams map[string]any) error {
	if executor == nil {
		return fmt.Errorf("action %s: executor is required", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sagas[sagaID]
	if !ok {
		return fmt.Errorf("saga %s not found", sagaID)
	}
	s.actions = append(s.actions, &action{
		SagaAction: models.SagaAction{
			Type:        actionType,
			Name:        name,
			InputParams: inputParams,
			Status:      models.ActionStatusPending,
		},
		executor:    executor,
		compensator: compensator,
	})
	return nil
}

// ExecuteSaga runs the saga's actions in order. On the first failure it
// compensates previously successful actions in reverse order and returns a
// failed result carrying the step statuses. The saga is released from the
// coordinator on return; a saga runs at most once.
func (c *Coordinator) ExecuteSaga(ctx context.Context, sagaID string) models.SagaResult {
	c.mu.Lock()
	s, ok := c.sagas[sagaID]
	c.mu.Unlock()
	if !ok {
		return models.SagaResult{SagaID: sagaID, Success: false, Error: "saga not found"}
	}

	log := slog.With("saga_id", s.ID, "saga_name", s.Name, "user_id", s.UserID)
	result := models.SagaResult{SagaID: s.ID, Success: true}

	failedAt := -1
	for i, a := range s.actions {
		a.Status = models.ActionStatusRunning

		auditID := c.logAudit(ctx, s.UserID, a)

		out, err := a.executor(ctx, a.InputParams)
		if err != nil {
			a.Status = models.ActionStatusFailed
			a.Error = err.Error()
			c.markAudit(ctx, auditID, nil, err)
			log.Warn("Saga action failed", "action", a.Name, "error", err)
			failedAt = i
			break
		}
		a.Status = models.ActionStatusSuccess
		a.Result = out
		c.markAudit(ctx, auditID, out, nil)
	}

	if failedAt >= 0 {
		result.Success = false
		result.Error = fmt.Sprintf("action %s failed: %s", s.actions[failedAt].Name, s.actions[failedAt].Error)
		c.compensate(ctx, s, failedAt, log)
	}

	for _, a := range s.actions {
		result.Steps = append(result.Steps, a.SagaAction)
	}

	c.mu.Lock()
	delete(c.sagas, s.ID)
	c.mu.Unlock()
	return result
}

// compensate undoes actions before failedAt, newest first. Compensation stops
// at the first compensator failure; the saga result stays failed either way.
func (c *Coordinator) compensate(ctx context.Context, s *Saga, failedAt int, log *slog.Logger) {
	for i := failedAt - 1; i >= 0; i-- {
		a := s.actions[i]
		if a.Status != models.ActionStatusSuccess {
			continue
		}
		if a.compensator == nil {
			log.Warn("No compensator for action, skipping", "action", a.Name)
			continue
		}

		auditID, err := c.audit.Log(ctx, s.UserID, "compensation", "compensate_"+a.Name, a.InputParams, false, "")
		if err != nil {
			log.Warn("Audit write failed", "action", a.Name, "error", err)
		}

		if err := a.compensator(ctx, a.InputParams, a.Result); err != nil {
			c.markAudit(ctx, auditID, nil, err)
			log.Error("Compensator failed, halting compensation", "action", a.Name, "error", err)
			return
		}
		a.Status = models.ActionStatusCompensated
		c.markAudit(ctx, auditID, map[string]any{"compensated": a.Name}, nil)
		log.Info("Action compensated", "action", a.Name)
	}
}

func (c *Coordinator) logAudit(ctx context.Context, userID string, a *action) string {
	compensationAction := ""
	if a.compensator != nil {
		compensationAction = "compensate_" + a.Name
	}
	auditID, err := c.audit.Log(ctx, userID, a.Type, a.Name, a.InputParams, a.compensator != nil, compensationAction)
	if err != nil {
		slog.Warn("Audit write failed", "action", a.Name, "error", err)
	}
	return auditID
}

func (c *Coordinator) markAudit(ctx context.Context, auditID string, result map[string]any, execErr error) {
	if auditID == "" {
		return
	}
	var err error
	if execErr != nil {
		err = c.audit.MarkFailed(ctx, auditID, execErr.Error())
	} else {
		err = c.audit.MarkSuccess(ctx, auditID, result)
	}
	if err != nil {
		slog.Warn("Audit update failed", "audit_id", auditID, "error", err)
	}
}
