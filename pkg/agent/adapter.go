// Package agent contains the router, the specialist handlers, and the
// adapter that wraps every handler with timeouts, retries, validation and
// execution statistics.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/conversia-ai/conversia/pkg/metrics"
	"github.com/conversia-ai/conversia/pkg/models"
)

// Handler is the capability every specialist exposes.
type Handler interface {
	Invoke(ctx context.Context, inputs models.AgentInputs) (string, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, inputs models.AgentInputs) (string, error)

// Invoke calls the function.
func (f HandlerFunc) Invoke(ctx context.Context, inputs models.AgentInputs) (string, error) {
	return f(ctx, inputs)
}

// ValidateFunc checks inputs or outputs. Input validation failures fail the
// invocation; output validation failures are recorded as warnings only.
type ValidateFunc func(inputs models.AgentInputs, output string) error

// ExecutionState describes one adapter invocation for diagnostics.
type ExecutionState struct {
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	Retries     int           `json:"retries"`
	Status      string        `json:"status"` // success | failed | input_invalid
}

// Result is the outcome of one adapter invocation.
type Result struct {
	Success        bool
	Output         string
	Error          string
	ExecutionState ExecutionState
	Warnings       []string
}

// Stats is a snapshot of the adapter's lock-free counters.
type Stats struct {
	TotalExecutions int64   `json:"total_executions"`
	TotalErrors     int64   `json:"total_errors"`
	TotalDurationMS int64   `json:"total_duration_ms"`
	ErrorRate       float64 `json:"error_rate"`
}

// Adapter wraps a Handler with timeout, retry and validation behavior.
type Adapter struct {
	handler        Handler
	name           string
	timeout        time.Duration
	maxRetries     int
	validateInput  ValidateFunc
	validateOutput ValidateFunc

	executions atomic.Int64
	errors     atomic.Int64
	durationMS atomic.Int64
}

// AdapterOption customizes an Adapter.
type AdapterOption func(*Adapter)

// WithInputValidator sets the input validator.
func WithInputValidator(v ValidateFunc) AdapterOption {
	return func(a *Adapter) { a.validateInput = v }
}

// WithOutputValidator sets the output validator.
func WithOutputValidator(v ValidateFunc) AdapterOption {
	return func(a *Adapter) { a.validateOutput = v }
}

// NewAdapter wraps a handler. Panics if handler is nil or name is empty.
func NewAdapter(handler Handler, name string, timeout time.Duration, maxRetries int, opts ...AdapterOption) *Adapter {
	if handler == nil {
		panic("agent.NewAdapter: handler must not be nil")
	}
	if name == "" {
		panic("agent.NewAdapter: name must not be empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	a := &Adapter{handler: handler, name: name, timeout: timeout, maxRetries: maxRetries}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the agent name.
func (a *Adapter) Name() string { return a.name }

// Invoke runs the handler with validation and retries. A failed attempt is
// retried after 2^attempt seconds, up to maxRetries times.
func (a *Adapter) Invoke(ctx context.Context, inputs models.AgentInputs) Result {
	started := time.Now()
	a.executions.Add(1)

	if a.validateInput != nil {
		if err := a.validateInput(inputs, ""); err != nil {
			a.errors.Add(1)
			metrics.AgentInvocations.WithLabelValues(a.name, "input_invalid").Inc()
			return a.result(false, "", fmt.Sprintf("input validation failed: %v", err), started, 0, "input_invalid", nil)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			slog.Warn("Agent invocation failed, retrying",
				"agent", a.name, "attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				a.errors.Add(1)
				metrics.AgentInvocations.WithLabelValues(a.name, "failure").Inc()
				return a.result(false, "", ctx.Err().Error(), started, attempt, "failed", nil)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		output, err := a.handler.Invoke(callCtx, inputs)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		var warnings []string
		if a.validateOutput != nil {
			if verr := a.validateOutput(inputs, output); verr != nil {
				warnings = append(warnings, verr.Error())
				slog.Warn("Agent output validation warning", "agent", a.name, "warning", verr)
			}
		}
		metrics.AgentInvocations.WithLabelValues(a.name, "success").Inc()
		return a.result(true, output, "", started, attempt, "success", warnings)
	}

	a.errors.Add(1)
	metrics.AgentInvocations.WithLabelValues(a.name, "failure").Inc()
	errMsg := "agent execution failed"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	return a.result(false, "", errMsg, started, a.maxRetries, "failed", nil)
}

func (a *Adapter) result(success bool, output, errMsg string, started time.Time, retries int, status string, warnings []string) Result {
	completed := time.Now()
	a.durationMS.Add(completed.Sub(started).Milliseconds())
	return Result{
		Success:  success,
		Output:   output,
		Error:    errMsg,
		Warnings: warnings,
		ExecutionState: ExecutionState{
			StartedAt:   started,
			CompletedAt: completed,
			Duration:    completed.Sub(started),
			Retries:     retries,
			Status:      status,
		},
	}
}

// Stats returns a snapshot of the adapter counters with the derived error rate.
func (a *Adapter) Stats() Stats {
	total := a.executions.Load()
	errs := a.errors.Load()
	s := Stats{
		TotalExecutions: total,
		TotalErrors:     errs,
		TotalDurationMS: a.durationMS.Load(),
	}
	if total > 0 {
		s.ErrorRate = float64(errs) / float64(total)
	}
	return s
}
