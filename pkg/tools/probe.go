package tools

import (
	"context"
	"fmt"
)

// Probe adapts the Executor to the availability interface the schedule
// specialist consumes.
type Probe struct {
	exec *Executor
}

// NewProbe creates an availability probe over the executor. Panics if exec
// is nil.
func NewProbe(exec *Executor) *Probe {
	if exec == nil {
		panic("tools.NewProbe: executor must not be nil")
	}
	return &Probe{exec: exec}
}

// CheckAvailability returns the raw 30-minute start slots for a treatment on
// a date.
func (p *Probe) CheckAvailability(ctx context.Context, userID, date, treatment string) ([]string, error) {
	res := p.exec.Execute(ctx, ToolGoogleCalendar, map[string]any{
		"action":    ActionCheckAvailability,
		"date":      date,
		"treatment": treatment,
	}, userID, "schedule", "")
	if !res.Success {
		return nil, fmt.Errorf("%s", res.Error)
	}
	slots, _ := res.Data["available_slots"].([]string)
	return slots, nil
}
