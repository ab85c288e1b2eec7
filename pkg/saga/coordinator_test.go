package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversia-ai/conversia/pkg/audit"
	"github.com/conversia-ai/conversia/pkg/models"
)

func okExecutor(name string, log *[]string) ExecutorFunc {
	return func(context.Context, map[string]any) (map[string]any, error) {
		*log = append(*log, "exec:"+name)
		return map[string]any{"action": name}, nil
	}
}

func failExecutor(name string, log *[]string) ExecutorFunc {
	return func(context.Context, map[string]any) (map[string]any, error) {
		*log = append(*log, "exec:"+name)
		return nil, errors.New(name + " failed")
	}
}

func okCompensator(name string, log *[]string) CompensatorFunc {
	return func(context.Context, map[string]any, map[string]any) error {
		*log = append(*log, "comp:"+name)
		return nil
	}
}

func TestExecuteSagaSuccess(t *testing.T) {
	c := NewCoordinator(audit.NewLogStore(0))
	var log []string

	s := c.CreateSaga("benova_contact_1", "booking")
	require.NoError(t, c.AddAction(s.ID, "booking", "a", okExecutor("a", &log), okCompensator("a", &log), nil))
	require.NoError(t, c.AddAction(s.ID, "notification", "b", okExecutor("b", &log), nil, nil))

	result := c.ExecuteSaga(context.Background(), s.ID)
	require.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, []string{"exec:a", "exec:b"}, log)

	require.Len(t, result.Steps, 2)
	assert.Equal(t, models.ActionStatusSuccess, result.Steps[0].Status)
	assert.Equal(t, models.ActionStatusSuccess, result.Steps[1].Status)
}

func TestExecuteSagaCompensatesInReverseOrder(t *testing.T) {
	c := NewCoordinator(audit.NewLogStore(0))
	var log []string

	s := c.CreateSaga("benova_contact_1", "booking")
	require.NoError(t, c.AddAction(s.ID, "t", "a", okExecutor("a", &log), okCompensator("a", &log), nil))
	require.NoError(t, c.AddAction(s.ID, "t", "b", okExecutor("b", &log), okCompensator("b", &log), nil))
	require.NoError(t, c.AddAction(s.ID, "t", "c", failExecutor("c", &log), okCompensator("c", &log), nil))

	result := c.ExecuteSaga(context.Background(), s.ID)
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "c failed")
	assert.Equal(t, []string{"exec:a", "exec:b", "exec:c", "comp:b", "comp:a"}, log)

	assert.Equal(t, models.ActionStatusCompensated, result.Steps[0].Status)
	assert.Equal(t, models.ActionStatusCompensated, result.Steps[1].Status)
	assert.Equal(t, models.ActionStatusFailed, result.Steps[2].Status)
}

func TestExecuteSagaCompensatorFailureHalts(t *testing.T) {
	c := NewCoordinator(audit.NewLogStore(0))
	var log []string
	failingComp := func(context.Context, map[string]any, map[string]any) error {
		log = append(log, "comp:b")
		return errors.New("compensation broken")
	}

	s := c.CreateSaga("benova_contact_1", "booking")
	require.NoError(t, c.AddAction(s.ID, "t", "a", okExecutor("a", &log), okCompensator("a", &log), nil))
	require.NoError(t, c.AddAction(s.ID, "t", "b", okExecutor("b", &log), failingComp, nil))
	require.NoError(t, c.AddAction(s.ID, "t", "c", failExecutor("c", &log), nil, nil))

	result := c.ExecuteSaga(context.Background(), s.ID)
	require.False(t, result.Success)
	// a's compensator never runs because b's failed first.
	assert.Equal(t, []string{"exec:a", "exec:b", "exec:c", "comp:b"}, log)
	assert.Equal(t, models.ActionStatusSuccess, result.Steps[0].Status)
	assert.Equal(t, models.ActionStatusSuccess, result.Steps[1].Status)
}

func TestExecuteSagaSkipsNonCompensable(t *testing.T) {
	c := NewCoordinator(audit.NewLogStore(0))
	var log []string

	s := c.CreateSaga("benova_contact_1", "booking")
	require.NoError(t, c.AddAction(s.ID, "t", "a", okExecutor("a", &log), nil, nil))
	require.NoError(t, c.AddAction(s.ID, "t", "b", failExecutor("b", &log), nil, nil))

	result := c.ExecuteSaga(context.Background(), s.ID)
	require.False(t, result.Success)
	assert.Equal(t, []string{"exec:a", "exec:b"}, log)
	assert.Equal(t, models.ActionStatusSuccess, result.Steps[0].Status)
}

func TestExecuteSagaWritesAudit(t *testing.T) {
	store := audit.NewLogStore(0)
	c := NewCoordinator(store)
	var log []string

	s := c.CreateSaga("benova_contact_1", "booking")
	require.NoError(t, c.AddAction(s.ID, "booking", "create_booking",
		okExecutor("create_booking", &log), okCompensator("create_booking", &log), nil))
	require.NoError(t, c.AddAction(s.ID, "notification", "send_confirmation",
		failExecutor("send_confirmation", &log), nil, nil))

	c.ExecuteSaga(context.Background(), s.ID)

	entries, err := store.ListByUser(context.Background(), "benova_contact_1", 10)
	require.NoError(t, err)
	// Booking, failed notification, and the compensation attempt.
	require.Len(t, entries, 3)

	byName := map[string]models.AuditEntry{}
	for _, e := range entries {
		byName[e.ActionName] = e
	}
	assert.Equal(t, models.AuditStatusSuccess, byName["create_booking"].Status)
	assert.True(t, byName["create_booking"].Compensable)
	assert.Equal(t, models.AuditStatusFailed, byName["send_confirmation"].Status)
	assert.Equal(t, models.AuditStatusSuccess, byName["compensate_create_booking"].Status)
}

func TestExecuteSagaReleasesSaga(t *testing.T) {
	c := NewCoordinator(audit.NewLogStore(0))
	var log []string

	s := c.CreateSaga("benova_contact_1", "booking")
	require.NoError(t, c.AddAction(s.ID, "t", "a", okExecutor("a", &log), nil, nil))
	require.True(t, c.ExecuteSaga(context.Background(), s.ID).Success)

	// The coordinator must not retain executed sagas.
	assert.Empty(t, c.sagas)
	rerun := c.ExecuteSaga(context.Background(), s.ID)
	assert.False(t, rerun.Success)
	assert.Contains(t, rerun.Error, "not found")
	assert.Error(t, c.AddAction(s.ID, "t", "b", okExecutor("b", &log), nil, nil))

	// Failed sagas are released too.
	f := c.CreateSaga("benova_contact_1", "booking")
	require.NoError(t, c.AddAction(f.ID, "t", "a", failExecutor("a", &log), nil, nil))
	require.False(t, c.ExecuteSaga(context.Background(), f.ID).Success)
	assert.Empty(t, c.sagas)
}

func TestExecuteSagaUnknownID(t *testing.T) {
	c := NewCoordinator(audit.NewLogStore(0))
	result := c.ExecuteSaga(context.Background(), "nope")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
}

func TestAddActionValidation(t *testing.T) {
	c := NewCoordinator(audit.NewLogStore(0))
	s := c.CreateSaga("u", "x")
	assert.Error(t, c.AddAction(s.ID, "t", "a", nil, nil, nil), "executor is required")
	assert.Error(t, c.AddAction("missing", "t", "a", okExecutor("a", new([]string)), nil, nil))
}
