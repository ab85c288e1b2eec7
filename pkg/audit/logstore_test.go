package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversia-ai/conversia/pkg/models"
)

func TestLogStoreLifecycle(t *testing.T) {
	s := NewLogStore(10)
	ctx := context.Background()

	id, err := s.Log(ctx, "benova_contact_1", "booking", "create_booking",
		map[string]any{"date": "11-12-2024"}, true, "delete_event")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.MarkSuccess(ctx, id, map[string]any{"event_id": "ev-1"}))

	entries, err := s.ListByUser(ctx, "benova_contact_1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, models.AuditStatusSuccess, e.Status)
	assert.Equal(t, "create_booking", e.ActionName)
	assert.Equal(t, "delete_event", e.CompensationAction)
	assert.True(t, e.Compensable)
	assert.Equal(t, "ev-1", e.Result["event_id"])
	assert.NotNil(t, e.CompletedAt)
}

func TestLogStoreMarkFailed(t *testing.T) {
	s := NewLogStore(10)
	ctx := context.Background()

	id, err := s.Log(ctx, "u1", "notification", "send_email", nil, false, "")
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, id, "smtp unreachable"))

	entries, err := s.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditStatusFailed, entries[0].Status)
	assert.Equal(t, "smtp unreachable", entries[0].Error)
}

func TestLogStoreListNewestFirstAndScoped(t *testing.T) {
	s := NewLogStore(10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Log(ctx, "u1", "t", fmt.Sprintf("action-%d", i), nil, false, "")
		require.NoError(t, err)
	}
	_, err := s.Log(ctx, "u2", "t", "other-user", nil, false, "")
	require.NoError(t, err)

	entries, err := s.ListByUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "action-2", entries[0].ActionName)
	assert.Equal(t, "action-1", entries[1].ActionName)
}

func TestLogStoreRingEviction(t *testing.T) {
	s := NewLogStore(2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Log(ctx, "u1", "t", fmt.Sprintf("action-%d", i), nil, false, "")
		require.NoError(t, err)
	}

	entries, err := s.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "action-2", entries[0].ActionName)
	assert.Equal(t, "action-1", entries[1].ActionName)
}
