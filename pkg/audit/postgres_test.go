package audit

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/conversia-ai/conversia/pkg/models"
)

// setupPostgres starts a disposable postgres container, applies the embedded
// migrations and returns a ready store. Skips when Docker is unavailable.
func setupPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	// Detecting the host up front avoids a panic inside the container
	// runtime when no Docker endpoint exists at all. testcontainers panics
	// (rather than returning an error) during host detection in that case,
	// so the probe converts the panic into an error too.
	cli, err := func() (cli *testcontainers.DockerClient, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%v", r)
			}
		}()
		return testcontainers.NewDockerClientWithOpts(ctx)
	}()
	if err != nil {
		t.Skipf("docker unavailable, skipping: %v", err)
	}
	_ = cli.Close()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("conversia_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("docker unavailable, skipping: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db, "conversia_test"))
	return NewPostgresStoreFromDB(db)
}

func TestPostgresStoreLifecycle(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	id, err := s.Log(ctx, "benova_contact_1", "booking", "create_booking",
		map[string]any{"date": "11-12-2024", "treatment": "botox"}, true, "delete_event")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.MarkSuccess(ctx, id, map[string]any{"event_id": "ev-1"}))

	failedID, err := s.Log(ctx, "benova_contact_1", "notification", "send_email", nil, false, "")
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, failedID, "smtp unreachable"))

	entries, err := s.ListByUser(ctx, "benova_contact_1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "send_email", entries[0].ActionName)
	assert.Equal(t, models.AuditStatusFailed, entries[0].Status)
	assert.Equal(t, "smtp unreachable", entries[0].Error)

	booked := entries[1]
	assert.Equal(t, "create_booking", booked.ActionName)
	assert.Equal(t, models.AuditStatusSuccess, booked.Status)
	assert.True(t, booked.Compensable)
	assert.Equal(t, "delete_event", booked.CompensationAction)
	assert.Equal(t, "botox", booked.InputParams["treatment"])
	assert.Equal(t, "ev-1", booked.Result["event_id"])
	require.NotNil(t, booked.CompletedAt)
}

func TestPostgresStoreScopedToUser(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	_, err := s.Log(ctx, "u1", "booking", "create_booking", nil, false, "")
	require.NoError(t, err)
	_, err = s.Log(ctx, "u2", "booking", "create_booking", nil, false, "")
	require.NoError(t, err)

	entries, err := s.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].UserID)

	entries, err = s.ListByUser(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
