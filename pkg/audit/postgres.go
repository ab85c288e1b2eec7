package audit

import (
	"context"
	stdsql "database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql

	"github.com/conversia-ai/conversia/pkg/models"
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds audit database configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds a pgx-compatible connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// PostgresStore is the durable audit backend.
type PostgresStore struct {
	db *stdsql.DB
}

// NewPostgresStore opens the audit database, configures pooling, and applies
// pending migrations from the embedded filesystem.
func NewPostgresStore(ctx context.Context, cfg Config) (*PostgresStore, error) {
	db, err := stdsql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run audit migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection (tests).
func NewPostgresStoreFromDB(db *stdsql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies pending migrations to an existing connection (tests).
func Migrate(db *stdsql.DB, database string) error {
	return runMigrations(db, database)
}

func runMigrations(db *stdsql.DB, database string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, database, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the source driver; m.Close() would also close the shared
	// *sql.DB passed via postgres.WithInstance().
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Log appends a pending entry and returns its audit ID.
func (s *PostgresStore) Log(ctx context.Context, userID, actionType, actionName string, inputParams map[string]any, compensable bool, compensationAction string) (string, error) {
	auditID := uuid.NewString()
	params, err := json.Marshal(inputParams)
	if err != nil {
		return "", fmt.Errorf("marshal input params: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries
			(audit_id, user_id, action_type, action_name, input_params, compensable, compensation_action, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		auditID, userID, actionType, actionName, params, compensable,
		nullable(compensationAction), string(models.AuditStatusPending), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert audit entry: %w", err)
	}
	return auditID, nil
}

// MarkSuccess finalizes an entry with its result.
func (s *PostgresStore) MarkSuccess(ctx context.Context, auditID string, result map[string]any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE audit_entries
		SET status = $1, result = $2, completed_at = $3
		WHERE audit_id = $4`,
		string(models.AuditStatusSuccess), payload, time.Now().UTC(), auditID,
	)
	if err != nil {
		return fmt.Errorf("mark audit success: %w", err)
	}
	return nil
}

// MarkFailed finalizes an entry with an error message.
func (s *PostgresStore) MarkFailed(ctx context.Context, auditID, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_entries
		SET status = $1, error = $2, completed_at = $3
		WHERE audit_id = $4`,
		string(models.AuditStatusFailed), errorMessage, time.Now().UTC(), auditID,
	)
	if err != nil {
		return fmt.Errorf("mark audit failed: %w", err)
	}
	return nil
}

// ListByUser returns entries for a user, newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT audit_id, user_id, action_type, action_name, input_params,
		       compensable, compensation_action, status, result, error,
		       created_at, completed_at
		FROM audit_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			e            models.AuditEntry
			params       []byte
			result       []byte
			compensation stdsql.NullString
			errMsg       stdsql.NullString
			completedAt  stdsql.NullTime
		)
		if err := rows.Scan(&e.AuditID, &e.UserID, &e.ActionType, &e.ActionName, &params,
			&e.Compensable, &compensation, &e.Status, &result, &errMsg,
			&e.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(params) > 0 {
			_ = json.Unmarshal(params, &e.InputParams)
		}
		if len(result) > 0 {
			_ = json.Unmarshal(result, &e.Result)
		}
		e.CompensationAction = compensation.String
		e.Error = errMsg.String
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
