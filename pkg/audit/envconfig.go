package audit

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadConfigFromEnv loads audit database configuration from environment
// variables. An empty AUDIT_DB_HOST means the database is not configured.
func LoadConfigFromEnv() (Config, bool, error) {
	host := os.Getenv("AUDIT_DB_HOST")
	if host == "" {
		return Config{}, false, nil
	}

	port, err := strconv.Atoi(getEnvOrDefault("AUDIT_DB_PORT", "5432"))
	if err != nil {
		return Config{}, false, fmt.Errorf("invalid AUDIT_DB_PORT: %w", err)
	}

	maxOpen, _ := strconv.Atoi(getEnvOrDefault("AUDIT_DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("AUDIT_DB_MAX_IDLE_CONNS", "5"))

	return Config{
		Host:            host,
		Port:            port,
		User:            getEnvOrDefault("AUDIT_DB_USER", "conversia"),
		Password:        os.Getenv("AUDIT_DB_PASSWORD"),
		Database:        getEnvOrDefault("AUDIT_DB_NAME", "conversia"),
		SSLMode:         getEnvOrDefault("AUDIT_DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}, true, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
