// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// CapturePolicySumAll and CapturePolicyLatest are the accepted values for
// CAPTURE_POLICY. They control how multiple same-day snapshot captures of the
// same position are treated by the ledger engine.
const (
	CapturePolicySumAll = "sum_all"
	CapturePolicyLatest = "latest"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases and backup staging (always absolute)
	Port     int
	DevMode  bool
	LogLevel string

	// Broker credentials. Snapshot sync is disabled when either is empty.
	KiteAPIKey      string
	KiteAccessToken string

	// Snapshot sync behaviour
	SyncIntervalMinutes   int
	SyncTimezone          string // IANA zone used to stamp as_of_date on captures
	SnapshotRetentionDays int    // 0 disables the cleanup job

	// Ledger defaults (callers can override per request)
	StartingCash  float64
	CapturePolicy string

	// Backup target (S3-compatible; empty bucket disables backups)
	S3Bucket            string
	S3Endpoint          string
	S3Region            string
	S3AccessKeyID       string
	S3SecretAccessKey   string
	BackupRetentionDays int // 0 keeps archives forever
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic:
	// 1. Check RECKON_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("RECKON_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8090),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		KiteAPIKey:      getEnv("KITE_API_KEY", ""),
		KiteAccessToken: getEnv("KITE_ACCESS_TOKEN", ""),

		SyncIntervalMinutes:   getEnvAsInt("SYNC_INTERVAL_MINUTES", 15),
		SyncTimezone:          getEnv("SYNC_TIMEZONE", "Asia/Kolkata"),
		SnapshotRetentionDays: getEnvAsInt("SNAPSHOT_RETENTION_DAYS", 730),

		StartingCash:  getEnvAsFloat("STARTING_CASH", 0),
		CapturePolicy: getEnv("CAPTURE_POLICY", CapturePolicySumAll),

		S3Bucket:            getEnv("S3_BUCKET", ""),
		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		S3Region:            getEnv("S3_REGION", "auto"),
		S3AccessKeyID:       getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:   getEnv("S3_SECRET_ACCESS_KEY", ""),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	// Note: broker credentials are optional; without them the service runs
	// on stored and HTTP-ingested snapshots only.
	if c.CapturePolicy != CapturePolicySumAll && c.CapturePolicy != CapturePolicyLatest {
		return fmt.Errorf("invalid CAPTURE_POLICY %q: must be %q or %q",
			c.CapturePolicy, CapturePolicySumAll, CapturePolicyLatest)
	}

	if c.SyncIntervalMinutes < 1 {
		return fmt.Errorf("SYNC_INTERVAL_MINUTES must be at least 1, got %d", c.SyncIntervalMinutes)
	}

	return nil
}

// BrokerConfigured reports whether Kite credentials are present
func (c *Config) BrokerConfigured() bool {
	return c.KiteAPIKey != "" && c.KiteAccessToken != ""
}

// BackupConfigured reports whether an S3 backup target is present
func (c *Config) BackupConfigured() bool {
	return c.S3Bucket != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
