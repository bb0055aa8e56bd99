// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	Engine EngineConfig
	Backup BackupConfig
}

// EngineConfig holds the belief-engine tunables
type EngineConfig struct {
	LearningRate     float64 // Bounds how much a single cycle can move a factor weight
	InsightThreshold float64 // Minimum mean-exposure difference that produces an insight
	MaxInsights      int     // Insights kept per cycle, top-N by magnitude
	ConfidenceStep   float64 // Reinforcement step toward 1 on a direction match
	ConflictRetries  int     // Belief-write retries on a version conflict
	// Regime classification thresholds
	VolatilityHigh float64 // Realized volatility above this is "volatile"
	ReturnHigh     float64 // Episode return above this is "risk_on"
	ReturnLow      float64 // Episode return below this is "risk_off"
}

// BackupConfig holds cloud backup settings (S3-compatible storage)
type BackupConfig struct {
	Enabled       bool
	Endpoint      string // S3-compatible endpoint URL (e.g., Cloudflare R2)
	Bucket        string
	AccessKey     string
	SecretKey     string
	RetentionDays int
	Schedule      string // Cron expression for the nightly maintenance job
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CVRF_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("GO_PORT", 8001),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Engine: EngineConfig{
			LearningRate:     getEnvAsFloat("CVRF_LEARNING_RATE", 0.1),
			InsightThreshold: getEnvAsFloat("CVRF_INSIGHT_THRESHOLD", 0.15),
			MaxInsights:      getEnvAsInt("CVRF_MAX_INSIGHTS", 5),
			ConfidenceStep:   getEnvAsFloat("CVRF_CONFIDENCE_STEP", 0.05),
			ConflictRetries:  getEnvAsInt("CVRF_CONFLICT_RETRIES", 3),
			VolatilityHigh:   getEnvAsFloat("CVRF_REGIME_VOL_HIGH", 0.25),
			ReturnHigh:       getEnvAsFloat("CVRF_REGIME_RETURN_HIGH", 0.02),
			ReturnLow:        getEnvAsFloat("CVRF_REGIME_RETURN_LOW", -0.02),
		},
		Backup: BackupConfig{
			Enabled:       getEnvAsBool("BACKUP_ENABLED", false),
			Endpoint:      getEnv("BACKUP_S3_ENDPOINT", ""),
			Bucket:        getEnv("BACKUP_S3_BUCKET", "cvrf-backups"),
			AccessKey:     getEnv("BACKUP_S3_ACCESS_KEY", ""),
			SecretKey:     getEnv("BACKUP_S3_SECRET_KEY", ""),
			RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
			Schedule:      getEnv("BACKUP_SCHEDULE", "0 0 2 * * *"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects tunables that would break engine invariants
func (c *Config) validate() error {
	if c.Engine.LearningRate <= 0 || c.Engine.LearningRate > 1 {
		return fmt.Errorf("CVRF_LEARNING_RATE must be in (0,1], got %v", c.Engine.LearningRate)
	}
	if c.Engine.InsightThreshold < 0 {
		return fmt.Errorf("CVRF_INSIGHT_THRESHOLD must be >= 0, got %v", c.Engine.InsightThreshold)
	}
	if c.Engine.MaxInsights < 1 {
		return fmt.Errorf("CVRF_MAX_INSIGHTS must be >= 1, got %d", c.Engine.MaxInsights)
	}
	if c.Engine.ConflictRetries < 0 {
		return fmt.Errorf("CVRF_CONFLICT_RETRIES must be >= 0, got %d", c.Engine.ConflictRetries)
	}
	// The regime classifier divides by these thresholds
	if c.Engine.VolatilityHigh <= 0 {
		return fmt.Errorf("CVRF_REGIME_VOL_HIGH must be > 0, got %v", c.Engine.VolatilityHigh)
	}
	if c.Engine.ReturnHigh <= 0 {
		return fmt.Errorf("CVRF_REGIME_RETURN_HIGH must be > 0, got %v", c.Engine.ReturnHigh)
	}
	if c.Engine.ReturnLow >= 0 {
		return fmt.Errorf("CVRF_REGIME_RETURN_LOW must be < 0, got %v", c.Engine.ReturnLow)
	}
	if c.Backup.Enabled && (c.Backup.Endpoint == "" || c.Backup.AccessKey == "" || c.Backup.SecretKey == "") {
		return fmt.Errorf("backups enabled but BACKUP_S3_ENDPOINT / credentials are not set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
