package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CVRF_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)

	assert.Equal(t, 0.1, cfg.Engine.LearningRate)
	assert.Equal(t, 0.15, cfg.Engine.InsightThreshold)
	assert.Equal(t, 5, cfg.Engine.MaxInsights)
	assert.Equal(t, 0.05, cfg.Engine.ConfidenceStep)
	assert.Equal(t, 3, cfg.Engine.ConflictRetries)
	assert.Equal(t, 0.25, cfg.Engine.VolatilityHigh)

	assert.False(t, cfg.Backup.Enabled)
	assert.Equal(t, "cvrf-backups", cfg.Backup.Bucket)
	assert.Equal(t, 14, cfg.Backup.RetentionDays)
	assert.Equal(t, "0 0 2 * * *", cfg.Backup.Schedule)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CVRF_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CVRF_LEARNING_RATE", "0.2")
	t.Setenv("CVRF_MAX_INSIGHTS", "3")
	t.Setenv("CVRF_REGIME_RETURN_LOW", "-0.05")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0.2, cfg.Engine.LearningRate)
	assert.Equal(t, 3, cfg.Engine.MaxInsights)
	assert.Equal(t, -0.05, cfg.Engine.ReturnLow)
}

func TestLoad_RejectsInvalidLearningRate(t *testing.T) {
	t.Setenv("CVRF_DATA_DIR", t.TempDir())
	t.Setenv("CVRF_LEARNING_RATE", "1.5")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidRegimeThresholds(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"zero volatility threshold", "CVRF_REGIME_VOL_HIGH", "0"},
		{"negative return high", "CVRF_REGIME_RETURN_HIGH", "-0.02"},
		{"zero return low", "CVRF_REGIME_RETURN_LOW", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("CVRF_DATA_DIR", t.TempDir())
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_RejectsBackupWithoutCredentials(t *testing.T) {
	t.Setenv("CVRF_DATA_DIR", t.TempDir())
	t.Setenv("BACKUP_ENABLED", "true")
	t.Setenv("BACKUP_S3_ENDPOINT", "")
	t.Setenv("BACKUP_S3_ACCESS_KEY", "")
	t.Setenv("BACKUP_S3_SECRET_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MalformedNumbersFallBack(t *testing.T) {
	t.Setenv("CVRF_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "not-a-number")
	t.Setenv("CVRF_INSIGHT_THRESHOLD", "oops")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, 0.15, cfg.Engine.InsightThreshold)
}
