package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "mgnrega_data.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "https://api.data.gov.in/resource", cfg.DataGov.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.DataGov.Timeout())
	assert.Equal(t, 1000, cfg.DataGov.PageLimit)
	assert.Equal(t, "Bihar", cfg.Ingest.StateName)
	assert.Equal(t, "BI", cfg.Ingest.StateCode)
	assert.Equal(t, 2024, cfg.Ingest.Year)
	assert.Equal(t, 6*time.Hour, cfg.Ingest.CacheTTL())
	assert.Equal(t, time.Second, cfg.Ingest.Pause())
	assert.Equal(t, 1, cfg.Ingest.Workers)
	assert.Equal(t, "0 */6 * * *", cfg.Ingest.CronSpec)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, 100, cfg.Server.RateLimit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MGNREGA_STORE_DRIVER", "postgres")
	t.Setenv("MGNREGA_STORE_DATABASE_URL", "postgres://localhost:5432/mgnrega")
	t.Setenv("MGNREGA_DATAGOV_API_KEY", "secret")
	t.Setenv("MGNREGA_INGEST_STATE_NAME", "Jharkhand")
	t.Setenv("MGNREGA_INGEST_YEAR", "2025")
	t.Setenv("MGNREGA_SERVER_PORT", "8080")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost:5432/mgnrega", cfg.Store.DatabaseURL)
	assert.Equal(t, "secret", cfg.DataGov.APIKey)
	assert.Equal(t, "Jharkhand", cfg.Ingest.StateName)
	assert.Equal(t, 2025, cfg.Ingest.Year)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
