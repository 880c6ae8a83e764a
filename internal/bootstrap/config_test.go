package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owt-mfg/erpsync/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ERP_API_URL", "https://erp.example.com/api/consolidate")
	t.Setenv("SINK_BASE_URL", "http://localhost:8090")
	t.Setenv("HTTP_API_KEY", "secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "http,fetcher,worker,reaper", cfg.Services)
	assert.Equal(t, 60*time.Minute, cfg.Fetcher.Interval)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 5, cfg.Worker.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Worker.RetryStep)
	assert.Equal(t, 5*time.Minute, cfg.Reaper.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Reaper.StuckTimeout)
	assert.Equal(t, 367, cfg.ERP.SyncDaysBack)
	assert.Equal(t, "plant01_erpConsolidateData", cfg.Sink.Collection())
	assert.True(t, cfg.Postgres.RunMigrationsOnStart)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVICES", "worker,reaper")
	t.Setenv("WORKER_POLL_INTERVAL", "10s")
	t.Setenv("SINK_PLANT_CODE", "plant07")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, "plant07_erpConsolidateData", cfg.Sink.Collection())
	assert.True(t, cfg.Redis.Enabled())
	assert.False(t, cfg.IsHTTPServerEnabled())
	assert.True(t, cfg.IsWorkerEnabled())
}

func TestValidateServiceConfig(t *testing.T) {
	base := func() config.AppConfig {
		return config.AppConfig{
			Services: "http,fetcher,worker,reaper",
			ERP:      config.ERPConfig{APIURL: "https://erp.example.com"},
			Sink:     config.SinkConfig{BaseURL: "http://localhost:8090"},
			HTTP:     config.HTTPConfig{APIKey: "secret"},
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := base()
		assert.NoError(t, ValidateServiceConfig(&cfg))
	})

	t.Run("nil config", func(t *testing.T) {
		assert.Error(t, ValidateServiceConfig(nil))
	})

	t.Run("missing erp url", func(t *testing.T) {
		cfg := base()
		cfg.ERP.APIURL = ""
		assert.Error(t, ValidateServiceConfig(&cfg))
	})

	t.Run("missing sink url", func(t *testing.T) {
		cfg := base()
		cfg.Sink.BaseURL = ""
		assert.Error(t, ValidateServiceConfig(&cfg))
	})

	t.Run("bad from date", func(t *testing.T) {
		cfg := base()
		cfg.ERP.SyncFromDate = "01/02/2026"
		assert.Error(t, ValidateServiceConfig(&cfg))
	})

	t.Run("http without api key outside dev", func(t *testing.T) {
		cfg := base()
		cfg.HTTP.APIKey = ""
		assert.Error(t, ValidateServiceConfig(&cfg))

		cfg.IsDev = true
		assert.NoError(t, ValidateServiceConfig(&cfg))
	})

	t.Run("invalid services", func(t *testing.T) {
		cfg := base()
		cfg.Services = "scheduler"
		assert.Error(t, ValidateServiceConfig(&cfg))
	})
}

func TestGetEnabledServices(t *testing.T) {
	cfg := config.AppConfig{Services: "worker"}
	assert.Equal(t, []string{"worker"}, GetEnabledServices(&cfg))
	assert.Empty(t, GetEnabledServices(nil))
}
