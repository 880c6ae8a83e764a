// Package bootstrap wires configuration, infrastructure, and services
// together for the main entrypoint.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/owt-mfg/erpsync/config"
)

// InitLogger initializes the structured logger.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig checks cross-field requirements that Sanitize
// cannot default away.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	// Every deployment builds the full service graph so the HTTP control
	// surface can reach the fetcher; both endpoints must be configured.
	if cfg.ERP.APIURL == "" {
		return errors.New("ERP_API_URL is required")
	}
	if cfg.Sink.BaseURL == "" {
		return errors.New("SINK_BASE_URL is required")
	}
	if cfg.ERP.SyncFromDate != "" {
		if _, ok := cfg.ERP.FixedFromDate(); !ok {
			return fmt.Errorf("ERP_SYNC_FROM_DATE %q is not a YYYY-MM-DD date", cfg.ERP.SyncFromDate)
		}
	}
	if services[config.ServiceModeHTTP] && cfg.HTTP.APIKey == "" && !cfg.IsDev {
		return errors.New("HTTP_API_KEY is required when the http service is enabled outside dev mode")
	}

	return nil
}

// GetEnabledServices returns a list of enabled service names for logging.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		// Return empty list on error - validation will catch this
		return []string{}
	}

	enabledServices := make([]string, 0, len(services))
	for svc := range services {
		enabledServices = append(enabledServices, string(svc))
	}
	return enabledServices
}
