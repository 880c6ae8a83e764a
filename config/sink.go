package config

import (
	"strings"
	"time"
)

// SinkConfig contains configuration for the downstream record store.
type SinkConfig struct {
	// BaseURL is the sink API root (e.g. "http://localhost:8090").
	BaseURL string `env:"BASE_URL"`

	// Token is the admin token sent on every sink request.
	Token string `env:"TOKEN" envDefault:""`

	// PlantCode prefixes the collection name; records land in
	// "{PlantCode}_erpConsolidateData".
	PlantCode string `env:"PLANT_CODE" envDefault:"plant01"`

	// Timeout bounds a single sink request.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to sink configuration values.
func (s *SinkConfig) Sanitize() {
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	s.PlantCode = strings.TrimSpace(s.PlantCode)
	if s.PlantCode == "" {
		s.PlantCode = "plant01"
	}
	if s.Timeout <= 0 {
		s.Timeout = 15 * time.Second
	}
}

// Collection returns the fully qualified sink collection name.
func (s *SinkConfig) Collection() string {
	return s.PlantCode + "_erpConsolidateData"
}
