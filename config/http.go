package config

import "strings"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// APIKey protects the control endpoints (trigger/status/stop).
	// When empty and DEV is not set, the control surface refuses requests.
	APIKey string `env:"HTTP_API_KEY" envDefault:""`

	// ReadTimeoutSeconds bounds slow request bodies.
	ReadTimeoutSeconds int `env:"HTTP_READ_TIMEOUT_SECONDS" envDefault:"15"`

	// WriteTimeoutSeconds bounds slow responses.
	WriteTimeoutSeconds int `env:"HTTP_WRITE_TIMEOUT_SECONDS" envDefault:"30"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.APIKey = strings.TrimSpace(h.APIKey)
	if h.ReadTimeoutSeconds < 1 {
		h.ReadTimeoutSeconds = 1
	}
	if h.WriteTimeoutSeconds < 1 {
		h.WriteTimeoutSeconds = 1
	}
}
