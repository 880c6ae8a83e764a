package config

import (
	"strings"
	"time"
)

// ERPConfig contains configuration for the upstream ERP API.
type ERPConfig struct {
	// APIURL is the ERP consolidate-data endpoint.
	APIURL string `env:"API_URL"`

	// TxnType is the transaction type filter. Omitted from the query when empty.
	TxnType string `env:"TXN_TYPE" envDefault:""`

	// SyncDaysBack bounds the trailing fetch window when no explicit
	// from-date is configured.
	SyncDaysBack int `env:"SYNC_DAYS_BACK" envDefault:"367"`

	// SyncFromDate pins the fetch window start (YYYY-MM-DD). Takes
	// precedence over SyncDaysBack when set.
	SyncFromDate string `env:"SYNC_FROM_DATE" envDefault:""`

	// Timeout bounds a single fetch request. ERP exports are slow; the
	// upstream regularly takes minutes to assemble a full window.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10m"`

	// InsecureSkipVerify disables TLS verification for the ERP endpoint.
	// The upstream runs with a self-signed certificate on some plants.
	InsecureSkipVerify bool `env:"INSECURE_SKIP_VERIFY" envDefault:"false"`
}

// FixedFromDate parses SyncFromDate. The second return is false when no
// fixed date is configured or the value does not parse.
func (e *ERPConfig) FixedFromDate() (time.Time, bool) {
	if e.SyncFromDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", e.SyncFromDate)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// Sanitize applies guardrails to ERP configuration values.
func (e *ERPConfig) Sanitize() {
	e.APIURL = strings.TrimSpace(e.APIURL)
	e.TxnType = strings.TrimSpace(e.TxnType)
	e.SyncFromDate = strings.TrimSpace(e.SyncFromDate)
	if e.SyncDaysBack < 0 {
		e.SyncDaysBack = 0
	}
	if e.Timeout <= 0 {
		e.Timeout = 10 * time.Minute
	}
}
