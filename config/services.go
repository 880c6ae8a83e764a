package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP control server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeFetcher runs the ERP fetch scheduler.
	ServiceModeFetcher ServiceMode = "fetcher"
	// ServiceModeWorker runs the job dispatch worker.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeReaper runs the stuck-job reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeFetcher,
		ServiceModeWorker,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeFetcher, ServiceModeWorker, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, fetcher, worker, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// FetcherConfig contains fetch scheduler configuration.
type FetcherConfig struct {
	// Interval is the delay between scheduled fetch cycles. A new cycle
	// never overlaps a running one; an overdue cycle is delayed, not skipped.
	Interval time.Duration `env:"FETCHER_INTERVAL" envDefault:"60m"`

	// RunOnStart triggers a fetch cycle immediately when the scheduler starts.
	RunOnStart bool `env:"FETCHER_RUN_ON_START" envDefault:"false"`
}

// Sanitize applies guardrails to fetcher configuration values.
func (f *FetcherConfig) Sanitize() {
	if f.Interval < time.Minute {
		f.Interval = time.Minute
	}
}

// WorkerConfig contains dispatch worker configuration.
type WorkerConfig struct {
	// PollInterval is the worker tick cadence. Each tick claims at most one job.
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"5s"`

	// MaxAttempts is the number of delivery attempts before a job is
	// permanently failed.
	MaxAttempts int `env:"WORKER_MAX_ATTEMPTS" envDefault:"5"`

	// RetryStep is the linear backoff step: the Nth retry waits N × RetryStep.
	RetryStep time.Duration `env:"WORKER_RETRY_STEP" envDefault:"5m"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.PollInterval < time.Second {
		w.PollInterval = time.Second
	}
	if w.MaxAttempts < 1 {
		w.MaxAttempts = 1
	}
	if w.RetryStep < time.Second {
		w.RetryStep = time.Second
	}
}

// ReaperConfig contains stuck-job reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// StuckTimeout is how long a job may sit in processing before it is
	// presumed orphaned by a crashed worker and returned to the queue.
	StuckTimeout time.Duration `env:"REAPER_STUCK_TIMEOUT" envDefault:"10m"`

	// BatchSize is the maximum number of rows to reset per operation.
	// Batching prevents long locks on large queues.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	if r.StuckTimeout < time.Minute {
		r.StuckTimeout = time.Minute
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
