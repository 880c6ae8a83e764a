package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/owt-mfg/erpsync/config"
	"github.com/owt-mfg/erpsync/internal/data"
	apperrors "github.com/owt-mfg/erpsync/internal/errors"
	"github.com/owt-mfg/erpsync/internal/observability/metrics"
	"github.com/owt-mfg/erpsync/internal/observability/statsd"
)

// ErrFetchInProgress is returned by Stop while a fetch cycle is running.
var ErrFetchInProgress = apperrors.Conflict("a fetch cycle is in progress")

// FetcherStatus is the control surface's view of the fetcher.
type FetcherStatus struct {
	SchedulerRunning bool        `json:"scheduler_running"`
	FetchInProgress  bool        `json:"fetch_in_progress"`
	LastCycle        *CycleStats `json:"last_cycle,omitempty"`
	LastError        string      `json:"last_error,omitempty"`
}

// FetcherServiceOptions groups dependencies for FetcherService.
type FetcherServiceOptions struct {
	Ingest  *IngestService       // Required: cycle runner
	Config  config.FetcherConfig // Required: scheduling configuration
	ERP     config.ERPConfig     // Required: window configuration
	Logger  *slog.Logger         // Optional: structured logger
	Metrics statsd.Sink          // Optional: metrics sink (StatsD-compatible)
	Time    data.TimeProvider    // Optional: time source
}

// FetcherService schedules fetch cycles and exposes the manual controls.
// Scheduled ticks and manual triggers funnel through a single flight, so a
// cycle never overlaps itself; a tick that lands mid-cycle simply joins the
// running one.
type FetcherService struct {
	ingest  *IngestService
	config  config.FetcherConfig
	erpCfg  config.ERPConfig
	logger  *slog.Logger
	metrics statsd.Sink
	time    data.TimeProvider

	group singleflight.Group

	mu        sync.Mutex
	running   bool
	stopped   bool
	fetching  bool
	lastCycle *CycleStats
	lastErr   error
	override  *time.Time // pending from_date override for the next coalesced run
}

// NewFetcherService constructs a new FetcherService.
func NewFetcherService(opts FetcherServiceOptions) (*FetcherService, error) {
	if opts.Ingest == nil {
		return nil, errors.New("IngestService is required")
	}

	tp := opts.Time
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "fetcher_service")
	}

	return &FetcherService{
		ingest:  opts.Ingest,
		config:  opts.Config,
		erpCfg:  opts.ERP,
		logger:  logger,
		metrics: opts.Metrics,
		time:    tp,
	}, nil
}

// Run starts the scheduler loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *FetcherService) Run(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.stopped = false
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting fetcher service", "interval", s.config.Interval)
	}

	if s.config.RunOnStart {
		s.runScheduled(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "fetcher service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if s.schedulerStopped() {
				continue
			}
			s.runScheduled(ctx)
		}
	}
}

// TriggerNow runs a fetch cycle immediately. Without an override the call
// joins an in-flight cycle if one is already running. A non-nil override
// replaces the configured window start; the stats returned to an override
// trigger always come from a cycle that ran after the override was posted,
// so a trigger landing mid-cycle waits out the running cycle and starts a
// fresh one rather than reporting a window it never fetched.
func (s *FetcherService) TriggerNow(ctx context.Context, override *time.Time) (*CycleStats, error) {
	if override == nil {
		return s.runCoalesced(ctx)
	}

	o := override.UTC()
	s.mu.Lock()
	s.override = &o
	s.mu.Unlock()

	for {
		stats, err := s.runCoalesced(ctx)

		s.mu.Lock()
		pending := s.override == &o
		s.mu.Unlock()
		if !pending {
			// Consumed by the cycle just observed, or superseded by a newer
			// override trigger whose window wins.
			return stats, err
		}
		// The joined cycle had resolved its window before this override
		// landed. Run again so the requested window is actually fetched.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// Status reports the scheduler and cycle state.
func (s *FetcherService) Status() FetcherStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := FetcherStatus{
		SchedulerRunning: s.running && !s.stopped,
		FetchInProgress:  s.fetching,
		LastCycle:        s.lastCycle,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

// Stop disables scheduled cycles. Manual triggers still work. Returns false
// when the scheduler was already stopped, and ErrFetchInProgress while a
// cycle is running.
func (s *FetcherService) Stop() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetching {
		return false, ErrFetchInProgress
	}
	if s.stopped {
		return false, nil
	}
	s.stopped = true
	return true, nil
}

func (s *FetcherService) schedulerStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *FetcherService) runScheduled(ctx context.Context) {
	if _, err := s.runCoalesced(ctx); err != nil && s.logger != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.ErrorContext(ctx, "scheduled fetch cycle failed", "error", err)
	}
}

func (s *FetcherService) runCoalesced(ctx context.Context) (*CycleStats, error) {
	v, err, _ := s.group.Do("fetch", func() (any, error) {
		return s.runCycle(ctx)
	})
	stats, _ := v.(*CycleStats)
	return stats, err
}

func (s *FetcherService) runCycle(ctx context.Context) (*CycleStats, error) {
	s.mu.Lock()
	s.fetching = true
	fromDate := s.resolveFromDateLocked()
	s.override = nil
	s.mu.Unlock()

	start := s.time.Now()
	stats, err := s.ingest.RunCycle(ctx, fromDate)

	s.mu.Lock()
	s.fetching = false
	s.lastCycle = stats
	s.lastErr = err
	s.mu.Unlock()

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	m := metrics.FetchCycleMetric{
		Result:   result,
		Duration: s.time.Now().Sub(start),
		Err:      err,
	}
	if stats != nil {
		m.Fetched = stats.Fetched
		m.Stored = stats.Stored
		m.Queued = stats.Queued
		m.Invalid = stats.Invalid
	}
	metrics.EmitFetchCycle(s.metrics, m)

	return stats, err
}

// resolveFromDateLocked picks the window start: a pending trigger override
// wins, then a configured fixed date, then now minus the trailing window.
// Callers must hold s.mu.
func (s *FetcherService) resolveFromDateLocked() time.Time {
	if s.override != nil {
		return *s.override
	}
	if fixed, ok := s.erpCfg.FixedFromDate(); ok {
		return fixed
	}
	return s.time.Now().UTC().AddDate(0, 0, -s.erpCfg.SyncDaysBack)
}
