package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/owt-mfg/erpsync/config"
	"github.com/owt-mfg/erpsync/internal/core"
	"github.com/owt-mfg/erpsync/internal/observability/metrics"
	"github.com/owt-mfg/erpsync/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Jobs    core.SyncJobRepository // Required: delivery queue
	Config  config.ReaperConfig    // Required: reaper configuration
	Logger  *slog.Logger           // Optional: structured logger
	Metrics statsd.Sink            // Optional: metrics sink (StatsD-compatible)
}

// ReaperService rescues jobs orphaned in processing. A worker that crashes
// after claiming leaves its job stuck; the reaper returns such jobs to
// queued once they exceed the stuck timeout, without touching retry counts.
type ReaperService struct {
	jobs    core.SyncJobRepository
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("SyncJobRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"stuck_timeout", opts.Config.StuckTimeout,
			"batch_size", opts.Config.BatchSize,
		)
	}

	return &ReaperService{
		jobs:    opts.Jobs,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Jitter keeps multiple instances from sweeping in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.Sweep(ctx); err != nil {
		s.logSweepError(ctx, err)
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logSweepError(ctx, err)
			}
		}
	}
}

// Sweep requeues stuck processing jobs in batches until none remain, and
// returns the total number requeued.
func (s *ReaperService) Sweep(ctx context.Context) (int64, error) {
	var total int64
	for {
		count, err := s.jobs.ResetStuck(ctx, s.config.StuckTimeout, s.config.BatchSize)
		total += count
		if err != nil {
			metrics.EmitReap(s.metrics, total)
			return total, fmt.Errorf("reset stuck jobs: %w", err)
		}
		if count == 0 {
			break
		}
		if ctx.Err() != nil {
			metrics.EmitReap(s.metrics, total)
			return total, ctx.Err()
		}
	}

	metrics.EmitReap(s.metrics, total)
	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "requeued stuck jobs", "count", total)
	}
	return total, nil
}

func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *ReaperService) logSweepError(ctx context.Context, err error) {
	if s.logger == nil || errors.Is(err, context.Canceled) {
		return
	}
	s.logger.ErrorContext(ctx, "reaper sweep failed", "error", err)
}
