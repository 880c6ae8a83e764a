package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/owt-mfg/erpsync/config"
	"github.com/owt-mfg/erpsync/internal/core"
	"github.com/owt-mfg/erpsync/internal/data"
	"github.com/owt-mfg/erpsync/internal/domain/model"
	apperrors "github.com/owt-mfg/erpsync/internal/errors"
	"github.com/owt-mfg/erpsync/internal/observability/metrics"
	"github.com/owt-mfg/erpsync/internal/observability/statsd"
)

// validationErrPrefix marks last_error values caused by payload shape
// problems. Retries cannot fix these; operators filter on the prefix.
const validationErrPrefix = "validation: "

// WorkerServiceOptions groups dependencies for WorkerService.
type WorkerServiceOptions struct {
	Jobs        core.SyncJobRepository // Required: delivery queue
	PushLog     core.PushLogRepository // Required: attempt log
	Sink        core.SinkClient        // Required: downstream client
	Transformer *Transformer           // Required: payload validation/shaping
	Cache       core.SinkIDCache       // Optional: business key → sink id cache
	Config      config.WorkerConfig    // Required: worker configuration
	Logger      *slog.Logger           // Optional: structured logger
	Metrics     statsd.Sink            // Optional: metrics sink (StatsD-compatible)
	Time        data.TimeProvider      // Optional: time source
}

// WorkerService drains the delivery queue. Each tick claims at most one job,
// transforms its record's current payload, and upserts the document into the
// sink. Per-job failures are absorbed into the job's retry state; the loop
// itself only stops with its context.
type WorkerService struct {
	jobs        core.SyncJobRepository
	pushLog     core.PushLogRepository
	sink        core.SinkClient
	transformer *Transformer
	cache       core.SinkIDCache
	config      config.WorkerConfig
	logger      *slog.Logger
	metrics     statsd.Sink
	time        data.TimeProvider
}

// NewWorkerService constructs a new WorkerService.
func NewWorkerService(opts WorkerServiceOptions) (*WorkerService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("SyncJobRepository is required")
	}
	if opts.PushLog == nil {
		return nil, errors.New("PushLogRepository is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("SinkClient is required")
	}
	if opts.Transformer == nil {
		return nil, errors.New("Transformer is required")
	}

	tp := opts.Time
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "worker_service")
	}

	return &WorkerService{
		jobs:        opts.Jobs,
		pushLog:     opts.PushLog,
		sink:        opts.Sink,
		transformer: opts.Transformer,
		cache:       opts.Cache,
		config:      opts.Config,
		logger:      logger,
		metrics:     opts.Metrics,
		time:        tp,
	}, nil
}

// Run starts the worker loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *WorkerService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting worker service", "poll_interval", s.config.PollInterval)
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "worker service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.Tick(ctx); err != nil && s.logger != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				s.logger.ErrorContext(ctx, "worker tick failed", "error", err)
			}
		}
	}
}

// Tick claims and processes at most one job. A tick with an empty queue is
// not an error.
func (s *WorkerService) Tick(ctx context.Context) error {
	claimed, err := s.jobs.ClaimNext(ctx)
	if errors.Is(err, model.ErrNoJobsAvailable) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim next job: %w", err)
	}

	s.processJob(ctx, claimed)
	return nil
}

func (s *WorkerService) processJob(ctx context.Context, claimed *model.ClaimedJob) {
	start := s.time.Now()
	deliverErr := s.deliver(ctx, claimed)
	elapsed := s.time.Now().Sub(start)

	result := metrics.ResultSuccess
	if deliverErr != nil {
		result = metrics.ResultError
	}
	metrics.EmitDelivery(s.metrics, metrics.DeliveryMetric{
		Result:   result,
		Duration: elapsed,
		Err:      deliverErr,
	})

	if deliverErr == nil {
		s.complete(ctx, claimed)
		return
	}
	s.fail(ctx, claimed, deliverErr)
}

// deliver runs the transform and sink push for one claimed job and records
// the attempt in the push log.
func (s *WorkerService) deliver(ctx context.Context, claimed *model.ClaimedJob) error {
	transformed, err := s.transformer.Transform(claimed.Payload)
	if err != nil {
		// No sink call was made; log the attempt with a zero status so the
		// push log still shows one row per attempt.
		s.appendPushLog(ctx, claimed.Job.ID, 0, err.Error())
		return err
	}

	result, err := s.sink.Upsert(ctx, core.UpsertParams{
		Key:      transformed.Key,
		Document: transformed.Document,
		CachedID: s.cachedSinkID(ctx, claimed.ExternalKey),
	})

	if result != nil {
		s.appendPushLog(ctx, claimed.Job.ID, result.StatusCode, result.Body)
	} else {
		msg := "no response"
		if err != nil {
			msg = err.Error()
		}
		s.appendPushLog(ctx, claimed.Job.ID, 0, msg)
	}
	if err != nil {
		return err
	}

	s.storeSinkID(ctx, claimed.ExternalKey, result.SinkID)
	return nil
}

func (s *WorkerService) complete(ctx context.Context, claimed *model.ClaimedJob) {
	ok, err := s.jobs.Complete(ctx, claimed.Job.ID)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "complete job failed",
				"job_id", claimed.Job.ID, "error", err)
		}
		return
	}
	if !ok && s.logger != nil {
		// The reaper requeued the job mid-delivery. The sink write already
		// happened; the requeued attempt re-delivers the same document,
		// which the upsert absorbs.
		s.logger.WarnContext(ctx, "job was not in processing at completion",
			"job_id", claimed.Job.ID)
	}
}

func (s *WorkerService) fail(ctx context.Context, claimed *model.ClaimedJob, deliverErr error) {
	msg := deliverErr.Error()
	if apperrors.IsValidation(deliverErr) {
		msg = validationErrPrefix + msg
	}

	status, ok, err := s.jobs.Fail(ctx, claimed.Job.ID, msg)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "fail job failed",
				"job_id", claimed.Job.ID, "error", err)
		}
		return
	}
	if s.logger == nil {
		return
	}
	if !ok {
		s.logger.WarnContext(ctx, "job was not in processing at failure",
			"job_id", claimed.Job.ID)
		return
	}

	if status == model.JobStatusFailed {
		s.logger.ErrorContext(ctx, "job permanently failed",
			"job_id", claimed.Job.ID,
			"key", claimed.ExternalKey,
			"retry_count", claimed.Job.RetryCount+1,
			"error", deliverErr,
		)
		return
	}
	s.logger.WarnContext(ctx, "job delivery failed, requeued",
		"job_id", claimed.Job.ID,
		"key", claimed.ExternalKey,
		"retry_count", claimed.Job.RetryCount+1,
		"error", deliverErr,
	)
}

func (s *WorkerService) appendPushLog(ctx context.Context, jobID string, code int, body string) {
	err := s.pushLog.Append(ctx, data.AppendParams{
		JobID:        jobID,
		ResponseCode: code,
		ResponseBody: body,
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "append push log failed", "job_id", jobID, "error", err)
	}
}

func (s *WorkerService) cachedSinkID(ctx context.Context, externalKey string) string {
	if s.cache == nil {
		return ""
	}
	id, err := s.cache.Get(ctx, externalKey)
	if err != nil {
		if s.logger != nil {
			s.logger.DebugContext(ctx, "sink id cache read failed", "key", externalKey, "error", err)
		}
		return ""
	}
	return id
}

func (s *WorkerService) storeSinkID(ctx context.Context, externalKey, sinkID string) {
	if s.cache == nil || sinkID == "" {
		return
	}
	if err := s.cache.Set(ctx, externalKey, sinkID); err != nil && s.logger != nil {
		s.logger.DebugContext(ctx, "sink id cache write failed", "key", externalKey, "error", err)
	}
}
