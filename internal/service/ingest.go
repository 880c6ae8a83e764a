// Package service contains the pipeline's long-running loops and the
// business operations they drive.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/owt-mfg/erpsync/internal/canonicaljson"
	"github.com/owt-mfg/erpsync/internal/core"
	"github.com/owt-mfg/erpsync/internal/data"
	"github.com/owt-mfg/erpsync/internal/domain/model"
)

// CycleStats summarizes one fetch cycle.
type CycleStats struct {
	FromDate  time.Time `json:"from_date"`
	Fetched   int       `json:"fetched"`
	Stored    int       `json:"stored"`
	Queued    int       `json:"queued"`
	Unchanged int       `json:"unchanged"`
	Invalid   int       `json:"invalid"`
	StartedAt time.Time `json:"started_at"`
	Duration  float64   `json:"duration_seconds"`
}

// IngestServiceOptions groups dependencies for IngestService.
type IngestServiceOptions struct {
	ERP     core.ERPClient           // Required: upstream client
	Records core.RawRecordRepository // Required: landing table
	Jobs    core.SyncJobRepository   // Required: delivery queue
	Logger  *slog.Logger             // Optional: structured logger
	Time    data.TimeProvider        // Optional: time source
}

// IngestService runs one fetch cycle: pull the upstream window, land every
// record idempotently, and make sure changed records have a deliverable job.
type IngestService struct {
	erp     core.ERPClient
	records core.RawRecordRepository
	jobs    core.SyncJobRepository
	logger  *slog.Logger
	time    data.TimeProvider
}

// NewIngestService constructs a new IngestService.
func NewIngestService(opts IngestServiceOptions) (*IngestService, error) {
	if opts.ERP == nil {
		return nil, errors.New("ERPClient is required")
	}
	if opts.Records == nil {
		return nil, errors.New("RawRecordRepository is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("SyncJobRepository is required")
	}

	tp := opts.Time
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "ingest_service")
	}

	return &IngestService{
		erp:     opts.ERP,
		records: opts.Records,
		jobs:    opts.Jobs,
		logger:  logger,
		time:    tp,
	}, nil
}

// RunCycle fetches all records modified since fromDate and lands them. Rows
// without a complete business key are counted and skipped; storage errors
// abort the cycle (the next cycle re-fetches the same window, and Ingest
// makes re-landing harmless).
func (s *IngestService) RunCycle(ctx context.Context, fromDate time.Time) (*CycleStats, error) {
	start := s.time.Now()
	stats := &CycleStats{FromDate: fromDate, StartedAt: start.UTC()}

	rows, err := s.erp.FetchTransactions(ctx, fromDate)
	if err != nil {
		return stats, fmt.Errorf("fetch transactions: %w", err)
	}
	stats.Fetched = len(rows)

	for _, row := range rows {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if err := s.landRecord(ctx, row, stats); err != nil {
			return stats, err
		}
	}

	stats.Duration = s.time.Now().Sub(start).Seconds()
	if s.logger != nil {
		s.logger.InfoContext(ctx, "fetch cycle complete",
			"fetched", stats.Fetched,
			"stored", stats.Stored,
			"queued", stats.Queued,
			"unchanged", stats.Unchanged,
			"invalid", stats.Invalid,
			"duration_seconds", stats.Duration,
		)
	}
	return stats, nil
}

func (s *IngestService) landRecord(ctx context.Context, row map[string]any, stats *CycleStats) error {
	key, err := model.KeyFromPayload(row)
	if err != nil {
		stats.Invalid++
		if s.logger != nil {
			s.logger.WarnContext(ctx, "skipping record without business key", "error", err)
		}
		return nil
	}

	payload, err := json.Marshal(row)
	if err != nil {
		stats.Invalid++
		if s.logger != nil {
			s.logger.WarnContext(ctx, "skipping unencodable record", "key", key.String(), "error", err)
		}
		return nil
	}

	hash, err := canonicaljson.Hash(row)
	if err != nil {
		stats.Invalid++
		if s.logger != nil {
			s.logger.WarnContext(ctx, "skipping unhashable record", "key", key.String(), "error", err)
		}
		return nil
	}

	result, err := s.records.Ingest(ctx, data.IngestParams{
		ExternalKey: key.String(),
		Payload:     payload,
		PayloadHash: hash,
	})
	if err != nil {
		return fmt.Errorf("ingest %s: %w", key.String(), err)
	}

	if result.Changed {
		stats.Stored++
	} else {
		stats.Unchanged++
	}

	enqueued, err := s.jobs.EnsureJob(ctx, result.RecordID, result.Changed)
	if err != nil {
		return fmt.Errorf("ensure job for %s: %w", key.String(), err)
	}
	if enqueued {
		stats.Queued++
	}
	return nil
}
