package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/owt-mfg/erpsync/internal/data"
	"github.com/owt-mfg/erpsync/internal/domain/model"
)

// This file contains repository and client interface definitions (ports in
// hexagonal architecture). These interfaces define the contracts between the
// service layer and the data/transport layers. Service implementations
// should depend on these interfaces, not concrete implementations.

// RawRecordRepository defines the interface for the raw landing table.
type RawRecordRepository interface {
	Ingest(ctx context.Context, p data.IngestParams) (*model.IngestResult, error)
	GetByKey(ctx context.Context, externalKey string) (*model.RawRecord, error)
	GetByID(ctx context.Context, id string) (*model.RawRecord, error)
}

// SyncJobRepository defines the interface for delivery queue operations.
type SyncJobRepository interface {
	EnsureJob(ctx context.Context, recordID string, changed bool) (bool, error)
	ClaimNext(ctx context.Context) (*model.ClaimedJob, error)
	Complete(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, id, errMsg string) (model.JobStatus, bool, error)
	ResetStuck(ctx context.Context, olderThan time.Duration, limit int) (int64, error)
	Stats(ctx context.Context) (*model.JobStats, error)
}

// PushLogRepository defines the interface for the delivery attempt log.
type PushLogRepository interface {
	Append(ctx context.Context, p data.AppendParams) error
}

// ERPClient fetches transaction rows from the upstream ERP API.
type ERPClient interface {
	FetchTransactions(ctx context.Context, fromDate time.Time) ([]map[string]any, error)
}

// PushResult describes the sink's response to an upsert.
type PushResult struct {
	// StatusCode is the HTTP status of the final sink call.
	StatusCode int
	// Body is the (possibly truncated) response body of the final sink call.
	Body string
	// SinkID is the sink-side record ID that was created or updated.
	SinkID string
	// Created is true when a new sink record was created rather than updated.
	Created bool
}

// UpsertParams groups the inputs to SinkClient.Upsert.
type UpsertParams struct {
	Key      model.BusinessKey
	Document json.RawMessage
	// CachedID, when non-empty, is tried as the sink record ID before
	// falling back to a lookup by key.
	CachedID string
}

// SinkClient writes transformed documents to the downstream system.
type SinkClient interface {
	Upsert(ctx context.Context, p UpsertParams) (*PushResult, error)
}

// SinkIDCache maps business keys to sink record IDs.
type SinkIDCache interface {
	Get(ctx context.Context, externalKey string) (string, error)
	Set(ctx context.Context, externalKey, sinkID string) error
	Delete(ctx context.Context, externalKey string) error
}
