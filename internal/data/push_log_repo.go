package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// maxResponseBodyBytes caps the stored sink response body. Bodies are kept
// for operator forensics, not replay, so a prefix is enough.
const maxResponseBodyBytes = 4096

// PushLogRepoConfig holds configuration options for the push log repository.
type PushLogRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// PushLogRepo provides append-only persistence of sink delivery attempts.
type PushLogRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewPushLogRepo creates a new PushLogRepo instance with the given database connection and configuration.
func NewPushLogRepo(db *sql.DB, cfg PushLogRepoConfig) *PushLogRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &PushLogRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

// AppendParams groups the inputs to Append.
type AppendParams struct {
	JobID        string
	ResponseCode int
	ResponseBody string
}

// Append records one delivery attempt. The response body is truncated to
// 4 KB before storage.
func (r *PushLogRepo) Append(ctx context.Context, p AppendParams) error {
	if p.JobID == "" {
		return errors.New("job id is required")
	}

	body := p.ResponseBody
	if len(body) > maxResponseBodyBytes {
		body = body[:maxResponseBodyBytes]
	}

	now := r.timeProvider.Now().UTC()
	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO push_log (job_id, response_code, response_body, sent_at)
		VALUES ($1, $2, $3, $4)
	`, p.JobID, p.ResponseCode, body, now); err != nil {
		return fmt.Errorf("append push log: %w", err)
	}
	return nil
}

// CountForJob returns the number of logged attempts for a job.
func (r *PushLogRepo) CountForJob(ctx context.Context, jobID string) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT count(*) FROM push_log WHERE job_id = $1
	`, jobID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count push log: %w", err)
	}
	return n, nil
}
