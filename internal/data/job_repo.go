package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/owt-mfg/erpsync/internal/data/pgxutil"
	"github.com/owt-mfg/erpsync/internal/domain/model"
	"github.com/owt-mfg/erpsync/internal/domain/retry"
)

// ErrJobNotFound is returned when a sync job is not found.
var ErrJobNotFound = errors.New("sync job not found")

// SyncJobRepoConfig holds configuration options for the sync job repository.
type SyncJobRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
	RetryPolicy  *retry.Policy
}

// SyncJobRepo provides database operations for the delivery queue. State
// transitions live in SQL so that concurrent workers and the reaper observe
// a consistent machine: queued → processing → done | queued | failed.
type SyncJobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
	policy       *retry.Policy
}

// NewSyncJobRepo creates a new SyncJobRepo instance with the given database connection and configuration.
func NewSyncJobRepo(db *sql.DB, cfg SyncJobRepoConfig) *SyncJobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	policy := cfg.RetryPolicy
	if policy == nil {
		policy = retry.Default()
	}

	return &SyncJobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
		policy:       policy,
	}
}

const jobColumns = `
  id,
  record_id,
  status,
  retry_count,
  last_error,
  last_attempt_at,
  next_attempt_at,
  created_at,
  updated_at
`

// SQL used by ClaimNext to atomically claim the oldest eligible job.
const claimNextUpdateSQL = `
  WITH cte AS (
    SELECT j.id FROM sync_jobs j
    WHERE j.status = 'queued' AND j.next_attempt_at <= $1
    ORDER BY j.created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE sync_jobs j
  SET
    status = 'processing',
    last_attempt_at = $1,
    updated_at = $1
  FROM cte, raw_records r
  WHERE j.id = cte.id AND r.id = j.record_id
  RETURNING j.id, j.record_id, j.status, j.retry_count, j.last_error, j.last_attempt_at, j.next_attempt_at, j.created_at, j.updated_at, r.external_key, r.payload`

// EnsureJob guarantees a deliverable job exists for the record.
//
//   - no job yet: insert one in queued
//   - terminal job (done or failed) and the record changed: reopen it in
//     place as queued with retry_count reset to 0
//   - job already queued or processing: leave it alone; the worker reads the
//     payload at claim time, so the pending job delivers the new data
//
// Returns true when a job was created or reopened.
func (r *SyncJobRepo) EnsureJob(ctx context.Context, recordID string, changed bool) (bool, error) {
	if recordID == "" {
		return false, errors.New("record id is required")
	}

	now := r.timeProvider.Now().UTC()
	var id string
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO sync_jobs (record_id, status, retry_count, next_attempt_at, created_at, updated_at)
		VALUES ($1, 'queued', 0, $2, $2, $2)
		ON CONFLICT (record_id) DO UPDATE
		SET status = 'queued',
		    retry_count = 0,
		    last_error = NULL,
		    next_attempt_at = $2,
		    updated_at = $2
		WHERE sync_jobs.status IN ('done', 'failed') AND $3
		RETURNING id
	`, recordID, now, changed).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict row exists and the WHERE clause declined the update.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ensure job: %w", err)
	}
	return true, nil
}

// ClaimNext atomically claims the oldest queued job whose next_attempt_at has
// passed and returns it with its record's current payload. Concurrent callers
// never claim the same job; returns model.ErrNoJobsAvailable when the queue
// is empty.
func (r *SyncJobRepo) ClaimNext(ctx context.Context) (*model.ClaimedJob, error) {
	var claimed *model.ClaimedJob
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			now := r.timeProvider.Now().UTC()
			rows, qerr := tx.Query(ctx, claimNextUpdateSQL, now)
			if qerr != nil {
				return fmt.Errorf("claim job: %w", qerr)
			}
			defer rows.Close()

			c, cerr := collectClaimedFromRows(rows)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if cerr != nil {
				return fmt.Errorf("claim job: %w", cerr)
			}
			claimed = c
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, model.ErrNoJobsAvailable
		}
		return nil, err
	}
	return claimed, nil
}

// Complete marks a processing job as done. Returns false when the job was not
// in processing (reaped or already resolved by another actor).
func (r *SyncJobRepo) Complete(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE sync_jobs
		SET status = 'done',
		    last_error = NULL,
		    updated_at = $2
		WHERE id = $1 AND status = 'processing'
	`, id, now)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Fail records a delivery failure on a processing job. The retry count is
// incremented; at the attempt limit the job lands in failed permanently,
// otherwise it returns to queued with next_attempt_at pushed out by the
// linear backoff schedule. Returns the resulting status and whether the job
// was in processing.
func (r *SyncJobRepo) Fail(ctx context.Context, id, errMsg string) (model.JobStatus, bool, error) {
	now := r.timeProvider.Now().UTC()

	// The delay depends on the post-increment retry count, which SQL knows
	// and Go does not. Passing the step lets the UPDATE compute it in one
	// statement instead of a read-modify-write.
	query := `
		UPDATE sync_jobs
		SET
		  last_error = $2,
		  retry_count = retry_count + 1,
		  status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'queued' END,
		  next_attempt_at = CASE WHEN retry_count + 1 >= $3 THEN next_attempt_at
		                         ELSE $4::timestamptz + (retry_count + 1) * make_interval(secs => $5) END,
		  updated_at = $4
		WHERE id = $1 AND status = 'processing'
		RETURNING status
	`

	var status model.JobStatus
	err := r.DB.QueryRowContext(
		ctx, query,
		id, errMsg, r.policy.MaxAttempts(), now, r.policy.Step().Seconds(),
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("fail job: %w", err)
	}
	return status, true, nil
}

// ResetStuck requeues processing jobs whose last attempt started before the
// cutoff. The retry count is left untouched; a reaped job was interrupted,
// not refused. Returns the number of jobs requeued.
func (r *SyncJobRepo) ResetStuck(ctx context.Context, olderThan time.Duration, limit int) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be positive")
	}
	if limit <= 0 {
		return 0, errors.New("limit must be positive")
	}

	now := r.timeProvider.Now().UTC()
	cutoff := now.Add(-olderThan)

	res, err := r.DB.ExecContext(ctx, `
		UPDATE sync_jobs
		SET status = 'queued',
		    next_attempt_at = $2,
		    updated_at = $2
		WHERE id IN (
		  SELECT id FROM sync_jobs
		  WHERE status = 'processing'
		    AND last_attempt_at IS NOT NULL
		    AND last_attempt_at < $1
		  ORDER BY last_attempt_at ASC
		  LIMIT $3
		  FOR UPDATE SKIP LOCKED
		)
	`, cutoff, now, limit)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stuck rows affected: %w", err)
	}
	return rowsAffected, nil
}

// Stats returns counts of jobs in each state.
func (r *SyncJobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'queued')     AS queued,
    count(*) FILTER (WHERE status = 'processing') AS processing,
    count(*) FILTER (WHERE status = 'done')       AS done,
    count(*) FILTER (WHERE status = 'failed')     AS failed
  FROM sync_jobs
  `).Scan(
		&s.Queued,
		&s.Processing,
		&s.Done,
		&s.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return &s, nil
}

// GetByID retrieves a sync job by its ID.
func (r *SyncJobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM sync_jobs
		WHERE id = $1
	`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func collectClaimedFromRows(rows pgx.Rows) (*model.ClaimedJob, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	claimed := &model.ClaimedJob{}
	var lastError sql.NullString
	var lastAttemptAt sql.NullTime
	var payload []byte
	if err := rows.Scan(
		&claimed.Job.ID,
		&claimed.Job.RecordID,
		&claimed.Job.Status,
		&claimed.Job.RetryCount,
		&lastError,
		&lastAttemptAt,
		&claimed.Job.NextAttemptAt,
		&claimed.Job.CreatedAt,
		&claimed.Job.UpdatedAt,
		&claimed.ExternalKey,
		&payload,
	); err != nil {
		return nil, err
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	claimed.Job.LastError = cloneNullableString(lastError)
	claimed.Job.LastAttemptAt = cloneNullableTime(lastAttemptAt)
	claimed.Payload = append(json.RawMessage(nil), payload...)
	return claimed, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var lastError sql.NullString
	var lastAttemptAt sql.NullTime
	if err := scanner.Scan(
		&job.ID,
		&job.RecordID,
		&job.Status,
		&job.RetryCount,
		&lastError,
		&lastAttemptAt,
		&job.NextAttemptAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.LastError = cloneNullableString(lastError)
	job.LastAttemptAt = cloneNullableTime(lastAttemptAt)
	return job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
