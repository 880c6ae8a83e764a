package model

import (
	"encoding/json"
	"errors"
	"time"
)

// JobStatus represents the current status of a sync job.
type JobStatus string

const (
	// JobStatusQueued indicates a job is waiting to be claimed.
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing indicates a job is currently being delivered.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusDone indicates a job has been delivered successfully.
	JobStatusDone JobStatus = "done"
	// JobStatusFailed indicates a job has exhausted its delivery attempts.
	JobStatusFailed JobStatus = "failed"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusProcessing ||
		s == JobStatusDone || s == JobStatusFailed
}

// ErrNoJobsAvailable is returned when no eligible queued job exists.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Job is one delivery work item. Exactly one job exists per raw record; a
// terminal job is reopened in place when the record's payload changes.
type Job struct {
	ID            string     `json:"id"                        db:"id"`
	RecordID      string     `json:"record_id"                 db:"record_id"`
	Status        JobStatus  `json:"status"                    db:"status"`
	RetryCount    int        `json:"retry_count"               db:"retry_count"`
	LastError     *string    `json:"last_error,omitempty"      db:"last_error"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	NextAttemptAt time.Time  `json:"next_attempt_at"           db:"next_attempt_at"`
	CreatedAt     time.Time  `json:"created_at"                db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"                db:"updated_at"`
}

// ClaimedJob is a job freshly transitioned to processing, paired with the
// current payload of its record. The payload is read at claim time so a
// re-ingested record is always delivered in its latest shape.
type ClaimedJob struct {
	Job         Job
	ExternalKey string
	Payload     json.RawMessage
}

// JobStats represents counts of jobs in each state.
type JobStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}
