package model

import "time"

// PushLogEntry records one delivery attempt against the sink. Entries are
// append-only and written exclusively by the worker; nothing in the pipeline
// reads them back.
type PushLogEntry struct {
	ID           int64     `json:"id"            db:"id"`
	JobID        string    `json:"job_id"        db:"job_id"`
	ResponseCode int       `json:"response_code" db:"response_code"`
	ResponseBody string    `json:"response_body" db:"response_body"`
	SentAt       time.Time `json:"sent_at"       db:"sent_at"`
}
