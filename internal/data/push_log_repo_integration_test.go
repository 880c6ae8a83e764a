package data

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owt-mfg/erpsync/internal/testutil"
)

func TestPushLogAppend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := testutil.SetupTestDB(t)
	tp := NewFixedTimeProvider(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	records := NewRawRepo(db, RawRepoConfig{TimeProvider: tp})
	jobs := NewSyncJobRepo(db, SyncJobRepoConfig{TimeProvider: tp})
	pushLog := NewPushLogRepo(db, PushLogRepoConfig{TimeProvider: tp})
	ctx := context.Background()

	landed, err := records.Ingest(ctx, IngestParams{
		ExternalKey: "WO-1-1-A",
		Payload:     json.RawMessage(`{"key":"WO-1-1-A"}`),
		PayloadHash: "h1",
	})
	require.NoError(t, err)
	_, err = jobs.EnsureJob(ctx, landed.RecordID, true)
	require.NoError(t, err)
	claimed, err := jobs.ClaimNext(ctx)
	require.NoError(t, err)
	jobID := claimed.Job.ID

	t.Run("one row per attempt", func(t *testing.T) {
		require.NoError(t, pushLog.Append(ctx, AppendParams{
			JobID:        jobID,
			ResponseCode: 503,
			ResponseBody: "unavailable",
		}))
		require.NoError(t, pushLog.Append(ctx, AppendParams{
			JobID:        jobID,
			ResponseCode: 200,
			ResponseBody: `{"id":"pb1"}`,
		}))

		count, err := pushLog.CountForJob(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("oversized body truncated", func(t *testing.T) {
		require.NoError(t, pushLog.Append(ctx, AppendParams{
			JobID:        jobID,
			ResponseCode: 500,
			ResponseBody: strings.Repeat("x", 10000),
		}))

		var stored string
		err := db.QueryRowContext(ctx, `
			SELECT response_body FROM push_log
			WHERE job_id = $1 AND response_code = 500
		`, jobID).Scan(&stored)
		require.NoError(t, err)
		assert.Len(t, stored, 4096)
	})

	t.Run("empty job id rejected", func(t *testing.T) {
		assert.Error(t, pushLog.Append(ctx, AppendParams{ResponseCode: 200}))
	})
}
