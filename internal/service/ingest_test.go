package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owt-mfg/erpsync/internal/data"
	"github.com/owt-mfg/erpsync/internal/domain/model"
)

// fakeERPClient returns a canned window of rows.
type fakeERPClient struct {
	rows     []map[string]any
	err      error
	gotFrom  time.Time
	fetches  int
	fetchMu  chan struct{} // when non-nil, blocks the fetch until closed
	onFetch  func()
}

func (f *fakeERPClient) FetchTransactions(ctx context.Context, fromDate time.Time) ([]map[string]any, error) {
	f.fetches++
	f.gotFrom = fromDate
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.fetchMu != nil {
		select {
		case <-f.fetchMu:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.rows, f.err
}

// fakeRawRecords lands records in memory, reporting Changed per its script.
type fakeRawRecords struct {
	changed   map[string]bool // external key -> Changed result
	ingested  []data.IngestParams
	ingestErr error
}

func (f *fakeRawRecords) Ingest(ctx context.Context, p data.IngestParams) (*model.IngestResult, error) {
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	f.ingested = append(f.ingested, p)
	return &model.IngestResult{RecordID: "rec-" + p.ExternalKey, Changed: f.changed[p.ExternalKey]}, nil
}

func (f *fakeRawRecords) GetByKey(ctx context.Context, externalKey string) (*model.RawRecord, error) {
	return nil, data.ErrRecordNotFound
}

func (f *fakeRawRecords) GetByID(ctx context.Context, id string) (*model.RawRecord, error) {
	return nil, data.ErrRecordNotFound
}

// fakeJobQueue records EnsureJob calls.
type fakeJobQueue struct {
	ensured   map[string]bool // record id -> enqueued result
	ensureErr error
	calls     []string
}

func (f *fakeJobQueue) EnsureJob(ctx context.Context, recordID string, changed bool) (bool, error) {
	if f.ensureErr != nil {
		return false, f.ensureErr
	}
	f.calls = append(f.calls, recordID)
	return f.ensured[recordID], nil
}

func (f *fakeJobQueue) ClaimNext(ctx context.Context) (*model.ClaimedJob, error) {
	return nil, model.ErrNoJobsAvailable
}

func (f *fakeJobQueue) Complete(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (f *fakeJobQueue) Fail(ctx context.Context, id, errMsg string) (model.JobStatus, bool, error) {
	return model.JobStatusQueued, false, nil
}

func (f *fakeJobQueue) ResetStuck(ctx context.Context, olderThan time.Duration, limit int) (int64, error) {
	return 0, nil
}

func (f *fakeJobQueue) Stats(ctx context.Context) (*model.JobStats, error) {
	return &model.JobStats{}, nil
}

func validRow(orderID, lineNo, partID string) map[string]any {
	return map[string]any{
		"CUST_ORDER_ID":      orderID,
		"CUST_ORDER_LINE_NO": lineNo,
		"BOM_PART_ID":        partID,
		"QTY":                1,
	}
}

func TestRunCycleCounts(t *testing.T) {
	erp := &fakeERPClient{rows: []map[string]any{
		validRow("WO-1", "1", "A"),          // changed, enqueued
		validRow("WO-1", "2", "B"),          // unchanged, not enqueued
		{"CUST_ORDER_ID": "WO-2", "QTY": 1}, // missing key fields, skipped
	}}
	records := &fakeRawRecords{changed: map[string]bool{"WO-1-1-A": true}}
	jobs := &fakeJobQueue{ensured: map[string]bool{"rec-WO-1-1-A": true}}

	svc, err := NewIngestService(IngestServiceOptions{ERP: erp, Records: records, Jobs: jobs})
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	stats, err := svc.RunCycle(context.Background(), from)
	require.NoError(t, err)

	assert.Equal(t, from, stats.FromDate)
	assert.Equal(t, 3, stats.Fetched)
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, 1, stats.Invalid)
	assert.Equal(t, from, erp.gotFrom)

	// The invalid row never reached the landing table.
	require.Len(t, records.ingested, 2)
	assert.Equal(t, "WO-1-1-A", records.ingested[0].ExternalKey)
	assert.NotEmpty(t, records.ingested[0].PayloadHash)

	// EnsureJob runs for changed and unchanged rows alike; a terminal job
	// whose record did not change is simply left alone.
	assert.Equal(t, []string{"rec-WO-1-1-A", "rec-WO-1-2-B"}, jobs.calls)
}

func TestRunCycleFetchError(t *testing.T) {
	erp := &fakeERPClient{err: errors.New("upstream down")}
	svc, err := NewIngestService(IngestServiceOptions{
		ERP:     erp,
		Records: &fakeRawRecords{},
		Jobs:    &fakeJobQueue{},
	})
	require.NoError(t, err)

	stats, err := svc.RunCycle(context.Background(), time.Time{})
	require.Error(t, err)
	assert.Equal(t, 0, stats.Fetched)
}

func TestRunCycleStorageErrorAborts(t *testing.T) {
	erp := &fakeERPClient{rows: []map[string]any{validRow("WO-1", "1", "A")}}
	records := &fakeRawRecords{ingestErr: errors.New("db down")}
	svc, err := NewIngestService(IngestServiceOptions{
		ERP:     erp,
		Records: records,
		Jobs:    &fakeJobQueue{},
	})
	require.NoError(t, err)

	_, err = svc.RunCycle(context.Background(), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest WO-1-1-A")
}

func TestRunCycleHonorsCancellation(t *testing.T) {
	erp := &fakeERPClient{rows: []map[string]any{
		validRow("WO-1", "1", "A"),
		validRow("WO-1", "2", "B"),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc, err := NewIngestService(IngestServiceOptions{
		ERP:     erp,
		Records: &fakeRawRecords{},
		Jobs:    &fakeJobQueue{},
	})
	require.NoError(t, err)

	_, err = svc.RunCycle(ctx, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewIngestServiceRequiresDeps(t *testing.T) {
	_, err := NewIngestService(IngestServiceOptions{})
	assert.Error(t, err)
}
