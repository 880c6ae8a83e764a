package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owt-mfg/erpsync/internal/domain/model"
	"github.com/owt-mfg/erpsync/internal/service"
)

// mockFetcher scripts the control surface behaviour.
type mockFetcher struct {
	stats      *service.CycleStats
	triggerErr error
	gotOverride *time.Time

	status service.FetcherStatus

	stopResult bool
	stopErr    error
}

func (m *mockFetcher) TriggerNow(ctx context.Context, override *time.Time) (*service.CycleStats, error) {
	m.gotOverride = override
	return m.stats, m.triggerErr
}

func (m *mockFetcher) Status() service.FetcherStatus {
	return m.status
}

func (m *mockFetcher) Stop() (bool, error) {
	return m.stopResult, m.stopErr
}

// mockJobStats returns canned queue counts.
type mockJobStats struct {
	stats *model.JobStats
	err   error
}

func (m *mockJobStats) Stats(ctx context.Context) (*model.JobStats, error) {
	return m.stats, m.err
}

func newTestRouter(fetcher *mockFetcher, jobs *mockJobStats, apiKey string) http.Handler {
	return NewRouter(RouterServices{
		Fetcher: fetcher,
		Jobs:    jobs,
		APIKey:  apiKey,
		Logger:  slog.New(slog.DiscardHandler),
	})
}

func doRequest(router http.Handler, method, path, apiKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if apiKey != "" {
		req.Header.Set("Authorization", apiKey)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTriggerEndpoint(t *testing.T) {
	fetcher := &mockFetcher{stats: &service.CycleStats{Fetched: 3, Stored: 2, Queued: 2}}
	router := newTestRouter(fetcher, &mockJobStats{}, "secret")

	rec := doRequest(router, http.MethodPost, "/api/sync/trigger", "secret", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats service.CycleStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Fetched)
	assert.Nil(t, fetcher.gotOverride)
}

func TestTriggerWithFromDate(t *testing.T) {
	fetcher := &mockFetcher{stats: &service.CycleStats{}}
	router := newTestRouter(fetcher, &mockJobStats{}, "secret")

	rec := doRequest(router, http.MethodPost, "/api/sync/trigger", "secret", `{"from_date":"2026-02-01"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, fetcher.gotOverride)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *fetcher.gotOverride)
}

func TestTriggerRejectsBadFromDate(t *testing.T) {
	router := newTestRouter(&mockFetcher{}, &mockJobStats{}, "secret")

	rec := doRequest(router, http.MethodPost, "/api/sync/trigger", "secret", `{"from_date":"02/01/2026"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_from_date")
}

func TestTriggerFailurePropagates(t *testing.T) {
	fetcher := &mockFetcher{triggerErr: errors.New("upstream down")}
	router := newTestRouter(fetcher, &mockJobStats{}, "secret")

	rec := doRequest(router, http.MethodPost, "/api/sync/trigger", "secret", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "sync_failed")
}

func TestStatusEndpoint(t *testing.T) {
	fetcher := &mockFetcher{status: service.FetcherStatus{SchedulerRunning: true}}
	router := newTestRouter(fetcher, &mockJobStats{}, "secret")

	rec := doRequest(router, http.MethodGet, "/api/sync/status", "secret", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status service.FetcherStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.SchedulerRunning)
}

func TestStopEndpoint(t *testing.T) {
	t.Run("stops scheduler", func(t *testing.T) {
		router := newTestRouter(&mockFetcher{stopResult: true}, &mockJobStats{}, "secret")
		rec := doRequest(router, http.MethodPost, "/api/sync/stop", "secret", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"stopped":true`)
	})

	t.Run("already stopped", func(t *testing.T) {
		router := newTestRouter(&mockFetcher{stopResult: false}, &mockJobStats{}, "secret")
		rec := doRequest(router, http.MethodPost, "/api/sync/stop", "secret", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "already stopped")
	})

	t.Run("fetch in progress", func(t *testing.T) {
		router := newTestRouter(&mockFetcher{stopErr: service.ErrFetchInProgress}, &mockJobStats{}, "secret")
		rec := doRequest(router, http.MethodPost, "/api/sync/stop", "secret", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "fetch_in_progress")
	})
}

func TestJobStatsEndpoint(t *testing.T) {
	jobs := &mockJobStats{stats: &model.JobStats{Queued: 4, Done: 10, Failed: 1}}
	router := newTestRouter(&mockFetcher{}, jobs, "secret")

	rec := doRequest(router, http.MethodGet, "/api/jobs/stats", "secret", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats model.JobStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.Queued)
	assert.Equal(t, 1, stats.Failed)
}

func TestJobStatsFailure(t *testing.T) {
	jobs := &mockJobStats{err: errors.New("db down")}
	router := newTestRouter(&mockFetcher{}, jobs, "secret")

	rec := doRequest(router, http.MethodGet, "/api/jobs/stats", "secret", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	router := newTestRouter(&mockFetcher{}, &mockJobStats{}, "secret")

	rec := doRequest(router, http.MethodGet, "/api/sync/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/sync/status", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEmptyAPIKeyDisablesAuth(t *testing.T) {
	router := newTestRouter(&mockFetcher{}, &mockJobStats{stats: &model.JobStats{}}, "")

	rec := doRequest(router, http.MethodGet, "/api/jobs/stats", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzOpen(t *testing.T) {
	router := newTestRouter(&mockFetcher{}, &mockJobStats{}, "secret")

	rec := doRequest(router, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestIDEchoed(t *testing.T) {
	router := newTestRouter(&mockFetcher{}, &mockJobStats{}, "secret")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))

	// A missing ID is generated.
	rec = doRequest(router, http.MethodGet, "/healthz", "", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
