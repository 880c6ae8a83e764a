package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owt-mfg/erpsync/config"
	"github.com/owt-mfg/erpsync/internal/domain/model"
)

// mockReaperJobs scripts successive ResetStuck batch counts.
type mockReaperJobs struct {
	batches      []int64
	resetErr     error
	calls        int
	gotOlderThan time.Duration
	gotLimit     int
}

func (m *mockReaperJobs) ResetStuck(ctx context.Context, olderThan time.Duration, limit int) (int64, error) {
	m.gotOlderThan = olderThan
	m.gotLimit = limit
	if m.resetErr != nil {
		return 0, m.resetErr
	}
	if m.calls >= len(m.batches) {
		return 0, nil
	}
	count := m.batches[m.calls]
	m.calls++
	return count, nil
}

func (m *mockReaperJobs) EnsureJob(ctx context.Context, recordID string, changed bool) (bool, error) {
	return false, nil
}

func (m *mockReaperJobs) ClaimNext(ctx context.Context) (*model.ClaimedJob, error) {
	return nil, model.ErrNoJobsAvailable
}

func (m *mockReaperJobs) Complete(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (m *mockReaperJobs) Fail(ctx context.Context, id, errMsg string) (model.JobStatus, bool, error) {
	return model.JobStatusQueued, false, nil
}

func (m *mockReaperJobs) Stats(ctx context.Context) (*model.JobStats, error) {
	return &model.JobStats{}, nil
}

func reaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:     5 * time.Minute,
		StuckTimeout: 10 * time.Minute,
		BatchSize:    1000,
	}
}

func TestSweepDrainsBatches(t *testing.T) {
	jobs := &mockReaperJobs{batches: []int64{1000, 1000, 37}}
	svc, err := NewReaperService(ReaperServiceOptions{Jobs: jobs, Config: reaperConfig()})
	require.NoError(t, err)

	total, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2037), total)
	// All three scripted batches were consumed before the empty probe.
	assert.Equal(t, 3, jobs.calls)
	assert.Equal(t, 10*time.Minute, jobs.gotOlderThan)
	assert.Equal(t, 1000, jobs.gotLimit)
}

func TestSweepNothingStuck(t *testing.T) {
	jobs := &mockReaperJobs{}
	svc, err := NewReaperService(ReaperServiceOptions{Jobs: jobs, Config: reaperConfig()})
	require.NoError(t, err)

	total, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSweepPropagatesError(t *testing.T) {
	jobs := &mockReaperJobs{resetErr: errors.New("db down")}
	svc, err := NewReaperService(ReaperServiceOptions{Jobs: jobs, Config: reaperConfig()})
	require.NoError(t, err)

	_, err = svc.Sweep(context.Background())
	assert.Error(t, err)
}

func TestNewReaperServiceRequiresJobs(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{Config: reaperConfig()})
	assert.Error(t, err)
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	cfg := reaperConfig()
	cfg.Interval = time.Minute
	svc, err := NewReaperService(ReaperServiceOptions{Jobs: &mockReaperJobs{}, Config: cfg})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("reaper did not stop on cancel")
	}
}
