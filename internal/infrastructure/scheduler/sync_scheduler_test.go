package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/platform"
)

// fakeExecutor records executed jobs and applies a canned result
type fakeExecutor struct {
	mu       sync.Mutex
	executed []*SyncJob
	err      error
	done     chan struct{}
}

func newFakeExecutor(capacity int) *fakeExecutor {
	return &fakeExecutor{done: make(chan struct{}, capacity)}
}

func (e *fakeExecutor) Execute(ctx context.Context, job *SyncJob) error {
	e.mu.Lock()
	e.executed = append(e.executed, job)
	err := e.err
	e.mu.Unlock()

	if err == nil {
		job.Complete(3, 1, 3, 2, 0)
	}

	e.done <- struct{}{}
	return err
}

func (e *fakeExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.executed)
}

func waitForExecution(t *testing.T, e *fakeExecutor) {
	t.Helper()
	select {
	case <-e.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job execution")
	}
}

func newTestScheduler(t *testing.T, executor SyncExecutor) *SyncScheduler {
	t.Helper()
	s, err := NewSyncScheduler(DefaultSyncSchedulerConfig(), executor, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSyncScheduler_ProcessesJobs(t *testing.T) {
	executor := newFakeExecutor(4)
	s := newTestScheduler(t, executor)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	queued, err := s.ScheduleSync(nil, SyncJobTriggerManual)
	require.NoError(t, err)
	assert.Equal(t, SyncJobStatusPending, queued.Status)
	waitForExecution(t, executor)

	assert.Equal(t, 1, executor.count())

	var done *SyncJob
	require.Eventually(t, func() bool {
		history := s.GetJobHistory(1)
		if len(history) == 0 {
			return false
		}
		done = history[0]
		return true
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, queued.ID, done.ID)
	assert.Equal(t, SyncJobStatusSuccess, done.Status)
	assert.Equal(t, 3, done.EventsDetected)
	assert.Equal(t, 2, done.EventsApplied)
	assert.NotNil(t, done.CompletedAt)
}

func TestSyncScheduler_FailedJob(t *testing.T) {
	executor := newFakeExecutor(4)
	executor.err = errors.New("marketplace unreachable")
	s := newTestScheduler(t, executor)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	code := platform.CodeEbay
	_, err := s.ScheduleSync(&code, SyncJobTriggerScheduled)
	require.NoError(t, err)
	waitForExecution(t, executor)

	var done *SyncJob
	require.Eventually(t, func() bool {
		history := s.GetJobHistory(1)
		if len(history) == 0 {
			return false
		}
		done = history[0]
		return true
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, SyncJobStatusFailed, done.Status)
	assert.Equal(t, "marketplace unreachable", done.Error)
}

// partialExecutor completes the job with counts, then reports a detect error
type partialExecutor struct {
	done chan struct{}
}

func (e *partialExecutor) Execute(ctx context.Context, job *SyncJob) error {
	job.Complete(2, 0, 2, 2, 0)
	err := errors.New("detect: etsy unreachable")
	job.MarkPartial(err.Error())
	e.done <- struct{}{}
	return err
}

func TestSyncScheduler_PartialCycleKeepsResults(t *testing.T) {
	executor := &partialExecutor{done: make(chan struct{}, 1)}
	s := newTestScheduler(t, executor)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	_, err := s.ScheduleSync(nil, SyncJobTriggerScheduled)
	require.NoError(t, err)

	select {
	case <-executor.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job execution")
	}

	var done *SyncJob
	require.Eventually(t, func() bool {
		history := s.GetJobHistory(1)
		if len(history) == 0 {
			return false
		}
		done = history[0]
		return true
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, SyncJobStatusPartial, done.Status)
	assert.Equal(t, "detect: etsy unreachable", done.Error)
	assert.Equal(t, 2, done.EventsApplied, "reconciled counts must survive the detect error")
	assert.NotNil(t, done.CompletedAt)
}

func TestSyncScheduler_SubmitDuringStop(t *testing.T) {
	executor := newFakeExecutor(64)
	s := newTestScheduler(t, executor)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if _, err := s.ScheduleSync(nil, SyncJobTriggerManual); err != nil {
					assert.ErrorIs(t, err, ErrSchedulerNotRunning)
					return
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Stop(ctx))
	wg.Wait()

	_, err := s.ScheduleSync(nil, SyncJobTriggerManual)
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestSyncScheduler_RejectsWhenStopped(t *testing.T) {
	s := newTestScheduler(t, newFakeExecutor(1))

	_, err := s.ScheduleSync(nil, SyncJobTriggerManual)

	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestSyncScheduler_History(t *testing.T) {
	executor := newFakeExecutor(8)
	s := newTestScheduler(t, executor)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	for i := 0; i < 3; i++ {
		_, err := s.ScheduleSync(nil, SyncJobTriggerManual)
		require.NoError(t, err)
		waitForExecution(t, executor)
	}

	// History writes happen right after the done signal; give them a beat.
	assert.Eventually(t, func() bool {
		return len(s.GetJobHistory(0)) == 3
	}, time.Second, 10*time.Millisecond)

	limited := s.GetJobHistory(2)
	assert.Len(t, limited, 2)
}

func TestSyncJob_Complete(t *testing.T) {
	t.Run("no failures is success", func(t *testing.T) {
		job := NewSyncJob(nil, SyncJobTriggerScheduled)
		job.Start()
		job.Complete(5, 1, 5, 4, 0)
		assert.Equal(t, SyncJobStatusSuccess, job.Status)
	})

	t.Run("mixed results is partial", func(t *testing.T) {
		job := NewSyncJob(nil, SyncJobTriggerScheduled)
		job.Start()
		job.Complete(5, 0, 5, 3, 2)
		assert.Equal(t, SyncJobStatusPartial, job.Status)
	})

	t.Run("nothing applied is failed", func(t *testing.T) {
		job := NewSyncJob(nil, SyncJobTriggerScheduled)
		job.Start()
		job.Complete(2, 0, 2, 0, 2)
		assert.Equal(t, SyncJobStatusFailed, job.Status)
	})
}

func TestSyncSchedulerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SyncSchedulerConfig)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *SyncSchedulerConfig) {}},
		{name: "zero workers", mutate: func(c *SyncSchedulerConfig) { c.MaxConcurrentJobs = 0 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *SyncSchedulerConfig) { c.JobTimeout = 0 }, wantErr: true},
		{name: "zero history", mutate: func(c *SyncSchedulerConfig) { c.HistorySize = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSyncSchedulerConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
