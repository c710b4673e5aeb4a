package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/platform"
)

// ---------------------------------------------------------------------------
// Sync Job Types
// ---------------------------------------------------------------------------

// SyncJobStatus represents the status of a sync job
type SyncJobStatus string

const (
	SyncJobStatusPending SyncJobStatus = "PENDING"
	SyncJobStatusRunning SyncJobStatus = "RUNNING"
	SyncJobStatusSuccess SyncJobStatus = "SUCCESS"
	SyncJobStatusPartial SyncJobStatus = "PARTIAL"
	SyncJobStatusFailed  SyncJobStatus = "FAILED"
)

// SyncJobTrigger records what started a job
type SyncJobTrigger string

const (
	SyncJobTriggerScheduled SyncJobTrigger = "SCHEDULED"
	SyncJobTriggerManual    SyncJobTrigger = "MANUAL"
)

// SyncJob represents one detection-and-reconciliation cycle.
// A nil Platform means the cycle covers every registered marketplace.
type SyncJob struct {
	ID          uuid.UUID
	Platform    *platform.Code
	Trigger     SyncJobTrigger
	Status      SyncJobStatus
	Error       string
	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Cycle results
	EventsDetected  int
	EventsDeduped   int
	EventsProcessed int
	EventsApplied   int
	EventsFailed    int
}

// NewSyncJob creates a new sync job
func NewSyncJob(code *platform.Code, trigger SyncJobTrigger) *SyncJob {
	return &SyncJob{
		ID:          uuid.New(),
		Platform:    code,
		Trigger:     trigger,
		Status:      SyncJobStatusPending,
		SubmittedAt: time.Now(),
	}
}

// Start marks the job as running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = SyncJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as finished, deriving the status from the counts
func (j *SyncJob) Complete(detected, deduped, processed, applied, failed int) {
	now := time.Now()
	j.EventsDetected = detected
	j.EventsDeduped = deduped
	j.EventsProcessed = processed
	j.EventsApplied = applied
	j.EventsFailed = failed
	j.CompletedAt = &now

	if failed == 0 {
		j.Status = SyncJobStatusSuccess
	} else if applied > 0 {
		j.Status = SyncJobStatusPartial
	} else {
		j.Status = SyncJobStatusFailed
	}
}

// Fail marks the job as failed
func (j *SyncJob) Fail(err string) {
	now := time.Now()
	j.Status = SyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// MarkPartial records an error on a completed job without discarding its
// counts or completion time
func (j *SyncJob) MarkPartial(err string) {
	j.Status = SyncJobStatusPartial
	j.Error = err
}

// PlatformLabel returns a loggable platform name
func (j *SyncJob) PlatformLabel() string {
	if j.Platform == nil {
		return "all"
	}
	return j.Platform.String()
}

// ---------------------------------------------------------------------------
// SyncExecutor Interface
// ---------------------------------------------------------------------------

// SyncExecutor runs one detection-and-reconciliation cycle
type SyncExecutor interface {
	// Execute runs the cycle and fills in the job's result counts
	Execute(ctx context.Context, job *SyncJob) error
}

// ---------------------------------------------------------------------------
// SyncSchedulerConfig
// ---------------------------------------------------------------------------

// SyncSchedulerConfig holds configuration for the sync scheduler
type SyncSchedulerConfig struct {
	// MaxConcurrentJobs is the maximum number of concurrently running cycles
	MaxConcurrentJobs int
	// JobTimeout is the maximum time one cycle can run
	JobTimeout time.Duration
	// HistorySize bounds the in-memory job history
	HistorySize int
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		MaxConcurrentJobs: 2,
		JobTimeout:        10 * time.Minute,
		HistorySize:       50,
	}
}

// Validate validates the configuration
func (c *SyncSchedulerConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.HistorySize <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// SyncScheduler manages queued sync cycles with a bounded worker pool
type SyncScheduler struct {
	config   SyncSchedulerConfig
	executor SyncExecutor
	logger   *zap.Logger

	jobs      chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Job history for monitoring (in-memory, limited size)
	historyMu sync.RWMutex
	history   []*SyncJob
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, executor SyncExecutor, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SyncScheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *SyncJob, 100),
		history:  make([]*SyncJob, 0, config.HistorySize),
	}, nil
}

// Start starts the scheduler
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	// The queue closes under the same lock that guards submissions, so a
	// concurrent SubmitJob can never send on a closed channel.
	close(s.jobs)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob submits a job for execution
func (s *SyncScheduler) SubmitJob(job *SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("platform", job.PlatformLabel()),
			zap.String("trigger", string(job.Trigger)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// ScheduleSync queues a cycle for one platform, or all platforms when code is
// nil. The returned job is a snapshot of the queued state; results land in the
// job history once the cycle finishes.
func (s *SyncScheduler) ScheduleSync(code *platform.Code, trigger SyncJobTrigger) (*SyncJob, error) {
	job := NewSyncJob(code, trigger)
	snapshot := *job
	if err := s.SubmitJob(job); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// worker processes jobs from the queue
func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Sync worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sync worker stopping", zap.Int("worker_id", workerID))
			return
		case job, ok := <-s.jobs:
			if !ok {
				s.logger.Debug("Sync job channel closed", zap.Int("worker_id", workerID))
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *SyncScheduler) processJob(ctx context.Context, job *SyncJob, workerID int) {
	job.Start()
	s.logger.Info("Processing sync job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("platform", job.PlatformLabel()),
		zap.String("trigger", string(job.Trigger)),
	)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	if err := s.executor.Execute(jobCtx, job); err != nil {
		// A job the executor already completed keeps its recorded result;
		// the error then describes a partial cycle, not a failed one.
		if job.CompletedAt == nil {
			job.Fail(err.Error())
		}
		s.logger.Error("Sync job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("platform", job.PlatformLabel()),
			zap.Error(err),
		)
		s.addToHistory(job)
		return
	}

	s.logger.Info("Sync job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("platform", job.PlatformLabel()),
		zap.String("status", string(job.Status)),
		zap.Int("events_detected", job.EventsDetected),
		zap.Int("events_deduped", job.EventsDeduped),
		zap.Int("events_processed", job.EventsProcessed),
		zap.Int("events_applied", job.EventsApplied),
		zap.Int("events_failed", job.EventsFailed),
	)

	s.addToHistory(job)
}

// addToHistory adds a completed job to history
func (s *SyncScheduler) addToHistory(job *SyncJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*SyncJob{job}, s.history...)

	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}

// GetJobHistory returns recent job history, newest first
func (s *SyncScheduler) GetJobHistory(limit int) []*SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}

	result := make([]*SyncJob, limit)
	copy(result, s.history[:limit])
	return result
}
