package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	syncdomain "github.com/channelsync/backend/internal/domain/sync"
)

// ---------------------------------------------------------------------------
// SyncCronTriggerConfig
// ---------------------------------------------------------------------------

// SyncCronTriggerConfig holds configuration for the periodic sync trigger
type SyncCronTriggerConfig struct {
	// SyncInterval is how often a full cycle is queued
	SyncInterval time.Duration

	// PurgeEnabled turns on periodic event log cleanup
	PurgeEnabled bool

	// PurgeInterval is how often the purge runs
	PurgeInterval time.Duration

	// PurgeRetention is how long processed events are kept
	PurgeRetention time.Duration
}

// DefaultSyncCronTriggerConfig returns default configuration
func DefaultSyncCronTriggerConfig() SyncCronTriggerConfig {
	return SyncCronTriggerConfig{
		SyncInterval:   5 * time.Minute,
		PurgeEnabled:   true,
		PurgeInterval:  24 * time.Hour,
		PurgeRetention: 30 * 24 * time.Hour,
	}
}

// Validate validates the configuration
func (c *SyncCronTriggerConfig) Validate() error {
	if c.SyncInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.PurgeEnabled && (c.PurgeInterval <= 0 || c.PurgeRetention <= 0) {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncCronTrigger
// ---------------------------------------------------------------------------

// SyncCronTrigger queues a full sync cycle on a fixed interval and
// periodically purges processed events past their retention window.
type SyncCronTrigger struct {
	config    SyncCronTriggerConfig
	scheduler *SyncScheduler
	eventLog  syncdomain.EventLog
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSyncCronTrigger creates a new cron trigger
func NewSyncCronTrigger(
	config SyncCronTriggerConfig,
	scheduler *SyncScheduler,
	eventLog syncdomain.EventLog,
	logger *zap.Logger,
) (*SyncCronTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SyncCronTrigger{
		config:    config,
		scheduler: scheduler,
		eventLog:  eventLog,
		logger:    logger,
	}, nil
}

// Start starts the trigger loops
func (c *SyncCronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.syncLoop(ctx)

	if c.config.PurgeEnabled {
		c.wg.Add(1)
		go c.purgeLoop(ctx)
	}

	c.logger.Info("Sync cron trigger started",
		zap.Duration("sync_interval", c.config.SyncInterval),
		zap.Bool("purge_enabled", c.config.PurgeEnabled),
	)

	return nil
}

// Stop stops the trigger loops
func (c *SyncCronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Sync cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// syncLoop queues a full cycle on every tick.
// The first cycle runs immediately on start.
func (c *SyncCronTrigger) syncLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.SyncInterval)
	defer ticker.Stop()

	c.queueCycle()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.queueCycle()
		}
	}
}

// queueCycle submits a scheduled full-catalog sync job
func (c *SyncCronTrigger) queueCycle() {
	job, err := c.scheduler.ScheduleSync(nil, SyncJobTriggerScheduled)
	if err != nil {
		c.logger.Error("Failed to queue scheduled sync cycle", zap.Error(err))
		return
	}
	c.logger.Debug("Scheduled sync cycle queued",
		zap.String("job_id", job.ID.String()),
	)
}

// purgeLoop removes processed events past the retention window
func (c *SyncCronTrigger) purgeLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.purge(ctx)
		}
	}
}

// purge deletes processed events older than the retention cutoff
func (c *SyncCronTrigger) purge(ctx context.Context) {
	cutoff := time.Now().Add(-c.config.PurgeRetention)

	purged, err := c.eventLog.PurgeProcessedBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("Event log purge failed",
			zap.Time("cutoff", cutoff),
			zap.Error(err),
		)
		return
	}

	if purged > 0 {
		c.logger.Info("Event log purged",
			zap.Int64("events_purged", purged),
			zap.Time("cutoff", cutoff),
		)
	}
}
