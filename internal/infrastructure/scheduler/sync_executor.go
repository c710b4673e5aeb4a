package scheduler

import (
	"context"
	"fmt"

	"github.com/channelsync/backend/internal/application/detection"
	"github.com/channelsync/backend/internal/application/reconcile"
)

// SyncCycleExecutor runs detection followed by reconciliation. Detection
// appends pending change events; reconciliation drains them and applies the
// changes to the catalog and to the other marketplaces.
type SyncCycleExecutor struct {
	detector   *detection.Service
	reconciler *reconcile.Engine
}

// NewSyncCycleExecutor creates a new cycle executor
func NewSyncCycleExecutor(detector *detection.Service, reconciler *reconcile.Engine) *SyncCycleExecutor {
	return &SyncCycleExecutor{
		detector:   detector,
		reconciler: reconciler,
	}
}

// Execute runs one cycle and records the counts on the job.
// A partial detection failure still reconciles whatever was appended.
func (e *SyncCycleExecutor) Execute(ctx context.Context, job *SyncJob) error {
	var (
		detected  int
		deduped   int
		detectErr error
	)

	if job.Platform != nil {
		report, err := e.detector.Detect(ctx, *job.Platform)
		detectErr = err
		if report != nil {
			detected = report.EventsDetected
			deduped = report.EventsDeduped
		}
	} else {
		reports, err := e.detector.DetectAll(ctx)
		detectErr = err
		for _, report := range reports {
			detected += report.EventsDetected
			deduped += report.EventsDeduped
		}
	}

	summary, err := e.reconciler.Reconcile(ctx, job.Platform)
	if err != nil {
		if detectErr != nil {
			return fmt.Errorf("detect: %v; reconcile: %w", detectErr, err)
		}
		return fmt.Errorf("reconcile: %w", err)
	}

	job.Complete(detected, deduped, summary.Processed, summary.Applied, summary.Failed)

	if detectErr != nil {
		detectErr = fmt.Errorf("detect: %w", detectErr)
		job.MarkPartial(detectErr.Error())
		return detectErr
	}
	return nil
}

// Ensure SyncCycleExecutor implements SyncExecutor
var _ SyncExecutor = (*SyncCycleExecutor)(nil)
