package detection

import (
	"context"

	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/shared"
	syncdomain "github.com/channelsync/backend/internal/domain/sync"
)

// SyncRunAuditHandler subscribes to run lifecycle events and writes the
// audit trail of detection cycles to the log. Operators tail this to watch
// sync health without polling the jobs endpoint.
type SyncRunAuditHandler struct {
	logger *zap.Logger
}

// NewSyncRunAuditHandler creates a new audit handler for sync run events
func NewSyncRunAuditHandler(logger *zap.Logger) *SyncRunAuditHandler {
	return &SyncRunAuditHandler{logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *SyncRunAuditHandler) EventTypes() []string {
	return []string{
		syncdomain.EventTypeSyncRunStarted,
		syncdomain.EventTypeSyncRunCompleted,
		syncdomain.EventTypeSyncRunFailed,
	}
}

// Handle processes a sync run lifecycle event
func (h *SyncRunAuditHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *syncdomain.SyncRunStartedEvent:
		h.logger.Info("Detection run started",
			zap.String("run_id", e.AggregateID().String()),
			zap.String("platform", e.Platform.String()),
		)
	case *syncdomain.SyncRunCompletedEvent:
		h.logger.Info("Detection run completed",
			zap.String("run_id", e.AggregateID().String()),
			zap.String("platform", e.Platform.String()),
			zap.Int("events_detected", e.EventsDetected),
			zap.Int("events_deduped", e.EventsDeduped),
		)
	case *syncdomain.SyncRunFailedEvent:
		h.logger.Warn("Detection run failed",
			zap.String("run_id", e.AggregateID().String()),
			zap.String("platform", e.Platform.String()),
			zap.String("reason", e.Reason),
		)
	default:
		h.logger.Debug("Ignoring unexpected event type",
			zap.String("event_type", event.EventType()),
		)
	}
	return nil
}

var _ shared.EventHandler = (*SyncRunAuditHandler)(nil)
