package sync

import (
	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant for run-level notifications
const AggregateTypeSyncRun = "SyncRun"

// Event type constants for the observability push channel
const (
	EventTypeSyncRunStarted   = "SyncRunStarted"
	EventTypeSyncRunCompleted = "SyncRunCompleted"
	EventTypeSyncRunFailed    = "SyncRunFailed"
)

// SyncRunStartedEvent is published when a detection run starts for a platform
type SyncRunStartedEvent struct {
	shared.BaseDomainEvent
	Platform platform.Code `json:"platform"`
}

// NewSyncRunStartedEvent creates a new SyncRunStartedEvent
func NewSyncRunStartedEvent(runID uuid.UUID, code platform.Code) *SyncRunStartedEvent {
	return &SyncRunStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSyncRunStarted, AggregateTypeSyncRun, runID),
		Platform:        code,
	}
}

// SyncRunCompletedEvent is published when a detection run completes
type SyncRunCompletedEvent struct {
	shared.BaseDomainEvent
	Platform       platform.Code `json:"platform"`
	EventsDetected int           `json:"events_detected"`
	EventsDeduped  int           `json:"events_deduped"`
}

// NewSyncRunCompletedEvent creates a new SyncRunCompletedEvent
func NewSyncRunCompletedEvent(runID uuid.UUID, code platform.Code, detected, deduped int) *SyncRunCompletedEvent {
	return &SyncRunCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSyncRunCompleted, AggregateTypeSyncRun, runID),
		Platform:        code,
		EventsDetected:  detected,
		EventsDeduped:   deduped,
	}
}

// SyncRunFailedEvent is published when a detection run aborts
type SyncRunFailedEvent struct {
	shared.BaseDomainEvent
	Platform platform.Code `json:"platform"`
	Reason   string        `json:"reason"`
}

// NewSyncRunFailedEvent creates a new SyncRunFailedEvent
func NewSyncRunFailedEvent(runID uuid.UUID, code platform.Code, reason string) *SyncRunFailedEvent {
	return &SyncRunFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSyncRunFailed, AggregateTypeSyncRun, runID),
		Platform:        code,
		Reason:          reason,
	}
}
