package sync

import (
	"context"
	"time"

	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/google/uuid"
)

// EventFilter defines filter criteria for querying the event log
type EventFilter struct {
	// Platform filters by marketplace (optional)
	Platform *platform.Code
	// Status filters by processing status (optional)
	Status *EventStatus
	// ChangeType filters by change type (optional)
	ChangeType *ChangeType
	// Since filters events detected from this time (optional)
	Since *time.Time
	// Page number (1-indexed)
	Page int
	// Page size
	PageSize int
}

// EventLog is the append/update-status store of detected changes. Appends
// must be durable before a detection run reports success; detected payloads
// are immutable, only status and notes are updated.
type EventLog interface {
	// Append durably stores a new event
	Append(ctx context.Context, event *SyncEvent) error

	// AppendBatch durably stores a batch of events from one detection run
	AppendBatch(ctx context.Context, events []*SyncEvent) error

	// Pending returns pending events, oldest first. A nil platform returns
	// pending events for all platforms.
	Pending(ctx context.Context, code *platform.Code) ([]*SyncEvent, error)

	// Mark updates the processing status and notes of an event
	Mark(ctx context.Context, id uuid.UUID, status EventStatus, notes string) error

	// FindByID finds an event by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*SyncEvent, error)

	// ExistsPendingWithHash reports whether a pending event with the given
	// content hash already exists. Detection uses this to keep repeated
	// polling from growing an unbounded pending backlog.
	ExistsPendingWithHash(ctx context.Context, contentHash string) (bool, error)

	// ExistsWithHash reports whether any event with the given content hash
	// exists, regardless of processing status. Order feeds keep reporting a
	// sale for the whole lookback window, so sale dedup must survive the
	// event being marked processed.
	ExistsWithHash(ctx context.Context, contentHash string) (bool, error)

	// List returns events matching the filter plus the total count, newest
	// first. This is the query surface for manual remediation tooling.
	List(ctx context.Context, filter EventFilter) ([]*SyncEvent, int64, error)

	// PurgeProcessedBefore archives the audit trail by deleting terminal
	// events detected before the cutoff. Retention policy only; correctness
	// never depends on it.
	PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
