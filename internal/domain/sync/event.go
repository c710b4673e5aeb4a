package sync

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Sync Errors
// ---------------------------------------------------------------------------

var (
	ErrEventNotFound      = errors.New("sync: event not found")
	ErrInvalidChangeType  = errors.New("sync: invalid change type")
	ErrInvalidEventStatus = errors.New("sync: invalid processing status")
	ErrMalformedPayload   = errors.New("sync: malformed event payload")
)

// ---------------------------------------------------------------------------
// ChangeType represents the kind of remote change a detection run observed
// ---------------------------------------------------------------------------

// ChangeType classifies a detected difference between remote and local state
type ChangeType string

const (
	// ChangeTypeNewListing indicates a listing present remotely but unknown locally
	ChangeTypeNewListing ChangeType = "new_listing"
	// ChangeTypePrice indicates the remote price differs from the baseline
	ChangeTypePrice ChangeType = "price"
	// ChangeTypeQuantity indicates the remote quantity differs from the baseline
	ChangeTypeQuantity ChangeType = "quantity_change"
	// ChangeTypeStatus indicates the remote listing status differs from the baseline
	ChangeTypeStatus ChangeType = "status_change"
	// ChangeTypeOrderSale indicates a sale signal from the platform's order feed
	ChangeTypeOrderSale ChangeType = "order_sale"
	// ChangeTypeRemovedListing indicates a listing known locally but absent remotely
	ChangeTypeRemovedListing ChangeType = "removed_listing"
)

// IsValid returns true if the change type is valid
func (t ChangeType) IsValid() bool {
	switch t {
	case ChangeTypeNewListing, ChangeTypePrice, ChangeTypeQuantity,
		ChangeTypeStatus, ChangeTypeOrderSale, ChangeTypeRemovedListing:
		return true
	default:
		return false
	}
}

// String returns the string representation of ChangeType
func (t ChangeType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// EventStatus represents the processing state of a sync event
// ---------------------------------------------------------------------------

// EventStatus is the processing state of a detected change
type EventStatus string

const (
	// EventStatusPending indicates the event awaits reconciliation
	EventStatusPending EventStatus = "pending"
	// EventStatusProcessed indicates reconciliation applied the event
	EventStatusProcessed EventStatus = "processed"
	// EventStatusError indicates the event needs manual intervention
	EventStatusError EventStatus = "error"
	// EventStatusSkipped indicates the event lost a conflict or was superseded
	EventStatusSkipped EventStatus = "skipped"
)

// IsValid returns true if the status is valid
func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusPending, EventStatusProcessed, EventStatusError, EventStatusSkipped:
		return true
	default:
		return false
	}
}

// String returns the string representation of EventStatus
func (s EventStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the event will not be reprocessed automatically
func (s EventStatus) IsTerminal() bool {
	return s != EventStatusPending
}

// ---------------------------------------------------------------------------
// SyncEvent
// ---------------------------------------------------------------------------

// SyncEvent is an immutable fact: platform P observed listing X in state S at
// time T. The detected payload is never mutated after append; only the
// processing status and notes change, which preserves the audit trail and
// makes re-processing idempotent.
type SyncEvent struct {
	shared.BaseEntity
	Platform   platform.Code `gorm:"type:varchar(20);not null;index:idx_sync_event_platform_status,priority:1"`
	ExternalID string        `gorm:"type:varchar(100);not null;index"`
	ChangeType ChangeType    `gorm:"type:varchar(30);not null"`
	// Payload is the verbatim normalized snapshot (JSON), sufficient to
	// rebuild the canonical record during reconciliation or replay
	Payload string `gorm:"type:text;not null"`
	// ContentHash deduplicates repeated observations of the same change
	ContentHash string      `gorm:"type:varchar(64);not null;index"`
	DetectedAt  time.Time   `gorm:"not null;index"`
	Status      EventStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_sync_event_platform_status,priority:2"`
	Notes       string      `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SyncEvent) TableName() string {
	return "sync_events"
}

// NewListingEvent creates a pending sync event from a listing snapshot
func NewListingEvent(changeType ChangeType, snapshot platform.ListingSnapshot) (*SyncEvent, error) {
	if !changeType.IsValid() || changeType == ChangeTypeOrderSale {
		return nil, ErrInvalidChangeType
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}

	return &SyncEvent{
		BaseEntity:  shared.NewBaseEntity(),
		Platform:    snapshot.Platform,
		ExternalID:  snapshot.ExternalID,
		ChangeType:  changeType,
		Payload:     string(payload),
		ContentHash: snapshot.Digest(),
		DetectedAt:  snapshot.ObservedAt,
		Status:      EventStatusPending,
	}, nil
}

// NewOrderSaleEvent creates a pending sync event from an order snapshot
func NewOrderSaleEvent(order platform.OrderSnapshot) (*SyncEvent, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	return &SyncEvent{
		BaseEntity:  shared.NewBaseEntity(),
		Platform:    order.Platform,
		ExternalID:  order.ExternalID,
		ChangeType:  ChangeTypeOrderSale,
		Payload:     string(payload),
		ContentHash: order.Digest(),
		DetectedAt:  order.OrderedAt,
		Status:      EventStatusPending,
	}, nil
}

// ListingPayload decodes the payload as a listing snapshot
func (e *SyncEvent) ListingPayload() (platform.ListingSnapshot, error) {
	if e.ChangeType == ChangeTypeOrderSale {
		return platform.ListingSnapshot{}, ErrMalformedPayload
	}
	var snapshot platform.ListingSnapshot
	if err := json.Unmarshal([]byte(e.Payload), &snapshot); err != nil {
		return platform.ListingSnapshot{}, ErrMalformedPayload
	}
	return snapshot, nil
}

// OrderPayload decodes the payload as an order snapshot
func (e *SyncEvent) OrderPayload() (platform.OrderSnapshot, error) {
	if e.ChangeType != ChangeTypeOrderSale {
		return platform.OrderSnapshot{}, ErrMalformedPayload
	}
	var order platform.OrderSnapshot
	if err := json.Unmarshal([]byte(e.Payload), &order); err != nil {
		return platform.OrderSnapshot{}, ErrMalformedPayload
	}
	return order, nil
}

// MarkProcessed records successful reconciliation
func (e *SyncEvent) MarkProcessed(notes string) {
	e.Status = EventStatusProcessed
	e.Notes = notes
	e.UpdatedAt = time.Now()
}

// MarkError records a failure that needs manual intervention
func (e *SyncEvent) MarkError(notes string) {
	e.Status = EventStatusError
	e.Notes = notes
	e.UpdatedAt = time.Now()
}

// MarkSkipped records that the event lost a conflict or was superseded
func (e *SyncEvent) MarkSkipped(notes string) {
	e.Status = EventStatusSkipped
	e.Notes = notes
	e.UpdatedAt = time.Now()
}

// IsPending returns true if the event still awaits reconciliation
func (e *SyncEvent) IsPending() bool {
	return e.Status == EventStatusPending
}

// IsSale returns true for sale-bearing events
func (e *SyncEvent) IsSale() bool {
	return e.ChangeType == ChangeTypeOrderSale
}
