package inventory

import (
	"time"

	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LinkStatus represents the listing state a link mirrors on its platform
type LinkStatus string

const (
	LinkStatusActive LinkStatus = "ACTIVE"
	LinkStatusSold   LinkStatus = "SOLD"
	LinkStatusEnded  LinkStatus = "ENDED"
)

// IsValid returns true if the status is valid
func (s LinkStatus) IsValid() bool {
	switch s {
	case LinkStatusActive, LinkStatusSold, LinkStatusEnded:
		return true
	default:
		return false
	}
}

// String returns the string representation of LinkStatus
func (s LinkStatus) String() string {
	return string(s)
}

// SyncStatus represents the propagation state of a link
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

// IsValid returns true if the status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSynced, SyncStatusError:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// PlatformLink binds one product to one marketplace listing. At most one
// link exists per (product, platform) pair. Links are never deleted, only
// marked ended.
//
// The link also carries the last-known remote baseline (price, quantity,
// status) so a detection run can diff against local state without a
// cross-table join, and so reconciliation can refresh the baseline after
// it pushes a change (preventing our own writes from being re-detected).
type PlatformLink struct {
	shared.BaseAggregateRoot
	ProductID uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_link_product_platform,priority:1"`
	Platform  platform.Code `gorm:"type:varchar(20);not null;uniqueIndex:idx_link_product_platform,priority:2"`
	// ExternalID is the listing id on the platform. Empty when the platform
	// resolves ids asynchronously; backfilled by a later detection run.
	ExternalID    string          `gorm:"type:varchar(100);index"`
	Status        LinkStatus      `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	Price         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Quantity      int             `gorm:"not null;default:0"`
	SyncStatus    SyncStatus      `gorm:"type:varchar(20);not null;default:'pending'"`
	LastSyncedAt  *time.Time
	LastSyncError string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PlatformLink) TableName() string {
	return "platform_links"
}

// NewPlatformLink creates a new link between a product and a marketplace listing
func NewPlatformLink(productID uuid.UUID, code platform.Code, externalID string, price decimal.Decimal, quantity int) (*PlatformLink, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID is required")
	}
	if !code.IsValid() {
		return nil, shared.NewDomainError("INVALID_PLATFORM", "Unknown platform code")
	}
	if quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}

	return &PlatformLink{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         productID,
		Platform:          code,
		ExternalID:        externalID,
		Status:            LinkStatusActive,
		Price:             price,
		Quantity:          quantity,
		SyncStatus:        SyncStatusPending,
	}, nil
}

// SetExternalID backfills the external listing id once the platform has
// resolved it
func (l *PlatformLink) SetExternalID(externalID string) error {
	if externalID == "" {
		return shared.NewDomainError("INVALID_EXTERNAL_ID", "External ID cannot be empty")
	}
	l.ExternalID = externalID
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// MarkSynced records a successful propagation to the platform
func (l *PlatformLink) MarkSynced() {
	now := time.Now()
	l.SyncStatus = SyncStatusSynced
	l.LastSyncedAt = &now
	l.LastSyncError = ""
	l.UpdatedAt = now
	l.IncrementVersion()
}

// MarkSyncError records a failed propagation after retries were exhausted
func (l *PlatformLink) MarkSyncError(message string) {
	l.SyncStatus = SyncStatusError
	l.LastSyncError = message
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
}

// MarkPending flags the link as awaiting propagation
func (l *PlatformLink) MarkPending() {
	l.SyncStatus = SyncStatusPending
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
}

// End marks the listing as ended on its platform
func (l *PlatformLink) End() {
	l.Status = LinkStatusEnded
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
}

// MarkSold marks the listing as sold on its platform
func (l *PlatformLink) MarkSold() {
	l.Status = LinkStatusSold
	l.Quantity = 0
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
}

// Reactivate marks the listing active again after a relist
func (l *PlatformLink) Reactivate() error {
	if l.Status == LinkStatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Listing is already active")
	}
	l.Status = LinkStatusActive
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// UpdateBaseline refreshes the last-known remote state. Called after
// reconciliation accepts a remote change or propagation pushes one, so the
// next detection run diffs against a consistent baseline.
func (l *PlatformLink) UpdateBaseline(price decimal.Decimal, quantity int, status LinkStatus) error {
	if quantity < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown link status")
	}
	l.Price = price
	l.Quantity = quantity
	l.Status = status
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// IsEnded returns true if the listing has been ended on its platform
func (l *PlatformLink) IsEnded() bool {
	return l.Status == LinkStatusEnded
}

// IsActive returns true if the listing is live on its platform
func (l *PlatformLink) IsActive() bool {
	return l.Status == LinkStatusActive
}

// Snapshot returns the link's baseline as a comparison snapshot for diffing
func (l *PlatformLink) Snapshot() platform.ListingSnapshot {
	return platform.ListingSnapshot{
		Platform:   l.Platform,
		ExternalID: l.ExternalID,
		Status:     l.listingStatus(),
		Price:      l.Price,
		Quantity:   l.Quantity,
		ObservedAt: l.UpdatedAt,
	}
}

// listingStatus maps the link status onto the normalized remote status
func (l *PlatformLink) listingStatus() platform.ListingStatus {
	switch l.Status {
	case LinkStatusSold:
		return platform.ListingStatusSold
	case LinkStatusEnded:
		return platform.ListingStatusEnded
	default:
		return platform.ListingStatusActive
	}
}
