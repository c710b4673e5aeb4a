package platform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// ListingSnapshot
// ---------------------------------------------------------------------------

// ListingSnapshot is the canonical comparison record for one remote listing.
// Every adapter normalizes its raw payload into this shape so the detection
// pipeline can diff listings without knowing platform specifics.
type ListingSnapshot struct {
	// Platform identifies which marketplace reported this listing
	Platform Code
	// ExternalID is the listing identifier on the platform
	ExternalID string
	// Status is the normalized listing state
	Status ListingStatus
	// Price is the listed price
	Price decimal.Decimal
	// Quantity is the available quantity the platform reports
	Quantity int
	// Reference is the seller-assigned reference embedded in the listing
	// (SKU or custom label). Used as the platform-agnostic matching key.
	Reference string
	// Title is the listing title as shown on the platform
	Title string
	// RawSnapshot is the verbatim platform payload (JSON), kept for audit
	RawSnapshot string
	// ObservedAt is when the snapshot was taken
	ObservedAt time.Time
}

// Validate checks the snapshot carries the minimum fields detection needs
func (s *ListingSnapshot) Validate() error {
	if !s.Platform.IsValid() {
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidListing, s.Platform)
	}
	if s.ExternalID == "" {
		return fmt.Errorf("%w: missing external id", ErrInvalidListing)
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidListing, s.Status)
	}
	if s.Quantity < 0 {
		return fmt.Errorf("%w: negative quantity %d", ErrInvalidListing, s.Quantity)
	}
	return nil
}

// Digest returns a stable content hash over the fields detection compares.
// Two observations of an unchanged listing produce the same digest, which is
// what makes event-log deduplication idempotent across polling runs.
func (s *ListingSnapshot) Digest() string {
	var b strings.Builder
	b.WriteString(string(s.Platform))
	b.WriteByte('|')
	b.WriteString(s.ExternalID)
	b.WriteByte('|')
	b.WriteString(string(s.Status))
	b.WriteByte('|')
	b.WriteString(s.Price.String())
	b.WriteByte('|')
	b.WriteString(fmt.Sprintf("%d", s.Quantity))
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ---------------------------------------------------------------------------
// OrderSnapshot
// ---------------------------------------------------------------------------

// OrderSnapshot is a normalized sale signal from a platform order feed
type OrderSnapshot struct {
	// Platform identifies which marketplace reported this order
	Platform Code
	// ExternalID is the listing identifier the order was placed against
	ExternalID string
	// QuantitySold is the number of units sold
	QuantitySold int
	// OrderedAt is when the order was placed on the platform
	OrderedAt time.Time
	// RawSnapshot is the verbatim platform payload (JSON)
	RawSnapshot string
}

// Validate checks the order snapshot is usable for sale processing
func (o *OrderSnapshot) Validate() error {
	if !o.Platform.IsValid() {
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidListing, o.Platform)
	}
	if o.ExternalID == "" {
		return fmt.Errorf("%w: missing external id", ErrInvalidListing)
	}
	if o.QuantitySold <= 0 {
		return fmt.Errorf("%w: non-positive quantity sold %d", ErrInvalidListing, o.QuantitySold)
	}
	return nil
}

// Digest returns a stable content hash for order deduplication
func (o *OrderSnapshot) Digest() string {
	key := fmt.Sprintf("%s|%s|order|%d|%d", o.Platform, o.ExternalID, o.QuantitySold, o.OrderedAt.Unix())
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
