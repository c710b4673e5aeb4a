package platform

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// ListingDraft
// ---------------------------------------------------------------------------

// ListingDraft carries the fields needed to create a listing on a platform.
// Used by the propagation dispatcher when mirroring a product to a
// marketplace it is not yet listed on.
type ListingDraft struct {
	// Reference is the seller-assigned matching key (usually the SKU)
	Reference string
	// Title is the listing title
	Title string
	// Price is the listing price
	Price decimal.Decimal
	// Quantity is the initial available quantity
	Quantity int
}

// ---------------------------------------------------------------------------
// Adapter Port Interface
// ---------------------------------------------------------------------------

// Adapter is the capability contract every marketplace implements.
// It is defined in the domain layer following the Ports & Adapters pattern;
// concrete implementations (eBay, Etsy, Mercari, Poshmark) live in the
// infrastructure layer. The detection pipeline and propagation dispatcher
// depend only on this interface, never on platform specifics.
type Adapter interface {
	// Code returns the marketplace this adapter handles
	Code() Code

	// FetchListings fetches all current listings from the platform,
	// normalized into comparison snapshots
	FetchListings(ctx context.Context) ([]ListingSnapshot, error)

	// CreateListing creates a new listing and returns its external id.
	// Platforms that resolve ids asynchronously may return an empty id;
	// the link is then backfilled by a later detection run.
	CreateListing(ctx context.Context, draft ListingDraft) (string, error)

	// EndListing ends (delists) a listing on the platform
	EndListing(ctx context.Context, externalID string) error

	// SetQuantity updates the available quantity of a listing
	SetQuantity(ctx context.Context, externalID string, quantity int) error

	// Relist reactivates a previously ended listing
	Relist(ctx context.Context, externalID string) error
}

// OrderFeed is an optional capability for platforms that expose order data.
// The detection pipeline type-asserts adapters for this interface; platforms
// without it only produce listing-level change events.
type OrderFeed interface {
	// FetchOrders fetches orders placed since the given time
	FetchOrders(ctx context.Context, since time.Time) ([]OrderSnapshot, error)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry provides access to configured marketplace adapters
type Registry interface {
	// Get returns the adapter for the given marketplace code
	Get(code Code) (Adapter, error)

	// List returns all registered adapters
	List() []Adapter
}
