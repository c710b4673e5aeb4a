package platform

import "errors"

// ---------------------------------------------------------------------------
// Platform Errors
// ---------------------------------------------------------------------------

var (
	// Adapter errors
	ErrAdapterNotRegistered = errors.New("platform: adapter not registered")
	ErrAdapterNotConfigured = errors.New("platform: adapter not configured")
	ErrRequestFailed        = errors.New("platform: request failed")
	ErrInvalidResponse      = errors.New("platform: invalid response")
	ErrAuthFailed           = errors.New("platform: authentication failed")
	ErrRateLimited          = errors.New("platform: rate limited")
	ErrOrdersNotSupported   = errors.New("platform: order feed not supported")

	// Listing errors
	ErrListingNotFound = errors.New("platform: listing not found")
	ErrInvalidListing  = errors.New("platform: invalid listing")
)

// ---------------------------------------------------------------------------
// Code represents a supported marketplace
// ---------------------------------------------------------------------------

// Code identifies a marketplace the engine synchronizes with
type Code string

const (
	// CodeEbay represents the eBay marketplace
	CodeEbay Code = "EBAY"
	// CodeEtsy represents the Etsy marketplace
	CodeEtsy Code = "ETSY"
	// CodeMercari represents the Mercari marketplace
	CodeMercari Code = "MERCARI"
	// CodePoshmark represents the Poshmark marketplace
	CodePoshmark Code = "POSHMARK"
)

// IsValid returns true if the code is a known marketplace
func (c Code) IsValid() bool {
	switch c {
	case CodeEbay, CodeEtsy, CodeMercari, CodePoshmark:
		return true
	default:
		return false
	}
}

// String returns the string representation of Code
func (c Code) String() string {
	return string(c)
}

// AllCodes returns every supported marketplace code
func AllCodes() []Code {
	return []Code{CodeEbay, CodeEtsy, CodeMercari, CodePoshmark}
}

// ---------------------------------------------------------------------------
// ListingStatus represents the state of a listing as a marketplace reports it
// ---------------------------------------------------------------------------

// ListingStatus is the normalized remote listing state
type ListingStatus string

const (
	// ListingStatusActive indicates the listing is live and purchasable
	ListingStatusActive ListingStatus = "active"
	// ListingStatusSold indicates the listing sold out on the platform
	ListingStatusSold ListingStatus = "sold"
	// ListingStatusEnded indicates the listing was ended or delisted
	ListingStatusEnded ListingStatus = "ended"
	// ListingStatusDraft indicates the listing exists but is not published
	ListingStatusDraft ListingStatus = "draft"
)

// IsValid returns true if the status is valid
func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingStatusActive, ListingStatusSold, ListingStatusEnded, ListingStatusDraft:
		return true
	default:
		return false
	}
}

// String returns the string representation of ListingStatus
func (s ListingStatus) String() string {
	return string(s)
}

// IsLive returns true if the listing is purchasable on the platform
func (s ListingStatus) IsLive() bool {
	return s == ListingStatusActive
}
