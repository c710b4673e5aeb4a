package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/channelsync/backend/internal/domain/platform"
)

// maxResponseSize is the maximum allowed marketplace API response size (10MB)
const maxResponseSize = 10 * 1024 * 1024

// ebayPageSize is the page size used when walking paged endpoints
const ebayPageSize = 100

// EbayAdapter implements the marketplace adapter contract for eBay.
// It talks to the Sell Inventory API for listings and the Fulfillment API
// for the order feed.
type EbayAdapter struct {
	config     *EbayConfig
	httpClient *http.Client
}

// NewEbayAdapter creates a new eBay adapter with the given configuration
func NewEbayAdapter(config *EbayConfig) (*EbayAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &EbayAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Code returns the marketplace this adapter handles
func (a *EbayAdapter) Code() platform.Code {
	return platform.CodeEbay
}

// ---------------------------------------------------------------------------
// Listing Operations
// ---------------------------------------------------------------------------

// FetchListings fetches all current listings, walking the paged endpoint
func (a *EbayAdapter) FetchListings(ctx context.Context) ([]platform.ListingSnapshot, error) {
	var snapshots []platform.ListingSnapshot
	offset := 0

	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(ebayPageSize))
		query.Set("offset", strconv.Itoa(offset))

		body, err := a.doRequest(ctx, http.MethodGet, "/sell/inventory/v1/listing?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var page ebayListingsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err)
		}

		observedAt := time.Now()
		for _, listing := range page.Listings {
			snapshots = append(snapshots, a.toSnapshot(listing, observedAt))
		}

		offset += len(page.Listings)
		if len(page.Listings) < ebayPageSize || offset >= page.Total {
			break
		}
	}

	return snapshots, nil
}

// CreateListing creates a new listing and returns its external id
func (a *EbayAdapter) CreateListing(ctx context.Context, draft platform.ListingDraft) (string, error) {
	payload := map[string]any{
		"sku":               draft.Reference,
		"title":             draft.Title,
		"price":             ebayPrice{Value: draft.Price.StringFixed(2), Currency: "USD"},
		"availableQuantity": draft.Quantity,
	}

	body, err := a.doRequest(ctx, http.MethodPost, "/sell/inventory/v1/listing", payload)
	if err != nil {
		return "", err
	}

	var resp ebayCreateListingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err)
	}
	return resp.ListingID, nil
}

// EndListing ends (delists) a listing on eBay
func (a *EbayAdapter) EndListing(ctx context.Context, externalID string) error {
	path := "/sell/inventory/v1/listing/" + url.PathEscape(externalID) + "/end"
	_, err := a.doRequest(ctx, http.MethodPost, path, nil)
	return err
}

// SetQuantity updates the available quantity of a listing
func (a *EbayAdapter) SetQuantity(ctx context.Context, externalID string, quantity int) error {
	path := "/sell/inventory/v1/listing/" + url.PathEscape(externalID) + "/quantity"
	_, err := a.doRequest(ctx, http.MethodPut, path, map[string]any{
		"availableQuantity": quantity,
	})
	return err
}

// Relist reactivates a previously ended listing
func (a *EbayAdapter) Relist(ctx context.Context, externalID string) error {
	path := "/sell/inventory/v1/listing/" + url.PathEscape(externalID) + "/relist"
	_, err := a.doRequest(ctx, http.MethodPost, path, nil)
	return err
}

// ---------------------------------------------------------------------------
// Order Feed
// ---------------------------------------------------------------------------

// FetchOrders fetches orders created since the given time
func (a *EbayAdapter) FetchOrders(ctx context.Context, since time.Time) ([]platform.OrderSnapshot, error) {
	query := url.Values{}
	query.Set("filter", "creationdate:["+since.UTC().Format(time.RFC3339)+"..]")
	query.Set("limit", strconv.Itoa(ebayPageSize))

	body, err := a.doRequest(ctx, http.MethodGet, "/sell/fulfillment/v1/order?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp ebayOrdersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err)
	}

	var orders []platform.OrderSnapshot
	for _, order := range resp.Orders {
		orderedAt, err := time.Parse(time.RFC3339, order.CreationDate)
		if err != nil {
			orderedAt = time.Now()
		}
		raw, _ := json.Marshal(order)
		for _, line := range order.LineItems {
			orders = append(orders, platform.OrderSnapshot{
				Platform:     platform.CodeEbay,
				ExternalID:   line.ListingID,
				QuantitySold: line.Quantity,
				OrderedAt:    orderedAt,
				RawSnapshot:  string(raw),
			})
		}
	}
	return orders, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated HTTP request against the eBay API
func (a *EbayAdapter) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("ebay: failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ebay: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.config.Token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("ebay: failed to read response: %w", err)
	}

	if err := statusToError(resp.StatusCode); err != nil {
		return nil, err
	}
	return body, nil
}

// toSnapshot normalizes an eBay listing into the comparison shape
func (a *EbayAdapter) toSnapshot(listing ebayListing, observedAt time.Time) platform.ListingSnapshot {
	raw, _ := json.Marshal(listing)
	return platform.ListingSnapshot{
		Platform:    platform.CodeEbay,
		ExternalID:  listing.ListingID,
		Status:      mapEbayListingStatus(listing.Status),
		Price:       parseDecimal(listing.Price.Value),
		Quantity:    listing.Quantity,
		Reference:   listing.SKU,
		Title:       listing.Title,
		RawSnapshot: string(raw),
		ObservedAt:  observedAt,
	}
}

// mapEbayListingStatus maps eBay listing states onto the normalized status
func mapEbayListingStatus(status string) platform.ListingStatus {
	switch status {
	case "ACTIVE":
		return platform.ListingStatusActive
	case "SOLD", "SOLD_OUT", "COMPLETED":
		return platform.ListingStatusSold
	case "ENDED", "DELETED":
		return platform.ListingStatusEnded
	case "DRAFT", "INACTIVE":
		return platform.ListingStatusDraft
	default:
		return platform.ListingStatus(status)
	}
}

// parseDecimal parses a marketplace decimal string, zero on failure
func parseDecimal(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Ensure EbayAdapter implements the adapter and order feed contracts
var (
	_ platform.Adapter   = (*EbayAdapter)(nil)
	_ platform.OrderFeed = (*EbayAdapter)(nil)
)
