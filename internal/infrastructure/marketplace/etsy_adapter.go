package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/channelsync/backend/internal/domain/platform"
)

// etsyPageSize is the page size used when walking paged endpoints
const etsyPageSize = 100

// EtsyAdapter implements the marketplace adapter contract for Etsy.
// Listings come from the shop listings endpoint, sales from shop receipts.
type EtsyAdapter struct {
	config     *EtsyConfig
	httpClient *http.Client
}

// NewEtsyAdapter creates a new Etsy adapter with the given configuration
func NewEtsyAdapter(config *EtsyConfig) (*EtsyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &EtsyAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Code returns the marketplace this adapter handles
func (a *EtsyAdapter) Code() platform.Code {
	return platform.CodeEtsy
}

// ---------------------------------------------------------------------------
// Listing Operations
// ---------------------------------------------------------------------------

// FetchListings fetches all current listings, walking the paged endpoint
func (a *EtsyAdapter) FetchListings(ctx context.Context) ([]platform.ListingSnapshot, error) {
	var snapshots []platform.ListingSnapshot
	offset := 0

	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(etsyPageSize))
		query.Set("offset", strconv.Itoa(offset))
		query.Set("state", "all")

		body, err := a.doRequest(ctx, http.MethodGet, a.shopPath("/listings")+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var page etsyListingsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err)
		}

		observedAt := time.Now()
		for _, listing := range page.Results {
			snapshots = append(snapshots, a.toSnapshot(listing, observedAt))
		}

		offset += len(page.Results)
		if len(page.Results) < etsyPageSize || offset >= page.Count {
			break
		}
	}

	return snapshots, nil
}

// CreateListing creates a new listing and returns its external id
func (a *EtsyAdapter) CreateListing(ctx context.Context, draft platform.ListingDraft) (string, error) {
	form := url.Values{}
	form.Set("title", draft.Title)
	form.Set("sku", draft.Reference)
	form.Set("price", draft.Price.StringFixed(2))
	form.Set("quantity", strconv.Itoa(draft.Quantity))

	body, err := a.doRequest(ctx, http.MethodPost, a.shopPath("/listings"), form)
	if err != nil {
		return "", err
	}

	var resp etsyCreateListingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err)
	}
	return strconv.FormatInt(resp.ListingID, 10), nil
}

// EndListing deactivates a listing on Etsy
func (a *EtsyAdapter) EndListing(ctx context.Context, externalID string) error {
	form := url.Values{}
	form.Set("state", "inactive")
	_, err := a.doRequest(ctx, http.MethodPatch, a.listingPath(externalID), form)
	return err
}

// SetQuantity updates the available quantity of a listing
func (a *EtsyAdapter) SetQuantity(ctx context.Context, externalID string, quantity int) error {
	form := url.Values{}
	form.Set("quantity", strconv.Itoa(quantity))
	_, err := a.doRequest(ctx, http.MethodPatch, a.listingPath(externalID), form)
	return err
}

// Relist reactivates a previously deactivated listing
func (a *EtsyAdapter) Relist(ctx context.Context, externalID string) error {
	form := url.Values{}
	form.Set("state", "active")
	_, err := a.doRequest(ctx, http.MethodPatch, a.listingPath(externalID), form)
	return err
}

// ---------------------------------------------------------------------------
// Order Feed
// ---------------------------------------------------------------------------

// FetchOrders fetches receipts created since the given time
func (a *EtsyAdapter) FetchOrders(ctx context.Context, since time.Time) ([]platform.OrderSnapshot, error) {
	query := url.Values{}
	query.Set("min_created", strconv.FormatInt(since.Unix(), 10))
	query.Set("limit", strconv.Itoa(etsyPageSize))

	body, err := a.doRequest(ctx, http.MethodGet, a.shopPath("/receipts")+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp etsyReceiptsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err)
	}

	var orders []platform.OrderSnapshot
	for _, receipt := range resp.Results {
		raw, _ := json.Marshal(receipt)
		orderedAt := time.Unix(receipt.CreatedTime, 0)
		for _, txn := range receipt.Transactions {
			orders = append(orders, platform.OrderSnapshot{
				Platform:     platform.CodeEtsy,
				ExternalID:   strconv.FormatInt(txn.ListingID, 10),
				QuantitySold: txn.Quantity,
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

// shopPath builds a shop-scoped API path
func (a *EtsyAdapter) shopPath(suffix string) string {
	return "/v3/application/shops/" + url.PathEscape(a.config.ShopID) + suffix
}

// listingPath builds a listing-scoped API path
func (a *EtsyAdapter) listingPath(externalID string) string {
	return a.shopPath("/listings/" + url.PathEscape(externalID))
}

// doRequest performs an authenticated HTTP request against the Etsy API
func (a *EtsyAdapter) doRequest(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("etsy: failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", a.config.APIKey)
	req.Header.Set("Authorization", "Bearer "+a.config.AccessToken)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("etsy: failed to read response: %w", err)
	}

	if err := statusToError(resp.StatusCode); err != nil {
		return nil, err
	}
	return body, nil
}

// toSnapshot normalizes an Etsy listing into the comparison shape
func (a *EtsyAdapter) toSnapshot(listing etsyListing, observedAt time.Time) platform.ListingSnapshot {
	raw, _ := json.Marshal(listing)
	sku := ""
	if len(listing.SKUs) > 0 {
		sku = listing.SKUs[0]
	}
	return platform.ListingSnapshot{
		Platform:    platform.CodeEtsy,
		ExternalID:  strconv.FormatInt(listing.ListingID, 10),
		Status:      mapEtsyListingState(listing.State),
		Price:       etsyMoneyToDecimal(listing.Price),
		Quantity:    listing.Quantity,
		Reference:   sku,
		Title:       listing.Title,
		RawSnapshot: string(raw),
		ObservedAt:  observedAt,
	}
}

// etsyMoneyToDecimal converts Etsy's fixed-point money to a decimal
func etsyMoneyToDecimal(m etsyMoney) decimal.Decimal {
	if m.Divisor <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(m.Divisor))
}

// mapEtsyListingState maps Etsy listing states onto the normalized status
func mapEtsyListingState(state string) platform.ListingStatus {
	switch state {
	case "active":
		return platform.ListingStatusActive
	case "sold_out":
		return platform.ListingStatusSold
	case "inactive", "expired", "removed":
		return platform.ListingStatusEnded
	case "draft", "edit":
		return platform.ListingStatusDraft
	default:
		return platform.ListingStatus(state)
	}
}

// Ensure EtsyAdapter implements the adapter and order feed contracts
var (
	_ platform.Adapter   = (*EtsyAdapter)(nil)
	_ platform.OrderFeed = (*EtsyAdapter)(nil)
)
