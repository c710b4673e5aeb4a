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

// MercariAdapter implements the marketplace adapter contract for Mercari.
// Mercari exposes no order feed, so sales surface only as listing status
// and quantity changes on the next detection run.
type MercariAdapter struct {
	config     *MercariConfig
	httpClient *http.Client
}

// mercariListing is one listing as the Mercari API reports it
type mercariListing struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Status   string `json:"status"`
	Label    string `json:"seller_label"`
}

// mercariEnvelope is the common response envelope
type mercariEnvelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// mercariListingsData is the listings payload inside the envelope
type mercariListingsData struct {
	Items   []mercariListing `json:"items"`
	HasNext bool             `json:"has_next"`
	Page    int              `json:"page"`
}

// mercariCreateData carries the id of a freshly created listing
type mercariCreateData struct {
	ItemID string `json:"item_id"`
}

// NewMercariAdapter creates a new Mercari adapter with the given configuration
func NewMercariAdapter(config *MercariConfig) (*MercariAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &MercariAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Code returns the marketplace this adapter handles
func (a *MercariAdapter) Code() platform.Code {
	return platform.CodeMercari
}

// FetchListings fetches all current listings, walking the paged endpoint
func (a *MercariAdapter) FetchListings(ctx context.Context) ([]platform.ListingSnapshot, error) {
	var snapshots []platform.ListingSnapshot
	page := 1

	for {
		data, err := a.doRequest(ctx, "items.list", map[string]string{
			"page": strconv.Itoa(page),
		})
		if err != nil {
			return nil, err
		}

		var listings mercariListingsData
		if err := json.Unmarshal(data, &listings); err != nil {
			return nil, fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err)
		}

		observedAt := time.Now()
		for _, item := range listings.Items {
			snapshots = append(snapshots, a.toSnapshot(item, observedAt))
		}

		if !listings.HasNext {
			break
		}
		page++
	}

	return snapshots, nil
}

// CreateListing creates a new listing and returns its external id
func (a *MercariAdapter) CreateListing(ctx context.Context, draft platform.ListingDraft) (string, error) {
	data, err := a.doRequest(ctx, "items.create", map[string]string{
		"name":         draft.Title,
		"seller_label": draft.Reference,
		"price":        strconv.FormatInt(draft.Price.IntPart(), 10),
		"quantity":     strconv.Itoa(draft.Quantity),
	})
	if err != nil {
		return "", err
	}

	var created mercariCreateData
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err)
	}
	return created.ItemID, nil
}

// EndListing ends a listing on Mercari
func (a *MercariAdapter) EndListing(ctx context.Context, externalID string) error {
	_, err := a.doRequest(ctx, "items.end", map[string]string{
		"item_id": externalID,
	})
	return err
}

// SetQuantity updates the available quantity of a listing
func (a *MercariAdapter) SetQuantity(ctx context.Context, externalID string, quantity int) error {
	_, err := a.doRequest(ctx, "items.update_quantity", map[string]string{
		"item_id":  externalID,
		"quantity": strconv.Itoa(quantity),
	})
	return err
}

// Relist reactivates a previously ended listing
func (a *MercariAdapter) Relist(ctx context.Context, externalID string) error {
	_, err := a.doRequest(ctx, "items.relist", map[string]string{
		"item_id": externalID,
	})
	return err
}

// doRequest performs a signed HTTP request against the Mercari API and
// unwraps the response envelope
func (a *MercariAdapter) doRequest(ctx context.Context, method string, params map[string]string) (json.RawMessage, error) {
	params["method"] = method
	params["app_key"] = a.config.AppKey
	params["timestamp"] = strconv.FormatInt(time.Now().Unix(), 10)
	params["sign"] = a.config.Sign(params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.APIBaseURL+"/router", strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("mercari: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("mercari: failed to read response: %w", err)
	}

	if err := statusToError(resp.StatusCode); err != nil {
		return nil, err
	}

	var envelope mercariEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err)
	}
	if envelope.Code != "" && envelope.Code != "ok" {
		if envelope.Code == "item_not_found" {
			return nil, fmt.Errorf("%w: %s", platform.ErrListingNotFound, envelope.Message)
		}
		return nil, fmt.Errorf("%w: %s - %s", platform.ErrRequestFailed, envelope.Code, envelope.Message)
	}
	return envelope.Data, nil
}

// toSnapshot normalizes a Mercari listing into the comparison shape
func (a *MercariAdapter) toSnapshot(item mercariListing, observedAt time.Time) platform.ListingSnapshot {
	raw, _ := json.Marshal(item)
	return platform.ListingSnapshot{
		Platform:    platform.CodeMercari,
		ExternalID:  item.ItemID,
		Status:      mapMercariStatus(item.Status),
		Price:       decimal.NewFromInt(item.Price),
		Quantity:    item.Quantity,
		Reference:   item.Label,
		Title:       item.Name,
		RawSnapshot: string(raw),
		ObservedAt:  observedAt,
	}
}

// mapMercariStatus maps Mercari item states onto the normalized status
func mapMercariStatus(status string) platform.ListingStatus {
	switch status {
	case "on_sale":
		return platform.ListingStatusActive
	case "sold_out", "trading":
		return platform.ListingStatusSold
	case "stopped", "cancelled":
		return platform.ListingStatusEnded
	case "draft":
		return platform.ListingStatusDraft
	default:
		return platform.ListingStatus(status)
	}
}

// Ensure MercariAdapter implements the adapter contract.
// Intentionally not an OrderFeed.
var _ platform.Adapter = (*MercariAdapter)(nil)
