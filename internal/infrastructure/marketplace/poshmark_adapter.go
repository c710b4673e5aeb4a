package marketplace

import (
	"context"
	"encoding/json"
	"errors"
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

// PoshmarkConfig holds configuration for the Poshmark seller API integration
type PoshmarkConfig struct {
	// AccessToken is the seller's API access token
	AccessToken string
	// APIBaseURL is the base URL for the Poshmark API
	APIBaseURL string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// PoshmarkProductionAPIURL is the production API endpoint
const PoshmarkProductionAPIURL = "https://api.poshmark.com"

// ErrPoshmarkConfigMissingToken indicates a missing access token
var ErrPoshmarkConfigMissingToken = errors.New("poshmark: access token is required")

// NewPoshmarkConfig creates a new Poshmark configuration with defaults
func NewPoshmarkConfig(accessToken string) *PoshmarkConfig {
	return &PoshmarkConfig{
		AccessToken: accessToken,
		APIBaseURL:  PoshmarkProductionAPIURL,
		Timeout:     30 * time.Second,
	}
}

// Validate validates the Poshmark configuration
func (c *PoshmarkConfig) Validate() error {
	if c.AccessToken == "" {
		return ErrPoshmarkConfigMissingToken
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = PoshmarkProductionAPIURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// poshmarkListing is one listing as the Poshmark API reports it
type poshmarkListing struct {
	PostID   string `json:"post_id"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Quantity int    `json:"size_quantity"`
	Status   string `json:"status"`
	SKU      string `json:"sku"`
}

// poshmarkListingsResponse is the listings envelope
type poshmarkListingsResponse struct {
	Posts []poshmarkListing `json:"posts"`
	More  bool              `json:"more"`
}

// PoshmarkAdapter implements the marketplace adapter contract for Poshmark.
// Poshmark publishes new posts asynchronously, so CreateListing returns an
// empty external id; the link is backfilled once the post appears in a
// later detection run. There is no order feed.
type PoshmarkAdapter struct {
	config     *PoshmarkConfig
	httpClient *http.Client
}

// NewPoshmarkAdapter creates a new Poshmark adapter with the given configuration
func NewPoshmarkAdapter(config *PoshmarkConfig) (*PoshmarkAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &PoshmarkAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Code returns the marketplace this adapter handles
func (a *PoshmarkAdapter) Code() platform.Code {
	return platform.CodePoshmark
}

// FetchListings fetches all current posts from the closet
func (a *PoshmarkAdapter) FetchListings(ctx context.Context) ([]platform.ListingSnapshot, error) {
	var snapshots []platform.ListingSnapshot
	page := 1

	for {
		body, err := a.doRequest(ctx, http.MethodGet, "/v1/closet/posts?page="+strconv.Itoa(page), nil)
		if err != nil {
			return nil, err
		}

		var resp poshmarkListingsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", platform.ErrInvalidResponse, err)
		}

		observedAt := time.Now()
		for _, post := range resp.Posts {
			snapshots = append(snapshots, a.toSnapshot(post, observedAt))
		}

		if !resp.More {
			break
		}
		page++
	}

	return snapshots, nil
}

// CreateListing submits a new post for publication. Poshmark assigns the
// post id asynchronously, so the returned external id is always empty.
func (a *PoshmarkAdapter) CreateListing(ctx context.Context, draft platform.ListingDraft) (string, error) {
	form := url.Values{}
	form.Set("title", draft.Title)
	form.Set("sku", draft.Reference)
	form.Set("price", draft.Price.StringFixed(2))
	form.Set("size_quantity", strconv.Itoa(draft.Quantity))

	if _, err := a.doRequest(ctx, http.MethodPost, "/v1/closet/posts", form); err != nil {
		return "", err
	}
	return "", nil
}

// EndListing marks a post not for sale
func (a *PoshmarkAdapter) EndListing(ctx context.Context, externalID string) error {
	form := url.Values{}
	form.Set("status", "not_for_sale")
	_, err := a.doRequest(ctx, http.MethodPost, a.postPath(externalID), form)
	return err
}

// SetQuantity updates the available quantity of a post
func (a *PoshmarkAdapter) SetQuantity(ctx context.Context, externalID string, quantity int) error {
	form := url.Values{}
	form.Set("size_quantity", strconv.Itoa(quantity))
	_, err := a.doRequest(ctx, http.MethodPost, a.postPath(externalID), form)
	return err
}

// Relist marks a previously withdrawn post available again
func (a *PoshmarkAdapter) Relist(ctx context.Context, externalID string) error {
	form := url.Values{}
	form.Set("status", "available")
	_, err := a.doRequest(ctx, http.MethodPost, a.postPath(externalID), form)
	return err
}

// postPath builds a post-scoped API path
func (a *PoshmarkAdapter) postPath(externalID string) string {
	return "/v1/closet/posts/" + url.PathEscape(externalID)
}

// doRequest performs an authenticated HTTP request against the Poshmark API
func (a *PoshmarkAdapter) doRequest(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("poshmark: failed to create request: %w", err)
	}
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
		return nil, fmt.Errorf("poshmark: failed to read response: %w", err)
	}

	if err := statusToError(resp.StatusCode); err != nil {
		return nil, err
	}
	return body, nil
}

// toSnapshot normalizes a Poshmark post into the comparison shape
func (a *PoshmarkAdapter) toSnapshot(post poshmarkListing, observedAt time.Time) platform.ListingSnapshot {
	raw, _ := json.Marshal(post)
	price, err := decimal.NewFromString(post.Price)
	if err != nil {
		price = decimal.Zero
	}
	return platform.ListingSnapshot{
		Platform:    platform.CodePoshmark,
		ExternalID:  post.PostID,
		Status:      mapPoshmarkStatus(post.Status),
		Price:       price,
		Quantity:    post.Quantity,
		Reference:   post.SKU,
		Title:       post.Title,
		RawSnapshot: string(raw),
		ObservedAt:  observedAt,
	}
}

// mapPoshmarkStatus maps Poshmark post states onto the normalized status
func mapPoshmarkStatus(status string) platform.ListingStatus {
	switch status {
	case "available":
		return platform.ListingStatusActive
	case "sold", "sold_out":
		return platform.ListingStatusSold
	case "not_for_sale", "reserved":
		return platform.ListingStatusEnded
	case "draft":
		return platform.ListingStatusDraft
	default:
		return platform.ListingStatus(status)
	}
}

// Ensure PoshmarkAdapter implements the adapter contract.
// Intentionally not an OrderFeed.
var _ platform.Adapter = (*PoshmarkAdapter)(nil)
