package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channelsync/backend/internal/domain/platform"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestEbayConfig_Validate(t *testing.T) {
	t.Run("valid config gets defaults", func(t *testing.T) {
		config := &EbayConfig{Token: "tok"}
		require.NoError(t, config.Validate())
		assert.Equal(t, EbayProductionAPIURL, config.APIBaseURL)
		assert.Equal(t, 30*time.Second, config.Timeout)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		config := &EbayConfig{}
		assert.ErrorIs(t, config.Validate(), ErrEbayConfigMissingToken)
	})

	t.Run("sandbox default URL", func(t *testing.T) {
		config := &EbayConfig{Token: "tok", IsSandbox: true}
		require.NoError(t, config.Validate())
		assert.Equal(t, EbaySandboxAPIURL, config.APIBaseURL)
	})
}

// ---------------------------------------------------------------------------
// Adapter Tests
// ---------------------------------------------------------------------------

func newTestEbayAdapter(t *testing.T, handler http.HandlerFunc) (*EbayAdapter, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := NewEbayConfig("test-token")
	config.APIBaseURL = server.URL
	adapter, err := NewEbayAdapter(config)
	require.NoError(t, err)
	return adapter, server
}

func TestEbayAdapter_FetchListings(t *testing.T) {
	t.Run("normalizes listings and sends bearer token", func(t *testing.T) {
		adapter, _ := newTestEbayAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "/sell/inventory/v1/listing", r.URL.Path)

			json.NewEncoder(w).Encode(ebayListingsResponse{
				Total: 2,
				Listings: []ebayListing{
					{ListingID: "ebay-1", SKU: "CAMERA-7", Title: "Vintage Camera", Price: ebayPrice{Value: "120.00", Currency: "USD"}, Quantity: 3, Status: "ACTIVE"},
					{ListingID: "ebay-2", SKU: "MUG-1", Title: "Blue Mug", Price: ebayPrice{Value: "15.50", Currency: "USD"}, Quantity: 0, Status: "SOLD_OUT"},
				},
			})
		})

		snapshots, err := adapter.FetchListings(context.Background())

		require.NoError(t, err)
		require.Len(t, snapshots, 2)
		assert.Equal(t, platform.CodeEbay, snapshots[0].Platform)
		assert.Equal(t, "ebay-1", snapshots[0].ExternalID)
		assert.Equal(t, platform.ListingStatusActive, snapshots[0].Status)
		assert.True(t, snapshots[0].Price.Equal(decimal.RequireFromString("120.00")))
		assert.Equal(t, "CAMERA-7", snapshots[0].Reference)
		assert.Equal(t, platform.ListingStatusSold, snapshots[1].Status)
		assert.NotEmpty(t, snapshots[0].RawSnapshot)
	})

	t.Run("auth failure maps to ErrAuthFailed", func(t *testing.T) {
		adapter, _ := newTestEbayAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := adapter.FetchListings(context.Background())

		assert.ErrorIs(t, err, platform.ErrAuthFailed)
	})

	t.Run("server error maps to ErrRequestFailed", func(t *testing.T) {
		adapter, _ := newTestEbayAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := adapter.FetchListings(context.Background())

		assert.ErrorIs(t, err, platform.ErrRequestFailed)
	})
}

func TestEbayAdapter_CreateListing(t *testing.T) {
	t.Run("returns the new listing id", func(t *testing.T) {
		adapter, _ := newTestEbayAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)

			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "CAMERA-7", payload["sku"])

			json.NewEncoder(w).Encode(ebayCreateListingResponse{ListingID: "ebay-77"})
		})

		id, err := adapter.CreateListing(context.Background(), platform.ListingDraft{
			Reference: "CAMERA-7",
			Title:     "Vintage Camera",
			Price:     decimal.NewFromInt(120),
			Quantity:  3,
		})

		require.NoError(t, err)
		assert.Equal(t, "ebay-77", id)
	})
}

func TestEbayAdapter_EndListing(t *testing.T) {
	t.Run("missing listing maps to ErrListingNotFound", func(t *testing.T) {
		adapter, _ := newTestEbayAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		err := adapter.EndListing(context.Background(), "ghost")

		assert.ErrorIs(t, err, platform.ErrListingNotFound)
	})

	t.Run("hits the end endpoint", func(t *testing.T) {
		var gotPath string
		adapter, _ := newTestEbayAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, adapter.EndListing(context.Background(), "ebay-1"))
		assert.Equal(t, "/sell/inventory/v1/listing/ebay-1/end", gotPath)
	})
}

func TestEbayAdapter_FetchOrders(t *testing.T) {
	t.Run("flattens line items into order snapshots", func(t *testing.T) {
		createdAt := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
		adapter, _ := newTestEbayAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/sell/fulfillment/v1/order", r.URL.Path)
			json.NewEncoder(w).Encode(ebayOrdersResponse{
				Total: 1,
				Orders: []ebayOrder{
					{
						OrderID:      "ord-1",
						CreationDate: createdAt.Format(time.RFC3339),
						LineItems: []ebayOrderLineItem{
							{ListingID: "ebay-1", Quantity: 2},
							{ListingID: "ebay-2", Quantity: 1},
						},
					},
				},
			})
		})

		orders, err := adapter.FetchOrders(context.Background(), time.Now().Add(-24*time.Hour))

		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, "ebay-1", orders[0].ExternalID)
		assert.Equal(t, 2, orders[0].QuantitySold)
		assert.True(t, orders[0].OrderedAt.Equal(createdAt))
	})
}
