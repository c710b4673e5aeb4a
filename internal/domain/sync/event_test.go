package sync

import (
	"testing"
	"time"

	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() platform.ListingSnapshot {
	return platform.ListingSnapshot{
		Platform:    platform.CodeEbay,
		ExternalID:  "110553582761",
		Status:      platform.ListingStatusActive,
		Price:       decimal.NewFromFloat(19.99),
		Quantity:    3,
		RawSnapshot: `{"itemId":"110553582761"}`,
		ObservedAt:  time.Now(),
	}
}

func TestNewListingEvent(t *testing.T) {
	t.Run("creates pending event with content hash", func(t *testing.T) {
		snap := testSnapshot()
		event, err := NewListingEvent(ChangeTypePrice, snap)
		require.NoError(t, err)

		assert.Equal(t, EventStatusPending, event.Status)
		assert.Equal(t, snap.Digest(), event.ContentHash)
		assert.Equal(t, platform.CodeEbay, event.Platform)
		assert.True(t, event.IsPending())

		decoded, err := event.ListingPayload()
		require.NoError(t, err)
		assert.Equal(t, snap.ExternalID, decoded.ExternalID)
		assert.Equal(t, snap.Quantity, decoded.Quantity)
		assert.True(t, decoded.Price.Equal(snap.Price))
	})

	t.Run("rejects order_sale change type", func(t *testing.T) {
		_, err := NewListingEvent(ChangeTypeOrderSale, testSnapshot())
		assert.ErrorIs(t, err, ErrInvalidChangeType)
	})

	t.Run("rejects invalid snapshot", func(t *testing.T) {
		snap := testSnapshot()
		snap.ExternalID = ""
		_, err := NewListingEvent(ChangeTypeNewListing, snap)
		assert.Error(t, err)
	})
}

func TestNewOrderSaleEvent(t *testing.T) {
	order := platform.OrderSnapshot{
		Platform:     platform.CodeEbay,
		ExternalID:   "110553582761",
		QuantitySold: 2,
		OrderedAt:    time.Now(),
	}

	event, err := NewOrderSaleEvent(order)
	require.NoError(t, err)
	assert.Equal(t, ChangeTypeOrderSale, event.ChangeType)
	assert.True(t, event.IsSale())

	decoded, err := event.OrderPayload()
	require.NoError(t, err)
	assert.Equal(t, 2, decoded.QuantitySold)

	_, err = event.ListingPayload()
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestSyncEvent_StatusTransitions(t *testing.T) {
	event, err := NewListingEvent(ChangeTypeStatus, testSnapshot())
	require.NoError(t, err)

	payload := event.Payload

	event.MarkProcessed("applied")
	assert.Equal(t, EventStatusProcessed, event.Status)
	assert.Equal(t, "applied", event.Notes)
	assert.Equal(t, payload, event.Payload, "detected payload is immutable")
	assert.True(t, event.Status.IsTerminal())

	event.MarkSkipped("lost conflict to event abc")
	assert.Equal(t, EventStatusSkipped, event.Status)

	event.MarkError("malformed snapshot")
	assert.Equal(t, EventStatusError, event.Status)
	assert.Equal(t, payload, event.Payload)
}

func TestChangeType_IsValid(t *testing.T) {
	valid := []ChangeType{
		ChangeTypeNewListing, ChangeTypePrice, ChangeTypeQuantity,
		ChangeTypeStatus, ChangeTypeOrderSale, ChangeTypeRemovedListing,
	}
	for _, ct := range valid {
		assert.True(t, ct.IsValid(), ct.String())
	}
	assert.False(t, ChangeType("relist").IsValid())
}
