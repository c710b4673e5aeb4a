package inventory

import (
	"testing"

	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStockedProduct(t *testing.T, quantity int) *Product {
	t.Helper()
	p, err := NewProduct("TSHIRT-BLK-M", "Black T-Shirt M", decimal.NewFromInt(20), quantity, true)
	require.NoError(t, err)
	return p
}

func newUniqueProduct(t *testing.T) *Product {
	t.Helper()
	p, err := NewProduct("VTG-CAMERA-01", "Vintage Camera", decimal.NewFromInt(150), 1, false)
	require.NoError(t, err)
	return p
}

func TestNewProduct(t *testing.T) {
	t.Run("creates active product and uppercases SKU", func(t *testing.T) {
		p, err := NewProduct("abc-123", "Widget", decimal.NewFromInt(5), 3, true)
		require.NoError(t, err)
		assert.Equal(t, "ABC-123", p.SKU)
		assert.Equal(t, ProductStatusActive, p.Status)
		assert.Equal(t, 3, p.Quantity)
		assert.Len(t, p.GetDomainEvents(), 1)
	})

	t.Run("rejects empty SKU", func(t *testing.T) {
		_, err := NewProduct("", "Widget", decimal.Zero, 1, false)
		assert.Error(t, err)
	})

	t.Run("rejects SKU with invalid characters", func(t *testing.T) {
		_, err := NewProduct("SKU 123", "Widget", decimal.Zero, 1, false)
		assert.Error(t, err)
	})

	t.Run("rejects negative price", func(t *testing.T) {
		_, err := NewProduct("SKU-1", "Widget", decimal.NewFromInt(-1), 1, false)
		assert.Error(t, err)
	})

	t.Run("rejects multi-unit quantity on unique product", func(t *testing.T) {
		_, err := NewProduct("SKU-1", "Widget", decimal.Zero, 2, false)
		assert.Error(t, err)
	})
}

func TestProduct_ApplySale(t *testing.T) {
	t.Run("partial sale keeps stocked product active", func(t *testing.T) {
		p := newStockedProduct(t, 3)
		remaining, err := p.ApplySale(1)
		require.NoError(t, err)
		assert.Equal(t, 2, remaining)
		assert.Equal(t, ProductStatusActive, p.Status)
	})

	t.Run("sale draining stock marks product sold", func(t *testing.T) {
		p := newStockedProduct(t, 3)
		remaining, err := p.ApplySale(3)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)
		assert.Equal(t, ProductStatusSold, p.Status)
	})

	t.Run("oversell is rejected and quantity untouched", func(t *testing.T) {
		p := newStockedProduct(t, 2)
		remaining, err := p.ApplySale(5)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Equal(t, 2, remaining)
		assert.Equal(t, 2, p.Quantity)
		assert.Equal(t, ProductStatusActive, p.Status)
	})

	t.Run("any sale sells out a unique product", func(t *testing.T) {
		p := newUniqueProduct(t)
		remaining, err := p.ApplySale(1)
		require.NoError(t, err)
		assert.Equal(t, 0, remaining)
		assert.Equal(t, ProductStatusSold, p.Status)
	})

	t.Run("sale on sold product is rejected", func(t *testing.T) {
		p := newUniqueProduct(t)
		_, err := p.ApplySale(1)
		require.NoError(t, err)
		_, err = p.ApplySale(1)
		assert.Error(t, err)
	})

	t.Run("rejects non-positive sale quantity", func(t *testing.T) {
		p := newStockedProduct(t, 3)
		_, err := p.ApplySale(0)
		assert.Error(t, err)
	})
}

func TestProduct_Relist(t *testing.T) {
	t.Run("relists a sold product", func(t *testing.T) {
		p := newUniqueProduct(t)
		_, err := p.ApplySale(1)
		require.NoError(t, err)

		require.NoError(t, p.Relist())
		assert.Equal(t, ProductStatusActive, p.Status)
		assert.Equal(t, 1, p.Quantity, "relisting a unique product restores one unit")
	})

	t.Run("relists an ended product", func(t *testing.T) {
		p := newStockedProduct(t, 2)
		require.NoError(t, p.End())
		require.NoError(t, p.Relist())
		assert.Equal(t, ProductStatusActive, p.Status)
	})

	t.Run("never relists an archived product", func(t *testing.T) {
		p := newUniqueProduct(t)
		_, err := p.ApplySale(1)
		require.NoError(t, err)
		require.NoError(t, p.Archive())

		assert.Error(t, p.Relist())
		assert.Equal(t, ProductStatusArchived, p.Status)
	})

	t.Run("rejects relist of an active product", func(t *testing.T) {
		p := newStockedProduct(t, 1)
		assert.Error(t, p.Relist())
	})
}

func TestProduct_Archive(t *testing.T) {
	t.Run("archives an ended product", func(t *testing.T) {
		p := newUniqueProduct(t)
		require.NoError(t, p.End())
		require.NoError(t, p.Archive())
		assert.Equal(t, ProductStatusArchived, p.Status)
	})

	t.Run("refuses to archive with remaining stock", func(t *testing.T) {
		p := newStockedProduct(t, 4)
		require.NoError(t, p.End())
		assert.Error(t, p.Archive())
	})

	t.Run("archive is not repeatable", func(t *testing.T) {
		p := newUniqueProduct(t)
		require.NoError(t, p.End())
		require.NoError(t, p.Archive())
		assert.Error(t, p.Archive())
	})
}

func TestProduct_SetQuantity(t *testing.T) {
	p := newStockedProduct(t, 1)
	require.NoError(t, p.SetQuantity(7))
	assert.Equal(t, 7, p.Quantity)
	assert.Error(t, p.SetQuantity(-1))
}
