package inventory

import (
	"strings"
	"time"

	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductStatus represents the lifecycle status of a product
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "DRAFT"
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusSold     ProductStatus = "SOLD"
	ProductStatusEnded    ProductStatus = "ENDED"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// IsValid returns true if the status is valid
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusDraft, ProductStatusActive, ProductStatusSold,
		ProductStatusEnded, ProductStatusArchived:
		return true
	default:
		return false
	}
}

// String returns the string representation of ProductStatus
func (s ProductStatus) String() string {
	return string(s)
}

// Product is the canonical inventory record and the aggregate root for
// reconciliation. It is mutated only by the reconciliation engine; detection
// reads it, propagation reads the links derived from it.
type Product struct {
	shared.BaseAggregateRoot
	SKU      string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Title    string          `gorm:"type:varchar(200);not null"`
	Quantity int             `gorm:"not null;default:0"`
	// IsStocked distinguishes multi-unit products from unique items.
	// A sale on a stocked product decrements quantity; a sale on a unique
	// item ends it everywhere.
	IsStocked bool            `gorm:"not null;default:false"`
	Status    ProductStatus   `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	Price     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a new active product
func NewProduct(sku, title string, price decimal.Decimal, quantity int, isStocked bool) (*Product, error) {
	if err := validateSKU(sku); err != nil {
		return nil, err
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	if quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	if !isStocked && quantity > 1 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Unique products cannot hold more than one unit")
	}

	product := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SKU:               strings.ToUpper(sku),
		Title:             title,
		Quantity:          quantity,
		IsStocked:         isStocked,
		Status:            ProductStatusActive,
		Price:             price,
	}

	product.AddDomainEvent(NewProductCreatedEvent(product))

	return product, nil
}

// ApplySale applies a sale of the given quantity to the product.
// For stocked products the quantity is decremented and the product only
// transitions to SOLD when it reaches zero. For unique products any sale
// transitions the product to SOLD immediately.
// A sale that would drive quantity negative is rejected with
// ErrInsufficientStock; the quantity is never clamped.
func (p *Product) ApplySale(quantitySold int) (int, error) {
	if quantitySold <= 0 {
		return p.Quantity, shared.NewDomainError("INVALID_QUANTITY", "Sale quantity must be positive")
	}
	if p.Status != ProductStatusActive {
		return p.Quantity, shared.NewDomainError("INVALID_STATE", "Only active products can record sales")
	}

	if !p.IsStocked {
		p.Quantity = 0
		p.markSold()
		return 0, nil
	}

	if quantitySold > p.Quantity {
		return p.Quantity, shared.ErrInsufficientStock
	}

	oldQuantity := p.Quantity
	p.Quantity -= quantitySold
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	p.AddDomainEvent(NewProductQuantityChangedEvent(p, oldQuantity))

	if p.Quantity == 0 {
		p.markSold()
	}

	return p.Quantity, nil
}

// markSold transitions the product to SOLD
func (p *Product) markSold() {
	oldStatus := p.Status
	p.Status = ProductStatusSold
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	p.AddDomainEvent(NewProductStatusChangedEvent(p, oldStatus))
}

// Relist reactivates a previously sold or ended product.
// Never valid from ARCHIVED.
func (p *Product) Relist() error {
	switch p.Status {
	case ProductStatusSold, ProductStatusEnded:
		// allowed
	case ProductStatusArchived:
		return shared.NewDomainError("INVALID_STATE", "Archived products cannot be relisted")
	case ProductStatusActive:
		return shared.NewDomainError("ALREADY_ACTIVE", "Product is already active")
	default:
		return shared.NewDomainError("INVALID_STATE", "Product cannot be relisted from its current status")
	}

	oldStatus := p.Status
	p.Status = ProductStatusActive
	if !p.IsStocked && p.Quantity == 0 {
		p.Quantity = 1
	}
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	p.AddDomainEvent(NewProductRelistedEvent(p, oldStatus))

	return nil
}

// End marks the product as ended without a sale
func (p *Product) End() error {
	if p.Status == ProductStatusEnded || p.Status == ProductStatusArchived {
		return shared.NewDomainError("INVALID_STATE", "Product is already ended")
	}

	oldStatus := p.Status
	p.Status = ProductStatusEnded
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	p.AddDomainEvent(NewProductStatusChangedEvent(p, oldStatus))

	return nil
}

// Archive archives the product. Only valid once every listing is gone and
// no stock remains; the caller (reconciliation engine) enforces the link
// condition, this method enforces the stock condition.
func (p *Product) Archive() error {
	if p.Status == ProductStatusArchived {
		return shared.NewDomainError("ALREADY_ARCHIVED", "Product is already archived")
	}
	if p.IsStocked && p.Quantity > 0 {
		return shared.NewDomainError("INVALID_STATE", "Cannot archive a product with remaining stock")
	}

	oldStatus := p.Status
	p.Status = ProductStatusArchived
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	p.AddDomainEvent(NewProductStatusChangedEvent(p, oldStatus))

	return nil
}

// SetQuantity sets the available quantity directly (manual correction path)
func (p *Product) SetQuantity(quantity int) error {
	if quantity < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}

	oldQuantity := p.Quantity
	p.Quantity = quantity
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	p.AddDomainEvent(NewProductQuantityChangedEvent(p, oldQuantity))

	return nil
}

// UpdatePrice updates the canonical price
func (p *Product) UpdatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}

	p.Price = price
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	return nil
}

// IsActive returns true if the product is active
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// IsSold returns true if the product has sold out
func (p *Product) IsSold() bool {
	return p.Status == ProductStatusSold
}

// validateSKU validates the product SKU
func validateSKU(sku string) error {
	if sku == "" {
		return shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if len(sku) > 50 {
		return shared.NewDomainError("INVALID_SKU", "SKU cannot exceed 50 characters")
	}
	for _, r := range sku {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-') {
			return shared.NewDomainError("INVALID_SKU", "SKU can only contain letters, numbers, underscores, and hyphens")
		}
	}
	return nil
}

// validateTitle validates the product title
func validateTitle(title string) error {
	if title == "" {
		return shared.NewDomainError("INVALID_TITLE", "Title cannot be empty")
	}
	if len(title) > 200 {
		return shared.NewDomainError("INVALID_TITLE", "Title cannot exceed 200 characters")
	}
	return nil
}
