package inventory

import (
	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeProduct = "Product"

// Event type constants
const (
	EventTypeProductCreated         = "ProductCreated"
	EventTypeProductStatusChanged   = "ProductStatusChanged"
	EventTypeProductQuantityChanged = "ProductQuantityChanged"
	EventTypeProductRelisted        = "ProductRelisted"
)

// ProductCreatedEvent is published when a new product is created
type ProductCreatedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	Title     string    `json:"title"`
	IsStocked bool      `json:"is_stocked"`
	Quantity  int       `json:"quantity"`
}

// NewProductCreatedEvent creates a new ProductCreatedEvent
func NewProductCreatedEvent(product *Product) *ProductCreatedEvent {
	return &ProductCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductCreated, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		SKU:             product.SKU,
		Title:           product.Title,
		IsStocked:       product.IsStocked,
		Quantity:        product.Quantity,
	}
}

// ProductStatusChangedEvent is published when a product's lifecycle status changes
type ProductStatusChangedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID     `json:"product_id"`
	SKU       string        `json:"sku"`
	OldStatus ProductStatus `json:"old_status"`
	NewStatus ProductStatus `json:"new_status"`
}

// NewProductStatusChangedEvent creates a new ProductStatusChangedEvent
func NewProductStatusChangedEvent(product *Product, oldStatus ProductStatus) *ProductStatusChangedEvent {
	return &ProductStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductStatusChanged, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		SKU:             product.SKU,
		OldStatus:       oldStatus,
		NewStatus:       product.Status,
	}
}

// ProductQuantityChangedEvent is published when available quantity changes
type ProductQuantityChangedEvent struct {
	shared.BaseDomainEvent
	ProductID   uuid.UUID `json:"product_id"`
	SKU         string    `json:"sku"`
	OldQuantity int       `json:"old_quantity"`
	NewQuantity int       `json:"new_quantity"`
}

// NewProductQuantityChangedEvent creates a new ProductQuantityChangedEvent
func NewProductQuantityChangedEvent(product *Product, oldQuantity int) *ProductQuantityChangedEvent {
	return &ProductQuantityChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductQuantityChanged, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		SKU:             product.SKU,
		OldQuantity:     oldQuantity,
		NewQuantity:     product.Quantity,
	}
}

// ProductRelistedEvent is published when a sold or ended product is reactivated
type ProductRelistedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID     `json:"product_id"`
	SKU       string        `json:"sku"`
	OldStatus ProductStatus `json:"old_status"`
}

// NewProductRelistedEvent creates a new ProductRelistedEvent
func NewProductRelistedEvent(product *Product, oldStatus ProductStatus) *ProductRelistedEvent {
	return &ProductRelistedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductRelisted, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		SKU:             product.SKU,
		OldStatus:       oldStatus,
	}
}
