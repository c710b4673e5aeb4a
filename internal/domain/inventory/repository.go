package inventory

import (
	"context"

	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/google/uuid"
)

// ProductRepository defines the persistence port for products
type ProductRepository interface {
	// FindByID finds a product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindBySKU finds a product by its SKU. The SKU doubles as the
	// platform-agnostic matching key: a new listing whose reference matches
	// an existing SKU is linked rather than duplicated.
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// Save creates or updates a product
	Save(ctx context.Context, product *Product) error
}

// PlatformLinkRepository defines the persistence port for platform links
type PlatformLinkRepository interface {
	// FindByID finds a link by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*PlatformLink, error)

	// FindByExternalID finds the link for a listing on a platform
	FindByExternalID(ctx context.Context, code platform.Code, externalID string) (*PlatformLink, error)

	// FindByProduct finds all links for a product
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]*PlatformLink, error)

	// FindByPlatform finds all links for a platform (the local snapshot a
	// detection run diffs against)
	FindByPlatform(ctx context.Context, code platform.Code) ([]*PlatformLink, error)

	// FindByProductAndPlatform finds the single link for a (product, platform) pair
	FindByProductAndPlatform(ctx context.Context, productID uuid.UUID, code platform.Code) (*PlatformLink, error)

	// ExistsFor reports whether a link already exists for a (product, platform) pair
	ExistsFor(ctx context.Context, productID uuid.UUID, code platform.Code) (bool, error)

	// Save creates or updates a link
	Save(ctx context.Context, link *PlatformLink) error
}
