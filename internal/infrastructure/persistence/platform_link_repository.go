package persistence

import (
	"context"
	"errors"

	"github.com/channelsync/backend/internal/domain/inventory"
	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPlatformLinkRepository implements PlatformLinkRepository using GORM
type GormPlatformLinkRepository struct {
	db *gorm.DB
}

// NewGormPlatformLinkRepository creates a new GormPlatformLinkRepository
func NewGormPlatformLinkRepository(db *gorm.DB) *GormPlatformLinkRepository {
	return &GormPlatformLinkRepository{db: db}
}

// FindByID finds a link by its ID
func (r *GormPlatformLinkRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.PlatformLink, error) {
	var link inventory.PlatformLink
	if err := r.db.WithContext(ctx).First(&link, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

// FindByExternalID finds the link for a listing on a platform
func (r *GormPlatformLinkRepository) FindByExternalID(ctx context.Context, code platform.Code, externalID string) (*inventory.PlatformLink, error) {
	if externalID == "" {
		return nil, shared.ErrNotFound
	}
	var link inventory.PlatformLink
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND external_id = ?", code, externalID).
		First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

// FindByProduct finds all links for a product
func (r *GormPlatformLinkRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]*inventory.PlatformLink, error) {
	var links []*inventory.PlatformLink
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("platform ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// FindByPlatform finds all links for a platform
func (r *GormPlatformLinkRepository) FindByPlatform(ctx context.Context, code platform.Code) ([]*inventory.PlatformLink, error) {
	var links []*inventory.PlatformLink
	if err := r.db.WithContext(ctx).
		Where("platform = ?", code).
		Order("created_at ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// FindByProductAndPlatform finds the single link for a (product, platform) pair
func (r *GormPlatformLinkRepository) FindByProductAndPlatform(ctx context.Context, productID uuid.UUID, code platform.Code) (*inventory.PlatformLink, error) {
	var link inventory.PlatformLink
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND platform = ?", productID, code).
		First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

// ExistsFor reports whether a link already exists for a (product, platform) pair
func (r *GormPlatformLinkRepository) ExistsFor(ctx context.Context, productID uuid.UUID, code platform.Code) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&inventory.PlatformLink{}).
		Where("product_id = ? AND platform = ?", productID, code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a link
func (r *GormPlatformLinkRepository) Save(ctx context.Context, link *inventory.PlatformLink) error {
	return r.db.WithContext(ctx).Save(link).Error
}

// Ensure GormPlatformLinkRepository implements PlatformLinkRepository
var _ inventory.PlatformLinkRepository = (*GormPlatformLinkRepository)(nil)
