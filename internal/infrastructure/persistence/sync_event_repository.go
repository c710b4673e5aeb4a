package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/channelsync/backend/internal/domain/platform"
	syncdomain "github.com/channelsync/backend/internal/domain/sync"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormEventLog implements the sync event log using GORM. Detected payloads
// are append-only; Mark only touches status, notes and updated_at.
type GormEventLog struct {
	db *gorm.DB
}

// NewGormEventLog creates a new GormEventLog
func NewGormEventLog(db *gorm.DB) *GormEventLog {
	return &GormEventLog{db: db}
}

// Append durably stores a new event
func (r *GormEventLog) Append(ctx context.Context, event *syncdomain.SyncEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// AppendBatch durably stores a batch of events from one detection run
func (r *GormEventLog) AppendBatch(ctx context.Context, events []*syncdomain.SyncEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(events).Error
}

// Pending returns pending events, oldest first
func (r *GormEventLog) Pending(ctx context.Context, code *platform.Code) ([]*syncdomain.SyncEvent, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", syncdomain.EventStatusPending)
	if code != nil {
		query = query.Where("platform = ?", *code)
	}

	var events []*syncdomain.SyncEvent
	if err := query.Order("detected_at ASC, created_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Mark updates the processing status and notes of an event
func (r *GormEventLog) Mark(ctx context.Context, id uuid.UUID, status syncdomain.EventStatus, notes string) error {
	if !status.IsValid() {
		return syncdomain.ErrInvalidEventStatus
	}
	result := r.db.WithContext(ctx).
		Model(&syncdomain.SyncEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"notes":      notes,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return syncdomain.ErrEventNotFound
	}
	return nil
}

// FindByID finds an event by its ID
func (r *GormEventLog) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.SyncEvent, error) {
	var event syncdomain.SyncEvent
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncdomain.ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

// ExistsPendingWithHash reports whether a pending event with the given
// content hash already exists
func (r *GormEventLog) ExistsPendingWithHash(ctx context.Context, contentHash string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&syncdomain.SyncEvent{}).
		Where("content_hash = ? AND status = ?", contentHash, syncdomain.EventStatusPending).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsWithHash reports whether any event with the given content hash
// exists, regardless of processing status
func (r *GormEventLog) ExistsWithHash(ctx context.Context, contentHash string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&syncdomain.SyncEvent{}).
		Where("content_hash = ?", contentHash).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns events matching the filter plus the total count, newest first
func (r *GormEventLog) List(ctx context.Context, filter syncdomain.EventFilter) ([]*syncdomain.SyncEvent, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&syncdomain.SyncEvent{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var events []*syncdomain.SyncEvent
	if err := query.Order("detected_at DESC, created_at DESC").Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// PurgeProcessedBefore deletes terminal events detected before the cutoff
func (r *GormEventLog) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status <> ? AND detected_at < ?", syncdomain.EventStatusPending, cutoff).
		Delete(&syncdomain.SyncEvent{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// applyFilter applies filter options to the query
func (r *GormEventLog) applyFilter(query *gorm.DB, filter syncdomain.EventFilter) *gorm.DB {
	if filter.Platform != nil {
		query = query.Where("platform = ?", *filter.Platform)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ChangeType != nil {
		query = query.Where("change_type = ?", *filter.ChangeType)
	}
	if filter.Since != nil {
		query = query.Where("detected_at >= ?", *filter.Since)
	}
	return query
}

// Ensure GormEventLog implements EventLog
var _ syncdomain.EventLog = (*GormEventLog)(nil)
