package dto

import (
	"time"

	syncdomain "github.com/channelsync/backend/internal/domain/sync"
)

// SyncEventResponse represents a detected change event in API responses
type SyncEventResponse struct {
	ID          string    `json:"id"`
	Platform    string    `json:"platform"`
	ExternalID  string    `json:"external_id"`
	ChangeType  string    `json:"change_type"`
	Payload     string    `json:"payload"`
	ContentHash string    `json:"content_hash"`
	DetectedAt  time.Time `json:"detected_at"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToSyncEventResponse converts a domain event to its API representation
func ToSyncEventResponse(event *syncdomain.SyncEvent) SyncEventResponse {
	return SyncEventResponse{
		ID:          event.ID.String(),
		Platform:    event.Platform.String(),
		ExternalID:  event.ExternalID,
		ChangeType:  event.ChangeType.String(),
		Payload:     event.Payload,
		ContentHash: event.ContentHash,
		DetectedAt:  event.DetectedAt,
		Status:      event.Status.String(),
		Notes:       event.Notes,
		CreatedAt:   event.CreatedAt,
	}
}

// ToSyncEventResponses converts a slice of domain events
func ToSyncEventResponses(events []*syncdomain.SyncEvent) []SyncEventResponse {
	responses := make([]SyncEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, ToSyncEventResponse(event))
	}
	return responses
}

// ListEventsRequest represents query parameters for the event log listing
type ListEventsRequest struct {
	ListRequest
	Platform   string `form:"platform" binding:"omitempty,platform"`
	Status     string `form:"status" binding:"omitempty,oneof=pending processed error skipped"`
	ChangeType string `form:"change_type" binding:"omitempty,oneof=new_listing price quantity_change status_change order_sale removed_listing"`
	Since      string `form:"since" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// TriggerSyncRequest represents a manual sync trigger request
type TriggerSyncRequest struct {
	Platform string `form:"platform"`
}

// SyncJobResponse represents a queued or completed sync job
type SyncJobResponse struct {
	ID              string     `json:"id"`
	Platform        string     `json:"platform"`
	Trigger         string     `json:"trigger"`
	Status          string     `json:"status"`
	Error           string     `json:"error,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	EventsDetected  int        `json:"events_detected"`
	EventsDeduped   int        `json:"events_deduped"`
	EventsProcessed int        `json:"events_processed"`
	EventsApplied   int        `json:"events_applied"`
	EventsFailed    int        `json:"events_failed"`
}
