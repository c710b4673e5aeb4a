package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/channelsync/backend/internal/application/detection"
	"github.com/channelsync/backend/internal/application/propagation"
	"github.com/channelsync/backend/internal/application/reconcile"
	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/domain/shared"
	syncdomain "github.com/channelsync/backend/internal/domain/sync"
	"github.com/channelsync/backend/internal/infrastructure/scheduler"
	"github.com/channelsync/backend/internal/interfaces/http/dto"
	"github.com/channelsync/backend/internal/interfaces/http/middleware"
)

// SyncHandler exposes the sync engine: manual cycle triggers, direct
// detection and reconciliation runs, the event log, and link retries.
type SyncHandler struct {
	BaseHandler
	scheduler  *scheduler.SyncScheduler
	detector   *detection.Service
	reconciler *reconcile.Engine
	propagator *propagation.Service
	eventLog   syncdomain.EventLog
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(
	syncScheduler *scheduler.SyncScheduler,
	detector *detection.Service,
	reconciler *reconcile.Engine,
	propagator *propagation.Service,
	eventLog syncdomain.EventLog,
) *SyncHandler {
	return &SyncHandler{
		scheduler:  syncScheduler,
		detector:   detector,
		reconciler: reconciler,
		propagator: propagator,
		eventLog:   eventLog,
	}
}

// parsePlatform parses an optional platform query parameter.
// An empty value returns (nil, true) meaning all platforms.
func (h *SyncHandler) parsePlatform(c *gin.Context) (*platform.Code, bool) {
	raw := c.Query("platform")
	if raw == "" {
		return nil, true
	}
	code := platform.Code(strings.ToUpper(raw))
	if !code.IsValid() {
		h.BadRequest(c, "Unknown platform: "+raw)
		return nil, false
	}
	return &code, true
}

// TriggerSync queues a full detection-and-reconciliation cycle.
// POST /api/v1/sync/run?platform=EBAY
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	code, ok := h.parsePlatform(c)
	if !ok {
		return
	}

	job, err := h.scheduler.ScheduleSync(code, scheduler.SyncJobTriggerManual)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrSchedulerNotRunning):
			h.ErrorWithCode(c, dto.ErrCodeSchedulerStopped, "Sync scheduler is not running")
		case errors.Is(err, scheduler.ErrJobQueueFull):
			h.ErrorWithCode(c, dto.ErrCodeSyncQueueFull, "Sync job queue is full, try again later")
		default:
			h.HandleError(c, err)
		}
		return
	}

	h.Accepted(c, toSyncJobResponse(job))
}

// Detect runs detection synchronously and returns the per-platform reports.
// POST /api/v1/sync/detect?platform=ETSY
func (h *SyncHandler) Detect(c *gin.Context) {
	code, ok := h.parsePlatform(c)
	if !ok {
		return
	}

	if code != nil {
		report, err := h.detector.Detect(c.Request.Context(), *code)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, []*detection.Report{report})
		return
	}

	reports, err := h.detector.DetectAll(c.Request.Context())
	if err != nil && len(reports) == 0 {
		h.HandleError(c, err)
		return
	}
	// Partial failures still return the reports that completed.
	h.Success(c, reports)
}

// Reconcile drains pending events synchronously and returns the summary.
// POST /api/v1/sync/reconcile?platform=MERCARI
func (h *SyncHandler) Reconcile(c *gin.Context) {
	code, ok := h.parsePlatform(c)
	if !ok {
		return
	}

	summary, err := h.reconciler.Reconcile(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// ListEvents returns the event log, newest first.
// GET /api/v1/sync/events?platform=EBAY&status=pending&change_type=price&since=2026-08-01T00:00:00Z
func (h *SyncHandler) ListEvents(c *gin.Context) {
	var req dto.ListEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	req.Normalize()

	filter := syncdomain.EventFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	if req.Platform != "" {
		code := platform.Code(strings.ToUpper(req.Platform))
		if !code.IsValid() {
			h.BadRequest(c, "Unknown platform: "+req.Platform)
			return
		}
		filter.Platform = &code
	}
	if req.Status != "" {
		status := syncdomain.EventStatus(req.Status)
		if !status.IsValid() {
			h.BadRequest(c, "Unknown event status: "+req.Status)
			return
		}
		filter.Status = &status
	}
	if req.ChangeType != "" {
		changeType := syncdomain.ChangeType(req.ChangeType)
		if !changeType.IsValid() {
			h.BadRequest(c, "Unknown change type: "+req.ChangeType)
			return
		}
		filter.ChangeType = &changeType
	}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			h.BadRequest(c, "Invalid since timestamp, expected RFC3339")
			return
		}
		filter.Since = &since
	}

	events, total, err := h.eventLog.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, dto.ToSyncEventResponses(events), total, req.Page, req.PageSize)
}

// GetEvent returns a single event by ID.
// GET /api/v1/sync/events/:id
func (h *SyncHandler) GetEvent(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid event ID")
		return
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid event ID")
		return
	}

	event, err := h.eventLog.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, syncdomain.ErrEventNotFound) {
			h.NotFound(c, "Event not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ToSyncEventResponse(event))
}

// ListJobs returns recent sync job history, newest first.
// GET /api/v1/sync/jobs?limit=10
func (h *SyncHandler) ListJobs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.BadRequest(c, "Invalid limit")
			return
		}
		limit = parsed
	}

	jobs := h.scheduler.GetJobHistory(limit)
	responses := make([]dto.SyncJobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, toSyncJobResponse(job))
	}

	h.Success(c, responses)
}

// RetryLink re-dispatches the outstanding write for a failed platform link.
// POST /api/v1/sync/links/:id/retry
func (h *SyncHandler) RetryLink(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid link ID")
		return
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid link ID")
		return
	}

	if err := h.propagator.ManualRetry(c.Request.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Platform link not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, gin.H{"link_id": id.String(), "status": "retry_queued"})
}

// RegisterRoutes registers all sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	syncRoutes := rg.Group("/sync")
	{
		syncRoutes.POST("/run", h.TriggerSync)
		syncRoutes.POST("/detect", h.Detect)
		syncRoutes.POST("/reconcile", h.Reconcile)
		syncRoutes.GET("/events", h.ListEvents)
		syncRoutes.GET("/events/:id", h.GetEvent)
		syncRoutes.GET("/jobs", h.ListJobs)
		syncRoutes.POST("/links/:id/retry", h.RetryLink)
	}
}

// toSyncJobResponse converts a scheduler job to its API representation
func toSyncJobResponse(job *scheduler.SyncJob) dto.SyncJobResponse {
	return dto.SyncJobResponse{
		ID:              job.ID.String(),
		Platform:        job.PlatformLabel(),
		Trigger:         string(job.Trigger),
		Status:          string(job.Status),
		Error:           job.Error,
		SubmittedAt:     job.SubmittedAt,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
		EventsDetected:  job.EventsDetected,
		EventsDeduped:   job.EventsDeduped,
		EventsProcessed: job.EventsProcessed,
		EventsApplied:   job.EventsApplied,
		EventsFailed:    job.EventsFailed,
	}
}
