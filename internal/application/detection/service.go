package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/channelsync/backend/internal/domain/inventory"
	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/domain/shared"
	syncdomain "github.com/channelsync/backend/internal/domain/sync"
	"github.com/channelsync/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Report
// ---------------------------------------------------------------------------

// Report summarizes one detection run for one platform
type Report struct {
	RunID            uuid.UUID     `json:"run_id"`
	Platform         platform.Code `json:"platform"`
	ListingsFetched  int           `json:"listings_fetched"`
	OrdersFetched    int           `json:"orders_fetched"`
	EventsDetected   int           `json:"events_detected"`
	EventsDeduped    int           `json:"events_deduped"`
	EchoesSuppressed int           `json:"echoes_suppressed"`
	SnapshotsDropped int           `json:"snapshots_dropped"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
}

// Config tunes a detection service
type Config struct {
	// FetchTimeout bounds a single adapter fetch
	FetchTimeout time.Duration
	// OrderLookback is how far back the order feed is queried each run
	OrderLookback time.Duration
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service runs the detection pipeline: fetch remote listings, diff them
// against the local baseline, classify the differences, and append them to
// the event log. Detection never mutates inventory; it only records facts
// for the reconciliation engine to act on.
type Service struct {
	registry   platform.Registry
	linkRepo   inventory.PlatformLinkRepository
	eventLog   syncdomain.EventLog
	publisher  shared.EventPublisher
	suppressor platform.EchoSuppressor
	config     Config
	logger     *zap.Logger
}

// NewService creates a new detection service. The suppressor may be nil,
// which disables echo suppression.
func NewService(
	registry platform.Registry,
	linkRepo inventory.PlatformLinkRepository,
	eventLog syncdomain.EventLog,
	publisher shared.EventPublisher,
	suppressor platform.EchoSuppressor,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 60 * time.Second
	}
	if config.OrderLookback <= 0 {
		config.OrderLookback = 24 * time.Hour
	}
	return &Service{
		registry:   registry,
		linkRepo:   linkRepo,
		eventLog:   eventLog,
		publisher:  publisher,
		suppressor: suppressor,
		config:     config,
		logger:     logger,
	}
}

// DetectAll runs detection for every registered platform concurrently.
// A failure on one platform never aborts the others; the joined error
// reports which platforms failed.
func (s *Service) DetectAll(ctx context.Context) ([]*Report, error) {
	adapters := s.registry.List()
	reports := make([]*Report, 0, len(adapters))
	errs := make([]error, 0)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, adapter := range adapters {
		wg.Add(1)
		go func(code platform.Code) {
			defer wg.Done()
			report, err := s.Detect(ctx, code)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", code, err))
				return
			}
			reports = append(reports, report)
		}(adapter.Code())
	}
	wg.Wait()

	return reports, errors.Join(errs...)
}

// Detect runs one detection pass for a single platform
func (s *Service) Detect(ctx context.Context, code platform.Code) (*Report, error) {
	ctx, span := telemetry.StartSpan(ctx, "detection.run",
		telemetry.WithAttribute("platform", code.String()),
	)
	defer span.End()

	adapter, err := s.registry.Get(code)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := &Report{
		RunID:     uuid.New(),
		Platform:  code,
		StartedAt: time.Now(),
	}
	s.publish(ctx, syncdomain.NewSyncRunStartedEvent(report.RunID, code))

	candidates, err := s.collect(ctx, adapter, report)
	if err != nil {
		telemetry.RecordError(span, err)
		s.publish(ctx, syncdomain.NewSyncRunFailedEvent(report.RunID, code, err.Error()))
		return nil, err
	}

	appended, err := s.appendDeduped(ctx, candidates, report)
	if err != nil {
		telemetry.RecordError(span, err)
		s.publish(ctx, syncdomain.NewSyncRunFailedEvent(report.RunID, code, err.Error()))
		return nil, err
	}

	report.EventsDetected = appended
	report.FinishedAt = time.Now()
	s.publish(ctx, syncdomain.NewSyncRunCompletedEvent(report.RunID, code, report.EventsDetected, report.EventsDeduped))

	s.logger.Info("Detection run completed",
		zap.String("run_id", report.RunID.String()),
		zap.String("platform", code.String()),
		zap.Int("listings_fetched", report.ListingsFetched),
		zap.Int("orders_fetched", report.OrdersFetched),
		zap.Int("events_detected", report.EventsDetected),
		zap.Int("events_deduped", report.EventsDeduped),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)

	return report, nil
}

// collect fetches remote state and diffs it into candidate events
func (s *Service) collect(ctx context.Context, adapter platform.Adapter, report *Report) ([]*syncdomain.SyncEvent, error) {
	code := adapter.Code()

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	snapshots, err := adapter.FetchListings(fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	report.ListingsFetched = len(snapshots)

	links, err := s.linkRepo.FindByPlatform(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}

	baseline := make(map[string]*inventory.PlatformLink, len(links))
	for _, link := range links {
		if link.ExternalID != "" {
			baseline[link.ExternalID] = link
		}
	}

	candidates := make([]*syncdomain.SyncEvent, 0)
	// quantityIdx remembers quantity_change candidates so an order sale for
	// the same listing can collapse them: the sale already explains the drop.
	quantityIdx := make(map[string]int)
	seen := make(map[string]bool, len(snapshots))

	for _, snap := range snapshots {
		if err := snap.Validate(); err != nil {
			report.SnapshotsDropped++
			s.logger.Warn("Dropping malformed snapshot",
				zap.String("platform", code.String()),
				zap.String("external_id", snap.ExternalID),
				zap.Error(err),
			)
			continue
		}
		seen[snap.ExternalID] = true

		link, known := baseline[snap.ExternalID]
		if !known {
			event, err := syncdomain.NewListingEvent(syncdomain.ChangeTypeNewListing, snap)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, event)
			continue
		}

		changeType, changed := classify(snap, link.Snapshot())
		if !changed {
			continue
		}
		if s.suppressed(ctx, code, snap.ExternalID, report) {
			continue
		}
		event, err := syncdomain.NewListingEvent(changeType, snap)
		if err != nil {
			return nil, err
		}
		if changeType == syncdomain.ChangeTypeQuantity {
			quantityIdx[snap.ExternalID] = len(candidates)
		}
		candidates = append(candidates, event)
	}

	// Listings known locally but absent from the remote feed were removed
	// out of band. The baseline snapshot, restamped as ended, carries enough
	// context for reconciliation.
	for externalID, link := range baseline {
		if seen[externalID] || !link.IsActive() {
			continue
		}
		if s.suppressed(ctx, code, externalID, report) {
			continue
		}
		snap := link.Snapshot()
		snap.Status = platform.ListingStatusEnded
		snap.ObservedAt = time.Now()
		event, err := syncdomain.NewListingEvent(syncdomain.ChangeTypeRemovedListing, snap)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, event)
	}

	orders, err := s.collectOrders(ctx, adapter, report)
	if err != nil {
		return nil, err
	}
	for _, event := range orders {
		if idx, ok := quantityIdx[event.ExternalID]; ok {
			candidates[idx] = nil
			delete(quantityIdx, event.ExternalID)
		}
		candidates = append(candidates, event)
	}

	compact := candidates[:0]
	for _, event := range candidates {
		if event != nil {
			compact = append(compact, event)
		}
	}
	return compact, nil
}

// collectOrders queries the platform's order feed when it has one
func (s *Service) collectOrders(ctx context.Context, adapter platform.Adapter, report *Report) ([]*syncdomain.SyncEvent, error) {
	feed, ok := adapter.(platform.OrderFeed)
	if !ok {
		return nil, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	orders, err := feed.FetchOrders(fetchCtx, time.Now().Add(-s.config.OrderLookback))
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	report.OrdersFetched = len(orders)

	events := make([]*syncdomain.SyncEvent, 0, len(orders))
	for _, order := range orders {
		if err := order.Validate(); err != nil {
			report.SnapshotsDropped++
			s.logger.Warn("Dropping malformed order",
				zap.String("platform", adapter.Code().String()),
				zap.String("external_id", order.ExternalID),
				zap.Error(err),
			)
			continue
		}
		event, err := syncdomain.NewOrderSaleEvent(order)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// appendDeduped drops candidates whose content hash already sits in the
// event log, then durably appends the rest in one batch. Listing events
// dedup against pending events only: once processed, the link baseline
// moves, so an identical digest later is a genuinely new change. Sale
// digests are stable per order and the feed replays orders for the whole
// lookback window, so sales dedup against any status.
func (s *Service) appendDeduped(ctx context.Context, candidates []*syncdomain.SyncEvent, report *Report) (int, error) {
	fresh := make([]*syncdomain.SyncEvent, 0, len(candidates))
	for _, event := range candidates {
		exists, err := s.hashSeen(ctx, event)
		if err != nil {
			return 0, fmt.Errorf("dedup check: %w", err)
		}
		if exists {
			report.EventsDeduped++
			continue
		}
		fresh = append(fresh, event)
	}

	if len(fresh) == 0 {
		return 0, nil
	}
	if err := s.eventLog.AppendBatch(ctx, fresh); err != nil {
		return 0, fmt.Errorf("append events: %w", err)
	}
	return len(fresh), nil
}

// hashSeen reports whether the event's content hash disqualifies it from
// being appended again
func (s *Service) hashSeen(ctx context.Context, event *syncdomain.SyncEvent) (bool, error) {
	if event.IsSale() {
		return s.eventLog.ExistsWithHash(ctx, event.ContentHash)
	}
	return s.eventLog.ExistsPendingWithHash(ctx, event.ContentHash)
}

// suppressed reports whether a listing sits inside its echo-suppression
// window. Suppression store failures fail open: a missed suppression only
// costs one redundant event, which reconciliation absorbs as a no-op.
func (s *Service) suppressed(ctx context.Context, code platform.Code, externalID string, report *Report) bool {
	if s.suppressor == nil {
		return false
	}
	hit, err := s.suppressor.IsSuppressed(ctx, code, externalID)
	if err != nil {
		s.logger.Warn("Echo suppression lookup failed",
			zap.String("platform", code.String()),
			zap.String("external_id", externalID),
			zap.Error(err),
		)
		return false
	}
	if hit {
		report.EchoesSuppressed++
	}
	return hit
}

// publish pushes a run notification; failures are logged, never fatal
func (s *Service) publish(ctx context.Context, event shared.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish run event",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}

// classify compares a remote snapshot against the local baseline and returns
// the single highest-precedence change. Status wins over price, price wins
// over quantity, so one reconciliation pass handles the dominant transition
// and the follow-up run picks up anything left.
func classify(remote, local platform.ListingSnapshot) (syncdomain.ChangeType, bool) {
	if remote.Status != local.Status {
		return syncdomain.ChangeTypeStatus, true
	}
	if !remote.Price.Equal(local.Price) {
		return syncdomain.ChangeTypePrice, true
	}
	if remote.Quantity != local.Quantity {
		return syncdomain.ChangeTypeQuantity, true
	}
	return "", false
}
