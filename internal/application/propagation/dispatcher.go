package propagation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/channelsync/backend/internal/domain/inventory"
	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config tunes the propagation service
type Config struct {
	// QueueSize bounds each per-link action queue
	QueueSize int
	// SuppressTTL is how long a pushed write shadows detection for that
	// listing. It should cover at least one polling interval.
	SuppressTTL time.Duration
	// Retry is the shared retry/backoff policy for platform writes
	Retry RetryPolicy
}

// Service executes propagation actions against the platforms. Each link gets
// its own queue and worker, so writes to one listing are strictly ordered
// while different listings proceed in parallel. Exhausted retries leave the
// link in sync_status=error for the manual retry endpoint to pick up.
type Service struct {
	registry    platform.Registry
	linkRepo    inventory.PlatformLinkRepository
	productRepo inventory.ProductRepository
	suppressor  platform.EchoSuppressor
	config      Config
	logger      *zap.Logger

	mu      sync.Mutex
	queues  map[uuid.UUID]chan Action
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewService creates a new propagation service
func NewService(
	registry platform.Registry,
	linkRepo inventory.PlatformLinkRepository,
	productRepo inventory.ProductRepository,
	suppressor platform.EchoSuppressor,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	if config.SuppressTTL <= 0 {
		config.SuppressTTL = 5 * time.Minute
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = DefaultRetryPolicy()
	}
	return &Service{
		registry:    registry,
		linkRepo:    linkRepo,
		productRepo: productRepo,
		suppressor:  suppressor,
		config:      config,
		logger:      logger,
		queues:      make(map[uuid.UUID]chan Action),
	}
}

// Start begins accepting actions
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return shared.NewDomainError("ALREADY_STARTED", "Propagation service is already started")
	}
	s.baseCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.started = true
	s.logger.Info("Propagation service started",
		zap.Int("queue_size", s.config.QueueSize),
		zap.Duration("suppress_ttl", s.config.SuppressTTL),
		zap.Int("retry_max_attempts", s.config.Retry.MaxAttempts),
	)
	return nil
}

// Stop drains nothing; it cancels in-flight work and waits for the workers
// to exit. Unfinished links stay pending and are re-derived on manual retry
// or by the next reconciliation pass.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch enqueues actions on their per-link queues
func (s *Service) Dispatch(ctx context.Context, actions ...Action) error {
	for _, action := range actions {
		if !action.Kind.IsValid() {
			return shared.NewDomainError("INVALID_ACTION", "Unknown propagation action kind")
		}
		if action.LinkID == uuid.Nil {
			return shared.NewDomainError("INVALID_ACTION", "Propagation action requires a link")
		}

		queue, err := s.queueFor(action.LinkID)
		if err != nil {
			return err
		}

		select {
		case queue <- action:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.baseCtx.Done():
			return shared.NewDomainError("STOPPED", "Propagation service is stopped")
		}
	}
	return nil
}

// queueFor returns the action queue for a link, spawning its worker on first
// use. Queues live for the process lifetime; their count is bounded by the
// number of links.
func (s *Service) queueFor(linkID uuid.UUID) (chan Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, shared.NewDomainError("NOT_STARTED", "Propagation service is not started")
	}
	queue, ok := s.queues[linkID]
	if !ok {
		queue = make(chan Action, s.config.QueueSize)
		s.queues[linkID] = queue
		s.wg.Add(1)
		go s.worker(linkID, queue)
	}
	return queue, nil
}

// worker executes actions for one link in order
func (s *Service) worker(linkID uuid.UUID, queue chan Action) {
	defer s.wg.Done()
	s.logger.Debug("Propagation worker started", zap.String("link_id", linkID.String()))

	for {
		select {
		case <-s.baseCtx.Done():
			s.logger.Debug("Propagation worker stopping", zap.String("link_id", linkID.String()))
			return
		case action := <-queue:
			s.execute(s.baseCtx, action)
		}
	}
}

// execute pushes one action to its platform under the retry policy and
// records the result on the link
func (s *Service) execute(ctx context.Context, action Action) {
	link, err := s.linkRepo.FindByID(ctx, action.LinkID)
	if err != nil {
		s.logger.Error("Propagation target link not found",
			zap.String("link_id", action.LinkID.String()),
			zap.String("kind", action.Kind.String()),
			zap.Error(err),
		)
		return
	}

	adapter, err := s.registry.Get(link.Platform)
	if err != nil {
		s.fail(ctx, link, action, err)
		return
	}

	if action.Kind != ActionCreateMirror && link.ExternalID == "" {
		// The platform has not resolved the listing id yet. Leave the link
		// pending; a later detection run backfills the id and manual retry
		// re-derives the action.
		link.MarkPending()
		s.save(ctx, link)
		s.logger.Warn("Deferring propagation until listing id resolves",
			zap.String("link_id", link.ID.String()),
			zap.String("platform", link.Platform.String()),
			zap.String("kind", action.Kind.String()),
		)
		return
	}

	// The suppression marker goes down before the outbound write so detection
	// can never observe the write ahead of the marker. A failed write leaves a
	// stale marker that simply expires.
	s.suppress(ctx, link.Platform, link.ExternalID)

	var createdID string
	err = s.config.Retry.Do(ctx, func(ctx context.Context) error {
		switch action.Kind {
		case ActionEnd:
			return adapter.EndListing(ctx, link.ExternalID)
		case ActionSetQuantity:
			return adapter.SetQuantity(ctx, link.ExternalID, action.Quantity)
		case ActionRelist:
			return adapter.Relist(ctx, link.ExternalID)
		case ActionCreateMirror:
			id, err := adapter.CreateListing(ctx, *action.Draft)
			if err != nil {
				return err
			}
			createdID = id
			return nil
		default:
			return shared.NewDomainError("INVALID_ACTION", "Unknown propagation action kind")
		}
	})
	if err != nil {
		s.fail(ctx, link, action, err)
		return
	}

	if createdID != "" {
		s.suppress(ctx, link.Platform, createdID)
	}

	s.apply(link, action, createdID)
	link.MarkSynced()
	s.save(ctx, link)

	s.logger.Info("Propagated change to platform",
		zap.String("link_id", link.ID.String()),
		zap.String("platform", link.Platform.String()),
		zap.String("kind", action.Kind.String()),
	)
}

// suppress records an echo-suppression marker for the listing. Suppression
// store failures only cost one redundant detection event, so they log and
// move on.
func (s *Service) suppress(ctx context.Context, code platform.Code, externalID string) {
	if s.suppressor == nil || externalID == "" {
		return
	}
	if err := s.suppressor.Suppress(ctx, code, externalID, s.config.SuppressTTL); err != nil {
		s.logger.Warn("Failed to record echo suppression",
			zap.String("platform", code.String()),
			zap.String("external_id", externalID),
			zap.Error(err),
		)
	}
}

// apply records the pushed state as the link's new baseline
func (s *Service) apply(link *inventory.PlatformLink, action Action, createdID string) {
	switch action.Kind {
	case ActionEnd:
		link.End()
		_ = link.UpdateBaseline(link.Price, 0, inventory.LinkStatusEnded)
	case ActionSetQuantity:
		_ = link.UpdateBaseline(link.Price, action.Quantity, link.Status)
	case ActionRelist:
		if !link.IsActive() {
			_ = link.Reactivate()
		}
		_ = link.UpdateBaseline(link.Price, action.Quantity, inventory.LinkStatusActive)
	case ActionCreateMirror:
		if createdID != "" {
			_ = link.SetExternalID(createdID)
		}
		if action.Draft != nil {
			_ = link.UpdateBaseline(action.Draft.Price, action.Draft.Quantity, inventory.LinkStatusActive)
		}
	}
}

// fail marks the link for manual intervention after retries are exhausted
func (s *Service) fail(ctx context.Context, link *inventory.PlatformLink, action Action, cause error) {
	link.MarkSyncError(fmt.Sprintf("%s: %v", action.Kind, cause))
	s.save(ctx, link)
	s.logger.Error("Propagation failed after retries",
		zap.String("link_id", link.ID.String()),
		zap.String("platform", link.Platform.String()),
		zap.String("kind", action.Kind.String()),
		zap.Error(cause),
	)
}

func (s *Service) save(ctx context.Context, link *inventory.PlatformLink) {
	if err := s.linkRepo.Save(ctx, link); err != nil {
		s.logger.Error("Failed to persist link state",
			zap.String("link_id", link.ID.String()),
			zap.Error(err),
		)
	}
}

// ---------------------------------------------------------------------------
// Manual retry
// ---------------------------------------------------------------------------

// ManualRetry re-derives and re-dispatches the outstanding write for a link
// stuck in sync_status=error. The action is reconstructed from the current
// divergence between the product and the link baseline, so it stays correct
// even across process restarts.
func (s *Service) ManualRetry(ctx context.Context, linkID uuid.UUID) error {
	link, err := s.linkRepo.FindByID(ctx, linkID)
	if err != nil {
		return err
	}
	if link.SyncStatus != inventory.SyncStatusError {
		return shared.NewDomainError("NOT_RETRYABLE", "Link is not in a failed sync state")
	}

	product, err := s.productRepo.FindByID(ctx, link.ProductID)
	if err != nil {
		return err
	}

	action, ok := s.deriveAction(product, link)
	if !ok {
		// Nothing diverges anymore; the failed write was superseded.
		link.MarkSynced()
		return s.linkRepo.Save(ctx, link)
	}

	link.MarkPending()
	if err := s.linkRepo.Save(ctx, link); err != nil {
		return err
	}
	return s.Dispatch(ctx, action)
}

// deriveAction computes the write that brings the link in line with the
// product, or false when they already agree
func (s *Service) deriveAction(product *inventory.Product, link *inventory.PlatformLink) (Action, bool) {
	base := Action{
		LinkID:     link.ID,
		Platform:   link.Platform,
		ExternalID: link.ExternalID,
	}

	if link.ExternalID == "" && link.IsActive() {
		base.Kind = ActionCreateMirror
		base.Draft = &platform.ListingDraft{
			Reference: product.SKU,
			Title:     product.Title,
			Price:     product.Price,
			Quantity:  product.Quantity,
		}
		return base, true
	}

	if product.IsActive() {
		if !link.IsActive() {
			base.Kind = ActionRelist
			base.Quantity = product.Quantity
			return base, true
		}
		if link.Quantity != product.Quantity {
			base.Kind = ActionSetQuantity
			base.Quantity = product.Quantity
			return base, true
		}
		return Action{}, false
	}

	if link.IsActive() {
		base.Kind = ActionEnd
		return base, true
	}
	return Action{}, false
}

// Ensure Service implements Dispatcher
var _ Dispatcher = (*Service)(nil)
