package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/channelsync/backend/internal/application/propagation"
	"github.com/channelsync/backend/internal/domain/inventory"
	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/domain/shared"
	syncdomain "github.com/channelsync/backend/internal/domain/sync"
	"github.com/channelsync/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Config tunes the reconciliation engine
type Config struct {
	// MirrorNewListings makes a product created from a detected listing get
	// mirrored onto every other configured platform
	MirrorNewListings bool
}

// Engine drives the reconciliation state machine. It drains pending events
// oldest first, resolves each to a product, and applies the change under
// that product's lock. Events are immutable; only their processing status
// moves, so a crashed pass resumes by re-reading what is still pending.
type Engine struct {
	productRepo inventory.ProductRepository
	linkRepo    inventory.PlatformLinkRepository
	eventLog    syncdomain.EventLog
	registry    platform.Registry
	dispatcher  propagation.Dispatcher
	sales       *SaleProcessor
	locks       *keyedMutex
	config      Config
	logger      *zap.Logger
}

// NewEngine creates a new reconciliation engine
func NewEngine(
	productRepo inventory.ProductRepository,
	linkRepo inventory.PlatformLinkRepository,
	eventLog syncdomain.EventLog,
	registry platform.Registry,
	dispatcher propagation.Dispatcher,
	config Config,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		productRepo: productRepo,
		linkRepo:    linkRepo,
		eventLog:    eventLog,
		registry:    registry,
		dispatcher:  dispatcher,
		sales:       NewSaleProcessor(productRepo, linkRepo, dispatcher, logger),
		locks:       newKeyedMutex(),
		config:      config,
		logger:      logger,
	}
}

// Reconcile drains the pending events for one platform, or for all
// platforms when code is nil
func (e *Engine) Reconcile(ctx context.Context, code *platform.Code) (*Summary, error) {
	platformLabel := "all"
	if code != nil {
		platformLabel = code.String()
	}
	ctx, span := telemetry.StartSpan(ctx, "reconcile.pass",
		telemetry.WithAttribute("platform", platformLabel),
	)
	defer span.End()

	events, err := e.eventLog.Pending(ctx, code)
	if err != nil {
		err = fmt.Errorf("load pending events: %w", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	summary := &Summary{StartedAt: time.Now()}
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		outcome := e.ProcessEvent(ctx, event)
		summary.add(outcome)

		if err := e.mark(ctx, event, outcome); err != nil {
			return summary, err
		}
	}
	summary.FinishedAt = time.Now()

	e.logger.Info("Reconciliation pass completed",
		zap.Int("processed", summary.Processed),
		zap.Int("applied", summary.Applied),
		zap.Int("no_change", summary.NoChange),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

// mark writes the outcome back onto the event. Events that were already
// terminal keep their original status and notes.
func (e *Engine) mark(ctx context.Context, event *syncdomain.SyncEvent, outcome Outcome) error {
	if event.Status.IsTerminal() {
		return nil
	}
	var status syncdomain.EventStatus
	switch outcome.Kind {
	case OutcomeApplied, OutcomeNoChange:
		status = syncdomain.EventStatusProcessed
	case OutcomeSkipped:
		status = syncdomain.EventStatusSkipped
	default:
		status = syncdomain.EventStatusError
	}
	return e.eventLog.Mark(ctx, event.ID, status, outcome.Notes)
}

// ProcessEvent applies one event to local state and returns what happened.
// Infrastructure failures surface as Failed outcomes so the event stays
// visible in the error queue instead of vanishing.
func (e *Engine) ProcessEvent(ctx context.Context, event *syncdomain.SyncEvent) Outcome {
	if event.Status.IsTerminal() {
		return Skipped(fmt.Sprintf("event already %s; not reapplied", event.Status))
	}
	outcome, err := e.process(ctx, event)
	if err != nil {
		e.logger.Error("Event reconciliation failed",
			zap.String("event_id", event.ID.String()),
			zap.String("platform", event.Platform.String()),
			zap.String("change_type", event.ChangeType.String()),
			zap.Error(err),
		)
		return Failed(err.Error())
	}
	return outcome
}

func (e *Engine) process(ctx context.Context, event *syncdomain.SyncEvent) (Outcome, error) {
	switch event.ChangeType {
	case syncdomain.ChangeTypeNewListing:
		return e.handleNewListing(ctx, event)
	case syncdomain.ChangeTypePrice:
		return e.handlePrice(ctx, event)
	case syncdomain.ChangeTypeQuantity:
		return e.handleQuantity(ctx, event)
	case syncdomain.ChangeTypeStatus:
		return e.handleStatus(ctx, event)
	case syncdomain.ChangeTypeOrderSale:
		return e.handleOrderSale(ctx, event)
	case syncdomain.ChangeTypeRemovedListing:
		return e.handleRemoved(ctx, event)
	default:
		return Outcome{}, syncdomain.ErrInvalidChangeType
	}
}

// ---------------------------------------------------------------------------
// New listings
// ---------------------------------------------------------------------------

func (e *Engine) handleNewListing(ctx context.Context, event *syncdomain.SyncEvent) (Outcome, error) {
	snap, err := event.ListingPayload()
	if err != nil {
		return Outcome{}, err
	}

	if _, err := e.linkRepo.FindByExternalID(ctx, snap.Platform, snap.ExternalID); err == nil {
		return NoChange("listing already linked"), nil
	} else if !isNotFound(err) {
		return Outcome{}, err
	}

	// The seller reference is the platform-agnostic matching key. A listing
	// carrying a known SKU joins that product; anything else becomes a new
	// product.
	if snap.Reference != "" {
		product, err := e.productRepo.FindBySKU(ctx, strings.ToUpper(snap.Reference))
		if err == nil {
			return e.attachListing(ctx, product, snap)
		}
		if !isNotFound(err) {
			return Outcome{}, err
		}
	}

	return e.createProduct(ctx, snap)
}

// attachListing joins a detected listing onto an existing product
func (e *Engine) attachListing(ctx context.Context, product *inventory.Product, snap platform.ListingSnapshot) (Outcome, error) {
	unlock := e.locks.Lock(product.ID.String())
	defer unlock()

	link, err := e.linkRepo.FindByProductAndPlatform(ctx, product.ID, snap.Platform)
	switch {
	case err == nil && link.ExternalID == "":
		// Asynchronous id resolution: the mirror we created earlier has now
		// shown up in the platform feed.
		if err := link.SetExternalID(snap.ExternalID); err != nil {
			return Outcome{}, err
		}
		if err := link.UpdateBaseline(snap.Price, snap.Quantity, inventory.LinkStatusActive); err != nil {
			return Outcome{}, err
		}
		link.MarkSynced()
		if err := e.linkRepo.Save(ctx, link); err != nil {
			return Outcome{}, err
		}
		return Applied(fmt.Sprintf("backfilled listing id on %s", snap.Platform)), nil

	case err == nil:
		return Failed(fmt.Sprintf("product %s already has listing %s on %s", product.SKU, link.ExternalID, snap.Platform)), nil

	case !isNotFound(err):
		return Outcome{}, err
	}

	link, err = inventory.NewPlatformLink(product.ID, snap.Platform, snap.ExternalID, snap.Price, snap.Quantity)
	if err != nil {
		return Outcome{}, err
	}
	link.MarkSynced()
	if err := e.linkRepo.Save(ctx, link); err != nil {
		return Outcome{}, err
	}
	return Applied(fmt.Sprintf("linked %s listing to product %s", snap.Platform, product.SKU)), nil
}

// createProduct imports a listing nobody matched as a brand-new product
func (e *Engine) createProduct(ctx context.Context, snap platform.ListingSnapshot) (Outcome, error) {
	sku := snap.Reference
	if sku == "" {
		sku = generatedSKU(snap.Platform, snap.ExternalID)
	}
	title := snap.Title
	if title == "" {
		title = fmt.Sprintf("Imported listing %s", snap.ExternalID)
	}

	unlock := e.locks.Lock("sku:" + strings.ToUpper(sku))
	defer unlock()

	product, err := inventory.NewProduct(sku, title, snap.Price, snap.Quantity, snap.Quantity > 1)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.productRepo.Save(ctx, product); err != nil {
		return Outcome{}, err
	}

	link, err := inventory.NewPlatformLink(product.ID, snap.Platform, snap.ExternalID, snap.Price, snap.Quantity)
	if err != nil {
		return Outcome{}, err
	}
	link.MarkSynced()
	if err := e.linkRepo.Save(ctx, link); err != nil {
		return Outcome{}, err
	}

	if e.config.MirrorNewListings {
		if err := e.mirror(ctx, product, snap.Platform); err != nil {
			return Outcome{}, err
		}
	}

	return Applied(fmt.Sprintf("created product %s from %s listing", product.SKU, snap.Platform)), nil
}

// mirror lists a freshly imported product on every other configured platform
func (e *Engine) mirror(ctx context.Context, product *inventory.Product, source platform.Code) error {
	draft := &platform.ListingDraft{
		Reference: product.SKU,
		Title:     product.Title,
		Price:     product.Price,
		Quantity:  product.Quantity,
	}

	for _, adapter := range e.registry.List() {
		code := adapter.Code()
		if code == source {
			continue
		}

		link, err := inventory.NewPlatformLink(product.ID, code, "", product.Price, product.Quantity)
		if err != nil {
			return err
		}
		if err := e.linkRepo.Save(ctx, link); err != nil {
			return err
		}

		action := propagation.Action{
			Kind:     propagation.ActionCreateMirror,
			LinkID:   link.ID,
			Platform: code,
			Draft:    draft,
		}
		if err := e.dispatcher.Dispatch(ctx, action); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Price and quantity
// ---------------------------------------------------------------------------

func (e *Engine) handlePrice(ctx context.Context, event *syncdomain.SyncEvent) (Outcome, error) {
	snap, err := event.ListingPayload()
	if err != nil {
		return Outcome{}, err
	}

	link, product, unlock, err := e.resolve(ctx, snap.Platform, snap.ExternalID)
	if err != nil {
		return resolveOutcome(err)
	}
	defer unlock()

	if product.Price.Equal(snap.Price) && link.Price.Equal(snap.Price) {
		return NoChange("price already matches"), nil
	}

	if err := product.UpdatePrice(snap.Price); err != nil {
		return Outcome{}, err
	}
	if err := link.UpdateBaseline(snap.Price, link.Quantity, link.Status); err != nil {
		return Outcome{}, err
	}
	if err := e.productRepo.Save(ctx, product); err != nil {
		return Outcome{}, err
	}
	if err := e.linkRepo.Save(ctx, link); err != nil {
		return Outcome{}, err
	}
	return Applied(fmt.Sprintf("price updated to %s from %s", snap.Price, snap.Platform)), nil
}

func (e *Engine) handleQuantity(ctx context.Context, event *syncdomain.SyncEvent) (Outcome, error) {
	snap, err := event.ListingPayload()
	if err != nil {
		return Outcome{}, err
	}

	link, product, unlock, err := e.resolve(ctx, snap.Platform, snap.ExternalID)
	if err != nil {
		return resolveOutcome(err)
	}
	defer unlock()

	delta := link.Quantity - snap.Quantity
	switch {
	case delta == 0:
		return NoChange("quantity already matches"), nil

	case delta > 0:
		// A remote drop without an order signal still means units left the
		// building; treat the delta as a sale.
		return e.sales.Apply(ctx, product, link, delta, false)

	default:
		// Remote increase is a restock made directly on the platform.
		if err := product.SetQuantity(product.Quantity - delta); err != nil {
			return Outcome{}, err
		}
		if err := link.UpdateBaseline(link.Price, snap.Quantity, link.Status); err != nil {
			return Outcome{}, err
		}
		if err := e.productRepo.Save(ctx, product); err != nil {
			return Outcome{}, err
		}
		if err := e.linkRepo.Save(ctx, link); err != nil {
			return Outcome{}, err
		}
		if err := e.alignOthers(ctx, product, link); err != nil {
			return Outcome{}, err
		}
		return Applied(fmt.Sprintf("restocked %d units from %s", -delta, snap.Platform)), nil
	}
}

// alignOthers pushes the product quantity to every other live listing
func (e *Engine) alignOthers(ctx context.Context, product *inventory.Product, source *inventory.PlatformLink) error {
	links, err := e.linkRepo.FindByProduct(ctx, product.ID)
	if err != nil {
		return err
	}

	actions := make([]propagation.Action, 0, len(links))
	for _, link := range links {
		if link.ID == source.ID || !link.IsActive() || link.Quantity == product.Quantity {
			continue
		}
		actions = append(actions, propagation.Action{
			Kind:       propagation.ActionSetQuantity,
			LinkID:     link.ID,
			Platform:   link.Platform,
			ExternalID: link.ExternalID,
			Quantity:   product.Quantity,
		})
		link.MarkPending()
		if err := e.linkRepo.Save(ctx, link); err != nil {
			return err
		}
	}

	if len(actions) == 0 {
		return nil
	}
	return e.dispatcher.Dispatch(ctx, actions...)
}

// ---------------------------------------------------------------------------
// Status transitions
// ---------------------------------------------------------------------------

func (e *Engine) handleStatus(ctx context.Context, event *syncdomain.SyncEvent) (Outcome, error) {
	snap, err := event.ListingPayload()
	if err != nil {
		return Outcome{}, err
	}

	link, product, unlock, err := e.resolve(ctx, snap.Platform, snap.ExternalID)
	if err != nil {
		return resolveOutcome(err)
	}
	defer unlock()

	switch snap.Status {
	case platform.ListingStatusSold:
		quantity := link.Quantity
		if !product.IsStocked || quantity <= 0 {
			quantity = 1
		}
		return e.sales.Apply(ctx, product, link, quantity, true)

	case platform.ListingStatusEnded:
		return e.delist(ctx, product, link)

	case platform.ListingStatusActive:
		return e.relist(ctx, product, link, snap)

	case platform.ListingStatusDraft:
		return NoChange("draft listings are ignored"), nil

	default:
		return Outcome{}, fmt.Errorf("%w: status %q", platform.ErrInvalidListing, snap.Status)
	}
}

// delist ends the link and retires the product once nothing is listed or in
// stock anymore
func (e *Engine) delist(ctx context.Context, product *inventory.Product, link *inventory.PlatformLink) (Outcome, error) {
	if link.IsEnded() {
		return NoChange("listing already ended"), nil
	}

	link.End()
	if err := e.linkRepo.Save(ctx, link); err != nil {
		return Outcome{}, err
	}

	links, err := e.linkRepo.FindByProduct(ctx, product.ID)
	if err != nil {
		return Outcome{}, err
	}
	anyLive := false
	for _, l := range links {
		if l.IsActive() {
			anyLive = true
			break
		}
	}

	if !anyLive && product.Quantity == 0 && product.Status != inventory.ProductStatusArchived {
		if err := product.Archive(); err == nil {
			if err := e.productRepo.Save(ctx, product); err != nil {
				return Outcome{}, err
			}
			return Applied(fmt.Sprintf("listing ended on %s; product archived", link.Platform)), nil
		}
	}

	return Applied(fmt.Sprintf("listing ended on %s", link.Platform)), nil
}

// relist reactivates a sold or ended product when the seller relists it on
// any platform. Archived products never come back this way.
func (e *Engine) relist(ctx context.Context, product *inventory.Product, link *inventory.PlatformLink, snap platform.ListingSnapshot) (Outcome, error) {
	if link.IsActive() && product.IsActive() {
		return NoChange("listing already active"), nil
	}

	if !product.IsActive() {
		if err := product.Relist(); err != nil {
			var domainErr *shared.DomainError
			if errors.As(err, &domainErr) && domainErr.Code == "INVALID_STATE" {
				return Failed(fmt.Sprintf("relist on %s rejected: product %s is archived", snap.Platform, product.SKU)), nil
			}
			return Outcome{}, err
		}
		if snap.Quantity > 0 && product.IsStocked {
			if err := product.SetQuantity(snap.Quantity); err != nil {
				return Outcome{}, err
			}
		}
		if err := e.productRepo.Save(ctx, product); err != nil {
			return Outcome{}, err
		}
	}

	if !link.IsActive() {
		if err := link.Reactivate(); err != nil {
			return Outcome{}, err
		}
	}
	if err := link.UpdateBaseline(snap.Price, snap.Quantity, inventory.LinkStatusActive); err != nil {
		return Outcome{}, err
	}
	if err := e.linkRepo.Save(ctx, link); err != nil {
		return Outcome{}, err
	}

	if err := e.relistOthers(ctx, product, link); err != nil {
		return Outcome{}, err
	}
	return Applied(fmt.Sprintf("relisted from %s", snap.Platform)), nil
}

// relistOthers propagates a relist to the product's other retired listings
func (e *Engine) relistOthers(ctx context.Context, product *inventory.Product, source *inventory.PlatformLink) error {
	links, err := e.linkRepo.FindByProduct(ctx, product.ID)
	if err != nil {
		return err
	}

	actions := make([]propagation.Action, 0, len(links))
	for _, link := range links {
		if link.ID == source.ID || link.IsActive() || link.ExternalID == "" {
			continue
		}
		actions = append(actions, propagation.Action{
			Kind:       propagation.ActionRelist,
			LinkID:     link.ID,
			Platform:   link.Platform,
			ExternalID: link.ExternalID,
			Quantity:   product.Quantity,
		})
		link.MarkPending()
		if err := e.linkRepo.Save(ctx, link); err != nil {
			return err
		}
	}

	if len(actions) == 0 {
		return nil
	}
	return e.dispatcher.Dispatch(ctx, actions...)
}

// ---------------------------------------------------------------------------
// Sales and removals
// ---------------------------------------------------------------------------

func (e *Engine) handleOrderSale(ctx context.Context, event *syncdomain.SyncEvent) (Outcome, error) {
	order, err := event.OrderPayload()
	if err != nil {
		return Outcome{}, err
	}

	link, product, unlock, err := e.resolve(ctx, order.Platform, order.ExternalID)
	if err != nil {
		return resolveOutcome(err)
	}
	defer unlock()

	return e.sales.Apply(ctx, product, link, order.QuantitySold, false)
}

func (e *Engine) handleRemoved(ctx context.Context, event *syncdomain.SyncEvent) (Outcome, error) {
	snap, err := event.ListingPayload()
	if err != nil {
		return Outcome{}, err
	}

	link, product, unlock, err := e.resolve(ctx, snap.Platform, snap.ExternalID)
	if err != nil {
		return resolveOutcome(err)
	}
	defer unlock()

	return e.delist(ctx, product, link)
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// resolve maps a (platform, external id) pair to its link and product and
// takes the product lock. The caller must run the returned unlock.
func (e *Engine) resolve(ctx context.Context, code platform.Code, externalID string) (*inventory.PlatformLink, *inventory.Product, func(), error) {
	link, err := e.linkRepo.FindByExternalID(ctx, code, externalID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("no link for %s listing %s: %w", code, externalID, err)
	}

	unlock := e.locks.Lock(link.ProductID.String())

	// Re-read under the lock so concurrent events see each other's writes.
	link, err = e.linkRepo.FindByID(ctx, link.ID)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	product, err := e.productRepo.FindByID(ctx, link.ProductID)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	return link, product, unlock, nil
}

// resolveOutcome turns a resolution failure into a Failed outcome for
// not-found cases and an error otherwise
func resolveOutcome(err error) (Outcome, error) {
	if isNotFound(err) {
		return Failed(err.Error()), nil
	}
	return Outcome{}, err
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound) ||
		errors.Is(err, platform.ErrListingNotFound) ||
		errors.Is(err, syncdomain.ErrEventNotFound)
}

// generatedSKU derives a stable SKU for listings without a seller reference
func generatedSKU(code platform.Code, externalID string) string {
	var b strings.Builder
	b.WriteString(string(code))
	b.WriteByte('-')
	for _, r := range externalID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	sku := strings.ToUpper(b.String())
	if len(sku) > 50 {
		sku = sku[:50]
	}
	return sku
}
