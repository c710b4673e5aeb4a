package reconcile

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/channelsync/backend/internal/application/propagation"
	"github.com/channelsync/backend/internal/domain/inventory"
	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/domain/shared"
	syncdomain "github.com/channelsync/backend/internal/domain/sync"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type memProducts struct {
	mu       sync.Mutex
	products map[uuid.UUID]*inventory.Product
}

func newMemProducts(products ...*inventory.Product) *memProducts {
	r := &memProducts{products: make(map[uuid.UUID]*inventory.Product)}
	for _, p := range products {
		c := *p
		r.products[p.ID] = &c
	}
	return r
}

func (r *memProducts) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r *memProducts) FindBySKU(ctx context.Context, sku string) (*inventory.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.SKU == strings.ToUpper(sku) {
			c := *p
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memProducts) Save(ctx context.Context, product *inventory.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *product
	r.products[product.ID] = &c
	return nil
}

type memLinks struct {
	mu    sync.Mutex
	links map[uuid.UUID]*inventory.PlatformLink
}

func newMemLinks(links ...*inventory.PlatformLink) *memLinks {
	r := &memLinks{links: make(map[uuid.UUID]*inventory.PlatformLink)}
	for _, l := range links {
		c := *l
		r.links[l.ID] = &c
	}
	return r
}

func (r *memLinks) FindByID(ctx context.Context, id uuid.UUID) (*inventory.PlatformLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := *l
	return &c, nil
}

func (r *memLinks) FindByExternalID(ctx context.Context, code platform.Code, externalID string) (*inventory.PlatformLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.Platform == code && l.ExternalID == externalID && externalID != "" {
			c := *l
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memLinks) FindByProduct(ctx context.Context, productID uuid.UUID) ([]*inventory.PlatformLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*inventory.PlatformLink, 0)
	for _, l := range r.links {
		if l.ProductID == productID {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memLinks) FindByPlatform(ctx context.Context, code platform.Code) ([]*inventory.PlatformLink, error) {
	return nil, nil
}

func (r *memLinks) FindByProductAndPlatform(ctx context.Context, productID uuid.UUID, code platform.Code) (*inventory.PlatformLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.ProductID == productID && l.Platform == code {
			c := *l
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memLinks) ExistsFor(ctx context.Context, productID uuid.UUID, code platform.Code) (bool, error) {
	_, err := r.FindByProductAndPlatform(ctx, productID, code)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (r *memLinks) Save(ctx context.Context, link *inventory.PlatformLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *link
	r.links[link.ID] = &c
	return nil
}

type memEventLog struct {
	mu     sync.Mutex
	events []*syncdomain.SyncEvent
}

func (l *memEventLog) Append(ctx context.Context, event *syncdomain.SyncEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *memEventLog) AppendBatch(ctx context.Context, events []*syncdomain.SyncEvent) error {
	for _, e := range events {
		_ = l.Append(ctx, e)
	}
	return nil
}

func (l *memEventLog) Pending(ctx context.Context, code *platform.Code) ([]*syncdomain.SyncEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*syncdomain.SyncEvent, 0)
	for _, e := range l.events {
		if !e.IsPending() {
			continue
		}
		if code != nil && e.Platform != *code {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *memEventLog) Mark(ctx context.Context, id uuid.UUID, status syncdomain.EventStatus, notes string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.ID == id {
			e.Status = status
			e.Notes = notes
			return nil
		}
	}
	return syncdomain.ErrEventNotFound
}

func (l *memEventLog) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.SyncEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, syncdomain.ErrEventNotFound
}

func (l *memEventLog) ExistsPendingWithHash(ctx context.Context, contentHash string) (bool, error) {
	return false, nil
}

func (l *memEventLog) ExistsWithHash(ctx context.Context, contentHash string) (bool, error) {
	return false, nil
}

func (l *memEventLog) List(ctx context.Context, filter syncdomain.EventFilter) ([]*syncdomain.SyncEvent, int64, error) {
	return l.events, int64(len(l.events)), nil
}

func (l *memEventLog) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// captureDispatcher records dispatched actions instead of executing them
type captureDispatcher struct {
	mu      sync.Mutex
	actions []propagation.Action
}

func (d *captureDispatcher) Dispatch(ctx context.Context, actions ...propagation.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, actions...)
	return nil
}

func (d *captureDispatcher) kinds() []propagation.ActionKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]propagation.ActionKind, 0, len(d.actions))
	for _, a := range d.actions {
		out = append(out, a.Kind)
	}
	return out
}

type stubRegistry struct {
	codes []platform.Code
}

func (r stubRegistry) Get(code platform.Code) (platform.Adapter, error) {
	return nil, platform.ErrAdapterNotRegistered
}

func (r stubRegistry) List() []platform.Adapter {
	out := make([]platform.Adapter, 0, len(r.codes))
	for _, c := range r.codes {
		out = append(out, stubAdapter{c})
	}
	return out
}

type stubAdapter struct{ code platform.Code }

func (a stubAdapter) Code() platform.Code { return a.code }
func (a stubAdapter) FetchListings(ctx context.Context) ([]platform.ListingSnapshot, error) {
	return nil, nil
}
func (a stubAdapter) CreateListing(ctx context.Context, draft platform.ListingDraft) (string, error) {
	return "", nil
}
func (a stubAdapter) EndListing(ctx context.Context, externalID string) error          { return nil }
func (a stubAdapter) SetQuantity(ctx context.Context, externalID string, q int) error  { return nil }
func (a stubAdapter) Relist(ctx context.Context, externalID string) error              { return nil }

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	engine     *Engine
	products   *memProducts
	links      *memLinks
	eventLog   *memEventLog
	dispatcher *captureDispatcher
}

func newFixture(t *testing.T, config Config, products *memProducts, links *memLinks) *fixture {
	t.Helper()
	eventLog := &memEventLog{}
	dispatcher := &captureDispatcher{}
	engine := NewEngine(
		products, links, eventLog,
		stubRegistry{codes: []platform.Code{platform.CodeEbay, platform.CodeEtsy, platform.CodeMercari}},
		dispatcher, config, zap.NewNop(),
	)
	return &fixture{engine: engine, products: products, links: links, eventLog: eventLog, dispatcher: dispatcher}
}

func listingSnapshot(code platform.Code, externalID string, status platform.ListingStatus, price int64, quantity int) platform.ListingSnapshot {
	return platform.ListingSnapshot{
		Platform:   code,
		ExternalID: externalID,
		Status:     status,
		Price:      decimal.NewFromInt(price),
		Quantity:   quantity,
		ObservedAt: time.Now(),
	}
}

func mustListingEvent(t *testing.T, changeType syncdomain.ChangeType, snap platform.ListingSnapshot) *syncdomain.SyncEvent {
	t.Helper()
	event, err := syncdomain.NewListingEvent(changeType, snap)
	require.NoError(t, err)
	return event
}

func mustOrderEvent(t *testing.T, code platform.Code, externalID string, sold int, at time.Time) *syncdomain.SyncEvent {
	t.Helper()
	event, err := syncdomain.NewOrderSaleEvent(platform.OrderSnapshot{
		Platform:     code,
		ExternalID:   externalID,
		QuantitySold: sold,
		OrderedAt:    at,
	})
	require.NoError(t, err)
	return event
}

// seededProduct creates a product with links on eBay and Etsy
func seededProduct(t *testing.T, quantity int, stocked bool) (*inventory.Product, *inventory.PlatformLink, *inventory.PlatformLink) {
	t.Helper()
	product, err := inventory.NewProduct("CAMERA-7", "Vintage Camera", decimal.NewFromInt(100), quantity, stocked)
	require.NoError(t, err)

	ebay, err := inventory.NewPlatformLink(product.ID, platform.CodeEbay, "ebay-1", product.Price, quantity)
	require.NoError(t, err)
	etsy, err := inventory.NewPlatformLink(product.ID, platform.CodeEtsy, "etsy-1", product.Price, quantity)
	require.NoError(t, err)
	return product, ebay, etsy
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestEngine_OrderSale(t *testing.T) {
	ctx := context.Background()

	t.Run("sale of a unique item ends its other listings", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 1, false)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		outcome := f.engine.ProcessEvent(ctx, mustOrderEvent(t, platform.CodeEbay, "ebay-1", 1, time.Now()))
		assert.Equal(t, OutcomeApplied, outcome.Kind)

		saved, err := f.products.FindByID(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, inventory.ProductStatusSold, saved.Status)

		source, _ := f.links.FindByID(ctx, ebay.ID)
		assert.Equal(t, inventory.LinkStatusSold, source.Status)

		require.Len(t, f.dispatcher.actions, 1)
		assert.Equal(t, propagation.ActionEnd, f.dispatcher.actions[0].Kind)
		assert.Equal(t, etsy.ID, f.dispatcher.actions[0].LinkID)
	})

	t.Run("partial sale on a stocked product aligns other quantities", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 5, true)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		outcome := f.engine.ProcessEvent(ctx, mustOrderEvent(t, platform.CodeEbay, "ebay-1", 2, time.Now()))
		assert.Equal(t, OutcomeApplied, outcome.Kind)

		saved, _ := f.products.FindByID(ctx, product.ID)
		assert.Equal(t, 3, saved.Quantity)
		assert.Equal(t, inventory.ProductStatusActive, saved.Status)

		require.Len(t, f.dispatcher.actions, 1)
		assert.Equal(t, propagation.ActionSetQuantity, f.dispatcher.actions[0].Kind)
		assert.Equal(t, 3, f.dispatcher.actions[0].Quantity)
	})

	t.Run("oversell is rejected and never clamped", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 2, true)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		outcome := f.engine.ProcessEvent(ctx, mustOrderEvent(t, platform.CodeEbay, "ebay-1", 5, time.Now()))
		assert.Equal(t, OutcomeFailed, outcome.Kind)
		assert.Contains(t, outcome.Notes, "oversell")

		saved, _ := f.products.FindByID(ctx, product.ID)
		assert.Equal(t, 2, saved.Quantity, "stock must stay untouched")
		assert.Empty(t, f.dispatcher.actions)
	})

	t.Run("second sale for a sold unique item loses the conflict", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 1, false)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		first := f.engine.ProcessEvent(ctx, mustOrderEvent(t, platform.CodeEbay, "ebay-1", 1, time.Now().Add(-time.Minute)))
		second := f.engine.ProcessEvent(ctx, mustOrderEvent(t, platform.CodeEtsy, "etsy-1", 1, time.Now()))

		assert.Equal(t, OutcomeApplied, first.Kind)
		assert.Equal(t, OutcomeSkipped, second.Kind)
		assert.Contains(t, second.Notes, "lost conflict")
	})

	t.Run("sale against an unknown listing fails", func(t *testing.T) {
		f := newFixture(t, Config{}, newMemProducts(), newMemLinks())
		outcome := f.engine.ProcessEvent(ctx, mustOrderEvent(t, platform.CodeEbay, "ghost", 1, time.Now()))
		assert.Equal(t, OutcomeFailed, outcome.Kind)
	})

	t.Run("processed event handed back is never reapplied", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 3, true)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		event := mustOrderEvent(t, platform.CodeEbay, "ebay-1", 1, time.Now())
		first := f.engine.ProcessEvent(ctx, event)
		require.Equal(t, OutcomeApplied, first.Kind)
		event.MarkProcessed(first.Notes)

		second := f.engine.ProcessEvent(ctx, event)
		assert.Equal(t, OutcomeSkipped, second.Kind)
		assert.Contains(t, second.Notes, "already processed")

		saved, _ := f.products.FindByID(ctx, product.ID)
		assert.Equal(t, 2, saved.Quantity, "quantity must decrement exactly once")
	})
}

func TestEngine_StatusChange(t *testing.T) {
	ctx := context.Background()

	t.Run("remote sold status sells the product", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 1, false)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		snap := listingSnapshot(platform.CodeEbay, "ebay-1", platform.ListingStatusSold, 100, 0)
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeStatus, snap))
		assert.Equal(t, OutcomeApplied, outcome.Kind)

		saved, _ := f.products.FindByID(ctx, product.ID)
		assert.Equal(t, inventory.ProductStatusSold, saved.Status)
		assert.Equal(t, []propagation.ActionKind{propagation.ActionEnd}, f.dispatcher.kinds())
	})

	t.Run("remote ended status ends only that link", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 3, true)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		snap := listingSnapshot(platform.CodeEbay, "ebay-1", platform.ListingStatusEnded, 100, 0)
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeStatus, snap))
		assert.Equal(t, OutcomeApplied, outcome.Kind)

		endedLink, _ := f.links.FindByID(ctx, ebay.ID)
		assert.True(t, endedLink.IsEnded())

		otherLink, _ := f.links.FindByID(ctx, etsy.ID)
		assert.True(t, otherLink.IsActive())

		saved, _ := f.products.FindByID(ctx, product.ID)
		assert.Equal(t, inventory.ProductStatusActive, saved.Status, "product keeps selling elsewhere")
	})

	t.Run("relist of a sold product reactivates it and its other listings", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 1, false)
		_, err := product.ApplySale(1)
		require.NoError(t, err)
		ebay.MarkSold()
		etsy.MarkSold()
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		snap := listingSnapshot(platform.CodeEbay, "ebay-1", platform.ListingStatusActive, 100, 1)
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeStatus, snap))
		assert.Equal(t, OutcomeApplied, outcome.Kind)

		saved, _ := f.products.FindByID(ctx, product.ID)
		assert.Equal(t, inventory.ProductStatusActive, saved.Status)
		assert.Equal(t, 1, saved.Quantity)

		assert.Equal(t, []propagation.ActionKind{propagation.ActionRelist}, f.dispatcher.kinds())
	})

	t.Run("relist of an archived product is refused", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 1, false)
		_, err := product.ApplySale(1)
		require.NoError(t, err)
		require.NoError(t, product.Archive())
		ebay.End()
		etsy.End()
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		snap := listingSnapshot(platform.CodeEbay, "ebay-1", platform.ListingStatusActive, 100, 1)
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeStatus, snap))

		assert.Equal(t, OutcomeFailed, outcome.Kind)
		assert.Contains(t, outcome.Notes, "archived")

		saved, _ := f.products.FindByID(ctx, product.ID)
		assert.Equal(t, inventory.ProductStatusArchived, saved.Status)
	})
}

func TestEngine_QuantityChange(t *testing.T) {
	ctx := context.Background()

	t.Run("remote drop is treated as a sale of the delta", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 5, true)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		snap := listingSnapshot(platform.CodeEbay, "ebay-1", platform.ListingStatusActive, 100, 3)
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeQuantity, snap))
		assert.Equal(t, OutcomeApplied, outcome.Kind)

		saved, _ := f.products.FindByID(ctx, product.ID)
		assert.Equal(t, 3, saved.Quantity)
	})

	t.Run("remote increase restocks the product", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 2, true)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		snap := listingSnapshot(platform.CodeEbay, "ebay-1", platform.ListingStatusActive, 100, 6)
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeQuantity, snap))
		assert.Equal(t, OutcomeApplied, outcome.Kind)

		saved, _ := f.products.FindByID(ctx, product.ID)
		assert.Equal(t, 6, saved.Quantity)

		require.Len(t, f.dispatcher.actions, 1)
		assert.Equal(t, propagation.ActionSetQuantity, f.dispatcher.actions[0].Kind)
		assert.Equal(t, 6, f.dispatcher.actions[0].Quantity)
	})

	t.Run("matching quantity is a no-op", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 2, true)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		snap := listingSnapshot(platform.CodeEbay, "ebay-1", platform.ListingStatusActive, 100, 2)
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeQuantity, snap))
		assert.Equal(t, OutcomeNoChange, outcome.Kind)
		assert.Empty(t, f.dispatcher.actions)
	})
}

func TestEngine_PriceChange(t *testing.T) {
	ctx := context.Background()

	product, ebay, etsy := seededProduct(t, 2, true)
	f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

	snap := listingSnapshot(platform.CodeEbay, "ebay-1", platform.ListingStatusActive, 120, 2)
	outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypePrice, snap))
	assert.Equal(t, OutcomeApplied, outcome.Kind)

	saved, _ := f.products.FindByID(ctx, product.ID)
	assert.True(t, saved.Price.Equal(decimal.NewFromInt(120)))

	again := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypePrice, snap))
	assert.Equal(t, OutcomeNoChange, again.Kind)
}

func TestEngine_NewListing(t *testing.T) {
	ctx := context.Background()

	t.Run("listing with a known SKU joins that product", func(t *testing.T) {
		product, err := inventory.NewProduct("CAMERA-7", "Vintage Camera", decimal.NewFromInt(100), 1, false)
		require.NoError(t, err)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks())

		snap := listingSnapshot(platform.CodeMercari, "merc-1", platform.ListingStatusActive, 100, 1)
		snap.Reference = "camera-7"
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeNewListing, snap))
		assert.Equal(t, OutcomeApplied, outcome.Kind)

		link, err := f.links.FindByProductAndPlatform(ctx, product.ID, platform.CodeMercari)
		require.NoError(t, err)
		assert.Equal(t, "merc-1", link.ExternalID)
	})

	t.Run("unknown listing creates a product", func(t *testing.T) {
		f := newFixture(t, Config{}, newMemProducts(), newMemLinks())

		snap := listingSnapshot(platform.CodeEbay, "ebay-9", platform.ListingStatusActive, 40, 3)
		snap.Title = "Blue Mug"
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeNewListing, snap))
		assert.Equal(t, OutcomeApplied, outcome.Kind)

		product, err := f.products.FindBySKU(ctx, "EBAY-EBAY-9")
		require.NoError(t, err)
		assert.Equal(t, "Blue Mug", product.Title)
		assert.Equal(t, 3, product.Quantity)
		assert.True(t, product.IsStocked)
	})

	t.Run("already linked listing is a no-op", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 2, true)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		snap := listingSnapshot(platform.CodeEbay, "ebay-1", platform.ListingStatusActive, 100, 2)
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeNewListing, snap))
		assert.Equal(t, OutcomeNoChange, outcome.Kind)
	})

	t.Run("backfills an id pending asynchronous resolution", func(t *testing.T) {
		product, err := inventory.NewProduct("CAMERA-7", "Vintage Camera", decimal.NewFromInt(100), 1, false)
		require.NoError(t, err)
		pendingLink, err := inventory.NewPlatformLink(product.ID, platform.CodeEtsy, "", product.Price, 1)
		require.NoError(t, err)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(pendingLink))

		snap := listingSnapshot(platform.CodeEtsy, "etsy-42", platform.ListingStatusActive, 100, 1)
		snap.Reference = "CAMERA-7"
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeNewListing, snap))
		assert.Equal(t, OutcomeApplied, outcome.Kind)
		assert.Contains(t, outcome.Notes, "backfilled")

		link, _ := f.links.FindByID(ctx, pendingLink.ID)
		assert.Equal(t, "etsy-42", link.ExternalID)
		assert.Equal(t, inventory.SyncStatusSynced, link.SyncStatus)
	})

	t.Run("mirrors a new product onto the other platforms when enabled", func(t *testing.T) {
		f := newFixture(t, Config{MirrorNewListings: true}, newMemProducts(), newMemLinks())

		snap := listingSnapshot(platform.CodeEbay, "ebay-9", platform.ListingStatusActive, 40, 1)
		snap.Reference = "MUG-9"
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeNewListing, snap))
		assert.Equal(t, OutcomeApplied, outcome.Kind)

		kinds := f.dispatcher.kinds()
		assert.Len(t, kinds, 2, "one mirror per other platform")
		for _, k := range kinds {
			assert.Equal(t, propagation.ActionCreateMirror, k)
		}
	})
}

func TestEngine_RemovedListing(t *testing.T) {
	ctx := context.Background()

	t.Run("removal ends the link", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 3, true)
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		snap := listingSnapshot(platform.CodeEbay, "ebay-1", platform.ListingStatusEnded, 100, 0)
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeRemovedListing, snap))
		assert.Equal(t, OutcomeApplied, outcome.Kind)

		link, _ := f.links.FindByID(ctx, ebay.ID)
		assert.True(t, link.IsEnded())

		saved, _ := f.products.FindByID(ctx, product.ID)
		assert.NotEqual(t, inventory.ProductStatusArchived, saved.Status, "stock remains, no archive")
	})

	t.Run("last removal with no stock archives the product", func(t *testing.T) {
		product, ebay, etsy := seededProduct(t, 1, false)
		_, err := product.ApplySale(1)
		require.NoError(t, err)
		ebay.MarkSold()
		etsy.End()
		f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

		snap := listingSnapshot(platform.CodeEbay, "ebay-1", platform.ListingStatusEnded, 100, 0)
		outcome := f.engine.ProcessEvent(ctx, mustListingEvent(t, syncdomain.ChangeTypeRemovedListing, snap))
		assert.Equal(t, OutcomeApplied, outcome.Kind)
		assert.Contains(t, outcome.Notes, "archived")

		saved, _ := f.products.FindByID(ctx, product.ID)
		assert.Equal(t, inventory.ProductStatusArchived, saved.Status)
	})
}

func TestEngine_Reconcile(t *testing.T) {
	ctx := context.Background()

	product, ebay, etsy := seededProduct(t, 5, true)
	f := newFixture(t, Config{}, newMemProducts(product), newMemLinks(ebay, etsy))

	sale := mustOrderEvent(t, platform.CodeEbay, "ebay-1", 2, time.Now())
	ghost := mustOrderEvent(t, platform.CodeEtsy, "ghost", 1, time.Now())
	require.NoError(t, f.eventLog.AppendBatch(ctx, []*syncdomain.SyncEvent{sale, ghost}))

	summary, err := f.engine.Reconcile(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 1, summary.Failed)

	marked, err := f.eventLog.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, syncdomain.EventStatusProcessed, marked.Status)

	failed, err := f.eventLog.FindByID(ctx, ghost.ID)
	require.NoError(t, err)
	assert.Equal(t, syncdomain.EventStatusError, failed.Status)

	again, err := f.engine.Reconcile(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, again.Processed, "terminal events are never reprocessed")
}
