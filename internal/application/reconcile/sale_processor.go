package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/channelsync/backend/internal/application/propagation"
	"github.com/channelsync/backend/internal/domain/inventory"
	"github.com/channelsync/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SaleProcessor applies a sale observed on one platform to the canonical
// product and fans the remaining quantity out to every other listing. The
// caller holds the product lock.
type SaleProcessor struct {
	productRepo inventory.ProductRepository
	linkRepo    inventory.PlatformLinkRepository
	dispatcher  propagation.Dispatcher
	logger      *zap.Logger
}

// NewSaleProcessor creates a new sale processor
func NewSaleProcessor(
	productRepo inventory.ProductRepository,
	linkRepo inventory.PlatformLinkRepository,
	dispatcher propagation.Dispatcher,
	logger *zap.Logger,
) *SaleProcessor {
	return &SaleProcessor{
		productRepo: productRepo,
		linkRepo:    linkRepo,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// Apply decrements the product by quantitySold and propagates the result.
// sourceSoldOut marks the source listing sold even when stock remains, for
// platforms that reported the listing itself as sold out.
//
// An oversell is never clamped: the product keeps its quantity and the
// outcome is Failed so the event lands in the error queue for a human.
// A sale against an already-sold product lost a cross-platform race and is
// Skipped; the first sale won.
func (p *SaleProcessor) Apply(
	ctx context.Context,
	product *inventory.Product,
	source *inventory.PlatformLink,
	quantitySold int,
	sourceSoldOut bool,
) (Outcome, error) {
	if product.IsSold() {
		return Skipped(fmt.Sprintf("sale of %d lost conflict; product already sold", quantitySold)), nil
	}

	remaining, err := product.ApplySale(quantitySold)
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) {
			return Failed(fmt.Sprintf("oversell: sale of %d exceeds stock of %d on %s", quantitySold, product.Quantity, source.Platform)), nil
		}
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "INVALID_STATE" {
			return Skipped(fmt.Sprintf("sale of %d arrived for %s product", quantitySold, product.Status)), nil
		}
		return Outcome{}, err
	}

	if product.IsSold() || sourceSoldOut {
		source.MarkSold()
	} else {
		newBaseline := source.Quantity - quantitySold
		if newBaseline < 0 {
			newBaseline = 0
		}
		if err := source.UpdateBaseline(source.Price, newBaseline, source.Status); err != nil {
			return Outcome{}, err
		}
	}

	if err := p.productRepo.Save(ctx, product); err != nil {
		return Outcome{}, err
	}
	if err := p.linkRepo.Save(ctx, source); err != nil {
		return Outcome{}, err
	}

	if err := p.fanOut(ctx, product, source); err != nil {
		return Outcome{}, err
	}

	if product.IsSold() {
		return Applied(fmt.Sprintf("sale of %d on %s sold the product out", quantitySold, source.Platform)), nil
	}
	return Applied(fmt.Sprintf("sale of %d on %s, %d remaining", quantitySold, source.Platform, remaining)), nil
}

// fanOut pushes the post-sale state to every other live listing: end them
// when the product sold out, otherwise align their quantity
func (p *SaleProcessor) fanOut(ctx context.Context, product *inventory.Product, source *inventory.PlatformLink) error {
	links, err := p.linkRepo.FindByProduct(ctx, product.ID)
	if err != nil {
		return err
	}

	actions := make([]propagation.Action, 0, len(links))
	for _, link := range links {
		if link.ID == source.ID || !link.IsActive() {
			continue
		}

		action := propagation.Action{
			LinkID:     link.ID,
			Platform:   link.Platform,
			ExternalID: link.ExternalID,
		}
		if product.IsSold() {
			action.Kind = propagation.ActionEnd
		} else {
			action.Kind = propagation.ActionSetQuantity
			action.Quantity = product.Quantity
		}
		actions = append(actions, action)

		link.MarkPending()
		if err := p.linkRepo.Save(ctx, link); err != nil {
			return err
		}
	}

	if len(actions) == 0 {
		return nil
	}
	return p.dispatcher.Dispatch(ctx, actions...)
}
