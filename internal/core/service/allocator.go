package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quangtd04/autodeliver/internal/core/domain"
	"github.com/quangtd04/autodeliver/internal/port"
)

// defaultReserveRetries bounds how often Allocate re-runs selection after
// losing a version race before giving up with ErrReservationFailed.
const defaultReserveRetries = 3

// Allocator picks and reserves inventory accounts for pending orders.
// Selection is tightest-fit: among eligible accounts the one with the least
// remaining capacity wins, so near-exhausted records fill up first and
// fresher records keep their slack for later bursts.
type Allocator struct {
	inventory port.InventoryRepository
	retries   int
	now       func() time.Time
}

func NewAllocator(inventory port.InventoryRepository) *Allocator {
	return &Allocator{
		inventory: inventory,
		retries:   defaultReserveRetries,
		now:       time.Now,
	}
}

// Allocate reserves capacity for quantity seats on one of the product's
// accounts and returns the account as it was before the reservation. The
// reserve step is version-guarded in the store, so two callers racing for
// the same last seats cannot both succeed; the loser re-reads and retries
// against whatever capacity is left.
func (a *Allocator) Allocate(ctx context.Context, productID string, quantity int) (*domain.Account, error) {
	if quantity < 1 {
		quantity = 1
	}

	for attempt := 0; attempt <= a.retries; attempt++ {
		product, err := a.inventory.GetProduct(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("fetch product %s: %w", productID, err)
		}
		if product == nil {
			return nil, ErrProductNotFound
		}

		chosen := pickTightest(product.Accounts, a.now(), quantity)
		if chosen == nil {
			return nil, ErrNoAvailability
		}

		err = a.inventory.ReserveAccount(ctx, productID, chosen.Index, chosen.Version, quantity, a.now())
		if errors.Is(err, port.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reserve account %d of %s: %w", chosen.Index, productID, err)
		}

		snapshot := *chosen
		return &snapshot, nil
	}

	return nil, ErrReservationFailed
}

// pickTightest returns the eligible account with the smallest remaining
// capacity, ties broken by collection order. Nil when nothing is eligible.
func pickTightest(accounts []domain.Account, now time.Time, quantity int) *domain.Account {
	var best *domain.Account
	for i := range accounts {
		acc := &accounts[i]
		if !acc.EligibleFor(now, quantity) {
			continue
		}
		if best == nil || acc.Remaining() < best.Remaining() {
			best = acc
		}
	}
	return best
}
