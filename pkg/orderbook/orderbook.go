// Package orderbook arranges eligible orders into price-priority books and sets aside the
// orders that cannot take part in clearing.
package orderbook

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/zkauction-go/pkg/collateral"
	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

// Excluded is an order kept out of clearing, with the status its leaf will carry.
type Excluded struct {
	Order  *types.Order
	Status types.Status
}

// Book is the sorted set of orders eligible for clearing plus those left out of it.
type Book struct {
	// Bids are revealed, sufficiently collateralized bids, best (highest) price first.
	Bids []*types.Order
	// Offers are revealed offers, best (lowest) price first.
	Offers []*types.Order

	// ExcludedBids and ExcludedOffers are sorted by (id, participant).
	ExcludedBids   []*Excluded
	ExcludedOffers []*Excluded
}

// CompareBids orders bids by descending price, then ascending id, then ascending participant.
func CompareBids(a, b *types.Order) int {
	if c := b.RevealedPrice.Cmp(a.RevealedPrice); c != 0 {
		return c
	}
	return types.CompareIdentity(a, b)
}

// CompareOffers orders offers by ascending price, then ascending id, then ascending participant.
func CompareOffers(a, b *types.Order) int {
	if c := a.RevealedPrice.Cmp(b.RevealedPrice); c != 0 {
		return c
	}
	return types.CompareIdentity(a, b)
}

func compareExcluded(a, b *Excluded) int {
	return types.CompareIdentity(a.Order, b.Order)
}

// Build partitions and sorts both sides. verdicts must be indexed like bids. The input
// slices are not modified and the result does not depend on their order.
func Build(ctx context.Context, bids []*types.Order, verdicts []collateral.Verdict, offers []*types.Order) (*Book, error) {
	if len(verdicts) != len(bids) {
		return nil, fmt.Errorf("got %d collateral verdicts for %d bids", len(verdicts), len(bids))
	}

	book := &Book{}
	for i, bid := range bids {
		switch verdicts[i] {
		case collateral.VerdictSufficient:
			book.Bids = append(book.Bids, bid)
		case collateral.VerdictInsufficient:
			book.ExcludedBids = append(book.ExcludedBids, &Excluded{Order: bid, Status: types.StatusInsufficientCollateral})
		default:
			book.ExcludedBids = append(book.ExcludedBids, &Excluded{Order: bid, Status: types.StatusUnassigned})
		}
	}
	for _, offer := range offers {
		if offer.IsRevealed() {
			book.Offers = append(book.Offers, offer)
		} else {
			book.ExcludedOffers = append(book.ExcludedOffers, &Excluded{Order: offer, Status: types.StatusUnassigned})
		}
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		slices.SortFunc(book.Bids, CompareBids)
		slices.SortFunc(book.ExcludedBids, compareExcluded)
		return nil
	})
	g.Go(func() error {
		slices.SortFunc(book.Offers, CompareOffers)
		slices.SortFunc(book.ExcludedOffers, compareExcluded)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return book, nil
}
