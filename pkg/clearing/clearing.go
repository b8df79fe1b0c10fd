// Package clearing finds the uniform clearing rate of a sealed-bid lending auction and
// allocates the matched volume across both books.
//
// The candidate rates are the distinct revealed prices. At each rate p the engine computes
//
//	D(p) = sum of bid amounts priced >= p
//	S(p) = sum of offer amounts priced <= p
//	V(p) = min(D(p), S(p))
//
// The rates maximizing V form a contiguous range [lo, hi]. The clearing rate is the floor
// midpoint of lo and the highest rate at or above lo where demand still covers supply, which
// never exceeds hi. Raising a bid never lowers the clearing rate. Offers get no such promise:
// any volume-maximizing rate can be forced down or up when an offer is raised.
//
// Volume is handed out by price group in book order. The first group that does not fit is
// filled pro-rata and its truncation remainder goes to the earliest orders of the group.
package clearing

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/pkg/collateral"
	"github.com/Layr-Labs/zkauction-go/pkg/orderbook"
	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

// Level is one candidate clearing rate with the cumulative volumes on each side.
type Level struct {
	Price  *uint256.Int
	Demand *uint256.Int
	Supply *uint256.Int
}

// Matched is min(Demand, Supply).
func (l *Level) Matched() *uint256.Int {
	if l.Demand.Lt(l.Supply) {
		return l.Demand
	}
	return l.Supply
}

// Outcome is the clearing rate, matched volume and per-order allocations of one book.
type Outcome struct {
	// Cleared is false when the books do not cross; every order is then unassigned.
	Cleared       bool
	ClearingPrice *uint256.Int
	Volume        *uint256.Int

	// Bids and Offers follow book order.
	Bids   []*types.Allocation
	Offers []*types.Allocation
}

// Engine clears built books for one loan term.
type Engine struct {
	dayCount *uint256.Int
	logger   *zap.Logger
}

// NewEngine returns an engine computing repurchase obligations over dayCount days.
func NewEngine(dayCount *uint256.Int, l *zap.Logger) *Engine {
	if dayCount == nil {
		dayCount = new(uint256.Int)
	}
	return &Engine{dayCount: dayCount.Clone(), logger: l}
}

// Clear runs price discovery and allocation over a built book.
func (e *Engine) Clear(book *orderbook.Book) (*Outcome, error) {
	levels, err := Levels(book.Bids, book.Offers)
	if err != nil {
		return nil, err
	}

	price, volume, ok := ClearingPrice(levels)
	if !ok {
		e.logger.Sugar().Infow("Books do not cross, nothing clears",
			"bids", len(book.Bids),
			"offers", len(book.Offers),
		)
		return e.unassigned(book), nil
	}

	bidSettled, err := allocate(book.Bids, volume, func(o *types.Order) bool { return !o.RevealedPrice.Lt(price) })
	if err != nil {
		return nil, errors.WithMessage(err, "failed to allocate bids")
	}
	offerSettled, err := allocate(book.Offers, volume, func(o *types.Order) bool { return !o.RevealedPrice.Gt(price) })
	if err != nil {
		return nil, errors.WithMessage(err, "failed to allocate offers")
	}

	out := &Outcome{
		Cleared:       true,
		ClearingPrice: price,
		Volume:        volume,
		Bids:          make([]*types.Allocation, len(book.Bids)),
		Offers:        make([]*types.Allocation, len(book.Offers)),
	}
	for i, bid := range book.Bids {
		repurchase, overflow := collateral.RepurchaseAmount(bidSettled[i], price, e.dayCount)
		if overflow {
			return nil, errors.Wrapf(types.ErrArithmeticOverflow, "repurchase amount of bid %s/%s", bid.Participant.Hex(), bid.ID)
		}
		out.Bids[i] = allocation(bid, bidSettled[i], repurchase)
	}
	for i, offer := range book.Offers {
		out.Offers[i] = allocation(offer, offerSettled[i], new(uint256.Int))
	}

	if err := checkConservation(out, book); err != nil {
		return nil, err
	}

	e.logger.Sugar().Infow("Cleared auction",
		"clearingPrice", price.Dec(),
		"volume", volume.Dec(),
		"bids", len(book.Bids),
		"offers", len(book.Offers),
	)
	return out, nil
}

func (e *Engine) unassigned(book *orderbook.Book) *Outcome {
	out := &Outcome{
		ClearingPrice: new(uint256.Int),
		Volume:        new(uint256.Int),
		Bids:          make([]*types.Allocation, len(book.Bids)),
		Offers:        make([]*types.Allocation, len(book.Offers)),
	}
	for i, bid := range book.Bids {
		out.Bids[i] = allocation(bid, new(uint256.Int), new(uint256.Int))
	}
	for i, offer := range book.Offers {
		out.Offers[i] = allocation(offer, new(uint256.Int), new(uint256.Int))
	}
	return out
}

// Levels merges the distinct prices of both books into ascending candidate levels.
// bids must be in bid book order (descending price), offers in offer book order.
func Levels(bids, offers []*types.Order) ([]*Level, error) {
	totalBids, err := sum(bids)
	if err != nil {
		return nil, errors.WithMessage(err, "bid total")
	}
	if _, err := sum(offers); err != nil {
		return nil, errors.WithMessage(err, "offer total")
	}

	levels := make([]*Level, 0, len(bids)+len(offers))
	below := new(uint256.Int)  // bids priced strictly under the current level
	supply := new(uint256.Int) // offers priced at or under the current level
	ib, io := len(bids)-1, 0

	for ib >= 0 || io < len(offers) {
		var price *uint256.Int
		switch {
		case ib < 0:
			price = offers[io].RevealedPrice
		case io >= len(offers):
			price = bids[ib].RevealedPrice
		case bids[ib].RevealedPrice.Lt(offers[io].RevealedPrice):
			price = bids[ib].RevealedPrice
		default:
			price = offers[io].RevealedPrice
		}

		for ; io < len(offers) && offers[io].RevealedPrice.Eq(price); io++ {
			supply = new(uint256.Int).Add(supply, offers[io].Amount())
		}
		levels = append(levels, &Level{
			Price:  price.Clone(),
			Demand: new(uint256.Int).Sub(totalBids, below),
			Supply: supply,
		})
		for ; ib >= 0 && bids[ib].RevealedPrice.Eq(price); ib-- {
			below = new(uint256.Int).Add(below, bids[ib].Amount())
		}
	}

	return levels, nil
}

// ClearingPrice returns the clearing rate and the maximal matched volume. ok is false when
// no level matches any volume.
//
// lo is the lowest rate matching the maximal volume and cross is the highest rate at or above
// lo where D(p) >= S(p) still holds. The rate is the floor midpoint of lo and cross. Raising a
// bid can only move either end up, so it never lowers the rate.
func ClearingPrice(levels []*Level) (price, volume *uint256.Int, ok bool) {
	volume = new(uint256.Int)
	lo := -1
	for i, level := range levels {
		if matched := level.Matched(); matched.Gt(volume) {
			volume = matched.Clone()
			lo = i
		}
	}
	if lo < 0 {
		return new(uint256.Int), new(uint256.Int), false
	}

	low := levels[lo].Price
	cross := low
	for i := lo + 1; i < len(levels); i++ {
		prev, level := levels[i-1], levels[i]
		// Strictly between two levels demand is D at the upper one and supply is S at the lower.
		gap := new(uint256.Int).AddUint64(prev.Price, 1)
		if gap.Lt(level.Price) && !level.Demand.Lt(prev.Supply) {
			cross = new(uint256.Int).SubUint64(level.Price, 1)
		}
		if level.Demand.Lt(level.Supply) {
			break
		}
		cross = level.Price
	}

	price = new(uint256.Int).Sub(cross, low)
	price.Rsh(price, 1)
	price.Add(price, low)
	return price, volume, true
}

// allocate distributes volume over the eligible prefix of a book, returning settled
// amounts indexed like orders.
func allocate(orders []*types.Order, volume *uint256.Int, eligible func(*types.Order) bool) ([]*uint256.Int, error) {
	settled := make([]*uint256.Int, len(orders))
	for i := range settled {
		settled[i] = new(uint256.Int)
	}

	remaining := volume.Clone()
	for start := 0; start < len(orders) && !remaining.IsZero() && eligible(orders[start]); {
		end := start + 1
		for end < len(orders) && orders[end].RevealedPrice.Eq(orders[start].RevealedPrice) {
			end++
		}
		group := orders[start:end]

		total, err := sum(group)
		if err != nil {
			return nil, err
		}
		if !total.Gt(remaining) {
			for i, o := range group {
				settled[start+i] = o.Amount().Clone()
			}
			remaining.Sub(remaining, total)
		} else {
			proRata(group, remaining, total, settled[start:end])
			remaining.Clear()
		}
		start = end
	}

	if !remaining.IsZero() {
		return nil, errors.Wrapf(types.ErrArithmeticOverflow, "%s of matched volume left unallocated", remaining.Dec())
	}
	return settled, nil
}

// proRata assigns floor(remaining * amount / total) to each order of the marginal group,
// then hands the truncation remainder out in book order, never past an order's amount.
func proRata(group []*types.Order, remaining, total *uint256.Int, out []*uint256.Int) {
	distributed := new(uint256.Int)
	for i, o := range group {
		// remaining * amount / total <= remaining, so the quotient always fits.
		share, _ := new(uint256.Int).MulDivOverflow(remaining, o.Amount(), total)
		out[i] = share
		distributed.Add(distributed, share)
	}

	left := new(uint256.Int).Sub(remaining, distributed)
	for i, o := range group {
		if left.IsZero() {
			break
		}
		capacity := new(uint256.Int).Sub(o.Amount(), out[i])
		extra := left
		if capacity.Lt(left) {
			extra = capacity
		}
		out[i] = new(uint256.Int).Add(out[i], extra)
		left = new(uint256.Int).Sub(left, extra)
	}
}

func allocation(o *types.Order, settled, repurchase *uint256.Int) *types.Allocation {
	status := types.StatusPartiallyAssigned
	switch {
	case settled.IsZero():
		status = types.StatusUnassigned
	case settled.Eq(o.Amount()):
		status = types.StatusFullyAssigned
	}
	return &types.Allocation{
		Side:             o.Side,
		ID:               o.ID,
		Participant:      o.Participant,
		Status:           status,
		Amount:           o.Amount().Clone(),
		SettledAmount:    settled,
		RepurchaseAmount: repurchase,
		Collateral:       o.Collateral().Clone(),
	}
}

func sum(orders []*types.Order) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, o := range orders {
		var overflow bool
		if total, overflow = new(uint256.Int).AddOverflow(total, o.Amount()); overflow {
			return nil, errors.Wrapf(types.ErrArithmeticOverflow, "summing %s amounts", o.Side)
		}
	}
	return total, nil
}

func settledTotal(allocs []*types.Allocation) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, a := range allocs {
		var overflow bool
		if total, overflow = new(uint256.Int).AddOverflow(total, a.SettledAmount); overflow {
			return nil, errors.Wrap(types.ErrArithmeticOverflow, "summing settled amounts")
		}
	}
	return total, nil
}

// checkConservation asserts both sides settle exactly the matched volume and that neither
// side settles more than it put up.
func checkConservation(out *Outcome, book *orderbook.Book) error {
	bidsSettled, err := settledTotal(out.Bids)
	if err != nil {
		return err
	}
	offersSettled, err := settledTotal(out.Offers)
	if err != nil {
		return err
	}
	if !bidsSettled.Eq(out.Volume) || !offersSettled.Eq(out.Volume) {
		return errors.Wrapf(types.ErrArithmeticOverflow, "settled bids %s and offers %s differ from matched volume %s",
			bidsSettled.Dec(), offersSettled.Dec(), out.Volume.Dec())
	}

	totalBids, err := sum(book.Bids)
	if err != nil {
		return err
	}
	totalOffers, err := sum(book.Offers)
	if err != nil {
		return err
	}
	if out.Volume.Gt(totalBids) || out.Volume.Gt(totalOffers) {
		return errors.Wrapf(types.ErrArithmeticOverflow, "matched volume %s exceeds book totals", out.Volume.Dec())
	}
	for _, a := range append(append([]*types.Allocation{}, out.Bids...), out.Offers...) {
		if a.SettledAmount.Gt(a.Amount) {
			return errors.Wrapf(types.ErrArithmeticOverflow, "%s %s/%s settled %s of %s",
				a.Side, a.Participant.Hex(), a.ID, a.SettledAmount.Dec(), a.Amount.Dec())
		}
	}
	return nil
}
