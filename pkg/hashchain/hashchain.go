// Package hashchain replays the ledger's bid and offer event logs, recomputing the two
// rolling accumulators and reconciling the live order set as it goes.
package hashchain

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

// Next folds one event into an accumulator: keccak256(acc || encodePacked(event)).
func Next(acc common.Hash, e *types.Event) common.Hash {
	return crypto.Keccak256Hash(acc[:], e.EncodePacked())
}

// Accumulate folds a whole log starting from initial.
func Accumulate(initial common.Hash, events []*types.Event) common.Hash {
	acc := initial
	for _, e := range events {
		acc = Next(acc, e)
	}
	return acc
}

// Result is the reconciled state after a successful replay.
type Result struct {
	// Bids and Offers are the live orders in first-lock order.
	Bids   []*types.Order
	Offers []*types.Order

	Accumulators types.AccumulatorState

	// RejectedReveals counts reveals that were hashed but not applied.
	RejectedReveals int
}

// Replayer rebuilds both accumulator chains from the event log and reconciles order state.
type Replayer struct {
	maxPrice *uint256.Int
	logger   *zap.Logger
}

// NewReplayer returns a replayer accepting reveals up to maxPrice. A nil maxPrice uses types.MaxPrice.
func NewReplayer(maxPrice *uint256.Int, l *zap.Logger) *Replayer {
	if maxPrice == nil {
		maxPrice = uint256.NewInt(types.MaxPrice)
	}
	return &Replayer{maxPrice: maxPrice.Clone(), logger: l}
}

// Replay folds both logs from initial and checks the results against expected.
// Any error is fatal for the run; no partial state is returned.
func (r *Replayer) Replay(bidEvents, offerEvents []*types.Event, initial, expected types.AccumulatorState) (*Result, error) {
	bids := newOrderSet(types.SideBid)
	bidsHash, rejectedBids, err := r.fold(bids, bidEvents, initial.BidsHash)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to replay bid events")
	}

	offers := newOrderSet(types.SideOffer)
	offersHash, rejectedOffers, err := r.fold(offers, offerEvents, initial.OffersHash)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to replay offer events")
	}

	if bidsHash != expected.BidsHash {
		return nil, errors.Wrapf(types.ErrChainMismatch, "bids accumulator: computed %s, ledger has %s", bidsHash.Hex(), expected.BidsHash.Hex())
	}
	if offersHash != expected.OffersHash {
		return nil, errors.Wrapf(types.ErrChainMismatch, "offers accumulator: computed %s, ledger has %s", offersHash.Hex(), expected.OffersHash.Hex())
	}

	res := &Result{
		Bids:            bids.live(),
		Offers:          offers.live(),
		Accumulators:    types.AccumulatorState{BidsHash: bidsHash, OffersHash: offersHash},
		RejectedReveals: rejectedBids + rejectedOffers,
	}
	r.logger.Sugar().Debugw("Replayed hash chains",
		"bidEvents", len(bidEvents),
		"offerEvents", len(offerEvents),
		"liveBids", len(res.Bids),
		"liveOffers", len(res.Offers),
		"rejectedReveals", res.RejectedReveals,
	)
	return res, nil
}

func (r *Replayer) fold(set *orderSet, events []*types.Event, initial common.Hash) (common.Hash, int, error) {
	acc := initial
	rejected := 0
	for i, e := range events {
		if e == nil {
			return common.Hash{}, 0, errors.Wrapf(types.ErrInvalidInput, "event %d is nil", i)
		}
		if e.Kind.Side() != set.side {
			return common.Hash{}, 0, errors.Wrapf(types.ErrInvalidInput, "event %d (%s) does not belong to the %s chain", i, e.Kind, set.side)
		}
		if err := e.Validate(); err != nil {
			return common.Hash{}, 0, errors.Wrapf(types.ErrInvalidInput, "event %d: %v", i, err)
		}

		applied, err := r.apply(set, e)
		if err != nil {
			return common.Hash{}, 0, errors.WithMessagef(err, "event %d (%s %s/%s)", i, e.Kind, e.Participant.Hex(), e.ID)
		}
		if !applied {
			rejected++
			r.logger.Sugar().Debugw("Ignoring invalid reveal",
				"kind", e.Kind.String(),
				"participant", e.Participant.Hex(),
				"orderId", e.ID.String(),
			)
		}
		acc = Next(acc, e)
	}
	return acc, rejected, nil
}

// apply reconciles one event. It returns false only for a reveal that was rejected.
func (r *Replayer) apply(set *orderSet, e *types.Event) (bool, error) {
	key := types.OrderKey(e.Participant, e.ID)
	existing := set.get(key)

	switch e.Kind {
	case types.EventLockBid:
		if existing == nil {
			set.put(key, types.NewBid(e.Participant, e.ID, e.PriceCommitment, e.Amount, e.Collateral))
			return true, nil
		}
		collateral, overflow := new(uint256.Int).AddOverflow(existing.Bid.Collateral, e.Collateral)
		if overflow {
			return false, errors.Wrap(types.ErrArithmeticOverflow, "bid collateral")
		}
		existing.PriceCommitment = e.PriceCommitment
		existing.Bid.Amount = e.Amount.Clone()
		existing.Bid.Collateral = collateral
		existing.ClearReveal()

	case types.EventLockOffer:
		if existing == nil {
			set.put(key, types.NewOffer(e.Participant, e.ID, e.PriceCommitment, e.Amount))
			return true, nil
		}
		amount, overflow := new(uint256.Int).AddOverflow(existing.Offer.Amount, e.Amount)
		if overflow {
			return false, errors.Wrap(types.ErrArithmeticOverflow, "offer amount")
		}
		existing.PriceCommitment = e.PriceCommitment
		existing.Offer.Amount = amount
		existing.ClearReveal()

	case types.EventUnlockBid:
		if existing == nil {
			return false, errors.Wrap(types.ErrInvalidInput, "unlock of unknown bid")
		}
		remaining, underflow := new(uint256.Int).SubOverflow(existing.Bid.Collateral, e.Collateral)
		if underflow {
			return false, errors.Wrap(types.ErrArithmeticOverflow, "unlocking more collateral than locked")
		}
		if remaining.IsZero() {
			set.remove(key)
			return true, nil
		}
		existing.Bid.Collateral = remaining

	case types.EventUnlockOffer:
		if existing == nil {
			return false, errors.Wrap(types.ErrInvalidInput, "unlock of unknown offer")
		}
		remaining, underflow := new(uint256.Int).SubOverflow(existing.Offer.Amount, e.Amount)
		if underflow {
			return false, errors.Wrap(types.ErrArithmeticOverflow, "unlocking more than the offered amount")
		}
		if remaining.IsZero() {
			set.remove(key)
			return true, nil
		}
		existing.Offer.Amount = remaining

	case types.EventRevealBid, types.EventRevealOffer:
		if existing == nil || e.Price.Gt(r.maxPrice) {
			return false, nil
		}
		if types.PriceCommitment(e.Price, e.Nonce) != existing.PriceCommitment {
			return false, nil
		}
		existing.Reveal(e.Price, e.Nonce)
	}
	return true, nil
}

// orderSet tracks live orders of one side keyed by (participant, id), remembering creation order.
type orderSet struct {
	side   types.Side
	orders map[common.Hash]*types.Order
	seq    map[common.Hash]uint64
	next   uint64
}

func newOrderSet(side types.Side) *orderSet {
	return &orderSet{
		side:   side,
		orders: make(map[common.Hash]*types.Order),
		seq:    make(map[common.Hash]uint64),
	}
}

func (s *orderSet) get(key common.Hash) *types.Order {
	return s.orders[key]
}

func (s *orderSet) put(key common.Hash, o *types.Order) {
	s.orders[key] = o
	s.seq[key] = s.next
	s.next++
}

func (s *orderSet) remove(key common.Hash) {
	delete(s.orders, key)
	delete(s.seq, key)
}

// live returns the surviving orders sorted by creation sequence, never by map order.
func (s *orderSet) live() []*types.Order {
	keys := make([]common.Hash, 0, len(s.orders))
	for key := range s.orders {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b common.Hash) int {
		switch {
		case s.seq[a] < s.seq[b]:
			return -1
		case s.seq[a] > s.seq[b]:
			return 1
		default:
			return 0
		}
	})

	out := make([]*types.Order, len(keys))
	for i, key := range keys {
		out[i] = s.orders[key].Clone()
	}
	return out
}
