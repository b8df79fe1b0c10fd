// Package input reads and writes closed auction batches as JSON files.
//
// Integers are decimal strings (or 0x-prefixed hex on input); hashes and addresses are
// 0x-prefixed hex. A batch carries everything auction.Run needs, so a run can be repeated
// offline from the file alone.
package input

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/Layr-Labs/zkauction-go/pkg/auction"
	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

type Accumulators struct {
	BidsHash   common.Hash `json:"bidsHash"`
	OffersHash common.Hash `json:"offersHash"`
}

type Parameters struct {
	PurchaseToken   common.Address `json:"purchaseToken"`
	PurchasePrice   string         `json:"purchasePrice"`
	CollateralToken common.Address `json:"collateralToken"`
	CollateralPrice string         `json:"collateralPrice"`
	DayCount        string         `json:"dayCount"`
}

// Event is one ledger log. Only the fields used by Kind are present.
type Event struct {
	Kind            string         `json:"kind"`
	Participant     common.Address `json:"participant"`
	ID              string         `json:"id"`
	PriceCommitment *common.Hash   `json:"priceCommitment,omitempty"`
	Amount          string         `json:"amount,omitempty"`
	Collateral      string         `json:"collateral,omitempty"`
	Price           string         `json:"price,omitempty"`
	Nonce           string         `json:"nonce,omitempty"`
}

type Batch struct {
	// Label names the auction the batch belongs to.
	Label string `json:"label,omitempty"`

	// FromBlock and ToBlock record where the events were read, when fetched from a ledger.
	FromBlock uint64 `json:"fromBlock,omitempty"`
	ToBlock   uint64 `json:"toBlock,omitempty"`

	ProverAddress common.Address `json:"proverAddress"`
	Parameters    Parameters     `json:"parameters"`

	// Initial may be omitted to use the announced initial accumulators.
	Initial  *Accumulators `json:"initialAccumulators,omitempty"`
	Expected Accumulators  `json:"expectedAccumulators"`

	BidEvents   []*Event `json:"bidEvents"`
	OfferEvents []*Event `json:"offerEvents"`
}

func Parse(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}
	return &b, nil
}

func Load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return Parse(data)
}

// Write stores the batch as indented JSON.
func Write(path string, b *Batch) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write batch file: %w", err)
	}
	return nil
}

// Hash is keccak256 of the batch's compact JSON encoding. Whitespace and key order in
// the source file do not affect it.
func (b *Batch) Hash() (common.Hash, error) {
	canonical, err := b.canonical()
	if err != nil {
		return common.Hash{}, err
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to marshal batch: %w", err)
	}
	return crypto.Keccak256Hash(data), nil
}

// canonical round-trips the batch through auction.Input so equal inputs written with
// different integer spellings hash the same.
func (b *Batch) canonical() (*Batch, error) {
	in, err := b.ToInput()
	if err != nil {
		return nil, err
	}
	c := FromInput(in)
	c.Label = b.Label
	c.FromBlock = b.FromBlock
	c.ToBlock = b.ToBlock
	return c, nil
}

// ToInput converts the batch. Malformed fields are reported as auction.ErrInvalidInput.
func (b *Batch) ToInput() (*auction.Input, error) {
	params, err := b.Parameters.toTypes()
	if err != nil {
		return nil, errors.Wrap(auction.ErrInvalidInput, err.Error())
	}

	bids, err := toEvents(b.BidEvents)
	if err != nil {
		return nil, errors.Wrapf(auction.ErrInvalidInput, "bid events: %v", err)
	}
	offers, err := toEvents(b.OfferEvents)
	if err != nil {
		return nil, errors.Wrapf(auction.ErrInvalidInput, "offer events: %v", err)
	}

	in := &auction.Input{
		BidEvents:     bids,
		OfferEvents:   offers,
		Expected:      types.AccumulatorState(b.Expected),
		Parameters:    params,
		ProverAddress: b.ProverAddress,
	}
	if b.Initial != nil {
		in.Initial = types.AccumulatorState(*b.Initial)
	}
	return in, nil
}

// FromInput is the inverse of ToInput. A zero Initial is left out of the batch.
func FromInput(in *auction.Input) *Batch {
	b := &Batch{
		ProverAddress: in.ProverAddress,
		Expected:      Accumulators(in.Expected),
		BidEvents:     fromEvents(in.BidEvents),
		OfferEvents:   fromEvents(in.OfferEvents),
	}
	if in.Parameters != nil {
		b.Parameters = fromParameters(in.Parameters)
	}
	if in.Initial != (types.AccumulatorState{}) {
		initial := Accumulators(in.Initial)
		b.Initial = &initial
	}
	return b
}

func (p *Parameters) toTypes() (*types.AuctionParameters, error) {
	purchasePrice, err := parseField("purchasePrice", p.PurchasePrice)
	if err != nil {
		return nil, err
	}
	collateralPrice, err := parseField("collateralPrice", p.CollateralPrice)
	if err != nil {
		return nil, err
	}
	dayCount, err := parseField("dayCount", p.DayCount)
	if err != nil {
		return nil, err
	}
	return &types.AuctionParameters{
		PurchaseToken:   p.PurchaseToken,
		PurchasePrice:   purchasePrice,
		CollateralToken: p.CollateralToken,
		CollateralPrice: collateralPrice,
		DayCount:        dayCount,
	}, nil
}

func fromParameters(p *types.AuctionParameters) Parameters {
	return Parameters{
		PurchaseToken:   p.PurchaseToken,
		PurchasePrice:   dec(p.PurchasePrice),
		CollateralToken: p.CollateralToken,
		CollateralPrice: dec(p.CollateralPrice),
		DayCount:        dec(p.DayCount),
	}
}

func toEvents(in []*Event) ([]*types.Event, error) {
	out := make([]*types.Event, len(in))
	for i, e := range in {
		event, err := e.toTypes()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out[i] = event
	}
	return out, nil
}

func (e *Event) toTypes() (*types.Event, error) {
	if e == nil {
		return nil, fmt.Errorf("null event")
	}
	kind, err := types.ParseEventKind(e.Kind)
	if err != nil {
		return nil, err
	}
	id, err := types.ParseOrderID(e.ID)
	if err != nil {
		return nil, err
	}

	event := &types.Event{Kind: kind, Participant: e.Participant, ID: id}

	// Fields the kind does not carry are ignored, matching what the ledger hashes.
	type field struct {
		name string
		raw  string
		dst  **uint256.Int
	}
	var fields []field
	switch kind {
	case types.EventLockBid:
		fields = []field{{"amount", e.Amount, &event.Amount}, {"collateral", e.Collateral, &event.Collateral}}
	case types.EventUnlockBid:
		fields = []field{{"collateral", e.Collateral, &event.Collateral}}
	case types.EventLockOffer, types.EventUnlockOffer:
		fields = []field{{"amount", e.Amount, &event.Amount}}
	case types.EventRevealBid, types.EventRevealOffer:
		fields = []field{{"price", e.Price, &event.Price}, {"nonce", e.Nonce, &event.Nonce}}
	}
	if (kind == types.EventLockBid || kind == types.EventLockOffer) && e.PriceCommitment != nil {
		event.PriceCommitment = *e.PriceCommitment
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		if *f.dst, err = parseField(f.name, f.raw); err != nil {
			return nil, err
		}
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// fromEvents writes only the fields each kind carries.
func fromEvents(in []*types.Event) []*Event {
	out := make([]*Event, len(in))
	for i, e := range in {
		event := &Event{
			Kind:        e.Kind.String(),
			Participant: e.Participant,
			ID:          e.ID.String(),
		}
		switch e.Kind {
		case types.EventLockBid:
			commitment := e.PriceCommitment
			event.PriceCommitment = &commitment
			event.Amount = dec(e.Amount)
			event.Collateral = dec(e.Collateral)
		case types.EventUnlockBid:
			event.Collateral = dec(e.Collateral)
		case types.EventLockOffer:
			commitment := e.PriceCommitment
			event.PriceCommitment = &commitment
			event.Amount = dec(e.Amount)
		case types.EventUnlockOffer:
			event.Amount = dec(e.Amount)
		case types.EventRevealBid, types.EventRevealOffer:
			event.Price = dec(e.Price)
			event.Nonce = dec(e.Nonce)
		}
		out[i] = event
	}
	return out
}

func parseField(name, raw string) (*uint256.Int, error) {
	v, err := types.ParseUint256(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return v, nil
}

// dec renders nil as "", which omitempty then drops.
func dec(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}
