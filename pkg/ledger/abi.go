package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

// AuctionLedgerABI covers the events and accumulator getters the auctioneer reads.
const AuctionLedgerABI = `[
	{"type":"event","name":"BidLocked","anonymous":false,"inputs":[
		{"name":"bidder","type":"address","indexed":true},
		{"name":"id","type":"uint96","indexed":true},
		{"name":"priceCommitment","type":"bytes32","indexed":false},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"collateral","type":"uint256","indexed":false}]},
	{"type":"event","name":"BidUnlocked","anonymous":false,"inputs":[
		{"name":"bidder","type":"address","indexed":true},
		{"name":"id","type":"uint96","indexed":true},
		{"name":"collateral","type":"uint256","indexed":false}]},
	{"type":"event","name":"BidRevealed","anonymous":false,"inputs":[
		{"name":"bidder","type":"address","indexed":true},
		{"name":"id","type":"uint96","indexed":true},
		{"name":"price","type":"uint256","indexed":false},
		{"name":"nonce","type":"uint256","indexed":false}]},
	{"type":"event","name":"OfferLocked","anonymous":false,"inputs":[
		{"name":"offeror","type":"address","indexed":true},
		{"name":"id","type":"uint96","indexed":true},
		{"name":"priceCommitment","type":"bytes32","indexed":false},
		{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"OfferUnlocked","anonymous":false,"inputs":[
		{"name":"offeror","type":"address","indexed":true},
		{"name":"id","type":"uint96","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"OfferRevealed","anonymous":false,"inputs":[
		{"name":"offeror","type":"address","indexed":true},
		{"name":"id","type":"uint96","indexed":true},
		{"name":"price","type":"uint256","indexed":false},
		{"name":"nonce","type":"uint256","indexed":false}]},
	{"type":"function","name":"accBidsHash","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"accOffersHash","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]}
]`

// EventNames maps each event kind to its contract event.
var EventNames = map[types.EventKind]string{
	types.EventLockBid:     "BidLocked",
	types.EventUnlockBid:   "BidUnlocked",
	types.EventRevealBid:   "BidRevealed",
	types.EventLockOffer:   "OfferLocked",
	types.EventUnlockOffer: "OfferUnlocked",
	types.EventRevealOffer: "OfferRevealed",
}

// ParseABI parses AuctionLedgerABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(AuctionLedgerABI))
}
