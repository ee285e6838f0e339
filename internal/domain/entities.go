package domain

import (
	"math"
	"time"
)

// Bidder is the opaque identity of a participant, as supplied by the identity provider.
type Bidder string

// Money is an amount in the smallest currency unit.
type Money int64

// MaxMoney is the largest amount the ledger can hold.
const MaxMoney = Money(math.MaxInt64)

// Percent returns m*pct/100, truncated toward zero. The product is split so it cannot
// overflow for 0 <= pct <= 100.
func (m Money) Percent(pct int64) Money {
	return m/100*Money(pct) + m%100*Money(pct)/100
}

// AddChecked returns m+o and false if the sum of the two non-negative amounts overflows.
func (m Money) AddChecked(o Money) (Money, bool) {
	if o > MaxMoney-m {
		return MaxMoney, false
	}
	return m + o, true
}

// BidReceipt describes the ledger right after an accepted bid.
type BidReceipt struct {
	Bidder     Bidder    `json:"bidder"`
	Amount     Money     `json:"amount"`
	Deadline   time.Time `json:"deadline"`
	MinimumBid Money     `json:"minimum_bid"`
	Extended   bool      `json:"extended"`
}

type Offer struct {
	Bidder    Bidder    `json:"bidder"`
	Amount    Money     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type AuctionStatus int

const (
	AuctionActive AuctionStatus = iota
	AuctionClosed
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionActive:
		return "active"
	case AuctionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s AuctionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AuctionSnapshot is a consistent read of the ledger at one point in the mutation sequence.
type AuctionSnapshot struct {
	Owner       Bidder        `json:"owner"`
	Status      AuctionStatus `json:"status"`
	Deadline    time.Time     `json:"deadline"`
	BestOffer   Money         `json:"best_offer"`
	BestBidder  Bidder        `json:"best_bidder,omitempty"`
	Funds       Money         `json:"funds"`
	BidderCount int           `json:"bidder_count"`
}

func (s AuctionSnapshot) Active() bool {
	return s.Status == AuctionActive
}

// Transfer is a single payout handed to the funds channel.
type Transfer struct {
	ID        string
	Recipient Bidder
	Amount    Money
	Reason    TransferReason
}

type TransferReason string

const (
	TransferExcessRefund TransferReason = "excess_refund"
	TransferLoserRefund  TransferReason = "loser_refund"
	TransferOwnerSweep   TransferReason = "owner_sweep"
	TransferEmergency    TransferReason = "emergency_withdrawal"
)

type LedgerEvent struct {
	ID        string          `json:"id"`
	Type      LedgerEventType `json:"type"`
	Bidder    Bidder          `json:"bidder,omitempty"`
	Amount    Money           `json:"amount"`
	Deadline  time.Time       `json:"deadline,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type LedgerEventType string

const (
	BidPlaced           LedgerEventType = "bid_placed"
	AuctionExtended     LedgerEventType = "auction_extended"
	ExcessRefunded      LedgerEventType = "excess_refunded"
	AuctionFinished     LedgerEventType = "auction_finished"
	DepositsSettled     LedgerEventType = "deposits_settled"
	EmergencyWithdrawal LedgerEventType = "emergency_withdrawal"
)
