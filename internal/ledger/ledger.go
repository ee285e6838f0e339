package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"auction-ledger/internal/domain"
	"auction-ledger/pkg/logger"
	"auction-ledger/pkg/utils"
)

// Rules are fixed for the lifetime of a ledger.
type Rules struct {
	MinIncrementPct int64
	FeePct          int64
	ExtensionWindow time.Duration
	InitialDuration time.Duration
}

var DefaultRules = Rules{
	MinIncrementPct: 5,
	FeePct:          2,
	ExtensionWindow: 10 * time.Minute,
	InitialDuration: 10 * time.Minute,
}

func (r Rules) Validate() error {
	if r.MinIncrementPct < 0 || r.MinIncrementPct > 100 {
		return fmt.Errorf("min increment must be within 0-100, got %d", r.MinIncrementPct)
	}
	if r.FeePct < 0 || r.FeePct > 100 {
		return fmt.Errorf("fee must be within 0-100, got %d", r.FeePct)
	}
	if r.ExtensionWindow <= 0 || r.InitialDuration <= 0 {
		return errors.New("extension window and initial duration must be positive")
	}
	return nil
}

// AuctionLedger holds the complete state of one auction. Mutations are serialized by a
// single lock which is held across the call into the funds channel, so readers never see
// a change that could still be rolled back.
type AuctionLedger struct {
	mu     sync.RWMutex
	owner  domain.Bidder
	rules  Rules
	st     *state
	funds  domain.FundsTransfer
	events domain.EventPublisher
	log    logger.Logger
}

func New(
	owner domain.Bidder,
	start time.Time,
	rules Rules,
	funds domain.FundsTransfer,
	events domain.EventPublisher,
	log logger.Logger,
) (*AuctionLedger, error) {
	if owner == "" {
		return nil, errors.New("auction owner is required")
	}
	if funds == nil {
		return nil, errors.New("funds channel is required")
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	return &AuctionLedger{
		owner:  owner,
		rules:  rules,
		st:     newState(start.Add(rules.InitialDuration)),
		funds:  funds,
		events: events,
		log:    log,
	}, nil
}

func (l *AuctionLedger) PlaceBid(ctx context.Context, bidder domain.Bidder, amount domain.Money, now time.Time) error {
	_, err := l.Bid(ctx, bidder, amount, now)
	return err
}

// Bid places a bid and reports the deadline and next minimum as of this bid.
func (l *AuctionLedger) Bid(ctx context.Context, bidder domain.Bidder, amount domain.Money, now time.Time) (domain.BidReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.st
	if !st.active {
		return domain.BidReceipt{}, domain.ErrAuctionClosed
	}

	minimum := l.minimumBid()
	if amount <= minimum {
		return domain.BidReceipt{}, fmt.Errorf("%w: %d must exceed %d", domain.ErrBidTooLow, amount, minimum)
	}

	balance, ok := st.balances[bidder].AddChecked(amount)
	if !ok {
		return domain.BidReceipt{}, fmt.Errorf("%w: balance of %s would exceed %d", domain.ErrInvalidAmount, bidder, domain.MaxMoney)
	}
	funds, ok := st.funds.AddChecked(amount)
	if !ok {
		return domain.BidReceipt{}, fmt.Errorf("%w: ledger funds would exceed %d", domain.ErrInvalidAmount, domain.MaxMoney)
	}

	if i, ok := st.offerIndex[bidder]; ok {
		st.offers[i] = domain.Offer{Bidder: bidder, Amount: amount, Timestamp: now}
	} else {
		st.offerIndex[bidder] = len(st.offers)
		st.offers = append(st.offers, domain.Offer{Bidder: bidder, Amount: amount, Timestamp: now})
		st.bidders = append(st.bidders, bidder)
	}
	st.balances[bidder] = balance
	st.funds = funds

	// The increment check above is the only gate; an accepted bid is always the new best.
	st.bestOffer = amount
	st.bestBidder = bidder

	extended := false
	if !now.Before(st.deadline.Add(-l.rules.ExtensionWindow)) {
		next := now.Add(l.rules.ExtensionWindow)
		extended = next.After(st.deadline)
		st.deadline = next
	}

	l.publish(ctx, &domain.LedgerEvent{
		Type:      domain.BidPlaced,
		Bidder:    bidder,
		Amount:    amount,
		Deadline:  st.deadline,
		Timestamp: now,
	})
	if extended {
		l.publish(ctx, &domain.LedgerEvent{
			Type:      domain.AuctionExtended,
			Bidder:    bidder,
			Amount:    amount,
			Deadline:  st.deadline,
			Timestamp: now,
		})
	}

	return domain.BidReceipt{
		Bidder:     bidder,
		Amount:     amount,
		Deadline:   st.deadline,
		MinimumBid: l.minimumBid(),
		Extended:   extended,
	}, nil
}

// PartialRefund pays back everything the bidder deposited beyond their current offer.
func (l *AuctionLedger) PartialRefund(ctx context.Context, bidder domain.Bidder, now time.Time) (domain.Money, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.st.active {
		return 0, domain.ErrAuctionClosed
	}

	i, ok := l.st.offerIndex[bidder]
	if !ok {
		return 0, domain.ErrNoOffersFound
	}

	excess := l.st.balances[bidder] - l.st.offers[i].Amount
	if excess <= 0 {
		return 0, domain.ErrNoExcessFunds
	}

	prev := l.st.clone()
	l.st.balances[bidder] -= excess
	l.st.funds -= excess

	err := l.transfer(ctx, []domain.Transfer{{
		Recipient: bidder,
		Amount:    excess,
		Reason:    domain.TransferExcessRefund,
	}})
	if err != nil {
		l.st = prev
		return 0, err
	}

	l.publish(ctx, &domain.LedgerEvent{
		Type:      domain.ExcessRefunded,
		Bidder:    bidder,
		Amount:    excess,
		Timestamp: now,
	})
	return excess, nil
}

// SettleDeposits refunds every bidder whose cumulative balance is below the best offer,
// keeping the fee, then sweeps whatever the ledger still holds to the owner. Bidders at or
// above the best offer are skipped; their deposits go to the owner with the sweep. A second
// call finds nothing left to pay and succeeds without moving funds.
func (l *AuctionLedger) SettleDeposits(ctx context.Context, caller domain.Bidder, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return domain.ErrNotOwner
	}
	if l.st.active {
		return domain.ErrAuctionActive
	}

	prev := l.st.clone()
	st := l.st

	transfers := make([]domain.Transfer, 0, len(st.bidders)+1)
	for _, bidder := range st.bidders {
		balance := st.balances[bidder]
		if balance >= st.bestOffer {
			continue
		}
		payout := balance - balance.Percent(l.rules.FeePct)
		st.balances[bidder] = 0
		st.funds -= payout
		transfers = append(transfers, domain.Transfer{
			Recipient: bidder,
			Amount:    payout,
			Reason:    domain.TransferLoserRefund,
		})
	}

	sweep := st.funds
	st.funds = 0
	transfers = append(transfers, domain.Transfer{
		Recipient: l.owner,
		Amount:    sweep,
		Reason:    domain.TransferOwnerSweep,
	})

	if err := l.transfer(ctx, transfers); err != nil {
		l.st = prev
		return err
	}

	l.publish(ctx, &domain.LedgerEvent{
		Type:      domain.DepositsSettled,
		Bidder:    l.owner,
		Amount:    sweep,
		Timestamp: now,
	})
	return nil
}

// EndAuction closes bidding for good. It is the only way out of the active state.
func (l *AuctionLedger) EndAuction(ctx context.Context, caller domain.Bidder, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return domain.ErrNotOwner
	}
	if !now.After(l.st.deadline) {
		return domain.ErrStillActive
	}
	if !l.st.active {
		return domain.ErrAuctionClosed
	}

	l.st.active = false

	l.publish(ctx, &domain.LedgerEvent{
		Type:      domain.AuctionFinished,
		Bidder:    l.st.bestBidder,
		Amount:    l.st.bestOffer,
		Deadline:  l.st.deadline,
		Timestamp: now,
	})
	return nil
}

// EmergencyWithdraw sends all funds still held to the owner without refunding anyone.
func (l *AuctionLedger) EmergencyWithdraw(ctx context.Context, caller domain.Bidder, now time.Time) (domain.Money, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return 0, domain.ErrNotOwner
	}
	if l.st.active {
		return 0, domain.ErrAuctionActive
	}
	if l.st.funds <= 0 {
		return 0, domain.ErrNothingToWithdraw
	}

	prev := l.st.clone()
	amount := l.st.funds
	l.st.funds = 0
	for bidder := range l.st.balances {
		l.st.balances[bidder] = 0
	}

	err := l.transfer(ctx, []domain.Transfer{{
		Recipient: l.owner,
		Amount:    amount,
		Reason:    domain.TransferEmergency,
	}})
	if err != nil {
		l.st = prev
		return 0, err
	}

	l.publish(ctx, &domain.LedgerEvent{
		Type:      domain.EmergencyWithdrawal,
		Bidder:    l.owner,
		Amount:    amount,
		Timestamp: now,
	})
	return amount, nil
}

// ShowWinner returns the current best bidder and amount. ok is false until the first bid.
func (l *AuctionLedger) ShowWinner() (winner domain.Bidder, ok bool, amount domain.Money) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.st.bestBidder, len(l.st.offers) > 0, l.st.bestOffer
}

// ListOffers returns the latest offer of every bidder in order of first bid.
func (l *AuctionLedger) ListOffers() []domain.Offer {
	l.mu.RLock()
	defer l.mu.RUnlock()

	offers := make([]domain.Offer, len(l.st.offers))
	copy(offers, l.st.offers)
	return offers
}

func (l *AuctionLedger) BalanceOf(bidder domain.Bidder) domain.Money {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.st.balances[bidder]
}

// MinimumBid is the amount the next bid has to exceed.
func (l *AuctionLedger) MinimumBid() domain.Money {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.minimumBid()
}

func (l *AuctionLedger) Deadline() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.st.deadline
}

func (l *AuctionLedger) Owner() domain.Bidder {
	return l.owner
}

func (l *AuctionLedger) Rules() Rules {
	return l.rules
}

func (l *AuctionLedger) Snapshot() domain.AuctionSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	status := domain.AuctionActive
	if !l.st.active {
		status = domain.AuctionClosed
	}
	return domain.AuctionSnapshot{
		Owner:       l.owner,
		Status:      status,
		Deadline:    l.st.deadline,
		BestOffer:   l.st.bestOffer,
		BestBidder:  l.st.bestBidder,
		Funds:       l.st.funds,
		BidderCount: len(l.st.bidders),
	}
}

// minimumBid saturates at MaxMoney, which no bid can exceed.
func (l *AuctionLedger) minimumBid() domain.Money {
	minimum, _ := l.st.bestOffer.AddChecked(l.st.bestOffer.Percent(l.rules.MinIncrementPct))
	return minimum
}

// transfer forwards the non-zero payouts as one batch.
func (l *AuctionLedger) transfer(ctx context.Context, transfers []domain.Transfer) error {
	batch := make([]domain.Transfer, 0, len(transfers))
	for _, t := range transfers {
		if t.Amount <= 0 {
			continue
		}
		t.ID = utils.GenerateID("trf")
		batch = append(batch, t)
	}
	if len(batch) == 0 {
		return nil
	}

	if err := l.funds.Transfer(ctx, batch); err != nil {
		l.log.Error("Funds transfer failed", "transfers", len(batch), "error", err)
		return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	return nil
}

// publish is called with the lock held so events leave in mutation order.
func (l *AuctionLedger) publish(ctx context.Context, event *domain.LedgerEvent) {
	if l.events == nil {
		return
	}
	event.ID = utils.GenerateID("evt")
	if err := l.events.PublishLedgerEvent(ctx, event); err != nil {
		l.log.Warn("Failed to publish ledger event", "type", event.Type, "error", err)
	}
}
