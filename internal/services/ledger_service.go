package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"auction-ledger/internal/domain"
	"auction-ledger/internal/ledger"
	"auction-ledger/pkg/logger"
)

// LedgerService stamps every ledger call with the clock and logs the outcome. Mutations
// read the clock and enter the ledger under one lock, so the ledger sees times in the
// order it applies operations.
type LedgerService struct {
	mu     sync.Mutex
	ledger *ledger.AuctionLedger
	clock  domain.Clock
	log    logger.Logger
}

func NewLedgerService(l *ledger.AuctionLedger, clock domain.Clock, log logger.Logger) *LedgerService {
	return &LedgerService{
		ledger: l,
		clock:  clock,
		log:    log,
	}
}

func (s *LedgerService) PlaceBid(ctx context.Context, bidder domain.Bidder, amount domain.Money) error {
	_, err := s.Bid(ctx, bidder, amount)
	return err
}

func (s *LedgerService) Bid(ctx context.Context, bidder domain.Bidder, amount domain.Money) (domain.BidReceipt, error) {
	s.log.Info("Placing bid", "bidder", bidder, "amount", amount)

	s.mu.Lock()
	receipt, err := s.ledger.Bid(ctx, bidder, amount, s.clock.Now())
	s.mu.Unlock()
	if err != nil {
		s.logRejection("Bid rejected", err, "bidder", bidder, "amount", amount)
		return domain.BidReceipt{}, err
	}

	s.log.Info("Bid accepted", "bidder", bidder, "amount", amount, "deadline", receipt.Deadline)
	return receipt, nil
}

func (s *LedgerService) PartialRefund(ctx context.Context, bidder domain.Bidder) (domain.Money, error) {
	s.mu.Lock()
	refunded, err := s.ledger.PartialRefund(ctx, bidder, s.clock.Now())
	s.mu.Unlock()
	if err != nil {
		s.logRejection("Partial refund rejected", err, "bidder", bidder)
		return 0, err
	}

	s.log.Info("Excess refunded", "bidder", bidder, "amount", refunded)
	return refunded, nil
}

func (s *LedgerService) EndAuction(ctx context.Context, caller domain.Bidder) error {
	s.mu.Lock()
	err := s.ledger.EndAuction(ctx, caller, s.clock.Now())
	s.mu.Unlock()
	if err != nil {
		s.logRejection("End auction rejected", err, "caller", caller)
		return err
	}

	winner, _, amount := s.ledger.ShowWinner()
	s.log.Info("Auction ended", "winner", winner, "amount", amount)
	return nil
}

func (s *LedgerService) SettleDeposits(ctx context.Context, caller domain.Bidder) error {
	s.mu.Lock()
	err := s.ledger.SettleDeposits(ctx, caller, s.clock.Now())
	s.mu.Unlock()
	if err != nil {
		s.logRejection("Settlement rejected", err, "caller", caller)
		return err
	}

	s.log.Info("Deposits settled", "owner", s.ledger.Owner())
	return nil
}

func (s *LedgerService) EmergencyWithdraw(ctx context.Context, caller domain.Bidder) (domain.Money, error) {
	s.mu.Lock()
	amount, err := s.ledger.EmergencyWithdraw(ctx, caller, s.clock.Now())
	s.mu.Unlock()
	if err != nil {
		s.logRejection("Emergency withdrawal rejected", err, "caller", caller)
		return 0, err
	}

	s.log.Warn("Emergency withdrawal executed", "owner", caller, "amount", amount)
	return amount, nil
}

func (s *LedgerService) ShowWinner() (domain.Bidder, bool, domain.Money) {
	return s.ledger.ShowWinner()
}

func (s *LedgerService) ListOffers() []domain.Offer {
	return s.ledger.ListOffers()
}

func (s *LedgerService) BalanceOf(bidder domain.Bidder) domain.Money {
	return s.ledger.BalanceOf(bidder)
}

func (s *LedgerService) MinimumBid() domain.Money {
	return s.ledger.MinimumBid()
}

func (s *LedgerService) Snapshot() domain.AuctionSnapshot {
	return s.ledger.Snapshot()
}

func (s *LedgerService) Owner() domain.Bidder {
	return s.ledger.Owner()
}

func (s *LedgerService) Now() time.Time {
	return s.clock.Now()
}

// Transfer failures are the only errors that point at infrastructure; the rest are caller mistakes.
func (s *LedgerService) logRejection(msg string, err error, keysAndValues ...interface{}) {
	keysAndValues = append(keysAndValues, "error", err)
	if errors.Is(err, domain.ErrTransferFailed) {
		s.log.Error(msg, keysAndValues...)
		return
	}
	s.log.Info(msg, keysAndValues...)
}
