package services

import (
	"context"
	"errors"
	"sync"

	"auction-ledger/internal/domain"
	"auction-ledger/pkg/logger"

	"github.com/robfig/cron/v3"
)

// AuctionCloser ends the auction on the owner's behalf once the deadline has passed,
// and optionally settles deposits right after.
type AuctionCloser struct {
	cron       *cron.Cron
	service    *LedgerService
	schedule   string
	autoSettle bool
	log        logger.Logger

	mu      sync.Mutex
	settled bool
}

func NewAuctionCloser(service *LedgerService, schedule string, autoSettle bool, log logger.Logger) *AuctionCloser {
	return &AuctionCloser{
		cron:       cron.New(cron.WithSeconds()),
		service:    service,
		schedule:   schedule,
		autoSettle: autoSettle,
		log:        log,
	}
}

func (c *AuctionCloser) Start(ctx context.Context) error {
	c.log.Info("Starting auction closer", "schedule", c.schedule, "auto_settle", c.autoSettle)

	_, err := c.cron.AddFunc(c.schedule, func() {
		c.tick(ctx)
	})
	if err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

func (c *AuctionCloser) Stop() error {
	c.log.Info("Stopping auction closer")
	<-c.cron.Stop().Done()
	return nil
}

func (c *AuctionCloser) tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	owner := c.service.Owner()
	snap := c.service.Snapshot()

	if snap.Active() {
		if !c.service.Now().After(snap.Deadline) {
			return
		}
		err := c.service.EndAuction(ctx, owner)
		if err != nil && !errors.Is(err, domain.ErrAuctionClosed) {
			c.log.Error("Failed to end auction", "deadline", snap.Deadline, "error", err)
			return
		}
	}

	if !c.autoSettle || c.settled {
		return
	}

	if err := c.service.SettleDeposits(ctx, owner); err != nil {
		// Retried on the next tick.
		c.log.Error("Failed to settle deposits", "error", err)
		return
	}
	c.settled = true
}
