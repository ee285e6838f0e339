package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auction-ledger/internal/domain"
	"auction-ledger/internal/ledger"
	"auction-ledger/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_UsesClock(t *testing.T) {
	svc, clock, _ := newTestService(t)
	ctx := context.Background()

	clock.Set(start.Add(2 * time.Minute))
	require.NoError(t, svc.PlaceBid(ctx, "alice", 100))

	offers := svc.ListOffers()
	require.Len(t, offers, 1)
	assert.Equal(t, start.Add(2*time.Minute), offers[0].Timestamp)
	assert.Equal(t, start.Add(12*time.Minute), svc.Snapshot().Deadline)
	assert.Equal(t, domain.Money(105), svc.MinimumBid())
}

func TestLedgerService_Lifecycle(t *testing.T) {
	svc, clock, funds := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.PlaceBid(ctx, "alice", 100))
	require.NoError(t, svc.PlaceBid(ctx, "bob", 200))
	require.NoError(t, svc.PlaceBid(ctx, "alice", 300))
	assert.ErrorIs(t, svc.PlaceBid(ctx, "bob", 315), domain.ErrBidTooLow)

	refunded, err := svc.PartialRefund(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.Money(100), refunded)

	assert.ErrorIs(t, svc.EndAuction(ctx, testOwner), domain.ErrStillActive)

	clock.Set(svc.Snapshot().Deadline.Add(time.Second))
	assert.ErrorIs(t, svc.EndAuction(ctx, "alice"), domain.ErrNotOwner)
	require.NoError(t, svc.EndAuction(ctx, testOwner))

	winner, ok, amount := svc.ShowWinner()
	assert.True(t, ok)
	assert.Equal(t, domain.Bidder("alice"), winner)
	assert.Equal(t, domain.Money(300), amount)

	require.NoError(t, svc.SettleDeposits(ctx, testOwner))
	assert.Equal(t, domain.Money(0), svc.BalanceOf("bob"))
	// refund to alice, loser refund to bob, sweep to owner
	assert.Equal(t, 3, funds.count())

	_, err = svc.EmergencyWithdraw(ctx, testOwner)
	assert.ErrorIs(t, err, domain.ErrNothingToWithdraw)
}

func TestLedgerService_TransferFailure(t *testing.T) {
	svc, _, funds := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.PlaceBid(ctx, "alice", 100))
	require.NoError(t, svc.PlaceBid(ctx, "alice", 200))

	funds.fail = errors.New("node unreachable")
	_, err := svc.PartialRefund(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.Equal(t, domain.Money(300), svc.BalanceOf("alice"))
}

// stallingClock hands out times in order and holds its first caller until released.
type stallingClock struct {
	mu      sync.Mutex
	times   []time.Time
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (c *stallingClock) Now() time.Time {
	c.mu.Lock()
	now := c.times[c.calls]
	c.calls++
	first := c.calls == 1
	c.mu.Unlock()

	if first {
		close(c.entered)
		<-c.release
	}
	return now
}

func TestLedgerService_ClockReadsFollowLedgerOrder(t *testing.T) {
	clock := &stallingClock{
		times:   []time.Time{start.Add(1 * time.Minute), start.Add(5 * time.Minute)},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	l, err := ledger.New(testOwner, start, ledger.DefaultRules, &recordingFunds{}, nil, logger.NewNop())
	require.NoError(t, err)
	svc := NewLedgerService(l, clock, logger.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.PlaceBid(ctx, "alice", 100))
	}()

	<-clock.entered
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.PlaceBid(ctx, "bob", 200))
	}()

	// bob has to wait for alice's bid to reach the ledger before reading the clock.
	time.Sleep(50 * time.Millisecond)
	close(clock.release)
	wg.Wait()

	offers := svc.ListOffers()
	require.Len(t, offers, 2)
	assert.Equal(t, domain.Bidder("alice"), offers[0].Bidder)
	assert.Equal(t, start.Add(1*time.Minute), offers[0].Timestamp)
	assert.Equal(t, domain.Bidder("bob"), offers[1].Bidder)
	assert.Equal(t, start.Add(5*time.Minute), offers[1].Timestamp)
}

func TestLedgerService_BidReceipt(t *testing.T) {
	svc, clock, _ := newTestService(t)
	clock.Set(start.Add(2 * time.Minute))

	receipt, err := svc.Bid(context.Background(), "alice", 100)
	require.NoError(t, err)
	assert.Equal(t, start.Add(12*time.Minute), receipt.Deadline)
	assert.Equal(t, domain.Money(105), receipt.MinimumBid)
	assert.True(t, receipt.Extended)
}
