package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"auction-ledger/internal/domain"
	"auction-ledger/internal/ledger"
	"auction-ledger/pkg/logger"

	"github.com/stretchr/testify/require"
)

const testOwner domain.Bidder = "owner"

var start = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingFunds struct {
	mu        sync.Mutex
	transfers []domain.Transfer
	fail      error
}

func (f *recordingFunds) Transfer(_ context.Context, transfers []domain.Transfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.transfers = append(f.transfers, transfers...)
	return nil
}

func (f *recordingFunds) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

func newTestService(t *testing.T) (*LedgerService, *manualClock, *recordingFunds) {
	t.Helper()
	clock := &manualClock{now: start}
	funds := &recordingFunds{}
	l, err := ledger.New(testOwner, start, ledger.DefaultRules, funds, nil, logger.NewNop())
	require.NoError(t, err)
	return NewLedgerService(l, clock, logger.NewNop()), clock, funds
}
