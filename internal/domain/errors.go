package domain

import "errors"

var (
	ErrAuctionClosed     = errors.New("auction is closed")
	ErrAuctionActive     = errors.New("auction is still active")
	ErrBidTooLow         = errors.New("bid does not meet the minimum increment")
	ErrNoOffersFound     = errors.New("no offers found for bidder")
	ErrNoExcessFunds     = errors.New("no excess funds to refund")
	ErrNotOwner          = errors.New("caller is not the auction owner")
	ErrStillActive       = errors.New("auction deadline has not passed")
	ErrTransferFailed    = errors.New("funds transfer failed")
	ErrInvalidAmount     = errors.New("amount must be a positive integer")
	ErrNothingToWithdraw = errors.New("ledger holds no funds")
)
