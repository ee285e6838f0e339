package ledger

import (
	"time"

	"auction-ledger/internal/domain"
)

type state struct {
	deadline   time.Time
	active     bool
	bestOffer  domain.Money
	bestBidder domain.Bidder
	funds      domain.Money

	offers     []domain.Offer
	offerIndex map[domain.Bidder]int
	balances   map[domain.Bidder]domain.Money
	bidders    []domain.Bidder
}

func newState(deadline time.Time) *state {
	return &state{
		deadline:   deadline,
		active:     true,
		offerIndex: make(map[domain.Bidder]int),
		balances:   make(map[domain.Bidder]domain.Money),
	}
}

func (s *state) clone() *state {
	c := *s

	c.offers = make([]domain.Offer, len(s.offers))
	copy(c.offers, s.offers)
	c.bidders = make([]domain.Bidder, len(s.bidders))
	copy(c.bidders, s.bidders)

	c.offerIndex = make(map[domain.Bidder]int, len(s.offerIndex))
	for k, v := range s.offerIndex {
		c.offerIndex[k] = v
	}
	c.balances = make(map[domain.Bidder]domain.Money, len(s.balances))
	for k, v := range s.balances {
		c.balances[k] = v
	}
	return &c
}
