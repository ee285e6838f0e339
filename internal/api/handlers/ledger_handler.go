package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"auction-ledger/internal/api/middleware"
	"auction-ledger/internal/domain"
	"auction-ledger/internal/services"
	"auction-ledger/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type LedgerHandler struct {
	service *services.LedgerService
	log     logger.Logger
}

type PlaceBidRequest struct {
	Amount json.Number `json:"amount"`
}

type AuctionResponse struct {
	domain.AuctionSnapshot
	MinimumBid domain.Money `json:"minimum_bid"`
}

type WinnerResponse struct {
	Winner *domain.Bidder `json:"winner"`
	Amount domain.Money   `json:"amount"`
}

type AmountResponse struct {
	Bidder domain.Bidder `json:"bidder"`
	Amount domain.Money  `json:"amount"`
}

func NewLedgerHandler(service *services.LedgerService, log logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: service,
		log:     log,
	}
}

// Register mounts the ledger routes on g; g is expected to carry the Identity middleware.
func (h *LedgerHandler) Register(g *echo.Group) {
	g.POST("/bids", h.PlaceBid)
	g.POST("/refunds", h.PartialRefund)
	g.POST("/auction/end", h.EndAuction)
	g.POST("/auction/settle", h.SettleDeposits)
	g.POST("/auction/emergency-withdraw", h.EmergencyWithdraw)

	g.GET("/auction", h.GetAuction)
	g.GET("/auction/winner", h.ShowWinner)
	g.GET("/offers", h.ListOffers)
	g.GET("/balances/:bidder", h.GetBalance)
}

func (h *LedgerHandler) PlaceBid(c echo.Context) error {
	caller := middleware.CallerFrom(c)

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		h.log.Debug("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	amount, err := parseAmount(req.Amount.String())
	if err != nil {
		return h.fail(c, err)
	}

	receipt, err := h.service.Bid(c.Request().Context(), caller, amount)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusCreated, receipt)
}

func (h *LedgerHandler) PartialRefund(c echo.Context) error {
	caller := middleware.CallerFrom(c)

	refunded, err := h.service.PartialRefund(c.Request().Context(), caller)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, AmountResponse{Bidder: caller, Amount: refunded})
}

func (h *LedgerHandler) EndAuction(c echo.Context) error {
	if err := h.service.EndAuction(c.Request().Context(), middleware.CallerFrom(c)); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, h.auctionResponse())
}

func (h *LedgerHandler) SettleDeposits(c echo.Context) error {
	if err := h.service.SettleDeposits(c.Request().Context(), middleware.CallerFrom(c)); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, h.auctionResponse())
}

func (h *LedgerHandler) EmergencyWithdraw(c echo.Context) error {
	caller := middleware.CallerFrom(c)

	amount, err := h.service.EmergencyWithdraw(c.Request().Context(), caller)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, AmountResponse{Bidder: caller, Amount: amount})
}

func (h *LedgerHandler) GetAuction(c echo.Context) error {
	return c.JSON(http.StatusOK, h.auctionResponse())
}

func (h *LedgerHandler) ShowWinner(c echo.Context) error {
	winner, ok, amount := h.service.ShowWinner()

	resp := WinnerResponse{Amount: amount}
	if ok {
		resp.Winner = &winner
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *LedgerHandler) ListOffers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"offers": h.service.ListOffers(),
	})
}

func (h *LedgerHandler) GetBalance(c echo.Context) error {
	bidder := domain.Bidder(c.Param("bidder"))
	return c.JSON(http.StatusOK, AmountResponse{Bidder: bidder, Amount: h.service.BalanceOf(bidder)})
}

func (h *LedgerHandler) auctionResponse() AuctionResponse {
	return AuctionResponse{
		AuctionSnapshot: h.service.Snapshot(),
		MinimumBid:      h.service.MinimumBid(),
	}
}

func (h *LedgerHandler) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Unexpected ledger error", "path", c.Path(), "error", err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNoOffersFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAuctionClosed),
		errors.Is(err, domain.ErrAuctionActive),
		errors.Is(err, domain.ErrStillActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBidTooLow),
		errors.Is(err, domain.ErrNoExcessFunds),
		errors.Is(err, domain.ErrNothingToWithdraw):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var maxMoney = decimal.NewFromInt(math.MaxInt64)

// parseAmount accepts a whole, positive number of the smallest currency unit. "150" and
// "150.00" are the same amount; "150.5" is rejected.
func parseAmount(raw string) (domain.Money, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: amount is required", domain.ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidAmount, raw)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s has a fractional part", domain.ErrInvalidAmount, raw)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %s is not positive", domain.ErrInvalidAmount, raw)
	}
	if d.GreaterThan(maxMoney) {
		return 0, fmt.Errorf("%w: %s is too large", domain.ErrInvalidAmount, raw)
	}

	return domain.Money(d.IntPart()), nil
}
