package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/fx-wallet/fx_wallet/internal/fx"
	"github.com/fx-wallet/fx_wallet/internal/idempotency"
	"github.com/fx-wallet/fx_wallet/internal/ledger"
	"github.com/fx-wallet/fx_wallet/internal/money"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	UserID   string `json:"user_id"`
	Currency string `json:"currency"`
}

// Create provisions a wallet for the user.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	wallet, err := h.service.Create(c.UserContext(), CreateInput{UserID: req.UserID, Currency: req.Currency})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":         wallet.ID,
		"user_id":    wallet.OwnerID,
		"currency":   wallet.Currency,
		"created_at": wallet.CreatedAt,
	})
}

type fundRequest struct {
	UserID         string      `json:"user_id"`
	Currency       string      `json:"currency"`
	Amount         json.Number `json:"amount"`
	IdempotencyKey string      `json:"idempotency_key"`
}

// Fund credits a currency balance, at most once per idempotency key. The key
// may come from the body or the Idempotency-Key header.
func (h *Handler) Fund(c *fiber.Ctx) error {
	var req fundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	key := req.IdempotencyKey
	if key == "" {
		key = c.Get(idempotencyKeyHeader)
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Fund(c.UserContext(), FundInput{
		UserID:         req.UserID,
		Currency:       req.Currency,
		Amount:         amount,
		IdempotencyKey: key,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(result)
}

type exchangeRequest struct {
	UserID string      `json:"user_id"`
	From   string      `json:"from"`
	To     string      `json:"to"`
	Amount json.Number `json:"amount"`
}

// Convert exchanges value between two currency buckets.
func (h *Handler) Convert(c *fiber.Ctx) error {
	return h.exchange(c, h.service.Convert)
}

// Trade records a currency trade.
func (h *Handler) Trade(c *fiber.Ctx) error {
	return h.exchange(c, h.service.Trade)
}

func (h *Handler) exchange(c *fiber.Ctx, op func(ctx context.Context, input ExchangeInput) (ExchangeResult, error)) error {
	var req exchangeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	result, err := op(c.UserContext(), ExchangeInput{
		UserID: req.UserID,
		From:   req.From,
		To:     req.To,
		Amount: amount,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(result)
}

// Balances returns the user's balances aggregated by currency.
func (h *Handler) Balances(c *fiber.Ctx) error {
	balances, err := h.service.Balances(c.UserContext(), c.Params("userId"))
	if err != nil {
		return httpError(err)
	}
	out := make(map[string]string, len(balances))
	for currency, amount := range balances {
		out[currency] = amount.String()
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"balances": out})
}

// Transactions lists the user's movement history.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	txs, err := h.service.Transactions(c.UserContext(), c.Params("userId"))
	if err != nil {
		return httpError(err)
	}
	out := make([]fiber.Map, 0, len(txs))
	for _, t := range txs {
		entry := fiber.Map{
			"id":           t.ID,
			"operation_id": t.OperationID,
			"type":         t.Type,
			"status":       t.Status,
			"currency":     t.Currency,
			"amount":       t.Amount.String(),
			"created_at":   t.CreatedAt,
		}
		if !t.Rate.IsZero() {
			entry["rate"] = t.Rate.String()
		}
		if t.Description != "" {
			entry["description"] = t.Description
		}
		out = append(out, entry)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

func parseAmount(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, errors.New("amount is required")
	}
	return decimal.NewFromString(n.String())
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ledger.ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrWalletExists):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, idempotency.ErrInProgress):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrSameCurrency), errors.Is(err, idempotency.ErrMissingKey), errors.Is(err, money.ErrInvalidCurrency):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, fx.ErrRateUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
