package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fx-wallet/fx_wallet/internal/fx"
	"github.com/fx-wallet/fx_wallet/internal/idempotency"
	"github.com/fx-wallet/fx_wallet/internal/identity"
	"github.com/fx-wallet/fx_wallet/internal/ledger"
	"github.com/fx-wallet/fx_wallet/internal/metrics"
	"github.com/fx-wallet/fx_wallet/internal/money"
	"github.com/fx-wallet/fx_wallet/internal/notification"
)

var (
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrSameCurrency indicates a conversion between identical currencies.
	ErrSameCurrency = errors.New("cannot exchange a currency for itself")
	// ErrInvalidAmount indicates an amount outside the operation's bounds.
	ErrInvalidAmount = errors.New("invalid amount")
)

var tradeFloor = decimal.NewFromInt(1)

// Service orchestrates money movements: idempotency guard, balance reads,
// rate resolution, balance writes and transaction history commit in order,
// failing closed at every step.
type Service struct {
	ledger   ledger.Ledger
	users    identity.Repository
	rates    *fx.Resolver
	guard    *idempotency.Guard
	notifier notification.Notifier
	locks    *walletLocks
	starter  []string
}

// NewService builds the orchestrator over its collaborators.
func NewService(l ledger.Ledger, users identity.Repository, rates *fx.Resolver, guard *idempotency.Guard, notifier notification.Notifier, starterCurrencies []string) *Service {
	return &Service{
		ledger:   l,
		users:    users,
		rates:    rates,
		guard:    guard,
		notifier: notifier,
		locks:    newWalletLocks(),
		starter:  starterCurrencies,
	}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	UserID   string
	Currency string
}

// Create provisions the user's wallet with zero balances for the starter set.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Wallet, error) {
	currency, err := money.NormalizeCurrency(input.Currency)
	if err != nil {
		return ledger.Wallet{}, err
	}

	if _, err := s.users.FindByID(ctx, input.UserID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ledger.Wallet{}, ErrUserNotFound
		}
		return ledger.Wallet{}, err
	}

	wallet := ledger.Wallet{
		ID:        uuid.New().String(),
		OwnerID:   input.UserID,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}

	starter := s.starter
	if !contains(starter, currency) {
		starter = append(append([]string{}, starter...), currency)
	}

	if err := s.ledger.CreateWallet(ctx, wallet, starter); err != nil {
		s.count("create_wallet", err)
		return ledger.Wallet{}, err
	}
	s.count("create_wallet", nil)
	return wallet, nil
}

// FundInput captures a wallet funding request.
type FundInput struct {
	UserID         string
	Currency       string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// FundResult reports the outcome of a fund operation. Replays of the same
// idempotency key return the original result verbatim.
type FundResult struct {
	TransactionID string          `json:"transaction_id"`
	WalletID      string          `json:"wallet_id"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// Fund credits the wallet, at most once per idempotency key.
func (s *Service) Fund(ctx context.Context, input FundInput) (FundResult, error) {
	currency, err := money.NormalizeCurrency(input.Currency)
	if err != nil {
		return FundResult{}, err
	}
	amount := money.Quantize(input.Amount)
	if !amount.IsPositive() {
		return FundResult{}, ErrInvalidAmount
	}

	payload, _, err := s.guard.Do(ctx, input.IdempotencyKey, func(ctx context.Context) ([]byte, error) {
		result, err := s.fund(ctx, input.UserID, currency, amount)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
	s.count("fund", err)
	if err != nil {
		return FundResult{}, err
	}

	var result FundResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return FundResult{}, fmt.Errorf("decode stored fund result: %w", err)
	}
	return result, nil
}

func (s *Service) fund(ctx context.Context, userID, currency string, amount decimal.Decimal) (FundResult, error) {
	wallet, err := s.walletFor(ctx, userID)
	if err != nil {
		return FundResult{}, err
	}

	unlock := s.locks.acquire(wallet.ID)
	defer unlock()

	tx := ledger.Transaction{
		ID:          uuid.New().String(),
		OperationID: uuid.New().String(),
		WalletID:    wallet.ID,
		UserID:      userID,
		Type:        ledger.TxFund,
		Status:      ledger.StatusSuccess,
		Currency:    currency,
		Amount:      amount,
		Rate:        money.One,
		CreatedAt:   time.Now().UTC(),
	}

	newBalance, err := s.ledger.Deposit(ctx, tx)
	if err != nil {
		return FundResult{}, err
	}

	s.notify(ctx, notification.KindWalletFunded, userID,
		fmt.Sprintf("Wallet funded with %s %s", amount, currency))

	return FundResult{
		TransactionID: tx.ID,
		WalletID:      wallet.ID,
		Currency:      currency,
		Amount:        amount,
		NewBalance:    newBalance,
	}, nil
}

// ExchangeInput captures a convert or trade request.
type ExchangeInput struct {
	UserID string
	From   string
	To     string
	Amount decimal.Decimal
}

// ExchangeResult reports the outcome of a convert or trade.
type ExchangeResult struct {
	OperationID         string          `json:"operation_id"`
	DebitTransactionID  string          `json:"debit_transaction_id"`
	CreditTransactionID string          `json:"credit_transaction_id"`
	Rate                decimal.Decimal `json:"rate"`
	FromCurrency        string          `json:"from_currency"`
	ToCurrency          string          `json:"to_currency"`
	FromBalance         decimal.Decimal `json:"from_balance"`
	ToBalance           decimal.Decimal `json:"to_balance"`
}

// Convert moves value between two currency buckets at the resolved rate.
func (s *Service) Convert(ctx context.Context, input ExchangeInput) (ExchangeResult, error) {
	result, err := s.exchange(ctx, ledger.TxConversion, input)
	s.count("convert", err)
	return result, err
}

// Trade is a conversion recorded as a TRADE with a minimum amount of one unit.
func (s *Service) Trade(ctx context.Context, input ExchangeInput) (ExchangeResult, error) {
	if money.Quantize(input.Amount).LessThan(tradeFloor) {
		s.count("trade", ErrInvalidAmount)
		return ExchangeResult{}, ErrInvalidAmount
	}
	result, err := s.exchange(ctx, ledger.TxTrade, input)
	s.count("trade", err)
	return result, err
}

func (s *Service) exchange(ctx context.Context, kind ledger.TxType, input ExchangeInput) (ExchangeResult, error) {
	from, err := money.NormalizeCurrency(input.From)
	if err != nil {
		return ExchangeResult{}, err
	}
	to, err := money.NormalizeCurrency(input.To)
	if err != nil {
		return ExchangeResult{}, err
	}
	if from == to {
		return ExchangeResult{}, ErrSameCurrency
	}
	amount := money.Quantize(input.Amount)
	if !amount.IsPositive() {
		return ExchangeResult{}, ErrInvalidAmount
	}

	wallet, err := s.walletFor(ctx, input.UserID)
	if err != nil {
		return ExchangeResult{}, err
	}

	balances, err := s.ledger.Balances(ctx, wallet.ID)
	if err != nil {
		return ExchangeResult{}, err
	}
	if balances[from].LessThan(amount) {
		return ExchangeResult{}, ledger.ErrInsufficientFunds
	}

	// Rate resolution happens before the wallet lock: it is wallet
	// independent and may cost a network round-trip.
	rate, err := s.rates.Rate(ctx, from, to)
	if err != nil {
		return ExchangeResult{}, err
	}
	converted := money.Quantize(amount.Mul(rate))

	unlock := s.locks.acquire(wallet.ID)
	defer unlock()

	now := time.Now().UTC()
	operationID := uuid.New().String()

	debit := ledger.Transaction{
		ID:          uuid.New().String(),
		OperationID: operationID,
		WalletID:    wallet.ID,
		UserID:      input.UserID,
		Type:        kind,
		Status:      ledger.StatusSuccess,
		Currency:    from,
		Amount:      amount,
		Rate:        rate,
		Description: fmt.Sprintf("Converted %s %s to %s %s at rate %s", amount, from, converted, to, rate),
		CreatedAt:   now,
	}
	credit := ledger.Transaction{
		ID:          uuid.New().String(),
		OperationID: operationID,
		WalletID:    wallet.ID,
		UserID:      input.UserID,
		Type:        kind,
		Status:      ledger.StatusSuccess,
		Currency:    to,
		Amount:      converted,
		Rate:        rate,
		Description: fmt.Sprintf("Received %s %s from %s %s", converted, to, amount, from),
		CreatedAt:   now,
	}

	res, err := s.ledger.Exchange(ctx, debit, credit)
	if err != nil {
		return ExchangeResult{}, err
	}

	s.notify(ctx, notification.KindCurrencyExchanged, input.UserID,
		fmt.Sprintf("Exchanged %s %s for %s %s", amount, from, converted, to))

	return ExchangeResult{
		OperationID:         operationID,
		DebitTransactionID:  debit.ID,
		CreditTransactionID: credit.ID,
		Rate:                rate,
		FromCurrency:        from,
		ToCurrency:          to,
		FromBalance:         res.FromBalance,
		ToBalance:           res.ToBalance,
	}, nil
}

// Balances aggregates the user's balances by currency.
func (s *Service) Balances(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	wallet, err := s.walletFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ledger.Balances(ctx, wallet.ID)
}

// Transactions lists the user's movement history, newest first.
func (s *Service) Transactions(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	wallet, err := s.walletFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ledger.Transactions(ctx, wallet.ID)
}

func (s *Service) walletFor(ctx context.Context, userID string) (ledger.Wallet, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ledger.Wallet{}, ErrUserNotFound
		}
		return ledger.Wallet{}, err
	}
	return s.ledger.WalletByOwner(ctx, userID)
}

func (s *Service) notify(ctx context.Context, kind, userID, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: userID, Body: body})
}

func (s *Service) count(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
