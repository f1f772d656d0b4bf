package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when a debit would take a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletExists indicates the owner already has a wallet.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrWalletNotFound indicates no wallet matches the lookup.
	ErrWalletNotFound = errors.New("wallet not found")
)

// TxType classifies a transaction row.
type TxType string

const (
	TxFund       TxType = "FUND"
	TxWithdrawal TxType = "WITHDRAWAL"
	TxConversion TxType = "CONVERSION"
	TxTrade      TxType = "TRADE"
)

// TxStatus records the outcome carried by a transaction row.
type TxStatus string

const (
	StatusSuccess TxStatus = "SUCCESS"
	StatusFailure TxStatus = "FAILURE"
)

// Wallet is a user's container for multi-currency balances.
type Wallet struct {
	ID        string
	OwnerID   string
	Currency  string
	CreatedAt time.Time
}

// Transaction is one immutable row of the movement history. Conversions and
// trades produce a debit/credit pair sharing an OperationID.
type Transaction struct {
	ID          string
	OperationID string
	WalletID    string
	UserID      string
	Type        TxType
	Status      TxStatus
	Currency    string
	Amount      decimal.Decimal
	Rate        decimal.Decimal // zero when no rate applies
	Description string
	CreatedAt   time.Time
}

// ExchangeResult reports both balances after an atomic double movement.
type ExchangeResult struct {
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// Ledger is the unit of consistency for every balance mutation: balance rows
// and their append-only transaction history commit together or not at all.
type Ledger interface {
	// CreateWallet stores the wallet with zero balances for each starter
	// currency. Fails with ErrWalletExists when the owner already has one.
	CreateWallet(ctx context.Context, wallet Wallet, starterCurrencies []string) error

	// WalletByOwner resolves the owner's wallet, ErrWalletNotFound if absent.
	WalletByOwner(ctx context.Context, ownerID string) (Wallet, error)

	// Balances returns every currency balance held by the wallet.
	Balances(ctx context.Context, walletID string) (map[string]decimal.Decimal, error)

	// Deposit credits tx.Amount to the wallet's tx.Currency balance
	// (creating the row if absent) and appends tx, atomically. Returns the
	// new balance.
	Deposit(ctx context.Context, tx Transaction) (decimal.Decimal, error)

	// Exchange debits debit.Amount from debit.Currency and credits
	// credit.Amount to credit.Currency within one wallet, appending both
	// rows, all atomically. No mutation survives an ErrInsufficientFunds.
	Exchange(ctx context.Context, debit, credit Transaction) (ExchangeResult, error)

	// Transactions lists the wallet's history, newest first.
	Transactions(ctx context.Context, walletID string) ([]Transaction, error)
}
