package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	wallets  map[string]Wallet
	byOwner  map[string]string
	balances map[string]map[string]decimal.Decimal
	history  map[string][]Transaction
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit
// tests and dev mode.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		wallets:  make(map[string]Wallet),
		byOwner:  make(map[string]string),
		balances: make(map[string]map[string]decimal.Decimal),
		history:  make(map[string][]Transaction),
	}
}

func (l *inMemoryLedger) CreateWallet(_ context.Context, wallet Wallet, starterCurrencies []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byOwner[wallet.OwnerID]; exists {
		return ErrWalletExists
	}
	if _, exists := l.wallets[wallet.ID]; exists {
		return ErrWalletExists
	}

	l.wallets[wallet.ID] = wallet
	l.byOwner[wallet.OwnerID] = wallet.ID

	balances := make(map[string]decimal.Decimal, len(starterCurrencies))
	for _, currency := range starterCurrencies {
		balances[currency] = decimal.Zero
	}
	l.balances[wallet.ID] = balances
	return nil
}

func (l *inMemoryLedger) WalletByOwner(_ context.Context, ownerID string) (Wallet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	walletID, ok := l.byOwner[ownerID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return l.wallets[walletID], nil
}

func (l *inMemoryLedger) Balances(_ context.Context, walletID string) (map[string]decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balances, ok := l.balances[walletID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	out := make(map[string]decimal.Decimal, len(balances))
	for currency, amount := range balances {
		out[currency] = amount
	}
	return out, nil
}

func (l *inMemoryLedger) Deposit(_ context.Context, tx Transaction) (decimal.Decimal, error) {
	if !tx.Amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("deposit amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balances, ok := l.balances[tx.WalletID]
	if !ok {
		return decimal.Zero, ErrWalletNotFound
	}

	newBalance := balances[tx.Currency].Add(tx.Amount)
	balances[tx.Currency] = newBalance
	l.history[tx.WalletID] = append(l.history[tx.WalletID], tx)
	return newBalance, nil
}

func (l *inMemoryLedger) Exchange(_ context.Context, debit, credit Transaction) (ExchangeResult, error) {
	if !debit.Amount.IsPositive() || !credit.Amount.IsPositive() {
		return ExchangeResult{}, fmt.Errorf("exchange amounts must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balances, ok := l.balances[debit.WalletID]
	if !ok {
		return ExchangeResult{}, ErrWalletNotFound
	}

	fromBalance := balances[debit.Currency]
	if fromBalance.LessThan(debit.Amount) {
		return ExchangeResult{}, ErrInsufficientFunds
	}

	fromBalance = fromBalance.Sub(debit.Amount)
	toBalance := balances[credit.Currency].Add(credit.Amount)

	balances[debit.Currency] = fromBalance
	balances[credit.Currency] = toBalance
	l.history[debit.WalletID] = append(l.history[debit.WalletID], debit, credit)

	return ExchangeResult{FromBalance: fromBalance, ToBalance: toBalance}, nil
}

func (l *inMemoryLedger) Transactions(_ context.Context, walletID string) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.balances[walletID]; !ok {
		return nil, ErrWalletNotFound
	}
	history := l.history[walletID]
	out := make([]Transaction, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
