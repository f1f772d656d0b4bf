package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestWallet(t *testing.T, l Ledger) Wallet {
	t.Helper()
	w := Wallet{
		ID:        uuid.NewString(),
		OwnerID:   uuid.NewString(),
		Currency:  "USD",
		CreatedAt: time.Now().UTC(),
	}
	if err := l.CreateWallet(context.Background(), w, []string{"USD", "EUR", "NGN"}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return w
}

func testTx(walletID, userID string, kind TxType, currency string, amount decimal.Decimal) Transaction {
	return Transaction{
		ID:          uuid.NewString(),
		OperationID: uuid.NewString(),
		WalletID:    walletID,
		UserID:      userID,
		Type:        kind,
		Status:      StatusSuccess,
		Currency:    currency,
		Amount:      amount,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestInMemoryCreateWalletDuplicateOwner(t *testing.T) {
	l := NewInMemory()
	w := newTestWallet(t, l)

	dup := Wallet{ID: uuid.NewString(), OwnerID: w.OwnerID, Currency: "USD", CreatedAt: time.Now().UTC()}
	if err := l.CreateWallet(context.Background(), dup, []string{"USD"}); err != ErrWalletExists {
		t.Fatalf("expected ErrWalletExists, got %v", err)
	}
}

func TestInMemoryDepositAndBalances(t *testing.T) {
	l := NewInMemory()
	w := newTestWallet(t, l)
	ctx := context.Background()

	newBalance, err := l.Deposit(ctx, testTx(w.ID, w.OwnerID, TxFund, "USD", decimal.NewFromInt(100)))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !newBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected balance 100, got %s", newBalance)
	}

	balances, err := l.Balances(ctx, w.ID)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if !balances["USD"].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected USD=100, got %s", balances["USD"])
	}
	if !balances["EUR"].IsZero() {
		t.Fatalf("expected EUR=0, got %s", balances["EUR"])
	}
}

func TestInMemoryExchangeMovesBothBalances(t *testing.T) {
	l := NewInMemory()
	w := newTestWallet(t, l)
	ctx := context.Background()
	SeedBalance(l, w.ID, "USD", decimal.NewFromInt(100))

	debit := testTx(w.ID, w.OwnerID, TxConversion, "USD", decimal.NewFromInt(40))
	credit := testTx(w.ID, w.OwnerID, TxConversion, "EUR", decimal.NewFromInt(36))
	credit.OperationID = debit.OperationID

	res, err := l.Exchange(ctx, debit, credit)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if !res.FromBalance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected USD=60, got %s", res.FromBalance)
	}
	if !res.ToBalance.Equal(decimal.NewFromInt(36)) {
		t.Fatalf("expected EUR=36, got %s", res.ToBalance)
	}

	history, err := l.Transactions(ctx, w.ID)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(history))
	}
	if history[0].OperationID != history[1].OperationID {
		t.Fatalf("debit and credit must share an operation id")
	}
}

func TestInMemoryExchangeInsufficientFunds(t *testing.T) {
	l := NewInMemory()
	w := newTestWallet(t, l)
	ctx := context.Background()
	SeedBalance(l, w.ID, "USD", decimal.NewFromInt(10))

	debit := testTx(w.ID, w.OwnerID, TxConversion, "USD", decimal.NewFromInt(40))
	credit := testTx(w.ID, w.OwnerID, TxConversion, "EUR", decimal.NewFromInt(36))

	if _, err := l.Exchange(ctx, debit, credit); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	balances, _ := l.Balances(ctx, w.ID)
	if !balances["USD"].Equal(decimal.NewFromInt(10)) || !balances["EUR"].IsZero() {
		t.Fatalf("balances mutated on failed exchange: USD=%s EUR=%s", balances["USD"], balances["EUR"])
	}
	if history, _ := l.Transactions(ctx, w.ID); len(history) != 0 {
		t.Fatalf("expected no rows after failed exchange, got %d", len(history))
	}
}

func TestInMemoryLedgerMatchesHistory(t *testing.T) {
	l := NewInMemory()
	w := newTestWallet(t, l)
	ctx := context.Background()

	if _, err := l.Deposit(ctx, testTx(w.ID, w.OwnerID, TxFund, "USD", decimal.NewFromInt(250))); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	debit := testTx(w.ID, w.OwnerID, TxTrade, "USD", decimal.NewFromInt(50))
	credit := testTx(w.ID, w.OwnerID, TxTrade, "EUR", decimal.NewFromInt(45))
	credit.OperationID = debit.OperationID
	if _, err := l.Exchange(ctx, debit, credit); err != nil {
		t.Fatalf("exchange: %v", err)
	}

	// Replaying signed deltas from the log must reproduce the balances.
	history, _ := l.Transactions(ctx, w.ID)
	replayed := map[string]decimal.Decimal{}
	for _, tx := range history {
		switch {
		case tx.Type == TxFund, tx.ID == credit.ID:
			replayed[tx.Currency] = replayed[tx.Currency].Add(tx.Amount)
		default:
			replayed[tx.Currency] = replayed[tx.Currency].Sub(tx.Amount)
		}
	}
	balances, _ := l.Balances(ctx, w.ID)
	for currency, amount := range replayed {
		if !balances[currency].Equal(amount) {
			t.Fatalf("ledger and history diverge for %s: balance=%s replay=%s", currency, balances[currency], amount)
		}
	}
}

func TestInMemoryConcurrentDeposits(t *testing.T) {
	l := NewInMemory()
	w := newTestWallet(t, l)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			tx := testTx(w.ID, w.OwnerID, TxFund, "USD", decimal.NewFromInt(10))
			tx.Description = fmt.Sprintf("deposit %d", i)
			if _, err := l.Deposit(ctx, tx); err != nil {
				t.Errorf("deposit %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	balances, _ := l.Balances(ctx, w.ID)
	if !balances["USD"].Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected USD=500 after concurrent deposits, got %s", balances["USD"])
	}
}
