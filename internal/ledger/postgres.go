package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger persists balances and transaction history in PostgreSQL.
// Every movement runs in one transaction with the wallet row locked, so
// concurrent operations on the same wallet serialize at the database.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// CreateWallet inserts the wallet row plus zero balances for each starter currency.
func (l *PostgresLedger) CreateWallet(ctx context.Context, wallet Wallet, starterCurrencies []string) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(wallet.OwnerID)
	if err != nil {
		return err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO wallets (id, owner_id, currency, created_at)
        VALUES ($1, $2, $3, $4)`, walletID, ownerID, wallet.Currency, wallet.CreatedAt.UTC()); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrWalletExists
		}
		return err
	}

	for _, currency := range starterCurrencies {
		if _, err := tx.Exec(ctx, `INSERT INTO balances (wallet_id, currency, amount)
            VALUES ($1, $2, 0) ON CONFLICT (wallet_id, currency) DO NOTHING`, walletID, currency); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// WalletByOwner resolves the single wallet owned by ownerID.
func (l *PostgresLedger) WalletByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := l.db.QueryRow(ctx, `SELECT id, owner_id, currency, created_at FROM wallets WHERE owner_id = $1`, owner)

	var (
		w         Wallet
		id        uuid.UUID
		ownerCol  uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &ownerCol, &w.Currency, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.OwnerID = ownerCol.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}

// Balances returns every currency balance held by the wallet.
func (l *PostgresLedger) Balances(ctx context.Context, walletID string) (map[string]decimal.Decimal, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, ErrWalletNotFound
	}

	var exists bool
	if err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrWalletNotFound
	}

	rows, err := l.db.Query(ctx, `SELECT currency, amount::text FROM balances WHERE wallet_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make(map[string]decimal.Decimal)
	for rows.Next() {
		var currency, amount string
		if err := rows.Scan(&currency, &amount); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse stored balance: %w", err)
		}
		balances[currency] = d
	}
	return balances, rows.Err()
}

// Deposit credits one balance row and appends the transaction, atomically.
func (l *PostgresLedger) Deposit(ctx context.Context, txRecord Transaction) (decimal.Decimal, error) {
	if !txRecord.Amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("deposit amount must be positive")
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	walletID, err := lockWallet(ctx, tx, txRecord.WalletID)
	if err != nil {
		return decimal.Zero, err
	}

	var newAmount string
	if err := tx.QueryRow(ctx, `INSERT INTO balances (wallet_id, currency, amount)
        VALUES ($1, $2, $3::numeric)
        ON CONFLICT (wallet_id, currency) DO UPDATE SET amount = balances.amount + EXCLUDED.amount
        RETURNING amount::text`, walletID, txRecord.Currency, txRecord.Amount.String()).Scan(&newAmount); err != nil {
		return decimal.Zero, err
	}

	if err := insertTransaction(ctx, tx, txRecord); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromString(newAmount)
}

// Exchange moves value between two currency buckets of one wallet and
// appends the debit/credit pair, all in a single database transaction.
func (l *PostgresLedger) Exchange(ctx context.Context, debit, credit Transaction) (ExchangeResult, error) {
	if !debit.Amount.IsPositive() || !credit.Amount.IsPositive() {
		return ExchangeResult{}, fmt.Errorf("exchange amounts must be positive")
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ExchangeResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	walletID, err := lockWallet(ctx, tx, debit.WalletID)
	if err != nil {
		return ExchangeResult{}, err
	}

	var fromAmount string
	err = tx.QueryRow(ctx, `SELECT amount::text FROM balances
        WHERE wallet_id = $1 AND currency = $2 FOR UPDATE`, walletID, debit.Currency).Scan(&fromAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return ExchangeResult{}, ErrInsufficientFunds
	}
	if err != nil {
		return ExchangeResult{}, err
	}
	fromBalance, err := decimal.NewFromString(fromAmount)
	if err != nil {
		return ExchangeResult{}, fmt.Errorf("parse stored balance: %w", err)
	}
	if fromBalance.LessThan(debit.Amount) {
		return ExchangeResult{}, ErrInsufficientFunds
	}

	var newFrom string
	if err := tx.QueryRow(ctx, `UPDATE balances SET amount = amount - $3::numeric
        WHERE wallet_id = $1 AND currency = $2
        RETURNING amount::text`, walletID, debit.Currency, debit.Amount.String()).Scan(&newFrom); err != nil {
		return ExchangeResult{}, err
	}

	var newTo string
	if err := tx.QueryRow(ctx, `INSERT INTO balances (wallet_id, currency, amount)
        VALUES ($1, $2, $3::numeric)
        ON CONFLICT (wallet_id, currency) DO UPDATE SET amount = balances.amount + EXCLUDED.amount
        RETURNING amount::text`, walletID, credit.Currency, credit.Amount.String()).Scan(&newTo); err != nil {
		return ExchangeResult{}, err
	}

	if err := insertTransaction(ctx, tx, debit); err != nil {
		return ExchangeResult{}, err
	}
	if err := insertTransaction(ctx, tx, credit); err != nil {
		return ExchangeResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ExchangeResult{}, err
	}

	fromDec, err := decimal.NewFromString(newFrom)
	if err != nil {
		return ExchangeResult{}, fmt.Errorf("parse stored balance: %w", err)
	}
	toDec, err := decimal.NewFromString(newTo)
	if err != nil {
		return ExchangeResult{}, fmt.Errorf("parse stored balance: %w", err)
	}
	return ExchangeResult{FromBalance: fromDec, ToBalance: toDec}, nil
}

// Transactions lists the wallet history, newest first.
func (l *PostgresLedger) Transactions(ctx context.Context, walletID string) ([]Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, ErrWalletNotFound
	}

	rows, err := l.db.Query(ctx, `SELECT id, operation_id, wallet_id, user_id, type, status,
        currency, amount::text, rate::text, description, created_at
        FROM transactions WHERE wallet_id = $1 ORDER BY created_at DESC, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			t           Transaction
			txID        uuid.UUID
			opID        uuid.UUID
			wID         uuid.UUID
			userID      uuid.UUID
			amount      string
			rate        *string
			description *string
			createdAt   time.Time
		)
		if err := rows.Scan(&txID, &opID, &wID, &userID, &t.Type, &t.Status, &t.Currency, &amount, &rate, &description, &createdAt); err != nil {
			return nil, err
		}
		t.ID = txID.String()
		t.OperationID = opID.String()
		t.WalletID = wID.String()
		t.UserID = userID.String()
		t.CreatedAt = createdAt.UTC()
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse stored amount: %w", err)
		}
		if rate != nil {
			if t.Rate, err = decimal.NewFromString(*rate); err != nil {
				return nil, fmt.Errorf("parse stored rate: %w", err)
			}
		}
		if description != nil {
			t.Description = *description
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func lockWallet(ctx context.Context, tx pgx.Tx, walletID string) (uuid.UUID, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return uuid.Nil, ErrWalletNotFound
	}
	var locked uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM wallets WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrWalletNotFound
		}
		return uuid.Nil, err
	}
	return locked, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t Transaction) error {
	txID, err := uuid.Parse(t.ID)
	if err != nil {
		return err
	}
	opID, err := uuid.Parse(t.OperationID)
	if err != nil {
		return err
	}
	walletID, err := uuid.Parse(t.WalletID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(t.UserID)
	if err != nil {
		return err
	}

	var rate *string
	if !t.Rate.IsZero() {
		s := t.Rate.String()
		rate = &s
	}
	var description *string
	if t.Description != "" {
		description = &t.Description
	}

	_, err = tx.Exec(ctx, `INSERT INTO transactions
        (id, operation_id, wallet_id, user_id, type, status, currency, amount, rate, description, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11)`,
		txID, opID, walletID, userID, string(t.Type), string(t.Status), t.Currency,
		t.Amount.String(), rate, description, t.CreatedAt.UTC())
	return err
}
