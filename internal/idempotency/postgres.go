package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps idempotency records in a table with a unique key
// column. The insert-if-absent reservation is `ON CONFLICT DO NOTHING`; a row
// with a NULL response marks an in-flight claim. Records never expire.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed idempotency store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Reserve claims key via a unique-constraint insert.
func (s *PostgresStore) Reserve(ctx context.Context, key string) ([]byte, bool, error) {
	cmd, err := s.db.Exec(ctx, `INSERT INTO idempotency_records (key, response, created_at)
        VALUES ($1, NULL, $2) ON CONFLICT (key) DO NOTHING`, key, time.Now().UTC())
	if err != nil {
		return nil, false, err
	}
	if cmd.RowsAffected() == 1 {
		return nil, false, nil
	}

	var response []byte
	if err := s.db.QueryRow(ctx, `SELECT response FROM idempotency_records WHERE key = $1`, key).Scan(&response); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The claiming row was released between insert and read.
			return nil, false, ErrInProgress
		}
		return nil, false, err
	}
	if response == nil {
		return nil, false, ErrInProgress
	}
	return response, true, nil
}

// Complete stores the finished result under key.
func (s *PostgresStore) Complete(ctx context.Context, key string, result []byte) error {
	_, err := s.db.Exec(ctx, `UPDATE idempotency_records SET response = $2 WHERE key = $1`, key, result)
	return err
}

// Release drops an unfinished claim. Completed records are never removed.
func (s *PostgresStore) Release(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_records WHERE key = $1 AND response IS NULL`, key)
	return err
}
