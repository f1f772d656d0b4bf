package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fx-wallet/fx_wallet/internal/logging"
)

func setupRedisStore(t *testing.T) (*RedisStore, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, time.Minute)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return store, cleanup
}

func TestRedisStoreReserveCompleteReplay(t *testing.T) {
	store, cleanup := setupRedisStore(t)
	defer cleanup()
	ctx := context.Background()

	result, replayed, err := store.Reserve(ctx, "k1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if replayed || result != nil {
		t.Fatalf("fresh reserve must claim the key")
	}

	// A second reservation while in flight must surface the conflict.
	if _, _, err := store.Reserve(ctx, "k1"); !errors.Is(err, ErrInProgress) {
		t.Fatalf("expected ErrInProgress, got %v", err)
	}

	if err := store.Complete(ctx, "k1", []byte(`{"txid":"abc"}`)); err != nil {
		t.Fatalf("complete: %v", err)
	}

	stored, replayed, err := store.Reserve(ctx, "k1")
	if err != nil {
		t.Fatalf("reserve after complete: %v", err)
	}
	if !replayed {
		t.Fatalf("expected a replay after completion")
	}
	if string(stored) != `{"txid":"abc"}` {
		t.Fatalf("unexpected stored result %q", stored)
	}
}

func TestRedisStoreReleaseAllowsRetry(t *testing.T) {
	store, cleanup := setupRedisStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, _, err := store.Reserve(ctx, "k1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.Release(ctx, "k1"); err != nil {
		t.Fatalf("release: %v", err)
	}

	_, replayed, err := store.Reserve(ctx, "k1")
	if err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	if replayed {
		t.Fatalf("released key must be claimable, not replayed")
	}
}

func TestGuardWithRedisStore(t *testing.T) {
	store, cleanup := setupRedisStore(t)
	defer cleanup()

	guard := NewGuard(store, logging.Discard())
	ctx := context.Background()

	calls := 0
	op := func(context.Context) ([]byte, error) {
		calls++
		return []byte("funded"), nil
	}

	if _, _, err := guard.Do(ctx, "fund-1", op); err != nil {
		t.Fatalf("first do: %v", err)
	}
	result, replayed, err := guard.Do(ctx, "fund-1", op)
	if err != nil {
		t.Fatalf("second do: %v", err)
	}
	if !replayed || string(result) != "funded" {
		t.Fatalf("expected replayed result, got replayed=%v result=%q", replayed, result)
	}
	if calls != 1 {
		t.Fatalf("expected one execution, got %d", calls)
	}
}
