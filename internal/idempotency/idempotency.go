package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrMissingKey indicates the caller supplied no idempotency key.
	ErrMissingKey = errors.New("idempotency key is required")
	// ErrInProgress indicates another caller holds the key's reservation.
	// The request is safe to retry once the first attempt settles.
	ErrInProgress = errors.New("duplicate request currently processing")
)

// Store persists idempotency records. Reserve must be an atomic
// insert-if-absent so that two concurrent calls with the same unseen key
// cannot both claim it.
type Store interface {
	// Reserve claims key for the caller. It returns the stored result and
	// replayed=true when the key already completed, ErrInProgress when the
	// key is claimed but unfinished, and replayed=false with a nil result
	// when the claim succeeded.
	Reserve(ctx context.Context, key string) (result []byte, replayed bool, err error)
	// Complete stores the result of a finished operation under key.
	Complete(ctx context.Context, key string, result []byte) error
	// Release drops an unfinished claim so the operation may be retried.
	Release(ctx context.Context, key string) error
}

const (
	pollInterval = 50 * time.Millisecond
	maxWait      = 3 * time.Second
)

// Guard executes side-effecting operations at most once per key.
type Guard struct {
	store  Store
	logger *slog.Logger
}

// NewGuard builds a guard over the given store.
func NewGuard(store Store, logger *slog.Logger) *Guard {
	return &Guard{store: store, logger: logger}
}

// Do runs op unless a result is already stored for key, in which case the
// stored result is returned verbatim with replayed=true and op never runs.
// A caller that loses the reservation race waits briefly for the winner's
// result; if the winner has not settled within the window, ErrInProgress is
// returned and the request is safe to retry. The result is persisted only
// when op succeeds.
func (g *Guard) Do(ctx context.Context, key string, op func(ctx context.Context) ([]byte, error)) (result []byte, replayed bool, err error) {
	if key == "" {
		return nil, false, ErrMissingKey
	}

	deadline := time.Now().Add(maxWait)
	stored, replayed, err := g.store.Reserve(ctx, key)
	for errors.Is(err, ErrInProgress) {
		if time.Now().After(deadline) {
			return nil, false, ErrInProgress
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(pollInterval):
		}
		stored, replayed, err = g.store.Reserve(ctx, key)
	}
	if err != nil {
		return nil, false, err
	}
	if replayed {
		return stored, true, nil
	}

	result, err = op(ctx)
	if err != nil {
		// Release on a fresh context so a canceled caller cannot leave
		// the claim stuck.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if relErr := g.store.Release(releaseCtx, key); relErr != nil {
			g.logger.Warn("idempotency release failed", slog.String("key", key), slog.Any("error", relErr))
		}
		return nil, false, err
	}

	if err := g.store.Complete(ctx, key, result); err != nil {
		return nil, false, fmt.Errorf("persist idempotent result: %w", err)
	}

	return result, false, nil
}
