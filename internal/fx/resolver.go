package fx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/fx-wallet/fx_wallet/internal/metrics"
)

// ErrRateUnavailable indicates the quote could not be obtained from the
// provider. Callers surface it as a retryable failure; no stale or default
// rate is ever substituted.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

type cacheEntry struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

// Resolver serves exchange rates with a TTL cache in front of a Source.
// Concurrent lookups for the same uncached pair collapse into one fetch.
type Resolver struct {
	source Source
	ttl    time.Duration
	logger *slog.Logger

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cacheEntry

	now func() time.Time
}

// NewResolver builds a rate resolver caching quotes for ttl.
func NewResolver(source Source, ttl time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		source: source,
		ttl:    ttl,
		logger: logger,
		cache:  make(map[string]cacheEntry),
		now:    time.Now,
	}
}

// Rate returns how many units of quote one unit of base buys. Cached entries
// are served until expiry and never invalidated early.
func (r *Resolver) Rate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	key := base + "/" + quote

	if rate, ok := r.cached(key); ok {
		metrics.FxCacheHits.Inc()
		return rate, nil
	}
	metrics.FxCacheMisses.Inc()

	v, err, _ := r.group.Do(key, func() (any, error) {
		// A flight that completed while this caller queued may have
		// populated the cache already.
		if rate, ok := r.cached(key); ok {
			return rate, nil
		}

		rate, err := r.source.Fetch(ctx, base, quote)
		if err != nil {
			metrics.FxFetchFailures.Inc()
			r.logger.Warn("rate fetch failed", slog.String("pair", key), slog.Any("error", err))
			return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
		}

		r.mu.Lock()
		r.cache[key] = cacheEntry{rate: rate, expiresAt: r.now().Add(r.ttl)}
		r.mu.Unlock()

		return rate, nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	return v.(decimal.Decimal), nil
}

func (r *Resolver) cached(key string) (decimal.Decimal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || r.now().After(entry.expiresAt) {
		return decimal.Zero, false
	}
	return entry.rate, true
}
