package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Source fetches a quote for a currency pair from an external provider.
type Source interface {
	Fetch(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// HTTPSource queries an exchangerate-api style endpoint:
// GET {baseURL}/{apiKey}/pair/{base}/{quote} -> {"conversion_rate": 0.9234}
type HTTPSource struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewHTTPSource builds an HTTP-backed rate source with a hard request timeout.
func NewHTTPSource(baseURL, apiKey string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type pairResponse struct {
	ConversionRate json.Number `json:"conversion_rate"`
}

// Fetch performs a single outbound quote lookup.
func (s *HTTPSource) Fetch(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/%s/pair/%s/%s", s.baseURL, s.apiKey, base, quote)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate provider returned status %d", resp.StatusCode)
	}

	var body pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode rate response: %w", err)
	}
	if body.ConversionRate == "" {
		return decimal.Zero, errors.New("rate response missing conversion_rate")
	}

	rate, err := decimal.NewFromString(body.ConversionRate.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse conversion_rate: %w", err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive rate %s for %s/%s", rate, base, quote)
	}

	return rate, nil
}

// StaticSource serves rates from a fixed table, keyed "BASE/QUOTE". It backs
// dev mode and tests where no provider credentials exist.
type StaticSource map[string]decimal.Decimal

// Fetch returns the configured rate for the pair.
func (s StaticSource) Fetch(_ context.Context, base, quote string) (decimal.Decimal, error) {
	rate, ok := s[base+"/"+quote]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate configured for %s/%s", base, quote)
	}
	return rate, nil
}
