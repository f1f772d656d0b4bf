package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/fx-wallet/fx_wallet/internal/fx"
	"github.com/fx-wallet/fx_wallet/internal/idempotency"
	"github.com/fx-wallet/fx_wallet/internal/identity"
	"github.com/fx-wallet/fx_wallet/internal/ledger"
	"github.com/fx-wallet/fx_wallet/internal/logging"
)

func newTestApp(t *testing.T) (*fiber.App, identity.User) {
	t.Helper()

	users := identity.NewMemoryRepository()
	user, err := identity.NewService(users).Register(context.Background(), identity.Registration{
		Email:    "api-user@example.com",
		FullName: "API User",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	rates := fx.StaticSource{
		"USD/EUR": decimal.RequireFromString("0.9"),
	}
	resolver := fx.NewResolver(rates, time.Hour, logging.Discard())
	guard := idempotency.NewGuard(idempotency.NewMemoryStore(), logging.Discard())
	svc := NewService(ledger.NewInMemory(), users, resolver, guard, nil, []string{"USD", "EUR", "NGN"})
	h := NewHandler(svc)

	app := fiber.New()
	app.Post("/wallets", h.Create)
	app.Post("/wallets/fund", h.Fund)
	app.Post("/wallets/convert", h.Convert)
	app.Post("/wallets/trade", h.Trade)
	app.Get("/wallets/:userId/balances", h.Balances)
	app.Get("/wallets/:userId/transactions", h.Transactions)
	return app, user
}

func postJSON(t *testing.T, app *fiber.App, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	payload, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, payload
}

func getJSON(t *testing.T, app *fiber.App, path string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	payload, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, payload
}

func TestWalletLifecycleOverHTTP(t *testing.T) {
	app, user := newTestApp(t)

	resp, _ := postJSON(t, app, "/wallets", fiber.Map{"user_id": user.ID, "currency": "usd"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create wallet: expected 201, got %d", resp.StatusCode)
	}

	resp, body := postJSON(t, app, "/wallets/fund", fiber.Map{
		"user_id":         user.ID,
		"currency":        "USD",
		"amount":          100,
		"idempotency_key": "http-fund-1",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fund: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var fund FundResult
	if err := json.Unmarshal(body, &fund); err != nil {
		t.Fatalf("decode fund response: %v", err)
	}
	if !fund.NewBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected new balance 100, got %s", fund.NewBalance)
	}

	resp, body = postJSON(t, app, "/wallets/convert", fiber.Map{
		"user_id": user.ID,
		"from":    "USD",
		"to":      "EUR",
		"amount":  40,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("convert: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var exchange ExchangeResult
	if err := json.Unmarshal(body, &exchange); err != nil {
		t.Fatalf("decode convert response: %v", err)
	}
	if !exchange.FromBalance.Equal(decimal.NewFromInt(60)) || !exchange.ToBalance.Equal(decimal.NewFromInt(36)) {
		t.Fatalf("unexpected balances after convert: USD=%s EUR=%s", exchange.FromBalance, exchange.ToBalance)
	}

	resp, body = getJSON(t, app, fmt.Sprintf("/wallets/%s/balances", user.ID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balances: expected 200, got %d", resp.StatusCode)
	}
	var balancesResp struct {
		Balances map[string]string `json:"balances"`
	}
	if err := json.Unmarshal(body, &balancesResp); err != nil {
		t.Fatalf("decode balances: %v", err)
	}
	if balancesResp.Balances["USD"] != "60" || balancesResp.Balances["EUR"] != "36" {
		t.Fatalf("unexpected balances payload: %v", balancesResp.Balances)
	}

	resp, body = getJSON(t, app, fmt.Sprintf("/wallets/%s/transactions", user.ID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transactions: expected 200, got %d", resp.StatusCode)
	}
	var txResp struct {
		Transactions []map[string]any `json:"transactions"`
	}
	if err := json.Unmarshal(body, &txResp); err != nil {
		t.Fatalf("decode transactions: %v", err)
	}
	if len(txResp.Transactions) != 3 { // fund + debit + credit
		t.Fatalf("expected 3 rows, got %d", len(txResp.Transactions))
	}
}

func TestFundIdempotencyKeyFromHeader(t *testing.T) {
	app, user := newTestApp(t)
	postJSON(t, app, "/wallets", fiber.Map{"user_id": user.ID, "currency": "USD"}, nil)

	body := fiber.Map{"user_id": user.ID, "currency": "USD", "amount": 25}
	headers := map[string]string{"Idempotency-Key": "header-key-1"}

	resp, first := postJSON(t, app, "/wallets/fund", body, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first fund: expected 200, got %d: %s", resp.StatusCode, first)
	}
	resp, second := postJSON(t, app, "/wallets/fund", body, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d: %s", resp.StatusCode, second)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("replay must return the original response\nfirst:  %s\nsecond: %s", first, second)
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	app, user := newTestApp(t)
	postJSON(t, app, "/wallets", fiber.Map{"user_id": user.ID, "currency": "USD"}, nil)
	postJSON(t, app, "/wallets/fund", fiber.Map{
		"user_id": user.ID, "currency": "USD", "amount": 10, "idempotency_key": "seed",
	}, nil)

	cases := []struct {
		name   string
		path   string
		body   fiber.Map
		status int
	}{
		{"unknown user", "/wallets", fiber.Map{"user_id": "ghost", "currency": "USD"}, http.StatusNotFound},
		{"duplicate wallet", "/wallets", fiber.Map{"user_id": user.ID, "currency": "USD"}, http.StatusConflict},
		{"missing idempotency key", "/wallets/fund", fiber.Map{"user_id": user.ID, "currency": "USD", "amount": 5}, http.StatusBadRequest},
		{"bad currency", "/wallets/fund", fiber.Map{"user_id": user.ID, "currency": "DOLLARS", "amount": 5, "idempotency_key": "k2"}, http.StatusBadRequest},
		{"same currency", "/wallets/convert", fiber.Map{"user_id": user.ID, "from": "USD", "to": "USD", "amount": 5}, http.StatusBadRequest},
		{"insufficient funds", "/wallets/convert", fiber.Map{"user_id": user.ID, "from": "USD", "to": "EUR", "amount": 500}, http.StatusUnprocessableEntity},
		{"rate unavailable", "/wallets/trade", fiber.Map{"user_id": user.ID, "from": "USD", "to": "NGN", "amount": 5}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		resp, body := postJSON(t, app, tc.path, tc.body, nil)
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.status, resp.StatusCode, body)
		}
	}
}
