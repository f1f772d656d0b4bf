package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that sets a currency balance directly when
// using the in-memory ledger.
func SeedBalance(l Ledger, walletID, currency string, amount decimal.Decimal) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if balances, exists := mem.balances[walletID]; exists {
			balances[currency] = amount
		}
	}
}
