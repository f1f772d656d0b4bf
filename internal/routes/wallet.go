package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fx-wallet/fx_wallet/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets", h.Create)
	r.Post("/wallets/fund", h.Fund)
	r.Post("/wallets/convert", h.Convert)
	r.Post("/wallets/trade", h.Trade)
	r.Get("/wallets/:userId/balances", h.Balances)
	r.Get("/wallets/:userId/transactions", h.Transactions)
}
