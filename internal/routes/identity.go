package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fx-wallet/fx_wallet/internal/identity"
	"github.com/fx-wallet/fx_wallet/internal/wallet"
)

// RegisterIdentityRoutes wires user directory endpoints and auto-provisions a
// wallet on registration.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, wallets *wallet.Service, logger *slog.Logger) {
	r.Post("/users/register", func(c *fiber.Ctx) error {
		var req struct {
			Email    string `json:"email"`
			FullName string `json:"full_name"`
			Password string `json:"password"`
			Currency string `json:"currency"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.Register(c.UserContext(), identity.Registration{
			Email:    req.Email,
			FullName: req.FullName,
			Password: req.Password,
		})
		if err != nil {
			if errors.Is(err, identity.ErrEmailTaken) {
				return fiber.NewError(http.StatusConflict, err.Error())
			}
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		currency := req.Currency
		if currency == "" {
			currency = "USD"
		}
		var walletID string
		if wallets != nil {
			w, err := wallets.Create(c.UserContext(), wallet.CreateInput{UserID: user.ID, Currency: currency})
			if err != nil {
				logger.Warn("wallet provisioning failed", slog.String("user_id", user.ID), slog.Any("error", err))
			} else {
				walletID = w.ID
			}
		}

		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":   user.ID,
			"email":     user.Email,
			"full_name": user.FullName,
			"wallet_id": walletID,
		})
	})

	r.Get("/users/:userId", func(c *fiber.Ctx) error {
		user, err := ids.Find(c.UserContext(), c.Params("userId"))
		if err != nil {
			return fiber.NewError(http.StatusNotFound, "user not found")
		}
		return c.JSON(fiber.Map{
			"user_id":    user.ID,
			"email":      user.Email,
			"full_name":  user.FullName,
			"created_at": user.CreatedAt,
		})
	})
}
