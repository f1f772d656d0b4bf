package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/fx-wallet/fx_wallet/internal/metrics"
)

// Metrics records a request counter labelled by route pattern, method and status.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		route := c.Route().Path
		if route == "" {
			route = c.Path()
		}
		metrics.RequestsTotal.WithLabelValues(route, c.Method(), strconv.Itoa(c.Response().StatusCode())).Inc()

		return err
	}
}
