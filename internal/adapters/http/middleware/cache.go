package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// NoCacheHeaders sets no-cache headers. Balance and ledger reads must
// never be served stale.
func NoCacheHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
		c.Set("Pragma", "no-cache")
		c.Set("Expires", "0")
		return c.Next()
	}
}

// PrivateCacheHeaders sets private cache headers for user-specific data
func PrivateCacheHeaders(maxAge time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() == "GET" && c.Response().StatusCode() == 200 {
			seconds := int(maxAge.Seconds())
			c.Set("Cache-Control", "private, max-age="+strconv.Itoa(seconds))
		}

		return err
	}
}
