package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/reward_engine/internal/middleware"
	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/internal/security"
	"github.com/mroshb/reward_engine/internal/services"
	"github.com/mroshb/reward_engine/pkg/errors"
)

const actorKey = "actor"

// Auth validates the bearer token and stores the caller as an Actor.
func Auth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			return JSONError(c, errors.New(errors.ErrCodeUnauthorized, "missing bearer token"))
		}

		claims, err := security.ValidateJWT(token, secret)
		if err != nil {
			return JSONError(c, errors.New(errors.ErrCodeUnauthorized, "invalid token"))
		}

		c.Locals(actorKey, services.Actor{
			AccountID: claims.AccountID,
			IsAdmin:   claims.Role == models.RoleAdmin,
		})
		return c.Next()
	}
}

func actorOf(c *fiber.Ctx) services.Actor {
	actor, _ := c.Locals(actorKey).(services.Actor)
	return actor
}

func RequireAdmin(c *fiber.Ctx) error {
	if !actorOf(c).IsAdmin {
		return JSONError(c, errors.New(errors.ErrCodeForbidden, "admin only"))
	}
	return c.Next()
}

// RateLimit rejects callers over their per-account or per-IP budget.
func RateLimit(rl *middleware.RateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rl.CheckIPLimit(c.IP()) {
			return JSONError(c, errors.New(errors.ErrCodeRateLimitExceeded, "too many requests"))
		}
		if actor := actorOf(c); actor.AccountID != 0 && !rl.CheckAccountLimit(actor.AccountID) {
			return JSONError(c, errors.New(errors.ErrCodeRateLimitExceeded, "too many requests"))
		}
		return c.Next()
	}
}
