package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/reward_engine/internal/middleware"
)

// NewApp builds the fiber application with every route mounted.
func NewApp(h *Handler, secret string, rl *middleware.RateLimiter) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "reward-engine",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"success": false, "message": e.Message, "data": nil})
			}
			return JSONError(c, err)
		},
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return JSONSuccess(c, "ok", nil)
	})

	Setup(app, h, secret, rl)
	return app
}

func Setup(app *fiber.App, h *Handler, secret string, rl *middleware.RateLimiter) {
	v1 := app.Group("/v1", Auth(secret), RateLimit(rl))

	v1.Get("/me/status", h.Status)
	v1.Get("/me/ledger", h.Ledger)
	v1.Get("/me/inventory", h.Inventory)
	v1.Get("/me/bets", h.MyBets)

	v1.Post("/signin", h.Signin)
	v1.Get("/signin/history", h.SigninHistory)

	v1.Post("/gacha/play", h.GachaPlay)
	v1.Get("/gacha/pool", h.GachaPool)
	v1.Get("/gacha/history", h.GachaHistory)
	v1.Get("/gacha/leaderboard", h.GachaLeaderboard)
	v1.Get("/gacha/winners", h.GachaWinners)

	v1.Post("/slot/spin", h.SlotSpin)
	v1.Get("/slot/history", h.SlotHistory)

	v1.Post("/scratch/cards", h.ScratchBuy)
	v1.Get("/scratch/cards", h.ScratchCards)
	v1.Post("/scratch/cards/:serial/reveal", h.ScratchReveal)

	v1.Get("/markets", h.Markets)
	v1.Get("/markets/:id", h.Market)
	v1.Post("/markets/:id/bets", h.PlaceBet)

	v1.Get("/tasks", h.Tasks)
	v1.Get("/tasks/streak", h.TaskStreak)
	v1.Post("/tasks/:id/claim", h.ClaimTask)

	v1.Get("/exchange/items", h.ExchangeItems)
	v1.Post("/exchange/redeem", h.ExchangeRedeem)
	v1.Get("/exchange/history", h.ExchangeHistory)

	v1.Get("/achievements", h.Achievements)
	v1.Get("/achievements/stats", h.AchievementStats)
	v1.Post("/achievements/:key/claim", h.ClaimAchievement)
	v1.Get("/achievements/showcase", h.Showcase)
	v1.Put("/achievements/showcase/:slot", h.SetShowcase)
	v1.Delete("/achievements/showcase/:slot", h.RemoveShowcase)

	admin := v1.Group("/admin", RequireAdmin)
	admin.Post("/markets", h.CreateMarket)
	admin.Post("/markets/:id/open", h.OpenMarket)
	admin.Post("/markets/:id/close", h.CloseMarket)
	admin.Post("/markets/:id/settle", h.SettleMarket)
	admin.Post("/markets/:id/cancel", h.CancelMarket)
	admin.Get("/markets/:id/stats", h.MarketStats)

	admin.Post("/points", h.AdjustPoints)
	admin.Post("/vouchers", h.GrantVoucher)
	admin.Get("/ledger/audit", h.AuditLedger)
	admin.Get("/ledger/export", h.ExportLedger)
	admin.Get("/slot/report", h.SlotReport)
	admin.Post("/tasks/events", h.TrackEvent)
	admin.Put("/accounts/:id/role", h.SetRole)
	admin.Put("/prizes/:id/enabled", h.SetPrizeEnabled)
	admin.Post("/codes", h.AddCodes)
	admin.Post("/accounts/:id/achievements/:key", h.GrantAchievement)
}
