package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/reward_engine/internal/services"
)

// Services are the operations the HTTP API exposes.
type Services struct {
	Accounts     *services.AccountService
	Signins      *services.SigninService
	Gacha        *services.GachaService
	Slot         *services.SlotService
	Scratch      *services.ScratchService
	Markets      *services.MarketService
	Tasks        *services.TaskService
	Exchange     *services.ExchangeService
	Achievements *services.AchievementService
	Admin        *services.AdminService
}

type Handler struct {
	svc Services
}

func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

const maxPageSize = 100

func limitOf(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 {
		return 20
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func offsetOf(c *fiber.Ctx) int {
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		return 0
	}
	return offset
}

const idempotencyHeader = "Idempotency-Key"

// withToken falls back to the Idempotency-Key header and reports whether a
// request token was supplied.
func withToken(c *fiber.Ctx, token *string) bool {
	if *token == "" {
		*token = c.Get(idempotencyHeader)
	}
	return *token != ""
}

func missingToken(c *fiber.Ctx) error {
	return badRequest(c, "request_id or Idempotency-Key header is required")
}

// tokenBody is the body of endpoints whose only input is the request token.
type tokenBody struct {
	Token string `json:"request_id"`
}

func parseToken(c *fiber.Ctx) (string, error) {
	var body tokenBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return "", err
		}
	}
	return body.Token, nil
}

func idParam(c *fiber.Ctx, name string) (uint, bool) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

// Account

func (h *Handler) Status(c *fiber.Ctx) error {
	status, err := h.svc.Accounts.Status(c.UserContext(), actorOf(c))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Status retrieved", status)
}

func (h *Handler) Ledger(c *fiber.Ctx) error {
	entries, err := h.svc.Accounts.History(actorOf(c).AccountID, limitOf(c), offsetOf(c))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Ledger retrieved", entries)
}

func (h *Handler) Inventory(c *fiber.Ctx) error {
	inv, err := h.svc.Accounts.Inventory(actorOf(c).AccountID)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Inventory retrieved", inv)
}

// Sign-in

func (h *Handler) Signin(c *fiber.Ctx) error {
	token, err := parseToken(c)
	if err != nil {
		return badRequest(c, "invalid JSON")
	}
	if !withToken(c, &token) {
		return missingToken(c)
	}
	result, err := h.svc.Signins.Signin(c.UserContext(), actorOf(c), token)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Signed in", result)
}

func (h *Handler) SigninHistory(c *fiber.Ctx) error {
	records, err := h.svc.Signins.History(actorOf(c).AccountID, limitOf(c))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Sign-ins retrieved", records)
}

// Games

func parsePlay(c *fiber.Ctx) (services.PlayRequest, error) {
	var req services.PlayRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return req, err
		}
	}
	withToken(c, &req.Token)
	return req, nil
}

func (h *Handler) GachaPlay(c *fiber.Ctx) error {
	req, err := parsePlay(c)
	if err != nil {
		return badRequest(c, "invalid JSON")
	}
	if req.Token == "" {
		return missingToken(c)
	}
	result, err := h.svc.Gacha.Play(c.UserContext(), actorOf(c), req)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Draw completed", result)
}

func (h *Handler) GachaPool(c *fiber.Ctx) error {
	pool, err := h.svc.Gacha.Pool(c.UserContext())
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Pool retrieved", pool)
}

func (h *Handler) GachaLeaderboard(c *fiber.Ctx) error {
	entries, err := h.svc.Gacha.LuckyLeaderboard()
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Leaderboard retrieved", entries)
}

func (h *Handler) GachaWinners(c *fiber.Ctx) error {
	winners, err := h.svc.Gacha.RecentWinners()
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Winners retrieved", winners)
}

func (h *Handler) GachaHistory(c *fiber.Ctx) error {
	draws, err := h.svc.Gacha.History(actorOf(c).AccountID, limitOf(c))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Draws retrieved", draws)
}

func (h *Handler) SlotSpin(c *fiber.Ctx) error {
	req, err := parsePlay(c)
	if err != nil {
		return badRequest(c, "invalid JSON")
	}
	if req.Token == "" {
		return missingToken(c)
	}
	result, err := h.svc.Slot.Spin(c.UserContext(), actorOf(c), req)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Spin completed", result)
}

func (h *Handler) SlotHistory(c *fiber.Ctx) error {
	spins, err := h.svc.Slot.History(actorOf(c).AccountID, limitOf(c))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Spins retrieved", spins)
}

func (h *Handler) ScratchBuy(c *fiber.Ctx) error {
	req, err := parsePlay(c)
	if err != nil {
		return badRequest(c, "invalid JSON")
	}
	if req.Token == "" {
		return missingToken(c)
	}
	card, err := h.svc.Scratch.Buy(c.UserContext(), actorOf(c), req)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Card purchased", card)
}

func (h *Handler) ScratchReveal(c *fiber.Ctx) error {
	card, err := h.svc.Scratch.Reveal(c.UserContext(), actorOf(c), c.Params("serial"))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Card revealed", card)
}

func (h *Handler) ScratchCards(c *fiber.Ctx) error {
	cards, err := h.svc.Scratch.Unrevealed(actorOf(c).AccountID, limitOf(c))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Cards retrieved", cards)
}

// Markets

func (h *Handler) Markets(c *fiber.Ctx) error {
	markets, err := h.svc.Markets.List(c.Query("status"), limitOf(c), offsetOf(c))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Markets retrieved", markets)
}

func (h *Handler) Market(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid market id")
	}
	market, err := h.svc.Markets.Get(c.UserContext(), id)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Market retrieved", market)
}

func (h *Handler) PlaceBet(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid market id")
	}
	var req services.PlaceBetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if !withToken(c, &req.Token) {
		return missingToken(c)
	}
	result, err := h.svc.Markets.PlaceBet(c.UserContext(), actorOf(c), id, req)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Bet placed", result)
}

func (h *Handler) MyBets(c *fiber.Ctx) error {
	bets, err := h.svc.Markets.Bets(actorOf(c).AccountID, uint(c.QueryInt("market_id", 0)), limitOf(c))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Bets retrieved", bets)
}

// Tasks

func (h *Handler) Tasks(c *fiber.Ctx) error {
	tasks, err := h.svc.Tasks.List(c.UserContext(), actorOf(c).AccountID)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Tasks retrieved", tasks)
}

func (h *Handler) ClaimTask(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid task id")
	}
	token, err := parseToken(c)
	if err != nil {
		return badRequest(c, "invalid JSON")
	}
	if !withToken(c, &token) {
		return missingToken(c)
	}
	result, err := h.svc.Tasks.Claim(c.UserContext(), actorOf(c), id, token)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Reward claimed", result)
}

func (h *Handler) TaskStreak(c *fiber.Ctx) error {
	streak, err := h.svc.Tasks.Streak(actorOf(c).AccountID)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Streak retrieved", streak)
}

// Exchange

func (h *Handler) ExchangeItems(c *fiber.Ctx) error {
	items, err := h.svc.Exchange.Items()
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Items retrieved", items)
}

func (h *Handler) ExchangeRedeem(c *fiber.Ctx) error {
	var req services.ExchangeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if !withToken(c, &req.Token) {
		return missingToken(c)
	}
	result, err := h.svc.Exchange.Redeem(c.UserContext(), actorOf(c), req)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Exchange completed", result)
}

func (h *Handler) ExchangeHistory(c *fiber.Ctx) error {
	records, err := h.svc.Exchange.History(actorOf(c).AccountID, limitOf(c))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Exchange history retrieved", records)
}

// Achievements

func (h *Handler) Achievements(c *fiber.Ctx) error {
	views, err := h.svc.Achievements.List(c.UserContext(), actorOf(c))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Achievements retrieved", views)
}

func (h *Handler) AchievementStats(c *fiber.Ctx) error {
	stats, err := h.svc.Achievements.Stats(c.UserContext(), actorOf(c))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Stats retrieved", stats)
}

func (h *Handler) ClaimAchievement(c *fiber.Ctx) error {
	token, err := parseToken(c)
	if err != nil {
		return badRequest(c, "invalid JSON")
	}
	if !withToken(c, &token) {
		return missingToken(c)
	}
	result, err := h.svc.Achievements.Claim(c.UserContext(), actorOf(c), c.Params("key"), token)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Achievement claimed", result)
}

func (h *Handler) Showcase(c *fiber.Ctx) error {
	badges, err := h.svc.Achievements.Showcase(actorOf(c).AccountID)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Showcase retrieved", badges)
}

type showcaseRequest struct {
	Key string `json:"achievement_key"`
}

func (h *Handler) SetShowcase(c *fiber.Ctx) error {
	slot, err := c.ParamsInt("slot")
	if err != nil {
		return badRequest(c, "invalid slot")
	}
	var req showcaseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if req.Key == "" {
		return badRequest(c, "achievement_key is required")
	}
	if err := h.svc.Achievements.SetShowcase(c.UserContext(), actorOf(c), slot, req.Key); err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Badge pinned", nil)
}

func (h *Handler) RemoveShowcase(c *fiber.Ctx) error {
	slot, err := c.ParamsInt("slot")
	if err != nil {
		return badRequest(c, "invalid slot")
	}
	if err := h.svc.Achievements.RemoveShowcase(c.UserContext(), actorOf(c), slot); err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Badge removed", nil)
}
