package api

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/reward_engine/internal/reports"
	"github.com/mroshb/reward_engine/internal/services"
)

const maxExportRows = 100_000

func (h *Handler) CreateMarket(c *fiber.Ctx) error {
	var req services.CreateMarketRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	market, err := h.svc.Markets.Create(c.UserContext(), actorOf(c), req)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Market created", market)
}

func (h *Handler) OpenMarket(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid market id")
	}
	market, err := h.svc.Markets.Open(c.UserContext(), actorOf(c), id)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Market opened", market)
}

func (h *Handler) CloseMarket(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid market id")
	}
	market, err := h.svc.Markets.Close(c.UserContext(), actorOf(c), id)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Market closed", market)
}

func (h *Handler) SettleMarket(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid market id")
	}
	var body struct {
		Winners []uint `json:"winner_option_ids"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON")
	}
	result, err := h.svc.Markets.Settle(c.UserContext(), actorOf(c), id, body.Winners)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Market settled", result)
}

func (h *Handler) CancelMarket(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid market id")
	}
	result, err := h.svc.Markets.Cancel(c.UserContext(), actorOf(c), id)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Market canceled", result)
}

func (h *Handler) MarketStats(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid market id")
	}
	stats, err := h.svc.Markets.Stats(c.UserContext(), actorOf(c), id)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Market stats retrieved", stats)
}

func (h *Handler) AdjustPoints(c *fiber.Ctx) error {
	var req services.AdjustRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if !withToken(c, &req.Token) {
		return missingToken(c)
	}
	result, err := h.svc.Admin.AdjustPoints(c.UserContext(), actorOf(c), req)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Points adjusted", result)
}

func (h *Handler) GrantVoucher(c *fiber.Ctx) error {
	var req services.VoucherGrantRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if !withToken(c, &req.Token) {
		return missingToken(c)
	}
	result, err := h.svc.Admin.GrantVoucher(c.UserContext(), actorOf(c), req)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Vouchers granted", result)
}

func (h *Handler) AuditLedger(c *fiber.Ctx) error {
	mismatches, err := h.svc.Admin.AuditLedger(c.UserContext(), actorOf(c))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, fmt.Sprintf("%d mismatched accounts", len(mismatches)), mismatches)
}

// ExportLedger streams ledger entries in [from, to) as an xlsx workbook.
// Dates are YYYY-MM-DD; the default range is the last 24 hours.
func (h *Handler) ExportLedger(c *fiber.Ctx) error {
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	var err error
	if s := c.Query("from"); s != "" {
		if from, err = time.Parse("2006-01-02", s); err != nil {
			return badRequest(c, "invalid from date")
		}
	}
	if s := c.Query("to"); s != "" {
		if to, err = time.Parse("2006-01-02", s); err != nil {
			return badRequest(c, "invalid to date")
		}
	}

	entries, err := h.svc.Admin.LedgerEntries(actorOf(c), from, to, maxExportRows)
	if err != nil {
		return JSONError(c, err)
	}

	var buf bytes.Buffer
	if err := reports.WriteLedger(&buf, entries); err != nil {
		return JSONError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="ledger_%s_%s.xlsx"`, from.Format("20060102"), to.Format("20060102")))
	return c.Send(buf.Bytes())
}

func (h *Handler) SlotReport(c *fiber.Ctx) error {
	report, err := h.svc.Slot.Report(c.UserContext(), actorOf(c), c.QueryInt("days", 7))
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Slot report", report)
}

func (h *Handler) TrackEvent(c *fiber.Ctx) error {
	var body struct {
		AccountID uint   `json:"account_id"`
		TaskType  string `json:"task_type"`
		EventKey  string `json:"event_key"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if err := h.svc.Tasks.Track(c.UserContext(), actorOf(c), body.AccountID, body.TaskType, body.EventKey); err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Event recorded", nil)
}

func (h *Handler) SetRole(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid account id")
	}
	var body struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if err := h.svc.Admin.SetRole(actorOf(c), id, body.Role); err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Role updated", nil)
}

func (h *Handler) SetPrizeEnabled(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid prize id")
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if err := h.svc.Admin.SetPrizeEnabled(actorOf(c), id, body.Enabled); err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Prize updated", nil)
}

func (h *Handler) AddCodes(c *fiber.Ctx) error {
	var body struct {
		UsageType string   `json:"usage_type"`
		Codes     []string `json:"codes"`
		Quota     int64    `json:"quota"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid JSON")
	}
	added, err := h.svc.Admin.AddRedemptionCodes(actorOf(c), body.UsageType, body.Codes, body.Quota)
	if err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, fmt.Sprintf("%d codes added", added), fiber.Map{"added": added})
}

func (h *Handler) GrantAchievement(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid account id")
	}
	if err := h.svc.Achievements.Grant(c.UserContext(), actorOf(c), id, c.Params("key")); err != nil {
		return JSONError(c, err)
	}
	return JSONSuccess(c, "Achievement granted", nil)
}
