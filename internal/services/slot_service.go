package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/internal/selector"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/mroshb/reward_engine/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SlotService struct {
	store  *Store
	credit *CreditSource
	tasks  *TaskService
	src    selector.Source
	now    Clock
}

func NewSlotService(store *Store, credit *CreditSource, tasks *TaskService, src selector.Source) *SlotService {
	return &SlotService{
		store:  store,
		credit: credit,
		tasks:  tasks,
		src:    src,
		now:    systemClock,
	}
}

type SpinResult struct {
	DrawID         uint                 `json:"draw_id"`
	Reels          []string             `json:"reels"`
	Matched        []models.MatchedRule `json:"matched_rules"`
	Multiplier     decimal.Decimal      `json:"multiplier"`
	Payout         int64                `json:"payout"`
	IsJackpot      bool                 `json:"is_jackpot"`
	CostPoints     int64                `json:"cost_points"`
	UsedFreeCredit bool                 `json:"used_free_credit"`
	Balance        int64                `json:"balance"`
	RemainingToday *int                 `json:"remaining_today"`
	Replayed       bool                 `json:"replayed"`
}

func slotSymbols(cfg *models.SlotConfig) []selector.Symbol {
	var out []selector.Symbol
	for _, s := range cfg.Symbols {
		if !s.IsEnabled {
			continue
		}
		out = append(out, selector.Symbol{
			Key:        s.SymbolKey,
			Weight:     s.Weight,
			Multiplier: s.Multiplier,
			IsJackpot:  s.IsJackpot,
		})
	}
	return out
}

// slotRules converts configured rules. Without any primary rule the
// default n-of-a-kind table is added.
func slotRules(cfg *models.SlotConfig, symbols []selector.Symbol) []selector.Rule {
	var out []selector.Rule
	hasPrimary := false
	for _, r := range cfg.Rules {
		if !r.IsEnabled {
			continue
		}
		rule := selector.Rule{
			Name:        r.Name,
			Type:        r.RuleType,
			Pattern:     []string(r.Pattern),
			Ordered:     r.Ordered,
			Count:       r.Count,
			Multiplier:  r.Multiplier,
			FixedPoints: r.FixedPoints,
			Priority:    r.Priority,
		}
		if r.Probability.Valid {
			p := r.Probability.Decimal
			rule.Probability = &p
		}
		if rule.Type == selector.RulePrimary {
			hasPrimary = true
		}
		out = append(out, rule)
	}
	if !hasPrimary {
		out = append(out, selector.DefaultRules(symbols, cfg.Reels, cfg.TwoKindMultiplier)...)
	}
	return out
}

func slotCombination(cfg *models.SlotConfig) selector.Combination {
	comb := selector.Combination{
		Mode:                 cfg.CombineMode,
		ShieldCancelsPenalty: cfg.ShieldCancelsPenalty,
	}
	if cfg.ClampMin.Valid {
		v := cfg.ClampMin.Decimal
		comb.ClampMin = &v
	}
	if cfg.ClampMax.Valid {
		v := cfg.ClampMax.Decimal
		comb.ClampMax = &v
	}
	return comb
}

// isJackpot: the multiplier reaches the threshold, or every reel shows the
// same jackpot symbol.
func isJackpot(cfg *models.SlotConfig, symbols []selector.Symbol, reels []string, mult decimal.Decimal) bool {
	if cfg.JackpotThreshold.IsPositive() && mult.GreaterThanOrEqual(cfg.JackpotThreshold) {
		return true
	}
	for _, r := range reels[1:] {
		if r != reels[0] {
			return false
		}
	}
	for _, s := range symbols {
		if s.Key == reels[0] {
			return s.IsJackpot
		}
	}
	return false
}

// Spin plays one round. A negative outcome debits at most the balance left
// after paying for the spin.
func (s *SlotService) Spin(ctx context.Context, actor Actor, req PlayRequest) (*SpinResult, error) {
	if err := checkToken(req.Token); err != nil {
		return nil, err
	}
	token := req.Token
	var result SpinResult

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, isNew, err := s.store.Idempotency.Begin(tx, actor.AccountID, models.ScopeSlotSpin, token)
		if err != nil {
			return err
		}
		if !isNew {
			if err := s.store.Idempotency.Decode(key, &result); err != nil {
				return err
			}
			result.Replayed = true
			return nil
		}

		cfg, err := s.store.Configs.ActiveSlotConfig(tx)
		if err != nil {
			return err
		}
		now := s.now()

		charge, err := s.credit.Resolve(tx, actor, models.GameSlot, req.UseFreeCredit, cfg.DailyLimit, cfg.CostPoints, now)
		if err != nil {
			return err
		}

		symbols := slotSymbols(cfg)
		reels, err := selector.SpinReels(symbols, cfg.Reels, s.src)
		if err != nil {
			return err
		}
		outcome, err := selector.Evaluate(reels, slotRules(cfg, symbols), slotCombination(cfg), s.src)
		if err != nil {
			return err
		}

		// A free spin pays on the configured stake as if it had been bought.
		payout := outcome.Multiplier.Mul(decimal.NewFromInt(cfg.CostPoints)).Floor().IntPart() + outcome.FixedPoints
		matched := make([]models.MatchedRule, len(outcome.Fired))
		for i, r := range outcome.Fired {
			matched[i] = models.MatchedRule{
				Name:        r.Name,
				RuleType:    r.Type,
				Multiplier:  r.Multiplier,
				FixedPoints: r.FixedPoints,
			}
		}

		draw := &models.SlotDraw{
			AccountID:      actor.AccountID,
			ConfigID:       cfg.ID,
			Reels:          datatypes.NewJSONSlice(reels),
			Matched:        datatypes.NewJSONSlice(matched),
			Multiplier:     outcome.Multiplier,
			Payout:         payout,
			IsJackpot:      isJackpot(cfg, symbols, reels, outcome.Multiplier),
			CostPoints:     charge.Cost,
			UsedFreeCredit: charge.UsedFreeCredit,
			RequestID:      token,
		}
		if err := s.store.Games.CreateSlotDraw(tx, draw); err != nil {
			return err
		}

		ref := models.Ref{Type: models.RefTypeSlot, ID: draw.ID}
		if err := s.credit.Collect(tx, actor.AccountID, charge, models.ReasonSlotSpend, ref); err != nil {
			return err
		}

		switch {
		case payout > 0:
			if _, err := s.store.Ledger.Credit(tx, actor.AccountID, payout, models.ReasonSlotWin, ref); err != nil {
				return err
			}
		case payout < 0:
			applied, err := s.applyPenalty(tx, actor.AccountID, -payout, ref)
			if err != nil {
				return err
			}
			if applied != -payout {
				draw.Payout = -applied
				if err := tx.Model(draw).Update("payout", draw.Payout).Error; err != nil {
					return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update spin")
				}
			}
		}

		if err := s.tasks.RecordEvent(tx, actor.AccountID, models.TaskTypeSlot, fmt.Sprintf("slot:%d", draw.ID), ref, now); err != nil {
			return err
		}

		account, err := s.store.Ledger.LockAccount(tx, actor.AccountID)
		if err != nil {
			return err
		}

		result = SpinResult{
			DrawID:         draw.ID,
			Reels:          reels,
			Matched:        matched,
			Multiplier:     outcome.Multiplier,
			Payout:         draw.Payout,
			IsJackpot:      draw.IsJackpot,
			CostPoints:     charge.Cost,
			UsedFreeCredit: charge.UsedFreeCredit,
			Balance:        account.Balance,
			RemainingToday: remainingAfter(actor, cfg.DailyLimit, charge),
		}
		return s.store.Idempotency.Complete(tx, key, result)
	})
	if err != nil {
		return nil, err
	}

	if result.IsJackpot && !result.Replayed {
		logger.Info("Slot jackpot", "account_id", actor.AccountID, "request_id", token, "payout", result.Payout)
	}
	return &result, nil
}

// applyPenalty debits up to amount without taking the balance below zero.
func (s *SlotService) applyPenalty(tx *gorm.DB, accountID uint, amount int64, ref models.Ref) (int64, error) {
	account, err := s.store.Ledger.LockAccount(tx, accountID)
	if err != nil {
		return 0, err
	}
	if account.Balance < amount {
		amount = account.Balance
	}
	if amount == 0 {
		return 0, nil
	}
	if _, err := s.store.Ledger.Debit(tx, accountID, amount, models.ReasonSlotPenalty, ref); err != nil {
		return 0, err
	}
	return amount, nil
}

// SlotReport compares the configured return to player with observed play.
type SlotReport struct {
	ConfigID       uint    `json:"config_id"`
	TheoreticalRTP float64 `json:"theoretical_rtp"`
	Spins          int64   `json:"spins"`
	TotalCost      int64   `json:"total_cost"`
	TotalPayout    int64   `json:"total_payout"`
	ObservedRTP    float64 `json:"observed_rtp"`
	Jackpots       int64   `json:"jackpots"`
}

// Report computes the RTP report over the last days.
func (s *SlotService) Report(ctx context.Context, actor Actor, days int) (*SlotReport, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}
	cfg, err := s.store.Configs.ActiveSlotConfig(s.store.DB.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	symbols := slotSymbols(cfg)
	rtp, err := selector.TheoreticalRTP(symbols, cfg.Reels, slotRules(cfg, symbols), slotCombination(cfg), cfg.CostPoints)
	if err != nil {
		return nil, err
	}

	stats, err := s.store.Games.SpinStats(cfg.ID, s.now().Add(-time.Duration(days)*24*time.Hour))
	if err != nil {
		return nil, err
	}
	report := &SlotReport{
		ConfigID:       cfg.ID,
		TheoreticalRTP: rtp,
		Spins:          stats.Spins,
		TotalCost:      stats.TotalCost,
		TotalPayout:    stats.TotalPayout,
		Jackpots:       stats.Jackpots,
	}
	if stats.TotalCost > 0 {
		report.ObservedRTP = float64(stats.TotalPayout) / float64(stats.TotalCost)
	}
	return report, nil
}

// History returns the account's latest spins.
func (s *SlotService) History(accountID uint, limit int) ([]models.SlotDraw, error) {
	return s.store.Games.GetRecentSpins(accountID, limit)
}
