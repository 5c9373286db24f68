package services

import (
	"context"
	"fmt"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/internal/repositories"
	"github.com/mroshb/reward_engine/internal/selector"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/mroshb/reward_engine/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GachaService struct {
	store   *Store
	credit  *CreditSource
	granter *PrizeGranter
	tasks   *TaskService
	src     selector.Source
	now     Clock
}

func NewGachaService(store *Store, credit *CreditSource, granter *PrizeGranter, tasks *TaskService, src selector.Source) *GachaService {
	return &GachaService{
		store:   store,
		credit:  credit,
		granter: granter,
		tasks:   tasks,
		src:     src,
		now:     systemClock,
	}
}

// PlayRequest is a paid or voucher-funded game play.
type PlayRequest struct {
	Token         string `json:"request_id"`
	UseFreeCredit bool   `json:"use_free_credit"`
}

type GachaResult struct {
	DrawID         uint              `json:"draw_id"`
	PrizeID        uint              `json:"prize_id"`
	PrizeType      string            `json:"prize_type"`
	PrizeName      string            `json:"prize_name"`
	PrizeValue     models.PrizeValue `json:"prize_value"`
	IsRare         bool              `json:"is_rare"`
	CostPoints     int64             `json:"cost_points"`
	UsedFreeCredit bool              `json:"used_free_credit"`
	PointsAwarded  int64             `json:"points_awarded"`
	Balance        int64             `json:"balance"`
	RemainingToday *int              `json:"remaining_today"`
	Replayed       bool              `json:"replayed"`
}

// Play draws one prize. A replayed token returns the original result
// without charging again.
func (s *GachaService) Play(ctx context.Context, actor Actor, req PlayRequest) (*GachaResult, error) {
	if err := checkToken(req.Token); err != nil {
		return nil, err
	}
	token := req.Token
	var result GachaResult

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, isNew, err := s.store.Idempotency.Begin(tx, actor.AccountID, models.ScopeGachaPlay, token)
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

		cfg, err := s.store.Configs.ActiveRewardConfig(tx)
		if err != nil {
			return err
		}
		now := s.now()

		charge, err := s.credit.Resolve(tx, actor, models.GameGacha, req.UseFreeCredit, cfg.DailyLimit, cfg.CostPoints, now)
		if err != nil {
			return err
		}

		prize, err := s.draw(tx, cfg)
		if err != nil {
			return err
		}

		record := &models.DrawRecord{
			AccountID:      actor.AccountID,
			ConfigID:       cfg.ID,
			PrizeID:        prize.ID,
			CostPoints:     charge.Cost,
			PrizeType:      prize.PrizeType,
			PrizeName:      prize.PrizeName,
			PrizeValue:     prize.PrizeValue,
			IsRare:         prize.IsRare,
			UsedFreeCredit: charge.UsedFreeCredit,
			RequestID:      token,
		}
		if err := s.store.Games.CreateDraw(tx, record); err != nil {
			return err
		}

		ref := models.Ref{Type: models.RefTypeGacha, ID: record.ID, Description: prize.PrizeName}
		if err := s.credit.Collect(tx, actor.AccountID, charge, models.ReasonGachaSpend, ref); err != nil {
			return err
		}

		granted, err := s.granter.Grant(tx, actor.AccountID, prize.PrizeType, prize.PrizeValue.Data(), models.ReasonGachaWin, ref)
		if err != nil {
			return err
		}
		if granted.PrizeType != record.PrizeType || granted.Value != record.PrizeValue.Data() {
			if err := tx.Model(record).Updates(map[string]interface{}{
				"prize_type":  granted.PrizeType,
				"prize_value": datatypes.NewJSONType(granted.Value),
			}).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update draw")
			}
		}

		if err := s.tasks.RecordEvent(tx, actor.AccountID, models.TaskTypeGacha, fmt.Sprintf("gacha:%d", record.ID), ref, now); err != nil {
			return err
		}

		account, err := s.store.Ledger.LockAccount(tx, actor.AccountID)
		if err != nil {
			return err
		}

		result = GachaResult{
			DrawID:         record.ID,
			PrizeID:        prize.ID,
			PrizeType:      granted.PrizeType,
			PrizeName:      prize.PrizeName,
			PrizeValue:     granted.Value,
			IsRare:         prize.IsRare,
			CostPoints:     charge.Cost,
			UsedFreeCredit: charge.UsedFreeCredit,
			PointsAwarded:  granted.Points,
			Balance:        account.Balance,
			RemainingToday: remainingAfter(actor, cfg.DailyLimit, charge),
		}
		return s.store.Idempotency.Complete(tx, key, result)
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		logger.Info("Gacha draw", "account_id", actor.AccountID, "request_id", token, "prize", result.PrizeName, "rare", result.IsRare)
	}
	return &result, nil
}

// draw picks an eligible prize and reserves its stock. An entry that lost
// the stock race is excluded and the draw repeated.
func (s *GachaService) draw(tx *gorm.DB, cfg *models.RewardConfig) (*models.PrizeEntry, error) {
	var candidates []models.PrizeEntry
	for _, p := range cfg.Prizes {
		if p.Eligible() {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New(errors.ErrCodeNoEligiblePrizes, "no eligible prizes")
	}

	weight := func(p models.PrizeEntry) decimal.Decimal { return p.Weight }
	for len(candidates) > 0 {
		idx, err := selector.PickWeighted(candidates, weight, s.src)
		if err != nil {
			return nil, err
		}
		picked := candidates[idx]
		if picked.Stock == nil {
			return &picked, nil
		}

		ok, err := s.store.Stock.TryReserve(tx, picked.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			return &picked, nil
		}
		logger.Debug("Prize stock exhausted, drawing again", "prize_id", picked.ID)
		candidates = append(candidates[:idx], candidates[idx+1:]...)
	}

	if cfg.ConsolationName != "" {
		return &models.PrizeEntry{
			ConfigID:   cfg.ID,
			PrizeType:  models.PrizeTypeEmpty,
			PrizeName:  cfg.ConsolationName,
			PrizeValue: datatypes.NewJSONType(models.PrizeValue{}),
		}, nil
	}
	return nil, errors.New(errors.ErrCodeStockExhausted, "all prizes are out of stock")
}

// PoolEntry is the public view of a prize.
type PoolEntry struct {
	ID          uint    `json:"id"`
	PrizeType   string  `json:"prize_type"`
	PrizeName   string  `json:"prize_name"`
	IsRare      bool    `json:"is_rare"`
	Probability float64 `json:"probability"`
	Stock       *int64  `json:"stock,omitempty"`
}

// Pool lists the drawable prizes with their current probabilities.
func (s *GachaService) Pool(ctx context.Context) ([]PoolEntry, error) {
	cfg, err := s.store.Configs.ActiveRewardConfig(s.store.DB.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	var eligible []models.PrizeEntry
	for _, p := range cfg.Prizes {
		if p.Eligible() {
			eligible = append(eligible, p)
		}
	}
	probs := selector.Probabilities(eligible, func(p models.PrizeEntry) decimal.Decimal { return p.Weight })
	out := make([]PoolEntry, len(eligible))
	for i, p := range eligible {
		out[i] = PoolEntry{
			ID:          p.ID,
			PrizeType:   p.PrizeType,
			PrizeName:   p.PrizeName,
			IsRare:      p.IsRare,
			Probability: probs[i],
			Stock:       p.Stock,
		}
	}
	return out, nil
}

// remainingAfter is the remaining-today count right after a play.
func remainingAfter(actor Actor, limit *int, charge Charge) *int {
	if actor.IsAdmin || limit == nil || charge.UsedFreeCredit {
		return nil
	}
	left := *limit - charge.PlaysToday
	if left < 0 {
		left = 0
	}
	return &left
}

// History returns the account's latest draws.
func (s *GachaService) History(accountID uint, limit int) ([]models.DrawRecord, error) {
	return s.store.Games.GetRecentDraws(accountID, limit)
}

const (
	leaderboardSize   = 50
	recentWinnersSize = 10
)

// LuckyEntry is a leaderboard row with the rare prizes the account drew.
type LuckyEntry struct {
	repositories.LuckyAccount
	Rank   int      `json:"rank"`
	Prizes []string `json:"prizes"`
}

// LuckyLeaderboard ranks accounts by rare draws.
func (s *GachaService) LuckyLeaderboard() ([]LuckyEntry, error) {
	rows, err := s.store.Games.LuckyLeaderboard(leaderboardSize)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(rows))
	for i, row := range rows {
		ids[i] = row.AccountID
	}
	prizes, err := s.store.Games.RarePrizes(ids)
	if err != nil {
		return nil, err
	}

	entries := make([]LuckyEntry, len(rows))
	for i, row := range rows {
		entries[i] = LuckyEntry{LuckyAccount: row, Rank: i + 1, Prizes: prizes[row.AccountID]}
	}
	return entries, nil
}

// RecentWinners returns the latest rare draws across all accounts.
func (s *GachaService) RecentWinners() ([]repositories.RareWinner, error) {
	return s.store.Games.RecentWinners(recentWinnersSize)
}
