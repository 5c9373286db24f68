package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/internal/selector"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/mroshb/reward_engine/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ScratchService sells cards whose outcome is fixed at purchase and reveals
// them later.
type ScratchService struct {
	store   *Store
	credit  *CreditSource
	granter *PrizeGranter
	tasks   *TaskService
	src     selector.Source
	now     Clock
}

func NewScratchService(store *Store, credit *CreditSource, granter *PrizeGranter, tasks *TaskService, src selector.Source) *ScratchService {
	return &ScratchService{
		store:   store,
		credit:  credit,
		granter: granter,
		tasks:   tasks,
		src:     src,
		now:     systemClock,
	}
}

// ScratchCardView hides the prize until the card is revealed.
type ScratchCardView struct {
	Serial         string             `json:"serial"`
	Status         string             `json:"status"`
	CostPoints     int64              `json:"cost_points"`
	UsedFreeCredit bool               `json:"used_free_credit"`
	PrizeType      string             `json:"prize_type,omitempty"`
	PrizeName      string             `json:"prize_name,omitempty"`
	PrizeValue     *models.PrizeValue `json:"prize_value,omitempty"`
	IsRare         bool               `json:"is_rare,omitempty"`
	PointsAwarded  int64              `json:"points_awarded"`
	Balance        int64              `json:"balance"`
	RemainingToday *int               `json:"remaining_today,omitempty"`
	Replayed       bool               `json:"replayed"`
}

// Buy sells one card and fixes its outcome.
func (s *ScratchService) Buy(ctx context.Context, actor Actor, req PlayRequest) (*ScratchCardView, error) {
	if err := checkToken(req.Token); err != nil {
		return nil, err
	}
	token := req.Token
	var result ScratchCardView

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, isNew, err := s.store.Idempotency.Begin(tx, actor.AccountID, models.ScopeScratchBuy, token)
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

		cfg, err := s.store.Configs.ActiveScratchConfig(tx)
		if err != nil {
			return err
		}
		now := s.now()

		charge, err := s.credit.Resolve(tx, actor, models.GameScratch, req.UseFreeCredit, cfg.DailyLimit, cfg.CostPoints, now)
		if err != nil {
			return err
		}

		var enabled []models.ScratchPrize
		var probs []decimal.Decimal
		for _, p := range cfg.Prizes {
			if p.IsEnabled {
				enabled = append(enabled, p)
				probs = append(probs, p.Probability)
			}
		}
		idx, err := selector.PickFixed(probs, s.src)
		if err != nil {
			return err
		}

		card := &models.ScratchCard{
			AccountID:      actor.AccountID,
			ConfigID:       cfg.ID,
			Serial:         uuid.NewString(),
			Status:         models.ScratchStatusSold,
			PrizeType:      models.PrizeTypeEmpty,
			PrizeValue:     datatypes.NewJSONType(models.PrizeValue{}),
			CostPoints:     charge.Cost,
			UsedFreeCredit: charge.UsedFreeCredit,
			RequestID:      token,
		}
		if idx != selector.NoWin {
			won := enabled[idx]
			card.PrizeID = won.ID
			card.PrizeType = won.PrizeType
			card.PrizeName = won.PrizeName
			card.PrizeValue = won.PrizeValue
			card.IsRare = won.IsRare
		}
		if err := s.store.Games.CreateScratchCard(tx, card); err != nil {
			return err
		}

		ref := models.Ref{Type: models.RefTypeScratch, ID: card.ID, Description: card.Serial}
		if err := s.credit.Collect(tx, actor.AccountID, charge, models.ReasonScratchSpend, ref); err != nil {
			return err
		}
		if err := s.tasks.RecordEvent(tx, actor.AccountID, models.TaskTypeScratch, fmt.Sprintf("scratch:%d", card.ID), ref, now); err != nil {
			return err
		}

		account, err := s.store.Ledger.LockAccount(tx, actor.AccountID)
		if err != nil {
			return err
		}
		result = ScratchCardView{
			Serial:         card.Serial,
			Status:         card.Status,
			CostPoints:     card.CostPoints,
			UsedFreeCredit: card.UsedFreeCredit,
			Balance:        account.Balance,
			RemainingToday: remainingAfter(actor, cfg.DailyLimit, charge),
		}
		return s.store.Idempotency.Complete(tx, key, result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Reveal discloses a card and grants its prize once. Revealing again
// returns the same outcome.
func (s *ScratchService) Reveal(ctx context.Context, actor Actor, serial string) (*ScratchCardView, error) {
	var result ScratchCardView

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := s.store.Games.LockScratchCard(tx, actor.AccountID, serial)
		if err != nil {
			return err
		}

		if card.Status == models.ScratchStatusRevealed {
			result = revealedView(card, 0)
			result.Replayed = true
		} else {
			ref := models.Ref{Type: models.RefTypeScratch, ID: card.ID, Description: card.Serial}
			granted, err := s.granter.Grant(tx, actor.AccountID, card.PrizeType, card.PrizeValue.Data(), models.ReasonScratchWin, ref)
			if err != nil {
				return err
			}
			card.PrizeType = granted.PrizeType
			card.PrizeValue = datatypes.NewJSONType(granted.Value)
			if err := tx.Model(card).Updates(map[string]interface{}{
				"prize_type":  card.PrizeType,
				"prize_value": card.PrizeValue,
			}).Error; err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update scratch card")
			}
			if err := s.store.Games.MarkRevealed(tx, card, s.now()); err != nil {
				return err
			}
			result = revealedView(card, granted.Points)
		}

		account, err := s.store.Ledger.LockAccount(tx, actor.AccountID)
		if err != nil {
			return err
		}
		result.Balance = account.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed && result.IsRare {
		logger.Info("Rare scratch prize revealed", "account_id", actor.AccountID, "serial", serial, "prize", result.PrizeName)
	}
	return &result, nil
}

func revealedView(card *models.ScratchCard, points int64) ScratchCardView {
	value := card.PrizeValue.Data()
	return ScratchCardView{
		Serial:         card.Serial,
		Status:         card.Status,
		CostPoints:     card.CostPoints,
		UsedFreeCredit: card.UsedFreeCredit,
		PrizeType:      card.PrizeType,
		PrizeName:      card.PrizeName,
		PrizeValue:     &value,
		IsRare:         card.IsRare,
		PointsAwarded:  points,
	}
}

// Unrevealed lists the account's sold cards.
func (s *ScratchService) Unrevealed(accountID uint, limit int) ([]ScratchCardView, error) {
	cards, err := s.store.Games.GetScratchCards(accountID, models.ScratchStatusSold, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ScratchCardView, len(cards))
	for i, c := range cards {
		out[i] = ScratchCardView{
			Serial:         c.Serial,
			Status:         c.Status,
			CostPoints:     c.CostPoints,
			UsedFreeCredit: c.UsedFreeCredit,
		}
	}
	return out, nil
}
