package services

import (
	"context"
	"fmt"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/mroshb/reward_engine/pkg/logger"
	"gorm.io/gorm"
)

// ExchangeService sells free-credit vouchers for points.
type ExchangeService struct {
	store *Store
	tasks *TaskService
	now   Clock
}

func NewExchangeService(store *Store, tasks *TaskService) *ExchangeService {
	return &ExchangeService{store: store, tasks: tasks, now: systemClock}
}

type ExchangeRequest struct {
	Token  string `json:"request_id"`
	ItemID uint   `json:"item_id"`
}

type ExchangeResult struct {
	RecordID    uint   `json:"record_id"`
	ItemID      uint   `json:"item_id"`
	Game        string `json:"game"`
	Quantity    int    `json:"quantity"`
	CostPoints  int64  `json:"cost_points"`
	FreeCredits int    `json:"free_credits"`
	Balance     int64  `json:"balance"`
	Replayed    bool   `json:"replayed"`
}

func (s *ExchangeService) Items() ([]models.ExchangeItem, error) {
	return s.store.Configs.ExchangeItems()
}

// History returns the account's redemptions, newest first.
func (s *ExchangeService) History(accountID uint, limit int) ([]models.ExchangeRecord, error) {
	return s.store.Exchanges.History(accountID, limit)
}

// Redeem spends points on an exchange item and grants its vouchers.
func (s *ExchangeService) Redeem(ctx context.Context, actor Actor, req ExchangeRequest) (*ExchangeResult, error) {
	if err := checkToken(req.Token); err != nil {
		return nil, err
	}
	token := req.Token
	var result ExchangeResult

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, isNew, err := s.store.Idempotency.Begin(tx, actor.AccountID, models.ScopeExchange, token)
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

		item, err := s.store.Configs.GetExchangeItem(tx, req.ItemID)
		if err != nil {
			return err
		}
		if !item.IsActive {
			return errors.New(errors.ErrCodeNotFound, "exchange item not available")
		}

		account, err := s.store.Ledger.LockAccount(tx, actor.AccountID)
		if err != nil {
			return err
		}
		if account.Balance < item.CostPoints {
			return errors.New(errors.ErrCodeInsufficientFunds, fmt.Sprintf("insufficient points: have %d, need %d", account.Balance, item.CostPoints))
		}

		ok, err := s.store.Stock.TryReserveExchange(tx, item.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.ErrCodeStockExhausted, "exchange item is sold out")
		}

		record := &models.ExchangeRecord{
			AccountID:  actor.AccountID,
			ItemID:     item.ID,
			ItemName:   item.Name,
			Game:       item.Game,
			Quantity:   item.Quantity,
			CostPoints: item.CostPoints,
			RequestID:  token,
		}
		if err := s.store.Exchanges.Create(tx, record); err != nil {
			return err
		}

		ref := models.Ref{Type: models.RefTypeExchange, ID: record.ID, Description: item.Name}
		entry, err := s.store.Ledger.Debit(tx, actor.AccountID, item.CostPoints, models.ReasonExchangeSpend, ref)
		if err != nil {
			return err
		}
		if err := s.store.Vouchers.Grant(tx, actor.AccountID, item.Game, item.Quantity); err != nil {
			return err
		}
		if err := s.tasks.RecordEvent(tx, actor.AccountID, models.TaskTypeExchange, "exchange:"+token, ref, s.now()); err != nil {
			return err
		}

		credits, err := s.store.Vouchers.Quantity(tx, actor.AccountID, item.Game)
		if err != nil {
			return err
		}

		result = ExchangeResult{
			RecordID:    record.ID,
			ItemID:      item.ID,
			Game:        item.Game,
			Quantity:    item.Quantity,
			CostPoints:  item.CostPoints,
			FreeCredits: credits,
			Balance:     entry.BalanceAfter,
		}
		return s.store.Idempotency.Complete(tx, key, result)
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		logger.Info("Exchange redeemed", "account_id", actor.AccountID, "item_id", req.ItemID, "request_id", token)
	}
	return &result, nil
}
