package services

import (
	"context"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/mroshb/reward_engine/pkg/logger"
	"gorm.io/gorm"
)

// SigninRewards configures the daily sign-in payout. Every MilestoneDays-th
// consecutive day pays MilestoneBonus on top of BasePoints.
type SigninRewards struct {
	BasePoints     int64
	MilestoneDays  int
	MilestoneBonus int64
}

type SigninService struct {
	store   *Store
	tasks   *TaskService
	periods Periods
	rewards SigninRewards
	now     Clock
}

func NewSigninService(store *Store, tasks *TaskService, periods Periods, rewards SigninRewards) *SigninService {
	return &SigninService{store: store, tasks: tasks, periods: periods, rewards: rewards, now: systemClock}
}

type SigninResult struct {
	Date        string `json:"date"`
	StreakDay   int    `json:"streak_day"`
	BasePoints  int64  `json:"base_points"`
	BonusPoints int64  `json:"bonus_points"`
	Balance     int64  `json:"balance"`
	Replayed    bool   `json:"replayed"`
}

// bonusFor returns the milestone bonus earned on streak day n.
func (r SigninRewards) bonusFor(n int) int64 {
	if r.MilestoneDays <= 0 || r.MilestoneBonus <= 0 || n%r.MilestoneDays != 0 {
		return 0
	}
	return r.MilestoneBonus
}

// Signin records today's sign-in. Signing in again on the same local day,
// with any token, returns the recorded sign-in without paying twice.
func (s *SigninService) Signin(ctx context.Context, actor Actor, token string) (*SigninResult, error) {
	if err := checkToken(token); err != nil {
		return nil, err
	}
	var result SigninResult

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, isNew, err := s.store.Idempotency.Begin(tx, actor.AccountID, models.ScopeSignin, token)
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

		// Serializes concurrent sign-ins of one account.
		account, err := s.store.Ledger.LockAccount(tx, actor.AccountID)
		if err != nil {
			return err
		}

		now := s.now()
		today := s.periods.Day(now)
		dateKey := today.Format("2006-01-02")

		existing, err := s.store.Signins.OnDate(tx, actor.AccountID, today)
		if err != nil {
			return err
		}
		if existing != nil {
			result = SigninResult{
				Date:        dateKey,
				StreakDay:   existing.StreakDay,
				BasePoints:  existing.BasePoints,
				BonusPoints: existing.BonusPoints,
				Balance:     account.Balance,
				Replayed:    true,
			}
			return s.store.Idempotency.Complete(tx, key, result)
		}

		streak := 1
		prev, err := s.store.Signins.OnDate(tx, actor.AccountID, today.AddDate(0, 0, -1))
		if err != nil {
			return err
		}
		if prev != nil {
			streak = prev.StreakDay + 1
		}

		record := &models.SigninRecord{
			AccountID:   actor.AccountID,
			SigninDate:  today,
			StreakDay:   streak,
			BasePoints:  s.rewards.BasePoints,
			BonusPoints: s.rewards.bonusFor(streak),
		}
		created, err := s.store.Signins.Create(tx, record)
		if err != nil {
			return err
		}
		if !created {
			return errors.New(errors.ErrCodeInvariantViolation, "sign-in row appeared under the account lock")
		}

		ref := models.Ref{Type: models.RefTypeSignin, ID: record.ID, Description: dateKey}
		balance := account.Balance
		if record.BasePoints > 0 {
			entry, err := s.store.Ledger.Credit(tx, actor.AccountID, record.BasePoints, models.ReasonSignin, ref)
			if err != nil {
				return err
			}
			balance = entry.BalanceAfter
		}
		if record.BonusPoints > 0 {
			entry, err := s.store.Ledger.Credit(tx, actor.AccountID, record.BonusPoints, models.ReasonSigninBonus, ref)
			if err != nil {
				return err
			}
			balance = entry.BalanceAfter
		}

		if err := s.tasks.RecordEvent(tx, actor.AccountID, models.TaskTypeSignin, "signin:"+dateKey, ref, now); err != nil {
			return err
		}

		result = SigninResult{
			Date:        dateKey,
			StreakDay:   streak,
			BasePoints:  record.BasePoints,
			BonusPoints: record.BonusPoints,
			Balance:     balance,
		}
		return s.store.Idempotency.Complete(tx, key, result)
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		logger.Info("Signed in", "account_id", actor.AccountID, "streak_day", result.StreakDay, "bonus", result.BonusPoints)
	}
	return &result, nil
}

// History returns the latest sign-ins.
func (s *SigninService) History(accountID uint, limit int) ([]models.SigninRecord, error) {
	return s.store.Signins.Recent(accountID, limit)
}
