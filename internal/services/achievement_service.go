package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/mroshb/reward_engine/pkg/logger"
	"gorm.io/gorm"
)

// AchievementService unlocks achievements from account stats and pays each
// one once, when it is claimed.
type AchievementService struct {
	store *Store
	now   Clock
}

func NewAchievementService(store *Store) *AchievementService {
	return &AchievementService{store: store, now: systemClock}
}

// AchievementView is a definition with the account's state on it.
type AchievementView struct {
	Key             string     `json:"achievement_key"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	BadgeIcon       string     `json:"badge_icon"`
	BadgeTier       string     `json:"badge_tier"`
	Points          int64      `json:"points"`
	TargetValue     int        `json:"target_value"`
	Status          string     `json:"status"`
	ProgressValue   int        `json:"progress_value"`
	ProgressPercent int        `json:"progress_percent"`
	UnlockedAt      *time.Time `json:"unlocked_at,omitempty"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty"`
}

// AchievementClaim is returned by Claim and stored for token replays.
type AchievementClaim struct {
	Key      string `json:"achievement_key"`
	Points   int64  `json:"points"`
	Balance  int64  `json:"balance"`
	Replayed bool   `json:"replayed"`
}

// Badge is one pinned showcase slot.
type Badge struct {
	Slot      int    `json:"slot"`
	Key       string `json:"achievement_key"`
	Name      string `json:"name"`
	BadgeIcon string `json:"badge_icon"`
	BadgeTier string `json:"badge_tier"`
}

// refresh records progress and unlocks every satisfied achievement. The
// caller holds the account lock.
func (s *AchievementService) refresh(tx *gorm.DB, accountID uint) ([]string, error) {
	defs, err := s.store.Achievements.Definitions(tx)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.Achievements.Stats(tx, accountID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Achievements.Progress(tx, accountID)
	if err != nil {
		return nil, err
	}

	var unlocked []string
	now := s.now()
	for i := range defs {
		def := &defs[i]
		if def.RuleType == models.RuleManual {
			continue
		}
		existing, ok := rows[def.AchievementKey]
		if ok && existing.Status != models.AchievementLocked {
			continue
		}
		value, done := def.Progress(*stats)
		if ok && existing.ProgressValue == value && !done {
			continue
		}

		row, err := s.store.Achievements.Lock(tx, accountID, def.AchievementKey)
		if err != nil {
			return nil, err
		}
		if row.Status != models.AchievementLocked {
			continue
		}
		row.ProgressValue = value
		if done {
			row.Status = models.AchievementUnlocked
			row.UnlockedAt = &now
			unlocked = append(unlocked, def.AchievementKey)
		}
		if err := s.store.Achievements.Save(tx, row); err != nil {
			return nil, err
		}
	}
	return unlocked, nil
}

// List refreshes the account's achievements and returns them in display
// order.
func (s *AchievementService) List(ctx context.Context, actor Actor) ([]AchievementView, error) {
	var views []AchievementView
	var unlocked []string

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.store.Ledger.LockAccount(tx, actor.AccountID); err != nil {
			return err
		}
		var err error
		if unlocked, err = s.refresh(tx, actor.AccountID); err != nil {
			return err
		}

		defs, err := s.store.Achievements.Definitions(tx)
		if err != nil {
			return err
		}
		rows, err := s.store.Achievements.Progress(tx, actor.AccountID)
		if err != nil {
			return err
		}
		views = make([]AchievementView, 0, len(defs))
		for _, d := range defs {
			views = append(views, viewOf(d, rows[d.AchievementKey]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(unlocked) > 0 {
		logger.Info("Achievements unlocked", "account_id", actor.AccountID, "keys", unlocked)
	}
	return views, nil
}

func viewOf(d models.AchievementDefinition, row models.AccountAchievement) AchievementView {
	status := row.Status
	if status == "" {
		status = models.AchievementLocked
	}
	percent := 0
	if d.TargetValue > 0 {
		percent = row.ProgressValue * 100 / d.TargetValue
		if percent > 100 {
			percent = 100
		}
	}
	return AchievementView{
		Key:             d.AchievementKey,
		Name:            d.Name,
		Description:     d.Description,
		Category:        d.Category,
		BadgeIcon:       d.BadgeIcon,
		BadgeTier:       d.BadgeTier,
		Points:          d.Points,
		TargetValue:     d.TargetValue,
		Status:          status,
		ProgressValue:   row.ProgressValue,
		ProgressPercent: percent,
		UnlockedAt:      row.UnlockedAt,
		ClaimedAt:       row.ClaimedAt,
	}
}

// Stats returns the counters achievements are measured against.
func (s *AchievementService) Stats(ctx context.Context, actor Actor) (*models.AccountStats, error) {
	return s.store.Achievements.Stats(s.store.DB.WithContext(ctx), actor.AccountID)
}

// Claim pays an unlocked achievement's points. Each achievement pays at most
// once per account; a replayed token returns the first result.
func (s *AchievementService) Claim(ctx context.Context, actor Actor, key, token string) (*AchievementClaim, error) {
	if err := checkToken(token); err != nil {
		return nil, err
	}
	var result AchievementClaim

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		idem, isNew, err := s.store.Idempotency.Begin(tx, actor.AccountID, models.ScopeAchievement, token)
		if err != nil {
			return err
		}
		if !isNew {
			if err := s.store.Idempotency.Decode(idem, &result); err != nil {
				return err
			}
			result.Replayed = true
			return nil
		}

		def, err := s.store.Achievements.GetDefinition(tx, key)
		if err != nil {
			return err
		}
		if !def.IsActive {
			return errors.New(errors.ErrCodeInvalidState, "achievement is not active")
		}
		account, err := s.store.Ledger.LockAccount(tx, actor.AccountID)
		if err != nil {
			return err
		}
		if _, err := s.refresh(tx, actor.AccountID); err != nil {
			return err
		}

		row, err := s.store.Achievements.Lock(tx, actor.AccountID, key)
		if err != nil {
			return err
		}
		switch row.Status {
		case models.AchievementClaimed:
			return errors.New(errors.ErrCodeAlreadyClaimed, "achievement already claimed")
		case models.AchievementLocked:
			return errors.New(errors.ErrCodeInvalidState, "achievement is not unlocked")
		}

		now := s.now()
		row.Status = models.AchievementClaimed
		row.ClaimedAt = &now
		if err := s.store.Achievements.Save(tx, row); err != nil {
			return err
		}

		balance := account.Balance
		if def.Points > 0 {
			ref := models.Ref{Type: models.RefTypeAchieve, ID: row.ID, Description: def.Name}
			entry, err := s.store.Ledger.Credit(tx, actor.AccountID, def.Points, models.ReasonAchievement, ref)
			if err != nil {
				return err
			}
			balance = entry.BalanceAfter
		}

		result = AchievementClaim{Key: key, Points: def.Points, Balance: balance}
		return s.store.Idempotency.Complete(tx, idem, result)
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		logger.Info("Achievement claimed", "account_id", actor.AccountID, "key", key, "points", result.Points, "request_id", token)
	}
	return &result, nil
}

// Grant unlocks an achievement for an account by hand. Manual achievements
// can only be earned this way.
func (s *AchievementService) Grant(ctx context.Context, actor Actor, accountID uint, key string) error {
	if err := actor.requireAdmin(); err != nil {
		return err
	}

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		def, err := s.store.Achievements.GetDefinition(tx, key)
		if err != nil {
			return err
		}
		if _, err := s.store.Ledger.LockAccount(tx, accountID); err != nil {
			return err
		}
		row, err := s.store.Achievements.Lock(tx, accountID, key)
		if err != nil {
			return err
		}
		if row.Status != models.AchievementLocked {
			return errors.New(errors.ErrCodeAlreadyExists, "achievement already unlocked")
		}
		now := s.now()
		row.Status = models.AchievementUnlocked
		row.ProgressValue = def.TargetValue
		row.UnlockedAt = &now
		return s.store.Achievements.Save(tx, row)
	})
	if err != nil {
		return err
	}

	logger.Info("Achievement granted", "admin_id", actor.AccountID, "account_id", accountID, "key", key)
	return nil
}

// Showcase returns the account's pinned badges ordered by slot.
func (s *AchievementService) Showcase(accountID uint) ([]Badge, error) {
	pinned, err := s.store.Achievements.Showcase(accountID)
	if err != nil {
		return nil, err
	}
	badges := make([]Badge, 0, len(pinned))
	for _, p := range pinned {
		def, err := s.store.Achievements.GetDefinition(s.store.DB, p.AchievementKey)
		if err != nil {
			return nil, err
		}
		badges = append(badges, Badge{
			Slot:      p.Slot,
			Key:       p.AchievementKey,
			Name:      def.Name,
			BadgeIcon: def.BadgeIcon,
			BadgeTier: def.BadgeTier,
		})
	}
	return badges, nil
}

func checkSlot(slot int) error {
	if slot < 1 || slot > models.ShowcaseSlots {
		return errors.New(errors.ErrCodeValidation, fmt.Sprintf("slot must be between 1 and %d", models.ShowcaseSlots))
	}
	return nil
}

// SetShowcase pins an earned achievement to slot.
func (s *AchievementService) SetShowcase(ctx context.Context, actor Actor, slot int, key string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.store.Achievements.GetDefinition(tx, key); err != nil {
			return err
		}
		rows, err := s.store.Achievements.Progress(tx, actor.AccountID)
		if err != nil {
			return err
		}
		row, ok := rows[key]
		if !ok || row.Status == models.AchievementLocked {
			return errors.New(errors.ErrCodeInvalidState, "achievement not earned")
		}
		return s.store.Achievements.Pin(tx, actor.AccountID, slot, key, s.now())
	})
}

// RemoveShowcase clears slot.
func (s *AchievementService) RemoveShowcase(ctx context.Context, actor Actor, slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	removed, err := s.store.Achievements.Unpin(s.store.DB.WithContext(ctx), actor.AccountID, slot)
	if err != nil {
		return err
	}
	if !removed {
		return errors.New(errors.ErrCodeNotFound, "showcase slot is empty")
	}
	return nil
}
