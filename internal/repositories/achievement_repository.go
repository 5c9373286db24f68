package repositories

import (
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository struct {
	db *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

const statsQuery = `SELECT
	(SELECT COUNT(*) FROM draw_records WHERE account_id = @id) AS gacha_draws,
	(SELECT COUNT(*) FROM draw_records WHERE account_id = @id AND is_rare) AS gacha_rare,
	(SELECT COUNT(*) FROM slot_draws WHERE account_id = @id) AS slot_spins,
	(SELECT COUNT(*) FROM slot_draws WHERE account_id = @id AND is_jackpot) AS slot_jackpots,
	(SELECT COUNT(*) FROM scratch_cards WHERE account_id = @id) AS scratch_cards,
	(SELECT COUNT(*) FROM bets WHERE account_id = @id) AS bets_placed,
	(SELECT COUNT(*) FROM bets WHERE account_id = @id AND status IN (@won, @lost)) AS bets_settled,
	(SELECT COUNT(*) FROM bets WHERE account_id = @id AND status = @won) AS bets_won,
	(SELECT COALESCE(MAX(longest), 0) FROM task_streaks WHERE account_id = @id) AS task_streak_longest,
	(SELECT COUNT(*) FROM task_progress p JOIN task_definitions d ON d.id = p.task_id
		WHERE p.account_id = @id AND p.completed_at IS NOT NULL AND d.schedule = @weekly) AS weekly_tasks_completed,
	(SELECT COALESCE(MAX(streak_day), 0) FROM signin_records WHERE account_id = @id) AS signin_streak,
	(SELECT COUNT(*) FROM account_achievements WHERE account_id = @id AND status <> @locked) AS achievements_unlocked`

// Stats computes the counters achievements are measured against.
func (r *AchievementRepository) Stats(tx *gorm.DB, accountID uint) (*models.AccountStats, error) {
	var stats models.AccountStats
	err := tx.Raw(statsQuery, map[string]interface{}{
		"id":     accountID,
		"won":    models.BetStatusWon,
		"lost":   models.BetStatusLost,
		"weekly": models.TaskScheduleWeekly,
		"locked": models.AchievementLocked,
	}).Scan(&stats).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to compute account stats")
	}
	return &stats, nil
}

// Definitions returns the active definitions in display order.
func (r *AchievementRepository) Definitions(tx *gorm.DB) ([]models.AchievementDefinition, error) {
	var defs []models.AchievementDefinition
	if err := sorted(tx.Where("is_active = ?", true)).Find(&defs).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get achievements")
	}
	return defs, nil
}

func (r *AchievementRepository) GetDefinition(tx *gorm.DB, key string) (*models.AchievementDefinition, error) {
	var def models.AchievementDefinition
	err := tx.Where("achievement_key = ?", key).First(&def).Error
	if isNotFound(err) {
		return nil, errors.New(errors.ErrCodeNotFound, "achievement not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get achievement")
	}
	return &def, nil
}

// Progress returns the account's achievement rows keyed by achievement.
func (r *AchievementRepository) Progress(tx *gorm.DB, accountID uint) (map[string]models.AccountAchievement, error) {
	var rows []models.AccountAchievement
	if err := tx.Where("account_id = ?", accountID).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get account achievements")
	}
	byKey := make(map[string]models.AccountAchievement, len(rows))
	for _, row := range rows {
		byKey[row.AchievementKey] = row
	}
	return byKey, nil
}

// Lock returns the account's row for key FOR UPDATE, creating it locked
// first.
func (r *AchievementRepository) Lock(tx *gorm.DB, accountID uint, key string) (*models.AccountAchievement, error) {
	seed := &models.AccountAchievement{AccountID: accountID, AchievementKey: key, Status: models.AchievementLocked}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create account achievement")
	}
	var row models.AccountAchievement
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ? AND achievement_key = ?", accountID, key).
		First(&row).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to lock account achievement")
	}
	return &row, nil
}

func (r *AchievementRepository) Save(tx *gorm.DB, row *models.AccountAchievement) error {
	err := tx.Model(row).Updates(map[string]interface{}{
		"status":         row.Status,
		"progress_value": row.ProgressValue,
		"unlocked_at":    row.UnlockedAt,
		"claimed_at":     row.ClaimedAt,
	}).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save account achievement")
	}
	return nil
}

// Showcase returns the pinned badges ordered by slot.
func (r *AchievementRepository) Showcase(accountID uint) ([]models.BadgeShowcase, error) {
	var rows []models.BadgeShowcase
	if err := r.db.Where("account_id = ?", accountID).Order("slot ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get badge showcase")
	}
	return rows, nil
}

// Pin puts key in slot, replacing whatever was pinned there.
func (r *AchievementRepository) Pin(tx *gorm.DB, accountID uint, slot int, key string, at time.Time) error {
	row := &models.BadgeShowcase{AccountID: accountID, Slot: slot, AchievementKey: key, PinnedAt: at}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"achievement_key", "pinned_at"}),
	}).Create(row).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to pin badge")
	}
	return nil
}

// Unpin reports false when the slot was empty.
func (r *AchievementRepository) Unpin(tx *gorm.DB, accountID uint, slot int) (bool, error) {
	result := tx.Where("account_id = ? AND slot = ?", accountID, slot).Delete(&models.BadgeShowcase{})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to unpin badge")
	}
	return result.RowsAffected == 1, nil
}
