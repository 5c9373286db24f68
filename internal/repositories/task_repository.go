package repositories

import (
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Definitions returns the active definitions, optionally for one task type.
func (r *TaskRepository) Definitions(tx *gorm.DB, taskType string) ([]models.TaskDefinition, error) {
	var defs []models.TaskDefinition
	query := tx.Where("is_active = ?", true)
	if taskType != "" {
		query = query.Where("task_type = ?", taskType)
	}
	if err := sorted(query).Find(&defs).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get task definitions")
	}
	return defs, nil
}

// ChainBonuses returns active chain-bonus definitions unlocked by group.
func (r *TaskRepository) ChainBonuses(tx *gorm.DB, group string) ([]models.TaskDefinition, error) {
	var defs []models.TaskDefinition
	err := sorted(tx.Where("is_active = ? AND task_type = ? AND chain_requires_group_key = ?", true, models.TaskTypeChainBonus, group)).
		Find(&defs).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get chain bonuses")
	}
	return defs, nil
}

// GroupCompletion counts the active definitions of group and how many of
// them the account completed in the period.
func (r *TaskRepository) GroupCompletion(tx *gorm.DB, accountID uint, group string, periodStart time.Time) (total, completed int64, err error) {
	if err = tx.Model(&models.TaskDefinition{}).
		Where("is_active = ? AND chain_group_key = ?", true, group).
		Count(&total).Error; err != nil {
		return 0, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count group tasks")
	}
	if err = tx.Model(&models.TaskProgress{}).
		Joins("JOIN task_definitions d ON d.id = task_progress.task_id").
		Where("d.is_active = ? AND d.chain_group_key = ?", true, group).
		Where("task_progress.account_id = ? AND task_progress.period_start = ? AND task_progress.completed_at IS NOT NULL", accountID, periodStart).
		Count(&completed).Error; err != nil {
		return 0, 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count completed group tasks")
	}
	return total, completed, nil
}

func (r *TaskRepository) GetDefinition(tx *gorm.DB, id uint) (*models.TaskDefinition, error) {
	var def models.TaskDefinition
	err := tx.First(&def, id).Error
	if isNotFound(err) {
		return nil, errors.New(errors.ErrCodeNotFound, "task not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get task")
	}
	return &def, nil
}

// InsertEvent records an event key once. It reports false for duplicates.
func (r *TaskRepository) InsertEvent(tx *gorm.DB, event *models.TaskEvent) (bool, error) {
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to record task event")
	}
	return result.RowsAffected == 1, nil
}

// LockProgress returns the progress row of def for the period FOR UPDATE,
// creating it with a snapshot of the target and reward first.
func (r *TaskRepository) LockProgress(tx *gorm.DB, accountID uint, def *models.TaskDefinition, start, end time.Time) (*models.TaskProgress, error) {
	seed := &models.TaskProgress{
		AccountID:    accountID,
		TaskID:       def.ID,
		PeriodStart:  start,
		PeriodEnd:    end,
		TargetValue:  def.TargetValue,
		RewardPoints: def.RewardPoints,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create task progress")
	}

	var progress models.TaskProgress
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ? AND task_id = ? AND period_start = ?", accountID, def.ID, start).
		First(&progress).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to lock task progress")
	}
	return &progress, nil
}

func (r *TaskRepository) SaveProgress(tx *gorm.DB, progress *models.TaskProgress) error {
	err := tx.Model(progress).Updates(map[string]interface{}{
		"progress_value": progress.ProgressValue,
		"completed_at":   progress.CompletedAt,
		"claimed_at":     progress.ClaimedAt,
		"last_event_at":  progress.LastEventAt,
	}).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save task progress")
	}
	return nil
}

// Progress returns the account's progress rows for the given period starts.
func (r *TaskRepository) Progress(accountID uint, starts []time.Time) ([]models.TaskProgress, error) {
	var rows []models.TaskProgress
	err := r.db.Where("account_id = ? AND period_start IN ?", accountID, starts).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get task progress")
	}
	return rows, nil
}

// CreateClaim reports false when the task was already claimed for the period.
func (r *TaskRepository) CreateClaim(tx *gorm.DB, claim *models.TaskClaim) (bool, error) {
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(claim)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to create task claim")
	}
	return result.RowsAffected == 1, nil
}

// LockStreak returns the streak row FOR UPDATE, creating it if needed.
func (r *TaskRepository) LockStreak(tx *gorm.DB, accountID uint) (*models.TaskStreak, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.TaskStreak{AccountID: accountID}).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create task streak")
	}
	var streak models.TaskStreak
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&streak, "account_id = ?", accountID).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to lock task streak")
	}
	return &streak, nil
}

func (r *TaskRepository) SaveStreak(tx *gorm.DB, streak *models.TaskStreak) error {
	err := tx.Model(streak).Updates(map[string]interface{}{
		"current":   streak.Current,
		"longest":   streak.Longest,
		"last_date": streak.LastDate,
	}).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save task streak")
	}
	return nil
}

func (r *TaskRepository) Streak(accountID uint) (*models.TaskStreak, error) {
	var streak models.TaskStreak
	err := r.db.First(&streak, "account_id = ?", accountID).Error
	if isNotFound(err) {
		return &models.TaskStreak{AccountID: accountID}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get task streak")
	}
	return &streak, nil
}
