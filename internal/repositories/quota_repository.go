package repositories

import (
	"fmt"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuotaRepository struct {
	db *gorm.DB
}

func NewQuotaRepository(db *gorm.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// CheckAndIncrement counts one action for the period. A nil limit is
// unlimited. Exempt callers are counted but never rejected.
func (r *QuotaRepository) CheckAndIncrement(tx *gorm.DB, accountID uint, kind, periodKey string, limit *int, exempt bool) (int, error) {
	seed := &models.QuotaCounter{
		AccountID:  accountID,
		ActionKind: kind,
		PeriodKey:  periodKey,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create quota counter")
	}

	var counter models.QuotaCounter
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ? AND action_kind = ? AND period_key = ?", accountID, kind, periodKey).
		First(&counter).Error
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to lock quota counter")
	}

	if !exempt && limit != nil && counter.Count >= *limit {
		return counter.Count, errors.New(errors.ErrCodeQuotaExceeded, fmt.Sprintf("daily limit of %d reached", *limit))
	}

	if err := tx.Model(&counter).UpdateColumn("count", gorm.Expr("count + 1")).Error; err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to increment quota counter")
	}
	return counter.Count + 1, nil
}

// Count returns how many actions were counted in the period.
func (r *QuotaRepository) Count(accountID uint, kind, periodKey string) (int, error) {
	var counter models.QuotaCounter
	err := r.db.Where("account_id = ? AND action_kind = ? AND period_key = ?", accountID, kind, periodKey).
		First(&counter).Error
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get quota counter")
	}
	return counter.Count, nil
}

// Remaining returns the actions left in the period, or nil when unlimited.
func (r *QuotaRepository) Remaining(accountID uint, kind, periodKey string, limit *int) (*int, error) {
	if limit == nil {
		return nil, nil
	}
	used, err := r.Count(accountID, kind, periodKey)
	if err != nil {
		return nil, err
	}
	remaining := *limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &remaining, nil
}
