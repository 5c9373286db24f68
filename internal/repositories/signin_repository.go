package repositories

import (
	"time"

	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SigninRepository struct {
	db *gorm.DB
}

func NewSigninRepository(db *gorm.DB) *SigninRepository {
	return &SigninRepository{db: db}
}

// Create reports false when the account already signed in on that date.
func (r *SigninRepository) Create(tx *gorm.DB, record *models.SigninRecord) (bool, error) {
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to record signin")
	}
	return result.RowsAffected == 1, nil
}

// OnDate returns the sign-in of the given date, or nil.
func (r *SigninRepository) OnDate(tx *gorm.DB, accountID uint, date time.Time) (*models.SigninRecord, error) {
	var record models.SigninRecord
	err := tx.Where("account_id = ? AND signin_date = ?", accountID, date).First(&record).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get signin")
	}
	return &record, nil
}

// Recent returns the latest sign-ins, newest first.
func (r *SigninRepository) Recent(accountID uint, limit int) ([]models.SigninRecord, error) {
	var records []models.SigninRecord
	err := r.db.Where("account_id = ?", accountID).Order("signin_date DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get signins")
	}
	return records, nil
}
